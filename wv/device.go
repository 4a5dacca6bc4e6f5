package wv

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
)

// Device holds a provisioned device identity: the RSA private key and the
// client identification blob issued by the license authority. A Device is
// immutable after load and safe for concurrent use by any number of
// sessions.
type Device struct {
	privateKey *rsa.PrivateKey
	clientID   []byte
}

// NewDevice loads a device from the provisioned private key (PEM or DER,
// PKCS#1 or PKCS#8) and the client identification blob. The blob is kept
// opaque: it is sent to the server verbatim and never parsed here.
func NewDevice(privateKey, clientID []byte) (*Device, error) {
	if len(privateKey) == 0 {
		return nil, fmt.Errorf("%w: missing private key", ErrInvalidDevice)
	}
	if len(clientID) == 0 {
		return nil, fmt.Errorf("%w: missing client id blob", ErrInvalidDevice)
	}

	key, err := parsePrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDevice, err)
	}

	return &Device{
		privateKey: key,
		clientID:   append([]byte(nil), clientID...),
	}, nil
}

func parsePrivateKey(b []byte) (*rsa.PrivateKey, error) {
	der := b
	if block, _ := pem.Decode(b); block != nil {
		der = block.Bytes
	}

	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, not RSA", parsed)
	}
	return key, nil
}

// Sign signs data with the device key using RSA-PSS over SHA-1 with the
// salt length equal to the digest length, as the protocol fixes it.
func (d *Device) Sign(rnd io.Reader, data []byte) ([]byte, error) {
	hashed := sha1.Sum(data)
	sig, err := rsa.SignPSS(rnd, d.privateKey, crypto.SHA1, hashed[:],
		&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
	if err != nil {
		return nil, fmt.Errorf("sign pss: %w", err)
	}
	return sig, nil
}

// DecryptSessionKey RSA-OAEP-decrypts a server-chosen session key seed.
// Every failure collapses to ErrDecryptionFailed so the error carries no
// information about whether padding or format was wrong.
func (d *Device) DecryptSessionKey(ciphertext []byte) ([]byte, error) {
	seed, err := rsa.DecryptOAEP(sha1.New(), nil, d.privateKey, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return seed, nil
}

// ClientID returns the client identification blob. Callers must not modify
// the returned slice.
func (d *Device) ClientID() []byte {
	return d.clientID
}

// PublicKey returns the public half of the device key.
func (d *Device) PublicKey() *rsa.PublicKey {
	return &d.privateKey.PublicKey
}
