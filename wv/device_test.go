package wv

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
)

// testKey is generated once; key generation dominates the package test time
// otherwise.
var testKey = func() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return key
}()

var testClientID = []byte("test client identification blob")

func testKeyPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(testKey),
	})
}

func testDevice(t *testing.T) *Device {
	t.Helper()
	device, err := NewDevice(testKeyPEM(), testClientID)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	return device
}

func TestNewDevice(t *testing.T) {
	pkcs8, err := x509.MarshalPKCS8PrivateKey(testKey)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		key  []byte
	}{
		{"pkcs1 pem", testKeyPEM()},
		{"pkcs1 der", x509.MarshalPKCS1PrivateKey(testKey)},
		{"pkcs8 der", pkcs8},
		{"pkcs8 pem", pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8})},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			device, err := NewDevice(c.key, testClientID)
			if err != nil {
				t.Fatalf("NewDevice: %v", err)
			}
			if !bytes.Equal(device.ClientID(), testClientID) {
				t.Fatal("client id mismatch")
			}
			if device.PublicKey().N.Cmp(testKey.N) != 0 {
				t.Fatal("public key mismatch")
			}
		})
	}
}

func TestNewDeviceRejectsBadInput(t *testing.T) {
	cases := []struct {
		name     string
		key, cid []byte
	}{
		{"missing key", nil, testClientID},
		{"missing client id", testKeyPEM(), nil},
		{"garbage key", []byte("not a key"), testClientID},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := NewDevice(c.key, c.cid); !errors.Is(err, ErrInvalidDevice) {
				t.Fatalf("got %v, want ErrInvalidDevice", err)
			}
		})
	}
}

func TestDeviceSign(t *testing.T) {
	device := testDevice(t)
	data := []byte("message to sign")

	sig, err := device.Sign(rand.Reader, data)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	hashed := sha1.Sum(data)
	err = rsa.VerifyPSS(device.PublicKey(), crypto.SHA1, hashed[:], sig,
		&rsa.PSSOptions{SaltLength: sha1.Size})
	if err != nil {
		t.Fatalf("VerifyPSS: %v", err)
	}

	hashed = sha1.Sum([]byte("a different message"))
	err = rsa.VerifyPSS(device.PublicKey(), crypto.SHA1, hashed[:], sig,
		&rsa.PSSOptions{SaltLength: sha1.Size})
	if err == nil {
		t.Fatal("signature verified for different data")
	}
}

func TestDeviceDecryptSessionKey(t *testing.T) {
	device := testDevice(t)
	seed := bytes.Repeat([]byte{0x42}, 16)

	ciphertext, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, device.PublicKey(), seed, nil)
	if err != nil {
		t.Fatal(err)
	}

	out, err := device.DecryptSessionKey(ciphertext)
	if err != nil {
		t.Fatalf("DecryptSessionKey: %v", err)
	}
	if !bytes.Equal(out, seed) {
		t.Fatal("seed mismatch")
	}

	ciphertext[0] ^= 1
	if _, err := device.DecryptSessionKey(ciphertext); err != ErrDecryptionFailed {
		t.Fatalf("got %v, want bare ErrDecryptionFailed", err)
	}
	if _, err := device.DecryptSessionKey([]byte("short")); err != ErrDecryptionFailed {
		t.Fatalf("got %v, want bare ErrDecryptionFailed", err)
	}
}
