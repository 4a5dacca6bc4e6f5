package wv

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rsa"
	"crypto/subtle"
	"encoding/asn1"
	"fmt"

	"github.com/chmike/cmac-go"
)

func Pkcs7Padding(data []byte, blockSize int) []byte {
	padding := blockSize - (len(data) % blockSize)
	padded := make([]byte, len(data)+padding)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padding)
	}
	return padded
}

func Pkcs7Unpadding(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrDecryptionFailed
	}
	padding := int(data[len(data)-1])
	if padding < 1 || padding > blockSize {
		return nil, ErrDecryptionFailed
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, ErrDecryptionFailed
		}
	}
	return data[:len(data)-padding], nil
}

// EncryptAESCBC encrypts plaintext with AES-CBC and PKCS#7 padding.
func EncryptAESCBC(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("iv length %d", len(iv))
	}

	padded := Pkcs7Padding(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}

// DecryptAESCBC decrypts AES-CBC ciphertext and strips PKCS#7 padding. All
// failures return ErrDecryptionFailed.
func DecryptAESCBC(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if len(iv) != aes.BlockSize || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrDecryptionFailed
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return Pkcs7Unpadding(plaintext, aes.BlockSize)
}

// DecryptAESCTR decrypts AES-CTR ciphertext with the given initial counter
// block. Content payloads are CTR-encrypted under the derived content keys;
// the primitive lives here, decryption pipelines live downstream.
func DecryptAESCTR(key, counter, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if len(counter) != aes.BlockSize {
		return nil, ErrDecryptionFailed
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCTR(block, counter).XORKeyStream(plaintext, ciphertext)
	return plaintext, nil
}

// ParsePublicKey parses a PKCS#1 DER RSA public key, the encoding DRM
// certificates carry.
func ParsePublicKey(pubKey []byte) (*rsa.PublicKey, error) {
	publicKey := &rsa.PublicKey{}
	if rest, err := asn1.Unmarshal(pubKey, publicKey); err != nil {
		return nil, fmt.Errorf("unmarshal asn1: %w", err)
	} else if len(rest) > 0 {
		return nil, fmt.Errorf("trailing bytes after public key")
	}
	return publicKey, nil
}

func cmacAES(key, data []byte) ([]byte, error) {
	hash, err := cmac.New(aes.NewCipher, key)
	if err != nil {
		return nil, fmt.Errorf("new cmac: %w", err)
	}
	if _, err = hash.Write(data); err != nil {
		return nil, fmt.Errorf("cmac write: %w", err)
	}
	return hash.Sum(nil), nil
}

// zero wipes key material before it is released.
func zero(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
}
