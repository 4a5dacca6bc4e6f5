package wv

import (
	"encoding/binary"
	"fmt"
)

const sessionKeyLength = 16

const (
	kdfLabelEncryption     = "ENCRYPTION"
	kdfLabelAuthentication = "AUTHENTICATION"
)

// sessionKeys is the material derived from one session key seed. The
// encryption key unwraps content keys; the MAC keys authenticate server and
// client messages within the session.
type sessionKeys struct {
	enc       []byte
	macServer []byte
	macClient []byte
}

func (k *sessionKeys) destroy() {
	zero(k.enc)
	zero(k.macServer)
	zero(k.macClient)
	k.enc, k.macServer, k.macClient = nil, nil, nil
}

// deriveKey runs the counter-mode CMAC KDF: 128-bit blocks of
// CMAC(seed, counter || label || 0x00 || context || lengthBits) with the
// counter starting at 1, concatenated and truncated to lengthBits. The
// layout is fixed by the protocol; any deviation yields wrong keys with no
// detectable error until content decryption fails.
func deriveKey(seed []byte, label string, context []byte, lengthBits uint32) ([]byte, error) {
	length := int(lengthBits) / 8
	blocks := (length + 15) / 16

	msg := make([]byte, 0, 1+len(label)+1+len(context)+4)
	msg = append(msg, 0)
	msg = append(msg, label...)
	msg = append(msg, 0)
	msg = append(msg, context...)
	msg = binary.BigEndian.AppendUint32(msg, lengthBits)

	out := make([]byte, 0, blocks*16)
	for counter := 1; counter <= blocks; counter++ {
		msg[0] = byte(counter)
		block, err := cmacAES(seed, msg)
		if err != nil {
			return nil, fmt.Errorf("derive %q block %d: %w", label, counter, err)
		}
		out = append(out, block...)
	}
	return out[:length], nil
}

// deriveSessionKeys derives the session key set from the decrypted seed,
// with the raw license request bytes as the KDF context. The 512-bit
// authentication derivation splits into the server MAC key (first half) and
// the client MAC key (second half).
func deriveSessionKeys(seed, licenseRequest []byte) (*sessionKeys, error) {
	enc, err := deriveKey(seed, kdfLabelEncryption, licenseRequest, 128)
	if err != nil {
		return nil, err
	}
	auth, err := deriveKey(seed, kdfLabelAuthentication, licenseRequest, 512)
	if err != nil {
		zero(enc)
		return nil, err
	}
	return &sessionKeys{
		enc:       enc,
		macServer: auth[:32],
		macClient: auth[32:64],
	}, nil
}
