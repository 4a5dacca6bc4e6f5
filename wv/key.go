package wv

import (
	"encoding/hex"

	wvpb "github.com/wvkit/gowvcdm/wv/proto"
)

// Key is one decrypted key from a license.
type Key struct {
	// Type is the type of key.
	Type wvpb.KeyType
	// ID is the ID of the key, empty for keys the server identifies by
	// type only (e.g. signing keys).
	ID []byte
	// IV is the initialization vector the key was wrapped with.
	IV []byte
	// Key is the decrypted key.
	Key []byte
	// Control is the key control block, passed through unparsed.
	Control []byte
}

func (k *Key) KeyIdHex() string {
	return hex.EncodeToString(k.ID)
}

func (k *Key) KeyHex() string {
	return hex.EncodeToString(k.Key)
}

// name identifies the key inside a session's key map: the hex key id when
// present, otherwise the key type name. Duplicate ids keep the last key in
// wire order.
func (k *Key) name() string {
	if len(k.ID) > 0 {
		return k.KeyIdHex()
	}
	return k.Type.String()
}
