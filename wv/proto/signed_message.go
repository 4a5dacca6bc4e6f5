package wvproto

import "google.golang.org/protobuf/encoding/protowire"

// SignedMessage is the outer envelope of every protocol exchange. The
// signature always covers exactly Msg; SessionKey is only present on license
// responses carrying a fresh OAEP-encrypted session key.
type SignedMessage struct {
	Type       MessageType
	Msg        []byte
	Signature  []byte
	SessionKey []byte

	unknown []byte
}

func (m *SignedMessage) Marshal() []byte {
	var b []byte
	if m.Type != 0 {
		b = appendVarintField(b, 1, uint64(m.Type))
	}
	if m.Msg != nil {
		b = appendBytesField(b, 2, m.Msg)
	}
	if m.Signature != nil {
		b = appendBytesField(b, 3, m.Signature)
	}
	if m.SessionKey != nil {
		b = appendBytesField(b, 4, m.SessionKey)
	}
	return append(b, m.unknown...)
}

func (m *SignedMessage) Unmarshal(b []byte) error {
	*m = SignedMessage{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return wireErr("signed message tag", n)
		}
		tag := b[:n]
		b = b[n:]
		var adv int
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return wireErr("signed message type", n)
			}
			m.Type = MessageType(v)
			adv = n
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("signed message msg", n)
			}
			m.Msg = cloneBytes(v)
			adv = n
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("signed message signature", n)
			}
			m.Signature = cloneBytes(v)
			adv = n
		case num == 4 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("signed message session key", n)
			}
			m.SessionKey = cloneBytes(v)
			adv = n
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return wireErr("signed message field", n)
			}
			m.unknown = append(m.unknown, tag...)
			m.unknown = append(m.unknown, b[:n]...)
			adv = n
		}
		b = b[adv:]
	}
	return nil
}
