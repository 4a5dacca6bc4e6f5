package wvproto

import "google.golang.org/protobuf/encoding/protowire"

// License is the payload of a verified license response. Policy and the
// per-container key control blocks are opaque pass-throughs: their contents
// are enforced by the platform layer, not interpreted here.
type License struct {
	ID                         *LicenseIdentification
	Policy                     []byte
	Keys                       []*KeyContainer
	LicenseStartTime           int64
	RemoteAttestationVerified  bool
	ProviderClientToken        []byte
	PlatformVerificationStatus PlatformVerificationStatus

	unknown []byte
}

func (m *License) Marshal() []byte {
	var b []byte
	if m.ID != nil {
		b = appendBytesField(b, 1, m.ID.Marshal())
	}
	if m.Policy != nil {
		b = appendBytesField(b, 2, m.Policy)
	}
	for _, k := range m.Keys {
		b = appendBytesField(b, 3, k.Marshal())
	}
	if m.LicenseStartTime != 0 {
		b = appendVarintField(b, 4, uint64(m.LicenseStartTime))
	}
	if m.RemoteAttestationVerified {
		b = appendVarintField(b, 5, 1)
	}
	if m.ProviderClientToken != nil {
		b = appendBytesField(b, 6, m.ProviderClientToken)
	}
	if m.PlatformVerificationStatus != 0 {
		b = appendVarintField(b, 10, uint64(m.PlatformVerificationStatus))
	}
	return append(b, m.unknown...)
}

func (m *License) Unmarshal(b []byte) error {
	*m = License{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return wireErr("license tag", n)
		}
		tag := b[:n]
		b = b[n:]
		var adv int
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("license id", n)
			}
			m.ID = new(LicenseIdentification)
			if err := m.ID.Unmarshal(v); err != nil {
				return err
			}
			adv = n
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("policy", n)
			}
			m.Policy = cloneBytes(v)
			adv = n
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("key container", n)
			}
			k := new(KeyContainer)
			if err := k.Unmarshal(v); err != nil {
				return err
			}
			m.Keys = append(m.Keys, k)
			adv = n
		case num == 4 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return wireErr("license start time", n)
			}
			m.LicenseStartTime = int64(v)
			adv = n
		case num == 5 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return wireErr("remote attestation verified", n)
			}
			m.RemoteAttestationVerified = v != 0
			adv = n
		case num == 6 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("provider client token", n)
			}
			m.ProviderClientToken = cloneBytes(v)
			adv = n
		case num == 10 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return wireErr("platform verification status", n)
			}
			m.PlatformVerificationStatus = PlatformVerificationStatus(v)
			adv = n
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return wireErr("license field", n)
			}
			m.unknown = append(m.unknown, tag...)
			m.unknown = append(m.unknown, b[:n]...)
			adv = n
		}
		b = b[adv:]
	}
	return nil
}

// KeyContainer holds one server-delivered key: the key id in the clear and
// the key itself AES-CBC-encrypted under the derived session encryption key,
// with the IV alongside.
type KeyContainer struct {
	ID         []byte
	IV         []byte
	Key        []byte
	Type       KeyType
	Level      SecurityLevel
	KeyControl []byte

	unknown []byte
}

func (m *KeyContainer) Marshal() []byte {
	var b []byte
	if m.ID != nil {
		b = appendBytesField(b, 1, m.ID)
	}
	if m.IV != nil {
		b = appendBytesField(b, 2, m.IV)
	}
	if m.Key != nil {
		b = appendBytesField(b, 3, m.Key)
	}
	if m.Type != 0 {
		b = appendVarintField(b, 4, uint64(m.Type))
	}
	if m.Level != 0 {
		b = appendVarintField(b, 5, uint64(m.Level))
	}
	if m.KeyControl != nil {
		b = appendBytesField(b, 8, m.KeyControl)
	}
	return append(b, m.unknown...)
}

func (m *KeyContainer) Unmarshal(b []byte) error {
	*m = KeyContainer{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return wireErr("key container tag", n)
		}
		tag := b[:n]
		b = b[n:]
		var adv int
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("key id", n)
			}
			m.ID = cloneBytes(v)
			adv = n
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("key iv", n)
			}
			m.IV = cloneBytes(v)
			adv = n
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("key data", n)
			}
			m.Key = cloneBytes(v)
			adv = n
		case num == 4 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return wireErr("key type", n)
			}
			m.Type = KeyType(v)
			adv = n
		case num == 5 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return wireErr("security level", n)
			}
			m.Level = SecurityLevel(v)
			adv = n
		case num == 8 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("key control", n)
			}
			m.KeyControl = cloneBytes(v)
			adv = n
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return wireErr("key container field", n)
			}
			m.unknown = append(m.unknown, tag...)
			m.unknown = append(m.unknown, b[:n]...)
			adv = n
		}
		b = b[adv:]
	}
	return nil
}

// LicenseIdentification echoes the request id back and names the server-side
// session.
type LicenseIdentification struct {
	RequestID            []byte
	SessionID            []byte
	PurchaseID           []byte
	Type                 LicenseType
	Version              int32
	ProviderSessionToken []byte

	unknown []byte
}

func (m *LicenseIdentification) Marshal() []byte {
	var b []byte
	if m.RequestID != nil {
		b = appendBytesField(b, 1, m.RequestID)
	}
	if m.SessionID != nil {
		b = appendBytesField(b, 2, m.SessionID)
	}
	if m.PurchaseID != nil {
		b = appendBytesField(b, 3, m.PurchaseID)
	}
	if m.Type != 0 {
		b = appendVarintField(b, 4, uint64(m.Type))
	}
	if m.Version != 0 {
		b = appendVarintField(b, 5, uint64(m.Version))
	}
	if m.ProviderSessionToken != nil {
		b = appendBytesField(b, 6, m.ProviderSessionToken)
	}
	return append(b, m.unknown...)
}

func (m *LicenseIdentification) Unmarshal(b []byte) error {
	*m = LicenseIdentification{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return wireErr("license identification tag", n)
		}
		tag := b[:n]
		b = b[n:]
		var adv int
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("request id", n)
			}
			m.RequestID = cloneBytes(v)
			adv = n
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("session id", n)
			}
			m.SessionID = cloneBytes(v)
			adv = n
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("purchase id", n)
			}
			m.PurchaseID = cloneBytes(v)
			adv = n
		case num == 4 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return wireErr("license type", n)
			}
			m.Type = LicenseType(v)
			adv = n
		case num == 5 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return wireErr("version", n)
			}
			m.Version = int32(v)
			adv = n
		case num == 6 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("provider session token", n)
			}
			m.ProviderSessionToken = cloneBytes(v)
			adv = n
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return wireErr("license identification field", n)
			}
			m.unknown = append(m.unknown, tag...)
			m.unknown = append(m.unknown, b[:n]...)
			adv = n
		}
		b = b[adv:]
	}
	return nil
}
