package wvproto

import "google.golang.org/protobuf/encoding/protowire"

// SignedDrmCertificate wraps a serialized DrmCertificate with the signature
// extending trust to it. The signature covers exactly the DrmCertificate
// bytes as they appeared on the wire, so they are kept serialized here.
type SignedDrmCertificate struct {
	DrmCertificate []byte
	Signature      []byte

	unknown []byte
}

func (m *SignedDrmCertificate) Marshal() []byte {
	var b []byte
	if m.DrmCertificate != nil {
		b = appendBytesField(b, 1, m.DrmCertificate)
	}
	if m.Signature != nil {
		b = appendBytesField(b, 2, m.Signature)
	}
	return append(b, m.unknown...)
}

func (m *SignedDrmCertificate) Unmarshal(b []byte) error {
	*m = SignedDrmCertificate{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return wireErr("signed certificate tag", n)
		}
		tag := b[:n]
		b = b[n:]
		var adv int
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("certificate bytes", n)
			}
			m.DrmCertificate = cloneBytes(v)
			adv = n
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("certificate signature", n)
			}
			m.Signature = cloneBytes(v)
			adv = n
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return wireErr("signed certificate field", n)
			}
			m.unknown = append(m.unknown, tag...)
			m.unknown = append(m.unknown, b[:n]...)
			adv = n
		}
		b = b[adv:]
	}
	return nil
}

// DrmCertificate identifies a signing entity: for service certificates, the
// provider and the RSA public key privacy-mode requests encrypt toward.
type DrmCertificate struct {
	Type                CertificateType
	SerialNumber        []byte
	CreationTimeSeconds uint32
	PublicKey           []byte
	SystemID            uint32
	ProviderID          string

	unknown []byte
}

func (m *DrmCertificate) Marshal() []byte {
	var b []byte
	if m.Type != 0 {
		b = appendVarintField(b, 1, uint64(m.Type))
	}
	if m.SerialNumber != nil {
		b = appendBytesField(b, 2, m.SerialNumber)
	}
	if m.CreationTimeSeconds != 0 {
		b = appendVarintField(b, 3, uint64(m.CreationTimeSeconds))
	}
	if m.PublicKey != nil {
		b = appendBytesField(b, 4, m.PublicKey)
	}
	if m.SystemID != 0 {
		b = appendVarintField(b, 5, uint64(m.SystemID))
	}
	if m.ProviderID != "" {
		b = appendStringField(b, 7, m.ProviderID)
	}
	return append(b, m.unknown...)
}

func (m *DrmCertificate) Unmarshal(b []byte) error {
	*m = DrmCertificate{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return wireErr("certificate tag", n)
		}
		tag := b[:n]
		b = b[n:]
		var adv int
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return wireErr("certificate type", n)
			}
			m.Type = CertificateType(v)
			adv = n
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("serial number", n)
			}
			m.SerialNumber = cloneBytes(v)
			adv = n
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return wireErr("creation time", n)
			}
			m.CreationTimeSeconds = uint32(v)
			adv = n
		case num == 4 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("public key", n)
			}
			m.PublicKey = cloneBytes(v)
			adv = n
		case num == 5 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return wireErr("system id", n)
			}
			m.SystemID = uint32(v)
			adv = n
		case num == 7 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("provider id", n)
			}
			m.ProviderID = string(v)
			adv = n
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return wireErr("certificate field", n)
			}
			m.unknown = append(m.unknown, tag...)
			m.unknown = append(m.unknown, b[:n]...)
			adv = n
		}
		b = b[adv:]
	}
	return nil
}

// WidevinePsshData is the Widevine payload of a PSSH box.
type WidevinePsshData struct {
	KeyIDs            [][]byte
	Provider          string
	ContentID         []byte
	Policy            string
	CryptoPeriodIndex uint32
	ProtectionScheme  uint32

	unknown []byte
}

func (m *WidevinePsshData) Marshal() []byte {
	var b []byte
	for _, id := range m.KeyIDs {
		b = appendBytesField(b, 2, id)
	}
	if m.Provider != "" {
		b = appendStringField(b, 3, m.Provider)
	}
	if m.ContentID != nil {
		b = appendBytesField(b, 4, m.ContentID)
	}
	if m.Policy != "" {
		b = appendStringField(b, 6, m.Policy)
	}
	if m.CryptoPeriodIndex != 0 {
		b = appendVarintField(b, 7, uint64(m.CryptoPeriodIndex))
	}
	if m.ProtectionScheme != 0 {
		b = appendVarintField(b, 9, uint64(m.ProtectionScheme))
	}
	return append(b, m.unknown...)
}

func (m *WidevinePsshData) Unmarshal(b []byte) error {
	*m = WidevinePsshData{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return wireErr("pssh data tag", n)
		}
		tag := b[:n]
		b = b[n:]
		var adv int
		switch {
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("key id", n)
			}
			m.KeyIDs = append(m.KeyIDs, cloneBytes(v))
			adv = n
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("provider", n)
			}
			m.Provider = string(v)
			adv = n
		case num == 4 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("content id", n)
			}
			m.ContentID = cloneBytes(v)
			adv = n
		case num == 6 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("policy", n)
			}
			m.Policy = string(v)
			adv = n
		case num == 7 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return wireErr("crypto period index", n)
			}
			m.CryptoPeriodIndex = uint32(v)
			adv = n
		case num == 9 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return wireErr("protection scheme", n)
			}
			m.ProtectionScheme = uint32(v)
			adv = n
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return wireErr("pssh data field", n)
			}
			m.unknown = append(m.unknown, tag...)
			m.unknown = append(m.unknown, b[:n]...)
			adv = n
		}
		b = b[adv:]
	}
	return nil
}
