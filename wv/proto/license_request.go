package wvproto

import "google.golang.org/protobuf/encoding/protowire"

// LicenseRequest is the unsigned payload of an outbound challenge. ClientID
// carries the provisioned client identification blob verbatim; the blob is
// authority-issued and opaque to this client, so it is never re-parsed here.
// In privacy mode EncryptedClientID replaces it.
type LicenseRequest struct {
	ClientID          []byte
	ContentID         *ContentIdentification
	Type              RequestType
	RequestTime       int64
	ProtocolVersion   ProtocolVersion
	KeyControlNonce   uint32
	EncryptedClientID *EncryptedClientIdentification

	unknown []byte
}

func (m *LicenseRequest) Marshal() []byte {
	var b []byte
	if m.ClientID != nil {
		b = appendBytesField(b, 1, m.ClientID)
	}
	if m.ContentID != nil {
		b = appendBytesField(b, 2, m.ContentID.Marshal())
	}
	if m.Type != 0 {
		b = appendVarintField(b, 3, uint64(m.Type))
	}
	if m.RequestTime != 0 {
		b = appendVarintField(b, 4, uint64(m.RequestTime))
	}
	if m.ProtocolVersion != 0 {
		b = appendVarintField(b, 6, uint64(m.ProtocolVersion))
	}
	if m.KeyControlNonce != 0 {
		b = appendVarintField(b, 7, uint64(m.KeyControlNonce))
	}
	if m.EncryptedClientID != nil {
		b = appendBytesField(b, 8, m.EncryptedClientID.Marshal())
	}
	return append(b, m.unknown...)
}

func (m *LicenseRequest) Unmarshal(b []byte) error {
	*m = LicenseRequest{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return wireErr("license request tag", n)
		}
		tag := b[:n]
		b = b[n:]
		var adv int
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("client id", n)
			}
			m.ClientID = cloneBytes(v)
			adv = n
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("content id", n)
			}
			m.ContentID = new(ContentIdentification)
			if err := m.ContentID.Unmarshal(v); err != nil {
				return err
			}
			adv = n
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return wireErr("request type", n)
			}
			m.Type = RequestType(v)
			adv = n
		case num == 4 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return wireErr("request time", n)
			}
			m.RequestTime = int64(v)
			adv = n
		case num == 6 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return wireErr("protocol version", n)
			}
			m.ProtocolVersion = ProtocolVersion(v)
			adv = n
		case num == 7 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return wireErr("key control nonce", n)
			}
			m.KeyControlNonce = uint32(v)
			adv = n
		case num == 8 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("encrypted client id", n)
			}
			m.EncryptedClientID = new(EncryptedClientIdentification)
			if err := m.EncryptedClientID.Unmarshal(v); err != nil {
				return err
			}
			adv = n
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return wireErr("license request field", n)
			}
			m.unknown = append(m.unknown, tag...)
			m.unknown = append(m.unknown, b[:n]...)
			adv = n
		}
		b = b[adv:]
	}
	return nil
}

// ContentIdentification selects what the request asks a license for. Only
// the PSSH-data variant is produced by this client.
type ContentIdentification struct {
	WidevinePsshData *PsshRequestData

	unknown []byte
}

func (m *ContentIdentification) Marshal() []byte {
	var b []byte
	if m.WidevinePsshData != nil {
		b = appendBytesField(b, 1, m.WidevinePsshData.Marshal())
	}
	return append(b, m.unknown...)
}

func (m *ContentIdentification) Unmarshal(b []byte) error {
	*m = ContentIdentification{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return wireErr("content identification tag", n)
		}
		tag := b[:n]
		b = b[n:]
		var adv int
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("pssh variant", n)
			}
			m.WidevinePsshData = new(PsshRequestData)
			if err := m.WidevinePsshData.Unmarshal(v); err != nil {
				return err
			}
			adv = n
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return wireErr("content identification field", n)
			}
			m.unknown = append(m.unknown, tag...)
			m.unknown = append(m.unknown, b[:n]...)
			adv = n
		}
		b = b[adv:]
	}
	return nil
}

// PsshRequestData carries the raw PSSH payloads the challenge covers.
type PsshRequestData struct {
	PsshData    [][]byte
	LicenseType LicenseType
	RequestID   []byte

	unknown []byte
}

func (m *PsshRequestData) Marshal() []byte {
	var b []byte
	for _, p := range m.PsshData {
		b = appendBytesField(b, 1, p)
	}
	if m.LicenseType != 0 {
		b = appendVarintField(b, 2, uint64(m.LicenseType))
	}
	if m.RequestID != nil {
		b = appendBytesField(b, 3, m.RequestID)
	}
	return append(b, m.unknown...)
}

func (m *PsshRequestData) Unmarshal(b []byte) error {
	*m = PsshRequestData{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return wireErr("pssh request data tag", n)
		}
		tag := b[:n]
		b = b[n:]
		var adv int
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("pssh data", n)
			}
			m.PsshData = append(m.PsshData, cloneBytes(v))
			adv = n
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return wireErr("license type", n)
			}
			m.LicenseType = LicenseType(v)
			adv = n
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("request id", n)
			}
			m.RequestID = cloneBytes(v)
			adv = n
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return wireErr("pssh request data field", n)
			}
			m.unknown = append(m.unknown, tag...)
			m.unknown = append(m.unknown, b[:n]...)
			adv = n
		}
		b = b[adv:]
	}
	return nil
}

// EncryptedClientIdentification is the privacy-mode wrapping of the client
// identification blob: the blob AES-CBC-encrypted under a fresh privacy key,
// and the privacy key RSA-OAEP-encrypted under the service certificate.
type EncryptedClientIdentification struct {
	ProviderID                     string
	ServiceCertificateSerialNumber []byte
	EncryptedClientID              []byte
	EncryptedClientIDIV            []byte
	EncryptedPrivacyKey            []byte

	unknown []byte
}

func (m *EncryptedClientIdentification) Marshal() []byte {
	var b []byte
	if m.ProviderID != "" {
		b = appendStringField(b, 1, m.ProviderID)
	}
	if m.ServiceCertificateSerialNumber != nil {
		b = appendBytesField(b, 2, m.ServiceCertificateSerialNumber)
	}
	if m.EncryptedClientID != nil {
		b = appendBytesField(b, 3, m.EncryptedClientID)
	}
	if m.EncryptedClientIDIV != nil {
		b = appendBytesField(b, 4, m.EncryptedClientIDIV)
	}
	if m.EncryptedPrivacyKey != nil {
		b = appendBytesField(b, 5, m.EncryptedPrivacyKey)
	}
	return append(b, m.unknown...)
}

func (m *EncryptedClientIdentification) Unmarshal(b []byte) error {
	*m = EncryptedClientIdentification{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return wireErr("encrypted client id tag", n)
		}
		tag := b[:n]
		b = b[n:]
		var adv int
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("provider id", n)
			}
			m.ProviderID = string(v)
			adv = n
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("certificate serial", n)
			}
			m.ServiceCertificateSerialNumber = cloneBytes(v)
			adv = n
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("encrypted client id", n)
			}
			m.EncryptedClientID = cloneBytes(v)
			adv = n
		case num == 4 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("encrypted client id iv", n)
			}
			m.EncryptedClientIDIV = cloneBytes(v)
			adv = n
		case num == 5 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireErr("encrypted privacy key", n)
			}
			m.EncryptedPrivacyKey = cloneBytes(v)
			adv = n
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return wireErr("encrypted client id field", n)
			}
			m.unknown = append(m.unknown, tag...)
			m.unknown = append(m.unknown, b[:n]...)
			adv = n
		}
		b = b[adv:]
	}
	return nil
}
