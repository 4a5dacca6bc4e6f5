package wvproto

import (
	"bytes"
	"errors"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestSignedMessageRoundTrip(t *testing.T) {
	in := &SignedMessage{
		Type:       MessageTypeLicense,
		Msg:        []byte("payload"),
		Signature:  bytes.Repeat([]byte{0xAB}, 32),
		SessionKey: bytes.Repeat([]byte{0x01}, 256),
	}

	out := &SignedMessage{}
	if err := out.Unmarshal(in.Marshal()); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Type != in.Type {
		t.Errorf("type = %v, want %v", out.Type, in.Type)
	}
	if !bytes.Equal(out.Msg, in.Msg) || !bytes.Equal(out.Signature, in.Signature) || !bytes.Equal(out.SessionKey, in.SessionKey) {
		t.Errorf("payload fields did not survive round trip")
	}
}

func TestLicenseRequestRoundTrip(t *testing.T) {
	in := &LicenseRequest{
		ClientID: []byte("opaque client id blob"),
		ContentID: &ContentIdentification{
			WidevinePsshData: &PsshRequestData{
				PsshData:    [][]byte{{0x12, 0x10, 0xAA}},
				LicenseType: LicenseTypeStreaming,
				RequestID:   []byte("0123456789ABCDEF"),
			},
		},
		Type:            RequestTypeNew,
		RequestTime:     1700000000,
		ProtocolVersion: ProtocolVersion21,
		KeyControlNonce: 0xDEADBEEF,
	}

	out := &LicenseRequest{}
	if err := out.Unmarshal(in.Marshal()); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !bytes.Equal(out.ClientID, in.ClientID) {
		t.Errorf("client id did not survive round trip")
	}
	if out.ContentID == nil || out.ContentID.WidevinePsshData == nil {
		t.Fatal("content id missing after round trip")
	}
	pssh := out.ContentID.WidevinePsshData
	if len(pssh.PsshData) != 1 || !bytes.Equal(pssh.PsshData[0], []byte{0x12, 0x10, 0xAA}) {
		t.Errorf("pssh data = %x", pssh.PsshData)
	}
	if pssh.LicenseType != LicenseTypeStreaming {
		t.Errorf("license type = %v", pssh.LicenseType)
	}
	if out.RequestTime != in.RequestTime || out.KeyControlNonce != in.KeyControlNonce {
		t.Errorf("scalar fields did not survive round trip")
	}
	if out.ProtocolVersion != ProtocolVersion21 {
		t.Errorf("protocol version = %v", out.ProtocolVersion)
	}
}

func TestLicenseRoundTrip(t *testing.T) {
	in := &License{
		ID: &LicenseIdentification{
			RequestID: []byte("req"),
			SessionID: []byte("sess"),
			Type:      LicenseTypeStreaming,
			Version:   1,
		},
		Keys: []*KeyContainer{
			{
				ID:   []byte("0123456789abcdef"),
				IV:   bytes.Repeat([]byte{0x02}, 16),
				Key:  bytes.Repeat([]byte{0x03}, 32),
				Type: KeyTypeContent,
			},
			{
				Type:       KeyTypeSigning,
				IV:         bytes.Repeat([]byte{0x04}, 16),
				Key:        bytes.Repeat([]byte{0x05}, 48),
				KeyControl: []byte{0x0A, 0x01, 0xFF},
			},
		},
		LicenseStartTime:           1700000000,
		PlatformVerificationStatus: PlatformSoftwareVerified,
	}

	out := &License{}
	if err := out.Unmarshal(in.Marshal()); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(out.Keys) != 2 {
		t.Fatalf("got %d key containers, want 2", len(out.Keys))
	}
	if out.Keys[0].Type != KeyTypeContent || !bytes.Equal(out.Keys[0].ID, in.Keys[0].ID) {
		t.Errorf("first container = %+v", out.Keys[0])
	}
	if out.Keys[1].Type != KeyTypeSigning || !bytes.Equal(out.Keys[1].KeyControl, in.Keys[1].KeyControl) {
		t.Errorf("second container = %+v", out.Keys[1])
	}
	if out.ID == nil || !bytes.Equal(out.ID.SessionID, []byte("sess")) {
		t.Errorf("license id did not survive round trip")
	}
	if out.PlatformVerificationStatus != PlatformSoftwareVerified {
		t.Errorf("platform verification = %v", out.PlatformVerificationStatus)
	}
}

func TestUnknownFieldsPreserved(t *testing.T) {
	msg := (&SignedMessage{Type: MessageTypeLicense, Msg: []byte("m")}).Marshal()

	// A field this decoder does not know about (number 9, varint).
	extra := protowire.AppendTag(nil, 9, protowire.VarintType)
	extra = protowire.AppendVarint(extra, 42)
	msg = append(msg, extra...)

	out := &SignedMessage{}
	if err := out.Unmarshal(msg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !bytes.Contains(out.Marshal(), extra) {
		t.Error("unknown field dropped on re-marshal")
	}
}

func TestTruncatedMessage(t *testing.T) {
	full := (&SignedMessage{
		Type:      MessageTypeLicense,
		Msg:       bytes.Repeat([]byte{0x55}, 64),
		Signature: bytes.Repeat([]byte{0x66}, 32),
	}).Marshal()

	// Every strict prefix must either decode cleanly (fields are optional)
	// or fail with ErrMalformed. It must never panic.
	for i := 0; i < len(full); i++ {
		out := &SignedMessage{}
		if err := out.Unmarshal(full[:i]); err != nil && !errors.Is(err, ErrMalformed) {
			t.Fatalf("prefix %d: unexpected error %v", i, err)
		}
	}
}

func TestOversizedLengthPrefix(t *testing.T) {
	// Field 2, length-delimited, declared length far beyond the buffer.
	b := protowire.AppendTag(nil, 2, protowire.BytesType)
	b = protowire.AppendVarint(b, 1<<40)
	b = append(b, 0x00)

	out := &SignedMessage{}
	err := out.Unmarshal(b)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
	if out.Msg != nil {
		t.Error("decoder allocated payload for bogus length")
	}
}

func TestBadVarint(t *testing.T) {
	// Tag for field 1 varint, then ten continuation bytes with no terminator.
	b := protowire.AppendTag(nil, 1, protowire.VarintType)
	b = append(b, bytes.Repeat([]byte{0x80}, 11)...)

	out := &SignedMessage{}
	if err := out.Unmarshal(b); !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestCertificateRoundTrip(t *testing.T) {
	cert := &DrmCertificate{
		Type:         CertificateTypeService,
		SerialNumber: bytes.Repeat([]byte{0x11}, 16),
		PublicKey:    bytes.Repeat([]byte{0x22}, 270),
		ProviderID:   "license.widevine.com",
	}
	signed := &SignedDrmCertificate{
		DrmCertificate: cert.Marshal(),
		Signature:      bytes.Repeat([]byte{0x33}, 384),
	}

	outSigned := &SignedDrmCertificate{}
	if err := outSigned.Unmarshal(signed.Marshal()); err != nil {
		t.Fatalf("Unmarshal signed: %v", err)
	}
	outCert := &DrmCertificate{}
	if err := outCert.Unmarshal(outSigned.DrmCertificate); err != nil {
		t.Fatalf("Unmarshal cert: %v", err)
	}
	if outCert.ProviderID != cert.ProviderID || !bytes.Equal(outCert.PublicKey, cert.PublicKey) {
		t.Errorf("certificate did not survive round trip")
	}
}

func TestWidevinePsshDataRoundTrip(t *testing.T) {
	in := &WidevinePsshData{
		KeyIDs:           [][]byte{bytes.Repeat([]byte{0x07}, 16)},
		Provider:         "someprovider",
		ContentID:        []byte("content"),
		ProtectionScheme: 0x63656E63, // "cenc"
	}

	out := &WidevinePsshData{}
	if err := out.Unmarshal(in.Marshal()); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(out.KeyIDs) != 1 || !bytes.Equal(out.KeyIDs[0], in.KeyIDs[0]) {
		t.Errorf("key ids = %x", out.KeyIDs)
	}
	if out.Provider != in.Provider || out.ProtectionScheme != in.ProtectionScheme {
		t.Errorf("fields did not survive round trip")
	}
}
