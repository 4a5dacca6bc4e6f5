package wv

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"errors"
	mrand "math/rand"
	"testing"
	"time"

	wvpb "github.com/wvkit/gowvcdm/wv/proto"
)

func TestOpenSession(t *testing.T) {
	cdm := NewCDM(testDevice(t))

	a, err := cdm.OpenSession()
	if err != nil {
		t.Fatal(err)
	}
	b, err := cdm.OpenSession()
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Id()) != 16 {
		t.Fatalf("session id length %d", len(a.Id()))
	}
	if bytes.Equal(a.Id(), b.Id()) {
		t.Fatal("session ids collide")
	}

	got, err := cdm.GetSession(a.Id())
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got != a {
		t.Fatal("GetSession returned a different session")
	}
}

func TestSessionCap(t *testing.T) {
	cdm := NewCDM(testDevice(t))

	var last *Session
	for i := 0; i < maxSessions; i++ {
		s, err := cdm.OpenSession()
		if err != nil {
			t.Fatalf("session %d: %v", i, err)
		}
		last = s
	}
	if _, err := cdm.OpenSession(); !errors.Is(err, ErrTooManySessions) {
		t.Fatalf("got %v, want ErrTooManySessions", err)
	}

	if err := cdm.CloseSession(last.Id()); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if _, err := cdm.OpenSession(); err != nil {
		t.Fatalf("open after close: %v", err)
	}
}

func TestCloseSession(t *testing.T) {
	cdm := NewCDM(testDevice(t))
	s, err := cdm.OpenSession()
	if err != nil {
		t.Fatal(err)
	}

	if err := cdm.CloseSession(s.Id()); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if s.State() != SessionClosed {
		t.Fatalf("state %v", s.State())
	}
	if _, err := cdm.GetSession(s.Id()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("got %v, want ErrSessionNotFound", err)
	}
	if err := cdm.CloseSession(s.Id()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("double close: %v", err)
	}
}

func TestCDMDeterministicWithSeededRandom(t *testing.T) {
	now := func() time.Time { return time.Unix(1700000000, 0) }

	build := func() []byte {
		cdm := NewCDM(testDevice(t), WithRandom(mrand.NewSource(7)), WithNow(now))
		s, err := cdm.OpenSession()
		if err != nil {
			t.Fatal(err)
		}
		challenge, err := s.BuildRequest(testPSSH(t), wvpb.LicenseTypeStreaming, false)
		if err != nil {
			t.Fatal(err)
		}
		signed := &wvpb.SignedMessage{}
		if err := signed.Unmarshal(challenge); err != nil {
			t.Fatal(err)
		}
		// The PSS signature is salted from the same source but the
		// unsigned request must be identical.
		return signed.Msg
	}

	if !bytes.Equal(build(), build()) {
		t.Fatal("seeded CDMs built different requests")
	}
}

func TestGetKeysFiltersByType(t *testing.T) {
	cdm := NewCDM(testDevice(t))
	s, err := cdm.OpenSession()
	if err != nil {
		t.Fatal(err)
	}
	challenge, err := cdm.GetLicenseChallenge(s.Id(), testPSSH(t), wvpb.LicenseTypeStreaming, false)
	if err != nil {
		t.Fatalf("GetLicenseChallenge: %v", err)
	}

	signing := testServerKey{
		id:  bytes.Repeat([]byte{0x33}, 16),
		key: bytes.Repeat([]byte{0xE0}, 32),
		typ: wvpb.KeyTypeSigning,
	}
	resp := buildLicenseResponse(t, cdm.Device(), challenge, []testServerKey{testContentKey, signing})
	if err := cdm.ParseLicense(s.Id(), resp); err != nil {
		t.Fatalf("ParseLicense: %v", err)
	}

	all, err := cdm.GetKeys(s.Id(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d keys, want 2", len(all))
	}

	content, err := cdm.GetKeys(s.Id(), wvpb.KeyTypeContent)
	if err != nil {
		t.Fatal(err)
	}
	if len(content) != 1 || content[0].Type != wvpb.KeyTypeContent {
		t.Fatalf("content filter: %+v", content)
	}
	if content[0].KeyIdHex() != "11111111111111111111111111111111" {
		t.Fatalf("key id %s", content[0].KeyIdHex())
	}
}

func TestCDMWrappersRejectUnknownSession(t *testing.T) {
	cdm := NewCDM(testDevice(t))
	bogus := []byte("nosuchsession")

	if _, err := cdm.GetLicenseChallenge(bogus, testPSSH(t), wvpb.LicenseTypeStreaming, false); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("GetLicenseChallenge: %v", err)
	}
	if err := cdm.ParseLicense(bogus, []byte{1}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("ParseLicense: %v", err)
	}
	if _, err := cdm.GetKeys(bogus, 0); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("GetKeys: %v", err)
	}
	if _, err := cdm.SetServiceCertificate(bogus, nil); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("SetServiceCertificate: %v", err)
	}
}

func TestEncryptClientIDRoundTrip(t *testing.T) {
	serviceKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	cert := &wvpb.DrmCertificate{
		Type:         wvpb.CertificateTypeService,
		SerialNumber: []byte{1, 2, 3, 4},
		PublicKey:    x509.MarshalPKCS1PublicKey(&serviceKey.PublicKey),
		ProviderID:   "service.example.com",
	}

	cdm := NewCDM(testDevice(t))
	enc, err := cdm.encryptClientID(cert)
	if err != nil {
		t.Fatalf("encryptClientID: %v", err)
	}

	privacyKey, err := rsa.DecryptOAEP(sha1.New(), nil, serviceKey, enc.EncryptedPrivacyKey, nil)
	if err != nil {
		t.Fatalf("unwrap privacy key: %v", err)
	}
	if len(privacyKey) != 16 {
		t.Fatalf("privacy key length %d", len(privacyKey))
	}

	clientID, err := DecryptAESCBC(privacyKey, enc.EncryptedClientIDIV, enc.EncryptedClientID)
	if err != nil {
		t.Fatalf("decrypt client id: %v", err)
	}
	if !bytes.Equal(clientID, testClientID) {
		t.Fatal("client id round trip mismatch")
	}

	// A second wrap uses a fresh key and IV.
	enc2, err := cdm.encryptClientID(cert)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(enc.EncryptedClientID, enc2.EncryptedClientID) {
		t.Fatal("privacy key reuse")
	}
}
