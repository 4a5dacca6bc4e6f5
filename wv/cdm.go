package wv

import (
	"crypto/rsa"
	"crypto/sha1"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	wvpb "github.com/wvkit/gowvcdm/wv/proto"
)

const maxSessions = 16

// CDM implements the client side of the license protocol for one device.
// The device is shared read-only by all sessions; each session owns its own
// key material. Methods are safe to call from multiple goroutines as long
// as each session is driven by one goroutine at a time.
type CDM struct {
	device *Device
	now    func() time.Time

	randMu sync.Mutex
	rand   *rand.Rand

	mu       sync.Mutex
	sessions map[string]*Session
}

type CDMOption func(*CDM)

func defaultCDMOptions() []CDMOption {
	return []CDMOption{
		WithRandom(rand.NewSource(time.Now().UnixNano())),
		WithNow(time.Now),
	}
}

// WithRandom sets the random source of the CDM.
func WithRandom(source rand.Source) CDMOption {
	return func(c *CDM) {
		c.rand = rand.New(source)
	}
}

// WithNow sets the time now source of the CDM.
func WithNow(now func() time.Time) CDMOption {
	return func(c *CDM) {
		c.now = now
	}
}

// NewCDM creates a new CDM.
//
// Get device by calling NewDevice.
func NewCDM(device *Device, opts ...CDMOption) *CDM {
	if device == nil {
		panic("device cannot be nil")
	}

	c := &CDM{
		device:   device,
		sessions: make(map[string]*Session),
	}

	for _, opt := range defaultCDMOptions() {
		opt(c)
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Device returns the device the CDM was opened with.
func (c *CDM) Device() *Device {
	return c.device
}

// OpenSession opens a new session with a fresh random session id.
func (c *CDM) OpenSession() (*Session, error) {
	session := &Session{
		cdm:   c,
		id:    c.randomBytes(16),
		state: SessionOpened,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sessions) >= maxSessions {
		return nil, ErrTooManySessions
	}
	c.sessions[session.HexId()] = session

	return session, nil
}

// GetSession looks a session up by id.
func (c *CDM) GetSession(sessionId []byte) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[fmt.Sprintf("%x", sessionId)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// CloseSession wipes a session's key material and removes it.
func (c *CDM) CloseSession(sessionId []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := fmt.Sprintf("%x", sessionId)
	s, ok := c.sessions[key]
	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	delete(c.sessions, key)
	return nil
}

// SetServiceCertificate sets the service certificate of a session.
func (c *CDM) SetServiceCertificate(sessionId []byte, cert []byte) (*wvpb.DrmCertificate, error) {
	s, err := c.GetSession(sessionId)
	if err != nil {
		return nil, err
	}
	return s.SetServiceCertificate(cert)
}

// GetServiceCertificate returns the service certificate of a session.
func (c *CDM) GetServiceCertificate(sessionId []byte) (*wvpb.DrmCertificate, error) {
	s, err := c.GetSession(sessionId)
	if err != nil {
		return nil, err
	}
	return s.ServiceCertificate(), nil
}

// GetLicenseChallenge builds the signed license challenge of a session for
// the given PSSH.
//
// Set privacyMode to true to enable privacy mode; the session must carry a
// service certificate.
func (c *CDM) GetLicenseChallenge(sessionId []byte, pssh *PSSH, typ wvpb.LicenseType, privacyMode bool) ([]byte, error) {
	s, err := c.GetSession(sessionId)
	if err != nil {
		return nil, err
	}
	challenge, err := s.BuildRequest(pssh, typ, privacyMode)
	if err != nil {
		return nil, fmt.Errorf("get license challenge: %w", err)
	}
	return challenge, nil
}

// ParseLicense ingests a license response into a session.
func (c *CDM) ParseLicense(sessionId []byte, license []byte) error {
	s, err := c.GetSession(sessionId)
	if err != nil {
		return err
	}
	if err := s.IngestResponse(license); err != nil {
		return fmt.Errorf("parse license: %w", err)
	}
	return nil
}

// GetKeys returns a session's decrypted keys, filtered by type when typ is
// non-zero.
func (c *CDM) GetKeys(sessionId []byte, typ wvpb.KeyType) ([]*Key, error) {
	s, err := c.GetSession(sessionId)
	if err != nil {
		return nil, err
	}
	all, err := s.Keys()
	if err != nil {
		return nil, err
	}

	keys := make([]*Key, 0, len(all))
	for _, key := range all {
		if typ != 0 && key.Type != typ {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// encryptClientID wraps the device client id for privacy mode: the blob is
// AES-CBC-encrypted under a fresh privacy key, and the privacy key is
// RSA-OAEP-encrypted under the service certificate public key.
func (c *CDM) encryptClientID(cert *wvpb.DrmCertificate) (*wvpb.EncryptedClientIdentification, error) {
	privacyKey := c.randomBytes(16)
	privacyIV := c.randomBytes(16)
	defer zero(privacyKey)

	encryptedClientID, err := EncryptAESCBC(privacyKey, privacyIV, c.device.ClientID())
	if err != nil {
		return nil, fmt.Errorf("encrypt client id: %w", err)
	}

	publicKey, err := ParsePublicKey(cert.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	encryptedPrivacyKey, err := rsa.EncryptOAEP(sha1.New(), c.reader(), publicKey, privacyKey, nil)
	if err != nil {
		return nil, fmt.Errorf("encrypt oaep: %w", err)
	}

	return &wvpb.EncryptedClientIdentification{
		ProviderID:                     cert.ProviderID,
		ServiceCertificateSerialNumber: cert.SerialNumber,
		EncryptedClientID:              encryptedClientID,
		EncryptedClientIDIV:            privacyIV,
		EncryptedPrivacyKey:            encryptedPrivacyKey,
	}, nil
}

func (c *CDM) randomBytes(length int) []byte {
	c.randMu.Lock()
	defer c.randMu.Unlock()
	r := make([]byte, length)
	c.rand.Read(r)
	return r
}

func (c *CDM) randomUint32() uint32 {
	c.randMu.Lock()
	defer c.randMu.Unlock()
	return c.rand.Uint32()
}

// reader returns an io.Reader over the CDM random source, serialized so
// concurrent sessions can sign and encrypt at the same time.
func (c *CDM) reader() io.Reader {
	return &lockedReader{c: c}
}

type lockedReader struct {
	c *CDM
}

func (l *lockedReader) Read(p []byte) (int, error) {
	l.c.randMu.Lock()
	defer l.c.randMu.Unlock()
	return l.c.rand.Read(p)
}
