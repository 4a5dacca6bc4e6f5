package wv

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	wvpb "github.com/wvkit/gowvcdm/wv/proto"
)

// SessionState tracks the license exchange of one session.
type SessionState int

const (
	SessionOpened SessionState = iota + 1
	SessionRequestBuilt
	SessionAwaitingResponse
	SessionKeysDerived
	SessionClosed
	SessionFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionOpened:
		return "opened"
	case SessionRequestBuilt:
		return "request built"
	case SessionAwaitingResponse:
		return "awaiting response"
	case SessionKeysDerived:
		return "keys derived"
	case SessionClosed:
		return "closed"
	case SessionFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is one license exchange. A session is owned by a single caller
// and is not safe for concurrent use; independent sessions of the same CDM
// may be driven concurrently. All derived key material is owned exclusively
// by the session and zeroed on Close and on failure.
type Session struct {
	cdm   *CDM
	id    []byte
	state SessionState
	// failure is the error that moved the session to SessionFailed.
	failure error

	serviceCert *wvpb.DrmCertificate

	// rawRequest is the marshalled unsigned license request; the key
	// derivation context, so it must stay byte-exact.
	rawRequest []byte

	keys       *sessionKeys
	contentKey map[string]*Key
}

// Id returns the session id.
func (s *Session) Id() []byte {
	return append([]byte(nil), s.id...)
}

func (s *Session) HexId() string {
	return hex.EncodeToString(s.id)
}

func (s *Session) State() SessionState {
	return s.state
}

// Err returns the error that failed the session, or nil.
func (s *Session) Err() error {
	return s.failure
}

// ServiceCertificate returns the verified service certificate of the
// session, or nil when none has been set.
func (s *Session) ServiceCertificate() *wvpb.DrmCertificate {
	return s.serviceCert
}

// SetServiceCertificate verifies and installs a service certificate for
// privacy mode. Accepts the bare SignedDrmCertificate or a SignedMessage
// wrapping one.
func (s *Session) SetServiceCertificate(raw []byte) (*wvpb.DrmCertificate, error) {
	if s.state == SessionClosed || s.state == SessionFailed {
		return nil, fmt.Errorf("%w: set certificate in state %v", ErrInvalidStateTransition, s.state)
	}

	signed, err := ParseServiceCert(raw)
	if err != nil {
		return nil, fmt.Errorf("parse service cert: %w", err)
	}
	cert, err := VerifyServiceCert(signed)
	if err != nil {
		return nil, fmt.Errorf("verify service cert: %w", err)
	}
	s.serviceCert = cert
	return cert, nil
}

// BuildRequest constructs and signs the license challenge for the given
// PSSH. Valid only once, from the opened state. With privacyMode the client
// identification blob is CBC-encrypted under a fresh key that is
// OAEP-wrapped to the session's service certificate; a certificate must
// have been set first.
func (s *Session) BuildRequest(pssh *PSSH, typ wvpb.LicenseType, privacyMode bool) ([]byte, error) {
	if s.state != SessionOpened {
		return nil, fmt.Errorf("%w: build request in state %v", ErrInvalidStateTransition, s.state)
	}
	if pssh == nil {
		return nil, fmt.Errorf("%w: nil pssh", ErrMalformedMessage)
	}

	c := s.cdm
	req := &wvpb.LicenseRequest{
		Type:            wvpb.RequestTypeNew,
		RequestTime:     c.now().Unix(),
		ProtocolVersion: wvpb.ProtocolVersion21,
		KeyControlNonce: c.randomUint32(),
		ContentID: &wvpb.ContentIdentification{
			WidevinePsshData: &wvpb.PsshRequestData{
				PsshData:    [][]byte{pssh.RawData()},
				LicenseType: typ,
				RequestID: []byte(fmt.Sprintf("%08X%08X0100000000000000",
					c.randomUint32(),
					c.randomUint32())),
			},
		},
	}

	if privacyMode {
		if s.serviceCert == nil {
			return nil, ErrPrivacyModeRequiresCert
		}
		encClientID, err := c.encryptClientID(s.serviceCert)
		if err != nil {
			return nil, fmt.Errorf("encrypt client id: %w", err)
		}
		req.EncryptedClientID = encClientID
	} else {
		req.ClientID = c.device.ClientID()
	}

	reqData := req.Marshal()
	sig, err := c.device.Sign(c.reader(), reqData)
	if err != nil {
		return nil, fmt.Errorf("sign license request: %w", err)
	}

	msg := &wvpb.SignedMessage{
		Type:      wvpb.MessageTypeLicenseRequest,
		Msg:       reqData,
		Signature: sig,
	}

	s.rawRequest = reqData
	s.state = SessionRequestBuilt
	return msg.Marshal(), nil
}

// IngestResponse verifies and absorbs a server response. A service
// certificate message installs the certificate and leaves the session
// waiting; a license message is authenticated, its session key decrypted,
// the session keys derived and the content keys unwrapped. Any failure
// moves the session to the failed state, wipes partial key material, and
// makes the session unusable.
func (s *Session) IngestResponse(raw []byte) error {
	if s.state != SessionRequestBuilt && s.state != SessionAwaitingResponse {
		return fmt.Errorf("%w: ingest response in state %v", ErrInvalidStateTransition, s.state)
	}

	signed := &wvpb.SignedMessage{}
	if err := signed.Unmarshal(raw); err != nil {
		return s.fail(fmt.Errorf("unmarshal signed message: %w", err))
	}

	switch signed.Type {
	case wvpb.MessageTypeServiceCertificate:
		if _, err := s.SetServiceCertificate(signed.Msg); err != nil {
			return s.fail(err)
		}
		s.state = SessionAwaitingResponse
		return nil
	case wvpb.MessageTypeLicense:
		return s.ingestLicense(signed)
	case wvpb.MessageTypeErrorResponse:
		return s.fail(fmt.Errorf("server error response: %x", signed.Msg))
	default:
		return s.fail(fmt.Errorf("%w: unexpected message type %v", ErrMalformedMessage, signed.Type))
	}
}

func (s *Session) ingestLicense(signed *wvpb.SignedMessage) error {
	if len(signed.Msg) == 0 || len(signed.Signature) == 0 || len(signed.SessionKey) == 0 {
		return s.fail(fmt.Errorf("%w: license envelope incomplete", ErrMalformedMessage))
	}

	seed, err := s.cdm.device.DecryptSessionKey(signed.SessionKey)
	if err != nil {
		return s.fail(fmt.Errorf("decrypt session key: %w", err))
	}
	defer zero(seed)
	if len(seed) != sessionKeyLength {
		return s.fail(fmt.Errorf("decrypt session key: %w", ErrDecryptionFailed))
	}

	keys, err := deriveSessionKeys(seed, s.rawRequest)
	if err != nil {
		return s.fail(fmt.Errorf("derive session keys: %w", err))
	}
	ok := false
	defer func() {
		if !ok {
			keys.destroy()
		}
	}()

	// The response is authenticated before any field of it is used.
	mac := hmac.New(sha256.New, keys.macServer)
	mac.Write(signed.Msg)
	if !hmac.Equal(mac.Sum(nil), signed.Signature) {
		return s.fail(fmt.Errorf("license signature: %w", ErrSignatureInvalid))
	}

	license := &wvpb.License{}
	if err := license.Unmarshal(signed.Msg); err != nil {
		return s.fail(fmt.Errorf("unmarshal license: %w", err))
	}

	content := make(map[string]*Key, len(license.Keys))
	for _, kc := range license.Keys {
		if len(kc.Key) == 0 {
			// Key control containers carry no key material.
			continue
		}
		plain, err := DecryptAESCBC(keys.enc, kc.IV, kc.Key)
		if err != nil {
			for _, k := range content {
				zero(k.Key)
			}
			return s.fail(fmt.Errorf("decrypt key container %x: %w", kc.ID, err))
		}
		key := &Key{
			Type:    kc.Type,
			ID:      kc.ID,
			IV:      kc.IV,
			Key:     plain,
			Control: kc.KeyControl,
		}
		content[key.name()] = key
	}

	ok = true
	s.keys = keys
	s.contentKey = content
	s.state = SessionKeysDerived
	return nil
}

// Keys returns the decrypted keys by key id (hex), valid only after a
// license has been ingested. The returned map is owned by the session and
// is wiped on Close.
func (s *Session) Keys() (map[string]*Key, error) {
	if s.state != SessionKeysDerived {
		return nil, fmt.Errorf("%w: session is %v", ErrNotReady, s.state)
	}
	return s.contentKey, nil
}

// Close wipes all derived key material and closes the session. Idempotent.
func (s *Session) Close() {
	if s.state == SessionClosed {
		return
	}
	s.wipe()
	s.state = SessionClosed
}

// fail wipes key material and parks the session in the failed state. The
// original error is kept and returned to the caller.
func (s *Session) fail(err error) error {
	s.wipe()
	s.state = SessionFailed
	s.failure = err
	return err
}

func (s *Session) wipe() {
	if s.keys != nil {
		s.keys.destroy()
		s.keys = nil
	}
	for _, k := range s.contentKey {
		zero(k.Key)
	}
	s.contentKey = nil
}

// MacKeyClient exposes the derived client MAC key for protocol extensions
// that sign client messages after the exchange (e.g. renewal requests).
func (s *Session) MacKeyClient() ([]byte, error) {
	if s.state != SessionKeysDerived {
		return nil, fmt.Errorf("%w: session is %v", ErrNotReady, s.state)
	}
	return s.keys.macClient, nil
}
