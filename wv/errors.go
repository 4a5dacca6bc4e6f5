package wv

import (
	"errors"

	wvpb "github.com/wvkit/gowvcdm/wv/proto"
)

var (
	// ErrInvalidDevice means the provisioned device material is missing or
	// unusable. Fatal configuration error, not a protocol error.
	ErrInvalidDevice = errors.New("invalid device configuration")

	// ErrMalformedMessage is returned for wire decode failures.
	ErrMalformedMessage = wvpb.ErrMalformed

	// ErrMalformedCertificate means a service certificate is missing
	// required fields.
	ErrMalformedCertificate = errors.New("malformed certificate")

	// ErrSignatureInvalid means certificate or response verification
	// failed. Always fatal to the session; never retried.
	ErrSignatureInvalid = errors.New("signature invalid")

	// ErrDecryptionFailed covers every RSA-OAEP and AES decryption
	// failure. Deliberately opaque: padding and format errors are not
	// distinguished, so a peer cannot use the error as an oracle.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrPrivacyModeRequiresCert is returned when a privacy-mode request
	// is built without a service certificate set on the session.
	ErrPrivacyModeRequiresCert = errors.New("privacy mode requires a service certificate")

	// ErrNotReady is returned by Keys before a response has been ingested.
	ErrNotReady = errors.New("session keys not ready")

	// ErrInvalidStateTransition is returned when a session operation is
	// called out of sequence.
	ErrInvalidStateTransition = errors.New("invalid session state transition")

	// ErrSessionNotFound is returned by CDM lookups for unknown ids.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTooManySessions is returned by OpenSession at the session cap.
	ErrTooManySessions = errors.New("too many CDM sessions")
)
