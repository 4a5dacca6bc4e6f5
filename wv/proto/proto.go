// Package wvproto models the nested tagged binary messages of the Widevine
// license protocol: the signed envelope, license requests and responses, key
// containers and DRM certificates.
//
// Messages are encoded protobuf-style (field number + wire type, varint or
// length-delimited payloads) on top of protowire. Decoding is defensive:
// malformed varints and length prefixes fail with ErrMalformed instead of
// panicking, and unknown fields are preserved verbatim so a decoded message
// re-marshals to equivalent bytes.
package wvproto

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is returned for any wire-level decode failure.
var ErrMalformed = errors.New("malformed message")

type MessageType int32

const (
	MessageTypeLicenseRequest            MessageType = 1
	MessageTypeLicense                   MessageType = 2
	MessageTypeErrorResponse             MessageType = 3
	MessageTypeServiceCertificateRequest MessageType = 4
	MessageTypeServiceCertificate        MessageType = 5
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeLicenseRequest:
		return "LICENSE_REQUEST"
	case MessageTypeLicense:
		return "LICENSE"
	case MessageTypeErrorResponse:
		return "ERROR_RESPONSE"
	case MessageTypeServiceCertificateRequest:
		return "SERVICE_CERTIFICATE_REQUEST"
	case MessageTypeServiceCertificate:
		return "SERVICE_CERTIFICATE"
	default:
		return fmt.Sprintf("MESSAGE_TYPE(%d)", int32(t))
	}
}

type RequestType int32

const (
	RequestTypeNew     RequestType = 1
	RequestTypeRenewal RequestType = 2
	RequestTypeRelease RequestType = 3
)

type LicenseType int32

const (
	LicenseTypeStreaming LicenseType = 1
	LicenseTypeOffline   LicenseType = 2
	LicenseTypeAutomatic LicenseType = 3
)

// LicenseTypeValue maps wire names to license types, for request routing.
var LicenseTypeValue = map[string]LicenseType{
	"STREAMING": LicenseTypeStreaming,
	"OFFLINE":   LicenseTypeOffline,
	"AUTOMATIC": LicenseTypeAutomatic,
}

func (t LicenseType) String() string {
	switch t {
	case LicenseTypeStreaming:
		return "STREAMING"
	case LicenseTypeOffline:
		return "OFFLINE"
	case LicenseTypeAutomatic:
		return "AUTOMATIC"
	default:
		return fmt.Sprintf("LICENSE_TYPE(%d)", int32(t))
	}
}

type ProtocolVersion int32

const (
	ProtocolVersion20 ProtocolVersion = 20
	ProtocolVersion21 ProtocolVersion = 21
	ProtocolVersion22 ProtocolVersion = 22
)

type KeyType int32

const (
	KeyTypeSigning         KeyType = 1
	KeyTypeContent         KeyType = 2
	KeyTypeKeyControl      KeyType = 3
	KeyTypeOperatorSession KeyType = 4
	KeyTypeEntitlement     KeyType = 5
	KeyTypeOEMContent      KeyType = 6
)

// KeyTypeValue maps wire names to key types.
var KeyTypeValue = map[string]KeyType{
	"SIGNING":          KeyTypeSigning,
	"CONTENT":          KeyTypeContent,
	"KEY_CONTROL":      KeyTypeKeyControl,
	"OPERATOR_SESSION": KeyTypeOperatorSession,
	"ENTITLEMENT":      KeyTypeEntitlement,
	"OEM_CONTENT":      KeyTypeOEMContent,
}

func (t KeyType) String() string {
	switch t {
	case KeyTypeSigning:
		return "SIGNING"
	case KeyTypeContent:
		return "CONTENT"
	case KeyTypeKeyControl:
		return "KEY_CONTROL"
	case KeyTypeOperatorSession:
		return "OPERATOR_SESSION"
	case KeyTypeEntitlement:
		return "ENTITLEMENT"
	case KeyTypeOEMContent:
		return "OEM_CONTENT"
	default:
		return fmt.Sprintf("KEY_TYPE(%d)", int32(t))
	}
}

type CertificateType int32

const (
	CertificateTypeRoot        CertificateType = 0
	CertificateTypeDeviceModel CertificateType = 1
	CertificateTypeDevice      CertificateType = 2
	CertificateTypeService     CertificateType = 3
	CertificateTypeProvisioner CertificateType = 4
)

type SecurityLevel int32

const (
	SecurityLevelSWSecureCrypto SecurityLevel = 1
	SecurityLevelSWSecureDecode SecurityLevel = 2
	SecurityLevelHWSecureCrypto SecurityLevel = 3
	SecurityLevelHWSecureDecode SecurityLevel = 4
	SecurityLevelHWSecureAll    SecurityLevel = 5
)

type PlatformVerificationStatus int32

const (
	PlatformUnverified                    PlatformVerificationStatus = 0
	PlatformTamperDetected                PlatformVerificationStatus = 1
	PlatformSoftwareVerified              PlatformVerificationStatus = 2
	PlatformHardwareVerified              PlatformVerificationStatus = 3
	PlatformNoVerification                PlatformVerificationStatus = 4
	PlatformSecureStorageSoftwareVerified PlatformVerificationStatus = 5
)

func wireErr(what string, n int) error {
	return fmt.Errorf("%w: %s: %v", ErrMalformed, what, protowire.ParseError(n))
}

func cloneBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}
