package wv

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"sync"

	wvpb "github.com/wvkit/gowvcdm/wv/proto"
)

// ServiceCertificateRequest is the constant request body that asks a license
// server for its service certificate.
var ServiceCertificateRequest = []byte{0x08, 0x04}

// rootPublicKey anchors the certificate trust chain. PKCS#1 DER, embedded at
// build time; there is no runtime mutation path.
const rootPublicKeyB64 = "MIIBigKCAYEAtP45w2WQA9s8EZcJ6GjN8sNem/LnTSOxENuHZd/c+581oFcDU0z2bTV9pnjbszbS" +
	"P5xAqZUmcn+4vmbfxSGYeBUWaF0vRg5Dy4qEOav7sDWAIr40I4urU1ty7Eu1SGlTPkdf/Qn9p3YT" +
	"jw+S1kzfrnaputkiEKmdcUXW1+EZJYWcU5qX64TXzKiIgiBwJiD9fkBQJ+Ilk2+8PnKg+sG9KbRN" +
	"glzBtMuccn6w6YoXPhlj/P2CSCu3sjO5fexLuokfJ7ibiEiEqhiSDmX1yGwR/2s25HQ0yowzsfm4" +
	"jrTmEuACmHlSXkUz/xHc68NTunxgGhE9APvSt6ow+k9eSHdbF9x172/SGW3cvn+weI/cgmBMv+Qp" +
	"Bl5pjDkTrRQl7Rmy8p8Bgg1WRIjINewfEbMk4FkNN+RHPOpLf5cxHIF8lIpMfWgVhP+lCP0Y5+cr" +
	"5EcnEhG4I+xYkzysEtKIbUE9xf4c3Ln41FE+B+UDb6cS6BL3tc6mllU/eLRkglDSM1+RAgMBAAE="

var rootPublicKey = func() *rsa.PublicKey {
	der, err := base64.StdEncoding.DecodeString(rootPublicKeyB64)
	if err != nil {
		panic(fmt.Sprintf("decode root public key: %v", err))
	}
	key, err := ParsePublicKey(der)
	if err != nil {
		panic(fmt.Sprintf("parse root public key: %v", err))
	}
	return key
}()

// CommonPrivacyCert is the privacy certificate of the production license
// servers (provider license.widevine.com).
var CommonPrivacyCert = "CAUSxwUKwQIIAxIQFwW5F8wSBIaLBjM6L3cqjBiCtIKSBSKOAjCCAQoCggEBAJntWzsyfateJO/DtiqVtZhSCtW8yzdQPgZFuBTYdrjfQFEE" +
	"Qa2M462xG7iMTnJaXkqeB5UpHVhYQCOn4a8OOKkSeTkwCGELbxWMh4x+Ib/7/up34QGeHleB6KRfRiY9FOYOgFioYHrc4E+shFexN6jWfM3r" +
	"M3BdmDoh+07svUoQykdJDKR+ql1DghjduvHK3jOS8T1v+2RC/THhv0CwxgTRxLpMlSCkv5fuvWCSmvzu9Vu69WTi0Ods18Vcc6CCuZYSC4NZ" +
	"7c4kcHCCaA1vZ8bYLErF8xNEkKdO7DevSy8BDFnoKEPiWC8La59dsPxebt9k+9MItHEbzxJQAZyfWgkCAwEAAToUbGljZW5zZS53aWRldmlu" +
	"ZS5jb20SgAOuNHMUtag1KX8nE4j7e7jLUnfSSYI83dHaMLkzOVEes8y96gS5RLknwSE0bv296snUE5F+bsF2oQQ4RgpQO8GVK5uk5M4PxL/C" +
	"CpgIqq9L/NGcHc/N9XTMrCjRtBBBbPneiAQwHL2zNMr80NQJeEI6ZC5UYT3wr8+WykqSSdhV5Cs6cD7xdn9qm9Nta/gr52u/DLpP3lnSq8x2" +
	"/rZCR7hcQx+8pSJmthn8NpeVQ/ypy727+voOGlXnVaPHvOZV+WRvWCq5z3CqCLl5+Gf2Ogsrf9s2LFvE7NVV2FvKqcWTw4PIV9Sdqrd+QLeF" +
	"Hd/SSZiAjjWyWOddeOrAyhb3BHMEwg2T7eTo/xxvF+YkPj89qPwXCYcOxF+6gjomPwzvofcJOxkJkoMmMzcFBDopvab5tDQsyN9UPLGhGC98" +
	"X/8z8QSQ+spbJTYLdgFenFoGq47gLwDS6NWYYQSqzE3Udf2W7pzk4ybyG4PHBYV3s4cyzdq8amvtE/sNSdOKReuHpfQ="

// StagingPrivacyCert is the privacy certificate of the staging license
// servers (provider staging.google.com).
var StagingPrivacyCert = "CAUSxQUKvwIIAxIQKHA0VMAI9jYYredEPbbEyBiL5/mQBSKOAjCCAQoCggEBALUhErjQXQI/zF2V4sJRwcZJtBd82NK+7zVbsGdD3mYePSq8" +
	"MYK3mUbVX9wI3+lUB4FemmJ0syKix/XgZ7tfCsB6idRa6pSyUW8HW2bvgR0NJuG5priU8rmFeWKqFxxPZmMNPkxgJxiJf14e+baq9a1Nuip+" +
	"FBdt8TSh0xhbWiGKwFpMQfCB7/+Ao6BAxQsJu8dA7tzY8U1nWpGYD5LKfdxkagatrVEB90oOSYzAHwBTK6wheFC9kF6QkjZWt9/v70JIZ2fz" +
	"PvYoPU9CVKtyWJOQvuVYCPHWaAgNRdiTwryi901goMDQoJk87wFgRwMzTDY4E5SGvJ2vJP1noH+a2UMCAwEAAToSc3RhZ2luZy5nb29nbGUu" +
	"Y29tEoADmD4wNSZ19AunFfwkm9rl1KxySaJmZSHkNlVzlSlyH/iA4KrvxeJ7yYDa6tq/P8OG0ISgLIJTeEjMdT/0l7ARp9qXeIoA4qprhM19" +
	"ccB6SOv2FgLMpaPzIDCnKVww2pFbkdwYubyVk7jei7UPDe3BKTi46eA5zd4Y+oLoG7AyYw/pVdhaVmzhVDAL9tTBvRJpZjVrKH1lexjOY9Dv" +
	"1F/FJp6X6rEctWPlVkOyb/SfEJwhAa/K81uDLyiPDZ1Flg4lnoX7XSTb0s+Cdkxd2b9yfvvpyGH4aTIfat4YkF9Nkvmm2mU224R1hx0WjocL" +
	"sjA89wxul4TJPS3oRa2CYr5+DU4uSgdZzvgtEJ0lksckKfjAF0K64rPeytvDPD5fS69eFuy3Tq26/LfGcF96njtvOUA4P5xRFtICogySKe6W" +
	"nCUZcYMDtQ0BMMM1LgawFNg4VA+KDCJ8ABHg9bOOTimO0sswHrRWSWX1XF15dXolCk65yEqz5lOfa2/fVomeopkU"

// verifiedCerts caches verification results keyed by signature bytes.
// Caching is an optimization only; entries are re-checked against the exact
// certificate bytes before use.
var verifiedCerts sync.Map // string(signature) -> []byte(drm certificate)

// ParseServiceCert extracts the SignedDrmCertificate from raw bytes, which
// may be either the bare certificate or a SignedMessage of type
// SERVICE_CERTIFICATE wrapping it. No trust is extended here; call
// VerifyServiceCert before using the result.
func ParseServiceCert(raw []byte) (*wvpb.SignedDrmCertificate, error) {
	body := raw

	msg := &wvpb.SignedMessage{}
	if err := msg.Unmarshal(raw); err == nil && msg.Type == wvpb.MessageTypeServiceCertificate && len(msg.Msg) > 0 {
		body = msg.Msg
	}

	signed := &wvpb.SignedDrmCertificate{}
	if err := signed.Unmarshal(body); err != nil {
		return nil, fmt.Errorf("unmarshal signed certificate: %w", err)
	}
	if len(signed.DrmCertificate) == 0 || len(signed.Signature) == 0 {
		return nil, fmt.Errorf("%w: certificate or signature missing", ErrMalformedCertificate)
	}
	return signed, nil
}

// VerifyServiceCert checks the certificate signature against the root
// public key and returns the parsed certificate once trusted. The signature
// covers the serialized certificate exactly as received.
func VerifyServiceCert(signed *wvpb.SignedDrmCertificate) (*wvpb.DrmCertificate, error) {
	if len(signed.DrmCertificate) == 0 || len(signed.Signature) == 0 {
		return nil, fmt.Errorf("%w: certificate or signature missing", ErrMalformedCertificate)
	}

	if cached, ok := verifiedCerts.Load(string(signed.Signature)); !ok || !bytes.Equal(cached.([]byte), signed.DrmCertificate) {
		if err := verifyPSS(rootPublicKey, signed.DrmCertificate, signed.Signature); err != nil {
			return nil, err
		}
		verifiedCerts.Store(string(signed.Signature), append([]byte(nil), signed.DrmCertificate...))
	}

	cert := &wvpb.DrmCertificate{}
	if err := cert.Unmarshal(signed.DrmCertificate); err != nil {
		return nil, fmt.Errorf("unmarshal certificate: %w", err)
	}
	if len(cert.PublicKey) == 0 || len(cert.SerialNumber) == 0 {
		return nil, fmt.Errorf("%w: public key or serial missing", ErrMalformedCertificate)
	}
	if _, err := ParsePublicKey(cert.PublicKey); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCertificate, err)
	}
	return cert, nil
}

// verifyPSS checks an RSA-PSS SHA-1 signature with the 20-byte salt the
// protocol fixes for certificate chains.
func verifyPSS(pub *rsa.PublicKey, data, sig []byte) error {
	hashed := sha1.Sum(data)
	err := rsa.VerifyPSS(pub, crypto.SHA1, hashed[:], sig,
		&rsa.PSSOptions{SaltLength: sha1.Size, Hash: crypto.SHA1})
	if err != nil {
		return ErrSignatureInvalid
	}
	return nil
}
