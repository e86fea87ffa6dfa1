package gateway

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"strings"

	"teamnet-backend/internal/domain"
)

// CanonicalJSON re-encodes a JSON document with object keys sorted at every
// level and numbers in their shortest form.
func CanonicalJSON(body []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Sign returns the hex HMAC-SHA512 of the canonical form of body.
func Sign(body []byte, secret string) (string, error) {
	canonical, err := CanonicalJSON(body)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifySignature returns a SIGNATURE_INVALID error unless signature matches body.
func VerifySignature(body []byte, signature, secret string) error {
	signature = strings.ToLower(strings.TrimSpace(signature))
	if signature == "" {
		return domain.Errorf(domain.KindSignatureInvalid, "missing signature")
	}
	expected, err := Sign(body, secret)
	if err != nil {
		return domain.Wrap(domain.KindSignatureInvalid, err, "body is not valid JSON")
	}
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return domain.Errorf(domain.KindSignatureInvalid, "signature mismatch")
	}
	return nil
}
