package token

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// hmacKeyLen is the minimum key length HS256 accepts.
const hmacKeyLen = 32

var errEmptySecret = errors.New("token: signing secret must not be empty")

// DeriveKey turns a configured secret into signing key material. Secrets may
// be supplied base64-encoded or as raw text; short secrets are normalized to
// exactly 32 bytes via SHA-256 so HS256 always has a full-strength key. The
// result is derived once per process and must never be logged.
func DeriveKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, errEmptySecret
	}

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding} {
		if decoded, err := enc.DecodeString(secret); err == nil && len(decoded) >= hmacKeyLen {
			return decoded, nil
		}
	}

	raw := []byte(secret)
	if len(raw) >= hmacKeyLen {
		return raw, nil
	}

	sum := sha256.Sum256(raw)
	return sum[:], nil
}
