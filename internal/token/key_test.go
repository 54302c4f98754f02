package token

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveKeyShortSecretHashed(t *testing.T) {
	key, err := DeriveKey("short")
	require.NoError(t, err)

	want := sha256.Sum256([]byte("short"))
	require.Equal(t, want[:], key)
	require.Len(t, key, 32)
}

func TestDeriveKeyBase64Secret(t *testing.T) {
	raw := make([]byte, 48)
	for i := range raw {
		raw[i] = byte(i)
	}
	encoded := base64.StdEncoding.EncodeToString(raw)

	key, err := DeriveKey(encoded)
	require.NoError(t, err)
	require.Equal(t, raw, key)
}

func TestDeriveKeyLongLiteralSecret(t *testing.T) {
	secret := "this-literal-secret-is-definitely-longer-than-32-bytes!"
	key, err := DeriveKey(secret)
	require.NoError(t, err)
	require.Equal(t, []byte(secret), key)
}

func TestDeriveKeyUnpaddedBase64Secret(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(0xA0 + i)
	}
	encoded := base64.RawStdEncoding.EncodeToString(raw)

	key, err := DeriveKey(encoded)
	require.NoError(t, err)
	require.Equal(t, raw, key)
}

func TestDeriveKeyShortBase64FallsBackToLiteral(t *testing.T) {
	// "aGk=" decodes to "hi" (2 bytes); too short to use decoded, and the
	// literal is under 32 bytes, so the literal gets hashed.
	key, err := DeriveKey("aGk=")
	require.NoError(t, err)

	want := sha256.Sum256([]byte("aGk="))
	require.Equal(t, want[:], key)
}

func TestDeriveKeyEmptySecret(t *testing.T) {
	_, err := DeriveKey("")
	require.Error(t, err)
}
