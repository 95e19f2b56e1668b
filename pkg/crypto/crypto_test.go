package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	require.NotEqual(t, "hunter2", hash)

	require.True(t, VerifyPassword("hunter2", hash))
	require.False(t, VerifyPassword("wrong", hash))
}

func TestParseKey(t *testing.T) {
	key, err := ParseKey(strings.Repeat("ab", 32))
	require.NoError(t, err)
	require.Len(t, key, 32)

	_, err = ParseKey("abcd")
	require.Error(t, err)

	_, err = ParseKey("not-hex")
	require.Error(t, err)
}

func TestEncryptDecryptString(t *testing.T) {
	key, err := GenerateRandomBytes(32)
	require.NoError(t, err)

	encoded, err := EncryptString(key, "ya29.mailbox-access-token")
	require.NoError(t, err)
	require.NotEqual(t, "ya29.mailbox-access-token", encoded)

	plaintext, err := DecryptString(key, encoded)
	require.NoError(t, err)
	require.Equal(t, "ya29.mailbox-access-token", plaintext)

	// Tampering is detected.
	_, err = DecryptString(key, encoded[:len(encoded)-4]+"AAAA")
	require.Error(t, err)
}
