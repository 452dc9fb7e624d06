package secretvault

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monitorplane/internal/apperr"
)

func testKey(b byte) string {
	key := make([]byte, 32)
	for i := range key {
		key[i] = b
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := New(testKey(0x01))
	require.NoError(t, err)

	ciphertext, err := v.Encrypt("super-secret-api-key")
	require.NoError(t, err)
	assert.True(t, IsVaultCiphertext(ciphertext))
	assert.NotContains(t, ciphertext, "super-secret-api-key")

	plaintext, err := v.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "super-secret-api-key", plaintext)
}

func TestDecryptBadPrefix(t *testing.T) {
	v, err := New(testKey(0x01))
	require.NoError(t, err)

	_, err = v.Decrypt("not-a-vault-value")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrIntegrity)
}

func TestDecryptTamperedCiphertextFails(t *testing.T) {
	v, err := New(testKey(0x01))
	require.NoError(t, err)

	ciphertext, err := v.Encrypt("value")
	require.NoError(t, err)

	tampered := ciphertext + "AA"
	_, err = v.Decrypt(tampered)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrIntegrity)
}

func TestKeyRotationFallsBackToOldKey(t *testing.T) {
	oldVault, err := New(testKey(0x02))
	require.NoError(t, err)

	ciphertext, err := oldVault.Encrypt("rotated-secret")
	require.NoError(t, err)

	rotated, err := New(testKey(0x03), testKey(0x02))
	require.NoError(t, err)

	plaintext, err := rotated.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "rotated-secret", plaintext)
}

func TestNewRejectsBadKeyLength(t *testing.T) {
	_, err := New(base64.StdEncoding.EncodeToString([]byte("too-short")))
	require.Error(t, err)
}
