package crypto_test

import (
	"testing"

	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/pkg/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptor_RoundTrip(t *testing.T) {
	enc, err := crypto.NewEncryptor("")
	require.NoError(t, err)

	t.Run("bytes", func(t *testing.T) {
		plaintext := []byte(`{"api_key":"sk-test-123","account_id":"act_42"}`)

		ciphertext, err := enc.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, ciphertext)

		decrypted, err := enc.Decrypt(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	})

	t.Run("string", func(t *testing.T) {
		ciphertext, err := enc.EncryptString("oauth-refresh-token-value")
		require.NoError(t, err)

		decrypted, err := enc.DecryptString(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, "oauth-refresh-token-value", decrypted)
	})
}

func TestEncryptor_KeyRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	enc1, err := crypto.NewEncryptor(key)
	require.NoError(t, err)

	ciphertext, err := enc1.EncryptString("credentials")
	require.NoError(t, err)

	// A second encryptor with the same key can decrypt
	enc2, err := crypto.NewEncryptor(key)
	require.NoError(t, err)

	decrypted, err := enc2.DecryptString(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "credentials", decrypted)
}

func TestEncryptor_WrongKeyFails(t *testing.T) {
	enc1, err := crypto.NewEncryptor("")
	require.NoError(t, err)
	enc2, err := crypto.NewEncryptor("")
	require.NoError(t, err)

	ciphertext, err := enc1.EncryptString("secret")
	require.NoError(t, err)

	_, err = enc2.DecryptString(ciphertext)
	assert.Error(t, err)
}

func TestEncryptor_InvalidInputs(t *testing.T) {
	enc, err := crypto.NewEncryptor("")
	require.NoError(t, err)

	t.Run("bad identity key", func(t *testing.T) {
		_, err := crypto.NewEncryptor("not-an-age-key")
		assert.Error(t, err)
	})

	t.Run("bad base64", func(t *testing.T) {
		_, err := enc.DecryptString("%%%not-base64%%%")
		assert.Error(t, err)
	})

	t.Run("garbage ciphertext", func(t *testing.T) {
		_, err := enc.Decrypt([]byte("garbage"))
		assert.Error(t, err)
	})
}
