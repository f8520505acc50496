package crypto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaultSealAndOpen(t *testing.T) {
	payload := []byte(`{"account_id":"alice.testnet","private_key":"ed25519:abc"}`)

	v, err := NewVault(payload, "correct horse")
	require.NoError(t, err)
	assert.Len(t, v.Salt, saltLen)
	assert.Len(t, v.Nonce, nonceLen)
	assert.NotContains(t, string(v.Data), "alice.testnet")

	out, err := v.Decrypt("correct horse")
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(out))
	assert.True(t, v.ValidatePassword("correct horse"))
}

func TestVaultWrongPassword(t *testing.T) {
	v, err := NewVault([]byte(`{"k":1}`), "one")
	require.NoError(t, err)

	_, err = v.Decrypt("two")
	assert.ErrorIs(t, err, ErrWrongPassword)
	assert.False(t, v.ValidatePassword("two"))
}

func TestVaultSurvivesJSONRoundTrip(t *testing.T) {
	v, err := NewVault([]byte(`["x"]`), "pw")
	require.NoError(t, err)

	raw, err := json.Marshal(v)
	require.NoError(t, err)

	var restored Vault
	require.NoError(t, json.Unmarshal(raw, &restored))

	out, err := restored.Decrypt("pw")
	require.NoError(t, err)
	assert.JSONEq(t, `["x"]`, string(out))
}

func TestVaultRejectsNonJSONPayload(t *testing.T) {
	_, err := NewVault([]byte("not json"), "pw")
	assert.Error(t, err)
}
