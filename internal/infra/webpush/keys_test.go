package webpush

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKeyMaterial_RoundTrip(t *testing.T) {
	generated, err := GenerateKeyMaterial("mailto:ops@example.com")
	require.NoError(t, err)

	loaded, err := NewKeyMaterial(generated.PublicKey(), generated.PrivateKey(), "mailto:ops@example.com")
	require.NoError(t, err)

	assert.Equal(t, generated.PublicKey(), loaded.PublicKey())
	assert.Equal(t, generated.PrivateKey(), loaded.PrivateKey())
	assert.Equal(t, "mailto:ops@example.com", loaded.Subject())

	raw, err := base64.RawURLEncoding.DecodeString(loaded.PublicKey())
	require.NoError(t, err)
	assert.Len(t, raw, 65)
	assert.Equal(t, byte(0x04), raw[0])
}

func TestNewKeyMaterial_AcceptsPaddedStandardBase64(t *testing.T) {
	generated, err := GenerateKeyMaterial("mailto:ops@example.com")
	require.NoError(t, err)

	pub, _ := base64.RawURLEncoding.DecodeString(generated.PublicKey())
	priv, _ := base64.RawURLEncoding.DecodeString(generated.PrivateKey())

	loaded, err := NewKeyMaterial(
		base64.StdEncoding.EncodeToString(pub),
		base64.StdEncoding.EncodeToString(priv),
		"https://example.com/contact")
	require.NoError(t, err)
	assert.Equal(t, generated.PublicKey(), loaded.PublicKey())
}

func TestNewKeyMaterial_Rejects(t *testing.T) {
	a, err := GenerateKeyMaterial("mailto:a@example.com")
	require.NoError(t, err)
	b, err := GenerateKeyMaterial("mailto:b@example.com")
	require.NoError(t, err)

	tests := []struct {
		name    string
		pub     string
		priv    string
		subject string
	}{
		{"mismatched pair", a.PublicKey(), b.PrivateKey(), "mailto:a@example.com"},
		{"short public key", base64.RawURLEncoding.EncodeToString([]byte{4, 1, 2}), a.PrivateKey(), "mailto:a@example.com"},
		{"short private key", a.PublicKey(), base64.RawURLEncoding.EncodeToString([]byte{1, 2, 3}), "mailto:a@example.com"},
		{"not base64", "!!!", a.PrivateKey(), "mailto:a@example.com"},
		{"missing subject", a.PublicKey(), a.PrivateKey(), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKeyMaterial(tt.pub, tt.priv, tt.subject)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidKey), "expected ErrInvalidKey, got %v", err)
		})
	}
}
