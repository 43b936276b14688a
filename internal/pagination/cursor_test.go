package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/cloo-solutions/docchat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCursor_RoundTrip(t *testing.T) {
	created := time.Date(2026, 2, 3, 4, 5, 6, 789000000, time.FixedZone("WET", 3600))
	token := &domain.APIToken{ID: "3f2b8c1e-9a4d-4e6f-8b7a-0c1d2e3f4a5b", CreatedAt: created}

	encoded := After(token).Encode()
	require.NotEmpty(t, encoded)

	decoded, err := DecodeTokenCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, token.ID, decoded.TokenID)
	assert.True(t, created.Equal(decoded.CreatedAt))
}

func TestTokenCursor_EmptyIsFirstPage(t *testing.T) {
	decoded, err := DecodeTokenCursor("")
	require.NoError(t, err)
	assert.Nil(t, decoded)

	var c *TokenCursor
	assert.Empty(t, c.Encode())
}

func TestDecodeTokenCursor_Invalid(t *testing.T) {
	enc := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name   string
		cursor string
	}{
		{"not base64", "%%%"},
		{"not json", enc("t9|2026-01-01T00:00:00Z")},
		{"id not a uuid", enc(`{"id":"t9","created_at":"2026-01-01T00:00:00Z"}`)},
		{"missing timestamp", enc(`{"id":"3f2b8c1e-9a4d-4e6f-8b7a-0c1d2e3f4a5b"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTokenCursor(tt.cursor)
			assert.ErrorIs(t, err, ErrInvalidCursor)
		})
	}
}
