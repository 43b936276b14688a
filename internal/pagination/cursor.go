package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/cloo-solutions/docchat/internal/domain"
	"github.com/google/uuid"
)

var ErrInvalidCursor = errors.New("invalid cursor format")

// TokenCursor marks the last API token of a page. Token listings are ordered
// by (created_at, id) descending; the next page starts strictly after it.
type TokenCursor struct {
	TokenID   string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// After returns the cursor for the page that follows t.
func After(t *domain.APIToken) *TokenCursor {
	return &TokenCursor{TokenID: t.ID, CreatedAt: t.CreatedAt.UTC()}
}

// Encode returns the opaque URL-safe form handed to clients.
func (c *TokenCursor) Encode() string {
	if c == nil || c.TokenID == "" {
		return ""
	}
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeTokenCursor parses a cursor from Encode. An empty string is the
// first page and decodes to nil.
func DecodeTokenCursor(cursor string) (*TokenCursor, error) {
	if cursor == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var c TokenCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, ErrInvalidCursor
	}
	if _, err := uuid.Parse(c.TokenID); err != nil || c.CreatedAt.IsZero() {
		return nil, ErrInvalidCursor
	}
	return &c, nil
}
