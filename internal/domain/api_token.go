package domain

import (
	"fmt"
	"time"
)

// APIToken is a hashed bearer credential belonging to a user.
type APIToken struct {
	ID        string
	UserID    string
	Name      string
	TokenHash string // Never store plaintext tokens
	CreatedAt time.Time
	RevokedAt *time.Time
}

// IsRevoked returns true if the token has been revoked
func (a *APIToken) IsRevoked() bool {
	return a.RevokedAt != nil
}

// ValidateAPIToken validates an APIToken instance
func ValidateAPIToken(a *APIToken) error {
	if a == nil {
		return fmt.Errorf("api token cannot be nil")
	}

	if a.ID == "" {
		return fmt.Errorf("api token ID is required")
	}

	if a.UserID == "" {
		return fmt.Errorf("api token UserID is required")
	}

	if a.Name == "" {
		return fmt.Errorf("api token Name is required")
	}

	if a.TokenHash == "" {
		return fmt.Errorf("api token TokenHash is required")
	}

	return nil
}
