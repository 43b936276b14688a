package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/cloo-solutions/docchat/internal/domain"
	"github.com/cloo-solutions/docchat/internal/pagination"
)

const apiTokenPrefix = "dc_"

const (
	DefaultTokenPageSize = 20
	MaxTokenPageSize     = 100
)

// AuthService issues and validates bearer tokens.
type AuthService struct {
	userRepo  UserRepository
	tokenRepo APITokenRepository
	uuidGen   UUIDGenerator
}

func NewAuthService(userRepo UserRepository, tokenRepo APITokenRepository, uuidGen UUIDGenerator) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		uuidGen:   uuidGen,
	}
}

// CreateToken generates a random token for the user and returns the
// plaintext once; only its hash is stored.
func (s *AuthService) CreateToken(ctx context.Context, userID, name string) (string, *domain.APIToken, error) {
	token, err := generateAPIToken()
	if err != nil {
		return "", nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to generate api token", err)
	}

	record, err := s.createToken(ctx, s.userRepo, s.tokenRepo, userID, name, token)
	if err != nil {
		return "", nil, err
	}
	return token, record, nil
}

// CreateTokenWithValue registers a caller-supplied token, used to bootstrap
// a known credential from configuration.
func (s *AuthService) CreateTokenWithValue(ctx context.Context, userID, name, token string) (*domain.APIToken, error) {
	if !IsValidAPIToken(token) {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "invalid api token format (expected dc_<64 hex chars>)")
	}
	return s.createToken(ctx, s.userRepo, s.tokenRepo, userID, name, token)
}

func (s *AuthService) createToken(ctx context.Context, users UserRepository, tokens APITokenRepository, userID, name, token string) (*domain.APIToken, error) {
	if userID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "user ID is required")
	}
	if name == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "token name is required")
	}

	if _, err := users.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	record := &domain.APIToken{
		ID:        s.uuidGen.NewString(),
		UserID:    userID,
		Name:      name,
		TokenHash: hashToken(token),
		CreatedAt: time.Now().UTC(),
	}
	if err := domain.ValidateAPIToken(record); err != nil {
		return nil, err
	}
	if err := tokens.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// ValidateToken resolves a bearer token to the identity of an active user.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*domain.Identity, error) {
	if !IsValidAPIToken(token) {
		return nil, domain.ErrInvalidAPIToken
	}

	record, err := s.tokenRepo.GetByHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrAPITokenNotFound) {
			return nil, domain.ErrInvalidAPIToken
		}
		return nil, err
	}
	if record.IsRevoked() {
		return nil, domain.ErrAPITokenRevoked
	}

	user, err := s.userRepo.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidAPIToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	return &domain.Identity{UID: user.ID, Email: user.Email, Name: user.Name}, nil
}

// ListTokens pages through a user's tokens, newest first.
func (s *AuthService) ListTokens(ctx context.Context, userID, cursor string, limit int) (*APITokenPageResult, error) {
	if userID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "user ID is required")
	}
	if limit <= 0 {
		limit = DefaultTokenPageSize
	}
	if limit > MaxTokenPageSize {
		limit = MaxTokenPageSize
	}

	decoded, err := pagination.DecodeTokenCursor(cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}

	return s.tokenRepo.ListByUserWithCursor(ctx, userID, decoded, limit)
}

func (s *AuthService) RevokeToken(ctx context.Context, tokenID string) error {
	if tokenID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "token ID is required")
	}
	return s.tokenRepo.Revoke(ctx, tokenID)
}

func generateAPIToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return apiTokenPrefix + hex.EncodeToString(bytes), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// IsValidAPIToken checks the dc_<64 hex> shape without touching storage.
func IsValidAPIToken(token string) bool {
	hexPart, ok := strings.CutPrefix(token, apiTokenPrefix)
	if !ok || len(hexPart) != 64 {
		return false
	}
	for _, c := range hexPart {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
