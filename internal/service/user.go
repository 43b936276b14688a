package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/docchat/internal/domain"
	"github.com/cloo-solutions/docchat/internal/telemetry"
)

// DefaultTokenName labels the token issued at signup.
const DefaultTokenName = "default"

type SignupInput struct {
	Email    string
	Name     string
	Phone    string
	Location string
	Bio      string
}

type SignupResult struct {
	User  *domain.User
	Token string
}

// ProfileUpdate holds optional profile fields; nil leaves a field unchanged
// and an empty string clears it.
type ProfileUpdate struct {
	Name         *string
	Phone        *string
	Location     *string
	Bio          *string
	ProfileImage *string
}

type UserService struct {
	users     UserRepository
	auth      *AuthService
	txRunner  TxRunner
	validator *FileValidator
	blobs     BlobStore
	uuidGen   UUIDGenerator
	now       func() time.Time
}

func NewUserService(users UserRepository, auth *AuthService, txRunner TxRunner, blobs BlobStore, uuidGen UUIDGenerator) *UserService {
	return &UserService{
		users:     users,
		auth:      auth,
		txRunner:  txRunner,
		validator: NewFileValidator(),
		blobs:     blobs,
		uuidGen:   uuidGen,
		now:       time.Now,
	}
}

// Signup creates an active user and its first token in one transaction.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.Name)
	if email == "" || name == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "email and name are required")
	}

	user := domain.NewUser(s.uuidGen.NewString(), email, name, s.now().UTC())
	user.Phone = strings.TrimSpace(in.Phone)
	user.Location = strings.TrimSpace(in.Location)
	user.Bio = strings.TrimSpace(in.Bio)
	if err := domain.ValidateUser(user); err != nil {
		if _, ok := domain.AsDomainError(err); ok {
			return nil, err
		}
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, err.Error(), err)
	}

	token, err := generateAPIToken()
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to generate api token", err)
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Users().Create(ctx, user); err != nil {
			return err
		}
		_, err := s.auth.createToken(ctx, repos.Users(), repos.APITokens(), user.ID, DefaultTokenName, token)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("user %s signed up", user.ID)
	return &SignupResult{User: user, Token: token}, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, domain.ErrMissingRequiredField
	}
	return s.users.GetByID(ctx, userID)
}

func (s *UserService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.users.List(ctx)
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*domain.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, domain.NewDomainError(domain.ErrCodeValidation, "name cannot be empty")
		}
		user.Name = name
	}
	if upd.Phone != nil {
		user.Phone = strings.TrimSpace(*upd.Phone)
	}
	if upd.Location != nil {
		user.Location = strings.TrimSpace(*upd.Location)
	}
	if upd.Bio != nil {
		user.Bio = strings.TrimSpace(*upd.Bio)
	}
	if upd.ProfileImage != nil {
		user.ProfileImage = strings.TrimSpace(*upd.ProfileImage)
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UploadProfileImage stores a JPEG and points the user's profile_image at it.
func (s *UserService) UploadProfileImage(ctx context.Context, userID string, content []byte) (*domain.User, error) {
	ctx, span := telemetry.StartSpan(ctx, "UserService.UploadProfileImage", telemetry.SpanAttributes{
		UserID:    userID,
		Operation: "upload_profile_image",
	})
	defer span.End()

	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	file, err := s.validator.Validate(content, UploadImage)
	if err != nil {
		return nil, err
	}
	if s.blobs == nil {
		return nil, domain.ErrStorageNotConfigured
	}

	key := BlobKey(FolderProfileImages, user.ID, s.now(), file.Extension)
	url, err := s.blobs.Put(ctx, key, file.MIMEType, content)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "Failed to upload file", err)
	}

	user.ProfileImage = url
	if err := s.users.Update(ctx, user); err != nil {
		span.SetError(err)
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			log.Printf("failed to delete blob %s: %v", key, delErr)
		}
		return nil, err
	}
	return user, nil
}

// EnsureUser returns the user with this email, creating it when missing.
// The bootstrap path uses it so restarts are idempotent.
func (s *UserService) EnsureUser(ctx context.Context, email, name string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	user = domain.NewUser(s.uuidGen.NewString(), strings.ToLower(strings.TrimSpace(email)), name, s.now().UTC())
	if err := domain.ValidateUser(user); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, err.Error(), err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
