package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/docchat/internal/api"
	"github.com/cloo-solutions/docchat/internal/api/middleware"
	"github.com/cloo-solutions/docchat/internal/domain"
	"github.com/cloo-solutions/docchat/internal/service"
)

type UserService interface {
	Signup(ctx context.Context, in service.SignupInput) (*service.SignupResult, error)
	GetProfile(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, upd service.ProfileUpdate) (*domain.User, error)
	UploadProfileImage(ctx context.Context, userID string, content []byte) (*domain.User, error)
}

type UserHandler struct {
	svc UserService
}

func NewUserHandler(svc UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

type SignupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	Bio      string `json:"bio"`
}

type SignupResponse struct {
	User  UserResponse `json:"user"`
	Token string       `json:"token"`
}

// UpdateProfileRequest uses pointers so omitted fields stay untouched.
type UpdateProfileRequest struct {
	Name         *string `json:"name"`
	Phone        *string `json:"phone"`
	Location     *string `json:"location"`
	Bio          *string `json:"bio"`
	ProfileImage *string `json:"profile_image"`
}

type UserResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	ProfileImage string `json:"profile_image"`
	Phone        string `json:"phone"`
	Location     string `json:"location"`
	Bio          string `json:"bio"`
	IsActive     bool   `json:"is_active"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type IdentityResponse struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func userToResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		ProfileImage: u.ProfileImage,
		Phone:        u.Phone,
		Location:     u.Location,
		Bio:          u.Bio,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    u.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Email) == "" {
		api.ErrorWithCode(w, http.StatusBadRequest, domain.ErrCodeValidation, "email is required")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		api.ErrorWithCode(w, http.StatusBadRequest, domain.ErrCodeValidation, "name is required")
		return
	}

	result, err := h.svc.Signup(r.Context(), service.SignupInput{
		Email:    req.Email,
		Name:     req.Name,
		Phone:    req.Phone,
		Location: req.Location,
		Bio:      req.Bio,
	})
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusCreated, SignupResponse{
		User:  userToResponse(result.User),
		Token: result.Token,
	})
}

// Identity echoes the caller resolved by the auth middleware.
func (h *UserHandler) Identity(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	api.Success(w, http.StatusOK, IdentityResponse{
		UID:   identity.UID,
		Email: identity.Email,
		Name:  identity.Name,
	})
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.svc.GetProfile(r.Context(), userID)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, userToResponse(user))
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.svc.UpdateProfile(r.Context(), userID, service.ProfileUpdate{
		Name:         req.Name,
		Phone:        req.Phone,
		Location:     req.Location,
		Bio:          req.Bio,
		ProfileImage: req.ProfileImage,
	})
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, userToResponse(user))
}

func (h *UserHandler) UploadProfileImage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	content, _, ok := readMultipartFile(w, r, service.MaxImageSize)
	if !ok {
		return
	}

	user, err := h.svc.UploadProfileImage(r.Context(), userID, content)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, userToResponse(user))
}
