package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/docchat/internal/api/middleware"
	"github.com/cloo-solutions/docchat/internal/domain"
	"github.com/cloo-solutions/docchat/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, in service.UploadInput) (*service.UploadResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UploadResult), args.Error(1)
}

func (m *MockDocumentService) Chat(ctx context.Context, ownerID, documentID, message string) (*service.ChatResult, error) {
	args := m.Called(ctx, ownerID, documentID, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChatResult), args.Error(1)
}

func (m *MockDocumentService) History(ctx context.Context, ownerID, documentID string) (*service.HistoryResult, error) {
	args := m.Called(ctx, ownerID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.HistoryResult), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, ownerID string) ([]*domain.Document, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, ownerID, documentID string) (string, error) {
	args := m.Called(ctx, ownerID, documentID)
	return args.String(0), args.Error(1)
}

func (m *MockDocumentService) DownloadURL(ctx context.Context, ownerID, documentID string) (string, error) {
	args := m.Called(ctx, ownerID, documentID)
	return args.String(0), args.Error(1)
}

func (m *MockDocumentService) StoreFile(ctx context.Context, ownerID string, content []byte) (string, error) {
	args := m.Called(ctx, ownerID, content)
	return args.String(0), args.Error(1)
}

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Signup(ctx context.Context, in service.SignupInput) (*service.SignupResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SignupResult), args.Error(1)
}

func (m *MockUserService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserService) UpdateProfile(ctx context.Context, userID string, upd service.ProfileUpdate) (*domain.User, error) {
	args := m.Called(ctx, userID, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserService) UploadProfileImage(ctx context.Context, userID string, content []byte) (*domain.User, error) {
	args := m.Called(ctx, userID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// authed attaches the identity the auth middleware would have resolved.
func authed(req *http.Request, uid string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.IdentityKey, &domain.Identity{UID: uid, Email: uid + "@example.com", Name: "Test"})
	return req.WithContext(ctx)
}

// withURLParam sets a chi route parameter on the request.
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func multipartRequest(t *testing.T, path, fileName string, content []byte, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if content != nil {
		part, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
