package service

import (
	"context"

	"github.com/cloo-solutions/docchat/internal/domain"
	"github.com/cloo-solutions/docchat/internal/pagination"
)

// DocumentRepository persists document metadata.
type DocumentRepository interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByIDForUser(ctx context.Context, id, userID string) (*domain.Document, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Document, error)
	Delete(ctx context.Context, id string) error
}

// ChunkRepository is the relational mirror of indexed chunks.
type ChunkRepository interface {
	InsertChunks(ctx context.Context, chunks []domain.DocumentChunk) error
	ListByDocument(ctx context.Context, documentID string, limit int) ([]*domain.DocumentChunk, error)
	VectorIDsByDocument(ctx context.Context, documentID string) ([]string, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

// ChatHistoryRepository is the append-only chat log.
type ChatHistoryRepository interface {
	Append(ctx context.Context, turn *domain.ChatTurn) error
	Recent(ctx context.Context, userID, documentID string, limit int) ([]*domain.ChatTurn, error)
	Full(ctx context.Context, userID, documentID string) ([]*domain.ChatTurn, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

// CleanupJobRepository queues vector deletions that failed inline.
type CleanupJobRepository interface {
	Create(ctx context.Context, job *domain.VectorCleanupJob) error
}

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	Update(ctx context.Context, u *domain.User) error
}

type APITokenRepository interface {
	Create(ctx context.Context, token *domain.APIToken) error
	GetByHash(ctx context.Context, hash string) (*domain.APIToken, error)
	ListByUserWithCursor(ctx context.Context, userID string, cursor *pagination.TokenCursor, limit int) (*APITokenPageResult, error)
	Revoke(ctx context.Context, id string) error
}

// APITokenPageResult is one page of a user's tokens, newest first.
type APITokenPageResult struct {
	Items      []*domain.APIToken
	NextCursor string
	HasMore    bool
}
