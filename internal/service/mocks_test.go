package service

import (
	"context"

	"github.com/cloo-solutions/docchat/internal/domain"
	"github.com/cloo-solutions/docchat/internal/pagination"
	"github.com/stretchr/testify/mock"
)

type MockUUIDGenerator struct {
	uuids     []string
	callCount int
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.callCount < len(m.uuids) {
		uuid := m.uuids[m.callCount]
		m.callCount++
		return uuid
	}
	return "default-uuid"
}

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDocumentRepository) GetByIDForUser(ctx context.Context, id, userID string) (*domain.Document, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Document, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockChunkRepository struct {
	mock.Mock
}

func (m *MockChunkRepository) InsertChunks(ctx context.Context, chunks []domain.DocumentChunk) error {
	args := m.Called(ctx, chunks)
	return args.Error(0)
}

func (m *MockChunkRepository) ListByDocument(ctx context.Context, documentID string, limit int) ([]*domain.DocumentChunk, error) {
	args := m.Called(ctx, documentID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.DocumentChunk), args.Error(1)
}

func (m *MockChunkRepository) VectorIDsByDocument(ctx context.Context, documentID string) ([]string, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockChunkRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

type MockChatHistoryRepository struct {
	mock.Mock
}

func (m *MockChatHistoryRepository) Append(ctx context.Context, turn *domain.ChatTurn) error {
	args := m.Called(ctx, turn)
	return args.Error(0)
}

func (m *MockChatHistoryRepository) Recent(ctx context.Context, userID, documentID string, limit int) ([]*domain.ChatTurn, error) {
	args := m.Called(ctx, userID, documentID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ChatTurn), args.Error(1)
}

func (m *MockChatHistoryRepository) Full(ctx context.Context, userID, documentID string) ([]*domain.ChatTurn, error) {
	args := m.Called(ctx, userID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ChatTurn), args.Error(1)
}

func (m *MockChatHistoryRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

type MockCleanupJobRepository struct {
	mock.Mock
}

func (m *MockCleanupJobRepository) Create(ctx context.Context, job *domain.VectorCleanupJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

type MockAPITokenRepository struct {
	mock.Mock
}

func (m *MockAPITokenRepository) Create(ctx context.Context, token *domain.APIToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockAPITokenRepository) GetByHash(ctx context.Context, hash string) (*domain.APIToken, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIToken), args.Error(1)
}

func (m *MockAPITokenRepository) ListByUserWithCursor(ctx context.Context, userID string, cursor *pagination.TokenCursor, limit int) (*APITokenPageResult, error) {
	args := m.Called(ctx, userID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*APITokenPageResult), args.Error(1)
}

func (m *MockAPITokenRepository) Revoke(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockTextExtractor struct {
	mock.Mock
}

func (m *MockTextExtractor) Extract(ctx context.Context, kind domain.FileKind, content []byte) (string, error) {
	args := m.Called(ctx, kind, content)
	return args.String(0), args.Error(1)
}

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	args := m.Called(ctx, key, contentType, body)
	return args.String(0), args.Error(1)
}

func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockBlobStore) PresignGet(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

type MockIngester struct {
	mock.Mock
}

func (m *MockIngester) Ingest(ctx context.Context, in IngestInput) (*IngestResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*IngestResult), args.Error(1)
}

type MockChunkRetriever struct {
	mock.Mock
}

func (m *MockChunkRetriever) Retrieve(ctx context.Context, query string, doc *domain.Document, k int) []RetrievedChunk {
	args := m.Called(ctx, query, doc, k)
	return args.Get(0).([]RetrievedChunk)
}

type MockAnswerSynthesizer struct {
	mock.Mock
}

func (m *MockAnswerSynthesizer) Answer(ctx context.Context, query, documentID string, chunks []RetrievedChunk, history []*domain.ChatTurn) (*Answer, error) {
	args := m.Called(ctx, query, documentID, chunks, history)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Answer), args.Error(1)
}

type MockTurnStore struct {
	mock.Mock
}

func (m *MockTurnStore) Append(ctx context.Context, ownerID, documentID, userMessage, botResponse string) (*domain.ChatTurn, error) {
	args := m.Called(ctx, ownerID, documentID, userMessage, botResponse)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatTurn), args.Error(1)
}

func (m *MockTurnStore) Recent(ctx context.Context, ownerID, documentID string, limit int) ([]*domain.ChatTurn, error) {
	args := m.Called(ctx, ownerID, documentID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ChatTurn), args.Error(1)
}

func (m *MockTurnStore) Full(ctx context.Context, ownerID, documentID string) ([]*domain.ChatTurn, error) {
	args := m.Called(ctx, ownerID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ChatTurn), args.Error(1)
}

type fakeTokenCounter struct {
	calls int
}

func (f *fakeTokenCounter) CountTokens(text string) int {
	f.calls++
	return len(text) / 4
}
