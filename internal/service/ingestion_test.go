package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloo-solutions/docchat/internal/domain"
	"github.com/cloo-solutions/docchat/internal/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type ingestionFixture struct {
	extractor *MockTextExtractor
	embedder  *MockEmbedder
	index     *vectorindex.MemoryIndex
	chunks    *MockChunkRepository
	documents *MockDocumentRepository
	runner    *testTxRunner
	svc       *IngestionService
}

func newIngestionFixture(t *testing.T) *ingestionFixture {
	t.Helper()
	chunker, err := NewChunker(DefaultChunkConfig())
	require.NoError(t, err)

	index := vectorindex.NewMemoryIndex()
	require.NoError(t, index.EnsureCollection(context.Background(), vectorindex.CollectionSpec{
		Name: "document_chunks", Dimension: 3, Distance: vectorindex.Cosine,
	}))

	f := &ingestionFixture{
		extractor: new(MockTextExtractor),
		embedder:  new(MockEmbedder),
		index:     index,
		chunks:    new(MockChunkRepository),
		documents: new(MockDocumentRepository),
	}
	f.runner = &testTxRunner{repos: &testTxRepos{chunks: f.chunks, documents: f.documents}}
	f.svc = NewIngestionService(f.extractor, chunker, f.embedder, index, f.runner)
	return f
}

func vectors(n int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{float32(i + 1), 1, 0}
	}
	return out
}

func TestIngestionService_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("indexes chunks and commits document row with mirror", func(t *testing.T) {
		f := newIngestionFixture(t)
		text := strings.Repeat("a", 2500)
		content := []byte("%PDF-1.4 fake")

		f.extractor.On("Extract", mock.Anything, domain.FileKindPDF, content).Return(text, nil)
		f.embedder.On("EmbedDocuments", mock.Anything, mock.MatchedBy(func(texts []string) bool {
			return len(texts) == 3 && len([]rune(texts[2])) == 900
		})).Return(vectors(3), nil)
		f.documents.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
			return d.ID == "doc-1"
		})).Return(nil)
		f.chunks.On("InsertChunks", mock.Anything, mock.MatchedBy(func(rows []domain.DocumentChunk) bool {
			if len(rows) != 3 {
				return false
			}
			for i, r := range rows {
				if r.ChunkIndex != i || r.DocumentID != "doc-1" || r.VectorID == "" {
					return false
				}
			}
			return true
		})).Return(nil)

		result, err := f.svc.Ingest(ctx, IngestInput{
			DocumentID: "doc-1",
			OwnerID:    "user-1",
			Content:    content,
			Kind:       domain.FileKindPDF,
			Prepare: func(ctx context.Context, repos TxRepositories) error {
				return repos.Documents().Create(ctx, &domain.Document{ID: "doc-1"})
			},
		})

		require.NoError(t, err)
		assert.Equal(t, "doc-1", result.DocumentID)
		assert.Equal(t, 3, result.ChunkCount)
		assert.Equal(t, IngestStatusSuccess, result.Status)
		assert.Equal(t, domain.FileKindPDF, result.FileType)
		assert.Equal(t, 3, f.index.Len())

		hits, err := f.index.Search(ctx, []float32{1, 1, 0}, 10, vectorindex.Filter{DocumentID: "doc-1"})
		require.NoError(t, err)
		require.Len(t, hits, 3)
		for _, h := range hits {
			assert.Equal(t, "user-1", h.Payload.UserID)
			assert.Equal(t, "pdf", h.Payload.FileType)
			assert.Equal(t, h.ID, h.Payload.VectorID)
		}

		f.documents.AssertExpectations(t)
		f.chunks.AssertExpectations(t)
	})

	t.Run("vector ids in payloads match mirror rows", func(t *testing.T) {
		f := newIngestionFixture(t)
		f.svc.uuidGen = NewMockUUIDGenerator("v0", "r0", "v1", "r1")

		f.extractor.On("Extract", mock.Anything, domain.FileKindDOCX, mock.Anything).Return(strings.Repeat("b", 1500), nil)
		f.embedder.On("EmbedDocuments", mock.Anything, mock.Anything).Return(vectors(2), nil)
		f.chunks.On("InsertChunks", mock.Anything, mock.MatchedBy(func(rows []domain.DocumentChunk) bool {
			return len(rows) == 2 && rows[0].VectorID == "v0" && rows[0].ID == "r0" && rows[1].VectorID == "v1"
		})).Return(nil)

		_, err := f.svc.Ingest(ctx, IngestInput{DocumentID: "doc-2", OwnerID: "user-1", Content: []byte("x"), Kind: domain.FileKindDOCX})
		require.NoError(t, err)
		f.chunks.AssertExpectations(t)
	})

	t.Run("re-ingesting a document mints fresh vector ids", func(t *testing.T) {
		f := newIngestionFixture(t)

		var batches [][]domain.DocumentChunk
		f.extractor.On("Extract", mock.Anything, domain.FileKindPDF, mock.Anything).Return(strings.Repeat("c", 1500), nil)
		f.embedder.On("EmbedDocuments", mock.Anything, mock.Anything).Return(vectors(2), nil)
		f.chunks.On("InsertChunks", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			batches = append(batches, args.Get(1).([]domain.DocumentChunk))
		}).Return(nil)

		in := IngestInput{DocumentID: "doc-3", OwnerID: "user-1", Content: []byte("x"), Kind: domain.FileKindPDF}
		for i := 0; i < 2; i++ {
			result, err := f.svc.Ingest(ctx, in)
			require.NoError(t, err)
			assert.Equal(t, 2, result.ChunkCount)
		}

		require.Len(t, batches, 2)
		first := map[string]bool{}
		for _, row := range batches[0] {
			first[row.VectorID] = true
		}
		for _, row := range batches[1] {
			assert.False(t, first[row.VectorID], "vector id %s reused", row.VectorID)
		}
		assert.Equal(t, 4, f.index.Len())
	})

	t.Run("rejects unsupported format without extracting", func(t *testing.T) {
		f := newIngestionFixture(t)

		_, err := f.svc.Ingest(ctx, IngestInput{DocumentID: "doc-1", OwnerID: "user-1", Content: []byte("x"), Kind: "txt"})

		assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
		f.extractor.AssertNotCalled(t, "Extract")
		assert.False(t, f.runner.called)
	})

	t.Run("extraction failure leaves nothing behind", func(t *testing.T) {
		f := newIngestionFixture(t)
		f.extractor.On("Extract", mock.Anything, domain.FileKindPDF, mock.Anything).Return("", errors.New("corrupt"))

		_, err := f.svc.Ingest(ctx, IngestInput{DocumentID: "doc-1", OwnerID: "user-1", Content: []byte("x"), Kind: domain.FileKindPDF})

		assert.ErrorIs(t, err, domain.ErrProcessingFailed)
		assert.False(t, f.runner.called)
		assert.Equal(t, 0, f.index.Len())
		f.embedder.AssertNotCalled(t, "EmbedDocuments")
	})

	t.Run("embedding failure skips index and database", func(t *testing.T) {
		f := newIngestionFixture(t)
		f.extractor.On("Extract", mock.Anything, domain.FileKindPDF, mock.Anything).Return("some text", nil)
		f.embedder.On("EmbedDocuments", mock.Anything, []string{"some text"}).Return(nil, domain.ErrBackendUnavailable)

		_, err := f.svc.Ingest(ctx, IngestInput{DocumentID: "doc-1", OwnerID: "user-1", Content: []byte("x"), Kind: domain.FileKindPDF})

		assert.ErrorIs(t, err, domain.ErrProcessingFailed)
		assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
		assert.False(t, f.runner.called)
		assert.Equal(t, 0, f.index.Len())
	})

	t.Run("wrong embedding dimension fails the upsert", func(t *testing.T) {
		f := newIngestionFixture(t)
		f.extractor.On("Extract", mock.Anything, domain.FileKindPDF, mock.Anything).Return("some text", nil)
		f.embedder.On("EmbedDocuments", mock.Anything, mock.Anything).Return([][]float32{{1, 2}}, nil)

		_, err := f.svc.Ingest(ctx, IngestInput{DocumentID: "doc-1", OwnerID: "user-1", Content: []byte("x"), Kind: domain.FileKindPDF})

		assert.ErrorIs(t, err, domain.ErrProcessingFailed)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
		assert.False(t, f.runner.called)
		assert.Equal(t, 0, f.index.Len())
	})

	t.Run("transaction failure is reported", func(t *testing.T) {
		f := newIngestionFixture(t)
		f.extractor.On("Extract", mock.Anything, domain.FileKindPDF, mock.Anything).Return("some text", nil)
		f.embedder.On("EmbedDocuments", mock.Anything, mock.Anything).Return(vectors(1), nil)
		f.chunks.On("InsertChunks", mock.Anything, mock.Anything).Return(errors.New("db down"))

		_, err := f.svc.Ingest(ctx, IngestInput{DocumentID: "doc-1", OwnerID: "user-1", Content: []byte("x"), Kind: domain.FileKindPDF})

		assert.ErrorIs(t, err, domain.ErrProcessingFailed)
		assert.True(t, f.runner.called)
	})

	t.Run("empty text commits zero chunks without embedding", func(t *testing.T) {
		f := newIngestionFixture(t)
		f.extractor.On("Extract", mock.Anything, domain.FileKindPDF, mock.Anything).Return("", nil)
		f.chunks.On("InsertChunks", mock.Anything, mock.MatchedBy(func(rows []domain.DocumentChunk) bool {
			return len(rows) == 0
		})).Return(nil)

		result, err := f.svc.Ingest(ctx, IngestInput{DocumentID: "doc-1", OwnerID: "user-1", Content: []byte("x"), Kind: domain.FileKindPDF})

		require.NoError(t, err)
		assert.Equal(t, 0, result.ChunkCount)
		f.embedder.AssertNotCalled(t, "EmbedDocuments")
		assert.True(t, f.runner.called)
	})

	t.Run("missing ids are a validation error", func(t *testing.T) {
		f := newIngestionFixture(t)

		_, err := f.svc.Ingest(ctx, IngestInput{OwnerID: "user-1", Kind: domain.FileKindPDF})

		assert.ErrorIs(t, err, domain.ErrMissingRequiredField)
	})
}
