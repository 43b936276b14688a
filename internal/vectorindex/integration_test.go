//go:build integration

package vectorindex

import (
	"context"
	"testing"

	"github.com/cloo-solutions/docchat/internal/domain"
	"github.com/cloo-solutions/docchat/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseBackend(t *testing.T, backend Backend) {
	ctx := context.Background()
	spec := CollectionSpec{Name: "document_chunks", Dimension: 3, Distance: Cosine}

	require.NoError(t, backend.Ping(ctx))
	require.NoError(t, backend.EnsureCollection(ctx, spec))
	require.NoError(t, backend.EnsureCollection(ctx, spec))

	err := backend.EnsureCollection(ctx, CollectionSpec{Name: "document_chunks", Dimension: 4, Distance: Cosine})
	assert.ErrorIs(t, err, domain.ErrSchemaMismatch)

	docA, docB := uuid.NewString(), uuid.NewString()
	ids := []string{uuid.NewString(), uuid.NewString(), uuid.NewString()}
	payloads := []domain.ChunkPayload{
		{DocumentID: docA, UserID: "u1", ChunkIndex: 0, VectorID: ids[0], FileType: "pdf", PageContent: "alpha"},
		{DocumentID: docA, UserID: "u1", ChunkIndex: 1, VectorID: ids[1], FileType: "pdf", PageContent: "beta"},
		{DocumentID: docB, UserID: "u2", ChunkIndex: 0, VectorID: ids[2], FileType: "docx", PageContent: "gamma"},
	}
	vectors := [][]float32{{1, 0, 0}, {0.6, 0.8, 0}, {1, 0, 0}}

	err = backend.Upsert(ctx, ids, [][]float32{{1, 0}, {1, 0, 0}, {1, 0, 0}}, payloads)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	require.NoError(t, backend.Upsert(ctx, ids, vectors, payloads))

	hits, err := backend.Search(ctx, []float32{1, 0, 0}, 5, Filter{DocumentID: docA})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, ids[0], hits[0].ID)
	assert.Equal(t, "alpha", hits[0].Payload.PageContent)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	hits, err = backend.Search(ctx, []float32{1, 0, 0}, 5, Filter{DocumentID: uuid.NewString()})
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, backend.Delete(ctx, []string{ids[0], uuid.NewString()}))
	hits, err = backend.Search(ctx, []float32{1, 0, 0}, 5, Filter{DocumentID: docA})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, ids[1], hits[0].ID)
}

func TestPgvectorIndex_Integration(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	exerciseBackend(t, NewPgvectorIndex(pool))
}

func TestQdrantIndex_Integration(t *testing.T) {
	ctx := context.Background()
	qc := testutil.NewQdrantContainer(ctx, t)
	defer qc.Terminate(ctx)

	exerciseBackend(t, NewQdrantIndex(QdrantConfig{URL: qc.URL()}))
}
