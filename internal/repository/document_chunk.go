package repository

import (
	"context"
	"time"

	"github.com/cloo-solutions/docchat/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentChunkRepository persists the relational mirror of indexed chunks.
type DocumentChunkRepository struct {
	db dbtx
}

func NewDocumentChunkRepository(pool *pgxpool.Pool) *DocumentChunkRepository {
	return &DocumentChunkRepository{db: pool}
}

func NewDocumentChunkRepositoryWithTx(tx pgx.Tx) *DocumentChunkRepository {
	return &DocumentChunkRepository{db: tx}
}

// InsertChunks writes all rows in a single batch round trip.
func (r *DocumentChunkRepository) InsertChunks(ctx context.Context, chunks []domain.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		batch.Queue(
			`INSERT INTO document_chunks (id, document_id, chunk_index, content, vector_db_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ID, c.DocumentID, c.ChunkIndex, c.Content, c.VectorID, createdAt,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()
	for range chunks {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListByDocument returns up to limit chunks in chunk_index order. A
// non-positive limit returns every chunk.
func (r *DocumentChunkRepository) ListByDocument(ctx context.Context, documentID string, limit int) ([]*domain.DocumentChunk, error) {
	var rows pgx.Rows
	var err error
	if limit > 0 {
		rows, err = r.db.Query(ctx,
			`SELECT id, document_id, chunk_index, content, vector_db_id, created_at
			 FROM document_chunks WHERE document_id = $1
			 ORDER BY chunk_index ASC LIMIT $2`,
			documentID, limit,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, document_id, chunk_index, content, vector_db_id, created_at
			 FROM document_chunks WHERE document_id = $1
			 ORDER BY chunk_index ASC`,
			documentID,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*domain.DocumentChunk
	for rows.Next() {
		var c domain.DocumentChunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content, &c.VectorID, &c.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

func (r *DocumentChunkRepository) VectorIDsByDocument(ctx context.Context, documentID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT vector_db_id::text FROM document_chunks WHERE document_id = $1 ORDER BY chunk_index ASC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *DocumentChunkRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	return err
}
