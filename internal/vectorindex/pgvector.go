package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cloo-solutions/docchat/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgvectorIndex keeps each collection in its own table with a vector(dim)
// column and an HNSW index. The vector_collections table records the
// dimension and distance of every collection.
type PgvectorIndex struct {
	pool *pgxpool.Pool

	mu   sync.RWMutex
	spec *CollectionSpec
}

func NewPgvectorIndex(pool *pgxpool.Pool) *PgvectorIndex {
	return &PgvectorIndex{pool: pool}
}

func (p *PgvectorIndex) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PgvectorIndex) EnsureCollection(ctx context.Context, spec CollectionSpec) error {
	if err := validateSpec(spec); err != nil {
		return err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Serialises concurrent creators of the same collection.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, spec.Name); err != nil {
		return err
	}

	var dimension int
	var distance string
	err = tx.QueryRow(ctx,
		`SELECT dimension, distance FROM vector_collections WHERE name = $1`,
		spec.Name,
	).Scan(&dimension, &distance)
	switch {
	case err == nil:
		if dimension != spec.Dimension {
			return domain.Wrap(domain.ErrSchemaMismatch,
				fmt.Errorf("collection %q has dimension %d, want %d", spec.Name, dimension, spec.Dimension))
		}
		spec.Distance = Distance(distance)
	case errors.Is(err, pgx.ErrNoRows):
		if err := createCollection(ctx, tx, spec); err != nil {
			return err
		}
	default:
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	p.spec = &spec
	p.mu.Unlock()
	return nil
}

func createCollection(ctx context.Context, tx pgx.Tx, spec CollectionSpec) error {
	table := tableName(spec.Name)
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id          TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			embedding   vector(%d) NOT NULL,
			payload     JSONB NOT NULL
		)`, table, spec.Dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (document_id)`,
			pgx.Identifier{spec.Name + "_document_id_idx"}.Sanitize(), table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding %s)`,
			pgx.Identifier{spec.Name + "_embedding_idx"}.Sanitize(), table, opsClass(spec.Distance)),
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO vector_collections (name, dimension, distance) VALUES ($1, $2, $3)`,
		spec.Name, spec.Dimension, string(spec.Distance),
	)
	return err
}

func (p *PgvectorIndex) Upsert(ctx context.Context, ids []string, vectors [][]float32, payloads []domain.ChunkPayload) error {
	spec, err := p.current()
	if err != nil {
		return err
	}
	if err := validatePoints(spec.Dimension, ids, vectors, payloads); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (id, document_id, embedding, payload) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET document_id = EXCLUDED.document_id, embedding = EXCLUDED.embedding, payload = EXCLUDED.payload`,
		tableName(spec.Name))

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for i, id := range ids {
		batch.Queue(query, id, payloads[i].DocumentID, pgvector.NewVector(vectors[i]), payloads[i])
	}
	br := tx.SendBatch(ctx, batch)
	for range ids {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *PgvectorIndex) Search(ctx context.Context, vector []float32, k int, filter Filter) ([]Hit, error) {
	spec, err := p.current()
	if err != nil {
		return nil, err
	}
	if len(vector) != spec.Dimension {
		return nil, domain.ErrDimensionMismatch
	}
	if k <= 0 {
		return []Hit{}, nil
	}

	rows, err := p.pool.Query(ctx,
		fmt.Sprintf(`SELECT id, payload, embedding %s $1 AS distance
		 FROM %s
		 WHERE ($2 = '' OR document_id = $2)
		 ORDER BY distance ASC, id ASC
		 LIMIT $3`, distanceOperator(spec.Distance), tableName(spec.Name)),
		pgvector.NewVector(vector), filter.DocumentID, k,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := make([]Hit, 0, k)
	for rows.Next() {
		var h Hit
		var distance float64
		if err := rows.Scan(&h.ID, &h.Payload, &distance); err != nil {
			return nil, err
		}
		h.Score = similarity(spec.Distance, distance)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (p *PgvectorIndex) Delete(ctx context.Context, ids []string) error {
	spec, err := p.current()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	_, err = p.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, tableName(spec.Name)),
		ids,
	)
	return err
}

func (p *PgvectorIndex) current() (CollectionSpec, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.spec == nil {
		return CollectionSpec{}, errCollectionNotReady
	}
	return *p.spec, nil
}

func tableName(collection string) string {
	return pgx.Identifier{"vec_" + collection}.Sanitize()
}

func opsClass(d Distance) string {
	switch d {
	case Dot:
		return "vector_ip_ops"
	case Euclid:
		return "vector_l2_ops"
	default:
		return "vector_cosine_ops"
	}
}

func distanceOperator(d Distance) string {
	switch d {
	case Dot:
		return "<#>"
	case Euclid:
		return "<->"
	default:
		return "<=>"
	}
}

// similarity converts an operator distance into a higher-is-better score
// on the same scale MemoryIndex uses.
func similarity(d Distance, distance float64) float64 {
	switch d {
	case Dot:
		// <#> returns the negative inner product
		return -distance
	case Euclid:
		return 1 / (1 + distance)
	default:
		return 1 - distance
	}
}
