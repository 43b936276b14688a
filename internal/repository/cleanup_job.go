package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/docchat/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CleanupJobRepository struct {
	db dbtx
}

func NewCleanupJobRepository(pool *pgxpool.Pool) *CleanupJobRepository {
	return &CleanupJobRepository{db: pool}
}

func NewCleanupJobRepositoryWithTx(tx pgx.Tx) *CleanupJobRepository {
	return &CleanupJobRepository{db: tx}
}

func (r *CleanupJobRepository) Create(ctx context.Context, job *domain.VectorCleanupJob) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO vector_cleanup_jobs (id, document_id, vector_ids, status, retries, error, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, nullableString(job.DocumentID), job.VectorIDs, job.Status, job.Retries,
		nullableString(job.Error), job.CreatedAt, job.ProcessedAt,
	)
	return err
}

func (r *CleanupJobRepository) GetByID(ctx context.Context, id string) (*domain.VectorCleanupJob, error) {
	job, err := scanCleanupJob(r.db.QueryRow(ctx,
		`SELECT id, document_id::text, vector_ids, status, retries, error, created_at, processed_at
		 FROM vector_cleanup_jobs WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCleanupJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// ClaimPending moves up to limit pending jobs to processing and returns
// them. Concurrent workers never claim the same row.
func (r *CleanupJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.VectorCleanupJob, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM vector_cleanup_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE vector_cleanup_jobs
		 SET status = $3,
		     error = NULL,
		     processed_at = NULL
		 FROM cte
		 WHERE vector_cleanup_jobs.id = cte.id
		 RETURNING vector_cleanup_jobs.id, vector_cleanup_jobs.document_id::text, vector_cleanup_jobs.vector_ids,
		           vector_cleanup_jobs.status, vector_cleanup_jobs.retries, vector_cleanup_jobs.error,
		           vector_cleanup_jobs.created_at, vector_cleanup_jobs.processed_at`,
		domain.CleanupJobStatusPending, limit, domain.CleanupJobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.VectorCleanupJob
	for rows.Next() {
		job, err := scanCleanupJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *CleanupJobRepository) UpdateStatus(ctx context.Context, id string, status domain.CleanupJobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.CleanupJobStatusCompleted || status == domain.CleanupJobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE vector_cleanup_jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrCleanupJobNotFound
	}
	return nil
}

func (r *CleanupJobRepository) IncrementRetries(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE vector_cleanup_jobs SET retries = retries + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrCleanupJobNotFound
	}
	return nil
}

func scanCleanupJob(row pgx.Row) (*domain.VectorCleanupJob, error) {
	var job domain.VectorCleanupJob
	var documentID, errMsg pgtype.Text
	if err := row.Scan(&job.ID, &documentID, &job.VectorIDs, &job.Status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt); err != nil {
		return nil, err
	}
	job.DocumentID = documentID.String
	job.Error = errMsg.String
	return &job, nil
}
