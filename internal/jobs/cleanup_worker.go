package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/docchat/internal/domain"
)

const (
	// MaxRetries is the number of failed attempts after which a job is marked failed.
	MaxRetries = 3

	DefaultClaimBatch = 100
)

// CleanupJobRepository claims and settles vector cleanup jobs.
type CleanupJobRepository interface {
	ClaimPending(ctx context.Context, limit int) ([]*domain.VectorCleanupJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.CleanupJobStatus, errMsg string) error
	IncrementRetries(ctx context.Context, id string) error
}

// VectorDeleter removes points from the vector index.
type VectorDeleter interface {
	Delete(ctx context.Context, ids []string) error
}

// Availability reports whether the vector index connected at startup.
type Availability interface {
	Available() bool
}

// VectorCleanupWorker retries vector deletions that failed during document
// deletion.
type VectorCleanupWorker struct {
	repo      CleanupJobRepository
	index     VectorDeleter
	status    Availability
	batchSize int
}

func NewVectorCleanupWorker(repo CleanupJobRepository, index VectorDeleter, status Availability) *VectorCleanupWorker {
	return &VectorCleanupWorker{
		repo:      repo,
		index:     index,
		status:    status,
		batchSize: DefaultClaimBatch,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *VectorCleanupWorker) ProcessJobs(ctx context.Context) error {
	if w.status != nil && !w.status.Available() {
		return nil
	}

	jobs, err := w.repo.ClaimPending(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to claim cleanup jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	log.Printf("processing %d vector cleanup jobs", len(jobs))
	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("cleanup job %s: %v", job.ID, err)
		}
	}
	return nil
}

func (w *VectorCleanupWorker) processJob(ctx context.Context, job *domain.VectorCleanupJob) error {
	if err := w.index.Delete(ctx, job.VectorIDs); err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.UpdateStatus(ctx, job.ID, domain.CleanupJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Printf("cleanup job %s removed %d vectors of document %s", job.ID, len(job.VectorIDs), job.DocumentID)
	return nil
}

func (w *VectorCleanupWorker) handleJobFailure(ctx context.Context, job *domain.VectorCleanupJob, jobErr error) error {
	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		log.Printf("cleanup job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.CleanupJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateStatus(ctx, job.ID, domain.CleanupJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}
	return nil
}
