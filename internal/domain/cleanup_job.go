package domain

import (
	"fmt"
	"time"
)

// CleanupJobStatus represents the status of a vector cleanup job
type CleanupJobStatus string

const (
	CleanupJobStatusPending    CleanupJobStatus = "pending"
	CleanupJobStatusProcessing CleanupJobStatus = "processing"
	CleanupJobStatusCompleted  CleanupJobStatus = "completed"
	CleanupJobStatusFailed     CleanupJobStatus = "failed"
)

// VectorCleanupJob records vector ids whose deletion from the index failed.
type VectorCleanupJob struct {
	ID          string
	DocumentID  string
	VectorIDs   []string
	Status      CleanupJobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// ValidateVectorCleanupJob validates a VectorCleanupJob instance
func ValidateVectorCleanupJob(j *VectorCleanupJob) error {
	if j == nil {
		return fmt.Errorf("cleanup job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("cleanup job ID is required")
	}

	if len(j.VectorIDs) == 0 {
		return fmt.Errorf("cleanup job must reference at least one vector")
	}

	if !isValidCleanupJobStatus(j.Status) {
		return fmt.Errorf("cleanup job Status is invalid: %s", j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("cleanup job Retries cannot be negative")
	}

	return nil
}

func isValidCleanupJobStatus(s CleanupJobStatus) bool {
	switch s {
	case CleanupJobStatusPending, CleanupJobStatusProcessing, CleanupJobStatusCompleted, CleanupJobStatusFailed:
		return true
	default:
		return false
	}
}
