package contract

import (
	"context"
	"time"

	"ai-notetaking-pipeline/internal/entity"

	"github.com/google/uuid"
)

type JobFilter struct {
	Status entity.JobStatus
	Name   string
	Limit  int
	Offset int
}

type JobUpdate struct {
	Status     entity.JobStatus
	Attempt    int
	LastError  *string
	RunAt      *time.Time
	FinishedAt *time.Time
	// ReleaseDedupe clears the dedupe key so a later enqueue with the same key is accepted.
	ReleaseDedupe bool
}

type JobRepository interface {
	// Create returns ErrDuplicate when the dedupe key is held by another job.
	Create(ctx context.Context, job *entity.Job) error
	FindById(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	FindByDedupeKey(ctx context.Context, key string) (*entity.Job, error)
	Update(ctx context.Context, id uuid.UUID, update JobUpdate) error
	List(ctx context.Context, filter JobFilter) ([]*entity.Job, error)
	CountByStatus(ctx context.Context) (map[entity.JobStatus]int64, error)
	DeleteFinishedBefore(ctx context.Context, status entity.JobStatus, before time.Time) (int64, error)
}
