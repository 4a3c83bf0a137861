package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-notetaking-pipeline/internal/constant"
	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/pkg/logger"
	"ai-notetaking-pipeline/internal/repository/contract"
	"ai-notetaking-pipeline/internal/repository/unitofwork"
	"ai-notetaking-pipeline/pkg/queue"

	"github.com/google/uuid"
)

// jobLedgerService records every queue transition in the jobs table. The
// unique dedupe key column is what suppresses duplicate enqueues across
// worker processes.
type jobLedgerService struct {
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
}

func NewJobLedgerService(uowFactory unitofwork.RepositoryFactory, log logger.ILogger) queue.Ledger {
	return &jobLedgerService{
		uowFactory: uowFactory,
		logger:     log,
	}
}

func (s *jobLedgerService) Record(ctx context.Context, job *queue.Job) (uuid.UUID, bool, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.JobRepository()

	row := &entity.Job{
		Id:          job.Id,
		Name:        job.Name,
		Payload:     job.Payload,
		Status:      entity.JobStatusQueued,
		MaxAttempts: job.MaxAttempts,
		CreatedAt:   time.Now(),
	}
	if job.DedupeKey != "" {
		key := job.DedupeKey
		row.DedupeKey = &key
	}

	// The holder of a key can finish between a rejected insert and the lookup,
	// so one more insert is attempted before giving up.
	for i := 0; i < 2; i++ {
		err := repo.Create(ctx, row)
		if err == nil {
			return job.Id, false, nil
		}
		if !errors.Is(err, contract.ErrDuplicate) || row.DedupeKey == nil {
			return uuid.Nil, false, err
		}
		existing, err := repo.FindByDedupeKey(ctx, job.DedupeKey)
		if err != nil {
			return uuid.Nil, false, err
		}
		if existing != nil {
			return existing.Id, true, nil
		}
	}
	return uuid.Nil, false, fmt.Errorf("dedupe key %s: %w", job.DedupeKey, contract.ErrDuplicate)
}

func (s *jobLedgerService) Started(ctx context.Context, id uuid.UUID, attempt int) error {
	return s.update(ctx, id, func(job *entity.Job, u *contract.JobUpdate) {
		u.Status = entity.JobStatusActive
		u.Attempt = attempt
		u.RunAt = nil
	})
}

func (s *jobLedgerService) Retrying(ctx context.Context, id uuid.UUID, attempt int, runAt time.Time, cause error) error {
	return s.update(ctx, id, func(job *entity.Job, u *contract.JobUpdate) {
		msg := cause.Error()
		u.Status = entity.JobStatusRetrying
		u.Attempt = attempt
		u.LastError = &msg
		u.RunAt = &runAt
	})
}

func (s *jobLedgerService) Succeeded(ctx context.Context, id uuid.UUID, attempt int) error {
	return s.update(ctx, id, func(job *entity.Job, u *contract.JobUpdate) {
		now := time.Now()
		u.Status = entity.JobStatusCompleted
		u.Attempt = attempt
		u.RunAt = nil
		u.FinishedAt = &now
	})
}

// Failed releases the dedupe key so the same stage can be enqueued again.
// Completed jobs keep theirs until the janitor prunes the row.
func (s *jobLedgerService) Failed(ctx context.Context, id uuid.UUID, attempt int, cause error) error {
	return s.update(ctx, id, func(job *entity.Job, u *contract.JobUpdate) {
		now := time.Now()
		msg := cause.Error()
		u.Status = entity.JobStatusFailed
		u.Attempt = attempt
		u.LastError = &msg
		u.RunAt = nil
		u.FinishedAt = &now
		u.ReleaseDedupe = true
	})
}

func (s *jobLedgerService) Lookup(ctx context.Context, id uuid.UUID) (*queue.LedgerEntry, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	job, err := uow.JobRepository().FindById(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}
	entry := &queue.LedgerEntry{
		Job: queue.Job{
			Id:          job.Id,
			Name:        job.Name,
			Payload:     job.Payload,
			Attempt:     job.Attempt,
			MaxAttempts: job.MaxAttempts,
		},
		Status: string(job.Status),
	}
	if job.DedupeKey != nil {
		entry.Job.DedupeKey = *job.DedupeKey
	}
	return entry, nil
}

// Reset puts a failed job back to QUEUED with a fresh attempt counter. The
// last error is kept for the operator until the next attempt overwrites it.
func (s *jobLedgerService) Reset(ctx context.Context, id uuid.UUID) error {
	return s.update(ctx, id, func(job *entity.Job, u *contract.JobUpdate) {
		u.Status = entity.JobStatusQueued
		u.Attempt = 0
		u.RunAt = nil
		u.FinishedAt = nil
	})
}

// update reads the row, applies fn on top of the stored values and writes it back.
func (s *jobLedgerService) update(ctx context.Context, id uuid.UUID, fn func(job *entity.Job, u *contract.JobUpdate)) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.JobRepository()

	job, err := repo.FindById(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		s.logger.Warn(constant.ModuleQueue, "Ledger row missing", map[string]interface{}{
			"job_id": id.String(),
		})
		return contract.ErrNotFound
	}

	u := contract.JobUpdate{
		Status:     job.Status,
		Attempt:    job.Attempt,
		LastError:  job.LastError,
		RunAt:      job.RunAt,
		FinishedAt: job.FinishedAt,
	}
	fn(job, &u)
	return repo.Update(ctx, id, u)
}
