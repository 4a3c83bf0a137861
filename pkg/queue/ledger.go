package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Ledger keeps the inspectable record of every job. Record is the dedupe
// point: when another job that has not failed holds job.DedupeKey it returns that
// job's id and duplicate=true, and nothing is published.
type Ledger interface {
	Record(ctx context.Context, job *Job) (existing uuid.UUID, duplicate bool, err error)
	Started(ctx context.Context, id uuid.UUID, attempt int) error
	Retrying(ctx context.Context, id uuid.UUID, attempt int, runAt time.Time, cause error) error
	Succeeded(ctx context.Context, id uuid.UUID, attempt int) error
	Failed(ctx context.Context, id uuid.UUID, attempt int, cause error) error
	Lookup(ctx context.Context, id uuid.UUID) (*LedgerEntry, error)
	Reset(ctx context.Context, id uuid.UUID) error
}

type LedgerEntry struct {
	Job    Job
	Status string
}

const StatusFailed = "FAILED"

// NopLedger records nothing and never deduplicates.
type NopLedger struct{}

func (NopLedger) Record(ctx context.Context, job *Job) (uuid.UUID, bool, error) {
	return job.Id, false, nil
}

func (NopLedger) Started(ctx context.Context, id uuid.UUID, attempt int) error {
	return nil
}

func (NopLedger) Retrying(ctx context.Context, id uuid.UUID, attempt int, runAt time.Time, cause error) error {
	return nil
}

func (NopLedger) Succeeded(ctx context.Context, id uuid.UUID, attempt int) error {
	return nil
}

func (NopLedger) Failed(ctx context.Context, id uuid.UUID, attempt int, cause error) error {
	return nil
}

func (NopLedger) Lookup(ctx context.Context, id uuid.UUID) (*LedgerEntry, error) {
	return nil, nil
}

func (NopLedger) Reset(ctx context.Context, id uuid.UUID) error {
	return nil
}
