package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusActive    JobStatus = "ACTIVE"
	JobStatusRetrying  JobStatus = "RETRYING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is the ledger copy of a queued unit of work.
type Job struct {
	Id          uuid.UUID
	Name        string
	Payload     []byte
	DedupeKey   *string
	Status      JobStatus
	Attempt     int
	MaxAttempts int
	LastError   *string
	RunAt       *time.Time
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	FinishedAt  *time.Time
}
