package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SourceJobPayload is the body of every per-source job.
type SourceJobPayload struct {
	SourceId uuid.UUID `json:"sourceId"`
}

type VisualJobPayload struct {
	VisualId uuid.UUID `json:"visualId"`
	SourceId uuid.UUID `json:"sourceId"`
}

// DedupeKey builds "<JOB>:<id>[:<id>...]".
func DedupeKey(job string, ids ...uuid.UUID) string {
	parts := make([]string, 0, len(ids)+1)
	parts = append(parts, job)
	for _, id := range ids {
		parts = append(parts, id.String())
	}
	return strings.Join(parts, ":")
}

type ListJobsRequest struct {
	Status string `query:"status"`
	Name   string `query:"name"`
	Limit  int    `query:"limit"`
	Offset int    `query:"offset"`
}

type JobResponse struct {
	Id          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Payload     string     `json:"payload"`
	DedupeKey   *string    `json:"dedupe_key"`
	Status      string     `json:"status"`
	Attempt     int        `json:"attempt"`
	MaxAttempts int        `json:"max_attempts"`
	LastError   *string    `json:"last_error"`
	RunAt       *time.Time `json:"run_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
	FinishedAt  *time.Time `json:"finished_at"`
}

type JobStatsResponse struct {
	Counts map[string]int64 `json:"counts"`
}

type EnqueueResponse struct {
	JobId uuid.UUID `json:"job_id"`
}
