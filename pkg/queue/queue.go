// Package queue defines the durable job queue the pipeline stages run on.
// Delivery is at-least-once; a handler error is retried with exponential
// backoff until the attempt limit, then the job is kept as FAILED.
package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

var (
	ErrClosed          = errors.New("queue closed")
	ErrUnknownJob      = errors.New("no handler registered for job")
	ErrJobNotFound     = errors.New("job not found")
	ErrNotResubmitable = errors.New("only failed jobs can be resubmitted")
)

// Job is one delivery of a queued unit of work.
type Job struct {
	Id          uuid.UUID
	Name        string
	Payload     []byte
	Attempt     int
	MaxAttempts int
	DedupeKey   string
}

// Decode unmarshals the payload into v.
func (j *Job) Decode(v interface{}) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return Permanent(fmt.Errorf("decode %s payload: %w", j.Name, err))
	}
	return nil
}

// LastAttempt reports whether a failure of this delivery is terminal.
func (j *Job) LastAttempt() bool {
	return j.MaxAttempts > 0 && j.Attempt >= j.MaxAttempts
}

type Handler func(ctx context.Context, job *Job) error

type Queue interface {
	Enqueue(ctx context.Context, name string, payload interface{}, opts ...EnqueueOption) (uuid.UUID, error)
	Register(name string, handler Handler)
	Start(ctx context.Context) error
	// Resubmit re-queues a FAILED job with a fresh attempt counter.
	Resubmit(ctx context.Context, id uuid.UUID) error
	Close() error
}

type EnqueueOptions struct {
	DedupeKey string
}

type EnqueueOption func(*EnqueueOptions)

// WithDedupeKey makes the enqueue a no-op returning the existing job id while
// another job that has not failed holds the same key.
func WithDedupeKey(key string) EnqueueOption {
	return func(o *EnqueueOptions) {
		o.DedupeKey = key
	}
}

func BuildEnqueueOptions(opts ...EnqueueOption) EnqueueOptions {
	var o EnqueueOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// EncodePayload accepts raw bytes or any JSON-serialisable value.
func EncodePayload(payload interface{}) ([]byte, error) {
	switch p := payload.(type) {
	case nil:
		return []byte("{}"), nil
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return raw, nil
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the job fails on this attempt.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	var p *permanentError
	if errors.As(err, &p) {
		return err
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
