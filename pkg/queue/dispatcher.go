package queue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"ai-notetaking-pipeline/internal/pkg/logger"
	"ai-notetaking-pipeline/pkg/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeRetry
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeRetry:
		return "retrying"
	default:
		return "failed"
	}
}

type Result struct {
	Outcome Outcome
	Delay   time.Duration
	Err     error
}

// Dispatcher holds the handler registry and the retry decision shared by all
// transports. Transports only move bytes and apply the returned Result.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	ledger   Ledger
	policy   RetryPolicy
	logger   logger.ILogger
	tracer   trace.Tracer
}

func NewDispatcher(ledger Ledger, policy RetryPolicy, log logger.ILogger) *Dispatcher {
	if ledger == nil {
		ledger = NopLedger{}
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Dispatcher{
		handlers: map[string]Handler{},
		ledger:   ledger,
		policy:   policy,
		logger:   log,
		tracer:   otel.Tracer("ai-notetaking-pipeline/queue"),
	}
}

func (d *Dispatcher) Register(name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = handler
}

// Names returns the registered job kinds in a stable order.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.handlers))
	for n := range d.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (d *Dispatcher) Policy() RetryPolicy {
	return d.policy
}

// Prepare builds and records a new job. When the dedupe key is already held
// it returns the holder's id and duplicate=true; the caller must not publish.
func (d *Dispatcher) Prepare(ctx context.Context, name string, payload interface{}, opts ...EnqueueOption) (*Job, bool, error) {
	raw, err := EncodePayload(payload)
	if err != nil {
		return nil, false, err
	}
	o := BuildEnqueueOptions(opts...)
	job := &Job{
		Id:          uuid.New(),
		Name:        name,
		Payload:     raw,
		Attempt:     1,
		MaxAttempts: d.policy.MaxAttempts,
		DedupeKey:   o.DedupeKey,
	}

	existing, duplicate, err := d.ledger.Record(ctx, job)
	if err != nil {
		return nil, false, fmt.Errorf("record job %s: %w", name, err)
	}
	if duplicate {
		metrics.JobsDeduplicated.WithLabelValues(name).Inc()
		d.logger.Debug("QUEUE", "Enqueue deduplicated", map[string]interface{}{
			"job":         name,
			"dedupe_key":  o.DedupeKey,
			"existing_id": existing.String(),
		})
		job.Id = existing
		return job, true, nil
	}
	metrics.JobsEnqueued.WithLabelValues(name).Inc()
	return job, false, nil
}

// PrepareResubmit resets a FAILED job so it can be published again.
func (d *Dispatcher) PrepareResubmit(ctx context.Context, id uuid.UUID) (*Job, error) {
	entry, err := d.ledger.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrJobNotFound
	}
	if entry.Status != StatusFailed {
		return nil, fmt.Errorf("%w: job %s is %s", ErrNotResubmitable, id, entry.Status)
	}
	if err := d.ledger.Reset(ctx, id); err != nil {
		return nil, err
	}
	job := entry.Job
	job.Attempt = 1
	job.MaxAttempts = d.policy.MaxAttempts
	return &job, nil
}

// Run executes one delivery and decides its fate.
func (d *Dispatcher) Run(ctx context.Context, job *Job) Result {
	d.mu.RLock()
	handler, ok := d.handlers[job.Name]
	d.mu.RUnlock()

	details := map[string]interface{}{
		"job_id":  job.Id.String(),
		"job":     job.Name,
		"attempt": job.Attempt,
	}

	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownJob, job.Name)
		d.fail(ctx, job, err, details)
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	if err := d.ledger.Started(ctx, job.Id, job.Attempt); err != nil {
		d.logger.Warn("QUEUE", "Failed to mark job started", withErr(details, err))
	}

	ctx, span := d.tracer.Start(ctx, "job "+job.Name, trace.WithAttributes(
		attribute.String("job.id", job.Id.String()),
		attribute.String("job.name", job.Name),
		attribute.Int("job.attempt", job.Attempt),
	))
	defer span.End()

	inFlight := metrics.JobsInFlight.WithLabelValues(job.Name)
	inFlight.Inc()
	start := time.Now()
	err := safeCall(ctx, handler, job)
	metrics.JobDuration.WithLabelValues(job.Name).Observe(time.Since(start).Seconds())
	inFlight.Dec()

	if err == nil {
		if lerr := d.ledger.Succeeded(ctx, job.Id, job.Attempt); lerr != nil {
			d.logger.Warn("QUEUE", "Failed to mark job completed", withErr(details, lerr))
		}
		metrics.JobOutcomes.WithLabelValues(job.Name, OutcomeCompleted.String()).Inc()
		return Result{Outcome: OutcomeCompleted}
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if IsPermanent(err) || job.Attempt >= job.MaxAttempts {
		d.fail(ctx, job, err, details)
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	delay := d.policy.Backoff(job.Attempt)
	if lerr := d.ledger.Retrying(ctx, job.Id, job.Attempt, time.Now().Add(delay), err); lerr != nil {
		d.logger.Warn("QUEUE", "Failed to mark job retrying", withErr(details, lerr))
	}
	metrics.JobOutcomes.WithLabelValues(job.Name, OutcomeRetry.String()).Inc()
	details["retry_in"] = delay.String()
	d.logger.Warn("QUEUE", "Job failed, retry scheduled", withErr(details, err))
	return Result{Outcome: OutcomeRetry, Delay: delay, Err: err}
}

func (d *Dispatcher) fail(ctx context.Context, job *Job, err error, details map[string]interface{}) {
	if lerr := d.ledger.Failed(ctx, job.Id, job.Attempt, err); lerr != nil {
		d.logger.Warn("QUEUE", "Failed to mark job failed", withErr(details, lerr))
	}
	metrics.JobOutcomes.WithLabelValues(job.Name, OutcomeFailed.String()).Inc()
	d.logger.Error("QUEUE", "Job failed permanently", withErr(details, err))
}

func safeCall(ctx context.Context, handler Handler, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v\n%s", r, debug.Stack())
		}
	}()
	return handler(ctx, job)
}

func withErr(details map[string]interface{}, err error) map[string]interface{} {
	out := make(map[string]interface{}, len(details)+1)
	for k, v := range details {
		out[k] = v
	}
	out["error"] = err.Error()
	return out
}
