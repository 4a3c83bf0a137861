// Package memory runs the job queue inside one process on a watermill
// gochannel. It is used by single-process mode and by tests.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"ai-notetaking-pipeline/internal/pkg/logger"
	"ai-notetaking-pipeline/pkg/queue"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

const (
	metaJob         = "job"
	metaAttempt     = "attempt"
	metaMaxAttempts = "max_attempts"
	metaDedupeKey   = "dedupe_key"
)

type Config struct {
	Concurrency int
	TopicPrefix string
}

type Queue struct {
	dispatcher  *queue.Dispatcher
	pubSub      *gochannel.GoChannel
	topicPrefix string
	sem         chan struct{}
	logger      logger.ILogger

	mu      sync.Mutex
	started bool
	closed  bool
	timers  map[*time.Timer]struct{}

	// pending counts jobs published or waiting for a retry that have not
	// reached a terminal outcome.
	pending atomic.Int64
	wg      sync.WaitGroup
}

var _ queue.Queue = (*Queue)(nil)

func New(dispatcher *queue.Dispatcher, cfg Config, log logger.ILogger) *Queue {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "pipeline"
	}
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
		Persistent:          true,
	}, watermill.NopLogger{})

	return &Queue{
		dispatcher:  dispatcher,
		pubSub:      pubSub,
		topicPrefix: cfg.TopicPrefix,
		sem:         make(chan struct{}, cfg.Concurrency),
		logger:      log,
		timers:      map[*time.Timer]struct{}{},
	}
}

func (q *Queue) topic(name string) string {
	return q.topicPrefix + "." + name
}

func (q *Queue) Register(name string, handler queue.Handler) {
	q.dispatcher.Register(name, handler)
}

func (q *Queue) Enqueue(ctx context.Context, name string, payload interface{}, opts ...queue.EnqueueOption) (uuid.UUID, error) {
	if q.isClosed() {
		return uuid.Nil, queue.ErrClosed
	}
	job, duplicate, err := q.dispatcher.Prepare(ctx, name, payload, opts...)
	if err != nil {
		return uuid.Nil, err
	}
	if duplicate {
		return job.Id, nil
	}
	q.pending.Add(1)
	if err := q.publish(job); err != nil {
		q.pending.Add(-1)
		return uuid.Nil, err
	}
	return job.Id, nil
}

func (q *Queue) Resubmit(ctx context.Context, id uuid.UUID) error {
	job, err := q.dispatcher.PrepareResubmit(ctx, id)
	if err != nil {
		return err
	}
	q.pending.Add(1)
	if err := q.publish(job); err != nil {
		q.pending.Add(-1)
		return err
	}
	return nil
}

func (q *Queue) publish(job *queue.Job) error {
	msg := message.NewMessage(job.Id.String(), job.Payload)
	msg.Metadata.Set(metaJob, job.Name)
	msg.Metadata.Set(metaAttempt, strconv.Itoa(job.Attempt))
	msg.Metadata.Set(metaMaxAttempts, strconv.Itoa(job.MaxAttempts))
	msg.Metadata.Set(metaDedupeKey, job.DedupeKey)
	if err := q.pubSub.Publish(q.topic(job.Name), msg); err != nil {
		return fmt.Errorf("publish %s: %w", job.Name, err)
	}
	return nil
}

// Start subscribes every registered job kind. Handlers registered later are not consumed.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return nil
	}
	q.started = true
	q.mu.Unlock()

	for _, name := range q.dispatcher.Names() {
		messages, err := q.pubSub.Subscribe(ctx, q.topic(name))
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", name, err)
		}
		go q.consume(ctx, messages)
	}
	q.logger.Info("QUEUE", "In-process queue started", map[string]interface{}{
		"jobs":        q.dispatcher.Names(),
		"concurrency": cap(q.sem),
	})
	return nil
}

func (q *Queue) consume(ctx context.Context, messages <-chan *message.Message) {
	for msg := range messages {
		// Delivery bookkeeping lives in the dispatcher; the transport copy is done.
		msg.Ack()

		job, err := decode(msg)
		if err != nil {
			q.logger.Error("QUEUE", "Dropping undecodable message", map[string]interface{}{
				"message_id": msg.UUID,
				"error":      err.Error(),
			})
			q.pending.Add(-1)
			continue
		}

		select {
		case q.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			defer func() { <-q.sem }()
			q.handle(ctx, job)
		}()
	}
}

func (q *Queue) handle(ctx context.Context, job *queue.Job) {
	res := q.dispatcher.Run(ctx, job)
	if res.Outcome != queue.OutcomeRetry {
		q.pending.Add(-1)
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.pending.Add(-1)
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(res.Delay, func() {
		q.mu.Lock()
		delete(q.timers, timer)
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return
		}
		next := *job
		next.Attempt++
		if err := q.publish(&next); err != nil {
			q.logger.Error("QUEUE", "Failed to republish job for retry", map[string]interface{}{
				"job_id": job.Id.String(),
				"error":  err.Error(),
			})
			q.pending.Add(-1)
		}
	})
	q.timers[timer] = struct{}{}
}

// WaitIdle blocks until every published job has reached a terminal outcome.
func (q *Queue) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if q.pending.Load() <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	for t := range q.timers {
		if t.Stop() {
			q.pending.Add(-1)
		}
	}
	q.timers = map[*time.Timer]struct{}{}
	q.mu.Unlock()

	err := q.pubSub.Close()
	q.wg.Wait()
	return err
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func decode(msg *message.Message) (*queue.Job, error) {
	id, err := uuid.Parse(msg.UUID)
	if err != nil {
		return nil, fmt.Errorf("bad job id %q: %w", msg.UUID, err)
	}
	attempt, err := strconv.Atoi(msg.Metadata.Get(metaAttempt))
	if err != nil {
		return nil, fmt.Errorf("bad attempt: %w", err)
	}
	maxAttempts, err := strconv.Atoi(msg.Metadata.Get(metaMaxAttempts))
	if err != nil {
		return nil, fmt.Errorf("bad max attempts: %w", err)
	}
	return &queue.Job{
		Id:          id,
		Name:        msg.Metadata.Get(metaJob),
		Payload:     msg.Payload,
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
		DedupeKey:   msg.Metadata.Get(metaDedupeKey),
	}, nil
}
