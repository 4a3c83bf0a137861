package nats

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"ai-notetaking-pipeline/internal/pkg/logger"
	"ai-notetaking-pipeline/pkg/queue"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	headerJobId       = "Job-Id"
	headerJobName     = "Job-Name"
	headerMaxAttempts = "Job-Max-Attempts"
	headerDedupeKey   = "Job-Dedupe-Key"
)

type JobQueueConfig struct {
	StreamName      string
	SubjectPrefix   string
	AckWait         time.Duration
	Concurrency     int
	DuplicateWindow time.Duration
}

// JobQueue is the durable queue transport. Each job kind has its own durable
// consumer on a work-queue stream, so a message is handed to one worker at a
// time and is removed once acknowledged.
type JobQueue struct {
	js         jetstream.JetStream
	dispatcher *queue.Dispatcher
	cfg        JobQueueConfig
	sem        chan struct{}
	logger     logger.ILogger

	mu       sync.Mutex
	consumes []jetstream.ConsumeContext
	closed   bool
	wg       sync.WaitGroup
}

var _ queue.Queue = (*JobQueue)(nil)

func NewJobQueue(ctx context.Context, js jetstream.JetStream, dispatcher *queue.Dispatcher, cfg JobQueueConfig, log logger.ILogger) (*JobQueue, error) {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.AckWait <= 0 {
		cfg.AckWait = 15 * time.Minute
	}
	if cfg.DuplicateWindow <= 0 {
		cfg.DuplicateWindow = 2 * time.Minute
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       cfg.StreamName,
		Subjects:   []string{cfg.SubjectPrefix + ".>"},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.WorkQueuePolicy,
		Duplicates: cfg.DuplicateWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure stream %s: %w", cfg.StreamName, err)
	}

	return &JobQueue{
		js:         js,
		dispatcher: dispatcher,
		cfg:        cfg,
		sem:        make(chan struct{}, cfg.Concurrency),
		logger:     log,
	}, nil
}

func (q *JobQueue) subject(name string) string {
	return q.cfg.SubjectPrefix + "." + name
}

func (q *JobQueue) Register(name string, handler queue.Handler) {
	q.dispatcher.Register(name, handler)
}

func (q *JobQueue) Enqueue(ctx context.Context, name string, payload interface{}, opts ...queue.EnqueueOption) (uuid.UUID, error) {
	job, duplicate, err := q.dispatcher.Prepare(ctx, name, payload, opts...)
	if err != nil {
		return uuid.Nil, err
	}
	if duplicate {
		return job.Id, nil
	}
	if err := q.publish(ctx, job, job.Id.String()); err != nil {
		return uuid.Nil, err
	}
	return job.Id, nil
}

func (q *JobQueue) Resubmit(ctx context.Context, id uuid.UUID) error {
	job, err := q.dispatcher.PrepareResubmit(ctx, id)
	if err != nil {
		return err
	}
	// A fresh message id keeps the stream's duplicate window from eating the resubmit.
	msgID := fmt.Sprintf("%s-r%d", job.Id, time.Now().UnixNano())
	return q.publish(ctx, job, msgID)
}

func (q *JobQueue) publish(ctx context.Context, job *queue.Job, msgID string) error {
	msg := &nats.Msg{
		Subject: q.subject(job.Name),
		Data:    job.Payload,
		Header:  nats.Header{},
	}
	msg.Header.Set(headerJobId, job.Id.String())
	msg.Header.Set(headerJobName, job.Name)
	msg.Header.Set(headerMaxAttempts, strconv.Itoa(job.MaxAttempts))
	if job.DedupeKey != "" {
		msg.Header.Set(headerDedupeKey, job.DedupeKey)
	}

	if _, err := q.js.PublishMsg(ctx, msg, jetstream.WithMsgID(msgID)); err != nil {
		return fmt.Errorf("failed to publish job %s: %w", job.Name, err)
	}
	return nil
}

func (q *JobQueue) Start(ctx context.Context) error {
	for _, name := range q.dispatcher.Names() {
		consumer, err := q.js.CreateOrUpdateConsumer(ctx, q.cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       "worker-" + name,
			FilterSubject: q.subject(name),
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       q.cfg.AckWait,
			MaxDeliver:    -1,
			MaxAckPending: q.cfg.Concurrency,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer for %s: %w", name, err)
		}

		cc, err := consumer.Consume(func(msg jetstream.Msg) {
			q.sem <- struct{}{}
			q.wg.Add(1)
			go func() {
				defer q.wg.Done()
				defer func() { <-q.sem }()
				q.handle(ctx, msg)
			}()
		})
		if err != nil {
			return fmt.Errorf("failed to start consuming %s: %w", name, err)
		}

		q.mu.Lock()
		q.consumes = append(q.consumes, cc)
		q.mu.Unlock()
	}

	q.logger.Info("QUEUE", "JetStream queue started", map[string]interface{}{
		"stream":      q.cfg.StreamName,
		"jobs":        q.dispatcher.Names(),
		"concurrency": q.cfg.Concurrency,
	})
	return nil
}

func (q *JobQueue) handle(ctx context.Context, msg jetstream.Msg) {
	job, err := decodeMsg(msg)
	if err != nil {
		q.logger.Error("QUEUE", "Terminating undecodable message", map[string]interface{}{
			"subject": msg.Subject(),
			"error":   err.Error(),
		})
		_ = msg.Term()
		return
	}

	stop := q.keepAlive(msg)
	res := q.dispatcher.Run(ctx, job)
	stop()

	var ackErr error
	switch res.Outcome {
	case queue.OutcomeCompleted:
		ackErr = msg.Ack()
	case queue.OutcomeRetry:
		ackErr = msg.NakWithDelay(res.Delay)
	default:
		ackErr = msg.Term()
	}
	if ackErr != nil {
		q.logger.Warn("QUEUE", "Failed to acknowledge message", map[string]interface{}{
			"job_id":  job.Id.String(),
			"outcome": res.Outcome.String(),
			"error":   ackErr.Error(),
		})
	}
}

// keepAlive extends the ack deadline while a long handler runs.
func (q *JobQueue) keepAlive(msg jetstream.Msg) func() {
	done := make(chan struct{})
	ticker := time.NewTicker(q.cfg.AckWait / 3)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = msg.InProgress()
			}
		}
	}()
	return func() { close(done) }
}

func (q *JobQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	consumes := q.consumes
	q.consumes = nil
	q.mu.Unlock()

	for _, cc := range consumes {
		cc.Stop()
	}
	q.wg.Wait()
	return nil
}

func decodeMsg(msg jetstream.Msg) (*queue.Job, error) {
	meta, err := msg.Metadata()
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	headers := msg.Headers()
	id, err := uuid.Parse(headers.Get(headerJobId))
	if err != nil {
		return nil, fmt.Errorf("bad job id: %w", err)
	}
	maxAttempts, err := strconv.Atoi(headers.Get(headerMaxAttempts))
	if err != nil {
		return nil, fmt.Errorf("bad max attempts: %w", err)
	}
	return &queue.Job{
		Id:          id,
		Name:        headers.Get(headerJobName),
		Payload:     msg.Data(),
		Attempt:     int(meta.NumDelivered),
		MaxAttempts: maxAttempts,
		DedupeKey:   headers.Get(headerDedupeKey),
	}, nil
}
