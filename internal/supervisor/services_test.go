package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-notetaking-pipeline/internal/pkg/logger"
	"ai-notetaking-pipeline/pkg/queue"
	memqueue "ai-notetaking-pipeline/pkg/queue/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	mu       sync.Mutex
	stop     chan struct{}
	listened string
	shutdown bool
}

func newFakeServer() *fakeServer {
	return &fakeServer{stop: make(chan struct{})}
}

func (f *fakeServer) Listen(addr string) error {
	f.mu.Lock()
	f.listened = addr
	f.mu.Unlock()
	<-f.stop
	return nil
}

func (f *fakeServer) ShutdownWithContext(ctx context.Context) error {
	f.mu.Lock()
	f.shutdown = true
	f.mu.Unlock()
	close(f.stop)
	return nil
}

type failingServer struct{}

func (failingServer) Listen(addr string) error { return errors.New("address in use") }
func (failingServer) ShutdownWithContext(ctx context.Context) error { return nil }

func TestHTTPServiceShutsDownOnCancel(t *testing.T) {
	srv := newFakeServer()
	svc := NewHTTPService(srv, ":0", time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.True(t, srv.shutdown)
	assert.Equal(t, "ops-http", svc.String())
}

func TestHTTPServiceReportsListenFailure(t *testing.T) {
	svc := NewHTTPService(failingServer{}, ":0", 0)
	err := svc.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
}

func TestQueueServiceStartsConsumers(t *testing.T) {
	log := logger.NewNopLogger()
	q := memqueue.New(queue.NewDispatcher(nil, queue.RetryPolicy{MaxAttempts: 1}, log), memqueue.Config{Concurrency: 1}, log)
	defer q.Close()

	ran := make(chan struct{}, 1)
	q.Register("PING", func(ctx context.Context, job *queue.Job) error {
		ran <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewQueueService(q, "job-queue").Serve(ctx) }()

	_, err := q.Enqueue(context.Background(), "PING", map[string]string{"hello": "world"})
	require.NoError(t, err)

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not consumed")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
