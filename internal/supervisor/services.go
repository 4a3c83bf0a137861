package supervisor

import (
	"context"
	"fmt"
	"time"

	"ai-notetaking-pipeline/pkg/queue"
)

// QueueService starts the queue consumers and holds them until shutdown.
// Closing the queue is left to the owner, so a restart reuses it.
type QueueService struct {
	queue queue.Queue
	name  string
}

func NewQueueService(q queue.Queue, name string) *QueueService {
	return &QueueService{queue: q, name: name}
}

func (s *QueueService) Serve(ctx context.Context) error {
	if err := s.queue.Start(ctx); err != nil {
		return fmt.Errorf("start %s: %w", s.name, err)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *QueueService) String() string {
	return s.name
}

// HTTPServer is the part of *fiber.App the service needs.
type HTTPServer interface {
	Listen(addr string) error
	ShutdownWithContext(ctx context.Context) error
}

type HTTPService struct {
	server          HTTPServer
	addr            string
	shutdownTimeout time.Duration
}

func NewHTTPService(server HTTPServer, addr string, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{
		server:          server,
		addr:            addr,
		shutdownTimeout: shutdownTimeout,
	}
}

func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.server.Listen(h.addr)
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ops server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.ShutdownWithContext(shutdownCtx); err != nil {
			return fmt.Errorf("ops server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPService) String() string {
	return "ops-http"
}
