package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-notetaking-pipeline/internal/bootstrap"
	"ai-notetaking-pipeline/internal/config"
	"ai-notetaking-pipeline/internal/constant"
	"ai-notetaking-pipeline/internal/server"
	"ai-notetaking-pipeline/internal/supervisor"
	"ai-notetaking-pipeline/internal/tracer"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Unable to build container: %v", err)
	}
	defer container.Close()
	sysLogger := container.Logger

	// 3. Tracing
	shutdownTracer := tracer.InitTracer(cfg.Tracing, sysLogger)
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = shutdownTracer(shutdownCtx)
	}()

	// 4. Supervisor tree
	tree := supervisor.NewTree(supervisor.DefaultTreeConfig(), sysLogger)
	tree.AddWorker(supervisor.NewQueueService(container.Queue, "job-queue"))
	tree.AddMaintenance(container.Janitor)

	srv := server.New(cfg, container)
	tree.AddAPI(supervisor.NewHTTPService(srv.GetApp(), srv.Addr(), 10*time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		sysLogger.Info(constant.ModuleSupervisor, "Received shutdown signal", map[string]interface{}{
			"signal": sig.String(),
		})
		cancel()
	}()

	sysLogger.Info(constant.ModuleSupervisor, "Starting pipeline worker", map[string]interface{}{
		"addr":      srv.Addr(),
		"transport": cfg.Queue.Transport,
		"storage":   cfg.Storage.Backend,
	})

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		sysLogger.Error(constant.ModuleSupervisor, "Supervisor tree error", map[string]interface{}{
			"error": err.Error(),
		})
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		sysLogger.Warn(constant.ModuleSupervisor, "Service failed to stop", map[string]interface{}{
			"service": svc.Name,
		})
	}

	sysLogger.Info(constant.ModuleSupervisor, "Pipeline worker stopped", nil)
}
