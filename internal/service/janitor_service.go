package service

import (
	"context"
	"fmt"
	"time"

	"ai-notetaking-pipeline/internal/constant"
	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/pkg/logger"
	"ai-notetaking-pipeline/internal/repository/unitofwork"
	"ai-notetaking-pipeline/pkg/metrics"

	"github.com/robfig/cron/v3"
)

type IJanitorService interface {
	// Prune deletes COMPLETED jobs that finished before the retention window.
	// FAILED jobs are kept for operators.
	Prune(ctx context.Context) (int64, error)
	Serve(ctx context.Context) error
}

type janitorService struct {
	uowFactory unitofwork.RepositoryFactory
	retention  time.Duration
	schedule   string
	logger     logger.ILogger
}

func NewJanitorService(uowFactory unitofwork.RepositoryFactory, retention time.Duration, schedule string, log logger.ILogger) IJanitorService {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if schedule == "" {
		schedule = "@every 10m"
	}
	return &janitorService{
		uowFactory: uowFactory,
		retention:  retention,
		schedule:   schedule,
		logger:     log,
	}
}

func (s *janitorService) Prune(ctx context.Context) (int64, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	cutoff := time.Now().Add(-s.retention)
	deleted, err := uow.JobRepository().DeleteFinishedBefore(ctx, entity.JobStatusCompleted, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	if deleted > 0 {
		metrics.JobsPruned.Add(float64(deleted))
		s.logger.Info(constant.ModuleJanitor, "Pruned finished jobs", map[string]interface{}{
			"deleted": deleted,
			"cutoff":  cutoff.Format(time.RFC3339),
		})
	}
	return deleted, nil
}

// Serve runs the prune schedule until ctx is cancelled.
func (s *janitorService) Serve(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(s.schedule, func() {
		if _, err := s.Prune(ctx); err != nil {
			s.logger.Error(constant.ModuleJanitor, "Prune run failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	})
	if err != nil {
		return fmt.Errorf("schedule janitor %q: %w", s.schedule, err)
	}

	c.Start()
	s.logger.Info(constant.ModuleJanitor, "Janitor started", map[string]interface{}{
		"schedule":  s.schedule,
		"retention": s.retention.String(),
	})

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

func (s *janitorService) String() string {
	return "janitor"
}
