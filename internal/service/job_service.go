package service

import (
	"context"
	"errors"
	"fmt"

	"ai-notetaking-pipeline/internal/constant"
	"ai-notetaking-pipeline/internal/dto"
	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/pkg/logger"
	"ai-notetaking-pipeline/internal/repository/contract"
	"ai-notetaking-pipeline/internal/repository/unitofwork"
	"ai-notetaking-pipeline/pkg/queue"

	"github.com/google/uuid"
)

var ErrJobNotFound = errors.New("job not found")

// IJobService is the operator view of the ledger.
type IJobService interface {
	List(ctx context.Context, req dto.ListJobsRequest) ([]*dto.JobResponse, error)
	Show(ctx context.Context, id uuid.UUID) (*dto.JobResponse, error)
	Stats(ctx context.Context) (*dto.JobStatsResponse, error)
	Retry(ctx context.Context, id uuid.UUID) error
	// EnqueueSource schedules PROCESS_SOURCE the way the ingestion API does.
	EnqueueSource(ctx context.Context, sourceId uuid.UUID) (uuid.UUID, error)
}

type jobService struct {
	uowFactory unitofwork.RepositoryFactory
	queue      queue.Queue
	logger     logger.ILogger
}

func NewJobService(uowFactory unitofwork.RepositoryFactory, q queue.Queue, log logger.ILogger) IJobService {
	return &jobService{
		uowFactory: uowFactory,
		queue:      q,
		logger:     log,
	}
}

func (s *jobService) List(ctx context.Context, req dto.ListJobsRequest) ([]*dto.JobResponse, error) {
	if req.Limit <= 0 || req.Limit > 500 {
		req.Limit = 50
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	jobs, err := uow.JobRepository().List(ctx, contract.JobFilter{
		Status: entity.JobStatus(req.Status),
		Name:   req.Name,
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		return nil, err
	}
	out := make([]*dto.JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j))
	}
	return out, nil
}

func (s *jobService) Show(ctx context.Context, id uuid.UUID) (*dto.JobResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	job, err := uow.JobRepository().FindById(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return toJobResponse(job), nil
}

func (s *jobService) Stats(ctx context.Context) (*dto.JobStatsResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	counts, err := uow.JobRepository().CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	out := &dto.JobStatsResponse{Counts: map[string]int64{}}
	for status, n := range counts {
		out.Counts[string(status)] = n
	}
	return out, nil
}

func (s *jobService) Retry(ctx context.Context, id uuid.UUID) error {
	if err := s.queue.Resubmit(ctx, id); err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			return ErrJobNotFound
		}
		return err
	}
	s.logger.Info(constant.ModuleQueue, "Job resubmitted by operator", map[string]interface{}{
		"job_id": id.String(),
	})
	return nil
}

func (s *jobService) EnqueueSource(ctx context.Context, sourceId uuid.UUID) (uuid.UUID, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	source, err := uow.SourceRepository().FindById(ctx, sourceId)
	if err != nil {
		return uuid.Nil, err
	}
	if source == nil {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrSourceNotFound, sourceId)
	}
	return s.queue.Enqueue(ctx, constant.JobProcessSource, dto.SourceJobPayload{SourceId: sourceId},
		queue.WithDedupeKey(dto.DedupeKey(constant.JobProcessSource, sourceId)))
}

func toJobResponse(j *entity.Job) *dto.JobResponse {
	return &dto.JobResponse{
		Id:          j.Id,
		Name:        j.Name,
		Payload:     string(j.Payload),
		DedupeKey:   j.DedupeKey,
		Status:      string(j.Status),
		Attempt:     j.Attempt,
		MaxAttempts: j.MaxAttempts,
		LastError:   j.LastError,
		RunAt:       j.RunAt,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		FinishedAt:  j.FinishedAt,
	}
}
