package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-notetaking-pipeline/internal/constant"
	"ai-notetaking-pipeline/internal/dto"
	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/pkg/logger"
	"ai-notetaking-pipeline/internal/repository/unitofwork"
	"ai-notetaking-pipeline/pkg/queue"

	"github.com/google/uuid"
)

var ErrNoteNotFound = errors.New("note not found")

// ISourceService is the ingestion collaborator: it creates Source rows at
// PENDING/QUEUED and schedules PROCESS_SOURCE. It also serves status reads.
type ISourceService interface {
	CreateText(ctx context.Context, req *dto.CreateTextSourceRequest) (*dto.CreateSourceResponse, error)
	CreateFromObject(ctx context.Context, req *dto.CreateObjectSourceRequest) (*dto.CreateSourceResponse, error)
	Status(ctx context.Context, id uuid.UUID) (*dto.SourceStatusResponse, error)
	Note(ctx context.Context, sourceId uuid.UUID) (*dto.NoteResponse, error)
}

type sourceService struct {
	uowFactory unitofwork.RepositoryFactory
	queue      queue.Queue
	logger     logger.ILogger
}

func NewSourceService(uowFactory unitofwork.RepositoryFactory, q queue.Queue, log logger.ILogger) ISourceService {
	return &sourceService{
		uowFactory: uowFactory,
		queue:      q,
		logger:     log,
	}
}

func (s *sourceService) CreateText(ctx context.Context, req *dto.CreateTextSourceRequest) (*dto.CreateSourceResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrNoSourceText
	}
	source := &entity.Source{
		Id:            uuid.New(),
		UserId:        req.UserId,
		Kind:          entity.SourceKindText,
		ExtractedText: &text,
		LanguageCode:  req.LanguageCode,
	}
	return s.create(ctx, source)
}

func (s *sourceService) CreateFromObject(ctx context.Context, req *dto.CreateObjectSourceRequest) (*dto.CreateSourceResponse, error) {
	source := &entity.Source{
		Id:           uuid.New(),
		UserId:       req.UserId,
		Kind:         entity.SourceKind(strings.ToUpper(req.Kind)),
		OriginalUrl:  req.OriginalUrl,
		StoragePath:  req.StoragePath,
		MimeType:     req.MimeType,
		LanguageCode: req.LanguageCode,
	}
	return s.create(ctx, source)
}

func (s *sourceService) create(ctx context.Context, source *entity.Source) (*dto.CreateSourceResponse, error) {
	source.Status = entity.ProcessingStatusPending
	source.Stage = entity.StageQueued
	source.Metadata = map[string]interface{}{}
	source.CreatedAt = time.Now()

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.SourceRepository().Create(ctx, source); err != nil {
		return nil, fmt.Errorf("create source: %w", err)
	}

	jobId, err := s.queue.Enqueue(ctx, constant.JobProcessSource, dto.SourceJobPayload{SourceId: source.Id},
		queue.WithDedupeKey(dto.DedupeKey(constant.JobProcessSource, source.Id)))
	if err != nil {
		return nil, fmt.Errorf("enqueue source: %w", err)
	}
	s.logger.Info(constant.ModuleOrchestrator, "Source accepted", map[string]interface{}{
		"source_id": source.Id.String(),
		"kind":      string(source.Kind),
		"job_id":    jobId.String(),
	})
	return &dto.CreateSourceResponse{SourceId: source.Id, JobId: jobId}, nil
}

func (s *sourceService) Status(ctx context.Context, id uuid.UUID) (*dto.SourceStatusResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	source, err := uow.SourceRepository().FindByIdWithVisuals(ctx, id)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, ErrSourceNotFound
	}

	res := &dto.SourceStatusResponse{
		Id:              source.Id,
		Kind:            string(source.Kind),
		Status:          string(source.Status),
		Stage:           source.Stage.String(),
		ProcessingError: source.ProcessingError,
		Visuals:         make([]dto.VisualResponse, 0, len(source.Visuals)),
		UpdatedAt:       source.UpdatedAt,
	}
	for _, v := range source.Visuals {
		res.Visuals = append(res.Visuals, dto.VisualResponse{
			Id:            v.Id,
			PlaceholderId: v.PlaceholderId,
			Status:        string(v.Status),
			ImageUrl:      v.ImageUrl,
			Score:         v.Score,
			ErrorMessage:  v.ErrorMessage,
		})
	}

	if source.Status == entity.ProcessingStatusCompleted {
		note, err := uow.NoteRepository().FindBySource(ctx, id)
		if err != nil {
			return nil, err
		}
		if note != nil {
			res.NoteId = &note.Id
		}
	}
	return res, nil
}

func (s *sourceService) Note(ctx context.Context, sourceId uuid.UUID) (*dto.NoteResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	note, err := uow.NoteRepository().FindBySource(ctx, sourceId)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, fmt.Errorf("%w for source %s", ErrNoteNotFound, sourceId)
	}
	return &dto.NoteResponse{
		Id:            note.Id,
		SourceId:      note.SourceId,
		Title:         note.Title,
		Summary:       note.Summary,
		Content:       note.Content,
		ContentFormat: string(note.ContentFormat),
		LanguageCode:  note.LanguageCode,
		TagIds:        note.TagIds,
		CreatedAt:     note.CreatedAt,
	}, nil
}
