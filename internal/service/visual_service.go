package service

import (
	"context"
	"errors"
	"fmt"

	"ai-notetaking-pipeline/internal/constant"
	"ai-notetaking-pipeline/internal/dto"
	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/pkg/logger"
	"ai-notetaking-pipeline/internal/repository/unitofwork"
	"ai-notetaking-pipeline/pkg/ai/structure"
	"ai-notetaking-pipeline/pkg/events"
	"ai-notetaking-pipeline/pkg/imagesearch"
	"ai-notetaking-pipeline/pkg/metrics"
	"ai-notetaking-pipeline/pkg/queue"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type VisualConfig struct {
	SearchCount   int
	MinSimilarity float64
}

type IVisualService interface {
	// CreatePlaceholders is the fan-out: one Visual row per opportunity.
	CreatePlaceholders(ctx context.Context, job *queue.Job) error
	// GenerateVisual is the fan-in: search, score, finish, completion check.
	GenerateVisual(ctx context.Context, job *queue.Job) error
}

var fanOutStage = stage{
	job:   constant.JobCreateVisualPlaceholders,
	entry: entity.StageCreatingVisualPlaceholders,
	exits: []entity.ProcessingStage{entity.StageGeneratingVisuals, entity.StageAssemblyPending},
}

// visualsDone is the only way out of GENERATING_VISUALS. Whichever worker
// wins it enqueues assembly.
var visualsDone = entity.MustTransition(entity.StageAssemblyPending, entity.StageGeneratingVisuals)

type visualService struct {
	*stageRunner
	cfg      VisualConfig
	searcher imagesearch.Provider
}

func NewVisualService(
	cfg VisualConfig,
	uowFactory unitofwork.RepositoryFactory,
	q queue.Queue,
	searcher imagesearch.Provider,
	publisher events.Publisher,
	log logger.ILogger,
) IVisualService {
	if cfg.SearchCount <= 0 {
		cfg.SearchCount = 5
	}
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = imagesearch.DefaultMinScore
	}
	return &visualService{
		stageRunner: newStageRunner(uowFactory, q, publisher, log),
		cfg:         cfg,
		searcher:    searcher,
	}
}

func (s *visualService) CreatePlaceholders(ctx context.Context, job *queue.Job) error {
	sourceId, err := decodeSourcePayload(job)
	if err != nil {
		return err
	}
	source, err := s.claim(ctx, fanOutStage, sourceId)
	if err != nil || source == nil {
		return err
	}

	created, err := s.createPlaceholders(ctx, source)
	if err != nil {
		return s.fail(ctx, job, sourceId, fanOutStage.entry, err)
	}
	if created == 0 {
		s.logger.Info(constant.ModuleVisuals, "No visual opportunities, skipping to assembly", map[string]interface{}{
			"source_id": sourceId.String(),
		})
		return s.advance(ctx, source, fanOutStage.entry, entity.StageAssemblyPending)
	}
	s.logger.Info(constant.ModuleVisuals, "Visual placeholders created", map[string]interface{}{
		"source_id": sourceId.String(),
		"visuals":   created,
	})
	return s.advance(ctx, source, fanOutStage.entry, entity.StageGeneratingVisuals)
}

// createPlaceholders inserts one PENDING visual per usable opportunity and
// returns how many visuals the source has. Re-runs find the existing rows.
func (s *visualService) createPlaceholders(ctx context.Context, source *entity.Source) (int, error) {
	doc, err := structureOf(source)
	if err != nil {
		return 0, queue.Permanent(err)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.VisualRepository()
	count := 0
	for _, op := range doc.UsableOpportunities() {
		v := &entity.Visual{
			Id:            uuid.New(),
			SourceId:      source.Id,
			PlaceholderId: op.PlaceholderId,
			Description:   op.Description,
			Status:        entity.VisualStatusPending,
		}
		if op.SearchQuery != "" {
			query := op.SearchQuery
			v.SearchQuery = &query
		}
		if _, err := repo.CreateIfAbsent(ctx, v); err != nil {
			return 0, fmt.Errorf("create visual %s: %w", op.PlaceholderId, err)
		}
		count++
	}
	return count, nil
}

func (s *visualService) GenerateVisual(ctx context.Context, job *queue.Job) (err error) {
	var payload dto.VisualJobPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}

	// A delivery that will not be retried still has to leave the visual
	// terminal, or the fan-in never closes.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generate visual %s: panic: %v", payload.VisualId, r)
		}
		if err != nil && (job.LastAttempt() || queue.IsPermanent(err)) {
			s.failVisual(ctx, payload, err)
		}
	}()

	return s.generate(ctx, payload)
}

func (s *visualService) generate(ctx context.Context, payload dto.VisualJobPayload) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	visual, err := uow.VisualRepository().FindById(ctx, payload.VisualId)
	if err != nil {
		return fmt.Errorf("load visual: %w", err)
	}
	if visual == nil {
		return queue.Permanent(fmt.Errorf("%w: %s", ErrVisualNotFound, payload.VisualId))
	}

	claimed, err := uow.VisualRepository().MarkProcessing(ctx, visual.Id)
	if err != nil {
		return fmt.Errorf("claim visual: %w", err)
	}
	if !claimed {
		// Duplicate delivery of a finished visual. The completion check still
		// runs in case the first delivery died before it.
		return s.checkCompletion(ctx, visual.SourceId)
	}

	outcome, err := s.search(ctx, visual)
	if err != nil {
		return err
	}

	finished, err := uow.VisualRepository().Finish(ctx, visual.Id, outcome)
	if err != nil {
		return fmt.Errorf("finish visual: %w", err)
	}
	if finished {
		s.recordOutcome(visual.SourceId, visual.PlaceholderId, outcome)
	}
	return s.checkCompletion(ctx, visual.SourceId)
}

// failVisual records the error as the visual's terminal outcome and runs the
// completion check. The original error is still returned to the queue.
func (s *visualService) failVisual(ctx context.Context, payload dto.VisualJobPayload, cause error) {
	ctx = context.WithoutCancel(ctx)
	outcome := entity.VisualOutcome{
		Status:       entity.VisualStatusFailed,
		ErrorMessage: fmt.Sprintf("%s: %s", constant.VisualAPIErrorPrefix, cause.Error()),
	}
	details := map[string]interface{}{
		"source_id": payload.SourceId.String(),
		"visual_id": payload.VisualId.String(),
		"cause":     cause.Error(),
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	finished, err := uow.VisualRepository().Finish(ctx, payload.VisualId, outcome)
	if err != nil {
		details["error"] = err.Error()
		s.logger.Error(constant.ModuleVisuals, "Failed to record visual failure", details)
		return
	}
	if finished {
		s.recordOutcome(payload.SourceId, payload.VisualId.String(), outcome)
	}
	if err := s.checkCompletion(ctx, payload.SourceId); err != nil {
		details["error"] = err.Error()
		s.logger.Error(constant.ModuleVisuals, "Completion check after visual failure failed", details)
	}
}

// recordOutcome logs a terminal write. visual is the placeholder id when known.
func (s *visualService) recordOutcome(sourceId uuid.UUID, visual string, outcome entity.VisualOutcome) {
	metrics.VisualOutcomes.WithLabelValues(string(outcome.Status)).Inc()
	s.logger.Info(constant.ModuleVisuals, "Visual finished", map[string]interface{}{
		"source_id": sourceId.String(),
		"visual":    visual,
		"status":    string(outcome.Status),
		"score":     outcome.Score,
		"error":     outcome.ErrorMessage,
	})
}

// search turns a provider answer into a terminal outcome. Provider failures are
// outcomes too; only the caller's own errors are returned.
func (s *visualService) search(ctx context.Context, visual *entity.Visual) (entity.VisualOutcome, error) {
	candidates, err := s.searcher.Search(ctx, visual.Query(), s.cfg.SearchCount)
	if err != nil {
		if ctx.Err() != nil {
			return entity.VisualOutcome{}, ctx.Err()
		}
		prefix := constant.VisualAPIErrorPrefix
		if errors.Is(err, imagesearch.ErrAccount) {
			prefix = constant.VisualAccountErrorPrefix
		}
		return entity.VisualOutcome{
			Status:       entity.VisualStatusFailed,
			ErrorMessage: fmt.Sprintf("%s: %s", prefix, err.Error()),
		}, nil
	}
	if len(candidates) == 0 {
		return entity.VisualOutcome{Status: entity.VisualStatusNoImageFound}, nil
	}

	best, score, _ := imagesearch.Best(visual.Description, candidates)
	if score < s.cfg.MinSimilarity {
		s.logger.Debug(constant.ModuleVisuals, "Best candidate below threshold", map[string]interface{}{
			"placeholder": visual.PlaceholderId,
			"candidate":   best.Label(),
			"score":       score,
		})
		return entity.VisualOutcome{Status: entity.VisualStatusNoImageFound, Score: score}, nil
	}
	return entity.VisualOutcome{
		Status:           entity.VisualStatusCompleted,
		ImageUrl:         best.ImageURL,
		AltText:          best.AltText,
		AttributionUrl:   best.AttributionURL,
		AttributionTitle: best.AttributionTitle,
		Score:            score,
	}, nil
}

// checkCompletion moves the source to ASSEMBLY_PENDING once no sibling is
// left non-terminal. The conditional update has a single winner; a caller
// that finds the source already there re-enqueues through the same dedupe key.
func (s *visualService) checkCompletion(ctx context.Context, sourceId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	remaining, err := uow.VisualRepository().CountNonTerminal(ctx, sourceId)
	if err != nil {
		return fmt.Errorf("count visuals: %w", err)
	}
	if remaining > 0 {
		return nil
	}

	won, err := uow.SourceRepository().TransitionStage(ctx, sourceId, visualsDone, entity.ProcessingStatusProcessing)
	if err != nil {
		return fmt.Errorf("complete visuals: %w", err)
	}
	if !won {
		source, err := uow.SourceRepository().FindById(ctx, sourceId)
		if err != nil {
			return fmt.Errorf("reload source: %w", err)
		}
		if source == nil {
			return queue.Permanent(fmt.Errorf("%w: %s", ErrSourceNotFound, sourceId))
		}
		if source.Stage != entity.StageAssemblyPending {
			return nil
		}
	} else {
		s.logger.Info(constant.ModuleVisuals, "All visuals terminal, assembly scheduled", map[string]interface{}{
			"source_id": sourceId.String(),
		})
	}

	_, err = s.queue.Enqueue(ctx, constant.JobAssembleNote, dto.SourceJobPayload{SourceId: sourceId},
		queue.WithDedupeKey(dto.DedupeKey(constant.JobAssembleNote, sourceId)))
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", constant.JobAssembleNote, err)
	}
	return nil
}

// structureOf decodes the stored structure document. The metadata map holds
// the typed value in memory and a generic map once it went through JSON.
func structureOf(source *entity.Source) (*structure.Document, error) {
	raw, ok := source.Metadata[entity.MetaStructure]
	if !ok || raw == nil {
		return nil, fmt.Errorf("source %s has no structure", source.Id)
	}
	if doc, ok := raw.(*structure.Document); ok {
		return doc, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode structure: %w", err)
	}
	var doc structure.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode structure: %w", err)
	}
	return &doc, nil
}
