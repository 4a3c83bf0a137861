package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"ai-notetaking-pipeline/internal/constant"
	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/pkg/logger"
	"ai-notetaking-pipeline/internal/repository/unitofwork"
	"ai-notetaking-pipeline/pkg/ai/structure"
	"ai-notetaking-pipeline/pkg/events"
	"ai-notetaking-pipeline/pkg/fallback"
	"ai-notetaking-pipeline/pkg/llm"
	"ai-notetaking-pipeline/pkg/ocr"
	"ai-notetaking-pipeline/pkg/providererr"
	"ai-notetaking-pipeline/pkg/queue"
	"ai-notetaking-pipeline/pkg/storage"
	"ai-notetaking-pipeline/pkg/transcription"
)

var (
	ErrNoSourceText  = errors.New("source has no text to process")
	ErrNoSourceMedia = errors.New("source has no stored media")
)

// Transcriber is satisfied by *transcription.Engine.
type Transcriber interface {
	Transcribe(ctx context.Context, runID string, in transcription.Input) (*transcription.Merged, error)
}

// TextExtractor is satisfied by *ocr.Fallback.
type TextExtractor interface {
	Extract(ctx context.Context, doc ocr.Document) (ocr.Result, error)
}

// TextGenerator is satisfied by *llm.Fallback.
type TextGenerator interface {
	GenerateValidated(ctx context.Context, prompt string, validate func(string) error, opts ...llm.Option) (string, string, error)
}

type OrchestratorConfig struct {
	WorkDir        string
	PromptMaxChars int
	MaxVisuals     int
	Temperature    float64
	MaxTokens      int
}

type IOrchestratorService interface {
	ProcessSource(ctx context.Context, job *queue.Job) error
	TranscribeSource(ctx context.Context, job *queue.Job) error
	ExtractSourceText(ctx context.Context, job *queue.Job) error
	GenerateStructure(ctx context.Context, job *queue.Job) error
}

var (
	ingestStage = stage{
		job:   constant.JobProcessSource,
		entry: entity.StageIngesting,
		exits: []entity.ProcessingStage{
			entity.StageTranscriptionPending,
			entity.StageOcrPending,
			entity.StageStructurePending,
		},
	}
	transcribeStage = stage{
		job:   constant.JobTranscribeSource,
		entry: entity.StageTranscriptionInProgress,
		exits: []entity.ProcessingStage{entity.StageStructurePending},
	}
	ocrStage = stage{
		job:   constant.JobExtractSourceText,
		entry: entity.StageOcrInProgress,
		exits: []entity.ProcessingStage{entity.StageStructurePending},
	}
	structureStage = stage{
		job:   constant.JobGenerateStructure,
		entry: entity.StageGeneratingStructure,
		exits: []entity.ProcessingStage{entity.StageVisualsPending},
	}
)

type orchestratorService struct {
	*stageRunner
	cfg         OrchestratorConfig
	storage     storage.ObjectStorage
	transcriber Transcriber
	extractor   TextExtractor
	generator   TextGenerator
}

func NewOrchestratorService(
	cfg OrchestratorConfig,
	uowFactory unitofwork.RepositoryFactory,
	q queue.Queue,
	objects storage.ObjectStorage,
	transcriber Transcriber,
	extractor TextExtractor,
	generator TextGenerator,
	publisher events.Publisher,
	log logger.ILogger,
) IOrchestratorService {
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.MaxVisuals <= 0 {
		cfg.MaxVisuals = 4
	}
	return &orchestratorService{
		stageRunner: newStageRunner(uowFactory, q, publisher, log),
		cfg:         cfg,
		storage:     objects,
		transcriber: transcriber,
		extractor:   extractor,
		generator:   generator,
	}
}

func (s *orchestratorService) ProcessSource(ctx context.Context, job *queue.Job) error {
	sourceId, err := decodeSourcePayload(job)
	if err != nil {
		return err
	}
	source, err := s.claim(ctx, ingestStage, sourceId)
	if err != nil || source == nil {
		return err
	}

	next, err := s.route(ctx, source)
	if err != nil {
		return s.fail(ctx, job, sourceId, ingestStage.entry, err)
	}
	s.logger.Info(constant.ModuleOrchestrator, "Source routed", map[string]interface{}{
		"source_id": sourceId.String(),
		"kind":      string(source.Kind),
		"next":      next.String(),
	})
	return s.advance(ctx, source, ingestStage.entry, next)
}

// route decides where a freshly ingested source goes next. TEXT sources
// without inline text are read from storage here.
func (s *orchestratorService) route(ctx context.Context, source *entity.Source) (entity.ProcessingStage, error) {
	switch source.Kind {
	case entity.SourceKindText:
		if source.HasExtractedText() {
			return entity.StageStructurePending, nil
		}
		if source.StoragePath == "" {
			return "", queue.Permanent(ErrNoSourceText)
		}
		text, err := s.readObject(ctx, source.StoragePath)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(string(text)) == "" {
			return "", queue.Permanent(ErrNoSourceText)
		}
		uow := s.uowFactory.NewUnitOfWork(ctx)
		err = uow.SourceRepository().SaveResult(ctx, source.Id, entity.SourceResult{
			ExtractedText: string(text),
			LanguageCode:  source.LanguageCode,
		})
		if err != nil {
			return "", fmt.Errorf("save text: %w", err)
		}
		return entity.StageStructurePending, nil

	case entity.SourceKindAudio:
		if source.StoragePath == "" {
			return "", queue.Permanent(ErrNoSourceMedia)
		}
		return entity.StageTranscriptionPending, nil

	case entity.SourceKindPdf, entity.SourceKindImage:
		if source.StoragePath == "" {
			return "", queue.Permanent(ErrNoSourceMedia)
		}
		return entity.StageOcrPending, nil

	case entity.SourceKindYoutube:
		if source.HasExtractedText() {
			return entity.StageStructurePending, nil
		}
		if source.StoragePath != "" {
			return entity.StageTranscriptionPending, nil
		}
		return "", queue.Permanent(fmt.Errorf("youtube source has neither a transcript nor an audio object: %w", ErrNoSourceMedia))
	}
	return "", queue.Permanent(fmt.Errorf("unknown source kind %q", source.Kind))
}

func (s *orchestratorService) TranscribeSource(ctx context.Context, job *queue.Job) error {
	sourceId, err := decodeSourcePayload(job)
	if err != nil {
		return err
	}
	source, err := s.claim(ctx, transcribeStage, sourceId)
	if err != nil || source == nil {
		return err
	}

	if err := s.transcribe(ctx, job, source); err != nil {
		return s.fail(ctx, job, sourceId, transcribeStage.entry, err)
	}
	return s.advance(ctx, source, transcribeStage.entry, entity.StageStructurePending)
}

func (s *orchestratorService) transcribe(ctx context.Context, job *queue.Job, source *entity.Source) error {
	if s.transcriber == nil {
		return queue.Permanent(errors.New("no transcription provider configured"))
	}
	if source.StoragePath == "" {
		return queue.Permanent(ErrNoSourceMedia)
	}

	filename := path.Base(source.StoragePath)
	local := filepath.Join(s.cfg.WorkDir, fmt.Sprintf("%s-%d%s", source.Id, job.Attempt, filepath.Ext(filename)))
	if err := s.storage.Download(ctx, source.StoragePath, local); err != nil {
		return s.storageError(err)
	}
	defer os.Remove(local)

	merged, err := s.transcriber.Transcribe(ctx, fmt.Sprintf("%s-%d", job.Id, job.Attempt), transcription.Input{
		Path:     local,
		Filename: filename,
		MimeType: source.MimeType,
		Language: source.LanguageCode,
	})
	if err != nil {
		if errors.Is(err, transcription.ErrNoTranscript) || providererr.IsQuota(err) {
			return queue.Permanent(err)
		}
		return err
	}

	if len(merged.MissingIndices) > 0 {
		s.logger.Warn(constant.ModuleTranscription, "Transcript has gaps", map[string]interface{}{
			"source_id": source.Id.String(),
			"missing":   merged.MissingIndices,
		})
	}

	language := source.LanguageCode
	if language == "" {
		language = merged.Language
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	err = uow.SourceRepository().SaveResult(ctx, source.Id, entity.SourceResult{
		ExtractedText: merged.Text,
		LanguageCode:  language,
		Metadata: map[string]interface{}{
			entity.MetaTranscriptWords:       merged.Words,
			entity.MetaTranscriptionProvider: merged.Provider,
			entity.MetaTranscriptionChunks:   merged.Stats,
		},
	})
	if err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	s.logger.Info(constant.ModuleTranscription, "Transcript saved", map[string]interface{}{
		"source_id": source.Id.String(),
		"words":     len(merged.Words),
		"provider":  merged.Provider,
		"chunks":    merged.Stats.Total,
	})
	return nil
}

func (s *orchestratorService) ExtractSourceText(ctx context.Context, job *queue.Job) error {
	sourceId, err := decodeSourcePayload(job)
	if err != nil {
		return err
	}
	source, err := s.claim(ctx, ocrStage, sourceId)
	if err != nil || source == nil {
		return err
	}

	if err := s.extract(ctx, source); err != nil {
		return s.fail(ctx, job, sourceId, ocrStage.entry, err)
	}
	return s.advance(ctx, source, ocrStage.entry, entity.StageStructurePending)
}

func (s *orchestratorService) extract(ctx context.Context, source *entity.Source) error {
	if s.extractor == nil {
		return queue.Permanent(errors.New("no OCR provider configured"))
	}
	if source.StoragePath == "" {
		return queue.Permanent(ErrNoSourceMedia)
	}
	data, err := s.readObject(ctx, source.StoragePath)
	if err != nil {
		return err
	}

	res, err := s.extractor.Extract(ctx, ocr.Document{
		Bytes:    data,
		Filename: path.Base(source.StoragePath),
		MimeType: source.MimeType,
	})
	if err != nil {
		return providerFailure(err)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	err = uow.SourceRepository().SaveResult(ctx, source.Id, entity.SourceResult{
		ExtractedText: res.Text,
		LanguageCode:  source.LanguageCode,
		Metadata: map[string]interface{}{
			entity.MetaOcrProvider: res.Provider,
		},
	})
	if err != nil {
		return fmt.Errorf("save extracted text: %w", err)
	}
	return nil
}

// providerFailure marks errors a retry cannot fix: an exhausted quota or a
// chain with no provider configured.
func providerFailure(err error) error {
	if providererr.IsQuota(err) || errors.Is(err, fallback.ErrNoCandidates) {
		return queue.Permanent(err)
	}
	return err
}

func (s *orchestratorService) GenerateStructure(ctx context.Context, job *queue.Job) error {
	sourceId, err := decodeSourcePayload(job)
	if err != nil {
		return err
	}
	source, err := s.claim(ctx, structureStage, sourceId)
	if err != nil || source == nil {
		return err
	}

	if err := s.generateStructure(ctx, source); err != nil {
		return s.fail(ctx, job, sourceId, structureStage.entry, err)
	}
	return s.advance(ctx, source, structureStage.entry, entity.StageVisualsPending)
}

func (s *orchestratorService) generateStructure(ctx context.Context, source *entity.Source) error {
	if !source.HasExtractedText() {
		return queue.Permanent(ErrNoSourceText)
	}
	if s.generator == nil {
		return queue.Permanent(errors.New("no text generation provider configured"))
	}

	prompt := structure.StructurePrompt(source.Text(), source.LanguageCode, s.cfg.PromptMaxChars, s.cfg.MaxVisuals)
	opts := []llm.Option{llm.WithJSONMode()}
	if s.cfg.Temperature > 0 {
		opts = append(opts, llm.WithTemperature(s.cfg.Temperature))
	}
	if s.cfg.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(s.cfg.MaxTokens))
	}

	raw, provider, err := s.generator.GenerateValidated(ctx, prompt, structure.ValidateReply, opts...)
	if err != nil {
		return providerFailure(err)
	}
	doc, err := structure.Parse(raw)
	if err != nil {
		return queue.Permanent(err)
	}

	correction := structure.AutoCorrect(doc)
	details := map[string]interface{}{
		"source_id": source.Id.String(),
		"provider":  provider,
		"sections":  len(doc.Sections),
		"visuals":   len(doc.UsableOpportunities()),
	}
	if len(correction.Retyped) > 0 {
		details["retyped"] = correction.Retyped
	}
	if len(correction.Unresolved) > 0 {
		details["unresolved"] = correction.Unresolved
		s.logger.Warn(constant.ModuleOrchestrator, "Visual opportunities without a placeholder block", details)
	} else {
		s.logger.Info(constant.ModuleOrchestrator, "Structure generated", details)
	}

	unresolved := correction.Unresolved
	if unresolved == nil {
		unresolved = []string{}
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	err = uow.SourceRepository().MergeMetadata(ctx, source.Id, map[string]interface{}{
		entity.MetaStructure:              doc,
		entity.MetaStructureProvider:      provider,
		entity.MetaUnresolvedPlaceholders: unresolved,
	})
	if err != nil {
		return fmt.Errorf("save structure: %w", err)
	}
	return nil
}

func (s *orchestratorService) readObject(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.storage.Open(ctx, key)
	if err != nil {
		return nil, s.storageError(err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

func (s *orchestratorService) storageError(err error) error {
	if errors.Is(err, storage.ErrObjectNotFound) {
		return queue.Permanent(err)
	}
	return err
}
