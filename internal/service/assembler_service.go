package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-notetaking-pipeline/internal/constant"
	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/pkg/logger"
	"ai-notetaking-pipeline/internal/repository/contract"
	"ai-notetaking-pipeline/internal/repository/unitofwork"
	"ai-notetaking-pipeline/pkg/ai/structure"
	"ai-notetaking-pipeline/pkg/events"
	"ai-notetaking-pipeline/pkg/llm"
	"ai-notetaking-pipeline/pkg/metrics"
	"ai-notetaking-pipeline/pkg/queue"
	"ai-notetaking-pipeline/pkg/render"

	"github.com/google/uuid"
)

var ErrVisualsPending = errors.New("visuals are still pending")

type AssemblerConfig struct {
	MinTags        int
	MaxTags        int
	PromptMaxChars int
}

type IAssemblerService interface {
	AssembleNote(ctx context.Context, job *queue.Job) error
}

var assembleStage = stage{
	job:   constant.JobAssembleNote,
	entry: entity.StageAssembling,
	exits: []entity.ProcessingStage{entity.StageCompleted},
}

var assemblyDone = entity.MustTransition(entity.StageCompleted, entity.StageAssembling)

type assemblerService struct {
	*stageRunner
	cfg        AssemblerConfig
	renderer   render.Renderer
	generator  TextGenerator
	tagService ITagService
}

func NewAssemblerService(
	cfg AssemblerConfig,
	uowFactory unitofwork.RepositoryFactory,
	q queue.Queue,
	renderer render.Renderer,
	generator TextGenerator,
	tagService ITagService,
	publisher events.Publisher,
	log logger.ILogger,
) IAssemblerService {
	if cfg.MinTags <= 0 {
		cfg.MinTags = 3
	}
	if cfg.MaxTags < cfg.MinTags {
		cfg.MaxTags = 5
	}
	return &assemblerService{
		stageRunner: newStageRunner(uowFactory, q, publisher, log),
		cfg:         cfg,
		renderer:    renderer,
		generator:   generator,
		tagService:  tagService,
	}
}

func (s *assemblerService) AssembleNote(ctx context.Context, job *queue.Job) error {
	sourceId, err := decodeSourcePayload(job)
	if err != nil {
		return err
	}
	claimed, err := s.claim(ctx, assembleStage, sourceId)
	if err != nil || claimed == nil {
		return err
	}

	note, err := s.assemble(ctx, sourceId)
	if err != nil {
		return s.fail(ctx, job, sourceId, assembleStage.entry, err)
	}
	if note == nil {
		return nil
	}

	metrics.SourcesFinished.WithLabelValues(string(entity.ProcessingStatusCompleted)).Inc()
	s.logger.Info(constant.ModuleAssembler, "Note assembled", map[string]interface{}{
		"source_id": sourceId.String(),
		"note_id":   note.Id.String(),
		"format":    string(note.ContentFormat),
		"tags":      len(note.TagIds),
	})
	s.publish(ctx, events.SourceCompleted(sourceId, note.Id))
	return nil
}

// assemble returns nil without error when another worker already finished the source.
func (s *assemblerService) assemble(ctx context.Context, sourceId uuid.UUID) (*entity.Note, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	source, err := uow.SourceRepository().FindByIdWithVisuals(ctx, sourceId)
	if err != nil {
		return nil, fmt.Errorf("load source: %w", err)
	}
	if source == nil {
		return nil, queue.Permanent(fmt.Errorf("%w: %s", ErrSourceNotFound, sourceId))
	}

	visuals := map[string]render.Visual{}
	for _, v := range source.Visuals {
		if !v.Status.IsTerminal() {
			return nil, queue.Permanent(fmt.Errorf("%w: %s is %s", ErrVisualsPending, v.PlaceholderId, v.Status))
		}
		if v.Status == entity.VisualStatusCompleted && v.ImageUrl != nil {
			visuals[v.PlaceholderId] = render.Visual{
				ImageURL:         *v.ImageUrl,
				AltText:          deref(v.AltText, v.Description),
				AttributionURL:   deref(v.AttributionUrl, ""),
				AttributionTitle: deref(v.AttributionTitle, ""),
			}
		}
	}

	doc, err := structureOf(source)
	if err != nil {
		return nil, queue.Permanent(err)
	}
	language := source.LanguageCode
	if language == "" {
		language = doc.Language
	}

	content, err := s.renderer.Render(render.Input{Doc: doc, Language: language, Visuals: visuals})
	if err != nil {
		return nil, queue.Permanent(fmt.Errorf("render note: %w", err))
	}

	tagIds, err := s.tagService.Resolve(ctx, s.deriveTags(ctx, source, doc, language))
	if err != nil {
		return nil, fmt.Errorf("resolve tags: %w", err)
	}

	note := &entity.Note{
		Id:            uuid.New(),
		SourceId:      source.Id,
		UserId:        source.UserId,
		Title:         doc.Title,
		Summary:       doc.Summary,
		Content:       content,
		ContentFormat: entity.ContentFormat(s.renderer.Format()),
		LanguageCode:  language,
		TagIds:        tagIds,
		CreatedAt:     time.Now(),
	}
	done, err := s.commit(ctx, note)
	if err != nil || !done {
		return nil, err
	}
	return note, nil
}

// commit writes the note, its tags and the terminal source status together.
func (s *assemblerService) commit(ctx context.Context, note *entity.Note) (bool, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return false, err
	}
	defer func() {
		if r := recover(); r != nil {
			uow.Rollback()
			panic(r)
		}
	}()

	if err := uow.NoteRepository().Create(ctx, note); err != nil {
		uow.Rollback()
		if errors.Is(err, contract.ErrDuplicate) {
			s.logger.Info(constant.ModuleAssembler, "Note already exists for source", map[string]interface{}{
				"source_id": note.SourceId.String(),
			})
			return false, nil
		}
		return false, fmt.Errorf("create note: %w", err)
	}
	if len(note.TagIds) > 0 {
		if err := uow.NoteRepository().LinkTags(ctx, note.Id, note.TagIds); err != nil {
			uow.Rollback()
			return false, fmt.Errorf("link tags: %w", err)
		}
	}
	moved, err := uow.SourceRepository().TransitionStage(ctx, note.SourceId, assemblyDone, entity.ProcessingStatusCompleted)
	if err != nil {
		uow.Rollback()
		return false, fmt.Errorf("complete source: %w", err)
	}
	if !moved {
		uow.Rollback()
		s.logger.Warn(constant.ModuleAssembler, "Source left ASSEMBLING before commit", map[string]interface{}{
			"source_id": note.SourceId.String(),
		})
		return false, nil
	}
	if err := uow.Commit(); err != nil {
		return false, fmt.Errorf("commit note: %w", err)
	}
	return true, nil
}

// deriveTags asks for tags through the fallback chain. No valid answer means no tags.
func (s *assemblerService) deriveTags(ctx context.Context, source *entity.Source, doc *structure.Document, language string) []string {
	if s.generator == nil {
		return nil
	}
	text := doc.Title + "\n" + doc.Summary + "\n\n" + source.Text()
	prompt := structure.TagPrompt(text, language, s.cfg.MinTags, s.cfg.MaxTags, s.cfg.PromptMaxChars)

	validate := func(raw string) error {
		_, err := structure.ParseTags(raw, s.cfg.MinTags, s.cfg.MaxTags)
		return err
	}
	raw, provider, err := s.generator.GenerateValidated(ctx, prompt, validate, llm.WithJSONMode())
	if err != nil {
		s.logger.Warn(constant.ModuleTags, "No valid tags, note saved without tags", map[string]interface{}{
			"source_id": source.Id.String(),
			"error":     err.Error(),
		})
		return nil
	}
	tags, err := structure.ParseTags(raw, s.cfg.MinTags, s.cfg.MaxTags)
	if err != nil {
		return nil
	}
	s.logger.Debug(constant.ModuleTags, "Tags derived", map[string]interface{}{
		"source_id": source.Id.String(),
		"provider":  provider,
		"tags":      tags,
	})
	return tags
}

func deref(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
