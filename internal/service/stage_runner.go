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
	"ai-notetaking-pipeline/pkg/events"
	"ai-notetaking-pipeline/pkg/metrics"
	"ai-notetaking-pipeline/pkg/queue"

	"github.com/google/uuid"
)

var (
	ErrSourceNotFound = errors.New("source not found")
	ErrVisualNotFound = errors.New("visual not found")
)

// pendingJobs maps every "waiting" stage to the job that picks it up.
var pendingJobs = map[entity.ProcessingStage]string{
	entity.StageTranscriptionPending: constant.JobTranscribeSource,
	entity.StageOcrPending:           constant.JobExtractSourceText,
	entity.StageStructurePending:     constant.JobGenerateStructure,
	entity.StageVisualsPending:       constant.JobCreateVisualPlaceholders,
	entity.StageAssemblyPending:      constant.JobAssembleNote,
}

// stage describes one handler: the job it serves, the in-progress stage it
// claims and the stages that mean its work is already done.
type stage struct {
	job   string
	entry entity.ProcessingStage
	exits []entity.ProcessingStage
}

func (s stage) isExit(current entity.ProcessingStage) bool {
	for _, e := range s.exits {
		if e == current {
			return true
		}
	}
	return false
}

// stageRunner holds the claim/advance/fail protocol shared by every handler.
type stageRunner struct {
	uowFactory unitofwork.RepositoryFactory
	queue      queue.Queue
	publisher  events.Publisher
	logger     logger.ILogger
}

func newStageRunner(uowFactory unitofwork.RepositoryFactory, q queue.Queue, publisher events.Publisher, log logger.ILogger) *stageRunner {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &stageRunner{
		uowFactory: uowFactory,
		queue:      q,
		publisher:  publisher,
		logger:     log,
	}
}

// claim moves the source into st.entry. It returns nil without error when the
// delivery is stale and must be acknowledged without work.
func (r *stageRunner) claim(ctx context.Context, st stage, sourceId uuid.UUID) (*entity.Source, error) {
	uow := r.uowFactory.NewUnitOfWork(ctx)
	repo := uow.SourceRepository()

	claimed, err := repo.TransitionStage(ctx, sourceId, entity.EnterTransition(st.entry), entity.ProcessingStatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", st.entry, err)
	}
	source, err := repo.FindById(ctx, sourceId)
	if err != nil {
		return nil, fmt.Errorf("load source: %w", err)
	}
	if source == nil {
		return nil, queue.Permanent(fmt.Errorf("%w: %s", ErrSourceNotFound, sourceId))
	}
	if claimed {
		return source, nil
	}

	details := map[string]interface{}{
		"source_id": sourceId.String(),
		"job":       st.job,
		"stage":     source.Stage.String(),
		"status":    string(source.Status),
	}
	if st.isExit(source.Stage) {
		r.logger.Info(constant.ModuleOrchestrator, "Stage already done, re-enqueueing next job", details)
		return nil, r.resume(ctx, source)
	}
	r.logger.Info(constant.ModuleOrchestrator, "Stale delivery skipped", details)
	return nil, nil
}

// advance moves the source from one stage to the next pending stage and
// enqueues the job that serves it.
func (r *stageRunner) advance(ctx context.Context, source *entity.Source, from, to entity.ProcessingStage) error {
	t, err := entity.NewTransition(to, from)
	if err != nil {
		return queue.Permanent(err)
	}

	uow := r.uowFactory.NewUnitOfWork(ctx)
	repo := uow.SourceRepository()
	moved, err := repo.TransitionStage(ctx, source.Id, t, entity.ProcessingStatusProcessing)
	if err != nil {
		return fmt.Errorf("advance to %s: %w", to, err)
	}
	if !moved {
		current, err := repo.FindById(ctx, source.Id)
		if err != nil {
			return fmt.Errorf("reload source: %w", err)
		}
		if current == nil {
			return queue.Permanent(fmt.Errorf("%w: %s", ErrSourceNotFound, source.Id))
		}
		if current.Stage != to {
			r.logger.Warn(constant.ModuleOrchestrator, "Source moved by another worker", map[string]interface{}{
				"source_id": source.Id.String(),
				"expected":  to.String(),
				"stage":     current.Stage.String(),
			})
			return nil
		}
		source = current
	}
	source.Stage = to
	return r.resume(ctx, source)
}

// resume enqueues whatever job continues a source sitting at its current stage.
// Every enqueue is deduped, so calling it twice is harmless.
func (r *stageRunner) resume(ctx context.Context, source *entity.Source) error {
	if source.Stage == entity.StageGeneratingVisuals {
		return r.enqueueVisuals(ctx, source.Id)
	}
	job, ok := pendingJobs[source.Stage]
	if !ok {
		return nil
	}
	_, err := r.queue.Enqueue(ctx, job, dto.SourceJobPayload{SourceId: source.Id},
		queue.WithDedupeKey(dto.DedupeKey(job, source.Id)))
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", job, err)
	}
	return nil
}

// enqueueVisuals schedules one GENERATE_VISUAL per non-terminal visual.
func (r *stageRunner) enqueueVisuals(ctx context.Context, sourceId uuid.UUID) error {
	uow := r.uowFactory.NewUnitOfWork(ctx)
	visuals, err := uow.VisualRepository().FindBySource(ctx, sourceId)
	if err != nil {
		return fmt.Errorf("list visuals: %w", err)
	}
	for _, v := range visuals {
		if v.Status.IsTerminal() {
			continue
		}
		_, err := r.queue.Enqueue(ctx, constant.JobGenerateVisual,
			dto.VisualJobPayload{VisualId: v.Id, SourceId: sourceId},
			queue.WithDedupeKey(dto.DedupeKey(constant.JobGenerateVisual, sourceId, v.Id)))
		if err != nil {
			return fmt.Errorf("enqueue visual %s: %w", v.PlaceholderId, err)
		}
	}
	return nil
}

// fail records the error on the source while it still sits at the handler's
// stage, then hands the error back to the queue. The SOURCE_FAILED event is
// only published once the queue will not retry.
func (r *stageRunner) fail(ctx context.Context, job *queue.Job, sourceId uuid.UUID, at entity.ProcessingStage, cause error) error {
	if cause == nil {
		return nil
	}
	uow := r.uowFactory.NewUnitOfWork(ctx)
	marked, err := uow.SourceRepository().MarkFailed(ctx, sourceId, cause.Error(), at)
	if err != nil {
		r.logger.Error(constant.ModuleOrchestrator, "Failed to record stage failure", map[string]interface{}{
			"source_id": sourceId.String(),
			"stage":     at.String(),
			"error":     err.Error(),
		})
	}

	final := queue.IsPermanent(cause) || job.LastAttempt()
	r.logger.Error(constant.ModuleOrchestrator, "Stage failed", map[string]interface{}{
		"source_id": sourceId.String(),
		"job":       job.Name,
		"stage":     at.String(),
		"attempt":   job.Attempt,
		"final":     final,
		"error":     cause.Error(),
	})
	if marked && final {
		metrics.SourcesFinished.WithLabelValues(string(entity.ProcessingStatusFailed)).Inc()
		r.publish(ctx, events.SourceFailed(sourceId, at.String(), cause.Error()))
	}
	return cause
}

func (r *stageRunner) publish(ctx context.Context, event events.Event) {
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.Warn(constant.ModuleOrchestrator, "Failed to publish lifecycle event", map[string]interface{}{
			"event": event.EventType(),
			"error": err.Error(),
		})
	}
}

func decodeSourcePayload(job *queue.Job) (uuid.UUID, error) {
	var payload dto.SourceJobPayload
	if err := job.Decode(&payload); err != nil {
		return uuid.Nil, err
	}
	if payload.SourceId == uuid.Nil {
		return uuid.Nil, queue.Permanent(fmt.Errorf("%s payload has no sourceId", job.Name))
	}
	return payload.SourceId, nil
}
