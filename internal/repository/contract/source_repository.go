package contract

import (
	"context"

	"ai-notetaking-pipeline/internal/entity"

	"github.com/google/uuid"
)

type SourceRepository interface {
	Create(ctx context.Context, source *entity.Source) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindById(ctx context.Context, id uuid.UUID) (*entity.Source, error)
	FindByIdWithVisuals(ctx context.Context, id uuid.UUID) (*entity.Source, error)

	// TransitionStage moves the row to t.To() and sets status, but only while its
	// current stage is one of t.From(). It reports whether a row was updated.
	TransitionStage(ctx context.Context, id uuid.UUID, t entity.Transition, status entity.ProcessingStatus) (bool, error)

	// MarkFailed sets status FAILED and the error message while the row is still at
	// one of the given stages.
	MarkFailed(ctx context.Context, id uuid.UUID, message string, stages ...entity.ProcessingStage) (bool, error)

	SaveResult(ctx context.Context, id uuid.UUID, result entity.SourceResult) error
	MergeMetadata(ctx context.Context, id uuid.UUID, patch map[string]interface{}) error
}
