package contract

import (
	"context"

	"ai-notetaking-pipeline/internal/entity"

	"github.com/google/uuid"
)

type VisualRepository interface {
	// CreateIfAbsent inserts the visual unless (source, placeholder) already exists,
	// in which case visual is overwritten with the stored row.
	CreateIfAbsent(ctx context.Context, visual *entity.Visual) (bool, error)
	FindById(ctx context.Context, id uuid.UUID) (*entity.Visual, error)
	FindBySource(ctx context.Context, sourceId uuid.UUID) ([]*entity.Visual, error)

	// MarkProcessing claims a non-terminal visual.
	MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error)

	// Finish applies a terminal outcome to a visual that is not terminal yet.
	Finish(ctx context.Context, id uuid.UUID, outcome entity.VisualOutcome) (bool, error)
	CountNonTerminal(ctx context.Context, sourceId uuid.UUID) (int64, error)
}
