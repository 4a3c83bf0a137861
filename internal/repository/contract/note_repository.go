package contract

import (
	"context"

	"ai-notetaking-pipeline/internal/entity"

	"github.com/google/uuid"
)

type NoteRepository interface {
	Create(ctx context.Context, note *entity.Note) error
	FindBySource(ctx context.Context, sourceId uuid.UUID) (*entity.Note, error)
	LinkTags(ctx context.Context, noteId uuid.UUID, tagIds []uuid.UUID) error
	CountBySource(ctx context.Context, sourceId uuid.UUID) (int64, error)
}

type TagRepository interface {
	// Create returns ErrDuplicate when a tag with the same case-folded name exists.
	Create(ctx context.Context, tag *entity.Tag) error
	FindByName(ctx context.Context, name string) (*entity.Tag, error)
	FindByNames(ctx context.Context, names []string) ([]*entity.Tag, error)
	Count(ctx context.Context) (int64, error)
}
