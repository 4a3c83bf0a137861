package unitofwork

import (
	"context"

	"ai-notetaking-pipeline/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	SourceRepository() contract.SourceRepository
	VisualRepository() contract.VisualRepository
	NoteRepository() contract.NoteRepository
	TagRepository() contract.TagRepository
	JobRepository() contract.JobRepository
}
