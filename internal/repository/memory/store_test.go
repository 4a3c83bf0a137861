package memory

import (
	"context"
	"testing"

	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/repository/contract"
	"ai-notetaking-pipeline/internal/repository/unitofwork"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSource(t *testing.T, uow unitofwork.UnitOfWork) *entity.Source {
	src := &entity.Source{UserId: uuid.New(), Kind: entity.SourceKindText}
	require.NoError(t, uow.SourceRepository().Create(context.Background(), src))
	return src
}

func TestTransitionStageIsConditional(t *testing.T) {
	ctx := context.Background()
	factory := NewRepositoryFactory(NewStore())
	uow := factory.NewUnitOfWork(ctx)
	src := newSource(t, uow)

	claim := entity.EnterTransition(entity.StageIngesting)
	ok, err := uow.SourceRepository().TransitionStage(ctx, src.Id, claim, entity.ProcessingStatusProcessing)
	require.NoError(t, err)
	assert.True(t, ok)

	wrong := entity.MustTransition(entity.StageTranscriptionInProgress, entity.StageTranscriptionPending)
	ok, err = uow.SourceRepository().TransitionStage(ctx, src.Id, wrong, entity.ProcessingStatusProcessing)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := uow.SourceRepository().FindById(ctx, src.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.StageIngesting, got.Stage)
	assert.Equal(t, entity.ProcessingStatusProcessing, got.Status)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	factory := NewRepositoryFactory(NewStore())
	src := newSource(t, factory.NewUnitOfWork(ctx))

	uow := factory.NewUnitOfWork(ctx)
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.NoteRepository().Create(ctx, &entity.Note{SourceId: src.Id, Title: "draft"}))
	require.NoError(t, uow.Rollback())

	count, err := factory.NewUnitOfWork(ctx).NoteRepository().CountBySource(ctx, src.Id)
	require.NoError(t, err)
	assert.Zero(t, count)

	uow = factory.NewUnitOfWork(ctx)
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.NoteRepository().Create(ctx, &entity.Note{SourceId: src.Id, Title: "final"}))
	require.NoError(t, uow.Commit())

	count, err = factory.NewUnitOfWork(ctx).NoteRepository().CountBySource(ctx, src.Id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestMetadataMergeKeepsOtherKeys(t *testing.T) {
	ctx := context.Background()
	uow := NewRepositoryFactory(NewStore()).NewUnitOfWork(ctx)
	src := newSource(t, uow)
	repo := uow.SourceRepository()

	require.NoError(t, repo.MergeMetadata(ctx, src.Id, map[string]interface{}{"a": 1}))
	require.NoError(t, repo.SaveResult(ctx, src.Id, entity.SourceResult{
		ExtractedText: "hello",
		LanguageCode:  "en",
		Metadata:      map[string]interface{}{"b": "two"},
	}))

	got, err := repo.FindById(ctx, src.Id)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Text())
	assert.EqualValues(t, 1, got.Metadata["a"])
	assert.Equal(t, "two", got.Metadata["b"])

	assert.ErrorIs(t, repo.MergeMetadata(ctx, uuid.New(), map[string]interface{}{"x": 1}), contract.ErrNotFound)
}

func TestVisualFinishOnlyOnce(t *testing.T) {
	ctx := context.Background()
	uow := NewRepositoryFactory(NewStore()).NewUnitOfWork(ctx)
	repo := uow.VisualRepository()
	sourceId := uuid.New()

	v := &entity.Visual{SourceId: sourceId, PlaceholderId: "v1", Description: "cell"}
	created, err := repo.CreateIfAbsent(ctx, v)
	require.NoError(t, err)
	assert.True(t, created)

	dup := &entity.Visual{SourceId: sourceId, PlaceholderId: "v1", Description: "other"}
	created, err = repo.CreateIfAbsent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, v.Id, dup.Id)

	ok, err := repo.Finish(ctx, v.Id, entity.VisualOutcome{Status: entity.VisualStatusNoImageFound})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Finish(ctx, v.Id, entity.VisualOutcome{Status: entity.VisualStatusCompleted, ImageUrl: "x"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.MarkProcessing(ctx, v.Id)
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := repo.CountNonTerminal(ctx, sourceId)
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestJobDedupeKeyIsUniqueUntilReleased(t *testing.T) {
	ctx := context.Background()
	repo := NewRepositoryFactory(NewStore()).NewUnitOfWork(ctx).JobRepository()
	key := "ASSEMBLE_NOTE:abc"

	first := &entity.Job{Name: "ASSEMBLE_NOTE", DedupeKey: &key, Status: entity.JobStatusQueued}
	require.NoError(t, repo.Create(ctx, first))
	assert.ErrorIs(t, repo.Create(ctx, &entity.Job{Name: "ASSEMBLE_NOTE", DedupeKey: &key}), contract.ErrDuplicate)

	require.NoError(t, repo.Update(ctx, first.Id, contract.JobUpdate{Status: entity.JobStatusCompleted, Attempt: 1, ReleaseDedupe: true}))
	require.NoError(t, repo.Create(ctx, &entity.Job{Name: "ASSEMBLE_NOTE", DedupeKey: &key}))
}
