package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"ai-notetaking-pipeline/internal/constant"
	"ai-notetaking-pipeline/internal/dto"
	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/pkg/logger"
	memrepo "ai-notetaking-pipeline/internal/repository/memory"
	"ai-notetaking-pipeline/internal/repository/unitofwork"
	"ai-notetaking-pipeline/pkg/imagesearch"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVisualFixture(t *testing.T, searcher imagesearch.Provider) (unitofwork.RepositoryFactory, *recordingQueue, IVisualService) {
	factory := memrepo.NewRepositoryFactory(memrepo.NewStore())
	q := &recordingQueue{}
	svc := NewVisualService(VisualConfig{SearchCount: 5, MinSimilarity: 0.15}, factory, q, searcher, nil, logger.NewNopLogger())
	return factory, q, svc
}

func seedVisual(t *testing.T, factory unitofwork.RepositoryFactory, sourceId uuid.UUID, placeholder, description string) *entity.Visual {
	t.Helper()
	v := &entity.Visual{SourceId: sourceId, PlaceholderId: placeholder, Description: description}
	uow := factory.NewUnitOfWork(context.Background())
	created, err := uow.VisualRepository().CreateIfAbsent(context.Background(), v)
	require.NoError(t, err)
	require.True(t, created)
	return v
}

func TestCreatePlaceholdersFansOutOncePerOpportunity(t *testing.T) {
	factory, q, svc := newVisualFixture(t, cellSearcher())
	src := seedSource(t, factory, &entity.Source{
		Kind:     entity.SourceKindText,
		Stage:    entity.StageVisualsPending,
		Metadata: map[string]interface{}{entity.MetaStructure: mustStructure(t, twoVisualStructure)},
	})
	job := newJob(t, constant.JobCreateVisualPlaceholders, dto.SourceJobPayload{SourceId: src.Id})

	require.NoError(t, svc.CreatePlaceholders(context.Background(), job))

	got := loadSource(t, factory, src.Id)
	assert.Equal(t, entity.StageGeneratingVisuals, got.Stage)
	require.Len(t, got.Visuals, 2)
	placeholders := map[string]entity.VisualStatus{}
	for _, v := range got.Visuals {
		placeholders[v.PlaceholderId] = v.Status
	}
	assert.Equal(t, map[string]entity.VisualStatus{
		"visual-1": entity.VisualStatusPending,
		"visual-2": entity.VisualStatusPending,
	}, placeholders)
	assert.Equal(t, []string{constant.JobGenerateVisual, constant.JobGenerateVisual}, q.names())

	// A redelivery finds the stage done and only re-enqueues the same keys.
	require.NoError(t, svc.CreatePlaceholders(context.Background(), job))
	assert.Len(t, loadSource(t, factory, src.Id).Visuals, 2)

	keys := map[string]int{}
	for _, j := range q.all() {
		keys[j.key]++
	}
	assert.Len(t, keys, 2)
	for key, n := range keys {
		assert.True(t, strings.HasPrefix(key, constant.JobGenerateVisual+":"+src.Id.String()+":"), key)
		assert.Equal(t, 2, n)
	}
}

func TestCreatePlaceholdersWithoutOpportunitiesGoesToAssembly(t *testing.T) {
	factory, q, svc := newVisualFixture(t, cellSearcher())
	src := seedSource(t, factory, &entity.Source{
		Kind:     entity.SourceKindText,
		Stage:    entity.StageVisualsPending,
		Metadata: map[string]interface{}{entity.MetaStructure: mustStructure(t, noVisualStructure)},
	})

	err := svc.CreatePlaceholders(context.Background(), newJob(t, constant.JobCreateVisualPlaceholders, dto.SourceJobPayload{SourceId: src.Id}))
	require.NoError(t, err)

	got := loadSource(t, factory, src.Id)
	assert.Equal(t, entity.StageAssemblyPending, got.Stage)
	assert.Empty(t, got.Visuals)
	jobs := q.all()
	require.Len(t, jobs, 1)
	assert.Equal(t, constant.JobAssembleNote, jobs[0].name)
	assert.Equal(t, dto.DedupeKey(constant.JobAssembleNote, src.Id), jobs[0].key)
}

func TestCreatePlaceholdersWithoutStructureFails(t *testing.T) {
	factory, q, svc := newVisualFixture(t, cellSearcher())
	src := seedSource(t, factory, &entity.Source{Kind: entity.SourceKindText, Stage: entity.StageVisualsPending})

	err := svc.CreatePlaceholders(context.Background(), newJob(t, constant.JobCreateVisualPlaceholders, dto.SourceJobPayload{SourceId: src.Id}))
	require.Error(t, err)

	got := loadSource(t, factory, src.Id)
	assert.Equal(t, entity.ProcessingStatusFailed, got.Status)
	assert.Equal(t, entity.StageCreatingVisualPlaceholders, got.Stage)
	assert.Empty(t, q.all())
}

func TestGenerateVisualOutcomes(t *testing.T) {
	const description = "mitochondria organelle diagram"
	cases := []struct {
		name     string
		searcher *fakeSearcher
		status   entity.VisualStatus
		prefix   string
		image    string
	}{
		{
			name:     "matching candidate",
			searcher: cellSearcher(),
			status:   entity.VisualStatusCompleted,
			image:    "https://img.example/mito.jpg",
		},
		{
			name:     "account error",
			searcher: &fakeSearcher{err: fmt.Errorf("%w: 401 unauthorized", imagesearch.ErrAccount)},
			status:   entity.VisualStatusFailed,
			prefix:   constant.VisualAccountErrorPrefix + ":",
		},
		{
			name:     "api error",
			searcher: &fakeSearcher{err: fmt.Errorf("%w: 503", imagesearch.ErrAPI)},
			status:   entity.VisualStatusFailed,
			prefix:   constant.VisualAPIErrorPrefix + ":",
		},
		{
			name:     "no candidates",
			searcher: &fakeSearcher{},
			status:   entity.VisualStatusNoImageFound,
		},
		{
			name: "below threshold",
			searcher: &fakeSearcher{results: map[string][]imagesearch.Candidate{
				"mitochondria": {{ImageURL: "https://img.example/sunset.jpg", Title: "Sunset over mountains"}},
			}},
			status: entity.VisualStatusNoImageFound,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			factory, q, svc := newVisualFixture(t, tc.searcher)
			src := seedSource(t, factory, &entity.Source{Kind: entity.SourceKindText, Stage: entity.StageGeneratingVisuals})
			v := seedVisual(t, factory, src.Id, "visual-1", description)

			job := newJob(t, constant.JobGenerateVisual, dto.VisualJobPayload{VisualId: v.Id, SourceId: src.Id})
			require.NoError(t, svc.GenerateVisual(context.Background(), job))

			got := loadSource(t, factory, src.Id)
			require.Len(t, got.Visuals, 1)
			visual := got.Visuals[0]
			assert.Equal(t, tc.status, visual.Status)
			if tc.prefix != "" {
				require.NotNil(t, visual.ErrorMessage)
				assert.True(t, strings.HasPrefix(*visual.ErrorMessage, tc.prefix), *visual.ErrorMessage)
			}
			if tc.image != "" {
				require.NotNil(t, visual.ImageUrl)
				assert.Equal(t, tc.image, *visual.ImageUrl)
				require.NotNil(t, visual.Score)
				assert.InDelta(t, 1.0, *visual.Score, 1e-9)
			} else {
				assert.Nil(t, visual.ImageUrl)
			}

			// Every outcome is terminal, so the lone visual closes the fan-in.
			assert.Equal(t, entity.StageAssemblyPending, got.Stage)
			assert.Equal(t, []string{constant.JobAssembleNote}, q.names())
		})
	}
}

func TestGenerateVisualWaitsForSiblings(t *testing.T) {
	factory, q, svc := newVisualFixture(t, cellSearcher())
	src := seedSource(t, factory, &entity.Source{Kind: entity.SourceKindText, Stage: entity.StageGeneratingVisuals})
	first := seedVisual(t, factory, src.Id, "visual-1", "mitochondria organelle diagram")
	second := seedVisual(t, factory, src.Id, "visual-2", "ATP molecule structure")

	require.NoError(t, svc.GenerateVisual(context.Background(),
		newJob(t, constant.JobGenerateVisual, dto.VisualJobPayload{VisualId: first.Id, SourceId: src.Id})))
	assert.Equal(t, entity.StageGeneratingVisuals, loadSource(t, factory, src.Id).Stage)
	assert.Empty(t, q.all())

	require.NoError(t, svc.GenerateVisual(context.Background(),
		newJob(t, constant.JobGenerateVisual, dto.VisualJobPayload{VisualId: second.Id, SourceId: src.Id})))
	assert.Equal(t, entity.StageAssemblyPending, loadSource(t, factory, src.Id).Stage)
	assert.Equal(t, []string{constant.JobAssembleNote}, q.names())

	// A duplicate delivery skips the search but re-offers assembly under the same key.
	require.NoError(t, svc.GenerateVisual(context.Background(),
		newJob(t, constant.JobGenerateVisual, dto.VisualJobPayload{VisualId: second.Id, SourceId: src.Id})))
	assert.Equal(t, 2, cellSearcherCalls(t, svc))
	jobs := q.all()
	require.Len(t, jobs, 2)
	assert.Equal(t, jobs[0].key, jobs[1].key)
}

func TestGenerateVisualCancelledSearchIsRetried(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("connection reset")}
	factory, q, svc := newVisualFixture(t, searcher)
	src := seedSource(t, factory, &entity.Source{Kind: entity.SourceKindText, Stage: entity.StageGeneratingVisuals})
	v := seedVisual(t, factory, src.Id, "visual-1", "mitochondria organelle diagram")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := svc.GenerateVisual(ctx, newJob(t, constant.JobGenerateVisual, dto.VisualJobPayload{VisualId: v.Id, SourceId: src.Id}))
	require.ErrorIs(t, err, context.Canceled)

	got := loadSource(t, factory, src.Id)
	assert.Equal(t, entity.VisualStatusProcessing, got.Visuals[0].Status)
	assert.Equal(t, entity.StageGeneratingVisuals, got.Stage)
	assert.Empty(t, q.all())
}

func TestGenerateVisualPanicOnLastAttemptClosesFanIn(t *testing.T) {
	factory, q, svc := newVisualFixture(t, &panickingSearcher{trigger: "atp", next: cellSearcher()})
	src := seedSource(t, factory, &entity.Source{Kind: entity.SourceKindText, Stage: entity.StageGeneratingVisuals})
	first := seedVisual(t, factory, src.Id, "visual-1", "mitochondria organelle diagram")
	second := seedVisual(t, factory, src.Id, "visual-2", "ATP molecule structure")

	require.NoError(t, svc.GenerateVisual(context.Background(),
		newJob(t, constant.JobGenerateVisual, dto.VisualJobPayload{VisualId: first.Id, SourceId: src.Id})))

	job := newJob(t, constant.JobGenerateVisual, dto.VisualJobPayload{VisualId: second.Id, SourceId: src.Id})
	err := svc.GenerateVisual(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")

	// Retries are still possible, so nothing is recorded yet.
	got := loadSource(t, factory, src.Id)
	assert.Equal(t, entity.StageGeneratingVisuals, got.Stage)
	assert.Empty(t, q.all())

	job.Attempt = job.MaxAttempts
	require.Error(t, svc.GenerateVisual(context.Background(), job))

	got = loadSource(t, factory, src.Id)
	assert.Equal(t, entity.StageAssemblyPending, got.Stage)
	for _, v := range got.Visuals {
		if v.PlaceholderId != "visual-2" {
			continue
		}
		assert.Equal(t, entity.VisualStatusFailed, v.Status)
		require.NotNil(t, v.ErrorMessage)
		assert.True(t, strings.HasPrefix(*v.ErrorMessage, constant.VisualAPIErrorPrefix+":"), *v.ErrorMessage)
	}
	assert.Equal(t, []string{constant.JobAssembleNote}, q.names())
}

func TestGenerateVisualMissingVisualIsPermanent(t *testing.T) {
	_, _, svc := newVisualFixture(t, cellSearcher())
	err := svc.GenerateVisual(context.Background(),
		newJob(t, constant.JobGenerateVisual, dto.VisualJobPayload{VisualId: uuid.New(), SourceId: uuid.New()}))
	assert.ErrorIs(t, err, ErrVisualNotFound)
}

func cellSearcherCalls(t *testing.T, svc IVisualService) int {
	t.Helper()
	impl, ok := svc.(*visualService)
	require.True(t, ok)
	searcher, ok := impl.searcher.(*fakeSearcher)
	require.True(t, ok)
	return searcher.Calls()
}
