package service

import (
	"context"
	"errors"
	"testing"

	"ai-notetaking-pipeline/internal/constant"
	"ai-notetaking-pipeline/internal/dto"
	"ai-notetaking-pipeline/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextSourceBecomesIllustratedNote(t *testing.T) {
	primary := &scriptedLLM{name: "primary", structure: twoVisualStructure, tags: tagReply}
	h := newHarness(t, harnessOptions{primary: primary, searcher: cellSearcher()})
	ctx := context.Background()

	res, err := h.sources.CreateText(ctx, &dto.CreateTextSourceRequest{
		UserId:       uuid.New(),
		Text:         "The mitochondria is the powerhouse of the cell.",
		LanguageCode: "en",
	})
	require.NoError(t, err)
	h.waitIdle(t)

	source := loadSource(t, h.factory, res.SourceId)
	assert.Equal(t, entity.ProcessingStatusCompleted, source.Status)
	assert.Equal(t, entity.StageCompleted, source.Stage)
	assert.Nil(t, source.ProcessingError)
	assert.Equal(t, "primary", source.Metadata[entity.MetaStructureProvider])

	require.Len(t, source.Visuals, 2)
	for _, v := range source.Visuals {
		assert.True(t, v.Status.IsTerminal(), v.PlaceholderId)
		assert.Equal(t, entity.VisualStatusCompleted, v.Status, v.PlaceholderId)
	}

	assert.EqualValues(t, 1, h.noteCount(t, res.SourceId))
	uow := h.factory.NewUnitOfWork(ctx)
	note, err := uow.NoteRepository().FindBySource(ctx, res.SourceId)
	require.NoError(t, err)
	require.NotNil(t, note)
	assert.Equal(t, "Cell Energy", note.Title)
	assert.Equal(t, entity.ContentFormatHTML, note.ContentFormat)
	assert.Contains(t, note.Content, "https://img.example/mito.jpg")
	assert.Contains(t, note.Content, "https://img.example/atp.jpg")
	assert.Len(t, note.TagIds, 3)

	assert.Len(t, h.jobs(t, constant.JobAssembleNote), 1)
	assert.Len(t, h.jobs(t, constant.JobGenerateVisual), 2)
}

func TestPanickingVisualSearchStillCompletesSource(t *testing.T) {
	primary := &scriptedLLM{name: "primary", structure: twoVisualStructure, tags: tagReply}
	searcher := &panickingSearcher{trigger: "atp", next: cellSearcher()}
	h := newHarness(t, harnessOptions{primary: primary, searcher: searcher, maxAttempts: 2})

	res, err := h.sources.CreateText(context.Background(), &dto.CreateTextSourceRequest{
		UserId: uuid.New(),
		Text:   "The mitochondria is the powerhouse of the cell.",
	})
	require.NoError(t, err)
	h.waitIdle(t)

	source := loadSource(t, h.factory, res.SourceId)
	assert.Equal(t, entity.ProcessingStatusCompleted, source.Status)
	assert.Equal(t, entity.StageCompleted, source.Stage)
	statuses := map[string]entity.VisualStatus{}
	for _, v := range source.Visuals {
		statuses[v.PlaceholderId] = v.Status
	}
	assert.Equal(t, map[string]entity.VisualStatus{
		"visual-1": entity.VisualStatusCompleted,
		"visual-2": entity.VisualStatusFailed,
	}, statuses)
	assert.EqualValues(t, 1, h.noteCount(t, res.SourceId))
}

func TestStructureFallsBackToSecondary(t *testing.T) {
	cases := map[string]*scriptedLLM{
		"primary errors":       {name: "primary", err: errors.New("upstream returned 503")},
		"primary invalid json": {name: "primary", structure: "Sure! Here is your note.", tags: "no"},
		"primary schema":       {name: "primary", structure: `{"title": "", "sections": []}`, tags: `{"tags": []}`},
	}
	for name, primary := range cases {
		t.Run(name, func(t *testing.T) {
			secondary := &scriptedLLM{name: "secondary", structure: noVisualStructure, tags: tagReply}
			h := newHarness(t, harnessOptions{primary: primary, secondary: secondary})

			res, err := h.sources.CreateText(context.Background(), &dto.CreateTextSourceRequest{
				UserId: uuid.New(),
				Text:   "The mitochondria is the powerhouse of the cell.",
			})
			require.NoError(t, err)
			h.waitIdle(t)

			source := loadSource(t, h.factory, res.SourceId)
			assert.Equal(t, entity.ProcessingStatusCompleted, source.Status)
			assert.Equal(t, "secondary", source.Metadata[entity.MetaStructureProvider])
			assert.EqualValues(t, 1, h.noteCount(t, res.SourceId))
		})
	}
}

func TestBothProvidersFailingFailsTheSource(t *testing.T) {
	primary := &scriptedLLM{name: "primary", err: errors.New("connection reset by peer")}
	secondary := &scriptedLLM{name: "secondary", structure: `{"title": "only a title"}`}
	h := newHarness(t, harnessOptions{primary: primary, secondary: secondary, maxAttempts: 2})

	res, err := h.sources.CreateText(context.Background(), &dto.CreateTextSourceRequest{
		UserId: uuid.New(),
		Text:   "The mitochondria is the powerhouse of the cell.",
	})
	require.NoError(t, err)
	h.waitIdle(t)

	source := loadSource(t, h.factory, res.SourceId)
	assert.Equal(t, entity.ProcessingStatusFailed, source.Status)
	assert.Equal(t, entity.StageGeneratingStructure, source.Stage)
	require.NotNil(t, source.ProcessingError)
	assert.NotEmpty(t, *source.ProcessingError)
	assert.EqualValues(t, 0, h.noteCount(t, res.SourceId))

	jobs := h.jobs(t, constant.JobGenerateStructure)
	require.Len(t, jobs, 1)
	assert.Equal(t, entity.JobStatusFailed, jobs[0].Status)
	assert.Equal(t, 2, jobs[0].Attempt)
	assert.Nil(t, jobs[0].DedupeKey)
	assert.Equal(t, 2, primary.Calls())
}

func TestNoVisualOpportunitiesSkipsFanOut(t *testing.T) {
	primary := &scriptedLLM{name: "primary", structure: noVisualStructure, tags: tagReply}
	searcher := cellSearcher()
	h := newHarness(t, harnessOptions{primary: primary, searcher: searcher})

	res, err := h.sources.CreateText(context.Background(), &dto.CreateTextSourceRequest{
		UserId: uuid.New(),
		Text:   "The mitochondria is the powerhouse of the cell.",
	})
	require.NoError(t, err)
	h.waitIdle(t)

	source := loadSource(t, h.factory, res.SourceId)
	assert.Equal(t, entity.ProcessingStatusCompleted, source.Status)
	assert.Empty(t, source.Visuals)
	assert.Empty(t, h.jobs(t, constant.JobGenerateVisual))
	assert.Len(t, h.jobs(t, constant.JobAssembleNote), 1)
	assert.Zero(t, searcher.Calls())
}

func TestFanInSchedulesAssemblyOnce(t *testing.T) {
	primary := &scriptedLLM{name: "primary", tags: tagReply}
	h := newHarness(t, harnessOptions{primary: primary, searcher: cellSearcher()})
	ctx := context.Background()

	doc := mustStructure(t, twoVisualStructure)
	source := seedSource(t, h.factory, &entity.Source{
		Kind:          entity.SourceKindText,
		Stage:         entity.StageGeneratingVisuals,
		ExtractedText: strPtr("The mitochondria is the powerhouse of the cell."),
		Metadata:      map[string]interface{}{entity.MetaStructure: doc},
	})

	uow := h.factory.NewUnitOfWork(ctx)
	var visualIds []uuid.UUID
	for _, op := range doc.UsableOpportunities() {
		v := &entity.Visual{
			Id:            uuid.New(),
			SourceId:      source.Id,
			PlaceholderId: op.PlaceholderId,
			Description:   op.Description,
			Status:        entity.VisualStatusPending,
		}
		_, err := uow.VisualRepository().CreateIfAbsent(ctx, v)
		require.NoError(t, err)
		visualIds = append(visualIds, v.Id)
	}

	// Every visual is delivered three times, interleaved, without dedupe keys.
	for round := 0; round < 3; round++ {
		for _, id := range visualIds {
			_, err := h.queue.Enqueue(ctx, constant.JobGenerateVisual, dto.VisualJobPayload{VisualId: id, SourceId: source.Id})
			require.NoError(t, err)
		}
	}
	h.waitIdle(t)

	assert.Len(t, h.jobs(t, constant.JobAssembleNote), 1)
	assert.EqualValues(t, 1, h.noteCount(t, source.Id))
	assert.Equal(t, entity.StageCompleted, loadSource(t, h.factory, source.Id).Stage)

	// A late redelivery after completion changes nothing.
	_, err := h.queue.Enqueue(ctx, constant.JobGenerateVisual, dto.VisualJobPayload{VisualId: visualIds[0], SourceId: source.Id})
	require.NoError(t, err)
	h.waitIdle(t)
	assert.Len(t, h.jobs(t, constant.JobAssembleNote), 1)
	assert.EqualValues(t, 1, h.noteCount(t, source.Id))
}

func TestResubmitRerunsFailedStage(t *testing.T) {
	primary := &scriptedLLM{name: "primary", err: errors.New("connection reset by peer")}
	h := newHarness(t, harnessOptions{primary: primary, maxAttempts: 1})
	ctx := context.Background()

	res, err := h.sources.CreateText(ctx, &dto.CreateTextSourceRequest{
		UserId: uuid.New(),
		Text:   "The mitochondria is the powerhouse of the cell.",
	})
	require.NoError(t, err)
	h.waitIdle(t)
	require.Equal(t, entity.ProcessingStatusFailed, loadSource(t, h.factory, res.SourceId).Status)

	primary.mu.Lock()
	primary.err = nil
	primary.structure = noVisualStructure
	primary.tags = tagReply
	primary.mu.Unlock()

	failed := h.jobs(t, constant.JobGenerateStructure)
	require.Len(t, failed, 1)
	require.NoError(t, h.queue.Resubmit(ctx, failed[0].Id))
	h.waitIdle(t)

	source := loadSource(t, h.factory, res.SourceId)
	assert.Equal(t, entity.ProcessingStatusCompleted, source.Status)
	assert.Nil(t, source.ProcessingError)
	assert.EqualValues(t, 1, h.noteCount(t, res.SourceId))
}
