package service

import (
	"context"
	"errors"
	"os"
	"testing"

	"ai-notetaking-pipeline/internal/constant"
	"ai-notetaking-pipeline/internal/dto"
	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/pkg/logger"
	memrepo "ai-notetaking-pipeline/internal/repository/memory"
	"ai-notetaking-pipeline/internal/repository/unitofwork"
	"ai-notetaking-pipeline/pkg/fallback"
	"ai-notetaking-pipeline/pkg/ocr"
	"ai-notetaking-pipeline/pkg/providererr"
	"ai-notetaking-pipeline/pkg/queue"
	"ai-notetaking-pipeline/pkg/storage"
	"ai-notetaking-pipeline/pkg/transcription"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTranscriber struct {
	result  *transcription.Merged
	err     error
	runs    []string
	sawFile bool
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, runID string, in transcription.Input) (*transcription.Merged, error) {
	f.runs = append(f.runs, runID)
	_, err := os.Stat(in.Path)
	f.sawFile = err == nil
	return f.result, f.err
}

type fakeExtractor struct {
	result ocr.Result
	err    error
	doc    ocr.Document
}

func (f *fakeExtractor) Extract(ctx context.Context, doc ocr.Document) (ocr.Result, error) {
	f.doc = doc
	return f.result, f.err
}

type orchestratorFixture struct {
	factory unitofwork.RepositoryFactory
	queue   *recordingQueue
	objects storage.ObjectStorage
	service IOrchestratorService
}

func newOrchestratorFixture(t *testing.T, transcriber Transcriber, extractor TextExtractor, generator TextGenerator) *orchestratorFixture {
	f := &orchestratorFixture{
		factory: memrepo.NewRepositoryFactory(memrepo.NewStore()),
		queue:   &recordingQueue{},
		objects: newLocalStorage(t),
	}
	f.service = NewOrchestratorService(OrchestratorConfig{WorkDir: t.TempDir(), PromptMaxChars: 4000},
		f.factory, f.queue, f.objects, transcriber, extractor, generator, nil, logger.NewNopLogger())
	return f
}

func TestIngestRoutesByKind(t *testing.T) {
	cases := []struct {
		name   string
		source entity.Source
		stage  entity.ProcessingStage
		next   string
	}{
		{"text", entity.Source{Kind: entity.SourceKindText, ExtractedText: strPtr("notes")}, entity.StageStructurePending, constant.JobGenerateStructure},
		{"audio", entity.Source{Kind: entity.SourceKindAudio, StoragePath: "a/lecture.mp3"}, entity.StageTranscriptionPending, constant.JobTranscribeSource},
		{"pdf", entity.Source{Kind: entity.SourceKindPdf, StoragePath: "a/slides.pdf"}, entity.StageOcrPending, constant.JobExtractSourceText},
		{"image", entity.Source{Kind: entity.SourceKindImage, StoragePath: "a/board.png"}, entity.StageOcrPending, constant.JobExtractSourceText},
		{"youtube transcript", entity.Source{Kind: entity.SourceKindYoutube, ExtractedText: strPtr("captions")}, entity.StageStructurePending, constant.JobGenerateStructure},
		{"youtube audio", entity.Source{Kind: entity.SourceKindYoutube, StoragePath: "a/video.m4a"}, entity.StageTranscriptionPending, constant.JobTranscribeSource},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newOrchestratorFixture(t, nil, nil, nil)
			src := tc.source
			src.Stage = entity.StageQueued
			seeded := seedSource(t, f.factory, &src)

			err := f.service.ProcessSource(context.Background(), newJob(t, constant.JobProcessSource, dto.SourceJobPayload{SourceId: seeded.Id}))
			require.NoError(t, err)

			got := loadSource(t, f.factory, seeded.Id)
			assert.Equal(t, tc.stage, got.Stage)
			assert.Equal(t, entity.ProcessingStatusProcessing, got.Status)
			jobs := f.queue.all()
			require.Len(t, jobs, 1)
			assert.Equal(t, tc.next, jobs[0].name)
			assert.Equal(t, dto.DedupeKey(tc.next, seeded.Id), jobs[0].key)
		})
	}
}

func TestIngestYoutubeWithoutMediaFailsPermanently(t *testing.T) {
	f := newOrchestratorFixture(t, nil, nil, nil)
	src := seedSource(t, f.factory, &entity.Source{Kind: entity.SourceKindYoutube, Stage: entity.StageQueued})

	err := f.service.ProcessSource(context.Background(), newJob(t, constant.JobProcessSource, dto.SourceJobPayload{SourceId: src.Id}))
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))
	assert.ErrorIs(t, err, ErrNoSourceMedia)

	got := loadSource(t, f.factory, src.Id)
	assert.Equal(t, entity.ProcessingStatusFailed, got.Status)
	assert.Equal(t, entity.StageIngesting, got.Stage)
	require.NotNil(t, got.ProcessingError)
	assert.Empty(t, f.queue.all())
}

func TestIngestReadsTextObject(t *testing.T) {
	f := newOrchestratorFixture(t, nil, nil, nil)
	putObject(t, f.objects, "uploads/cell.txt", "The mitochondria is the powerhouse of the cell.")
	src := seedSource(t, f.factory, &entity.Source{Kind: entity.SourceKindText, Stage: entity.StageQueued, StoragePath: "uploads/cell.txt"})

	err := f.service.ProcessSource(context.Background(), newJob(t, constant.JobProcessSource, dto.SourceJobPayload{SourceId: src.Id}))
	require.NoError(t, err)

	got := loadSource(t, f.factory, src.Id)
	assert.Equal(t, "The mitochondria is the powerhouse of the cell.", got.Text())
	assert.Equal(t, entity.StageStructurePending, got.Stage)
}

func TestClaimOutcomes(t *testing.T) {
	t.Run("missing source is permanent", func(t *testing.T) {
		f := newOrchestratorFixture(t, nil, nil, nil)
		err := f.service.ProcessSource(context.Background(), newJob(t, constant.JobProcessSource, dto.SourceJobPayload{SourceId: uuid.New()}))
		require.Error(t, err)
		assert.True(t, queue.IsPermanent(err))
		assert.ErrorIs(t, err, ErrSourceNotFound)
	})

	t.Run("finished stage re-enqueues the next job", func(t *testing.T) {
		f := newOrchestratorFixture(t, nil, nil, nil)
		src := seedSource(t, f.factory, &entity.Source{Kind: entity.SourceKindText, Stage: entity.StageStructurePending, ExtractedText: strPtr("x")})

		err := f.service.ProcessSource(context.Background(), newJob(t, constant.JobProcessSource, dto.SourceJobPayload{SourceId: src.Id}))
		require.NoError(t, err)
		assert.Equal(t, []string{constant.JobGenerateStructure}, f.queue.names())
		assert.Equal(t, entity.StageStructurePending, loadSource(t, f.factory, src.Id).Stage)
	})

	t.Run("stale delivery is skipped", func(t *testing.T) {
		f := newOrchestratorFixture(t, nil, nil, nil)
		src := seedSource(t, f.factory, &entity.Source{Kind: entity.SourceKindText, Stage: entity.StageCompleted, Status: entity.ProcessingStatusCompleted})

		err := f.service.ProcessSource(context.Background(), newJob(t, constant.JobProcessSource, dto.SourceJobPayload{SourceId: src.Id}))
		require.NoError(t, err)
		assert.Empty(t, f.queue.all())
		assert.Equal(t, entity.ProcessingStatusCompleted, loadSource(t, f.factory, src.Id).Status)
	})

	t.Run("bad payload is permanent", func(t *testing.T) {
		f := newOrchestratorFixture(t, nil, nil, nil)
		job := &queue.Job{Id: uuid.New(), Name: constant.JobProcessSource, Payload: []byte(`{"sourceId":`), Attempt: 1, MaxAttempts: 3}
		assert.True(t, queue.IsPermanent(f.service.ProcessSource(context.Background(), job)))
	})
}

func TestTranscribeStoresTranscriptArtifacts(t *testing.T) {
	transcriber := &fakeTranscriber{result: &transcription.Merged{
		Result: transcription.Result{
			Text:     "hello world",
			Words:    []transcription.Word{{Word: "hello", Start: 0, End: 0.4}, {Word: "world", Start: 600.1, End: 600.5}},
			Language: "en",
		},
		Provider: transcription.SourceMixed,
		Stats:    transcription.ChunkStats{Total: 2, FailedPrimary: 1, Recovered: 1},
	}}
	f := newOrchestratorFixture(t, transcriber, nil, nil)
	putObject(t, f.objects, "audio/lecture.mp3", "not really audio")
	src := seedSource(t, f.factory, &entity.Source{Kind: entity.SourceKindAudio, Stage: entity.StageTranscriptionPending, StoragePath: "audio/lecture.mp3", MimeType: "audio/mpeg"})

	job := newJob(t, constant.JobTranscribeSource, dto.SourceJobPayload{SourceId: src.Id})
	require.NoError(t, f.service.TranscribeSource(context.Background(), job))

	assert.True(t, transcriber.sawFile)
	require.Len(t, transcriber.runs, 1)
	assert.Contains(t, transcriber.runs[0], job.Id.String())

	got := loadSource(t, f.factory, src.Id)
	assert.Equal(t, entity.StageStructurePending, got.Stage)
	assert.Equal(t, "hello world", got.Text())
	assert.Equal(t, "en", got.LanguageCode)
	assert.Equal(t, transcription.SourceMixed, got.Metadata[entity.MetaTranscriptionProvider])

	chunks, ok := got.Metadata[entity.MetaTranscriptionChunks].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 2, chunks["total"])
	assert.EqualValues(t, 1, chunks["recovered"])

	words, ok := got.Metadata[entity.MetaTranscriptWords].([]interface{})
	require.True(t, ok)
	assert.Len(t, words, 2)
	assert.Equal(t, []string{constant.JobGenerateStructure}, f.queue.names())
}

func TestTranscribeQuotaIsPermanent(t *testing.T) {
	transcriber := &fakeTranscriber{err: providererr.Quota("openai-whisper", errors.New("You exceeded your current quota"))}
	f := newOrchestratorFixture(t, transcriber, nil, nil)
	putObject(t, f.objects, "audio/lecture.mp3", "not really audio")
	src := seedSource(t, f.factory, &entity.Source{Kind: entity.SourceKindAudio, Stage: entity.StageTranscriptionPending, StoragePath: "audio/lecture.mp3"})

	err := f.service.TranscribeSource(context.Background(), newJob(t, constant.JobTranscribeSource, dto.SourceJobPayload{SourceId: src.Id}))
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))

	got := loadSource(t, f.factory, src.Id)
	assert.Equal(t, entity.ProcessingStatusFailed, got.Status)
	assert.Equal(t, entity.StageTranscriptionInProgress, got.Stage)
	require.NotNil(t, got.ProcessingError)
	assert.Contains(t, *got.ProcessingError, "exceeded your current quota")
	assert.Empty(t, f.queue.all())
}

func TestExtractTextRecordsOcrProvider(t *testing.T) {
	extractor := &fakeExtractor{result: ocr.Result{Text: "Photosynthesis happens in chloroplasts.", Provider: "ocrspace"}}
	f := newOrchestratorFixture(t, nil, extractor, nil)
	putObject(t, f.objects, "scans/page.pdf", "%PDF-1.4")
	src := seedSource(t, f.factory, &entity.Source{Kind: entity.SourceKindPdf, Stage: entity.StageOcrPending, StoragePath: "scans/page.pdf", MimeType: "application/pdf"})

	err := f.service.ExtractSourceText(context.Background(), newJob(t, constant.JobExtractSourceText, dto.SourceJobPayload{SourceId: src.Id}))
	require.NoError(t, err)

	assert.Equal(t, "page.pdf", extractor.doc.Filename)
	assert.Equal(t, []byte("%PDF-1.4"), extractor.doc.Bytes)
	got := loadSource(t, f.factory, src.Id)
	assert.Equal(t, "Photosynthesis happens in chloroplasts.", got.Text())
	assert.Equal(t, "ocrspace", got.Metadata[entity.MetaOcrProvider])
	assert.Equal(t, entity.StageStructurePending, got.Stage)
}

func TestExtractTextWithoutOcrProvidersIsPermanent(t *testing.T) {
	cases := map[string]TextExtractor{
		"nil extractor":   nil,
		"empty fallback": ocr.NewFallback(logger.NewNopLogger()),
	}
	for name, extractor := range cases {
		t.Run(name, func(t *testing.T) {
			f := newOrchestratorFixture(t, nil, extractor, nil)
			putObject(t, f.objects, "scans/page.pdf", "%PDF-1.4")
			src := seedSource(t, f.factory, &entity.Source{Kind: entity.SourceKindPdf, Stage: entity.StageOcrPending, StoragePath: "scans/page.pdf", MimeType: "application/pdf"})

			err := f.service.ExtractSourceText(context.Background(), newJob(t, constant.JobExtractSourceText, dto.SourceJobPayload{SourceId: src.Id}))
			require.Error(t, err)
			assert.True(t, queue.IsPermanent(err))

			got := loadSource(t, f.factory, src.Id)
			assert.Equal(t, entity.ProcessingStatusFailed, got.Status)
			assert.Equal(t, entity.StageOcrInProgress, got.Stage)
			assert.Empty(t, f.queue.all())
		})
	}
}

func TestGenerateStructureWithoutProvidersIsPermanent(t *testing.T) {
	f := newOrchestratorFixture(t, nil, nil, llmGenerator())
	src := seedSource(t, f.factory, &entity.Source{Kind: entity.SourceKindText, Stage: entity.StageStructurePending, ExtractedText: strPtr("cells")})

	err := f.service.GenerateStructure(context.Background(), newJob(t, constant.JobGenerateStructure, dto.SourceJobPayload{SourceId: src.Id}))
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))
	assert.ErrorIs(t, err, fallback.ErrNoCandidates)

	got := loadSource(t, f.factory, src.Id)
	assert.Equal(t, entity.ProcessingStatusFailed, got.Status)
	assert.Equal(t, entity.StageGeneratingStructure, got.Stage)
	assert.Empty(t, f.queue.all())
}

func TestGenerateStructureRecordsUnresolvedPlaceholders(t *testing.T) {
	reply := `{"title": "T", "summary": "S", "sections": [{"heading": "H", "blocks": [{"type": "paragraph", "text": "p"}]}],
	  "visualOpportunities": [{"placeholderId": "visual-9", "description": "a cell"}]}`
	generator := llmGenerator(&scriptedLLM{name: "primary", structure: reply})
	f := newOrchestratorFixture(t, nil, nil, generator)
	src := seedSource(t, f.factory, &entity.Source{Kind: entity.SourceKindText, Stage: entity.StageStructurePending, ExtractedText: strPtr("cells")})

	err := f.service.GenerateStructure(context.Background(), newJob(t, constant.JobGenerateStructure, dto.SourceJobPayload{SourceId: src.Id}))
	require.NoError(t, err)

	got := loadSource(t, f.factory, src.Id)
	assert.Equal(t, entity.StageVisualsPending, got.Stage)
	assert.Equal(t, []interface{}{"visual-9"}, got.Metadata[entity.MetaUnresolvedPlaceholders])
	doc, err := structureOf(got)
	require.NoError(t, err)
	assert.Equal(t, "T", doc.Title)
	assert.Equal(t, []string{constant.JobCreateVisualPlaceholders}, f.queue.names())
}
