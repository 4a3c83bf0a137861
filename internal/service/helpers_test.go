package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/pkg/logger"
	"ai-notetaking-pipeline/internal/repository/contract"
	memrepo "ai-notetaking-pipeline/internal/repository/memory"
	"ai-notetaking-pipeline/internal/repository/unitofwork"
	"ai-notetaking-pipeline/pkg/ai/structure"
	"ai-notetaking-pipeline/pkg/imagesearch"
	"ai-notetaking-pipeline/pkg/llm"
	"ai-notetaking-pipeline/pkg/queue"
	memqueue "ai-notetaking-pipeline/pkg/queue/memory"
	"ai-notetaking-pipeline/pkg/render"
	"ai-notetaking-pipeline/pkg/storage"
	"ai-notetaking-pipeline/pkg/storage/local"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const twoVisualStructure = `{
  "title": "Cell Energy",
  "summary": "Mitochondria produce most of the energy a cell uses.",
  "language": "en",
  "sections": [
    {"heading": "Mitochondria", "blocks": [
      {"type": "paragraph", "text": "The mitochondria is the powerhouse of the cell."},
      {"type": "visual_placeholder", "placeholderId": "visual-1", "caption": "A mitochondrion"},
      {"type": "paragraph", "text": "It turns nutrients into ATP.", "placeholderId": "visual-2"}
    ]}
  ],
  "visualOpportunities": [
    {"placeholderId": "visual-1", "description": "mitochondria organelle diagram"},
    {"placeholderId": "visual-2", "description": "ATP molecule structure"}
  ]
}`

const noVisualStructure = `{
  "title": "Cell Energy",
  "summary": "Mitochondria produce most of the energy a cell uses.",
  "sections": [
    {"heading": "Mitochondria", "blocks": [
      {"type": "paragraph", "text": "The mitochondria is the powerhouse of the cell."}
    ]}
  ],
  "visualOpportunities": []
}`

const tagReply = `{"tags": ["Biology", "Cell Energy", "Mitochondria"]}`

// scriptedLLM answers structure prompts and tag prompts with fixed replies.
type scriptedLLM struct {
	name      string
	structure string
	tags      string
	err       error

	mu    sync.Mutex
	calls int
}

func (s *scriptedLLM) Name() string { return s.name }

func (s *scriptedLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return s.Generate(ctx, history[len(history)-1].Content, options...)
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if strings.Contains(prompt, "topic tags") {
		return s.tags, nil
	}
	return s.structure, nil
}

func (s *scriptedLLM) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fakeSearcher returns the candidates of the first key contained in the query.
type fakeSearcher struct {
	results map[string][]imagesearch.Candidate
	err     error

	mu    sync.Mutex
	calls int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, count int) ([]imagesearch.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	q := strings.ToLower(query)
	for key, candidates := range f.results {
		if strings.Contains(q, key) {
			return candidates, nil
		}
	}
	return nil, nil
}

func (f *fakeSearcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// panickingSearcher delegates to next except for queries containing trigger.
type panickingSearcher struct {
	trigger string
	next    imagesearch.Provider
}

func (p *panickingSearcher) Search(ctx context.Context, query string, count int) ([]imagesearch.Candidate, error) {
	if strings.Contains(strings.ToLower(query), p.trigger) {
		var index map[string]int
		index[query]++
	}
	return p.next.Search(ctx, query, count)
}

func cellSearcher() *fakeSearcher {
	return &fakeSearcher{results: map[string][]imagesearch.Candidate{
		"mitochondria": {{
			ImageURL:         "https://img.example/mito.jpg",
			Title:            "Mitochondria organelle diagram",
			AttributionURL:   "https://img.example/@jane",
			AttributionTitle: "Jane Doe",
		}},
		"atp": {{
			ImageURL: "https://img.example/atp.jpg",
			Title:    "ATP molecule structure",
		}},
	}}
}

type enqueued struct {
	name    string
	payload interface{}
	key     string
}

// recordingQueue captures enqueues without running anything.
type recordingQueue struct {
	mu   sync.Mutex
	jobs []enqueued
}

var _ queue.Queue = (*recordingQueue)(nil)

func (q *recordingQueue) Enqueue(ctx context.Context, name string, payload interface{}, opts ...queue.EnqueueOption) (uuid.UUID, error) {
	o := queue.BuildEnqueueOptions(opts...)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, enqueued{name: name, payload: payload, key: o.DedupeKey})
	return uuid.New(), nil
}

func (q *recordingQueue) Register(name string, handler queue.Handler) {}
func (q *recordingQueue) Start(ctx context.Context) error { return nil }
func (q *recordingQueue) Resubmit(ctx context.Context, id uuid.UUID) error { return nil }
func (q *recordingQueue) Close() error { return nil }

func (q *recordingQueue) all() []enqueued {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]enqueued, len(q.jobs))
	copy(out, q.jobs)
	return out
}

func (q *recordingQueue) names() []string {
	var names []string
	for _, j := range q.all() {
		names = append(names, j.name)
	}
	return names
}

func newJob(t *testing.T, name string, payload interface{}) *queue.Job {
	t.Helper()
	raw, err := queue.EncodePayload(payload)
	require.NoError(t, err)
	return &queue.Job{Id: uuid.New(), Name: name, Payload: raw, Attempt: 1, MaxAttempts: 3}
}

func newLocalStorage(t *testing.T) storage.ObjectStorage {
	t.Helper()
	objects, err := local.New(t.TempDir(), storage.NewSigner("test-secret", "http://localhost:3100/objects"))
	require.NoError(t, err)
	return objects
}

func putObject(t *testing.T, objects storage.ObjectStorage, key, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), filepath.Base(key))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	_, err := objects.Upload(context.Background(), path, key, "application/octet-stream")
	require.NoError(t, err)
}

func mustStructure(t *testing.T, raw string) *structure.Document {
	t.Helper()
	doc, err := structure.Parse(raw)
	require.NoError(t, err)
	structure.AutoCorrect(doc)
	return doc
}

func seedSource(t *testing.T, factory unitofwork.RepositoryFactory, source *entity.Source) *entity.Source {
	t.Helper()
	if source.Id == uuid.Nil {
		source.Id = uuid.New()
	}
	if source.UserId == uuid.Nil {
		source.UserId = uuid.New()
	}
	if source.Status == "" {
		source.Status = entity.ProcessingStatusProcessing
	}
	uow := factory.NewUnitOfWork(context.Background())
	require.NoError(t, uow.SourceRepository().Create(context.Background(), source))
	return source
}

func loadSource(t *testing.T, factory unitofwork.RepositoryFactory, id uuid.UUID) *entity.Source {
	t.Helper()
	uow := factory.NewUnitOfWork(context.Background())
	source, err := uow.SourceRepository().FindByIdWithVisuals(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, source)
	return source
}

func strPtr(s string) *string { return &s }

type harnessOptions struct {
	primary     llm.LLMProvider
	secondary   llm.LLMProvider
	searcher    imagesearch.Provider
	transcriber Transcriber
	extractor   TextExtractor
	maxAttempts int
}

// harness wires the whole pipeline on the in-process queue and memory repositories.
type harness struct {
	factory unitofwork.RepositoryFactory
	queue   *memqueue.Queue
	objects storage.ObjectStorage
	sources ISourceService
	tags    ITagService
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	log := logger.NewNopLogger()
	factory := memrepo.NewRepositoryFactory(memrepo.NewStore())
	if opts.maxAttempts == 0 {
		opts.maxAttempts = 2
	}
	if opts.searcher == nil {
		opts.searcher = &fakeSearcher{}
	}

	policy := queue.RetryPolicy{MaxAttempts: opts.maxAttempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	dispatcher := queue.NewDispatcher(NewJobLedgerService(factory, log), policy, log)
	q := memqueue.New(dispatcher, memqueue.Config{Concurrency: 4}, log)
	t.Cleanup(func() { q.Close() })

	objects := newLocalStorage(t)
	generator := llm.NewFallback(log, opts.primary, opts.secondary)
	tags := NewTagService(factory, log)
	registry := render.NewTemplateRegistry(nil, "")
	require.NoError(t, registry.Load())

	orchestrator := NewOrchestratorService(OrchestratorConfig{WorkDir: t.TempDir(), PromptMaxChars: 4000, MaxVisuals: 4},
		factory, q, objects, opts.transcriber, opts.extractor, generator, nil, log)
	visuals := NewVisualService(VisualConfig{SearchCount: 5, MinSimilarity: 0.15}, factory, q, opts.searcher, nil, log)
	assembler := NewAssemblerService(AssemblerConfig{MinTags: 3, MaxTags: 5, PromptMaxChars: 4000},
		factory, q, render.New(render.FormatHTML, registry), generator, tags, nil, log)

	RegisterPipeline(q, orchestrator, visuals, assembler)
	require.NoError(t, q.Start(context.Background()))

	return &harness{
		factory: factory,
		queue:   q,
		objects: objects,
		sources: NewSourceService(factory, q, log),
		tags:    tags,
	}
}

func (h *harness) waitIdle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, h.queue.WaitIdle(ctx))
}

func (h *harness) jobs(t *testing.T, name string) []*entity.Job {
	t.Helper()
	uow := h.factory.NewUnitOfWork(context.Background())
	jobs, err := uow.JobRepository().List(context.Background(), contract.JobFilter{Name: name})
	require.NoError(t, err)
	return jobs
}

func (h *harness) noteCount(t *testing.T, sourceId uuid.UUID) int64 {
	t.Helper()
	uow := h.factory.NewUnitOfWork(context.Background())
	n, err := uow.NoteRepository().CountBySource(context.Background(), sourceId)
	require.NoError(t, err)
	return n
}

func llmGenerator(providers ...llm.LLMProvider) TextGenerator {
	return llm.NewFallback(logger.NewNopLogger(), providers...)
}
