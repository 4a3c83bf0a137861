package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"ai-notetaking-pipeline/internal/config"
	"ai-notetaking-pipeline/internal/constant"
	"ai-notetaking-pipeline/internal/controller"
	"ai-notetaking-pipeline/internal/pkg/logger"
	"ai-notetaking-pipeline/internal/repository/memory"
	"ai-notetaking-pipeline/internal/repository/unitofwork"
	"ai-notetaking-pipeline/internal/service"
	"ai-notetaking-pipeline/pkg/chunklog"
	"ai-notetaking-pipeline/pkg/database"
	"ai-notetaking-pipeline/pkg/events"
	"ai-notetaking-pipeline/pkg/imagesearch"
	"ai-notetaking-pipeline/pkg/imagesearch/unsplash"
	"ai-notetaking-pipeline/pkg/llm/factory"
	"ai-notetaking-pipeline/pkg/ocr"
	"ai-notetaking-pipeline/pkg/ocr/ocrspace"
	ocrOpenAI "ai-notetaking-pipeline/pkg/ocr/openai"
	"ai-notetaking-pipeline/pkg/queue"
	memqueue "ai-notetaking-pipeline/pkg/queue/memory"
	"ai-notetaking-pipeline/pkg/render"
	"ai-notetaking-pipeline/pkg/storage"
	"ai-notetaking-pipeline/pkg/storage/local"
	"ai-notetaking-pipeline/pkg/storage/natsobj"
	"ai-notetaking-pipeline/pkg/transcription"
	"ai-notetaking-pipeline/pkg/transcription/deepgram"
	"ai-notetaking-pipeline/pkg/transcription/ffmpeg"
	whisper "ai-notetaking-pipeline/pkg/transcription/openai"

	pktNats "ai-notetaking-pipeline/pkg/nats"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Config *config.Config
	Logger *logger.ZapLogger

	// Pipeline
	Queue   queue.Queue
	Janitor service.IJanitorService
	Sources service.ISourceService
	Jobs    service.IJobService
	Objects storage.ObjectStorage

	// Ops API
	JobController    controller.IJobController
	SourceController controller.ISourceController
	ObjectController controller.IObjectController

	// JetStream is nil when neither the queue nor storage runs on NATS.
	JetStream jetstream.JetStream

	nc    *nats.Conn
	db    *gorm.DB
	redis *redis.Client
}

func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	c := &Container{Config: cfg, Logger: sysLogger}

	// 1. Persistence
	var uowFactory unitofwork.RepositoryFactory
	if cfg.Database.Connection == "" {
		sysLogger.Warn(constant.ModuleQueue, "DB_CONNECTION_STRING empty, using in-memory repositories", nil)
		uowFactory = memory.NewRepositoryFactory(memory.NewStore())
	} else {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection, database.DefaultPoolConfig())
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		c.db = db
		uowFactory = unitofwork.NewRepositoryFactory(db)
	}

	// 2. NATS, shared by the queue, the event bus and object storage
	if cfg.Queue.Transport == "jetstream" || cfg.Storage.Backend == "nats" {
		nc, js, err := pktNats.Connect(cfg.App.NatsURL)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.nc = nc
		c.JetStream = js
	}

	// 3. Queue
	ledger := service.NewJobLedgerService(uowFactory, sysLogger)
	dispatcher := queue.NewDispatcher(ledger, queue.RetryPolicy{
		MaxAttempts: cfg.Queue.MaxAttempts,
		BaseDelay:   cfg.Queue.BaseBackoff,
		MaxDelay:    cfg.Queue.MaxBackoff,
	}, sysLogger)

	if cfg.Queue.Transport == "jetstream" {
		jq, err := pktNats.NewJobQueue(ctx, c.JetStream, dispatcher, pktNats.JobQueueConfig{
			StreamName:      cfg.Queue.StreamName,
			SubjectPrefix:   cfg.Queue.SubjectPrefix,
			AckWait:         cfg.Queue.AckWait,
			Concurrency:     cfg.Queue.Concurrency,
			DuplicateWindow: cfg.Queue.DedupeWindow,
		}, sysLogger)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("job queue: %w", err)
		}
		c.Queue = jq
	} else {
		c.Queue = memqueue.New(dispatcher, memqueue.Config{
			Concurrency: cfg.Queue.Concurrency,
			TopicPrefix: cfg.Queue.SubjectPrefix,
		}, sysLogger)
	}

	// 4. Events
	var publisher events.Publisher = events.NopPublisher{}
	if c.JetStream != nil {
		pub, err := pktNats.NewPublisher(ctx, c.JetStream, sysLogger)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("event publisher: %w", err)
		}
		publisher = pub
	}

	// 5. Object storage
	signer := storage.NewSigner(cfg.Storage.SigningSecret, cfg.Storage.PublicBaseURL)
	if cfg.Storage.Backend == "nats" {
		objects, err := natsobj.New(ctx, c.JetStream, cfg.Storage.Bucket, signer)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("object store: %w", err)
		}
		c.Objects = objects
	} else {
		objects, err := local.New(cfg.Storage.LocalRoot, signer)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("local storage: %w", err)
		}
		c.Objects = objects
	}

	// 6. Providers
	transcriber, err := c.buildTranscriber()
	if err != nil {
		c.Close()
		return nil, err
	}

	vision, err := buildVision(cfg)
	if err != nil {
		c.Close()
		return nil, err
	}
	var ocrSpace ocr.Provider
	if cfg.Keys.OcrSpace != "" {
		ocrSpace = ocrspace.NewProvider(cfg.Keys.OcrSpace, cfg.Ai.OcrSpaceBaseURL)
	}
	var extractor service.TextExtractor
	if vision != nil || ocrSpace != nil {
		extractor = ocr.NewFallback(sysLogger, vision, ocrSpace)
	} else {
		sysLogger.Warn(constant.ModuleOrchestrator, "No OCR provider configured, PDF and image sources will fail", nil)
	}

	generator, err := factory.NewFallback(
		llmSpec(cfg, cfg.Ai.LLMProvider, cfg.Ai.LLMModel),
		llmSpec(cfg, cfg.Ai.FallbackLLMProvider, cfg.Ai.FallbackLLMModel),
		sysLogger,
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("llm: %w", err)
	}

	searcher := imagesearch.NewCached(
		unsplash.NewClient(cfg.Keys.Unsplash, ""),
		cfg.Visuals.CacheTTL,
		cfg.Visuals.RatePerSecond,
		cfg.Visuals.Burst,
	)

	registry := render.NewTemplateRegistry(nil, "")
	if err := registry.Load(); err != nil {
		c.Close()
		return nil, fmt.Errorf("note templates: %w", err)
	}
	renderer := render.New(cfg.Assembly.ContentFormat, registry)

	// 7. Services
	tagService := service.NewTagService(uowFactory, sysLogger)
	orchestrator := service.NewOrchestratorService(
		service.OrchestratorConfig{
			WorkDir:        cfg.App.WorkDir,
			PromptMaxChars: cfg.Ai.PromptMaxChars,
			Temperature:    cfg.Ai.StructureTemperature,
			MaxTokens:      cfg.Ai.StructureMaxTokens,
		},
		uowFactory, c.Queue, c.Objects, transcriber, extractor, generator, publisher, sysLogger,
	)
	visuals := service.NewVisualService(
		service.VisualConfig{
			SearchCount:   cfg.Visuals.SearchCount,
			MinSimilarity: cfg.Visuals.MinSimilarity,
		},
		uowFactory, c.Queue, searcher, publisher, sysLogger,
	)
	assembler := service.NewAssemblerService(
		service.AssemblerConfig{
			MinTags:        cfg.Assembly.MinTags,
			MaxTags:        cfg.Assembly.MaxTags,
			PromptMaxChars: cfg.Ai.PromptMaxChars,
		},
		uowFactory, c.Queue, renderer, generator, tagService, publisher, sysLogger,
	)
	service.RegisterPipeline(c.Queue, orchestrator, visuals, assembler)

	c.Janitor = service.NewJanitorService(uowFactory, cfg.Queue.Retention, cfg.Queue.JanitorSpec, sysLogger)
	c.Sources = service.NewSourceService(uowFactory, c.Queue, sysLogger)
	c.Jobs = service.NewJobService(uowFactory, c.Queue, sysLogger)

	// 8. Controllers
	c.JobController = controller.NewJobController(c.Jobs)
	c.SourceController = controller.NewSourceController(c.Sources, c.Jobs)
	c.ObjectController = controller.NewObjectController(c.Objects, signer)

	return c, nil
}

// buildTranscriber returns nil when no speech provider is configured; audio
// sources then fail permanently instead of retrying.
func (c *Container) buildTranscriber() (service.Transcriber, error) {
	cfg := c.Config

	var primary, secondary transcription.Provider
	if cfg.Keys.OpenAI != "" {
		p, err := whisper.NewWhisperProvider(cfg.Keys.OpenAI, cfg.Ai.TranscriptionModel)
		if err != nil {
			return nil, fmt.Errorf("whisper: %w", err)
		}
		primary = p
	}
	if cfg.Keys.Deepgram != "" {
		dg := deepgram.NewProvider(cfg.Keys.Deepgram, "", cfg.Ai.DeepgramModel)
		if primary == nil {
			primary = dg
		} else {
			secondary = dg
		}
	}
	if primary == nil {
		c.Logger.Warn(constant.ModuleTranscription, "no transcription provider configured", nil)
		return nil, nil
	}

	var chunks chunklog.Log = chunklog.NewMemoryLog()
	if cfg.Redis.UseChunkLog && cfg.Redis.URL != "" {
		c.redis = chunklog.NewRedisClient(cfg.Redis.URL)
		chunks = chunklog.NewRedisLog(c.redis, cfg.Redis.ChunkLogTTL)
	}

	engineCfg := transcription.Config{
		DirectSizeThreshold:  cfg.Transcription.DirectSizeThreshold,
		TargetChunkBytes:     cfg.Transcription.TargetChunkBytes,
		MinChunkSeconds:      cfg.Transcription.MinChunkSeconds,
		MaxChunkSeconds:      cfg.Transcription.MaxChunkSeconds,
		Concurrency:          cfg.Transcription.Concurrency,
		SecondaryConcurrency: cfg.Transcription.SecondaryConcurrency,
		MaxAttempts:          cfg.Transcription.MaxAttempts,
		RetryDelay:           cfg.Transcription.RetryDelay,
		WorkDir:              cfg.App.WorkDir,
	}
	splitter := ffmpeg.NewSplitter(cfg.Transcription.FFmpegBinary, cfg.Transcription.FFprobeBinary)
	chunkLogger := logger.NewIsolatedLogger(transcriptionLogPath(cfg.App.LogFilePath))
	return transcription.NewEngine(engineCfg, primary, secondary, splitter, chunks, chunkLogger), nil
}

// transcriptionLogPath puts chunk chatter next to the main log.
func transcriptionLogPath(mainLog string) string {
	return filepath.Join(filepath.Dir(mainLog), "transcription.log")
}

func buildVision(cfg *config.Config) (ocr.Provider, error) {
	if cfg.Keys.OpenAI == "" {
		return nil, nil
	}
	p, err := ocrOpenAI.NewVisionProvider(cfg.Keys.OpenAI, cfg.Ai.VisionModel)
	if err != nil {
		return nil, fmt.Errorf("vision ocr: %w", err)
	}
	return p, nil
}

func llmSpec(cfg *config.Config, provider, model string) factory.Spec {
	spec := factory.Spec{Provider: provider, Model: model}
	switch provider {
	case "openai":
		spec.APIKey = cfg.Keys.OpenAI
	case "ollama":
		spec.BaseURL = cfg.Ai.OllamaBaseURL
	case "huggingface":
		spec.APIKey = cfg.Keys.HuggingFace
		spec.BaseURL = cfg.Ai.HuggingFaceBaseURL
	}
	return spec
}

// Close releases everything NewContainer opened, in reverse order.
func (c *Container) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if c.Queue != nil {
		keep(c.Queue.Close())
	}
	if c.redis != nil {
		keep(c.redis.Close())
	}
	if c.nc != nil {
		drained := make(chan struct{})
		go func() {
			c.nc.Drain()
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(5 * time.Second):
			c.nc.Close()
		}
	}
	if c.db != nil {
		if sqlDB, err := c.db.DB(); err == nil {
			keep(sqlDB.Close())
		}
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
	return firstErr
}
