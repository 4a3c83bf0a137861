package transcription

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ai-notetaking-pipeline/internal/pkg/logger"
	"ai-notetaking-pipeline/pkg/chunklog"
	"ai-notetaking-pipeline/pkg/metrics"
	"ai-notetaking-pipeline/pkg/providererr"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	DirectSizeThreshold  int64
	TargetChunkBytes     int64
	MinChunkSeconds      float64
	MaxChunkSeconds      float64
	Concurrency          int
	SecondaryConcurrency int
	MaxAttempts          int
	RetryDelay           time.Duration
	WorkDir              string
}

func DefaultConfig() Config {
	return Config{
		DirectSizeThreshold:  25 * 1024 * 1024,
		TargetChunkBytes:     20 * 1024 * 1024,
		MinChunkSeconds:      10,
		MaxChunkSeconds:      600,
		Concurrency:          12,
		SecondaryConcurrency: 5,
		MaxAttempts:          3,
		RetryDelay:           2 * time.Second,
		WorkDir:              os.TempDir(),
	}
}

// Input points at a local copy of the media to transcribe.
type Input struct {
	Path     string
	Filename string
	MimeType string
	Language string
}

type Engine struct {
	cfg       Config
	primary   Provider
	secondary Provider
	splitter  Splitter
	chunks    chunklog.Log
	logger    logger.ILogger
}

// NewEngine wires the engine. secondary may be nil.
func NewEngine(cfg Config, primary, secondary Provider, splitter Splitter, chunks chunklog.Log, log logger.ILogger) *Engine {
	def := DefaultConfig()
	if cfg.DirectSizeThreshold <= 0 {
		cfg.DirectSizeThreshold = def.DirectSizeThreshold
	}
	if cfg.TargetChunkBytes <= 0 {
		cfg.TargetChunkBytes = def.TargetChunkBytes
	}
	if cfg.MinChunkSeconds <= 0 {
		cfg.MinChunkSeconds = def.MinChunkSeconds
	}
	if cfg.MaxChunkSeconds < cfg.MinChunkSeconds {
		cfg.MaxChunkSeconds = def.MaxChunkSeconds
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.SecondaryConcurrency <= 0 {
		cfg.SecondaryConcurrency = def.SecondaryConcurrency
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = def.WorkDir
	}
	return &Engine{
		cfg:       cfg,
		primary:   primary,
		secondary: secondary,
		splitter:  splitter,
		chunks:    chunks,
		logger:    log,
	}
}

type chunk struct {
	Segment
	path string
}

// Transcribe runs the primary pass over every chunk, a single-attempt
// secondary pass over the failures, then merges the run log. runID scopes the
// chunk log and must be unique per attempt.
func (e *Engine) Transcribe(ctx context.Context, runID string, in Input) (*Merged, error) {
	info, err := os.Stat(in.Path)
	if err != nil {
		return nil, fmt.Errorf("stat media: %w", err)
	}

	if err := e.chunks.Drop(ctx, runID); err != nil {
		return nil, fmt.Errorf("reset chunk log: %w", err)
	}

	chunks, cleanup, err := e.prepare(ctx, in, info.Size())
	if err != nil {
		return nil, err
	}
	defer cleanup()

	e.logger.Info("TRANSCRIPTION", "Starting primary pass", map[string]interface{}{
		"run":    runID,
		"chunks": len(chunks),
		"size":   info.Size(),
	})

	if err := e.runPass(ctx, runID, chunklog.PassPrimary, e.primary, chunks, e.cfg.Concurrency, e.cfg.MaxAttempts, in); err != nil {
		return nil, err
	}

	entries, err := e.chunks.Entries(ctx, runID)
	if err != nil {
		return nil, err
	}

	failed := failedChunks(chunks, entries)
	if len(failed) > 0 && e.secondary != nil {
		e.logger.Warn("TRANSCRIPTION", "Retrying failed chunks on secondary provider", map[string]interface{}{
			"run":      runID,
			"failed":   len(failed),
			"provider": e.secondary.Name(),
		})
		if err := e.runPass(ctx, runID, chunklog.PassSecondary, e.secondary, failed, e.cfg.SecondaryConcurrency, 1, in); err != nil {
			return nil, err
		}
		if entries, err = e.chunks.Entries(ctx, runID); err != nil {
			return nil, err
		}
	}

	segments := make([]Segment, len(chunks))
	for i, c := range chunks {
		segments[i] = c.Segment
	}
	merged := Merge(segments, entries)

	if len(merged.MissingIndices) > 0 {
		e.logger.Warn("TRANSCRIPTION", "Chunks missing from transcript", map[string]interface{}{
			"run":     runID,
			"missing": merged.MissingIndices,
		})
	}
	if len(merged.Words) == 0 {
		if quotaErr := firstQuotaError(entries); quotaErr != "" {
			return nil, providererr.Quota(e.primary.Name(), errors.New(quotaErr))
		}
		return nil, ErrNoTranscript
	}
	if merged.Language == "" {
		merged.Language = in.Language
	}
	return &merged, nil
}

// prepare returns the chunk files for a run. Small files are sent whole.
func (e *Engine) prepare(ctx context.Context, in Input, size int64) ([]chunk, func(), error) {
	noop := func() {}
	if size <= e.cfg.DirectSizeThreshold {
		return []chunk{{Segment: Segment{Index: 0}, path: in.Path}}, noop, nil
	}

	duration, err := e.splitter.Duration(ctx, in.Path)
	if err != nil {
		return nil, noop, fmt.Errorf("probe duration: %w", err)
	}
	seconds := ChunkSeconds(size, duration, e.cfg.TargetChunkBytes, e.cfg.MinChunkSeconds, e.cfg.MaxChunkSeconds)
	segments := PlanSegments(duration, seconds, e.cfg.MinChunkSeconds, e.cfg.MaxChunkSeconds)

	dir, err := os.MkdirTemp(e.cfg.WorkDir, "chunks-*")
	if err != nil {
		return nil, noop, fmt.Errorf("create chunk dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("TRANSCRIPTION", "Failed to remove chunk dir", map[string]interface{}{"dir": dir, "error": err.Error()})
		}
	}

	ext := strings.ToLower(filepath.Ext(in.Filename))
	if ext == "" {
		ext = ".mp3"
	}

	chunks := make([]chunk, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, seg := range segments {
		out := filepath.Join(dir, fmt.Sprintf("chunk_%04d%s", seg.Index, ext))
		chunks[i] = chunk{Segment: seg, path: out}
		g.Go(func() error {
			return e.splitter.Extract(gctx, in.Path, seg, out)
		})
	}
	if err := g.Wait(); err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("split media: %w", err)
	}
	return chunks, cleanup, nil
}

// runPass transcribes chunks with bounded concurrency. A chunk failure is
// recorded in the log and never aborts its siblings.
func (e *Engine) runPass(ctx context.Context, runID, pass string, provider Provider, chunks []chunk, limit, attempts int, in Input) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, c := range chunks {
		g.Go(func() error {
			entry := e.transcribeChunk(gctx, provider, pass, c, attempts, in)
			metrics.TranscriptionChunks.WithLabelValues(pass, resultLabel(entry)).Inc()
			return e.chunks.Append(gctx, runID, entry)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%s pass: %w", pass, err)
	}
	return ctx.Err()
}

func (e *Engine) transcribeChunk(ctx context.Context, provider Provider, pass string, c chunk, attempts int, in Input) chunklog.Entry {
	entry := chunklog.Entry{Index: c.Index, Pass: pass, Provider: provider.Name(), Start: c.Start}

	data, err := os.ReadFile(c.path)
	if err != nil {
		entry.Error = fmt.Sprintf("read chunk: %v", err)
		return entry
	}
	media := Media{Bytes: data, Filename: filepath.Base(c.path), MimeType: in.MimeType}

	var result *Result
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(e.cfg.RetryDelay), uint64(attempts-1)), ctx)
	err = backoff.Retry(func() error {
		entry.Attempts++
		res, err := provider.Transcribe(ctx, media, in.Language)
		if err != nil {
			if !providererr.IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = res
		return nil
	}, policy)

	if err != nil {
		entry.Error = err.Error()
		e.logger.Warn("TRANSCRIPTION", "Chunk failed", map[string]interface{}{
			"pass":     pass,
			"index":    c.Index,
			"attempts": entry.Attempts,
			"error":    err.Error(),
		})
		return entry
	}

	entry.OK = true
	entry.Text = result.Text
	entry.Language = result.Language
	entry.Words = make([]chunklog.Word, len(result.Words))
	for i, w := range result.Words {
		entry.Words[i] = chunklog.Word{Word: w.Word, Start: w.Start, End: w.End}
	}
	return entry
}

func failedChunks(chunks []chunk, entries []chunklog.Entry) []chunk {
	ok := map[int]bool{}
	for _, e := range entries {
		if e.OK && e.Pass == chunklog.PassPrimary {
			ok[e.Index] = true
		}
	}
	var failed []chunk
	for _, c := range chunks {
		if !ok[c.Index] {
			failed = append(failed, c)
		}
	}
	return failed
}

func firstQuotaError(entries []chunklog.Entry) string {
	for _, e := range entries {
		if !e.OK && providererr.MatchesQuota(e.Error) {
			return e.Error
		}
	}
	return ""
}

func resultLabel(e chunklog.Entry) string {
	if e.OK {
		return "ok"
	}
	return "failed"
}
