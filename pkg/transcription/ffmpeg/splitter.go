// Package ffmpeg probes and cuts media with the ffmpeg/ffprobe binaries.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"ai-notetaking-pipeline/pkg/transcription"

	"github.com/goccy/go-json"
)

type Splitter struct {
	FFmpeg  string
	FFprobe string
}

var _ transcription.Splitter = (*Splitter)(nil)

func NewSplitter(ffmpegBinary, ffprobeBinary string) *Splitter {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(ffprobeBinary) == "" {
		ffprobeBinary = "ffprobe"
	}
	return &Splitter{FFmpeg: ffmpegBinary, FFprobe: ffprobeBinary}
}

type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration reads the container duration in seconds.
func (s *Splitter) Duration(ctx context.Context, path string) (float64, error) {
	if strings.TrimSpace(path) == "" {
		return 0, errors.New("ffprobe: empty path")
	}
	cmd := exec.CommandContext(ctx, s.FFprobe, "-v", "error", "-hide_banner", "-show_format", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w: %s", err, stderrOf(err))
	}
	return parseDuration(output)
}

func parseDuration(output []byte) (float64, error) {
	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return 0, fmt.Errorf("ffprobe parse: %w", err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("ffprobe: no usable duration %q", probe.Format.Duration)
	}
	return d, nil
}

// Extract stream-copies one segment to outPath. A failed cut leaves no file.
func (s *Splitter) Extract(ctx context.Context, path string, seg transcription.Segment, outPath string) error {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", formatSeconds(seg.Start),
		"-i", path,
		"-t", formatSeconds(seg.Duration),
		"-vn", "-c", "copy",
		outPath,
	}
	cmd := exec.CommandContext(ctx, s.FFmpeg, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		_ = os.Remove(outPath)
		return fmt.Errorf("ffmpeg segment %d: %w: %s", seg.Index, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func stderrOf(err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return strings.TrimSpace(string(exitErr.Stderr))
	}
	return ""
}
