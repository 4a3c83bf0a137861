package transcription

import "math"

// epsilon absorbs float drift when stepping through the timeline.
const epsilon = 1e-6

// Segment is a contiguous slice of the source, in seconds.
type Segment struct {
	Index    int
	Start    float64
	Duration float64
}

func (s Segment) End() float64 {
	return s.Start + s.Duration
}

// ChunkSeconds derives a chunk length that keeps each chunk near targetBytes,
// clamped to [minSeconds, maxSeconds].
func ChunkSeconds(sizeBytes int64, durationSeconds float64, targetBytes int64, minSeconds, maxSeconds float64) float64 {
	if sizeBytes <= 0 || durationSeconds <= 0 {
		return maxSeconds
	}
	bytesPerSecond := float64(sizeBytes) / durationSeconds
	seconds := float64(targetBytes) / bytesPerSecond
	return math.Max(minSeconds, math.Min(maxSeconds, seconds))
}

// PlanSegments cuts [0, duration) into ordered, non-overlapping segments of
// chunkSeconds. A trailing remainder shorter than minSeconds is folded into the
// previous segment, or split evenly with it when folding would exceed maxSeconds.
func PlanSegments(duration, chunkSeconds, minSeconds, maxSeconds float64) []Segment {
	if duration <= 0 {
		return nil
	}
	if chunkSeconds <= 0 || chunkSeconds >= duration {
		return []Segment{{Index: 0, Start: 0, Duration: duration}}
	}

	var segs []Segment
	for start := 0.0; start < duration; start += chunkSeconds {
		length := math.Min(chunkSeconds, duration-start)
		segs = append(segs, Segment{Index: len(segs), Start: start, Duration: length})
	}

	n := len(segs)
	if n < 2 || segs[n-1].Duration >= minSeconds-epsilon {
		return segs
	}

	prev, tail := segs[n-2], segs[n-1]
	combined := prev.Duration + tail.Duration
	if combined <= maxSeconds+epsilon {
		segs[n-2].Duration = combined
		return segs[:n-1]
	}
	half := combined / 2
	segs[n-2].Duration = half
	segs[n-1].Start = prev.Start + half
	segs[n-1].Duration = combined - half
	return segs
}
