package transcription

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkSecondsClamp(t *testing.T) {
	// 40 minutes at 40 MiB wants 1200s chunks for a 20 MiB target.
	assert.Equal(t, 600.0, ChunkSeconds(40<<20, 2400, 20<<20, 10, 600))
	// Very high bitrate asks for less than the minimum.
	assert.Equal(t, 10.0, ChunkSeconds(2<<30, 60, 20<<20, 10, 600))
	assert.InDelta(t, 300.0, ChunkSeconds(80<<20, 1200, 20<<20, 10, 600), 0.001)
}

func TestPlanSegmentsFortyMinuteAudio(t *testing.T) {
	duration := 2400.0
	seconds := ChunkSeconds(60<<20, duration, 20<<20, 10, 600)
	segs := PlanSegments(duration, seconds, 10, 600)

	require.NotEmpty(t, segs)
	covered := 0.0
	for i, s := range segs {
		assert.Equal(t, i, s.Index)
		assert.GreaterOrEqual(t, s.Duration, 10.0)
		assert.LessOrEqual(t, s.Duration, 600.0)
		if i > 0 {
			assert.InDelta(t, segs[i-1].End(), s.Start, 1e-9)
		}
		covered += s.Duration
	}
	assert.InDelta(t, duration, covered, 1e-6)
}

func TestPlanSegmentsFoldsShortTail(t *testing.T) {
	segs := PlanSegments(605, 300, 10, 600)
	require.Len(t, segs, 2)
	assert.InDelta(t, 300, segs[0].Duration, 1e-9)
	assert.InDelta(t, 305, segs[1].Duration, 1e-9)
}

func TestPlanSegmentsRebalancesWhenFoldTooLong(t *testing.T) {
	segs := PlanSegments(1204, 600, 10, 600)
	require.Len(t, segs, 3)
	assert.InDelta(t, 600, segs[0].Duration, 1e-9)
	assert.InDelta(t, 302, segs[1].Duration, 1e-9)
	assert.InDelta(t, 302, segs[2].Duration, 1e-9)
	assert.InDelta(t, 902, segs[2].Start, 1e-9)
}

func TestPlanSegmentsShortMedia(t *testing.T) {
	segs := PlanSegments(45, 600, 10, 600)
	require.Len(t, segs, 1)
	assert.Equal(t, 45.0, segs[0].Duration)
	assert.Nil(t, PlanSegments(0, 600, 10, 600))
}
