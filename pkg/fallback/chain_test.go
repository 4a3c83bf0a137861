package fallback

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-notetaking-pipeline/internal/pkg/logger"
	"ai-notetaking-pipeline/pkg/providererr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(name, value string, err error, calls *[]string) Candidate[string] {
	return Candidate[string]{
		Name: name,
		Call: func(ctx context.Context) (string, error) {
			*calls = append(*calls, name)
			return value, err
		},
	}
}

func newChain() *Chain[string] {
	return NewChain[string]("llm", func(s string) bool { return s == "" }, DefaultBreakerConfig(), logger.NewNopLogger())
}

func TestPrimaryWins(t *testing.T) {
	var calls []string
	value, name, err := newChain().Run(context.Background(), nil,
		candidate("primary", "a", nil, &calls),
		candidate("secondary", "b", nil, &calls),
	)
	require.NoError(t, err)
	assert.Equal(t, "a", value)
	assert.Equal(t, "primary", name)
	assert.Equal(t, []string{"primary"}, calls)
}

func TestNullPrimaryFallsThroughVerbatim(t *testing.T) {
	cases := map[string]Candidate[string]{
		"error": {Name: "primary", Call: func(ctx context.Context) (string, error) { return "", errors.New("503") }},
		"empty": {Name: "primary", Call: func(ctx context.Context) (string, error) { return "", nil }},
	}
	for label, primary := range cases {
		t.Run(label, func(t *testing.T) {
			var calls []string
			value, name, err := newChain().Run(context.Background(), nil, primary,
				candidate("secondary", `{"title":"x"}`, nil, &calls))
			require.NoError(t, err)
			assert.Equal(t, `{"title":"x"}`, value)
			assert.Equal(t, "secondary", name)
		})
	}
}

func TestValidationFailureIsNullResult(t *testing.T) {
	var calls []string
	validate := func(s string) error {
		if s != "ok" {
			return errors.New("schema mismatch")
		}
		return nil
	}
	value, name, err := newChain().Run(context.Background(), validate,
		candidate("primary", "garbage", nil, &calls),
		candidate("secondary", "ok", nil, &calls),
	)
	require.NoError(t, err)
	assert.Equal(t, "ok", value)
	assert.Equal(t, "secondary", name)
	// The invalid primary is not asked again before the secondary runs.
	assert.Equal(t, []string{"primary", "secondary"}, calls)
}

func TestAllFailedJoinsCauses(t *testing.T) {
	var calls []string
	_, _, err := newChain().Run(context.Background(), nil,
		candidate("primary", "", providererr.Quota("primary", errors.New("insufficient_quota")), &calls),
		candidate("secondary", "", errors.New("timeout"), &calls),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllFailed)
	assert.True(t, providererr.IsQuota(err))
	assert.Contains(t, err.Error(), "timeout")
}

func TestBreakerOpensAfterRepeatedTransientFailures(t *testing.T) {
	chain := NewChain[string]("ocr", nil, BreakerConfig{FailureThreshold: 2, Timeout: time.Minute}, logger.NewNopLogger())
	var calls []string
	failing := candidate("flaky", "", errors.New("connection refused"), &calls)
	backup := candidate("backup", "text", nil, &calls)

	for i := 0; i < 3; i++ {
		_, name, err := chain.Run(context.Background(), nil, failing, backup)
		require.NoError(t, err)
		assert.Equal(t, "backup", name)
	}
	// Third run skips the open breaker without calling the provider.
	assert.Equal(t, []string{"flaky", "backup", "flaky", "backup", "backup"}, calls)
	assert.Equal(t, "open", chain.State()["flaky"])
}

func TestNoCandidates(t *testing.T) {
	_, _, err := newChain().Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoCandidates)
}
