// Package fallback calls an ordered list of interchangeable providers and
// returns the first usable result. A provider that errors, returns an empty
// value or fails validation yields a null result and the next one is tried.
// Results are never blended across providers.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ai-notetaking-pipeline/internal/pkg/logger"
	"ai-notetaking-pipeline/pkg/metrics"
	"ai-notetaking-pipeline/pkg/providererr"

	gobreaker "github.com/sony/gobreaker/v2"
)

var (
	ErrAllFailed    = errors.New("all providers failed")
	ErrNoCandidates = errors.New("no providers configured")
	ErrEmptyResult  = errors.New("provider returned an empty result")
)

type Candidate[T any] struct {
	Name string
	Call func(ctx context.Context) (T, error)
}

// Validator rejects content a provider returned. A rejection counts as a null result.
type Validator[T any] func(T) error

type BreakerConfig struct {
	FailureThreshold uint32
	Timeout          time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, Timeout: time.Minute}
}

type Chain[T any] struct {
	role    string
	isEmpty func(T) bool
	cfg     BreakerConfig
	logger  logger.ILogger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[T]
}

// NewChain builds a chain for one provider role (llm, ocr, transcription...).
// isEmpty may be nil when every successful value is usable.
func NewChain[T any](role string, isEmpty func(T) bool, cfg BreakerConfig, log logger.ILogger) *Chain[T] {
	if cfg.FailureThreshold == 0 {
		cfg = DefaultBreakerConfig()
	}
	return &Chain[T]{
		role:     role,
		isEmpty:  isEmpty,
		cfg:      cfg,
		logger:   log,
		breakers: map[string]*gobreaker.CircuitBreaker[T]{},
	}
}

func (c *Chain[T]) breaker(name string) *gobreaker.CircuitBreaker[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.breakers[name]; ok {
		return cb
	}
	threshold := c.cfg.FailureThreshold
	cb := gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        c.role + "-" + name,
		MaxRequests: 1,
		Timeout:     c.cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Only transport-level trouble should trip the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || !providererr.IsRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("FALLBACK", "Circuit breaker state change", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})
	c.breakers[name] = cb
	return cb
}

// Run tries candidates in order and returns the first valid value with the
// name of the provider that produced it.
func (c *Chain[T]) Run(ctx context.Context, validate Validator[T], candidates ...Candidate[T]) (T, string, error) {
	var zero T
	if len(candidates) == 0 {
		return zero, "", ErrNoCandidates
	}

	var causes []error
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}

		call := cand.Call
		value, err := c.breaker(cand.Name).Execute(func() (T, error) {
			return call(ctx)
		})
		if err == nil && c.isEmpty != nil && c.isEmpty(value) {
			err = providererr.NoResult(cand.Name, ErrEmptyResult)
		}
		if err == nil && validate != nil {
			if verr := validate(value); verr != nil {
				err = providererr.Schema(cand.Name, verr)
			}
		}

		if err == nil {
			metrics.ProviderCalls.WithLabelValues(c.role, cand.Name, "ok").Inc()
			return value, cand.Name, nil
		}

		kind := providererr.KindOf(err)
		metrics.ProviderCalls.WithLabelValues(c.role, cand.Name, kind.String()).Inc()
		c.logger.Warn("FALLBACK", "Provider returned no usable result", map[string]interface{}{
			"role":     c.role,
			"provider": cand.Name,
			"kind":     kind.String(),
			"error":    err.Error(),
		})
		causes = append(causes, fmt.Errorf("%s: %w", cand.Name, err))
	}

	return zero, "", errors.Join(append([]error{ErrAllFailed}, causes...)...)
}

// State reports breaker states for diagnostics.
func (c *Chain[T]) State() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.breakers))
	for name, cb := range c.breakers {
		out[name] = cb.State().String()
	}
	return out
}
