// Package model implements the Model Runner: it owns access to the loaded
// classifier weights, serializes batch submissions onto the accelerator, and
// enforces the numeric contract on everything the backends return.
package model

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/seriesso/semantic-analysis/internal/domain"
	"github.com/seriesso/semantic-analysis/internal/model/remote"
)

// Backend is one classifier endpoint of the inference runtime. remote.Client
// implements it; tests substitute in-memory fakes.
type Backend interface {
	ScoreBatch(ctx context.Context, texts []string) ([][]remote.LabelScore, error)
	WarmUp(ctx context.Context) error
	Health(ctx context.Context) (remote.RuntimeHealth, error)
}

// BreakerConfig configures the circuit breaker around a backend.
type BreakerConfig struct {
	MaxFailures uint32
	Timeout     time.Duration
	Interval    time.Duration
}

const (
	defaultBreakerMaxFailures uint32 = 5
	defaultBreakerTimeout            = 30 * time.Second
	defaultBreakerInterval           = 60 * time.Second
)

// BreakerBackend wraps a Backend with a circuit breaker. When the runtime
// fails repeatedly, the circuit opens and scoring fails fast instead of
// queueing doomed batches behind a dead accelerator. Warm-up and health
// bypass the breaker: they are the probes that resolve the outage.
type BreakerBackend struct {
	inner   Backend
	breaker *gobreaker.CircuitBreaker[[][]remote.LabelScore]
	logger  *slog.Logger
}

// NewBreakerBackend wraps inner. Zero-valued cfg fields fall back to
// defaults.
func NewBreakerBackend(name string, inner Backend, cfg BreakerConfig, logger *slog.Logger) *BreakerBackend {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	cb := gobreaker.NewCircuitBreaker[[][]remote.LabelScore](gobreaker.Settings{
		Name:        "model:" + name,
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &BreakerBackend{inner: inner, breaker: cb, logger: logger}
}

func (b *BreakerBackend) ScoreBatch(ctx context.Context, texts []string) ([][]remote.LabelScore, error) {
	results, err := b.breaker.Execute(func() ([][]remote.LabelScore, error) {
		return b.inner.ScoreBatch(ctx, texts)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("inference backend circuit open: %w", err)
		}
		return nil, err
	}
	return results, nil
}

func (b *BreakerBackend) WarmUp(ctx context.Context) error {
	return b.inner.WarmUp(ctx)
}

func (b *BreakerBackend) Health(ctx context.Context) (remote.RuntimeHealth, error) {
	return b.inner.Health(ctx)
}

// State returns the breaker state for monitoring.
func (b *BreakerBackend) State() gobreaker.State {
	return b.breaker.State()
}

var _ Backend = (*BreakerBackend)(nil)

// Scorer is the capability set the pipeline depends on. The Runner is the
// production implementation; tests swap in mocks without touching pipeline
// logic.
type Scorer interface {
	ScoreEmotion(ctx context.Context, texts []string) ([]domain.EmotionResult, error)
	ScoreSentiment(ctx context.Context, texts []string) ([]domain.SentimentResult, error)
	WarmUp(ctx context.Context) error
	Health(ctx context.Context) domain.AcceleratorHealth
}
