package model

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/seriesso/semantic-analysis/internal/domain"
	"github.com/seriesso/semantic-analysis/internal/model/remote"
)

// distributionTolerance is how far a returned distribution may deviate from
// summing to 1 before it is rejected as an invariant violation.
const distributionTolerance = 1e-4

// warmupProbe is the text pushed through both classifiers during warm-up to
// verify inference end to end.
const warmupProbe = "warm-up probe message"

// Runner drives the two classifier backends. It is created once per process
// and shared across requests; the loaded weights live in the inference
// runtime for the life of the process.
//
// Concurrent batch submissions are serialized through a fixed number of
// inference slots. The accelerator context is a mutually exclusive resource:
// unbounded concurrent batches risk out-of-memory on the device, while cache
// lookups and aggregation of other requests proceed untouched.
type Runner struct {
	emotion   Backend
	sentiment Backend
	slots     chan struct{}
	logger    *slog.Logger

	mu     sync.Mutex
	warmed bool
}

// NewRunner creates a Runner with the given inference slot count (minimum 1).
func NewRunner(emotion, sentiment Backend, slots int, logger *slog.Logger) *Runner {
	if slots < 1 {
		slots = 1
	}
	return &Runner{
		emotion:   emotion,
		sentiment: sentiment,
		slots:     make(chan struct{}, slots),
		logger:    logger,
	}
}

// WarmUp forces both models resident and verifies inference with a probe
// batch. It is idempotent: once a warm-up has succeeded, later calls return
// immediately. A failed warm-up stays retryable.
func (r *Runner) WarmUp(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.warmed {
		return nil
	}

	if err := r.emotion.WarmUp(ctx); err != nil {
		return domain.ErrModelUnavailable(fmt.Errorf("emotion model: %w", err))
	}
	if err := r.sentiment.WarmUp(ctx); err != nil {
		return domain.ErrModelUnavailable(fmt.Errorf("sentiment model: %w", err))
	}

	// Verify readiness with a real inference round trip.
	if _, err := r.scoreEmotions(ctx, []string{warmupProbe}); err != nil {
		return domain.ErrModelUnavailable(fmt.Errorf("emotion probe: %w", err))
	}
	if _, err := r.scoreSentiments(ctx, []string{warmupProbe}); err != nil {
		return domain.ErrModelUnavailable(fmt.Errorf("sentiment probe: %w", err))
	}

	r.warmed = true
	r.logger.Info("models warmed up and verified")
	return nil
}

// Warmed reports whether a warm-up has completed successfully.
func (r *Runner) Warmed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.warmed
}

// Health reports accelerator availability without failing: an unreachable
// runtime or a CPU-only runtime both produce a degraded report, not an
// error.
func (r *Runner) Health(ctx context.Context) domain.AcceleratorHealth {
	h, err := r.emotion.Health(ctx)
	if err != nil {
		r.logger.Warn("inference runtime health probe failed", slog.String("error", err.Error()))
		return domain.AcceleratorHealth{
			Device:           "unknown",
			BackendReachable: false,
			ModelsLoaded:     r.Warmed(),
		}
	}
	return domain.AcceleratorHealth{
		Available:        h.GPUAvailable,
		Device:           h.Device,
		Name:             h.GPUName,
		MemoryTotalMB:    h.MemoryTotalMB,
		MemoryUsedMB:     h.MemoryUsedMB,
		BackendReachable: true,
		ModelsLoaded:     r.Warmed() || h.ModelLoaded,
	}
}

// ScoreEmotion scores one batch of texts, order-preserving.
func (r *Runner) ScoreEmotion(ctx context.Context, texts []string) ([]domain.EmotionResult, error) {
	if err := r.acquireSlot(ctx); err != nil {
		return nil, err
	}
	defer r.releaseSlot()
	return r.scoreEmotions(ctx, texts)
}

// ScoreSentiment scores one batch of texts, order-preserving.
func (r *Runner) ScoreSentiment(ctx context.Context, texts []string) ([]domain.SentimentResult, error) {
	if err := r.acquireSlot(ctx); err != nil {
		return nil, err
	}
	defer r.releaseSlot()
	return r.scoreSentiments(ctx, texts)
}

func (r *Runner) scoreEmotions(ctx context.Context, texts []string) ([]domain.EmotionResult, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	raw, err := r.emotion.ScoreBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	results := make([]domain.EmotionResult, len(texts))
	for i, scores := range raw {
		dist, err := normalizeDistribution(scores)
		if err != nil {
			return nil, fmt.Errorf("emotion result %d: %w", i, err)
		}
		results[i] = domain.FinalizeEmotion(dist)
	}
	return results, nil
}

func (r *Runner) scoreSentiments(ctx context.Context, texts []string) ([]domain.SentimentResult, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	raw, err := r.sentiment.ScoreBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	results := make([]domain.SentimentResult, len(texts))
	for i, scores := range raw {
		label, confidence, err := topSentiment(scores)
		if err != nil {
			return nil, fmt.Errorf("sentiment result %d: %w", i, err)
		}
		results[i] = domain.FinalizeSentiment(label, confidence)
	}
	return results, nil
}

func (r *Runner) acquireSlot(ctx context.Context) error {
	select {
	case r.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) releaseSlot() { <-r.slots }

// normalizeDistribution validates the numeric contract and renormalizes the
// distribution to sum exactly 1. Probabilities must be finite, non-negative,
// over known labels only, and sum to 1 within tolerance before
// renormalization.
func normalizeDistribution(scores []remote.LabelScore) (map[domain.EmotionLabel]float64, error) {
	dist := make(map[domain.EmotionLabel]float64, len(scores))
	var sum float64
	for _, s := range scores {
		label := domain.EmotionLabel(s.Label)
		if !domain.ValidEmotionLabel(label) {
			return nil, fmt.Errorf("unknown emotion label %q", s.Label)
		}
		p := s.Score
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return nil, fmt.Errorf("invalid probability %v for label %q", p, s.Label)
		}
		dist[label] = p
		sum += p
	}
	if math.Abs(sum-1) > distributionTolerance {
		return nil, fmt.Errorf("distribution sums to %v, outside tolerance", sum)
	}

	// Absent labels are explicit zeros so every result carries the full
	// seven-label distribution.
	for _, label := range domain.EmotionLabels() {
		dist[label] = dist[label] / sum
	}
	return dist, nil
}

func topSentiment(scores []remote.LabelScore) (domain.SentimentLabel, float64, error) {
	if len(scores) == 0 {
		return "", 0, fmt.Errorf("empty sentiment result")
	}
	best := scores[0]
	for _, s := range scores[1:] {
		if s.Score > best.Score {
			best = s
		}
	}
	label := domain.SentimentLabel(best.Label)
	if !domain.ValidSentimentLabel(label) {
		return "", 0, fmt.Errorf("unknown sentiment label %q", best.Label)
	}
	p := best.Score
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 || p > 1 {
		return "", 0, fmt.Errorf("invalid confidence %v for label %q", p, best.Label)
	}
	return label, p, nil
}

var _ Scorer = (*Runner)(nil)
