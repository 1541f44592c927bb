package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/seriesso/semantic-analysis/internal/analysis"
	"github.com/seriesso/semantic-analysis/internal/cache"
	"github.com/seriesso/semantic-analysis/internal/domain"
	"github.com/seriesso/semantic-analysis/internal/model"
)

// Analyzer is the orchestrator: it validates a conversation, resolves cached
// per-message results, schedules batched inference for the misses, and
// aggregates. For a fixed model version and input, Analyze is deterministic
// down to the bit.
type Analyzer struct {
	scorer   model.Scorer
	cache    *cache.ResultCache
	weights  analysis.QualityWeights
	maxBatch int
	timeout  time.Duration
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Options bound the per-request work.
type Options struct {
	MaxBatchSize   int
	RequestTimeout time.Duration
}

// NewAnalyzer wires the orchestrator. cache must not be nil; pass a
// ResultCache over a NoopStore to disable caching.
func NewAnalyzer(scorer model.Scorer, rc *cache.ResultCache, weights analysis.QualityWeights, opts Options, logger *slog.Logger) *Analyzer {
	maxBatch := opts.MaxBatchSize
	if maxBatch < 1 {
		maxBatch = 16
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Analyzer{
		scorer:   scorer,
		cache:    rc,
		weights:  weights,
		maxBatch: maxBatch,
		timeout:  timeout,
		logger:   logger,
		tracer:   otel.Tracer("semantic-analysis/pipeline"),
	}
}

// Analyze runs the full pipeline for one conversation. On timeout, in-flight
// batch calls are abandoned to the context; their cache write-backs remain
// valid and are kept.
func (a *Analyzer) Analyze(ctx context.Context, req domain.ConversationRequest) (*domain.ConversationAnalysis, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ctx, root := a.tracer.Start(ctx, "analyze", trace.WithAttributes(
		attribute.Int64("conversation_id", req.ConversationID),
		attribute.Int("messages", len(req.Messages)),
	))
	defer root.End()

	// Models load lazily on first use; WarmUp is idempotent after success.
	if err := a.scorer.WarmUp(ctx); err != nil {
		return nil, a.mapErr(ctx, domain.StageReceived, err)
	}

	texts := make([]string, len(req.Messages))
	indices := make([]int, len(req.Messages))
	for i, m := range req.Messages {
		texts[i] = m.Content
		indices[i] = i
	}

	_, lookupSpan := a.tracer.Start(ctx, "cache_lookup")
	emoCached, emoMissing := a.cache.LookupEmotions(ctx, texts)
	senCached, senMissing := a.cache.LookupSentiments(ctx, texts)
	lookupSpan.SetAttributes(
		attribute.Int("emotion_misses", len(emoMissing)),
		attribute.Int("sentiment_misses", len(senMissing)),
	)
	lookupSpan.End()
	if err := ctx.Err(); err != nil {
		return nil, a.mapErr(ctx, domain.StageCacheLookup, err)
	}

	emotions, sentiments, err := a.scoreMisses(ctx, texts, emoCached, emoMissing, senCached, senMissing)
	if err != nil {
		return nil, a.mapErr(ctx, domain.StageInference, err)
	}

	messages := make([]domain.MessageAnalysis, len(req.Messages))
	for i := range req.Messages {
		messages[i] = domain.MessageAnalysis{
			Index:     i,
			Emotion:   emotions[i],
			Sentiment: sentiments[i],
		}
	}

	_, aggSpan := a.tracer.Start(ctx, "aggregation")
	result, err := analysis.Aggregate(messages, a.weights)
	aggSpan.End()
	if err != nil {
		return nil, a.mapErr(ctx, domain.StageAggregation, err)
	}

	a.logger.Debug("conversation analyzed",
		slog.Int64("conversation_id", req.ConversationID),
		slog.Int("messages", len(req.Messages)),
		slog.Int("emotion_cache_misses", len(emoMissing)),
		slog.Int("sentiment_cache_misses", len(senMissing)),
	)
	return result, nil
}

// scoreMisses runs the emotion and sentiment miss batches concurrently and
// merges them with the cached results, restoring message order. Freshly
// computed results are written back detached from the request.
func (a *Analyzer) scoreMisses(
	ctx context.Context,
	texts []string,
	emoCached []*domain.EmotionResult, emoMissing []int,
	senCached []*domain.SentimentResult, senMissing []int,
) ([]domain.EmotionResult, []domain.SentimentResult, error) {
	ctx, span := a.tracer.Start(ctx, "batched_inference")
	defer span.End()

	missTexts := func(missing []int) []string {
		out := make([]string, len(missing))
		for i, idx := range missing {
			out[i] = texts[idx]
		}
		return out
	}

	var (
		emoScored []domain.EmotionResult
		senScored []domain.SentimentResult
		emoErr    error
		senErr    error
		done      = make(chan struct{}, 2)
	)

	go func() {
		defer func() { done <- struct{}{} }()
		if len(emoMissing) == 0 {
			return
		}
		emoScored, emoErr = scoreBatched(ctx, missTexts(emoMissing), emoMissing, a.maxBatch, a.scorer.ScoreEmotion)
	}()
	go func() {
		defer func() { done <- struct{}{} }()
		if len(senMissing) == 0 {
			return
		}
		senScored, senErr = scoreBatched(ctx, missTexts(senMissing), senMissing, a.maxBatch, a.scorer.ScoreSentiment)
	}()
	<-done
	<-done

	if emoErr != nil {
		return nil, nil, emoErr
	}
	if senErr != nil {
		return nil, nil, senErr
	}

	if len(emoMissing) > 0 {
		a.cache.StoreEmotions(ctx, missTexts(emoMissing), emoScored)
	}
	if len(senMissing) > 0 {
		a.cache.StoreSentiments(ctx, missTexts(senMissing), senScored)
	}

	emotions, err := mergeResults(emoCached, emoMissing, emoScored)
	if err != nil {
		return nil, nil, domain.ErrInternal(domain.StageInference, "%v", err)
	}
	sentiments, err := mergeResults(senCached, senMissing, senScored)
	if err != nil {
		return nil, nil, domain.ErrInternal(domain.StageInference, "%v", err)
	}
	return emotions, sentiments, nil
}

// WarmUp delegates to the Model Runner. Safe to call repeatedly.
func (a *Analyzer) WarmUp(ctx context.Context) error {
	return a.scorer.WarmUp(ctx)
}

// Health reports the accelerator state without requiring models loaded.
func (a *Analyzer) Health(ctx context.Context) domain.AcceleratorHealth {
	return a.scorer.Health(ctx)
}

// validate rejects structurally invalid conversations before any inference
// work is queued.
func validate(req domain.ConversationRequest) error {
	if len(req.Messages) == 0 {
		return domain.ErrValidation(-1, "conversation has no messages")
	}
	for i, m := range req.Messages {
		if strings.TrimSpace(m.Content) == "" {
			return domain.ErrValidation(i, "message content is empty")
		}
	}
	return nil
}

// mapErr normalizes failures into the canonical taxonomy. A deadline that
// expired anywhere surfaces as a timeout for the stage that noticed it.
func (a *Analyzer) mapErr(ctx context.Context, stage domain.Stage, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.ErrTimeout(stage, err)
	}
	var aerr *domain.AnalysisError
	if errors.As(err, &aerr) {
		return aerr
	}
	return domain.ErrInternal(stage, "%v", err)
}
