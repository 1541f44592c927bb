package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/seriesso/semantic-analysis/internal/domain"
)

// ResultCache is the typed layer over a Store. Emotion and sentiment results
// are cached under independent keys so the two families can be invalidated
// or expire at different rates.
type ResultCache struct {
	store            Store
	emotionVersion   string
	sentimentVersion string
	ttl              time.Duration
	logger           *slog.Logger
}

// NewResultCache wraps store with per-kind fingerprinting. The model
// versions become part of every key.
func NewResultCache(store Store, emotionVersion, sentimentVersion string, ttl time.Duration, logger *slog.Logger) *ResultCache {
	return &ResultCache{
		store:            store,
		emotionVersion:   emotionVersion,
		sentimentVersion: sentimentVersion,
		ttl:              ttl,
		logger:           logger,
	}
}

// LookupEmotions resolves cached emotion results for texts. The returned
// slice is aligned with texts (nil entries are misses); missing lists the
// miss indices in input order.
func (c *ResultCache) LookupEmotions(ctx context.Context, texts []string) ([]*domain.EmotionResult, []int) {
	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = Fingerprint(KindEmotion, c.emotionVersion, t)
	}

	found, _ := c.store.GetMany(ctx, keys)

	results := make([]*domain.EmotionResult, len(texts))
	var missing []int
	for i, k := range keys {
		raw, ok := found[k]
		if !ok {
			missing = append(missing, i)
			continue
		}
		var r domain.EmotionResult
		if err := json.Unmarshal(raw, &r); err != nil {
			// Corrupt entry: score it fresh and overwrite.
			c.logger.Warn("dropping undecodable cache entry", slog.String("key", k))
			missing = append(missing, i)
			continue
		}
		results[i] = &r
	}
	return results, missing
}

// LookupSentiments is the sentiment counterpart of LookupEmotions.
func (c *ResultCache) LookupSentiments(ctx context.Context, texts []string) ([]*domain.SentimentResult, []int) {
	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = Fingerprint(KindSentiment, c.sentimentVersion, t)
	}

	found, _ := c.store.GetMany(ctx, keys)

	results := make([]*domain.SentimentResult, len(texts))
	var missing []int
	for i, k := range keys {
		raw, ok := found[k]
		if !ok {
			missing = append(missing, i)
			continue
		}
		var r domain.SentimentResult
		if err := json.Unmarshal(raw, &r); err != nil {
			c.logger.Warn("dropping undecodable cache entry", slog.String("key", k))
			missing = append(missing, i)
			continue
		}
		results[i] = &r
	}
	return results, missing
}

// StoreEmotions writes freshly computed emotion results back, detached from
// the request lifecycle: writes survive a request timeout (the values remain
// valid) and a failed write costs nothing but a future recompute.
func (c *ResultCache) StoreEmotions(ctx context.Context, texts []string, results []domain.EmotionResult) {
	entries := make(map[string][]byte, len(results))
	for i, r := range results {
		raw, err := json.Marshal(r)
		if err != nil {
			continue
		}
		entries[Fingerprint(KindEmotion, c.emotionVersion, texts[i])] = raw
	}
	c.writeDetached(ctx, entries)
}

// StoreSentiments is the sentiment counterpart of StoreEmotions.
func (c *ResultCache) StoreSentiments(ctx context.Context, texts []string, results []domain.SentimentResult) {
	entries := make(map[string][]byte, len(results))
	for i, r := range results {
		raw, err := json.Marshal(r)
		if err != nil {
			continue
		}
		entries[Fingerprint(KindSentiment, c.sentimentVersion, texts[i])] = raw
	}
	c.writeDetached(ctx, entries)
}

func (c *ResultCache) writeDetached(ctx context.Context, entries map[string][]byte) {
	if len(entries) == 0 {
		return
	}
	go func() {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := c.store.PutMany(wctx, entries, c.ttl); err != nil {
			c.logger.Warn("cache write-back failed", slog.String("error", err.Error()))
		}
	}()
}

// Close releases the underlying store.
func (c *ResultCache) Close() error { return c.store.Close() }
