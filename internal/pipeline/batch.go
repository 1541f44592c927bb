// Package pipeline drives a conversation through cache lookup, batched
// inference, and aggregation.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/seriesso/semantic-analysis/internal/domain"
)

// scoreFn scores one batch of texts, order-preserving.
type scoreFn[R any] func(ctx context.Context, texts []string) ([]R, error)

// scoreBatched partitions texts into chunks of at most maxBatch, scores the
// chunks concurrently, and returns results aligned with texts. Batching is a
// throughput concern only: chunk boundaries never change per-message values.
//
// A failed chunk is retried once, bisected into halves; if either half still
// fails the whole call fails. The request either gets a result for every
// message or an error for all of them. indices maps positions in texts back
// to original message indices for error attribution.
func scoreBatched[R any](ctx context.Context, texts []string, indices []int, maxBatch int, fn scoreFn[R]) ([]R, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if maxBatch < 1 {
		maxBatch = 1
	}

	results := make([]R, len(texts))

	type span struct{ start, end int }
	var chunks []span
	for start := 0; start < len(texts); start += maxBatch {
		end := start + maxBatch
		if end > len(texts) {
			end = len(texts)
		}
		chunks = append(chunks, span{start, end})
	}

	errs := make([]*domain.AnalysisError, len(chunks))
	var wg sync.WaitGroup
	for i, c := range chunks {
		wg.Add(1)
		go func(i int, c span) {
			defer wg.Done()
			errs[i] = scoreChunk(ctx, texts, indices, results, c.start, c.end, fn, true)
		}(i, c)
	}
	wg.Wait()

	// Chunks complete in arbitrary order; report the earliest failure so the
	// surfaced message index is deterministic.
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// scoreChunk scores texts[start:end] into results. On failure with retry
// available and more than one message, the chunk is bisected and each half
// gets one more attempt.
func scoreChunk[R any](ctx context.Context, texts []string, indices []int, results []R, start, end int, fn scoreFn[R], retry bool) *domain.AnalysisError {
	out, err := fn(ctx, texts[start:end])
	if err == nil {
		if len(out) != end-start {
			return domain.ErrInternal(domain.StageInference,
				"backend returned %d results for %d inputs", len(out), end-start)
		}
		copy(results[start:end], out)
		return nil
	}

	if !retry || end-start < 2 {
		return domain.ErrInference(indices[start], err)
	}

	mid := start + (end-start)/2
	if herr := scoreChunk(ctx, texts, indices, results, start, mid, fn, false); herr != nil {
		return herr
	}
	return scoreChunk(ctx, texts, indices, results, mid, end, fn, false)
}

// mergeResults overlays freshly scored miss results onto the cached slice,
// restoring original message order. cached is aligned with all messages
// (nil = miss); missing and scored are parallel.
func mergeResults[R any](cached []*R, missing []int, scored []R) ([]R, error) {
	if len(missing) != len(scored) {
		return nil, fmt.Errorf("scored %d results for %d misses", len(scored), len(missing))
	}
	full := make([]R, len(cached))
	for i, c := range cached {
		if c != nil {
			full[i] = *c
		}
	}
	for j, idx := range missing {
		full[idx] = scored[j]
	}
	return full, nil
}
