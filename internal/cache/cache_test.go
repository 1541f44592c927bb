package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seriesso/semantic-analysis/internal/domain"
)

// fakeStore is an in-memory Store with optional failure injection.
type fakeStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	gets    int
	puts    int
	failing bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (f *fakeStore) GetMany(_ context.Context, keys []string) (map[string][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.failing {
		return map[string][]byte{}, nil // degraded: all miss
	}
	found := make(map[string][]byte)
	for _, k := range keys {
		if v, ok := f.data[k]; ok {
			found[k] = v
		}
	}
	return found, nil
}

func (f *fakeStore) PutMany(_ context.Context, entries map[string][]byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.failing {
		return errors.New("backend unavailable")
	}
	for k, v := range entries {
		f.data[k] = v
	}
	return nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Hello World", "hello world"},
		{"trims", "  hi  ", "hi"},
		{"collapses whitespace", "a\t\n b", "a b"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestFingerprintStability(t *testing.T) {
	a := Fingerprint(KindEmotion, "v1", "Hello there!")
	b := Fingerprint(KindEmotion, "v1", "  hello  THERE! ")
	assert.Equal(t, a, b, "normalization-equivalent texts must share a key")

	assert.NotEqual(t, a, Fingerprint(KindSentiment, "v1", "Hello there!"),
		"kinds must not collide")
	assert.NotEqual(t, a, Fingerprint(KindEmotion, "v2", "Hello there!"),
		"model versions must not collide")
}

func TestLocalStoreRoundTrip(t *testing.T) {
	s := NewLocalStore(8, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.PutMany(ctx, map[string][]byte{"k1": []byte("v1")}, 0))

	found, err := s.GetMany(ctx, []string{"k1", "k2"})
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), found["k1"])
	assert.NotContains(t, found, "k2")
}

func TestLocalStoreExpiry(t *testing.T) {
	s := NewLocalStore(8, 10*time.Millisecond)
	ctx := context.Background()

	s.PutMany(ctx, map[string][]byte{"k": []byte("v")}, 0)
	time.Sleep(30 * time.Millisecond)

	found, _ := s.GetMany(ctx, []string{"k"})
	assert.Empty(t, found)
}

func TestTieredStorePromotesRemoteHits(t *testing.T) {
	local := newFakeStore()
	remote := newFakeStore()
	remote.data["k"] = []byte("v")

	s := NewTieredStore(local, remote)
	ctx := context.Background()

	found, err := s.GetMany(ctx, []string{"k"})
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), found["k"])
	assert.Equal(t, []byte("v"), local.data["k"], "remote hit should be promoted")

	// Second read is served locally.
	remoteGets := remote.gets
	found, _ = s.GetMany(ctx, []string{"k"})
	assert.Equal(t, []byte("v"), found["k"])
	assert.Equal(t, remoteGets, remote.gets, "local hit must not touch remote")
}

func TestTieredStoreWriteThrough(t *testing.T) {
	local := newFakeStore()
	remote := newFakeStore()
	s := NewTieredStore(local, remote)

	require.NoError(t, s.PutMany(context.Background(), map[string][]byte{"k": []byte("v")}, time.Minute))
	assert.Equal(t, 1, local.len())
	assert.Equal(t, 1, remote.len())
}

func TestNoopStoreAlwaysMisses(t *testing.T) {
	s := NoopStore{}
	ctx := context.Background()

	require.NoError(t, s.PutMany(ctx, map[string][]byte{"k": []byte("v")}, time.Minute))
	found, err := s.GetMany(ctx, []string{"k"})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestResultCacheRoundTrip(t *testing.T) {
	store := newFakeStore()
	rc := NewResultCache(store, "v1", "v1", time.Hour, slog.Default())
	ctx := context.Background()

	texts := []string{"hello", "world"}
	results, missing := rc.LookupEmotions(ctx, texts)
	assert.Equal(t, []int{0, 1}, missing)
	assert.Nil(t, results[0])

	computed := []domain.EmotionResult{
		{Scores: map[domain.EmotionLabel]float64{domain.EmotionJoy: 1}, Dominant: domain.EmotionJoy, Confidence: 1, Valence: 0.8, Arousal: 0.7},
		{Scores: map[domain.EmotionLabel]float64{domain.EmotionNeutral: 1}, Dominant: domain.EmotionNeutral, Confidence: 1, Arousal: 0.1},
	}
	rc.StoreEmotions(ctx, texts, computed)

	// Writes are detached; wait for them to land.
	require.Eventually(t, func() bool { return store.len() == 2 }, time.Second, 5*time.Millisecond)

	results, missing = rc.LookupEmotions(ctx, texts)
	assert.Empty(t, missing)
	require.NotNil(t, results[0])
	assert.Equal(t, domain.EmotionJoy, results[0].Dominant)
	assert.Equal(t, domain.EmotionNeutral, results[1].Dominant)
}

func TestResultCacheIndependentKinds(t *testing.T) {
	store := newFakeStore()
	rc := NewResultCache(store, "v1", "v1", time.Hour, slog.Default())
	ctx := context.Background()

	rc.StoreSentiments(ctx, []string{"hello"}, []domain.SentimentResult{
		{Label: domain.SentimentPositive, Confidence: 0.9, Score: 0.9},
	})
	require.Eventually(t, func() bool { return store.len() == 1 }, time.Second, 5*time.Millisecond)

	// A sentiment entry must not satisfy an emotion lookup for the same text.
	_, missing := rc.LookupEmotions(ctx, []string{"hello"})
	assert.Equal(t, []int{0}, missing)

	results, missing := rc.LookupSentiments(ctx, []string{"hello"})
	assert.Empty(t, missing)
	assert.Equal(t, domain.SentimentPositive, results[0].Label)
}

func TestResultCacheDegradedBackend(t *testing.T) {
	store := newFakeStore()
	store.failing = true
	rc := NewResultCache(store, "v1", "v1", time.Hour, slog.Default())
	ctx := context.Background()

	rc.StoreEmotions(ctx, []string{"hello"}, []domain.EmotionResult{
		{Scores: map[domain.EmotionLabel]float64{domain.EmotionJoy: 1}, Dominant: domain.EmotionJoy},
	})

	// Everything misses, nothing errors.
	_, missing := rc.LookupEmotions(ctx, []string{"hello"})
	assert.Equal(t, []int{0}, missing)
}
