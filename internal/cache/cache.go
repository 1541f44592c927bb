// Package cache provides the content-addressed result cache. Values are
// immutable: a key is a fingerprint of normalized text plus the model
// version, so an entry can only ever be overwritten with identical content.
// Backend failures degrade to misses and never propagate to callers.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"
)

// Store is the minimal batch key/value contract the pipeline needs.
// Implementations must treat read errors as misses internally or return them
// for a wrapping layer to swallow; PutMany must never block the analysis
// critical path on durability.
type Store interface {
	// GetMany returns the subset of keys that are present. Absent keys are
	// simply missing from the result map.
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)

	// PutMany stores all entries with the given TTL.
	PutMany(ctx context.Context, entries map[string][]byte, ttl time.Duration) error

	Close() error
}

// Kind distinguishes the two independently cached result families.
type Kind string

const (
	KindEmotion   Kind = "emo"
	KindSentiment Kind = "sen"
)

// Fingerprint builds the cache key for a text under a model version.
// The key is kind:version:sha256(normalized text); including the version
// keeps stale results from ever being served across a model upgrade.
func Fingerprint(kind Kind, modelVersion, text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return string(kind) + ":" + modelVersion + ":" + hex.EncodeToString(sum[:])
}

// Normalize canonicalizes text for fingerprinting: lowercased, trimmed, and
// with internal whitespace runs collapsed to single spaces. Scoring always
// receives the raw text; normalization affects the cache key only.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	inSpace := false
	for _, r := range strings.TrimSpace(text) {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace {
			b.WriteByte(' ')
			inSpace = false
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
