// Package config loads service configuration from an optional config.yaml
// and SEMANTIC_-prefixed environment variables. Environment variables
// override file values; "__" maps to nesting (SEMANTIC_SERVER__PORT ->
// server.port).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Models  ModelsConfig  `koanf:"models"`
	Cache   CacheConfig   `koanf:"cache"`
	Quality QualityConfig `koanf:"quality"`
	Breaker BreakerConfig `koanf:"breaker"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// ModelConfig identifies one classifier served by the inference runtime.
// Version participates in cache keys so a version bump never serves results
// computed under the old weights.
type ModelConfig struct {
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
	URL     string `koanf:"url"`
}

type ModelsConfig struct {
	Emotion        ModelConfig   `koanf:"emotion"`
	Sentiment      ModelConfig   `koanf:"sentiment"`
	WarmupOnStart  bool          `koanf:"warmup_on_start"`
	MaxBatchSize   int           `koanf:"max_batch_size"`
	InferenceSlots int           `koanf:"inference_slots"`
	ConnTimeout    time.Duration `koanf:"conn_timeout"`
	RespTimeout    time.Duration `koanf:"resp_timeout"`
}

type CacheConfig struct {
	Enabled      bool          `koanf:"enabled"`
	LocalEntries int           `koanf:"local_entries"`
	TTL          time.Duration `koanf:"ttl"`
	Redis        RedisConfig   `koanf:"redis"`
}

// RedisConfig is injected by the deployment layer; an empty Addr disables the
// distributed tier and the service runs on the in-process cache alone.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	TLS      bool   `koanf:"tls"`
}

// QualityConfig holds the tunable weights of the composite quality score.
// Weights are normalized to sum 1 at load time.
type QualityConfig struct {
	PositiveWeight     float64 `koanf:"positive_weight"`
	ValenceWeight      float64 `koanf:"valence_weight"`
	EngagementWeight   float64 `koanf:"engagement_weight"`
	SaturationMessages float64 `koanf:"saturation_messages"`
}

type BreakerConfig struct {
	MaxFailures uint32        `koanf:"max_failures"`
	Timeout     time.Duration `koanf:"timeout"`
	Interval    time.Duration `koanf:"interval"`
}

func Load() (*Config, error) {
	return LoadFile("config.yaml")
}

// LoadFile loads configuration from the given YAML file (missing file is
// fine) and then overlays environment variables.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("SEMANTIC_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "SEMANTIC_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Models.Emotion.URL = substituteEnvVars(cfg.Models.Emotion.URL)
	cfg.Models.Sentiment.URL = substituteEnvVars(cfg.Models.Sentiment.URL)
	cfg.Cache.Redis.Password = substituteEnvVars(cfg.Cache.Redis.Password)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Quality.normalize()

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"server.port":                 8080,
		"server.request_timeout":      "30s",
		"models.emotion.name":         "emotion-english-distilroberta-base",
		"models.emotion.version":      "v1",
		"models.sentiment.name":       "twitter-roberta-base-sentiment-latest",
		"models.sentiment.version":    "v1",
		"models.max_batch_size":       16,
		"models.inference_slots":      1,
		"models.conn_timeout":         "10s",
		"models.resp_timeout":         "60s",
		"cache.enabled":               true,
		"cache.local_entries":         4096,
		"cache.ttl":                   "24h",
		"quality.positive_weight":     0.4,
		"quality.valence_weight":      0.3,
		"quality.engagement_weight":   0.3,
		"quality.saturation_messages": 8.0,
		"breaker.max_failures":        5,
		"breaker.timeout":             "30s",
		"breaker.interval":            "60s",
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Models.MaxBatchSize <= 0 {
		return fmt.Errorf("models.max_batch_size must be positive, got %d", c.Models.MaxBatchSize)
	}
	if c.Models.InferenceSlots <= 0 {
		return fmt.Errorf("models.inference_slots must be positive, got %d", c.Models.InferenceSlots)
	}
	q := c.Quality
	if q.PositiveWeight < 0 || q.ValenceWeight < 0 || q.EngagementWeight < 0 {
		return fmt.Errorf("quality weights must be non-negative")
	}
	if q.PositiveWeight+q.ValenceWeight+q.EngagementWeight == 0 {
		return fmt.Errorf("quality weights must not all be zero")
	}
	if q.SaturationMessages <= 0 {
		return fmt.Errorf("quality.saturation_messages must be positive")
	}
	return nil
}

// normalize scales the three weights so they sum to 1, keeping the quality
// score bounded regardless of how the deployment tunes them.
func (q *QualityConfig) normalize() {
	sum := q.PositiveWeight + q.ValenceWeight + q.EngagementWeight
	q.PositiveWeight /= sum
	q.ValenceWeight /= sum
	q.EngagementWeight /= sum
}

// substituteEnvVars replaces ${VAR} references with their environment values.
func substituteEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			b.WriteString(s)
			break
		}
		end := strings.Index(s[start:], "}")
		if end < 0 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:start])
		b.WriteString(os.Getenv(s[start+2 : start+end]))
		s = s[start+end+1:]
	}
	return b.String()
}
