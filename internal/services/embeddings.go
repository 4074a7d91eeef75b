package services

//go:generate mockgen -destination=mock/mock_embedder.go -package=servicesmock github.com/amoisekai/engine/internal/services Embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/amoisekai/engine/pkg/textfilter"
)

// HashDimensions is the width of vectors produced by HashEmbedder.
const HashDimensions = 768

// Embedder turns text into a vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// HashEmbedder is a deterministic, offline embedder. Words and character
// trigrams are hashed into signed buckets and the result is unit length.
type HashEmbedder struct{}

func (HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return HashVector(text), nil
}

// HashVector returns the HashEmbedder vector for text.
func HashVector(text string) []float32 {
	v := make([]float64, HashDimensions)
	folded := textfilter.Fold(text)
	add := func(feature string, weight float64) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(feature))
		sum := h.Sum64()
		idx := int(sum % HashDimensions)
		if sum&(1<<63) != 0 {
			weight = -weight
		}
		v[idx] += weight
	}
	for _, w := range strings.Fields(folded) {
		add("w:"+w, 1)
		r := []rune(w)
		for i := 0; i+3 <= len(r); i++ {
			add("t:"+string(r[i:i+3]), 0.5)
		}
	}

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	out := make([]float32, HashDimensions)
	if norm == 0 {
		out[0] = 1
		return out
	}
	norm = math.Sqrt(norm)
	for i, x := range v {
		out[i] = float32(x / norm)
	}
	return out
}

// FallbackEmbedder tries Primary and degrades to the hash vector on failure.
type FallbackEmbedder struct {
	Primary Embedder
	logger  *slog.Logger
	metrics *Metrics
}

func NewFallbackEmbedder(primary Embedder, logger *slog.Logger, m *Metrics) *FallbackEmbedder {
	return &FallbackEmbedder{Primary: primary, logger: logger, metrics: m}
}

func (f *FallbackEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.Primary != nil {
		vec, err := f.Primary.Embed(ctx, text)
		if err == nil && len(vec) > 0 {
			return vec, nil
		}
		f.logger.Warn("Embedding provider failed, using hash vector", "error", err)
		f.metrics.Fallback("embedding")
	}
	return HashVector(text), nil
}

// CachedEmbedder memoizes vectors in a Cache keyed by model and text hash.
type CachedEmbedder struct {
	next   Embedder
	cache  Cache
	model  string
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedEmbedder(next Embedder, cache Cache, model string, ttl time.Duration, logger *slog.Logger) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: cache, model: model, ttl: ttl, logger: logger}
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embedding:" + c.model + ":" + hex.EncodeToString(sum[:16])
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if raw, err := c.cache.Get(ctx, key); err == nil && raw != "" {
		var vec []float32
		if err := json.Unmarshal([]byte(raw), &vec); err == nil && len(vec) > 0 {
			return vec, nil
		}
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(vec); err == nil {
		if err := c.cache.Set(ctx, key, string(data), c.ttl); err != nil {
			c.logger.Debug("Embedding cache write failed", "error", err)
		}
	}
	return vec, nil
}

// EmbedderSettings selects the embedding provider.
type EmbedderSettings struct {
	Provider      string
	Model         string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OllamaURL     string
}

// NewEmbedder builds the configured provider wrapped with the hash
// fallback. A non-nil cache adds memoization in front of the provider.
func NewEmbedder(s EmbedderSettings, cache Cache, logger *slog.Logger, m *Metrics) (Embedder, error) {
	var primary Embedder
	switch strings.ToLower(s.Provider) {
	case "openai":
		primary = NewOpenAIService(s.OpenAIAPIKey, s.OpenAIBaseURL, "", "", logger).WithEmbeddingModel(s.Model)
	case "ollama":
		svc, err := NewOllamaService(s.OllamaURL, "", "", logger)
		if err != nil {
			return nil, err
		}
		primary = svc.WithEmbeddingModel(s.Model)
	case "hash", "":
		return HashEmbedder{}, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", s.Provider)
	}
	if cache != nil {
		primary = NewCachedEmbedder(primary, cache, s.Model, 30*24*time.Hour, logger)
	}
	return NewFallbackEmbedder(primary, logger, m), nil
}
