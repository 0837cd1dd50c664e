// Package embedding computes semantic similarity between a service description and a query
// using a remote embeddings API.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	apperrors "service-discovery/internal/common/errors"
	httpclient "service-discovery/internal/common/http"
	"service-discovery/internal/common/logger"
	"service-discovery/internal/common/metrics"
)

const embeddingsPath = "/v1/embeddings"

type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	CacheSize  int
}

// Client implements ranking.SemanticScorer. Embeddings are cached by text.
type Client struct {
	config Config
	http   *httpclient.Client
	cache  *lru.Cache[string, []float64]
	logger logger.Logger
}

func NewClient(config Config, log logger.Logger) (*Client, error) {
	if config.Model == "" {
		config.Model = "text-embedding-3-small"
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Second
	}
	if config.CacheSize <= 0 {
		config.CacheSize = 1024
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	cache, err := lru.New[string, []float64](config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	return &Client{
		config: config,
		http: httpclient.NewClient(config.Timeout,
			httpclient.WithRetries(config.MaxRetries),
			httpclient.WithBearerToken(config.APIKey),
		),
		cache:  cache,
		logger: log.WithFields(map[string]interface{}{"component": "embedding"}),
	}, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Score returns the cosine similarity of the two texts, floored at 0. Failures are
// SCORE_UNAVAILABLE errors.
func (c *Client) Score(ctx context.Context, description, queryText string) (float64, error) {
	vectors, err := c.EmbedBatch(ctx, []string{description, queryText})
	if err != nil {
		return 0, apperrors.NewScoreUnavailableError(err)
	}
	sim, err := Cosine(vectors[0], vectors[1])
	if err != nil {
		return 0, apperrors.NewScoreUnavailableError(err)
	}
	return math.Max(0, sim), nil
}

// EmbedBatch returns one vector per text, calling the API only for texts not cached.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	var missing []string
	missingAt := map[string][]int{}

	for i, text := range texts {
		if v, ok := c.cache.Get(text); ok {
			metrics.EmbeddingCacheHits.WithLabelValues("hit").Inc()
			out[i] = v
			continue
		}
		metrics.EmbeddingCacheHits.WithLabelValues("miss").Inc()
		if _, queued := missingAt[text]; !queued {
			missing = append(missing, text)
		}
		missingAt[text] = append(missingAt[text], i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.fetch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for i, text := range missing {
		c.cache.Add(text, vectors[i])
		for _, at := range missingAt[text] {
			out[at] = vectors[i]
		}
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context, texts []string) ([][]float64, error) {
	if c.config.BaseURL == "" {
		return nil, errors.New("embedding base url not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var resp embedResponse
	url := strings.TrimRight(c.config.BaseURL, "/") + embeddingsPath
	if err := c.http.PostJSON(ctx, url, embedRequest{Model: c.config.Model, Input: texts}, &resp); err != nil {
		c.logger.Warn("Embedding request failed", map[string]interface{}{
			"error": err.Error(),
			"texts": len(texts),
		})
		return nil, apperrors.NewEmbeddingFailedError(err)
	}

	if len(resp.Data) != len(texts) {
		return nil, apperrors.NewEmbeddingFailedError(fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}
	vectors := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || len(d.Embedding) == 0 {
			return nil, apperrors.NewEmbeddingFailedError(fmt.Errorf("invalid embedding at index %d", d.Index))
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, apperrors.NewEmbeddingFailedError(fmt.Errorf("missing embedding for input %d", i))
		}
	}
	return vectors, nil
}

// Cosine returns the cosine similarity of a and b.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, errors.New("zero vector")
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Min(1, math.Max(-1, sim)), nil
}
