package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "service-discovery/internal/common/errors"
	"service-discovery/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vectors maps each known text onto a fixed embedding.
var vectors = map[string][]float64{
	"free treatment for diabetes": {1, 0, 0},
	"diabetes treatment help":     {0.8, 0.6, 0},
	"crop insurance":              {0, 0, 1},
	"opposite":                    {-1, 0, 0},
}

func newFakeServer(t *testing.T, calls *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := embedResponse{}
		for i, text := range req.Input {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float64 `json:"embedding"`
			}{Index: i, Embedding: vectors[text]})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(t *testing.T, url string) *Client {
	c, err := NewClient(Config{BaseURL: url, Timeout: time.Second, CacheSize: 16}, logger.NewTestLogger(t))
	require.NoError(t, err)
	return c
}

func TestScore_CosineSimilarity(t *testing.T) {
	var calls int32
	server := newFakeServer(t, &calls)
	defer server.Close()

	score, err := newTestClient(t, server.URL).Score(context.Background(), "free treatment for diabetes", "diabetes treatment help")

	require.NoError(t, err)
	assert.InDelta(t, 0.8, score, 1e-9)
}

func TestScore_NegativeSimilarityIsFloored(t *testing.T) {
	var calls int32
	server := newFakeServer(t, &calls)
	defer server.Close()

	score, err := newTestClient(t, server.URL).Score(context.Background(), "free treatment for diabetes", "opposite")

	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestScore_UsesCache(t *testing.T) {
	var calls int32
	server := newFakeServer(t, &calls)
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Score(context.Background(), "free treatment for diabetes", "diabetes treatment help")
	require.NoError(t, err)
	_, err = client.Score(context.Background(), "crop insurance", "diabetes treatment help")
	require.NoError(t, err)
	_, err = client.Score(context.Background(), "crop insurance", "free treatment for diabetes")
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestScore_ServerFailureIsScoreUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Score(context.Background(), "a", "b")

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeScoreUnavailable))
}

func TestScore_MissingEmbedding(t *testing.T) {
	var calls int32
	server := newFakeServer(t, &calls)
	defer server.Close()

	// Unknown texts embed to nil, which the fake encodes as null.
	_, err := newTestClient(t, server.URL).Score(context.Background(), "unknown", "diabetes treatment help")

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeScoreUnavailable))
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name    string
		a, b    []float64
		want    float64
		wantErr bool
	}{
		{name: "identical", a: []float64{1, 2}, b: []float64{1, 2}, want: 1},
		{name: "orthogonal", a: []float64{1, 0}, b: []float64{0, 1}, want: 0},
		{name: "opposite", a: []float64{1, 0}, b: []float64{-1, 0}, want: -1},
		{name: "dimension mismatch", a: []float64{1}, b: []float64{1, 0}, wantErr: true},
		{name: "zero vector", a: []float64{0, 0}, b: []float64{1, 0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cosine(tt.a, tt.b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
