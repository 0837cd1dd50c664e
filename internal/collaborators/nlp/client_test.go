package nlp

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
	"service-discovery/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string) *Client {
	return NewClient(Config{BaseURL: url, APIKey: "k", Timeout: 2 * time.Second, MaxRetries: 1}, logger.NewTestLogger(t))
}

// ==========================
// Client Tests
// ==========================

func TestParse_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/parse-intent", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		var req parseRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "diabetes treatment help", req.Query)
		require.NotNil(t, req.Context)
		require.Len(t, req.Context.KnownEntities, 1)
		assert.Equal(t, "TN", req.Context.KnownEntities[0].Value)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"intent":     "Healthcare",
			"confidence": 0.9,
			"entities": []map[string]interface{}{
				{"type": "condition", "value": "diabetes", "confidence": 0.95},
				{"type": "", "value": "dropped"},
			},
			"language": "en",
		})
	}))
	defer server.Close()

	convo := models.NewConversation("s-1", time.Now())
	convo.KnownEntities["region"] = models.Entity{Type: "region", Value: "TN"}

	parsed, err := newTestClient(t, server.URL).Parse(context.Background(), "diabetes treatment help", convo)

	require.NoError(t, err)
	assert.Equal(t, models.CategoryHealthcare, parsed.Intent.Category)
	assert.Equal(t, 0.9, parsed.Intent.Confidence)
	require.Len(t, parsed.Entities, 1)
	assert.Equal(t, "diabetes", parsed.Entities[0].Value)
	assert.Equal(t, "en", parsed.Language)
	assert.Equal(t, "diabetes treatment help", parsed.Text)
}

func TestParse_ServerErrorIsParseUnavailable(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Parse(context.Background(), "pension", models.ConversationContext{})

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeParseUnavailable))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestParse_InvalidConfidence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"intent":"welfare","confidence":1.7}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Parse(context.Background(), "pension", models.ConversationContext{})

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeParseUnavailable))
}

func TestParse_NotConfigured(t *testing.T) {
	_, err := NewClient(Config{}, nil).Parse(context.Background(), "pension", models.ConversationContext{})

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeParseUnavailable))
}

func TestParse_UnknownIntentHasNoCategory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req parseRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Nil(t, req.Context)
		_, _ = w.Write([]byte(`{"intent":"small_talk","confidence":0.8}`))
	}))
	defer server.Close()

	parsed, err := newTestClient(t, server.URL).Parse(context.Background(), "hello", models.ConversationContext{})

	require.NoError(t, err)
	assert.Empty(t, parsed.Intent.Category)
	assert.Equal(t, 0.8, parsed.Intent.Confidence)
}

// ==========================
// Heuristic Tests
// ==========================

func TestParseKeywords(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		category   models.Category
		confidence float64
		entities   map[string]string
	}{
		{
			name:       "diabetes treatment",
			text:       "diabetes treatment help",
			category:   models.CategoryHealthcare,
			confidence: heuristicMultiHit,
			entities:   map[string]string{"condition": "diabetes"},
		},
		{
			name:       "scholarship with region",
			text:       "Scholarships for engineering students in Maharashtra",
			category:   models.CategoryEducation,
			confidence: heuristicMultiHit,
			entities:   map[string]string{"region": "MH", "field": "engineering"},
		},
		{
			name:       "single keyword",
			text:       "what about for diploma holders?",
			category:   models.CategoryEducation,
			confidence: heuristicSingleHit,
			entities:   map[string]string{"education_level": "diploma"},
		},
		{
			name:       "age and region",
			text:       "I am 67 years old from Tamil Nadu and need a pension",
			category:   models.CategoryWelfare,
			confidence: heuristicSingleHit,
			entities:   map[string]string{"age": "67", "region": "TN"},
		},
		{
			name:       "tie between categories",
			text:       "job or house",
			category:   models.CategoryEmployment,
			confidence: heuristicTie,
		},
		{
			name: "no keywords",
			text: "hello there",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := ParseKeywords(tt.text)

			assert.Equal(t, tt.category, parsed.Intent.Category)
			assert.Equal(t, tt.confidence, parsed.Intent.Confidence)
			assert.Len(t, parsed.Entities, len(tt.entities))
			for typ, value := range tt.entities {
				e, ok := parsed.Entity(typ)
				if assert.True(t, ok, typ) {
					assert.Equal(t, value, e.Value)
				}
			}
		})
	}
}

func TestHeuristic_NeverFails(t *testing.T) {
	parsed, err := NewHeuristic().Parse(context.Background(), "", models.ConversationContext{})

	require.NoError(t, err)
	assert.Empty(t, parsed.Intent.Category)
}
