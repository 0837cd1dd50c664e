// Package nlp calls the external intent and entity extraction service.
package nlp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "service-discovery/internal/common/errors"
	httpclient "service-discovery/internal/common/http"
	"service-discovery/internal/common/logger"
	"service-discovery/internal/models"
)

const parsePath = "/api/ai/parse-intent"

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

type Client struct {
	config Config
	http   *httpclient.Client
	logger logger.Logger
}

func NewClient(config Config, log logger.Logger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 3 * time.Second
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Client{
		config: config,
		http: httpclient.NewClient(config.Timeout,
			httpclient.WithRetries(config.MaxRetries),
			httpclient.WithBearerToken(config.APIKey),
		),
		logger: log.WithFields(map[string]interface{}{"component": "nlp"}),
	}
}

type parseRequest struct {
	Query   string        `json:"query"`
	Context *parseContext `json:"context,omitempty"`
}

type parseContext struct {
	KnownEntities []models.Entity `json:"knownEntities,omitempty"`
	LastIntent    *models.Intent  `json:"lastIntent,omitempty"`
	Language      string          `json:"language,omitempty"`
}

type parseResponse struct {
	Intent             string          `json:"intent"`
	Subcategory        string          `json:"subcategory"`
	Confidence         float64         `json:"confidence"`
	Entities           []models.Entity `json:"entities"`
	Language           string          `json:"language"`
	NeedsClarification bool            `json:"needsClarification"`
}

// Parse sends text and a summary of the conversation to the NLP service. Every failure is
// reported as a PARSE_UNAVAILABLE error.
func (c *Client) Parse(ctx context.Context, text string, convo models.ConversationContext) (models.ParsedQuery, error) {
	if c.config.BaseURL == "" {
		return models.ParsedQuery{}, apperrors.NewParseUnavailableError(errors.New("nlp base url not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var resp parseResponse
	url := strings.TrimRight(c.config.BaseURL, "/") + parsePath
	if err := c.http.PostJSON(ctx, url, parseRequest{Query: text, Context: requestContext(convo)}, &resp); err != nil {
		c.logger.Warn("NLP parse failed", map[string]interface{}{"error": err.Error()})
		if errors.Is(err, httpclient.ErrTimeout) {
			return models.ParsedQuery{}, apperrors.NewParseUnavailableError(apperrors.NewIntentAPITimeoutError())
		}
		return models.ParsedQuery{}, apperrors.NewParseUnavailableError(apperrors.NewIntentParsingFailedError(err))
	}

	if math.IsNaN(resp.Confidence) || resp.Confidence < 0 || resp.Confidence > 1 {
		return models.ParsedQuery{}, apperrors.NewParseUnavailableError(fmt.Errorf("confidence %v out of range", resp.Confidence))
	}

	parsed := models.ParsedQuery{
		Text: text,
		Intent: models.Intent{
			Category:    models.ParseCategory(resp.Intent),
			Subcategory: resp.Subcategory,
			Confidence:  resp.Confidence,
		},
		Language:           resp.Language,
		NeedsClarification: resp.NeedsClarification,
	}
	for _, e := range resp.Entities {
		if strings.TrimSpace(e.Type) == "" || strings.TrimSpace(e.Value) == "" {
			continue
		}
		e.Inherited = false
		parsed.Entities = append(parsed.Entities, e)
	}

	c.logger.Debug("Intent parsed", map[string]interface{}{
		"intent":      string(parsed.Intent.Category),
		"confidence":  parsed.Intent.Confidence,
		"entityCount": len(parsed.Entities),
	})
	return parsed, nil
}

func requestContext(convo models.ConversationContext) *parseContext {
	if len(convo.KnownEntities) == 0 && convo.LastIntent == nil && convo.Language == "" {
		return nil
	}
	pc := &parseContext{LastIntent: convo.LastIntent, Language: convo.Language}
	for _, typ := range sortedTypes(convo.KnownEntities) {
		pc.KnownEntities = append(pc.KnownEntities, convo.KnownEntities[typ])
	}
	return pc
}
