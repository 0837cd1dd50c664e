// Package orchestrator runs one conversation turn: parse, enrich, gate on confidence, match
// and assemble the response. The conversation context changes only once the turn has a
// response.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"service-discovery/internal/collaborators/nlp"
	"service-discovery/internal/common/config"
	apperrors "service-discovery/internal/common/errors"
	"service-discovery/internal/common/logger"
	"service-discovery/internal/common/metrics"
	"service-discovery/internal/common/observability"
	"service-discovery/internal/conversation"
	"service-discovery/internal/discovery/matcher"
	"service-discovery/internal/discovery/ranking"
	"service-discovery/internal/models"
)

// MaxQueryLength bounds the query text in runes.
const MaxQueryLength = 2000

// Parser turns raw text into a ParsedQuery. Implementations report failure with a
// PARSE_UNAVAILABLE error.
type Parser interface {
	Parse(ctx context.Context, text string, convo models.ConversationContext) (models.ParsedQuery, error)
}

// Escalation is published when a query ends without any service to show.
type Escalation struct {
	RequestID string          `json:"requestId"`
	SessionID string          `json:"sessionId"`
	Query     string          `json:"query"`
	Category  models.Category `json:"category,omitempty"`
	Region    string          `json:"region,omitempty"`
	Reason    string          `json:"reason"`
	At        time.Time       `json:"at"`
}

// Escalator hands a no-match query over to human assistance.
type Escalator interface {
	Escalate(ctx context.Context, e Escalation) error
}

// QueryRequest is one citizen turn.
type QueryRequest struct {
	RequestID string                `json:"requestId,omitempty"`
	SessionID string                `json:"sessionId"`
	Text      string                `json:"text"`
	Profile   models.CitizenProfile `json:"profile"`
	Language  string                `json:"language,omitempty"`
}

type Config struct {
	ClarificationThreshold float64
	DegradationPenalty     float64
	Helpline               models.HumanAssistance
}

// ConfigFromDiscovery maps the discovery config section onto the orchestrator config.
func ConfigFromDiscovery(d config.DiscoveryConfig) Config {
	return Config{
		ClarificationThreshold: d.ClarificationThreshold,
		DegradationPenalty:     d.DegradationPenalty,
		Helpline: models.HumanAssistance{
			Name:  d.HelplineName,
			Phone: d.HelplinePhone,
			URL:   d.HelplineURL,
		},
	}
}

// Deps are the collaborators of an Orchestrator. Parser, Snapshots and Escalator are
// optional; Fallback defaults to the keyword parser.
type Deps struct {
	Parser        Parser
	Fallback      Parser
	Tracker       *conversation.Tracker
	Matcher       *matcher.Matcher
	Lookup        matcher.Lookup
	Snapshots     matcher.SnapshotStore
	Escalator     Escalator
	Observability *observability.Observability
	Logger        logger.Logger
}

type Orchestrator struct {
	deps  Deps
	cfg   Config
	now   func() time.Time
	newID func() string
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

func New(deps Deps, cfg Config, opts ...Option) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	deps.Logger = deps.Logger.WithFields(map[string]interface{}{"component": "orchestrator"})
	if deps.Tracker == nil {
		deps.Tracker = conversation.NewTracker(conversation.DefaultConfig())
	}
	if deps.Matcher == nil {
		deps.Matcher = matcher.New(nil, ranking.NewRanker(ranking.DefaultWeights, nil, deps.Logger), matcher.DefaultConfig(), deps.Logger)
	}
	if deps.Fallback == nil {
		deps.Fallback = nlp.NewHeuristic()
	}
	if deps.Observability == nil {
		deps.Observability = observability.NewNoop()
	}
	if cfg.Helpline.Name == "" {
		def := config.DefaultDiscovery()
		cfg.Helpline = models.HumanAssistance{Name: def.HelplineName, Phone: def.HelplinePhone, URL: def.HelplineURL}
	}
	o := &Orchestrator{
		deps:  deps,
		cfg:   cfg,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessQuery runs a turn against convo and returns the response with the next context.
// Malformed requests are the only error; every collaborator failure degrades the answer.
// On error convo is returned unchanged.
func (o *Orchestrator) ProcessQuery(ctx context.Context, req QueryRequest, convo models.ConversationContext) (*models.QueryResponse, models.ConversationContext, error) {
	start := o.now()

	if err := validate(req, convo); err != nil {
		return nil, convo, err
	}
	if convo.SessionID == "" {
		convo = models.NewConversation(req.SessionID, start.UTC())
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = o.newID()
	}
	ctx = logger.ContextWithRequest(ctx, requestID, req.SessionID)
	log := logger.FromContext(ctx, o.deps.Logger)

	ctx, span := o.deps.Observability.StartSpan(ctx, "orchestrator.ProcessQuery",
		attribute.String("session.id", req.SessionID),
		attribute.String("request.id", requestID),
	)
	defer span.End()

	resp := &models.QueryResponse{
		RequestID: requestID,
		SessionID: req.SessionID,
		Services:  []models.ServiceMatch{},
		Sources:   []models.SourceCitation{},
	}

	// NeedParse
	parsed := o.parse(ctx, req, convo, resp, log)
	enriched := o.deps.Tracker.Enrich(convo, parsed)
	resp.Query = enriched
	span.SetAttributes(
		attribute.String("intent.category", string(enriched.Intent.Category)),
		attribute.Float64("intent.confidence", enriched.Intent.Confidence),
	)

	var summary models.TurnSummary
	profile := req.Profile.WithQueryEntities(enriched)
	if o.needsClarification(enriched) {
		o.clarify(resp, enriched, profile)
		summary.Outcome = models.OutcomeClarification
	} else {
		summary = o.answer(ctx, req, enriched, profile, resp, log)
	}
	summary.RequestID = requestID

	resp.Confidence = o.confidence(enriched.Intent.Confidence, len(resp.Degradations))
	resp.ResponseTime = o.now().Sub(start)

	// Responded
	next := o.deps.Tracker.Commit(convo, parsed, enriched, summary)

	o.record(ctx, summary.Outcome, resp)
	if resp.Degraded() {
		span.SetStatus(codes.Error, "degraded")
	}
	log.Info("Query processed", map[string]interface{}{
		"outcome":      string(summary.Outcome),
		"services":     len(resp.Services),
		"alternatives": len(resp.Alternatives),
		"confidence":   resp.Confidence,
		"degradations": len(resp.Degradations),
		"durationMs":   resp.ResponseTime.Milliseconds(),
	})
	return resp, next, nil
}

func validate(req QueryRequest, convo models.ConversationContext) error {
	switch {
	case strings.TrimSpace(req.SessionID) == "":
		return apperrors.NewInvalidRequestError("sessionId is required")
	case strings.TrimSpace(req.Text) == "":
		return apperrors.NewInvalidRequestError("query text is required")
	case utf8.RuneCountInString(req.Text) > MaxQueryLength:
		return apperrors.NewInvalidRequestError(fmt.Sprintf("query text exceeds %d characters", MaxQueryLength))
	case convo.SessionID != "" && convo.SessionID != req.SessionID:
		return apperrors.NewInvalidRequestError("conversation context belongs to another session")
	}
	return nil
}

// parse calls the NLP collaborator and falls back to the keyword parser when it fails.
func (o *Orchestrator) parse(ctx context.Context, req QueryRequest, convo models.ConversationContext, resp *models.QueryResponse, log logger.Logger) models.ParsedQuery {
	text := strings.TrimSpace(req.Text)

	var parsed models.ParsedQuery
	var err error
	if o.deps.Parser != nil {
		parsed, err = o.deps.Parser.Parse(ctx, text, convo)
	} else {
		err = apperrors.NewParseUnavailableError(fmt.Errorf("no parser configured"))
	}

	if err != nil {
		log.Warn("NLP parse unavailable, using keyword heuristics", map[string]interface{}{"error": err.Error()})
		resp.Degradations = append(resp.Degradations, models.Degradation{
			Code:      models.DegradationParseUnavailable,
			Component: "nlp",
			Message:   "Language understanding is unavailable; the query was interpreted by keywords only",
		})
		if parsed, err = o.deps.Fallback.Parse(ctx, text, convo); err != nil {
			parsed = models.ParsedQuery{}
		}
	}

	parsed.Text = text
	if parsed.Language == "" {
		parsed.Language = req.Language
	}
	return parsed
}

func (o *Orchestrator) needsClarification(q models.ParsedQuery) bool {
	return q.Intent.Confidence < o.cfg.ClarificationThreshold || q.Intent.Category == "" || q.NeedsClarification
}

// answer runs the matcher and fills resp. It returns the turn summary.
func (o *Orchestrator) answer(ctx context.Context, req QueryRequest, q models.ParsedQuery, profile models.CitizenProfile, resp *models.QueryResponse, log logger.Logger) models.TurnSummary {
	ctx, span := o.deps.Observability.StartSpan(ctx, "matcher.FindServices")
	defer span.End()

	catalog := o.deps.Matcher.ResolveCatalog(ctx, o.deps.Lookup, o.deps.Snapshots, q.Intent.Category, profile.Region)
	result := o.deps.Matcher.FindServices(ctx, q, profile, catalog)

	resp.Services = result.Matches
	resp.Alternatives = result.Alternatives
	resp.Degradations = append(resp.Degradations, result.Degradations...)
	resp.Sources = citations(result.Matches, result.Alternatives)
	span.SetAttributes(
		attribute.Int("matches", len(result.Matches)),
		attribute.Int("alternatives", len(result.Alternatives)),
		attribute.String("catalog.source", catalog.Source),
	)

	summary := models.TurnSummary{ServiceIDs: serviceIDs(result.Matches, result.Alternatives)}
	switch {
	case len(result.Matches) > 0:
		summary.Outcome = models.OutcomeMatched
		resp.ResponseText = matchedText(q, result)
	case len(result.Alternatives) > 0:
		summary.Outcome = models.OutcomeAlternatives
		resp.ResponseText = alternativesText(result.Alternatives)
	default:
		summary.Outcome = models.OutcomeNoMatch
		o.noMatch(ctx, req, q, profile, result, resp, log)
	}
	return summary
}

// noMatch fills the payload of a turn with nothing to show and escalates it.
func (o *Orchestrator) noMatch(ctx context.Context, req QueryRequest, q models.ParsedQuery, profile models.CitizenProfile, result *matcher.MatchResult, resp *models.QueryResponse, log logger.Logger) {
	helpline := o.cfg.Helpline
	resp.HumanAssistance = &helpline
	resp.SuggestedTopics = suggestedTopics(q.Intent.Category)
	resp.NoMatch = &models.NoMatchInfo{
		Reason:                string(result.EmptyReason),
		AlternativesSearched:  result.AlternativesSearched,
		NoAlternativesMessage: noAlternativesMessage(result.EmptyReason),
	}
	resp.ResponseText = noMatchText(result.EmptyReason, helpline, resp.SuggestedTopics)

	if o.deps.Escalator == nil {
		return
	}
	err := o.deps.Escalator.Escalate(ctx, Escalation{
		RequestID: resp.RequestID,
		SessionID: req.SessionID,
		Query:     q.Text,
		Category:  q.Intent.Category,
		Region:    profile.Region,
		Reason:    string(result.EmptyReason),
		At:        o.now().UTC(),
	})
	if err != nil {
		log.Warn("Human assistance escalation failed", map[string]interface{}{"error": err.Error()})
		return
	}
	resp.NoMatch.HumanAssistanceNotified = true
}

func (o *Orchestrator) clarify(resp *models.QueryResponse, q models.ParsedQuery, profile models.CitizenProfile) {
	resp.NeedsClarification = true
	resp.ClarificationQuestion = clarificationQuestion(q, profile)
	resp.ResponseText = resp.ClarificationQuestion
	resp.SuggestedTopics = suggestedTopics(q.Intent.Category)
}

// confidence lowers the intent confidence by the configured penalty per degradation.
func (o *Orchestrator) confidence(intent float64, degradations int) float64 {
	c := intent - o.cfg.DegradationPenalty*float64(degradations)
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

func (o *Orchestrator) record(ctx context.Context, outcome models.TurnOutcome, resp *models.QueryResponse) {
	metrics.QueriesTotal.WithLabelValues(string(outcome)).Inc()
	metrics.QueryDuration.WithLabelValues(string(outcome)).Observe(resp.ResponseTime.Seconds())
	for _, d := range resp.Degradations {
		metrics.DegradationsTotal.WithLabelValues(d.Code).Inc()
	}
	if outcome == models.OutcomeMatched {
		metrics.MatchesReturned.Observe(float64(len(resp.Services)))
	}
	o.deps.Observability.RecordQuery(ctx, string(outcome), resp.ResponseTime)
}

// citations lists the official source of every shown service once, in display order.
func citations(groups ...[]models.ServiceMatch) []models.SourceCitation {
	out := []models.SourceCitation{}
	seen := map[string]bool{}
	for _, group := range groups {
		for _, m := range group {
			if m.Service == nil || seen[m.Service.ID] {
				continue
			}
			seen[m.Service.ID] = true
			name := m.Service.OfficialSource.Name
			if name == "" {
				name = m.Service.Name
			}
			out = append(out, models.SourceCitation{
				ServiceID:   m.Service.ID,
				Name:        name,
				URL:         m.Service.OfficialSource.URL,
				LastUpdated: m.Service.LastUpdated,
			})
		}
	}
	return out
}

func serviceIDs(groups ...[]models.ServiceMatch) []string {
	var out []string
	for _, group := range groups {
		for _, m := range group {
			if m.Service != nil {
				out = append(out, m.Service.ID)
			}
		}
	}
	return out
}
