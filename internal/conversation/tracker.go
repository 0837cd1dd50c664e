// Package conversation carries entities and intent across the turns of a session.
//
// The tracker is a pure transition function over models.ConversationContext values. It
// never mutates its input; callers persist the returned context and serialize turns of
// the same session.
package conversation

import (
	"sort"
	"time"

	"service-discovery/internal/models"
)

type Config struct {
	// FollowUpDecay scales the confidence of an intent inherited by an elliptical follow-up.
	FollowUpDecay float64
	// MaxTurns caps the turn log. Zero keeps every turn.
	MaxTurns int
}

func DefaultConfig() Config {
	return Config{FollowUpDecay: 0.9, MaxTurns: 50}
}

type Tracker struct {
	cfg Config
	now func() time.Time
}

type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func NewTracker(cfg Config, opts ...Option) *Tracker {
	if cfg.FollowUpDecay <= 0 || cfg.FollowUpDecay > 1 {
		cfg.FollowUpDecay = DefaultConfig().FollowUpDecay
	}
	t := &Tracker{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Enrich fills entity types missing from parsed with the session's known values and
// inherits the previous intent when parsed carries no category.
func (t *Tracker) Enrich(convo models.ConversationContext, parsed models.ParsedQuery) models.ParsedQuery {
	out := parsed.Clone()

	present := make(map[string]bool, len(parsed.Entities))
	for _, e := range parsed.Entities {
		present[models.CanonicalEntityType(e.Type)] = true
	}

	types := make([]string, 0, len(convo.KnownEntities))
	for typ := range convo.KnownEntities {
		types = append(types, typ)
	}
	sort.Strings(types)

	for _, typ := range types {
		if present[typ] {
			continue
		}
		known := convo.KnownEntities[typ]
		out.Entities = append(out.Entities, models.Entity{
			Type:       typ,
			Value:      known.Value,
			Confidence: known.Confidence,
			Inherited:  true,
		})
	}

	if parsed.Intent.Category == "" && convo.LastIntent != nil && convo.LastIntent.Category != "" {
		out.Intent = models.Intent{
			Category:    convo.LastIntent.Category,
			Subcategory: convo.LastIntent.Subcategory,
			Confidence:  convo.LastIntent.Confidence * t.cfg.FollowUpDecay,
			Inherited:   true,
		}
		if parsed.Intent.Subcategory != "" {
			out.Intent.Subcategory = parsed.Intent.Subcategory
		}
	}

	if out.Language == "" {
		out.Language = convo.Language
	}
	return out
}

// Commit returns the context after a completed turn. Entities the citizen stated in
// original overwrite the known map per type; types not mentioned keep their value.
func (t *Tracker) Commit(convo models.ConversationContext, original, enriched models.ParsedQuery, summary models.TurnSummary) models.ConversationContext {
	now := t.now().UTC()
	next := convo.Clone()
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}

	for _, e := range original.Entities {
		if e.Inherited || e.Value == "" {
			continue
		}
		typ := models.CanonicalEntityType(e.Type)
		next.KnownEntities[typ] = models.Entity{Type: typ, Value: e.Value, Confidence: e.Confidence}
	}

	// Only a stated intent replaces LastIntent, so the follow-up decay never compounds.
	switch {
	case original.Intent.Category != "":
		intent := original.Intent
		intent.Inherited = false
		next.LastIntent = &intent
	case next.LastIntent != nil && original.Intent.Subcategory != "":
		intent := *next.LastIntent
		intent.Subcategory = original.Intent.Subcategory
		next.LastIntent = &intent
	}
	if enriched.Language != "" {
		next.Language = enriched.Language
	}

	index := 1
	if n := len(next.Turns); n > 0 {
		index = next.Turns[n-1].Index + 1
	}
	next.Turns = append(next.Turns, models.Turn{
		Index:    index,
		Query:    original.Clone(),
		Enriched: enriched.Clone(),
		Summary:  summary,
		At:       now,
	})
	if t.cfg.MaxTurns > 0 && len(next.Turns) > t.cfg.MaxTurns {
		next.Turns = append([]models.Turn(nil), next.Turns[len(next.Turns)-t.cfg.MaxTurns:]...)
	}

	next.UpdatedAt = now
	return next
}

// OnQuery enriches parsed and commits it with an empty summary.
func (t *Tracker) OnQuery(convo models.ConversationContext, parsed models.ParsedQuery) (models.ParsedQuery, models.ConversationContext) {
	enriched := t.Enrich(convo, parsed)
	return enriched, t.Commit(convo, parsed, enriched, models.TurnSummary{})
}
