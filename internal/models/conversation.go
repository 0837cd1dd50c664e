// internal/models/conversation.go
package models

import "time"

// TurnOutcome summarizes how a turn ended.
type TurnOutcome string

const (
	OutcomeMatched       TurnOutcome = "matched"
	OutcomeAlternatives  TurnOutcome = "alternatives"
	OutcomeClarification TurnOutcome = "clarification"
	OutcomeNoMatch       TurnOutcome = "no_match"
)

// TurnSummary is the part of a response kept in the session history.
type TurnSummary struct {
	Outcome    TurnOutcome `json:"outcome"`
	ServiceIDs []string    `json:"serviceIds,omitempty"`
	RequestID  string      `json:"requestId,omitempty"`
}

// Turn is one query/response exchange.
type Turn struct {
	Index    int         `json:"index"`
	Query    ParsedQuery `json:"query"`
	Enriched ParsedQuery `json:"enriched"`
	Summary  TurnSummary `json:"summary"`
	At       time.Time   `json:"at"`
}

// ConversationContext is the per-session state carried between turns. It is passed into
// and returned from each orchestration call; the host layer persists it.
type ConversationContext struct {
	SessionID     string            `json:"sessionId"`
	Turns         []Turn            `json:"turns,omitempty"`
	KnownEntities map[string]Entity `json:"knownEntities,omitempty"`
	LastIntent    *Intent           `json:"lastIntent,omitempty"`
	Language      string            `json:"language,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// NewConversation starts an empty context for a session.
func NewConversation(sessionID string, now time.Time) ConversationContext {
	return ConversationContext{
		SessionID:     sessionID,
		KnownEntities: map[string]Entity{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsExpired checks the context against an idle TTL. A zero TTL never expires.
func (c ConversationContext) IsExpired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 || c.UpdatedAt.IsZero() {
		return false
	}
	return now.Sub(c.UpdatedAt) > ttl
}

// Clone deep-copies the mutable parts of the context.
func (c ConversationContext) Clone() ConversationContext {
	out := c
	if c.Turns != nil {
		out.Turns = make([]Turn, len(c.Turns))
		copy(out.Turns, c.Turns)
	}
	out.KnownEntities = make(map[string]Entity, len(c.KnownEntities))
	for k, v := range c.KnownEntities {
		out.KnownEntities[k] = v
	}
	if c.LastIntent != nil {
		intent := *c.LastIntent
		out.LastIntent = &intent
	}
	return out
}
