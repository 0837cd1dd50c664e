// internal/models/response.go
package models

import "time"

// Degradation codes reported when a collaborator failed and a fallback was used.
const (
	DegradationParseUnavailable   = "PARSE_UNAVAILABLE"
	DegradationScoreUnavailable   = "SCORE_UNAVAILABLE"
	DegradationCatalogUnavailable = "CATALOG_UNAVAILABLE"
	DegradationCatalogSnapshot    = "CATALOG_SNAPSHOT"
)

// Degradation tells the presentation layer that part of the answer is less certain.
type Degradation struct {
	Code      string `json:"code"`
	Component string `json:"component"`
	Message   string `json:"message"`
}

// SourceCitation points the citizen at the official record behind a result.
type SourceCitation struct {
	ServiceID   string    `json:"serviceId"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// HumanAssistance is the contact offered when nothing matches.
type HumanAssistance struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	URL   string `json:"url,omitempty"`
}

// NoMatchInfo explains an empty result.
type NoMatchInfo struct {
	Reason                  string `json:"reason"`
	AlternativesSearched    bool   `json:"alternativesSearched"`
	NoAlternativesMessage   string `json:"noAlternativesMessage,omitempty"`
	HumanAssistanceNotified bool   `json:"humanAssistanceNotified,omitempty"`
}

// QueryResponse is the envelope returned for every processed query.
type QueryResponse struct {
	RequestID             string           `json:"requestId"`
	SessionID             string           `json:"sessionId"`
	ResponseText          string           `json:"responseText"`
	Services              []ServiceMatch   `json:"services"`
	Alternatives          []ServiceMatch   `json:"alternatives,omitempty"`
	NeedsClarification    bool             `json:"needsClarification"`
	ClarificationQuestion string           `json:"clarificationQuestion,omitempty"`
	Sources               []SourceCitation `json:"sources"`
	ResponseTime          time.Duration    `json:"responseTime"`
	Confidence            float64          `json:"confidence"`
	Degradations          []Degradation    `json:"degradations,omitempty"`
	NoMatch               *NoMatchInfo     `json:"noMatch,omitempty"`
	HumanAssistance       *HumanAssistance `json:"humanAssistance,omitempty"`
	SuggestedTopics       []string         `json:"suggestedTopics,omitempty"`
	Query                 ParsedQuery      `json:"query"`
}

// Degraded reports whether any collaborator fallback was used.
func (r *QueryResponse) Degraded() bool {
	return len(r.Degradations) > 0
}
