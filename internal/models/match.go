// internal/models/match.go
package models

// EligibilityStatus is the per-service eligibility verdict for a profile.
type EligibilityStatus string

const (
	StatusEligible   EligibilityStatus = "eligible"
	StatusPartial    EligibilityStatus = "partial"
	StatusUnknown    EligibilityStatus = "unknown"
	StatusIneligible EligibilityStatus = "ineligible"
)

// Rank orders statuses for sorting: lower is better.
func (s EligibilityStatus) Rank() int {
	switch s {
	case StatusEligible:
		return 0
	case StatusPartial:
		return 1
	case StatusUnknown:
		return 2
	default:
		return 3
	}
}

// Actionable reports whether the citizen can apply right away.
func (s EligibilityStatus) Actionable() bool {
	return s == StatusEligible || s == StatusPartial
}

// MatchExplanation records why a service scored the way it did.
type MatchExplanation struct {
	CategoryMatched bool     `json:"categoryMatched"`
	MatchedEntities []string `json:"matchedEntities,omitempty"`
	MatchedKeywords []string `json:"matchedKeywords,omitempty"`
	CategoryScore   float64  `json:"categoryScore"`
	OverlapScore    float64  `json:"overlapScore"`
	SemanticScore   float64  `json:"semanticScore"`
	SemanticFailed  bool     `json:"semanticFailed,omitempty"`
}

// ServiceMatch is one ranked result.
type ServiceMatch struct {
	Service           *ServiceRecord    `json:"service"`
	RelevanceScore    float64           `json:"relevanceScore"`
	EligibilityStatus EligibilityStatus `json:"eligibilityStatus"`
	MatchedCriteria   []string          `json:"matchedCriteria"`
	MissingCriteria   []string          `json:"missingCriteria"`
	FailedCriteria    []string          `json:"failedCriteria,omitempty"`
	Alternative       bool              `json:"alternative,omitempty"`
	Explanation       MatchExplanation  `json:"explanation"`
}
