// Package eligibility decides whether a citizen profile satisfies a service's criteria.
//
// Evaluation is pure: every criterion is interpreted independently against the profile
// snapshot and the overall status is resolved from the full set of outcomes.
package eligibility

import (
	"service-discovery/internal/models"
)

// Result is the verdict for one service.
type Result struct {
	Status models.EligibilityStatus
	// Matched holds criteria in the citizen's favour: required or preferred criteria that
	// matched, and disqualifying criteria that did not.
	Matched []string
	// Failed holds criteria against the citizen.
	Failed []string
	// Unknown holds every criterion whose outcome could not be decided.
	Unknown []string
	// Missing is the subset of Unknown that is checkable.
	Missing  []string
	Outcomes map[string]Outcome
}

// Evaluator interprets criteria with a fixed set of custom predicates.
type Evaluator struct {
	custom map[string]CustomPredicate
}

// NewEvaluator copies custom so later changes to the caller's map have no effect.
func NewEvaluator(custom map[string]CustomPredicate) *Evaluator {
	registry := make(map[string]CustomPredicate, len(custom))
	for name, fn := range custom {
		registry[name] = fn
	}
	return &Evaluator{custom: registry}
}

var defaultEvaluator = NewEvaluator(Builtins())

// Evaluate runs the built-in evaluator.
func Evaluate(criteria []models.Criterion, profile models.CitizenProfile) Result {
	return defaultEvaluator.Evaluate(criteria, profile)
}

// Evaluate resolves the overall status in priority order:
//
//  1. a disqualifying criterion matched      -> ineligible
//  2. a required criterion unmatched         -> ineligible
//  3. a required or checkable preferred one unknown -> unknown
//  4. all required and preferred matched     -> eligible
//  5. otherwise                              -> partial
func (e *Evaluator) Evaluate(criteria []models.Criterion, profile models.CitizenProfile) Result {
	res := Result{
		Matched:  []string{},
		Failed:   []string{},
		Unknown:  []string{},
		Missing:  []string{},
		Outcomes: make(map[string]Outcome, len(criteria)),
	}

	var (
		disqualified       bool
		requiredFailed     bool
		blockingUnknown    bool
		preferredShortfall bool
	)

	for _, c := range criteria {
		outcome := e.evalPredicate(c.Predicate, profile)
		res.Outcomes[c.ID] = outcome

		if outcome == Unknown {
			res.Unknown = append(res.Unknown, c.ID)
			if c.Checkable {
				res.Missing = append(res.Missing, c.ID)
			}
		}

		switch c.Type {
		case models.CriterionDisqualifying:
			switch outcome {
			case Matched:
				disqualified = true
				res.Failed = append(res.Failed, c.ID)
			case Unmatched:
				res.Matched = append(res.Matched, c.ID)
			}
		case models.CriterionRequired:
			switch outcome {
			case Matched:
				res.Matched = append(res.Matched, c.ID)
			case Unmatched:
				requiredFailed = true
				res.Failed = append(res.Failed, c.ID)
			default:
				blockingUnknown = true
			}
		case models.CriterionPreferred:
			switch outcome {
			case Matched:
				res.Matched = append(res.Matched, c.ID)
			case Unmatched:
				preferredShortfall = true
				res.Failed = append(res.Failed, c.ID)
			default:
				if c.Checkable {
					blockingUnknown = true
				} else {
					preferredShortfall = true
				}
			}
		default:
			// Unrecognized criterion types cannot confirm eligibility.
			if outcome != Matched {
				blockingUnknown = true
			}
		}
	}

	switch {
	case disqualified, requiredFailed:
		res.Status = models.StatusIneligible
	case blockingUnknown:
		res.Status = models.StatusUnknown
	case preferredShortfall:
		res.Status = models.StatusPartial
	default:
		res.Status = models.StatusEligible
	}
	return res
}
