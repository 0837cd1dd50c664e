package eligibility

import (
	"strconv"
	"strings"

	"service-discovery/internal/models"
)

// Outcome is the three-valued result of a single criterion.
type Outcome string

const (
	Matched   Outcome = "matched"
	Unmatched Outcome = "unmatched"
	Unknown   Outcome = "unknown"
)

func outcomeOf(ok bool) Outcome {
	if ok {
		return Matched
	}
	return Unmatched
}

// CustomPredicate is a named pure rule over the profile. It must not perform I/O.
type CustomPredicate func(profile models.CitizenProfile) Outcome

// evalPredicate interprets a predicate. Malformed predicates evaluate Unknown.
func (e *Evaluator) evalPredicate(p *models.Predicate, profile models.CitizenProfile) Outcome {
	if p == nil {
		return Unknown
	}
	switch p.Kind {
	case models.PredicateRange:
		return evalRange(p, profile)
	case models.PredicateEnum:
		return evalEnum(p, profile)
	case models.PredicateMembership:
		if p.Flag == "" {
			return Unknown
		}
		member, known := profile.Membership(p.Flag)
		if !known {
			return Unknown
		}
		return outcomeOf(member)
	case models.PredicateCustom:
		return e.evalCustom(p.Name, profile)
	default:
		return Unknown
	}
}

func evalRange(p *models.Predicate, profile models.CitizenProfile) Outcome {
	if p.Min == nil && p.Max == nil {
		return Unknown
	}
	raw, known := profile.Attribute(p.Attribute)
	if !known {
		return Unknown
	}
	value, ok := toFloat(raw)
	if !ok {
		return Unknown
	}
	if p.Min != nil && value < *p.Min {
		return Unmatched
	}
	if p.Max != nil && value > *p.Max {
		return Unmatched
	}
	return Matched
}

func evalEnum(p *models.Predicate, profile models.CitizenProfile) Outcome {
	if len(p.Values) == 0 {
		return Unknown
	}
	raw, known := profile.Attribute(p.Attribute)
	if !known {
		return Unknown
	}
	value := normalizeOperand(p.Attribute, toString(raw))
	for _, v := range p.Values {
		if normalizeOperand(p.Attribute, v) == value {
			return Matched
		}
	}
	return Unmatched
}

func (e *Evaluator) evalCustom(name string, profile models.CitizenProfile) (out Outcome) {
	fn, ok := e.custom[name]
	if !ok || fn == nil {
		return Unknown
	}
	defer func() {
		if recover() != nil {
			out = Unknown
		}
	}()
	switch result := fn(profile); result {
	case Matched, Unmatched:
		return result
	default:
		return Unknown
	}
}

func normalizeOperand(attribute, v string) string {
	if attribute == models.AttrRegion {
		return models.NormalizeRegion(v)
	}
	return strings.ToLower(strings.TrimSpace(v))
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}
