package eligibility

import (
	"strings"

	"service-discovery/internal/models"
)

// Custom predicate names available to catalog records.
const (
	PredicateSeniorCitizen   = "senior_citizen"
	PredicateLowIncome       = "low_income_household"
	PredicateStudent         = "student"
	PredicateUnderserved     = "underserved_community"
	PredicateWorkingAgeAdult = "working_age_adult"
)

const (
	lowIncomeCeiling = 250000.0
	seniorCitizenAge = 60
	workingAgeMin    = 18
	workingAgeMax    = 59
)

var studentLevels = map[string]bool{
	"secondary":        true,
	"higher_secondary": true,
	"diploma":          true,
	"undergraduate":    true,
	"postgraduate":     true,
	"student":          true,
}

// Builtins returns a fresh copy of the built-in custom predicates.
func Builtins() map[string]CustomPredicate {
	return map[string]CustomPredicate{
		PredicateSeniorCitizen: func(p models.CitizenProfile) Outcome {
			if p.Age == nil {
				return Unknown
			}
			return outcomeOf(*p.Age >= seniorCitizenAge)
		},
		PredicateWorkingAgeAdult: func(p models.CitizenProfile) Outcome {
			if p.Age == nil {
				return Unknown
			}
			return outcomeOf(*p.Age >= workingAgeMin && *p.Age <= workingAgeMax)
		},
		PredicateLowIncome: func(p models.CitizenProfile) Outcome {
			if p.Income == nil {
				if member, known := p.Membership("bpl_card"); known {
					return outcomeOf(member)
				}
				return Unknown
			}
			return outcomeOf(*p.Income <= lowIncomeCeiling)
		},
		PredicateStudent: func(p models.CitizenProfile) Outcome {
			if strings.EqualFold(p.Occupation, "student") {
				return Matched
			}
			if p.Occupation == "" && p.EducationLevel == "" {
				return Unknown
			}
			if p.Occupation == "" {
				return outcomeOf(studentLevels[strings.ToLower(p.EducationLevel)])
			}
			return Unmatched
		},
		PredicateUnderserved: func(p models.CitizenProfile) Outcome {
			member, known := p.Membership("underserved_community")
			if !known {
				return Unknown
			}
			return outcomeOf(member)
		},
	}
}
