// internal/models/profile.go
package models

import (
	"strconv"
	"strings"
)

// Profile attribute names readable by eligibility predicates.
const (
	AttrAge            = "age"
	AttrRegion         = "region"
	AttrEducationLevel = "education_level"
	AttrIncome         = "income"
	AttrOccupation     = "occupation"
)

// CitizenProfile is the demographic snapshot used for eligibility. The core only reads it.
type CitizenProfile struct {
	Age            *int            `json:"age,omitempty"`
	Region         string          `json:"region,omitempty"`
	EducationLevel string          `json:"educationLevel,omitempty"`
	Income         *float64        `json:"income,omitempty"`
	Occupation     string          `json:"occupation,omitempty"`
	Memberships    map[string]bool `json:"memberships,omitempty"`
}

// Attribute returns the named attribute as a predicate operand. known is false when the
// profile does not carry the attribute.
func (p CitizenProfile) Attribute(name string) (value interface{}, known bool) {
	switch name {
	case AttrAge:
		if p.Age == nil {
			return nil, false
		}
		return float64(*p.Age), true
	case AttrIncome:
		if p.Income == nil {
			return nil, false
		}
		return *p.Income, true
	case AttrRegion:
		return p.Region, p.Region != ""
	case AttrEducationLevel:
		return p.EducationLevel, p.EducationLevel != ""
	case AttrOccupation:
		return p.Occupation, p.Occupation != ""
	}
	return nil, false
}

// Membership reports a membership flag. known is false when the flag was never recorded.
func (p CitizenProfile) Membership(flag string) (member bool, known bool) {
	if p.Memberships == nil {
		return false, false
	}
	member, known = p.Memberships[flag]
	return member, known
}

// Clone copies the profile including its pointer and map fields.
func (p CitizenProfile) Clone() CitizenProfile {
	out := p
	if p.Age != nil {
		age := *p.Age
		out.Age = &age
	}
	if p.Income != nil {
		income := *p.Income
		out.Income = &income
	}
	if p.Memberships != nil {
		out.Memberships = make(map[string]bool, len(p.Memberships))
		for k, v := range p.Memberships {
			out.Memberships[k] = v
		}
	}
	return out
}

// IsEmpty reports whether no attribute is set.
func (p CitizenProfile) IsEmpty() bool {
	return p.Age == nil && p.Region == "" && p.EducationLevel == "" && p.Income == nil &&
		p.Occupation == "" && len(p.Memberships) == 0
}

// WithQueryEntities returns a copy of the profile where entities describing the person
// override the stored attributes. Entities inherited from earlier turns only fill
// attributes the profile leaves unset. The receiver is left untouched.
func (p CitizenProfile) WithQueryEntities(q ParsedQuery) CitizenProfile {
	out := p.Clone()

	for _, e := range q.Entities {
		value := strings.TrimSpace(e.Value)
		if value == "" {
			continue
		}
		if e.Inherited && p.has(CanonicalEntityType(e.Type)) {
			continue
		}
		switch CanonicalEntityType(e.Type) {
		case AttrAge:
			if age, err := strconv.Atoi(value); err == nil && age >= 0 {
				out.Age = &age
			}
		case AttrIncome:
			if income, err := strconv.ParseFloat(value, 64); err == nil && income >= 0 {
				out.Income = &income
			}
		case AttrRegion:
			out.Region = NormalizeRegion(value)
		case AttrEducationLevel:
			out.EducationLevel = strings.ToLower(value)
		case AttrOccupation:
			out.Occupation = strings.ToLower(value)
		}
	}
	return out
}

// has reports whether the attribute is set on the profile.
func (p CitizenProfile) has(attr string) bool {
	switch attr {
	case AttrAge:
		return p.Age != nil
	case AttrIncome:
		return p.Income != nil
	case AttrRegion:
		return p.Region != ""
	case AttrEducationLevel:
		return p.EducationLevel != ""
	case AttrOccupation:
		return p.Occupation != ""
	}
	return false
}

// entityAliases maps NLP entity type names onto profile attribute names.
var entityAliases = map[string]string{
	"age":             AttrAge,
	"age_group":       AttrAge,
	"region":          AttrRegion,
	"location":        AttrRegion,
	"state":           AttrRegion,
	"education":       AttrEducationLevel,
	"education_level": AttrEducationLevel,
	"qualification":   AttrEducationLevel,
	"income":          AttrIncome,
	"annual_income":   AttrIncome,
	"occupation":      AttrOccupation,
	"profession":      AttrOccupation,
}

// CanonicalEntityType folds entity type aliases onto the attribute they describe.
// Unknown types are returned lower-cased.
func CanonicalEntityType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if canonical, ok := entityAliases[t]; ok {
		return canonical
	}
	return t
}
