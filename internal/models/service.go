// internal/models/service.go
package models

import (
	"strings"
	"time"
)

// Category is the closed set of service categories.
type Category string

const (
	CategoryHealthcare  Category = "healthcare"
	CategoryWelfare     Category = "welfare"
	CategoryEmployment  Category = "employment"
	CategoryEducation   Category = "education"
	CategoryLegal       Category = "legal"
	CategoryHousing     Category = "housing"
	CategoryAgriculture Category = "agriculture"
	CategoryOther       Category = "other"
)

// Categories lists every category in presentation order.
var Categories = []Category{
	CategoryHealthcare,
	CategoryWelfare,
	CategoryEmployment,
	CategoryEducation,
	CategoryLegal,
	CategoryHousing,
	CategoryAgriculture,
	CategoryOther,
}

// ParseCategory maps free text onto a category. Unrecognized values map to "".
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c
		}
	}
	return ""
}

// CriterionType controls how a criterion outcome feeds the eligibility status.
type CriterionType string

const (
	CriterionRequired      CriterionType = "required"
	CriterionPreferred     CriterionType = "preferred"
	CriterionDisqualifying CriterionType = "disqualifying"
)

// PredicateKind tags the predicate variant.
type PredicateKind string

const (
	PredicateRange      PredicateKind = "range"
	PredicateEnum       PredicateKind = "enum"
	PredicateMembership PredicateKind = "membership"
	PredicateCustom     PredicateKind = "custom"
)

// Predicate is a declarative rule over one profile attribute.
//
//	range:      Attribute within [Min, Max] (either bound optional)
//	enum:       Attribute equal to one of Values (case-insensitive)
//	membership: Memberships[Flag] is true
//	custom:     a registered pure function looked up by Name
type Predicate struct {
	Kind      PredicateKind `json:"kind"`
	Attribute string        `json:"attribute,omitempty"`
	Min       *float64      `json:"min,omitempty"`
	Max       *float64      `json:"max,omitempty"`
	Values    []string      `json:"values,omitempty"`
	Flag      string        `json:"flag,omitempty"`
	Name      string        `json:"name,omitempty"`
}

// Criterion is a single eligibility rule of a service.
type Criterion struct {
	ID          string        `json:"id"`
	Description string        `json:"description"`
	Type        CriterionType `json:"type"`
	Checkable   bool          `json:"checkable"`
	Predicate   *Predicate    `json:"predicate,omitempty"`
}

// Source cites where a service record comes from.
type Source struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Service tags with special meaning for matching.
const (
	TagVocational         = "vocational"
	TagAlternativePathway = "alternative_pathway"
)

// ServiceRecord is one catalog entry. Read-only within a matching call.
type ServiceRecord struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Category        Category    `json:"category"`
	Subcategory     string      `json:"subcategory,omitempty"`
	Description     string      `json:"description"`
	Keywords        []string    `json:"keywords,omitempty"`
	Tags            []string    `json:"tags,omitempty"`
	Criteria        []Criterion `json:"criteria,omitempty"`
	Regions         []string    `json:"regions,omitempty"`
	Popularity      float64     `json:"popularity"`
	LastUpdated     time.Time   `json:"lastUpdated"`
	OfficialSource  Source      `json:"officialSource"`
	InclusiveAccess bool        `json:"inclusiveAccess"`
}

// IsNational reports whether the service has no regional restriction.
func (s ServiceRecord) IsNational() bool {
	if len(s.Regions) == 0 {
		return true
	}
	for _, r := range s.Regions {
		if NormalizeRegion(r) == RegionNational {
			return true
		}
	}
	return false
}

// AvailableIn reports whether a citizen of region can use the service.
func (s ServiceRecord) AvailableIn(region string) bool {
	if s.IsNational() {
		return true
	}
	region = NormalizeRegion(region)
	if region == "" {
		return false
	}
	for _, r := range s.Regions {
		if NormalizeRegion(r) == region {
			return true
		}
	}
	return false
}

// HasTag reports whether the service carries tag (case-insensitive).
func (s ServiceRecord) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// IsAlternativePathway marks vocational or non-traditional education routes.
func (s ServiceRecord) IsAlternativePathway() bool {
	return s.HasTag(TagVocational) || s.HasTag(TagAlternativePathway)
}
