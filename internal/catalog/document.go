// Package catalog reads the service catalog from Elasticsearch, Postgres or a JSON file and
// keeps snapshots of successful lookups.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	apperrors "service-discovery/internal/common/errors"
	"service-discovery/internal/common/validation"
	"service-discovery/internal/models"
)

// Document is the on-disk catalog format.
type Document struct {
	Version  string                 `json:"version,omitempty"`
	Services []models.ServiceRecord `json:"services"`
}

// Decode validates a JSON catalog document against the catalog schema, then checks the
// constraints a schema cannot express. Region codes are normalized.
func Decode(data []byte) (*Document, error) {
	if result := validation.ValidateCatalog(data); !result.Valid {
		return nil, apperrors.NewCatalogInvalidError(result.Error())
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.NewCatalogInvalidError(err.Error())
	}

	for i := range doc.Services {
		doc.Services[i] = Normalize(doc.Services[i])
	}
	if err := Check(doc.Services); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ReadFile decodes the catalog document at path.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Decode(data)
}

// Normalize upper-cases region codes through the alias table and drops duplicates.
func Normalize(s models.ServiceRecord) models.ServiceRecord {
	if len(s.Regions) == 0 {
		return s
	}
	seen := make(map[string]bool, len(s.Regions))
	regions := make([]string, 0, len(s.Regions))
	for _, r := range s.Regions {
		code := models.NormalizeRegion(r)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		regions = append(regions, code)
	}
	s.Regions = regions
	return s
}

// Check enforces unique service IDs and well-formed predicates.
func Check(services []models.ServiceRecord) error {
	var problems []string
	ids := make(map[string]bool, len(services))

	for _, s := range services {
		if s.ID == "" {
			problems = append(problems, "service with empty id")
			continue
		}
		if ids[s.ID] {
			problems = append(problems, fmt.Sprintf("%s: duplicate id", s.ID))
		}
		ids[s.ID] = true

		if models.ParseCategory(string(s.Category)) == "" {
			problems = append(problems, fmt.Sprintf("%s: unknown category %q", s.ID, s.Category))
		}
		for _, c := range s.Criteria {
			if msg := checkCriterion(c); msg != "" {
				problems = append(problems, fmt.Sprintf("%s/%s: %s", s.ID, c.ID, msg))
			}
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return apperrors.NewCatalogInvalidError(strings.Join(problems, "; "))
	}
	return nil
}

func checkCriterion(c models.Criterion) string {
	switch c.Type {
	case models.CriterionRequired, models.CriterionPreferred, models.CriterionDisqualifying:
	default:
		return fmt.Sprintf("unknown criterion type %q", c.Type)
	}

	p := c.Predicate
	if p == nil {
		if c.Checkable {
			return "checkable criterion without predicate"
		}
		return ""
	}

	switch p.Kind {
	case models.PredicateRange:
		if p.Attribute == "" {
			return "range predicate without attribute"
		}
		if p.Min == nil && p.Max == nil {
			return "range predicate without bounds"
		}
		if p.Min != nil && p.Max != nil && *p.Min > *p.Max {
			return "range predicate with min above max"
		}
	case models.PredicateEnum:
		if p.Attribute == "" || len(p.Values) == 0 {
			return "enum predicate needs attribute and values"
		}
	case models.PredicateMembership:
		if p.Flag == "" {
			return "membership predicate without flag"
		}
	case models.PredicateCustom:
		if p.Name == "" {
			return "custom predicate without name"
		}
	default:
		return fmt.Sprintf("unknown predicate kind %q", p.Kind)
	}
	return ""
}
