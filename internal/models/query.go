// internal/models/query.go
package models

import "sort"

// Intent is the classified purpose of a query.
type Intent struct {
	Category    Category `json:"category"`
	Subcategory string   `json:"subcategory,omitempty"`
	Confidence  float64  `json:"confidence"`
	Inherited   bool     `json:"inherited,omitempty"`
}

// Entity is a typed value extracted from a query.
type Entity struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Inherited  bool    `json:"inherited,omitempty"`
}

// ParsedQuery is the typed result of the NLP step.
type ParsedQuery struct {
	Text               string   `json:"text"`
	Intent             Intent   `json:"intent"`
	Entities           []Entity `json:"entities,omitempty"`
	Language           string   `json:"language,omitempty"`
	NeedsClarification bool     `json:"needsClarification"`
}

// Entity returns the last entity of the given type, comparing canonical types.
func (q ParsedQuery) Entity(entityType string) (Entity, bool) {
	want := CanonicalEntityType(entityType)
	for i := len(q.Entities) - 1; i >= 0; i-- {
		if CanonicalEntityType(q.Entities[i].Type) == want {
			return q.Entities[i], true
		}
	}
	return Entity{}, false
}

// EntityTypes returns the sorted canonical entity types present in the query.
func (q ParsedQuery) EntityTypes() []string {
	seen := make(map[string]struct{}, len(q.Entities))
	for _, e := range q.Entities {
		seen[CanonicalEntityType(e.Type)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy so callers can extend entities without aliasing.
func (q ParsedQuery) Clone() ParsedQuery {
	out := q
	if q.Entities != nil {
		out.Entities = make([]Entity, len(q.Entities))
		copy(out.Entities, q.Entities)
	}
	return out
}
