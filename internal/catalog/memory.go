package catalog

import (
	"context"
	"sort"
	"sync"

	"service-discovery/internal/models"
)

// Memory is an in-process catalog, loaded from a JSON file or built in tests.
type Memory struct {
	mu       sync.RWMutex
	services []models.ServiceRecord
}

// NewMemory copies services into a new in-memory catalog.
func NewMemory(services []models.ServiceRecord) *Memory {
	m := &Memory{}
	m.Replace(services)
	return m
}

// LoadFile builds an in-memory catalog from a JSON catalog document.
func LoadFile(path string) (*Memory, error) {
	doc, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewMemory(doc.Services), nil
}

// Replace swaps the whole catalog.
func (m *Memory) Replace(services []models.ServiceRecord) {
	cp := make([]models.ServiceRecord, len(services))
	for i, s := range services {
		cp[i] = Normalize(s)
	}
	sort.Slice(cp, func(i, j int) bool { return cp[i].ID < cp[j].ID })

	m.mu.Lock()
	m.services = cp
	m.mu.Unlock()
}

// Len returns the number of services.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.services)
}

// Lookup returns the services of category available in region, ordered by ID.
func (m *Memory) Lookup(ctx context.Context, category models.Category, region string) ([]models.ServiceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.ServiceRecord, 0, len(m.services))
	for _, s := range m.services {
		if category != "" && s.Category != category {
			continue
		}
		if region != "" && !s.AvailableIn(region) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
