package matcher

import (
	"context"
	"fmt"
	"time"

	"service-discovery/internal/common/metrics"
	"service-discovery/internal/models"
)

// Lookup fetches the services of a category available in a region. An empty category
// means every category.
type Lookup interface {
	Lookup(ctx context.Context, category models.Category, region string) ([]models.ServiceRecord, error)
}

// SnapshotStore keeps the most recent successful lookup per key.
type SnapshotStore interface {
	Save(ctx context.Context, key string, services []models.ServiceRecord) error
	Latest(ctx context.Context, key string) (services []models.ServiceRecord, savedAt time.Time, found bool, err error)
}

// Catalog is the set of services a matching call runs against.
type Catalog struct {
	Services     []models.ServiceRecord
	Source       string
	FromSnapshot bool
	SnapshotAt   time.Time
	// Unavailable is the empty-with-reason marker: neither the live catalog nor a snapshot could be read.
	Unavailable bool
	Err         error
}

// StaticCatalog wraps an in-memory service list.
func StaticCatalog(services []models.ServiceRecord) Catalog {
	return Catalog{Services: services, Source: "static"}
}

// SnapshotKey is the snapshot key of a (category, region) lookup.
func SnapshotKey(category models.Category, region string) string {
	c := string(category)
	if c == "" {
		c = "all"
	}
	r := models.NormalizeRegion(region)
	if r == "" {
		r = models.RegionNational
	}
	return fmt.Sprintf("%s:%s", c, r)
}

// ResolveCatalog reads the live catalog and refreshes the snapshot. When the live lookup
// fails it serves the most recent snapshot; with no snapshot it returns an Unavailable catalog.
func (m *Matcher) ResolveCatalog(ctx context.Context, lookup Lookup, snapshots SnapshotStore, category models.Category, region string) Catalog {
	key := SnapshotKey(category, region)

	var lookupErr error
	if lookup == nil {
		lookupErr = fmt.Errorf("no catalog lookup configured")
	} else {
		services, err := lookup.Lookup(ctx, category, region)
		if err == nil {
			metrics.CatalogLookups.WithLabelValues("live", "success").Inc()
			if snapshots != nil {
				if saveErr := snapshots.Save(ctx, key, services); saveErr != nil {
					m.logger.Warn("Failed to save catalog snapshot", map[string]interface{}{
						"key":   key,
						"error": saveErr.Error(),
					})
				}
			}
			return Catalog{Services: services, Source: "live"}
		}
		lookupErr = err
		metrics.CatalogLookups.WithLabelValues("live", "error").Inc()
	}

	m.logger.Warn("Catalog lookup failed", map[string]interface{}{
		"category": string(category),
		"region":   region,
		"error":    lookupErr.Error(),
	})

	if snapshots != nil {
		services, savedAt, found, err := snapshots.Latest(ctx, key)
		switch {
		case err != nil:
			m.logger.Warn("Catalog snapshot read failed", map[string]interface{}{"key": key, "error": err.Error()})
		case found:
			metrics.CatalogLookups.WithLabelValues("snapshot", "success").Inc()
			return Catalog{Services: services, Source: "snapshot", FromSnapshot: true, SnapshotAt: savedAt, Err: lookupErr}
		}
	}

	metrics.CatalogLookups.WithLabelValues("snapshot", "miss").Inc()
	return Catalog{Source: "none", Unavailable: true, Err: lookupErr}
}
