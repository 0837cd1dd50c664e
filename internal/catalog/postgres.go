package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "service-discovery/internal/common/errors"
	"service-discovery/internal/common/logger"
	"service-discovery/internal/models"

	"github.com/lib/pq"
)

// Schema creates the services table read by PostgresLookup.
const Schema = `
CREATE TABLE IF NOT EXISTS services (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	category         TEXT NOT NULL,
	subcategory      TEXT NOT NULL DEFAULT '',
	description      TEXT NOT NULL DEFAULT '',
	keywords         TEXT[] NOT NULL DEFAULT '{}',
	tags             TEXT[] NOT NULL DEFAULT '{}',
	regions          TEXT[] NOT NULL DEFAULT '{}',
	criteria         JSONB NOT NULL DEFAULT '[]',
	popularity       DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_updated     TIMESTAMPTZ,
	source_name      TEXT NOT NULL DEFAULT '',
	source_url       TEXT NOT NULL DEFAULT '',
	inclusive_access BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS services_category_idx ON services (category);
CREATE INDEX IF NOT EXISTS services_regions_idx ON services USING GIN (regions);
`

const lookupQuery = `
SELECT id, name, category, subcategory, description, keywords, tags, regions, criteria,
	popularity, last_updated, source_name, source_url, inclusive_access
FROM services
WHERE ($1 = '' OR category = $1)
	AND ($2 = '' OR cardinality(regions) = 0 OR 'NATIONAL' = ANY(regions) OR $2 = ANY(regions))
ORDER BY id`

const upsertQuery = `
INSERT INTO services (id, name, category, subcategory, description, keywords, tags, regions,
	criteria, popularity, last_updated, source_name, source_url, inclusive_access)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	category = EXCLUDED.category,
	subcategory = EXCLUDED.subcategory,
	description = EXCLUDED.description,
	keywords = EXCLUDED.keywords,
	tags = EXCLUDED.tags,
	regions = EXCLUDED.regions,
	criteria = EXCLUDED.criteria,
	popularity = EXCLUDED.popularity,
	last_updated = EXCLUDED.last_updated,
	source_name = EXCLUDED.source_name,
	source_url = EXCLUDED.source_url,
	inclusive_access = EXCLUDED.inclusive_access`

// PostgresLookup reads services from the services table.
type PostgresLookup struct {
	db      *sql.DB
	timeout time.Duration
	logger  logger.Logger
}

// NewPostgresLookup wraps an open database. A zero timeout means the caller's deadline only.
func NewPostgresLookup(db *sql.DB, timeout time.Duration, log logger.Logger) *PostgresLookup {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &PostgresLookup{
		db:      db,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "catalog-postgres"}),
	}
}

// Name identifies the backend in logs and the fallback chain.
func (p *PostgresLookup) Name() string { return "postgres" }

// EnsureSchema creates the services table if it does not exist.
func (p *PostgresLookup) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, Schema); err != nil {
		return apperrors.NewQueryExecutionFailedError("ensure_schema", err)
	}
	return nil
}

// Lookup returns the services of category available in region. National services (no
// regions, or the NATIONAL code) match every region.
func (p *PostgresLookup) Lookup(ctx context.Context, category models.Category, region string) ([]models.ServiceRecord, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	rows, err := p.db.QueryContext(ctx, lookupQuery, string(category), models.NormalizeRegion(region))
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, apperrors.NewQueryTimeoutError("catalog_lookup")
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("catalog_lookup", err)
	}
	defer rows.Close()

	var services []models.ServiceRecord
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("catalog_lookup", err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("catalog_lookup", err)
	}

	p.logger.Debug("Catalog lookup completed", map[string]interface{}{
		"category": string(category),
		"region":   region,
		"count":    len(services),
	})
	return services, nil
}

func scanService(rows *sql.Rows) (models.ServiceRecord, error) {
	var (
		s           models.ServiceRecord
		category    string
		criteria    []byte
		lastUpdated sql.NullTime
	)
	err := rows.Scan(
		&s.ID, &s.Name, &category, &s.Subcategory, &s.Description,
		pq.Array(&s.Keywords), pq.Array(&s.Tags), pq.Array(&s.Regions), &criteria,
		&s.Popularity, &lastUpdated, &s.OfficialSource.Name, &s.OfficialSource.URL, &s.InclusiveAccess,
	)
	if err != nil {
		return s, err
	}
	s.Category = models.Category(category)
	if lastUpdated.Valid {
		s.LastUpdated = lastUpdated.Time.UTC()
	}
	if len(criteria) > 0 {
		if err := json.Unmarshal(criteria, &s.Criteria); err != nil {
			return s, fmt.Errorf("decode criteria of %s: %w", s.ID, err)
		}
	}
	return s, nil
}

// Upsert writes services in one transaction, replacing rows with the same ID.
func (p *PostgresLookup) Upsert(ctx context.Context, services []models.ServiceRecord) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewDatabaseConnectionFailedError(err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertQuery)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("catalog_upsert", err)
	}
	defer stmt.Close()

	for _, s := range services {
		s = Normalize(s)
		if s.Criteria == nil {
			s.Criteria = []models.Criterion{}
		}
		criteria, err := json.Marshal(s.Criteria)
		if err != nil {
			return fmt.Errorf("encode criteria of %s: %w", s.ID, err)
		}
		var lastUpdated interface{}
		if !s.LastUpdated.IsZero() {
			lastUpdated = s.LastUpdated.UTC()
		}
		_, err = stmt.ExecContext(ctx,
			s.ID, s.Name, string(s.Category), s.Subcategory, s.Description,
			pq.Array(nonNil(s.Keywords)), pq.Array(nonNil(s.Tags)), pq.Array(nonNil(s.Regions)), criteria,
			s.Popularity, lastUpdated, s.OfficialSource.Name, s.OfficialSource.URL, s.InclusiveAccess,
		)
		if err != nil {
			return apperrors.NewQueryExecutionFailedError("catalog_upsert", fmt.Errorf("%s: %w", s.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewQueryExecutionFailedError("catalog_upsert", err)
	}
	p.logger.Info("Catalog upserted", map[string]interface{}{"count": len(services)})
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
