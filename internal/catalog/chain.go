package catalog

import (
	"context"
	"errors"
	"fmt"

	apperrors "service-discovery/internal/common/errors"
	"service-discovery/internal/common/logger"
	"service-discovery/internal/models"
)

// Source is a named catalog backend.
type Source interface {
	Name() string
	Lookup(ctx context.Context, category models.Category, region string) ([]models.ServiceRecord, error)
}

// Chain tries each source in order and returns the first successful lookup.
type Chain struct {
	sources []Source
	logger  logger.Logger
}

// NewChain builds a fallback chain. Nil sources are skipped.
func NewChain(log logger.Logger, sources ...Source) *Chain {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	c := &Chain{logger: log.WithFields(map[string]interface{}{"component": "catalog-chain"})}
	for _, s := range sources {
		if s != nil {
			c.sources = append(c.sources, s)
		}
	}
	return c
}

// Sources lists the backend names in lookup order.
func (c *Chain) Sources() []string {
	names := make([]string, len(c.sources))
	for i, s := range c.sources {
		names[i] = s.Name()
	}
	return names
}

// Lookup returns CATALOG_UNAVAILABLE when every source fails.
func (c *Chain) Lookup(ctx context.Context, category models.Category, region string) ([]models.ServiceRecord, error) {
	if len(c.sources) == 0 {
		return nil, apperrors.NewCatalogUnavailableError(errors.New("no catalog sources configured"))
	}

	var errs []error
	for _, s := range c.sources {
		services, err := s.Lookup(ctx, category, region)
		if err == nil {
			return services, nil
		}
		c.logger.Warn("Catalog source failed", map[string]interface{}{
			"source":   s.Name(),
			"category": string(category),
			"region":   region,
			"error":    err.Error(),
		})
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, apperrors.NewCatalogUnavailableError(errors.Join(errs...))
}
