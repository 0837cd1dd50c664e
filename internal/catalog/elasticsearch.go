package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	apperrors "service-discovery/internal/common/errors"
	"service-discovery/internal/common/logger"
	"service-discovery/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const defaultSearchSize = 500

// ElasticsearchLookup reads services from a search index whose documents are ServiceRecords.
type ElasticsearchLookup struct {
	client  *elasticsearch.Client
	index   string
	size    int
	timeout time.Duration
	logger  logger.Logger
}

// NewElasticsearchLookup creates a lookup over index.
func NewElasticsearchLookup(client *elasticsearch.Client, index string, timeout time.Duration, log logger.Logger) *ElasticsearchLookup {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &ElasticsearchLookup{
		client:  client,
		index:   index,
		size:    defaultSearchSize,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "catalog-elasticsearch"}),
	}
}

func (e *ElasticsearchLookup) Name() string { return "elasticsearch" }

// Lookup searches the index for services of category available in region.
func (e *ElasticsearchLookup) Lookup(ctx context.Context, category models.Category, region string) ([]models.ServiceRecord, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildSearchQuery(category, models.NormalizeRegion(region), e.size)); err != nil {
		return nil, fmt.Errorf("encode search query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{e.index},
		Body:  &buf,
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError("catalog_lookup", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, apperrors.NewIndexNotFoundError(e.index)
	}
	if res.IsError() {
		return nil, apperrors.NewSearchQueryFailedError("catalog_lookup", fmt.Errorf("search error: %s", res.String()))
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source models.ServiceRecord `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, apperrors.NewSearchQueryFailedError("catalog_lookup", fmt.Errorf("decode response: %w", err))
	}

	services := make([]models.ServiceRecord, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		services = append(services, Normalize(hit.Source))
	}
	sort.Slice(services, func(i, j int) bool { return services[i].ID < services[j].ID })

	e.logger.Debug("Catalog search completed", map[string]interface{}{
		"category": string(category),
		"region":   region,
		"count":    len(services),
	})
	return services, nil
}

func buildSearchQuery(category models.Category, region string, size int) map[string]interface{} {
	var filters []interface{}
	if category != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"category": string(category)},
		})
	}
	if region != "" {
		// Documents without regions are national.
		filters = append(filters, map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []interface{}{
					map[string]interface{}{"terms": map[string]interface{}{"regions": []string{region, models.RegionNational}}},
					map[string]interface{}{"bool": map[string]interface{}{
						"must_not": map[string]interface{}{"exists": map[string]interface{}{"field": "regions"}},
					}},
				},
				"minimum_should_match": 1,
			},
		})
	}

	query := map[string]interface{}{"match_all": map[string]interface{}{}}
	if len(filters) > 0 {
		query = map[string]interface{}{"bool": map[string]interface{}{"filter": filters}}
	}
	return map[string]interface{}{
		"size":  size,
		"query": query,
	}
}

// Index writes services into the index with one bulk request, keyed by service ID.
func (e *ElasticsearchLookup) Index(ctx context.Context, services []models.ServiceRecord) error {
	if len(services) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, s := range services {
		meta := map[string]interface{}{"index": map[string]interface{}{"_index": e.index, "_id": s.ID}}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("encode bulk meta: %w", err)
		}
		if err := enc.Encode(Normalize(s)); err != nil {
			return fmt.Errorf("encode service %s: %w", s.ID, err)
		}
	}

	req := esapi.BulkRequest{
		Body:    &body,
		Refresh: "true",
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return apperrors.NewSearchQueryFailedError("catalog_index", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return apperrors.NewSearchQueryFailedError("catalog_index", fmt.Errorf("bulk error: %s", res.String()))
	}

	var result struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  *struct {
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return apperrors.NewSearchQueryFailedError("catalog_index", fmt.Errorf("decode response: %w", err))
	}
	if result.Errors {
		var failed []string
		for _, item := range result.Items {
			for _, op := range item {
				if op.Error != nil {
					failed = append(failed, fmt.Sprintf("%s: %s", op.ID, op.Error.Reason))
				}
			}
		}
		return apperrors.NewSearchQueryFailedError("catalog_index", fmt.Errorf("bulk item failures: %s", strings.Join(failed, "; ")))
	}

	e.logger.Info("Catalog indexed", map[string]interface{}{"index": e.index, "count": len(services)})
	return nil
}
