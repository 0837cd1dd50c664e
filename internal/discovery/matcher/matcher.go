// Package matcher turns a parsed query, a profile and a catalog into ranked service matches.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"service-discovery/internal/common/logger"
	"service-discovery/internal/discovery/eligibility"
	"service-discovery/internal/discovery/ranking"
	"service-discovery/internal/models"
)

// EmptyReason explains why a result holds neither matches nor alternatives.
type EmptyReason string

const (
	ReasonNoServicesInRegion EmptyReason = "no_services_in_region"
	ReasonNoMatchingServices EmptyReason = "no_matching_services"
	ReasonCatalogUnavailable EmptyReason = "catalog_unavailable"
)

// MatchResult is the outcome of FindServices.
type MatchResult struct {
	Matches              []models.ServiceMatch
	Alternatives         []models.ServiceMatch
	AlternativesSearched bool
	EmptyReason          EmptyReason
	Degradations         []models.Degradation
	Catalog              Catalog
}

// HasActionable reports whether a primary match is eligible or partial.
func (r *MatchResult) HasActionable() bool {
	return hasActionable(r.Matches)
}

// Empty reports whether nothing at all can be shown.
func (r *MatchResult) Empty() bool {
	return len(r.Matches) == 0 && len(r.Alternatives) == 0
}

type Config struct {
	RelevanceFloor        float64
	PrioritizationEpsilon float64
	MaxResults            int
	AlternativesLimit     int
	// ScoringConcurrency bounds concurrent semantic scorer calls.
	ScoringConcurrency int
}

func DefaultConfig() Config {
	return Config{
		RelevanceFloor:        0.1,
		PrioritizationEpsilon: 0.05,
		MaxResults:            10,
		AlternativesLimit:     3,
		ScoringConcurrency:    8,
	}
}

type Matcher struct {
	evaluator *eligibility.Evaluator
	ranker    *ranking.Ranker
	cfg       Config
	logger    logger.Logger
}

func New(evaluator *eligibility.Evaluator, ranker *ranking.Ranker, cfg Config, log logger.Logger) *Matcher {
	if evaluator == nil {
		evaluator = eligibility.NewEvaluator(eligibility.Builtins())
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	def := DefaultConfig()
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}
	if cfg.AlternativesLimit <= 0 {
		cfg.AlternativesLimit = def.AlternativesLimit
	}
	if cfg.ScoringConcurrency <= 0 {
		cfg.ScoringConcurrency = def.ScoringConcurrency
	}
	return &Matcher{
		evaluator: evaluator,
		ranker:    ranker,
		cfg:       cfg,
		logger:    log.WithFields(map[string]interface{}{"component": "matcher"}),
	}
}

// FindServices evaluates and ranks every service of the catalog available in the
// profile's region. Identical inputs give identical ordered output.
func (m *Matcher) FindServices(ctx context.Context, query models.ParsedQuery, profile models.CitizenProfile, catalog Catalog) *MatchResult {
	result := &MatchResult{Catalog: catalog}

	if catalog.Unavailable {
		result.EmptyReason = ReasonCatalogUnavailable
		result.Degradations = append(result.Degradations, models.Degradation{
			Code:      models.DegradationCatalogUnavailable,
			Component: "catalog",
			Message:   "The service catalog could not be reached and no cached copy exists",
		})
		return result
	}
	if catalog.FromSnapshot {
		result.Degradations = append(result.Degradations, models.Degradation{
			Code:      models.DegradationCatalogSnapshot,
			Component: "catalog",
			Message:   fmt.Sprintf("Results come from a cached catalog saved at %s", catalog.SnapshotAt.UTC().Format(time.RFC3339)),
		})
	}

	candidates := filterRegion(catalog.Services, profile.Region)
	if len(candidates) == 0 {
		result.AlternativesSearched = true
		result.EmptyReason = ReasonNoServicesInRegion
		return result
	}

	scored, semanticFailures := m.scoreAll(ctx, candidates, query, profile)
	if semanticFailures > 0 {
		result.Degradations = append(result.Degradations, models.Degradation{
			Code:      models.DegradationScoreUnavailable,
			Component: "embedding",
			Message:   fmt.Sprintf("Semantic similarity unavailable for %d of %d services", semanticFailures, len(scored)),
		})
	}

	primary := m.primarySet(scored)
	sortMatches(primary, m.cfg.PrioritizationEpsilon)
	primary = m.truncate(primary, scored, query)
	result.Matches = primary

	if !hasActionable(primary) {
		result.AlternativesSearched = true
		result.Alternatives = m.alternatives(scored, primary, query)
	}

	if result.Empty() {
		result.EmptyReason = ReasonNoMatchingServices
	}

	m.logger.Debug("Matched services", map[string]interface{}{
		"candidates":   len(candidates),
		"matches":      len(result.Matches),
		"alternatives": len(result.Alternatives),
		"emptyReason":  string(result.EmptyReason),
	})
	return result
}

func filterRegion(services []models.ServiceRecord, region string) []models.ServiceRecord {
	seen := make(map[string]bool, len(services))
	out := make([]models.ServiceRecord, 0, len(services))
	for _, s := range services {
		if seen[s.ID] || !s.AvailableIn(region) {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	return out
}

// scoreAll evaluates eligibility and relevance for every candidate. Semantic scores are
// fetched concurrently and written by index.
func (m *Matcher) scoreAll(ctx context.Context, candidates []models.ServiceRecord, query models.ParsedQuery, profile models.CitizenProfile) ([]models.ServiceMatch, int) {
	semantic := make([]float64, len(candidates))
	semanticErr := make([]error, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.ScoringConcurrency)
	for i := range candidates {
		i := i
		g.Go(func() error {
			semantic[i], semanticErr[i] = m.ranker.Semantic(gctx, &candidates[i], query)
			return nil
		})
	}
	_ = g.Wait()

	failures := 0
	out := make([]models.ServiceMatch, len(candidates))
	for i := range candidates {
		svc := &candidates[i]
		score := m.ranker.Combine(svc, query, semantic[i], semanticErr[i])
		if semanticErr[i] != nil && !errors.Is(semanticErr[i], ranking.ErrNoScorer) {
			failures++
		}
		verdict := m.evaluator.Evaluate(svc.Criteria, profile)
		out[i] = models.ServiceMatch{
			Service:           svc,
			RelevanceScore:    score.Value,
			EligibilityStatus: verdict.Status,
			MatchedCriteria:   verdict.Matched,
			MissingCriteria:   verdict.Missing,
			FailedCriteria:    verdict.Failed,
			Explanation:       score.Explanation,
		}
	}
	return out, failures
}

// primarySet drops ineligible services and those under the relevance floor. Eligible or
// partial services under the floor are kept when nothing above it is actionable.
func (m *Matcher) primarySet(scored []models.ServiceMatch) []models.ServiceMatch {
	var above, belowActionable []models.ServiceMatch
	for _, s := range scored {
		if s.EligibilityStatus == models.StatusIneligible {
			continue
		}
		switch {
		case s.RelevanceScore >= m.cfg.RelevanceFloor:
			above = append(above, s)
		case s.EligibilityStatus.Actionable() && s.RelevanceScore > 0:
			belowActionable = append(belowActionable, s)
		}
	}
	if !hasActionable(above) {
		above = append(above, belowActionable...)
	}
	return above
}

// truncate keeps MaxResults matches. Education queries keep one vocational or
// alternative-pathway service that is not ineligible when the catalog has one.
func (m *Matcher) truncate(primary, scored []models.ServiceMatch, query models.ParsedQuery) []models.ServiceMatch {
	window := primary
	if len(window) > m.cfg.MaxResults {
		window = append([]models.ServiceMatch(nil), primary[:m.cfg.MaxResults]...)
	}
	if query.Intent.Category != models.CategoryEducation {
		return window
	}
	for _, s := range window {
		if s.Service.IsAlternativePathway() {
			return window
		}
	}

	pathway, ok := bestPathway(primary[len(window):], m.cfg.PrioritizationEpsilon)
	if !ok {
		pathway, ok = bestPathway(scored, m.cfg.PrioritizationEpsilon)
	}
	if !ok {
		return window
	}
	if len(window) >= m.cfg.MaxResults {
		window[len(window)-1] = pathway
		return window
	}
	return append(window, pathway)
}

func bestPathway(pool []models.ServiceMatch, epsilon float64) (models.ServiceMatch, bool) {
	var candidates []models.ServiceMatch
	for _, s := range pool {
		if s.Service.IsAlternativePathway() && s.EligibilityStatus != models.StatusIneligible {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return models.ServiceMatch{}, false
	}
	sortMatches(candidates, epsilon)
	return candidates[0], true
}

// alternatives ranks same-category services regardless of eligibility, skipping those
// already shown. Statuses are kept as computed.
func (m *Matcher) alternatives(scored, primary []models.ServiceMatch, query models.ParsedQuery) []models.ServiceMatch {
	shown := make(map[string]bool, len(primary))
	for _, p := range primary {
		shown[p.Service.ID] = true
	}

	var out []models.ServiceMatch
	for _, s := range scored {
		if shown[s.Service.ID] {
			continue
		}
		if query.Intent.Category != "" && s.Service.Category != query.Intent.Category {
			continue
		}
		s.Alternative = true
		out = append(out, s)
	}
	sortByRelevance(out)
	if len(out) > m.cfg.AlternativesLimit {
		out = out[:m.cfg.AlternativesLimit]
	}
	return out
}

func hasActionable(matches []models.ServiceMatch) bool {
	for _, s := range matches {
		if s.EligibilityStatus.Actionable() {
			return true
		}
	}
	return false
}
