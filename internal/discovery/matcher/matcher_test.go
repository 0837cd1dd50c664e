package matcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"service-discovery/internal/common/logger"
	"service-discovery/internal/discovery/eligibility"
	"service-discovery/internal/discovery/ranking"
	"service-discovery/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func intPtr(v int) *int { return &v }

func f(v float64) *float64 { return &v }

func ageCriterion(min, max float64) models.Criterion {
	return models.Criterion{
		ID: "age", Description: "Applicant age", Type: models.CriterionRequired, Checkable: true,
		Predicate: &models.Predicate{Kind: models.PredicateRange, Attribute: models.AttrAge, Min: f(min), Max: f(max)},
	}
}

func healthcareCatalog() []models.ServiceRecord {
	return []models.ServiceRecord{
		{
			ID: "hc-tn-diabetes", Name: "Diabetes Care Programme", Category: models.CategoryHealthcare,
			Description: "Free diabetes screening and treatment", Keywords: []string{"diabetes", "treatment", "insulin"},
			Regions: []string{"TN"}, Criteria: []models.Criterion{ageCriterion(30, 70)}, Popularity: 0.8,
		},
		{
			ID: "hc-national-insurance", Name: "National Health Insurance", Category: models.CategoryHealthcare,
			Description: "Hospital cover for families", Keywords: []string{"insurance", "hospital", "treatment"},
			Regions: []string{"national"}, Popularity: 0.9,
		},
		{
			ID: "hc-mh-diabetes", Name: "Maharashtra Diabetes Clinics", Category: models.CategoryHealthcare,
			Description: "Diabetes clinics across Maharashtra", Keywords: []string{"diabetes"},
			Regions: []string{"MH"}, Popularity: 0.7,
		},
		{
			ID: "hc-tn-paediatric", Name: "Child Health Scheme", Category: models.CategoryHealthcare,
			Description: "Paediatric treatment", Keywords: []string{"child", "treatment"},
			Regions: []string{"TN"}, Criteria: []models.Criterion{ageCriterion(0, 12)}, Popularity: 0.5,
		},
		{
			ID: "wf-tn-pension", Name: "Old Age Pension", Category: models.CategoryWelfare,
			Description: "Monthly pension", Keywords: []string{"pension"},
			Regions: []string{"TN"}, Criteria: []models.Criterion{ageCriterion(60, 120)}, Popularity: 0.6,
		},
	}
}

func newMatcher(t *testing.T, scorer ranking.SemanticScorer, weights ranking.Weights, cfg Config) *Matcher {
	log := logger.NewTestLogger(t)
	return New(eligibility.NewEvaluator(eligibility.Builtins()), ranking.NewRanker(weights, scorer, log), cfg, log)
}

// scoresByID makes the semantic term the whole score so tests control relevance exactly.
func scoresByID(services []models.ServiceRecord, scores map[string]float64) ranking.SemanticScorer {
	byDescription := map[string]float64{}
	for _, s := range services {
		byDescription[s.Description] = scores[s.ID]
	}
	return ranking.SemanticScorerFunc(func(_ context.Context, description, _ string) (float64, error) {
		return byDescription[description], nil
	})
}

func semanticOnly() ranking.Weights { return ranking.Weights{Semantic: 1} }

func diabetesQuery() models.ParsedQuery {
	return models.ParsedQuery{
		Text:   "diabetes treatment help",
		Intent: models.Intent{Category: models.CategoryHealthcare, Confidence: 0.9},
	}
}

func ids(matches []models.ServiceMatch) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Service.ID)
	}
	return out
}

// ==========================
// Scenario Tests
// ==========================

func TestFindServices_TamilNaduDiabetes(t *testing.T) {
	m := newMatcher(t, nil, ranking.DefaultWeights, DefaultConfig())
	profile := models.CitizenProfile{Age: intPtr(45), Region: "TN"}

	res := m.FindServices(context.Background(), diabetesQuery(), profile, StaticCatalog(healthcareCatalog()))

	require.NotEmpty(t, res.Matches)
	assert.Equal(t, "hc-tn-diabetes", res.Matches[0].Service.ID)
	for _, match := range res.Matches {
		assert.NotEqual(t, models.StatusIneligible, match.EligibilityStatus)
		assert.True(t, match.Service.AvailableIn("TN"))
		assert.NotEqual(t, "hc-mh-diabetes", match.Service.ID)
	}
	assert.False(t, res.AlternativesSearched)
	assert.Empty(t, res.EmptyReason)
}

func TestFindServices_IneligibleNeverPrimary(t *testing.T) {
	m := newMatcher(t, nil, ranking.DefaultWeights, DefaultConfig())

	for _, age := range []int{5, 45, 65, 90} {
		profile := models.CitizenProfile{Age: intPtr(age), Region: "TN"}
		res := m.FindServices(context.Background(), diabetesQuery(), profile, StaticCatalog(healthcareCatalog()))
		for _, match := range res.Matches {
			assert.NotEqual(t, models.StatusIneligible, match.EligibilityStatus, "age %d service %s", age, match.Service.ID)
		}
	}
}

func TestFindServices_IneligibleForAllReturnsComputedAlternatives(t *testing.T) {
	catalog := []models.ServiceRecord{
		{ID: "hc-a", Category: models.CategoryHealthcare, Description: "a", Keywords: []string{"diabetes"}, Regions: []string{"TN"}, Criteria: []models.Criterion{ageCriterion(18, 40)}},
		{ID: "hc-b", Category: models.CategoryHealthcare, Description: "b", Keywords: []string{"treatment"}, Regions: []string{"TN"}, Criteria: []models.Criterion{ageCriterion(0, 12)}},
		{ID: "wf-c", Category: models.CategoryWelfare, Description: "c", Regions: []string{"TN"}, Criteria: []models.Criterion{ageCriterion(0, 12)}},
	}
	m := newMatcher(t, nil, ranking.DefaultWeights, DefaultConfig())
	profile := models.CitizenProfile{Age: intPtr(85), Region: "TN"}

	res := m.FindServices(context.Background(), diabetesQuery(), profile, StaticCatalog(catalog))

	assert.Empty(t, res.Matches)
	assert.True(t, res.AlternativesSearched)
	require.Len(t, res.Alternatives, 2)
	for _, alt := range res.Alternatives {
		assert.True(t, alt.Alternative)
		assert.Equal(t, models.CategoryHealthcare, alt.Service.Category)
		assert.Equal(t, models.StatusIneligible, alt.EligibilityStatus)
		assert.Equal(t, []string{"age"}, alt.FailedCriteria)
	}
	assert.Empty(t, res.EmptyReason)
}

func TestFindServices_RegionalExclusion(t *testing.T) {
	m := newMatcher(t, nil, ranking.DefaultWeights, DefaultConfig())

	res := m.FindServices(context.Background(), diabetesQuery(),
		models.CitizenProfile{Age: intPtr(45), Region: "Kerala"}, StaticCatalog(healthcareCatalog()))

	assert.Equal(t, []string{"hc-national-insurance"}, ids(res.Matches))
}

func TestFindServices_UnknownRegionOnlyNational(t *testing.T) {
	m := newMatcher(t, nil, ranking.DefaultWeights, DefaultConfig())

	res := m.FindServices(context.Background(), diabetesQuery(),
		models.CitizenProfile{Age: intPtr(45)}, StaticCatalog(healthcareCatalog()))

	for _, match := range res.Matches {
		assert.True(t, match.Service.IsNational())
	}
}

func TestFindServices_NoServicesInRegion(t *testing.T) {
	m := newMatcher(t, nil, ranking.DefaultWeights, DefaultConfig())
	catalog := []models.ServiceRecord{{ID: "mh-only", Category: models.CategoryHealthcare, Regions: []string{"MH"}}}

	res := m.FindServices(context.Background(), diabetesQuery(), models.CitizenProfile{Region: "TN"}, StaticCatalog(catalog))

	assert.True(t, res.Empty())
	assert.True(t, res.AlternativesSearched)
	assert.Equal(t, ReasonNoServicesInRegion, res.EmptyReason)
}

func TestFindServices_NoMatchingServices(t *testing.T) {
	m := newMatcher(t, nil, ranking.DefaultWeights, DefaultConfig())
	catalog := []models.ServiceRecord{
		{ID: "legal-aid", Category: models.CategoryLegal, Description: "Legal aid", Criteria: []models.Criterion{ageCriterion(0, 17)}},
	}

	res := m.FindServices(context.Background(), diabetesQuery(), models.CitizenProfile{Age: intPtr(45), Region: "TN"}, StaticCatalog(catalog))

	assert.True(t, res.Empty())
	assert.Equal(t, ReasonNoMatchingServices, res.EmptyReason)
}

func TestFindServices_CatalogUnavailable(t *testing.T) {
	m := newMatcher(t, nil, ranking.DefaultWeights, DefaultConfig())

	res := m.FindServices(context.Background(), diabetesQuery(), models.CitizenProfile{}, Catalog{Unavailable: true})

	assert.Equal(t, ReasonCatalogUnavailable, res.EmptyReason)
	require.Len(t, res.Degradations, 1)
	assert.Equal(t, models.DegradationCatalogUnavailable, res.Degradations[0].Code)
}

func TestFindServices_Deterministic(t *testing.T) {
	m := newMatcher(t, nil, ranking.DefaultWeights, DefaultConfig())
	profile := models.CitizenProfile{Age: intPtr(45), Region: "TN"}

	catalog := healthcareCatalog()
	reversed := make([]models.ServiceRecord, len(catalog))
	for i := range catalog {
		reversed[len(catalog)-1-i] = catalog[i]
	}

	first := m.FindServices(context.Background(), diabetesQuery(), profile, StaticCatalog(catalog))
	second := m.FindServices(context.Background(), diabetesQuery(), profile, StaticCatalog(catalog))
	third := m.FindServices(context.Background(), diabetesQuery(), profile, StaticCatalog(reversed))

	assert.Equal(t, ids(first.Matches), ids(second.Matches))
	assert.Equal(t, ids(first.Matches), ids(third.Matches))
	for i := range first.Matches {
		assert.Equal(t, first.Matches[i].RelevanceScore, second.Matches[i].RelevanceScore)
	}
}

// ==========================
// Prioritization Tests
// ==========================

func TestFindServices_InclusiveAccessWithinEpsilon(t *testing.T) {
	catalog := []models.ServiceRecord{
		{ID: "a-standard", Category: models.CategoryWelfare, Description: "a"},
		{ID: "b-inclusive", Category: models.CategoryWelfare, Description: "b", InclusiveAccess: true},
		{ID: "c-far", Category: models.CategoryWelfare, Description: "c", InclusiveAccess: true},
	}
	scorer := scoresByID(catalog, map[string]float64{"a-standard": 0.80, "b-inclusive": 0.77, "c-far": 0.60})
	m := newMatcher(t, scorer, semanticOnly(), DefaultConfig())

	res := m.FindServices(context.Background(), models.ParsedQuery{Text: "x"}, models.CitizenProfile{}, StaticCatalog(catalog))

	assert.Equal(t, []string{"b-inclusive", "a-standard", "c-far"}, ids(res.Matches))
}

func TestFindServices_EpsilonIsAbsoluteGap(t *testing.T) {
	catalog := []models.ServiceRecord{
		{ID: "a-standard", Category: models.CategoryWelfare, Description: "a"},
		{ID: "b-inclusive", Category: models.CategoryWelfare, Description: "b", InclusiveAccess: true},
	}
	// 0.04 apart: inside an absolute 0.05 gap, outside 5% of the leader's 0.40.
	scorer := scoresByID(catalog, map[string]float64{"a-standard": 0.40, "b-inclusive": 0.36})
	m := newMatcher(t, scorer, semanticOnly(), DefaultConfig())

	res := m.FindServices(context.Background(), models.ParsedQuery{Text: "x"}, models.CitizenProfile{}, StaticCatalog(catalog))

	assert.Equal(t, []string{"b-inclusive", "a-standard"}, ids(res.Matches))
}

func TestFindServices_StatusRankBeatsRelevance(t *testing.T) {
	catalog := []models.ServiceRecord{
		{ID: "unknown-high", Category: models.CategoryWelfare, Description: "u", Criteria: []models.Criterion{ageCriterion(18, 60)}},
		{ID: "eligible-low", Category: models.CategoryWelfare, Description: "e"},
	}
	scorer := scoresByID(catalog, map[string]float64{"unknown-high": 0.9, "eligible-low": 0.3})
	m := newMatcher(t, scorer, semanticOnly(), DefaultConfig())

	res := m.FindServices(context.Background(), models.ParsedQuery{Text: "x"}, models.CitizenProfile{}, StaticCatalog(catalog))

	assert.Equal(t, []string{"eligible-low", "unknown-high"}, ids(res.Matches))
	assert.Equal(t, []string{"age"}, res.Matches[1].MissingCriteria)
}

func TestFindServices_PopularityBreaksTies(t *testing.T) {
	catalog := []models.ServiceRecord{
		{ID: "a", Category: models.CategoryWelfare, Description: "same", Popularity: 0.2},
		{ID: "b", Category: models.CategoryWelfare, Description: "same", Popularity: 0.9},
	}
	scorer := scoresByID(catalog, map[string]float64{"a": 0.5, "b": 0.5})
	m := newMatcher(t, scorer, semanticOnly(), DefaultConfig())

	res := m.FindServices(context.Background(), models.ParsedQuery{Text: "x"}, models.CitizenProfile{}, StaticCatalog(catalog))

	assert.Equal(t, []string{"b", "a"}, ids(res.Matches))
}

func TestFindServices_BelowFloorEligibleKeptWhenNothingElse(t *testing.T) {
	catalog := []models.ServiceRecord{
		{ID: "eligible-low", Category: models.CategoryWelfare, Description: "low"},
		{ID: "unknown-high", Category: models.CategoryWelfare, Description: "high", Criteria: []models.Criterion{ageCriterion(18, 60)}},
		{ID: "eligible-zero", Category: models.CategoryWelfare, Description: "zero"},
	}
	scorer := scoresByID(catalog, map[string]float64{"eligible-low": 0.05, "unknown-high": 0.9, "eligible-zero": 0})
	m := newMatcher(t, scorer, semanticOnly(), DefaultConfig())

	res := m.FindServices(context.Background(), models.ParsedQuery{Text: "x"}, models.CitizenProfile{}, StaticCatalog(catalog))

	assert.Equal(t, []string{"eligible-low", "unknown-high"}, ids(res.Matches))
	assert.False(t, res.AlternativesSearched)
}

func TestFindServices_EducationKeepsAlternativePathway(t *testing.T) {
	catalog := []models.ServiceRecord{
		{ID: "edu-1", Category: models.CategoryEducation, Description: "1"},
		{ID: "edu-2", Category: models.CategoryEducation, Description: "2"},
		{ID: "edu-3", Category: models.CategoryEducation, Description: "3"},
		{ID: "edu-iti", Category: models.CategoryEducation, Description: "iti", Tags: []string{"vocational"}},
	}
	scorer := scoresByID(catalog, map[string]float64{"edu-1": 0.9, "edu-2": 0.8, "edu-3": 0.7, "edu-iti": 0.2})
	cfg := DefaultConfig()
	cfg.MaxResults = 2
	m := newMatcher(t, scorer, semanticOnly(), cfg)

	query := models.ParsedQuery{Text: "x", Intent: models.Intent{Category: models.CategoryEducation, Confidence: 0.9}}
	res := m.FindServices(context.Background(), query, models.CitizenProfile{}, StaticCatalog(catalog))

	assert.Equal(t, []string{"edu-1", "edu-iti"}, ids(res.Matches))

	query.Intent.Category = models.CategoryWelfare
	res = m.FindServices(context.Background(), query, models.CitizenProfile{}, StaticCatalog(catalog))
	assert.Equal(t, []string{"edu-1", "edu-2"}, ids(res.Matches))
}

func TestFindServices_SemanticFailureIsDegradation(t *testing.T) {
	scorer := ranking.SemanticScorerFunc(func(context.Context, string, string) (float64, error) {
		return 0, errors.New("timeout")
	})
	m := newMatcher(t, scorer, ranking.DefaultWeights, DefaultConfig())

	res := m.FindServices(context.Background(), diabetesQuery(), models.CitizenProfile{Age: intPtr(45), Region: "TN"}, StaticCatalog(healthcareCatalog()))

	require.NotEmpty(t, res.Matches)
	require.Len(t, res.Degradations, 1)
	assert.Equal(t, models.DegradationScoreUnavailable, res.Degradations[0].Code)
	assert.True(t, res.Matches[0].Explanation.SemanticFailed)
}

// ==========================
// ResolveCatalog Tests
// ==========================

type fakeLookup struct {
	services []models.ServiceRecord
	err      error
	calls    int
}

func (l *fakeLookup) Lookup(context.Context, models.Category, string) ([]models.ServiceRecord, error) {
	l.calls++
	return l.services, l.err
}

type memorySnapshots struct {
	mu    sync.Mutex
	saved map[string][]models.ServiceRecord
	at    time.Time
}

func (s *memorySnapshots) Save(_ context.Context, key string, services []models.ServiceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = map[string][]models.ServiceRecord{}
	}
	s.saved[key] = services
	s.at = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return nil
}

func (s *memorySnapshots) Latest(_ context.Context, key string) ([]models.ServiceRecord, time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	services, ok := s.saved[key]
	return services, s.at, ok, nil
}

func TestResolveCatalog(t *testing.T) {
	m := newMatcher(t, nil, ranking.DefaultWeights, DefaultConfig())
	ctx := context.Background()
	snapshots := &memorySnapshots{}

	live := &fakeLookup{services: healthcareCatalog()}
	got := m.ResolveCatalog(ctx, live, snapshots, models.CategoryHealthcare, "Tamil Nadu")
	assert.False(t, got.Unavailable)
	assert.False(t, got.FromSnapshot)
	assert.Len(t, got.Services, 5)
	assert.Contains(t, snapshots.saved, "healthcare:TN")

	down := &fakeLookup{err: errors.New("connection refused")}
	got = m.ResolveCatalog(ctx, down, snapshots, models.CategoryHealthcare, "TN")
	assert.True(t, got.FromSnapshot)
	assert.Len(t, got.Services, 5)
	assert.Error(t, got.Err)

	got = m.ResolveCatalog(ctx, down, snapshots, models.CategoryEducation, "TN")
	assert.True(t, got.Unavailable)

	res := m.FindServices(ctx, diabetesQuery(), models.CitizenProfile{}, got)
	assert.Equal(t, ReasonCatalogUnavailable, res.EmptyReason)
}

func TestResolveCatalog_SnapshotServedIsFlagged(t *testing.T) {
	m := newMatcher(t, nil, ranking.DefaultWeights, DefaultConfig())
	snapshots := &memorySnapshots{}
	require.NoError(t, snapshots.Save(context.Background(), SnapshotKey(models.CategoryHealthcare, "TN"), healthcareCatalog()))

	cat := m.ResolveCatalog(context.Background(), &fakeLookup{err: errors.New("down")}, snapshots, models.CategoryHealthcare, "TN")
	res := m.FindServices(context.Background(), diabetesQuery(), models.CitizenProfile{Age: intPtr(45), Region: "TN"}, cat)

	require.NotEmpty(t, res.Matches)
	require.Len(t, res.Degradations, 1)
	assert.Equal(t, models.DegradationCatalogSnapshot, res.Degradations[0].Code)
}

func TestSnapshotKey(t *testing.T) {
	assert.Equal(t, "all:NATIONAL", SnapshotKey("", ""))
	assert.Equal(t, "education:MH", SnapshotKey(models.CategoryEducation, "maharashtra"))
}
