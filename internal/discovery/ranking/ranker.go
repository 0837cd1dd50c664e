// Package ranking scores how well a service answers a parsed query.
package ranking

import (
	"context"
	"errors"
	"math"
	"sort"

	"service-discovery/internal/common/logger"
	"service-discovery/internal/models"
)

// SemanticScorer compares a service description with the query text and returns a
// similarity in [0,1]. Implementations fail with a SCORE_UNAVAILABLE error.
type SemanticScorer interface {
	Score(ctx context.Context, description, queryText string) (float64, error)
}

// SemanticScorerFunc adapts a function to SemanticScorer.
type SemanticScorerFunc func(ctx context.Context, description, queryText string) (float64, error)

func (f SemanticScorerFunc) Score(ctx context.Context, description, queryText string) (float64, error) {
	return f(ctx, description, queryText)
}

// ErrNoScorer is returned by Semantic when the ranker runs without a scorer. It is not a
// degradation: the semantic term is simply absent.
var ErrNoScorer = errors.New("no semantic scorer configured")

// Weights of the linear combination. They are normalized to sum to 1.
type Weights struct {
	Category float64
	Overlap  float64
	Semantic float64
}

// DefaultWeights is 0.4·category + 0.4·overlap + 0.2·semantic.
var DefaultWeights = Weights{Category: 0.4, Overlap: 0.4, Semantic: 0.2}

func (w Weights) normalized() Weights {
	if w.Category < 0 || w.Overlap < 0 || w.Semantic < 0 {
		return DefaultWeights
	}
	sum := w.Category + w.Overlap + w.Semantic
	if sum == 0 {
		return DefaultWeights
	}
	return Weights{Category: w.Category / sum, Overlap: w.Overlap / sum, Semantic: w.Semantic / sum}
}

// Score is a relevance value with its explanation.
type Score struct {
	Value       float64
	Explanation models.MatchExplanation
	// SemanticErr is set when the semantic term could not be computed and counted as 0.
	SemanticErr error
}

type Ranker struct {
	weights Weights
	scorer  SemanticScorer
	logger  logger.Logger
}

// NewRanker builds a ranker. A nil scorer makes every semantic term unavailable.
func NewRanker(weights Weights, scorer SemanticScorer, log logger.Logger) *Ranker {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Ranker{
		weights: weights.normalized(),
		scorer:  scorer,
		logger:  log.WithFields(map[string]interface{}{"component": "ranker"}),
	}
}

// Weights returns the normalized weights in use.
func (r *Ranker) Weights() Weights {
	return r.weights
}

// Score computes the full relevance of one service, calling the semantic scorer inline.
func (r *Ranker) Score(ctx context.Context, service *models.ServiceRecord, query models.ParsedQuery) Score {
	semantic, err := r.Semantic(ctx, service, query)
	return r.Combine(service, query, semantic, err)
}

// Semantic fetches the semantic term. Out-of-range and NaN values are reported as failures.
func (r *Ranker) Semantic(ctx context.Context, service *models.ServiceRecord, query models.ParsedQuery) (float64, error) {
	if r.scorer == nil {
		return 0, ErrNoScorer
	}
	value, err := r.scorer.Score(ctx, service.Description, query.Text)
	if err != nil {
		r.logger.Warn("Semantic score unavailable", map[string]interface{}{
			"serviceId": service.ID,
			"error":     err.Error(),
		})
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, errors.New("semantic scorer returned a non-finite value")
	}
	return clamp01(value), nil
}

// Combine applies the weights to the three terms. It performs no I/O.
func (r *Ranker) Combine(service *models.ServiceRecord, query models.ParsedQuery, semantic float64, semanticErr error) Score {
	exp := models.MatchExplanation{}

	if query.Intent.Category != "" && query.Intent.Category == service.Category {
		exp.CategoryMatched = true
		exp.CategoryScore = 1
	}

	exp.OverlapScore, exp.MatchedEntities, exp.MatchedKeywords = overlap(service, query)

	if semanticErr != nil {
		exp.SemanticFailed = !errors.Is(semanticErr, ErrNoScorer)
		semantic = 0
	}
	exp.SemanticScore = clamp01(semantic)

	value := r.weights.Category*exp.CategoryScore +
		r.weights.Overlap*exp.OverlapScore +
		r.weights.Semantic*exp.SemanticScore

	return Score{Value: clamp01(value), Explanation: exp, SemanticErr: semanticErr}
}

// overlap is the fraction of query entities that correspond to the service. An entity
// corresponds when its type is an attribute a criterion tests, when its value names an
// explicit region of the service, or when its value shares a token with the service's
// keywords, tags, name or subcategory. Without entities the fraction of distinct
// content words of the query text found in that vocabulary is used.
func overlap(service *models.ServiceRecord, query models.ParsedQuery) (float64, []string, []string) {
	vocab := serviceVocabulary(service)
	keywordSet := map[string]bool{}

	if len(query.Entities) == 0 {
		words := ContentWords(query.Text)
		if len(words) == 0 {
			return 0, nil, nil
		}
		hit := 0
		for _, w := range words {
			if vocab[w] {
				hit++
				keywordSet[w] = true
			}
		}
		return float64(hit) / float64(len(words)), nil, sortedKeys(keywordSet)
	}

	attrs := criterionAttributes(service)
	entitySet := map[string]bool{}
	hit := 0
	for _, e := range query.Entities {
		typ := models.CanonicalEntityType(e.Type)
		matched := attrs[typ]
		if typ == models.AttrRegion && !service.IsNational() && service.AvailableIn(e.Value) {
			matched = true
		}
		if words := vocab.hits(e.Value); len(words) > 0 {
			matched = true
			for _, w := range words {
				keywordSet[w] = true
			}
		}
		if matched {
			hit++
			entitySet[typ] = true
		}
	}
	return float64(hit) / float64(len(query.Entities)), sortedKeys(entitySet), sortedKeys(keywordSet)
}

func serviceVocabulary(service *models.ServiceRecord) vocabulary {
	v := vocabulary{}
	for _, k := range service.Keywords {
		v.add(k)
	}
	for _, t := range service.Tags {
		v.add(t)
	}
	v.add(service.Name)
	v.add(service.Subcategory)
	return v
}

// criterionAttributes lists the profile attributes the service's criteria depend on.
func criterionAttributes(service *models.ServiceRecord) map[string]bool {
	attrs := map[string]bool{}
	for _, c := range service.Criteria {
		if c.Predicate == nil {
			continue
		}
		if c.Predicate.Attribute != "" {
			attrs[models.CanonicalEntityType(c.Predicate.Attribute)] = true
		}
		if c.Predicate.Kind == models.PredicateMembership && c.Predicate.Flag != "" {
			attrs[models.CanonicalEntityType(c.Predicate.Flag)] = true
		}
	}
	return attrs
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
