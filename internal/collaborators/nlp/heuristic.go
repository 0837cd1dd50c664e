package nlp

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"service-discovery/internal/discovery/ranking"
	"service-discovery/internal/models"
)

// Confidence levels of the keyword parser. A single keyword is enough to clear the default
// clarification threshold; a tie between categories is not.
const (
	heuristicSingleHit = 0.7
	heuristicMultiHit  = 0.75
	heuristicTie       = 0.45
	heuristicEntity    = 0.6
)

var categoryKeywords = map[models.Category][]string{
	models.CategoryHealthcare: {
		"health", "hospital", "doctor", "treatment", "medical", "medicine", "clinic",
		"disease", "surgery", "diabetes", "cancer", "maternity", "pregnancy", "vaccination",
	},
	models.CategoryWelfare: {
		"pension", "ration", "welfare", "subsidy", "disability", "widow", "allowance",
		"bpl", "poverty", "elderly",
	},
	models.CategoryEmployment: {
		"job", "employment", "unemployment", "work", "skill", "apprenticeship", "wage",
		"career", "placement",
	},
	models.CategoryEducation: {
		"scholarship", "school", "college", "education", "student", "university",
		"tuition", "diploma", "degree", "course", "fellowship",
	},
	models.CategoryLegal: {
		"legal", "lawyer", "court", "rights", "complaint", "dispute", "advocate",
	},
	models.CategoryHousing: {
		"house", "housing", "home", "shelter", "rent", "awas",
	},
	models.CategoryAgriculture: {
		"farmer", "farming", "crop", "agriculture", "kisan", "irrigation", "seed",
		"fertilizer", "livestock",
	},
}

var conditionKeywords = []string{"diabetes", "cancer", "tuberculosis", "hypertension", "pregnancy", "disability"}

var educationLevels = []string{"postgraduate", "undergraduate", "graduate", "diploma", "phd", "secondary", "primary"}

var fieldKeywords = []string{"engineering", "medicine", "nursing", "law", "arts", "science", "commerce", "agriculture"}

var agePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(\d{1,3})\s*(?:years?|yrs?)(?:\s*old)?\b`),
	regexp.MustCompile(`\baged?\s*(?:of\s*)?(\d{1,3})\b`),
}

// stemmed keyword index: token -> categories.
var keywordIndex = buildKeywordIndex()

func buildKeywordIndex() map[string][]models.Category {
	index := map[string][]models.Category{}
	for _, cat := range models.Categories {
		for _, kw := range categoryKeywords[cat] {
			for _, tok := range ranking.ContentWords(kw) {
				index[tok] = append(index[tok], cat)
			}
		}
	}
	return index
}

// Heuristic is the keyword parser used when the NLP service is unavailable.
type Heuristic struct{}

func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Parse never fails.
func (h *Heuristic) Parse(_ context.Context, text string, _ models.ConversationContext) (models.ParsedQuery, error) {
	return ParseKeywords(text), nil
}

// ParseKeywords classifies text by counting category keywords and extracts the entities
// it can recognize without a model.
func ParseKeywords(text string) models.ParsedQuery {
	parsed := models.ParsedQuery{Text: text}

	hits := map[models.Category]int{}
	for _, tok := range ranking.ContentWords(text) {
		for _, cat := range keywordIndex[tok] {
			hits[cat]++
		}
	}

	var best models.Category
	bestHits, tied := 0, false
	for _, cat := range models.Categories {
		switch n := hits[cat]; {
		case n > bestHits:
			best, bestHits, tied = cat, n, false
		case n > 0 && n == bestHits:
			tied = true
		}
	}

	switch {
	case bestHits == 0:
	case tied:
		parsed.Intent = models.Intent{Category: best, Confidence: heuristicTie}
	case bestHits == 1:
		parsed.Intent = models.Intent{Category: best, Confidence: heuristicSingleHit}
	default:
		parsed.Intent = models.Intent{Category: best, Confidence: heuristicMultiHit}
	}

	parsed.Entities = extractEntities(text)
	return parsed
}

func extractEntities(text string) []models.Entity {
	lower := strings.ToLower(text)
	padded := " " + strings.Join(strings.FieldsFunc(lower, isSeparator), " ") + " "

	var entities []models.Entity
	if region, ok := findRegion(padded); ok {
		entities = append(entities, models.Entity{Type: models.AttrRegion, Value: region, Confidence: heuristicEntity})
	}
	for _, re := range agePatterns {
		if m := re.FindStringSubmatch(lower); m != nil {
			if age, err := strconv.Atoi(m[1]); err == nil && age > 0 && age < 120 {
				entities = append(entities, models.Entity{Type: models.AttrAge, Value: m[1], Confidence: heuristicEntity})
				break
			}
		}
	}
	if level, ok := firstWord(padded, educationLevels); ok {
		entities = append(entities, models.Entity{Type: models.AttrEducationLevel, Value: level, Confidence: heuristicEntity})
	}
	if field, ok := firstWord(padded, fieldKeywords); ok {
		entities = append(entities, models.Entity{Type: "field", Value: field, Confidence: heuristicEntity})
	}
	if condition, ok := firstWord(padded, conditionKeywords); ok {
		entities = append(entities, models.Entity{Type: "condition", Value: condition, Confidence: heuristicEntity})
	}
	return entities
}

// findRegion returns the code of the region name mentioned first.
func findRegion(padded string) (string, bool) {
	names := models.KnownRegionNames()
	code, at := "", -1
	for _, name := range sortedKeys(names) {
		i := strings.Index(padded, " "+name+" ")
		if i >= 0 && (at < 0 || i < at) {
			code, at = names[name], i
		}
	}
	return code, at >= 0
}

func firstWord(padded string, words []string) (string, bool) {
	for _, w := range words {
		if strings.Contains(padded, " "+w+" ") || strings.Contains(padded, " "+w+"s ") {
			return w, true
		}
	}
	return "", false
}

func isSeparator(r rune) bool {
	return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedTypes(m map[string]models.Entity) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
