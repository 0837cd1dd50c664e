package matcher

import (
	"sort"

	"service-discovery/internal/models"
)

// sortMatches orders by eligibility rank, then relevance. Within a run of scores no more
// than epsilon below the run's leader, inclusive-access services come first, then
// relevance, popularity and ID break ties.
func sortMatches(matches []models.ServiceMatch, epsilon float64) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if ra, rb := a.EligibilityStatus.Rank(), b.EligibilityStatus.Rank(); ra != rb {
			return ra < rb
		}
		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		return a.Service.ID < b.Service.ID
	})

	for start := 0; start < len(matches); {
		leader := matches[start]
		end := start + 1
		for end < len(matches) &&
			matches[end].EligibilityStatus.Rank() == leader.EligibilityStatus.Rank() &&
			leader.RelevanceScore-matches[end].RelevanceScore <= epsilon {
			end++
		}
		run := matches[start:end]
		sort.SliceStable(run, func(i, j int) bool {
			a, b := run[i], run[j]
			if a.Service.InclusiveAccess != b.Service.InclusiveAccess {
				return a.Service.InclusiveAccess
			}
			return relevanceLess(a, b)
		})
		start = end
	}
}

// sortByRelevance orders alternatives by relevance, popularity and ID.
func sortByRelevance(matches []models.ServiceMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		return relevanceLess(matches[i], matches[j])
	})
}

func relevanceLess(a, b models.ServiceMatch) bool {
	if a.RelevanceScore != b.RelevanceScore {
		return a.RelevanceScore > b.RelevanceScore
	}
	if a.Service.Popularity != b.Service.Popularity {
		return a.Service.Popularity > b.Service.Popularity
	}
	return a.Service.ID < b.Service.ID
}
