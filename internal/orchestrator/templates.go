package orchestrator

import (
	"fmt"
	"strings"

	"service-discovery/internal/discovery/matcher"
	"service-discovery/internal/models"
)

var categoryLabels = map[models.Category]string{
	models.CategoryHealthcare:  "healthcare",
	models.CategoryWelfare:     "welfare and pensions",
	models.CategoryEmployment:  "jobs and skills",
	models.CategoryEducation:   "education and scholarships",
	models.CategoryLegal:       "legal aid",
	models.CategoryHousing:     "housing",
	models.CategoryAgriculture: "agriculture",
	models.CategoryOther:       "other services",
}

func label(c models.Category) string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// clarificationQuestion asks for the intent slot that is missing or uncertain, and for the
// region when neither the profile nor the query gives one.
func clarificationQuestion(q models.ParsedQuery, profile models.CitizenProfile) string {
	var b strings.Builder
	if q.Intent.Category == "" {
		b.WriteString("Which kind of help are you looking for, for example ")
		b.WriteString(listLabels(suggestedTopics("")))
		b.WriteString("?")
	} else {
		fmt.Fprintf(&b, "Are you asking about %s services? If not, tell me which kind of help you need.", label(q.Intent.Category))
	}
	if profile.Region == "" {
		b.WriteString(" Which state do you live in?")
	}
	return b.String()
}

func listLabels(topics []string) string {
	return joinList(topics, "or")
}

func matchedText(q models.ParsedQuery, result *matcher.MatchResult) string {
	names := serviceNames(result.Matches)
	var b strings.Builder
	if len(names) == 1 {
		fmt.Fprintf(&b, "I found 1 %s service that may help: %s.", label(q.Intent.Category), names[0])
	} else {
		fmt.Fprintf(&b, "I found %d %s services that may help: %s.", len(names), label(q.Intent.Category), joinList(names, "and"))
	}

	unknown := 0
	for _, m := range result.Matches {
		if m.EligibilityStatus == models.StatusUnknown {
			unknown++
		}
	}
	if unknown > 0 {
		b.WriteString(" Some of them need more details from you to confirm eligibility.")
	}
	if len(result.Alternatives) > 0 {
		fmt.Fprintf(&b, " You may also look at %s.", joinList(serviceNames(result.Alternatives), "and"))
	}
	return b.String()
}

func alternativesText(alternatives []models.ServiceMatch) string {
	return fmt.Sprintf("You do not appear to qualify for the closest matches, but these related services may still help: %s.",
		joinList(serviceNames(alternatives), "and"))
}

func noAlternativesMessage(reason matcher.EmptyReason) string {
	switch reason {
	case matcher.ReasonNoServicesInRegion:
		return "No services of this kind are offered in your region."
	case matcher.ReasonCatalogUnavailable:
		return "The service directory is temporarily unavailable."
	default:
		return "No related services were found for this request."
	}
}

func noMatchText(reason matcher.EmptyReason, helpline models.HumanAssistance, topics []string) string {
	var b strings.Builder
	b.WriteString("I could not find a service for your request. ")
	b.WriteString(noAlternativesMessage(reason))
	fmt.Fprintf(&b, " You can reach the %s", helpline.Name)
	if helpline.Phone != "" {
		fmt.Fprintf(&b, " on %s", helpline.Phone)
	}
	b.WriteString(" for personal help")
	if len(topics) > 0 {
		fmt.Fprintf(&b, ", or ask me about %s", listLabels(topics))
	}
	b.WriteString(".")
	return b.String()
}

// suggestedTopics lists the categories other than current.
func suggestedTopics(current models.Category) []string {
	var out []string
	for _, c := range models.Categories {
		if c == current || c == models.CategoryOther {
			continue
		}
		out = append(out, label(c))
	}
	return out
}

func serviceNames(matches []models.ServiceMatch) []string {
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Service != nil {
			names = append(names, m.Service.Name)
		}
	}
	return names
}

func joinList(items []string, conj string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " " + conj + " " + items[len(items)-1]
}
