package eligibility

import (
	"testing"

	"service-discovery/internal/models"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Test Helper Functions
// ==========================

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func ageRange(id string, typ models.CriterionType, min, max float64) models.Criterion {
	return models.Criterion{
		ID:        id,
		Type:      typ,
		Checkable: true,
		Predicate: &models.Predicate{
			Kind:      models.PredicateRange,
			Attribute: models.AttrAge,
			Min:       floatPtr(min),
			Max:       floatPtr(max),
		},
	}
}

func regionEnum(id string, typ models.CriterionType, values ...string) models.Criterion {
	return models.Criterion{
		ID:        id,
		Type:      typ,
		Checkable: true,
		Predicate: &models.Predicate{Kind: models.PredicateEnum, Attribute: models.AttrRegion, Values: values},
	}
}

func membership(id string, typ models.CriterionType, flag string, checkable bool) models.Criterion {
	return models.Criterion{
		ID:        id,
		Type:      typ,
		Checkable: checkable,
		Predicate: &models.Predicate{Kind: models.PredicateMembership, Flag: flag},
	}
}

// ==========================
// Status Resolution Tests
// ==========================

func TestEvaluate_StatusResolution(t *testing.T) {
	tests := []struct {
		name     string
		criteria []models.Criterion
		profile  models.CitizenProfile
		want     models.EligibilityStatus
	}{
		{
			name:     "no criteria is eligible",
			criteria: nil,
			profile:  models.CitizenProfile{},
			want:     models.StatusEligible,
		},
		{
			name:     "all required matched",
			criteria: []models.Criterion{ageRange("age", models.CriterionRequired, 18, 60)},
			profile:  models.CitizenProfile{Age: intPtr(45)},
			want:     models.StatusEligible,
		},
		{
			name:     "required unmatched",
			criteria: []models.Criterion{ageRange("age", models.CriterionRequired, 60, 120)},
			profile:  models.CitizenProfile{Age: intPtr(45)},
			want:     models.StatusIneligible,
		},
		{
			name: "disqualifying matched overrides everything",
			criteria: []models.Criterion{
				ageRange("age", models.CriterionRequired, 18, 60),
				membership("govt-employee", models.CriterionDisqualifying, "government_employee", true),
			},
			profile: models.CitizenProfile{Age: intPtr(45), Memberships: map[string]bool{"government_employee": true}},
			want:    models.StatusIneligible,
		},
		{
			name: "disqualifying matched beats unknown required",
			criteria: []models.Criterion{
				ageRange("age", models.CriterionRequired, 18, 60),
				membership("govt-employee", models.CriterionDisqualifying, "government_employee", true),
			},
			profile: models.CitizenProfile{Memberships: map[string]bool{"government_employee": true}},
			want:    models.StatusIneligible,
		},
		{
			name:     "required unknown",
			criteria: []models.Criterion{ageRange("age", models.CriterionRequired, 18, 60)},
			profile:  models.CitizenProfile{},
			want:     models.StatusUnknown,
		},
		{
			name: "checkable preferred unknown",
			criteria: []models.Criterion{
				ageRange("age", models.CriterionRequired, 18, 60),
				membership("shg", models.CriterionPreferred, "self_help_group", true),
			},
			profile: models.CitizenProfile{Age: intPtr(30)},
			want:    models.StatusUnknown,
		},
		{
			name: "non-checkable preferred unknown is partial",
			criteria: []models.Criterion{
				ageRange("age", models.CriterionRequired, 18, 60),
				membership("shg", models.CriterionPreferred, "self_help_group", false),
			},
			profile: models.CitizenProfile{Age: intPtr(30)},
			want:    models.StatusPartial,
		},
		{
			name: "preferred unmatched is partial",
			criteria: []models.Criterion{
				ageRange("age", models.CriterionRequired, 18, 60),
				regionEnum("region", models.CriterionPreferred, "TN"),
			},
			profile: models.CitizenProfile{Age: intPtr(30), Region: "MH"},
			want:    models.StatusPartial,
		},
		{
			name: "undefined predicate is unknown",
			criteria: []models.Criterion{
				{ID: "broken", Type: models.CriterionRequired, Checkable: true},
			},
			profile: models.CitizenProfile{Age: intPtr(30)},
			want:    models.StatusUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.criteria, tt.profile)
			assert.Equal(t, tt.want, got.Status)
		})
	}
}

func TestEvaluate_ListsFavourAndAgainst(t *testing.T) {
	criteria := []models.Criterion{
		ageRange("age", models.CriterionRequired, 18, 60),
		membership("govt-employee", models.CriterionDisqualifying, "government_employee", true),
		regionEnum("region", models.CriterionPreferred, "Tamil Nadu"),
		membership("bpl", models.CriterionPreferred, "bpl_card", true),
	}
	profile := models.CitizenProfile{
		Age:         intPtr(45),
		Region:      "MH",
		Memberships: map[string]bool{"government_employee": false},
	}

	got := Evaluate(criteria, profile)

	assert.Equal(t, []string{"age", "govt-employee"}, got.Matched)
	assert.Equal(t, []string{"region"}, got.Failed)
	assert.Equal(t, []string{"bpl"}, got.Unknown)
	assert.Equal(t, []string{"bpl"}, got.Missing)
	assert.Equal(t, models.StatusUnknown, got.Status)
	assert.Len(t, got.Outcomes, 4)
}

func TestEvaluate_MissingIsExactlyCheckableUnknown(t *testing.T) {
	criteria := []models.Criterion{
		membership("checkable", models.CriterionPreferred, "a", true),
		membership("uncheckable", models.CriterionPreferred, "b", false),
		{ID: "no-predicate", Type: models.CriterionRequired, Checkable: true},
	}

	got := Evaluate(criteria, models.CitizenProfile{})

	assert.ElementsMatch(t, []string{"checkable", "uncheckable", "no-predicate"}, got.Unknown)
	assert.ElementsMatch(t, []string{"checkable", "no-predicate"}, got.Missing)
}

func TestEvaluate_OrderIndependent(t *testing.T) {
	a := ageRange("age", models.CriterionRequired, 18, 60)
	b := membership("govt-employee", models.CriterionDisqualifying, "government_employee", true)
	c := regionEnum("region", models.CriterionPreferred, "TN")
	profile := models.CitizenProfile{Age: intPtr(70), Region: "TN", Memberships: map[string]bool{"government_employee": true}}

	first := Evaluate([]models.Criterion{a, b, c}, profile)
	second := Evaluate([]models.Criterion{c, b, a}, profile)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Outcomes, second.Outcomes)
	assert.ElementsMatch(t, first.Failed, second.Failed)
}

// ==========================
// Predicate Interpreter Tests
// ==========================

func TestEvalPredicate(t *testing.T) {
	e := NewEvaluator(Builtins())

	tests := []struct {
		name    string
		pred    *models.Predicate
		profile models.CitizenProfile
		want    Outcome
	}{
		{"nil predicate", nil, models.CitizenProfile{}, Unknown},
		{"range without bounds", &models.Predicate{Kind: models.PredicateRange, Attribute: models.AttrAge}, models.CitizenProfile{Age: intPtr(3)}, Unknown},
		{"range open max", &models.Predicate{Kind: models.PredicateRange, Attribute: models.AttrAge, Min: floatPtr(18)}, models.CitizenProfile{Age: intPtr(80)}, Matched},
		{"range on string attribute", &models.Predicate{Kind: models.PredicateRange, Attribute: models.AttrOccupation, Min: floatPtr(1)}, models.CitizenProfile{Occupation: "farmer"}, Unknown},
		{"income ceiling", &models.Predicate{Kind: models.PredicateRange, Attribute: models.AttrIncome, Max: floatPtr(100000)}, models.CitizenProfile{Income: floatPtr(150000)}, Unmatched},
		{"enum case-insensitive", &models.Predicate{Kind: models.PredicateEnum, Attribute: models.AttrOccupation, Values: []string{"Farmer"}}, models.CitizenProfile{Occupation: "farmer"}, Matched},
		{"enum region alias", &models.Predicate{Kind: models.PredicateEnum, Attribute: models.AttrRegion, Values: []string{"TN"}}, models.CitizenProfile{Region: "Tamil Nadu"}, Matched},
		{"enum empty values", &models.Predicate{Kind: models.PredicateEnum, Attribute: models.AttrRegion}, models.CitizenProfile{Region: "TN"}, Unknown},
		{"membership without flag", &models.Predicate{Kind: models.PredicateMembership}, models.CitizenProfile{}, Unknown},
		{"membership false", &models.Predicate{Kind: models.PredicateMembership, Flag: "x"}, models.CitizenProfile{Memberships: map[string]bool{"x": false}}, Unmatched},
		{"unknown kind", &models.Predicate{Kind: "regex"}, models.CitizenProfile{}, Unknown},
		{"unregistered custom", &models.Predicate{Kind: models.PredicateCustom, Name: "nope"}, models.CitizenProfile{}, Unknown},
		{"senior citizen", &models.Predicate{Kind: models.PredicateCustom, Name: PredicateSeniorCitizen}, models.CitizenProfile{Age: intPtr(65)}, Matched},
		{"low income from bpl card", &models.Predicate{Kind: models.PredicateCustom, Name: PredicateLowIncome}, models.CitizenProfile{Memberships: map[string]bool{"bpl_card": true}}, Matched},
		{"student from education level", &models.Predicate{Kind: models.PredicateCustom, Name: PredicateStudent}, models.CitizenProfile{EducationLevel: "diploma"}, Matched},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.evalPredicate(tt.pred, tt.profile))
		})
	}
}

func TestCustomPredicate_PanicIsUnknown(t *testing.T) {
	e := NewEvaluator(map[string]CustomPredicate{
		"boom": func(models.CitizenProfile) Outcome { panic("bad rule") },
		"odd":  func(models.CitizenProfile) Outcome { return Outcome("maybe") },
	})

	criteria := []models.Criterion{
		{ID: "boom", Type: models.CriterionRequired, Checkable: true, Predicate: &models.Predicate{Kind: models.PredicateCustom, Name: "boom"}},
		{ID: "odd", Type: models.CriterionRequired, Checkable: true, Predicate: &models.Predicate{Kind: models.PredicateCustom, Name: "odd"}},
	}

	assert.NotPanics(t, func() {
		got := e.Evaluate(criteria, models.CitizenProfile{})
		assert.Equal(t, models.StatusUnknown, got.Status)
		assert.Equal(t, Unknown, got.Outcomes["boom"])
		assert.Equal(t, Unknown, got.Outcomes["odd"])
	})
}

func TestNewEvaluator_CopiesRegistry(t *testing.T) {
	custom := map[string]CustomPredicate{}
	e := NewEvaluator(custom)
	custom["late"] = func(models.CitizenProfile) Outcome { return Matched }

	assert.Equal(t, Unknown, e.evalCustom("late", models.CitizenProfile{}))
}
