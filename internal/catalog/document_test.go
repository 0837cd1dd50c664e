package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	apperrors "service-discovery/internal/common/errors"
	"service-discovery/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

const sampleCatalog = `{
  "version": "2026-10",
  "services": [
    {
      "id": "hc-tn-diabetes", "name": "Diabetes Care Programme", "category": "healthcare",
      "description": "Free diabetes screening", "keywords": ["diabetes"], "regions": ["Tamil Nadu", "tn"],
      "popularity": 0.8, "lastUpdated": "2026-09-01T00:00:00Z",
      "officialSource": {"name": "TN Health Department", "url": "https://tnhealth.example.gov"},
      "criteria": [
        {"id": "age", "type": "required", "checkable": true,
         "predicate": {"kind": "range", "attribute": "age", "min": 30, "max": 70}}
      ]
    },
    {
      "id": "hc-national-insurance", "name": "National Health Insurance", "category": "healthcare",
      "description": "Hospital cover", "popularity": 0.9
    },
    {
      "id": "ed-mh-diploma", "name": "Diploma Scholarship", "category": "education",
      "regions": ["maharashtra"], "tags": ["vocational"]
    }
  ]
}`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func f(v float64) *float64 { return &v }

// ==========================
// Decode
// ==========================

func TestDecode_Valid(t *testing.T) {
	doc, err := Decode([]byte(sampleCatalog))
	require.NoError(t, err)

	assert.Equal(t, "2026-10", doc.Version)
	require.Len(t, doc.Services, 3)
	assert.Equal(t, []string{"TN"}, doc.Services[0].Regions)
	assert.Equal(t, []string{"MH"}, doc.Services[2].Regions)
	assert.Equal(t, "TN Health Department", doc.Services[0].OfficialSource.Name)
	require.Len(t, doc.Services[0].Criteria, 1)
	assert.Equal(t, models.PredicateRange, doc.Services[0].Criteria[0].Predicate.Kind)
}

func TestDecode_SchemaViolation(t *testing.T) {
	_, err := Decode([]byte(`{"services":[{"id":"x","name":"X","category":"banking"}]}`))

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCatalogInvalid))
	assert.Contains(t, err.Error(), "services.0.category")
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		services []models.ServiceRecord
		wantErr  string
	}{
		{
			name: "duplicate id",
			services: []models.ServiceRecord{
				{ID: "a", Name: "A", Category: models.CategoryLegal},
				{ID: "a", Name: "A2", Category: models.CategoryLegal},
			},
			wantErr: "a: duplicate id",
		},
		{
			name: "range without bounds",
			services: []models.ServiceRecord{{ID: "a", Name: "A", Category: models.CategoryLegal, Criteria: []models.Criterion{
				{ID: "age", Type: models.CriterionRequired, Checkable: true, Predicate: &models.Predicate{Kind: models.PredicateRange, Attribute: "age"}},
			}}},
			wantErr: "a/age: range predicate without bounds",
		},
		{
			name: "inverted range",
			services: []models.ServiceRecord{{ID: "a", Name: "A", Category: models.CategoryLegal, Criteria: []models.Criterion{
				{ID: "age", Type: models.CriterionRequired, Predicate: &models.Predicate{Kind: models.PredicateRange, Attribute: "age", Min: f(60), Max: f(18)}},
			}}},
			wantErr: "min above max",
		},
		{
			name: "checkable without predicate",
			services: []models.ServiceRecord{{ID: "a", Name: "A", Category: models.CategoryLegal, Criteria: []models.Criterion{
				{ID: "docs", Type: models.CriterionRequired, Checkable: true},
			}}},
			wantErr: "checkable criterion without predicate",
		},
		{
			name: "uncheckable prose criterion",
			services: []models.ServiceRecord{{ID: "a", Name: "A", Category: models.CategoryLegal, Criteria: []models.Criterion{
				{ID: "docs", Type: models.CriterionPreferred, Description: "Bring an ID card"},
			}}},
		},
		{
			name: "membership without flag",
			services: []models.ServiceRecord{{ID: "a", Name: "A", Category: models.CategoryWelfare, Criteria: []models.Criterion{
				{ID: "bpl", Type: models.CriterionRequired, Predicate: &models.Predicate{Kind: models.PredicateMembership}},
			}}},
			wantErr: "membership predicate without flag",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.services)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCatalogInvalid))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

// ==========================
// Memory
// ==========================

func TestMemory_Lookup(t *testing.T) {
	mem, err := LoadFile(writeCatalog(t, sampleCatalog))
	require.NoError(t, err)
	assert.Equal(t, 3, mem.Len())

	tests := []struct {
		name     string
		category models.Category
		region   string
		wantIDs  []string
	}{
		{"healthcare in TN", models.CategoryHealthcare, "Tamil Nadu", []string{"hc-national-insurance", "hc-tn-diabetes"}},
		{"healthcare in KL", models.CategoryHealthcare, "KL", []string{"hc-national-insurance"}},
		{"education in MH", models.CategoryEducation, "MH", []string{"ed-mh-diploma"}},
		{"every category without region", "", "", []string{"ed-mh-diploma", "hc-national-insurance", "hc-tn-diabetes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			services, err := mem.Lookup(context.Background(), tt.category, tt.region)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIDs, ids(services))
		})
	}
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemory(nil).Lookup(ctx, models.CategoryHealthcare, "TN")
	assert.ErrorIs(t, err, context.Canceled)
}

func ids(services []models.ServiceRecord) []string {
	out := make([]string, len(services))
	for i, s := range services {
		out[i] = s.ID
	}
	return out
}
