package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestWithQueryEntities(t *testing.T) {
	tests := []struct {
		name       string
		profile    CitizenProfile
		entities   []Entity
		wantRegion string
		wantAge    *int
	}{
		{
			name:       "stated entity overrides profile",
			profile:    CitizenProfile{Region: "TN", Age: intPtr(40)},
			entities:   []Entity{{Type: "location", Value: "Kerala"}, {Type: "age", Value: "65"}},
			wantRegion: "KL",
			wantAge:    intPtr(65),
		},
		{
			name:       "inherited entity does not override profile",
			profile:    CitizenProfile{Region: "TN", Age: intPtr(40)},
			entities:   []Entity{{Type: "region", Value: "KL", Inherited: true}, {Type: "age", Value: "65", Inherited: true}},
			wantRegion: "TN",
			wantAge:    intPtr(40),
		},
		{
			name:       "inherited entity fills unset attribute",
			profile:    CitizenProfile{},
			entities:   []Entity{{Type: "region", Value: "KL", Inherited: true}, {Type: "age", Value: "65", Inherited: true}},
			wantRegion: "KL",
			wantAge:    intPtr(65),
		},
		{
			name:       "blank values ignored",
			profile:    CitizenProfile{Region: "TN"},
			entities:   []Entity{{Type: "region", Value: "  "}},
			wantRegion: "TN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.profile.WithQueryEntities(ParsedQuery{Entities: tt.entities})

			assert.Equal(t, tt.wantRegion, got.Region)
			if tt.wantAge == nil {
				assert.Nil(t, got.Age)
			} else {
				require.NotNil(t, got.Age)
				assert.Equal(t, *tt.wantAge, *got.Age)
			}
		})
	}
}

func TestWithQueryEntities_DoesNotMutateReceiver(t *testing.T) {
	profile := CitizenProfile{Region: "TN", Age: intPtr(40)}

	_ = profile.WithQueryEntities(ParsedQuery{Entities: []Entity{{Type: "age", Value: "70"}}})

	assert.Equal(t, 40, *profile.Age)
}
