package index

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ai-support-router-be/internal/model"
)

func TestMatchesUserFields(t *testing.T) {
	entry := model.ContentEntry{
		Title: "State Tax Withholding",
		UserFieldsMapping: map[string]model.FieldValues{
			"region": {"US", "CA"},
		},
	}

	tests := []struct {
		name       string
		entry      model.ContentEntry
		userFields map[string]string
		want       bool
	}{
		{"value in allowed list", entry, map[string]string{"region": "US"}, true},
		{"value outside allowed list", entry, map[string]string{"region": "UK"}, false},
		{"no user fields matches everyone", entry, nil, true},
		{"user fields never match an unmapped entry", model.ContentEntry{}, map[string]string{"region": "UK"}, false},
		{"requested field the entry does not declare fails", entry, map[string]string{"plan": "Plus"}, false},
		{"entry may declare more fields than requested", model.ContentEntry{
			UserFieldsMapping: map[string]model.FieldValues{
				"region": {"US"},
				"plan":   {"Plus"},
			},
		}, map[string]string{"region": "US"}, true},
		{"one requested field mismatching disqualifies", model.ContentEntry{
			UserFieldsMapping: map[string]model.FieldValues{
				"region": {"US"},
				"plan":   {"Plus"},
			},
		}, map[string]string{"region": "US", "plan": "Basic"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesUserFields(tt.entry, tt.userFields))
		})
	}
}
