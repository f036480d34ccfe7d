package configstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-support-router-be/internal/model"
	"ai-support-router-be/internal/pkg/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), logger.NewNopLogger())
	require.NoError(t, err)
	return store
}

func TestToolsRoundTrip(t *testing.T) {
	store := newTestStore(t)

	tools := []model.ToolDefinition{
		{
			Name:        "payroll_qna_retrieval",
			Description: "Payroll questions.",
			IndexName:   "payroll_qna",
			Parameters: []model.ToolParameter{
				{Name: "query", Type: "string", Required: true},
				{Name: "limit", Type: "number"},
			},
		},
	}
	require.NoError(t, store.SaveTools(tools))

	loaded := store.LoadTools()
	require.Len(t, loaded, 1)
	got := loaded[0]
	assert.Equal(t, "payroll_qna_retrieval", got.Name)
	assert.Equal(t, 100, got.Priority, "defaults applied on load")
	assert.Equal(t, model.DisplayAsIs, got.DisplayMode)
	assert.Equal(t, 1, got.TopK)
	assert.Equal(t, model.RerankerTop1, got.Reranker)
	assert.Equal(t, "float", got.Parameters[1].Type, "aliases canonicalized")
}

func TestSaveToolsValidation(t *testing.T) {
	store := newTestStore(t)

	t.Run("missing name rejected", func(t *testing.T) {
		err := store.SaveTools([]model.ToolDefinition{{Description: "nameless"}})
		assert.Error(t, err)
	})

	t.Run("bad reranker rejected", func(t *testing.T) {
		err := store.SaveTools([]model.ToolDefinition{{Name: "x", Reranker: "best_effort"}})
		assert.Error(t, err)
	})

	t.Run("failed save leaves the previous file intact", func(t *testing.T) {
		require.NoError(t, store.SaveTools([]model.ToolDefinition{{Name: "keeper"}}))
		assert.Error(t, store.SaveTools([]model.ToolDefinition{{Name: ""}}))

		loaded := store.LoadTools()
		require.Len(t, loaded, 1)
		assert.Equal(t, "keeper", loaded[0].Name)
	})
}

func TestContentRoundTripPreservesScalarFields(t *testing.T) {
	store := newTestStore(t)

	entries := []model.ContentEntry{{
		Title:     "State Tax Withholding",
		Body:      "Configured per employee.",
		IndexName: "payroll_qna",
		UserFieldsMapping: map[string]model.FieldValues{
			"region": {"US"},
			"plan":   {"Plus", "Premium"},
		},
	}}
	require.NoError(t, store.SaveContent(entries))

	loaded := store.LoadContent()
	require.Len(t, loaded, 1)
	assert.Equal(t, model.FieldValues{"US"}, loaded[0].UserFieldsMapping["region"])
	assert.Equal(t, model.FieldValues{"Plus", "Premium"}, loaded[0].UserFieldsMapping["plan"])
}

func TestSaveContentRejectsEmptyTitle(t *testing.T) {
	store := newTestStore(t)
	err := store.SaveContent([]model.ContentEntry{{Body: "orphan"}})
	assert.Error(t, err)
}

func TestPlannerSettings(t *testing.T) {
	store := newTestStore(t)

	t.Run("missing file yields defaults", func(t *testing.T) {
		settings := store.LoadPlanner()
		assert.Equal(t, model.PlannerModeFast, settings.Mode)
		assert.Equal(t, 0, settings.RelevanceThreshold)
	})

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, store.SavePlanner(model.PlannerSettings{
			Mode:               model.PlannerModeSmart,
			RelevanceThreshold: 40,
		}))
		settings := store.LoadPlanner()
		assert.Equal(t, model.PlannerModeSmart, settings.Mode)
		assert.Equal(t, 40, settings.RelevanceThreshold)
	})

	t.Run("invalid mode rejected", func(t *testing.T) {
		err := store.SavePlanner(model.PlannerSettings{Mode: "psychic"})
		assert.Error(t, err)
	})

	t.Run("threshold out of range rejected", func(t *testing.T) {
		err := store.SavePlanner(model.PlannerSettings{RelevanceThreshold: 150})
		assert.Error(t, err)
	})
}

func TestCorruptFileYieldsEmptyValue(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, logger.NewNopLogger())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tools.json"), []byte("{not json"), 0o644))
	assert.Empty(t, store.LoadTools())
}

func TestUserProfileRoundTrip(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveUser(model.UserProfile{
		Attributes:      map[string]interface{}{"region": "US", "employees": float64(12)},
		BusinessContext: map[string]interface{}{"industry": "coffee"},
	}))

	profile := store.LoadUser()
	assert.Equal(t, "US", profile.Attributes["region"])
	assert.Equal(t, "coffee", profile.BusinessContext["industry"])
	assert.Equal(t, map[string]string{"region": "US", "employees": "12"}, profile.FieldAttributes())
}
