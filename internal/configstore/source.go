package configstore

import "ai-support-router-be/internal/model"

// Source adapts the store to the session engine's ConfigSource: every turn
// reads the files fresh, so admin edits take effect on the next turn without
// a restart.
type Source struct {
	store *Store
}

func NewSource(store *Store) *Source {
	return &Source{store: store}
}

func (s *Source) Tools() []model.ToolDefinition {
	return s.store.LoadTools()
}

func (s *Source) PlannerSettings() model.PlannerSettings {
	return s.store.LoadPlanner()
}

func (s *Source) UserProfile() model.UserProfile {
	return s.store.LoadUser()
}
