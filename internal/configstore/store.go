package configstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"

	"ai-support-router-be/internal/model"
	"ai-support-router-be/internal/pkg/logger"
)

// Resource file names under the config directory.
const (
	fileTools   = "tools.json"
	fileContent = "content.json"
	filePlanner = "planner.json"
	fileUser    = "user.json"
)

// Store persists the editable catalog (tools, content, planner settings, user
// profile) as one pretty-printed JSON file per resource. Reads are tolerant:
// a missing or corrupt file yields the empty value so the service always
// starts; writes validate first and are atomic via rename.
type Store struct {
	dir      string
	validate *validator.Validate
	mu       sync.RWMutex
	log      logger.ILogger
}

func NewStore(dir string, log logger.ILogger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	return &Store{
		dir:      dir,
		validate: validator.New(),
		log:      log,
	}, nil
}

func (s *Store) LoadTools() []model.ToolDefinition {
	var tools []model.ToolDefinition
	s.read(fileTools, &tools)
	for i := range tools {
		tools[i].Normalize()
	}
	return tools
}

func (s *Store) SaveTools(tools []model.ToolDefinition) error {
	for i := range tools {
		tools[i].Normalize()
		if err := s.validate.Struct(&tools[i]); err != nil {
			return fmt.Errorf("tool %q invalid: %w", tools[i].Name, err)
		}
	}
	return s.write(fileTools, tools)
}

func (s *Store) LoadContent() []model.ContentEntry {
	var entries []model.ContentEntry
	s.read(fileContent, &entries)
	return entries
}

func (s *Store) SaveContent(entries []model.ContentEntry) error {
	for _, e := range entries {
		if e.Title == "" {
			return fmt.Errorf("content entry with empty title")
		}
	}
	return s.write(fileContent, entries)
}

func (s *Store) LoadPlanner() model.PlannerSettings {
	var settings model.PlannerSettings
	s.read(filePlanner, &settings)
	settings.Normalize()
	return settings
}

func (s *Store) SavePlanner(settings model.PlannerSettings) error {
	settings.Normalize()
	if err := s.validate.Struct(&settings); err != nil {
		return fmt.Errorf("planner settings invalid: %w", err)
	}
	return s.write(filePlanner, settings)
}

func (s *Store) LoadUser() model.UserProfile {
	var profile model.UserProfile
	s.read(fileUser, &profile)
	return profile
}

func (s *Store) SaveUser(profile model.UserProfile) error {
	return s.write(fileUser, profile)
}

func (s *Store) read(name string, out interface{}) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("configstore", "resource unreadable, using empty value", map[string]interface{}{
				"resource": name,
				"error":    err.Error(),
			})
		}
		return
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.log.Warn("configstore", "resource corrupt, using empty value", map[string]interface{}{
			"resource": name,
			"error":    err.Error(),
		})
	}
}

func (s *Store) write(name string, value interface{}) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
