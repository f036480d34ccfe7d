package session

import (
	"time"

	"github.com/patrickmn/go-cache"

	"ai-support-router-be/pkg/llm"
)

// State is one conversation's durable turn-to-turn data: the message history
// and the sticky hint left behind by a follow-up question. The hint is read
// and cleared exactly once at the start of the next turn.
type State struct {
	ID         string
	History    []llm.Message
	StickyHint string
}

// Repository keeps sessions in process memory. Sessions idle for an hour are
// evicted; a returning user simply starts a fresh conversation.
type Repository struct {
	cache *cache.Cache
}

func NewRepository() *Repository {
	return &Repository{
		cache: cache.New(1*time.Hour, 10*time.Minute),
	}
}

// LoadOrCreate fetches the session or starts an empty one under the given id.
func (r *Repository) LoadOrCreate(sessionID string) *State {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*State)
	}
	return &State{ID: sessionID}
}

func (r *Repository) Save(state *State) {
	r.cache.Set(state.ID, state, cache.DefaultExpiration)
}

func (r *Repository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}
