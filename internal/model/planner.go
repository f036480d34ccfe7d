package model

// Planner operating modes.
const (
	PlannerModeFast            = "fast"
	PlannerModeFastListen      = "fast_listen_override"
	PlannerModeSmart           = "smart"
	DefaultRelevanceThreshold  = 0
	DefaultDisambiguationLevel = 5
)

// PlannerSettings controls how aggressively the router selects tools.
// RelevanceThreshold prunes planned calls whose model-reported relevance
// falls below it; 0 disables pruning.
type PlannerSettings struct {
	Mode               string `json:"mode" validate:"omitempty,oneof=fast fast_listen_override smart"`
	RelevanceThreshold int    `json:"relevance_threshold" validate:"gte=0,lte=100"`
}

// Normalize fills defaults.
func (p *PlannerSettings) Normalize() {
	if p.Mode == "" {
		p.Mode = PlannerModeFast
	}
}
