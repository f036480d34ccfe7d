package model

// Parameter type tags accepted in a tool schema. Aliases from hand-written
// configs ("number", "bool", "list", "dict") are normalized at load time.
const (
	ParamTypeString  = "string"
	ParamTypeInteger = "integer"
	ParamTypeFloat   = "float"
	ParamTypeBoolean = "boolean"
	ParamTypeArray   = "array"
	ParamTypeObject  = "object"
)

// NormalizeParamType maps common aliases to their canonical tag. Unknown tags
// are returned unchanged; validation treats them as pass-through.
func NormalizeParamType(t string) string {
	switch t {
	case "number":
		return ParamTypeFloat
	case "bool":
		return ParamTypeBoolean
	case "list":
		return ParamTypeArray
	case "dict":
		return ParamTypeObject
	}
	return t
}

// ToolParameter declares one argument of a tool.
type ToolParameter struct {
	Name        string `json:"name" validate:"required"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

// Display modes for retrieved content.
const (
	DisplayAsIs         = "as-is"
	DisplaySummarizable = "summarizable"
)

// Reranker strategy names a tool may select.
const (
	RerankerTop1      = "top1"
	RerankerTop3      = "top3"
	RerankerUprankSDR = "uprank_sdr"
)

// ToolDefinition describes one routable tool. A tool with a non-empty
// IndexName is a retrieval tool; an empty IndexName delegates to a registered
// domain handler instead.
type ToolDefinition struct {
	Name                      string                 `json:"name" validate:"required"`
	Description               string                 `json:"description"`
	Priority                  int                    `json:"priority"`
	DisplayMode               string                 `json:"display_mode" validate:"omitempty,oneof=as-is summarizable"`
	IndexName                 string                 `json:"index_name"`
	TopK                      int                    `json:"top_k" validate:"gte=0"`
	Reranker                  string                 `json:"reranker" validate:"omitempty,oneof=top1 top3 uprank_sdr"`
	Parameters                []ToolParameter        `json:"parameters" validate:"dive"`
	UserFieldsMapping         map[string]FieldValues `json:"user_fields_mapping"`
	DisambiguationLevel       int                    `json:"disambiguation_level" validate:"gte=0,lte=10"`
	CanBeOverriddenWhenSticky *bool                  `json:"can_be_overridden_when_sticky,omitempty"`
}

// Normalize fills defaults for zero-valued optional fields and canonicalizes
// parameter type tags. Called after every config load and before every save.
func (t *ToolDefinition) Normalize() {
	if t.Priority == 0 {
		t.Priority = 100
	}
	if t.DisplayMode == "" {
		t.DisplayMode = DisplayAsIs
	}
	if t.TopK == 0 {
		t.TopK = 1
	}
	if t.Reranker == "" {
		t.Reranker = RerankerTop1
	}
	if t.DisambiguationLevel == 0 {
		t.DisambiguationLevel = 5
	}
	for i := range t.Parameters {
		t.Parameters[i].Type = NormalizeParamType(t.Parameters[i].Type)
	}
}

// Overridable reports whether the planner may route away from this tool while
// it holds the sticky hint. Defaults to true when unset.
func (t ToolDefinition) Overridable() bool {
	if t.CanBeOverriddenWhenSticky == nil {
		return true
	}
	return *t.CanBeOverriddenWhenSticky
}

// IsRetrieval reports whether the tool is backed by a content index.
func (t ToolDefinition) IsRetrieval() bool {
	return t.IndexName != ""
}

// RequiredParams returns the names of all required parameters.
func (t ToolDefinition) RequiredParams() []string {
	var names []string
	for _, p := range t.Parameters {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// Param looks up a parameter declaration by name.
func (t ToolDefinition) Param(name string) (ToolParameter, bool) {
	for _, p := range t.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ToolParameter{}, false
}
