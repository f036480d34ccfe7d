package model

import (
	"encoding/json"
	"fmt"
)

// FieldValues holds a user-field mapping value. The config JSON allows either a
// single scalar ("US") or a list (["US", "CA"]); both are kept as a string slice
// so the matching rule is a plain membership check. Single values marshal back
// as a scalar to keep round-trips stable for the admin API.
type FieldValues []string

func (f *FieldValues) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*f = FieldValues{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*f = many
		return nil
	}

	// Numbers and booleans show up in hand-edited configs. Compare by string form.
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case []interface{}:
		out := make(FieldValues, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		*f = out
	default:
		*f = FieldValues{fmt.Sprint(v)}
	}
	return nil
}

func (f FieldValues) MarshalJSON() ([]byte, error) {
	if len(f) == 1 {
		return json.Marshal(f[0])
	}
	return json.Marshal([]string(f))
}

// Contains reports whether value (string form) is one of the mapped values.
func (f FieldValues) Contains(value string) bool {
	for _, v := range f {
		if v == value {
			return true
		}
	}
	return false
}

// ContentEntry is a single knowledge base item. Entries are owned by the
// content index and edited through the admin API; retrieval always works on
// copies so an entry is never mutated mid-search.
type ContentEntry struct {
	Title             string                 `json:"title"`
	Body              string                 `json:"body"`
	IndexName         string                 `json:"index_name"`
	QueryStrings      []string               `json:"query_strings"`
	UserFieldsMapping map[string]FieldValues `json:"user_fields_mapping"`
	Tags              []string               `json:"tags"`
	SourceLink        string                 `json:"source_link,omitempty"`
}

// HasTag reports whether the entry carries the given tag.
func (e ContentEntry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// MainText is the text embedded for the entry itself (one vector per entry,
// plus one per query string).
func (e ContentEntry) MainText() string {
	return e.Title + " " + e.Body
}
