package model

import "fmt"

// UserProfile carries the attributes of the current user plus free-form
// business context. Attributes feed both the planning prompt and the
// user-field filter on retrieval; business context is prompt-only.
type UserProfile struct {
	Attributes      map[string]interface{} `json:"attributes"`
	BusinessContext map[string]interface{} `json:"business_context"`
}

// FieldAttributes returns attributes in string form for index field matching.
func (u UserProfile) FieldAttributes() map[string]string {
	if len(u.Attributes) == 0 {
		return nil
	}
	out := make(map[string]string, len(u.Attributes))
	for k, v := range u.Attributes {
		out[k] = fmt.Sprint(v)
	}
	return out
}
