package index

import "ai-support-router-be/internal/model"

// MatchesUserFields applies the user-field predicate: every field the search
// provides must be declared by the entry, and the user's value (string form)
// must be one of the entry's mapped values. A search with no user fields
// matches everything; a search with fields never matches an entry that has no
// mapping at all.
func MatchesUserFields(entry model.ContentEntry, userFields map[string]string) bool {
	if len(userFields) == 0 {
		return true
	}
	if len(entry.UserFieldsMapping) == 0 {
		return false
	}
	for field, userValue := range userFields {
		allowed, ok := entry.UserFieldsMapping[field]
		if !ok {
			return false
		}
		if !allowed.Contains(userValue) {
			return false
		}
	}
	return true
}
