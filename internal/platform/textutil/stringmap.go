package textutil

import "strings"

// NormalizeSelection trims option names and drops entries with an empty name or value.
// Values are kept verbatim: "Red" and "red" stay distinct choices.
func NormalizeSelection(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]string, len(values))
	for key, value := range values {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || strings.TrimSpace(value) == "" {
			continue
		}
		result[trimmedKey] = value
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
