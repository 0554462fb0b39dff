package ai

import "strings"

// CleanJSON strips markdown code fences that models sometimes wrap around
// JSON output despite being told not to
func CleanJSON(raw string) string {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	return strings.TrimSpace(clean)
}
