package textutil

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MaxNoteLength caps operator notes and reasons.
const MaxNoteLength = 500

var plainTextPolicy = bluemonday.StrictPolicy()

// SanitizeNote strips markup from free text entered by operators, collapses
// whitespace and truncates the result to MaxNoteLength runes.
func SanitizeNote(raw string) string {
	stripped := html.UnescapeString(plainTextPolicy.Sanitize(raw))
	collapsed := strings.Join(strings.Fields(stripped), " ")
	runes := []rune(collapsed)
	if len(runes) > MaxNoteLength {
		runes = runes[:MaxNoteLength]
	}
	return string(runes)
}
