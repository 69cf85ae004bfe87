package textutil

import (
	"strings"

	"golang.org/x/text/width"
)

const algeriaCountryCode = "213"

// NormalizePhone folds a phone number to the local form used as the ban lookup key:
// full-width digits become ASCII, separators are removed and the +213/00213 prefix
// becomes a leading zero. Input without digits normalises to "".
func NormalizePhone(raw string) string {
	folded := width.Fold.String(strings.TrimSpace(raw))

	var digits strings.Builder
	international := strings.HasPrefix(folded, "+")
	for _, r := range folded {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	out := digits.String()
	if out == "" {
		return ""
	}

	if strings.HasPrefix(out, "00"+algeriaCountryCode) {
		out = strings.TrimPrefix(out, "00")
		international = true
	}
	if international && strings.HasPrefix(out, algeriaCountryCode) {
		local := strings.TrimPrefix(out, algeriaCountryCode)
		if !strings.HasPrefix(local, "0") {
			local = "0" + local
		}
		return local
	}
	if international {
		return "+" + out
	}
	return out
}
