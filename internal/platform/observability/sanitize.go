package observability

import "unicode"

const defaultStringLimit = 256

// sanitizeString trims unwanted characters and limits string length to avoid log injection.
func sanitizeString(value string, limit int) string {
	if limit <= 0 {
		limit = defaultStringLimit
	}

	cleaned := make([]rune, 0, len(value))
	for _, r := range value {
		if unicode.IsControl(r) {
			continue
		}
		cleaned = append(cleaned, r)
	}
	if len(cleaned) > limit {
		cleaned = cleaned[:limit]
	}
	return string(cleaned)
}

// SanitizeValue strips control characters from free-form values headed for logs.
func SanitizeValue(value string) string {
	return sanitizeString(value, 0)
}

// MaskPhone keeps only the last three digits of a phone number for logging.
func MaskPhone(phone string) string {
	runes := []rune(sanitizeString(phone, 32))
	if len(runes) <= 3 {
		return "***"
	}
	masked := make([]rune, len(runes))
	for i, r := range runes {
		if i >= len(runes)-3 || !unicode.IsDigit(r) {
			masked[i] = r
			continue
		}
		masked[i] = '*'
	}
	return string(masked)
}
