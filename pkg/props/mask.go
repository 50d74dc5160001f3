package props

import (
	"strings"

	masker "github.com/goliatone/go-masker"
)

var sensitiveKeyHints = []string{
	"secret", "token", "password", "key", "credential", "connection",
}

func init() {
	// Register the hint fields so masking uses sane defaults.
	for _, field := range sensitiveKeyHints {
		masker.Default.RegisterMaskField(field, "preserveEnds(2,2)")
	}
}

// Sensitive reports whether a property key looks like it carries a secret.
func Sensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, hint := range sensitiveKeyHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// MaskValue returns a log-safe rendering of a resolved property value.
// Values under non-sensitive keys pass through unchanged.
func MaskValue(key, value string) string {
	if value == "" || !Sensitive(key) {
		return value
	}
	if masked, err := masker.Default.String("preserveEnds(2,2)", value); err == nil {
		return masked
	}
	// Fallback masking if no rule is registered.
	runes := []rune(value)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:2]) + strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-2:])
}
