package diaglog

import (
	"os"
	"strings"
)

// sensitiveKeys are the field names whose values are replaced with
// "[REDACTED]" before any log entry is written.
var sensitiveKeys = map[string]bool{
	"password": true,
	"secret":   true,
	"token":    true,
	"auth":     true,
}

// Redact recursively traverses v, replaces the values of any key found in
// sensitiveKeys with the literal string "[REDACTED]", and rewrites string
// values that start with the current home directory to use "~" instead.
// Recording paths live under $HOME, and exported diagnostic bundles are
// meant to be shared. v is not mutated; a new value is returned.
func Redact(v interface{}) interface{} {
	home, _ := os.UserHomeDir()
	return redact(v, home)
}

func redact(v interface{}, home string) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			if sensitiveKeys[k] {
				out[k] = "[REDACTED]"
			} else {
				out[k] = redact(child, home)
			}
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, elem := range val {
			out[i] = redact(elem, home)
		}
		return out
	case string:
		return anonymizePath(val, home)
	default:
		return v
	}
}

// anonymizePath replaces a home-directory prefix with "~".
func anonymizePath(s, home string) string {
	if home == "" || home == "/" {
		return s
	}
	if strings.HasPrefix(s, home) {
		return "~" + strings.TrimPrefix(s, home)
	}
	return s
}
