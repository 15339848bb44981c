package logging

import (
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// sensitiveKeys never have their values written. Matching is on the
// lower-cased metadata key.
var sensitiveKeys = map[string]struct{}{
	"key":        {},
	"inverse":    {},
	"iv":         {},
	"text":       {},
	"plaintext":  {},
	"ciphertext": {},
	"padded":     {},
	"secret":     {},
	"jwt_secret": {},
	"token":      {},
}

var (
	bearerRe    = regexp.MustCompile(`(?i)\b(bearer)\s+([A-Za-z0-9._\-]{10,})`)
	kvSecretRe  = regexp.MustCompile(`(?i)\b(key|iv|secret|token)(\s*[:=]\s*)("[^"]*"|'[^']*'|[^\s;]+)`)
	longTokenRe = regexp.MustCompile(`\b[A-Za-z0-9_\-]{32,}\b`)
)

// RedactString masks bearer tokens, key=value secrets and long opaque
// tokens in free text.
func RedactString(in string) string {
	if strings.TrimSpace(in) == "" {
		return in
	}
	out := bearerRe.ReplaceAllString(in, "$1 "+redacted)
	out = kvSecretRe.ReplaceAllString(out, "$1$2"+redacted)
	return longTokenRe.ReplaceAllString(out, redacted)
}

// RedactMetadata returns a copy of in with sensitive keys masked and string
// values passed through RedactString. Nested maps are handled recursively.
func RedactMetadata(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if _, ok := sensitiveKeys[strings.ToLower(k)]; ok {
			out[k] = redacted
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch val := v.(type) {
	case string:
		return RedactString(val)
	case map[string]any:
		return RedactMetadata(val)
	case []string:
		cp := make([]string, len(val))
		for i, s := range val {
			cp[i] = RedactString(s)
		}
		return cp
	case []any:
		cp := make([]any, len(val))
		for i, item := range val {
			cp[i] = redactValue(item)
		}
		return cp
	default:
		return v
	}
}
