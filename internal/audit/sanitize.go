package audit

import (
	"encoding/json"
	"strings"
)

// RedactedValue replaces the value of every sensitive key.
const RedactedValue = "[REDACTED]"

const previewChars = 500

// sensitiveKeys are matched as case-insensitive substrings of object keys.
var sensitiveKeys = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"api_key",
	"apikey",
	"api-key",
	"authorization",
	"cookie",
	"credential",
	"private_key",
	"access_key",
	"ssn",
	"credit_card",
	"card_number",
	"cvv",
}

// IsSensitiveKey reports whether values stored under key must be redacted.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Sanitize returns a copy of v with every sensitive key redacted at any
// depth, including objects nested in arrays. v is not modified.
func Sanitize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if IsSensitiveKey(k) {
				out[k] = RedactedValue
				continue
			}
			out[k] = Sanitize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Sanitize(val)
		}
		return out
	default:
		return v
	}
}

// Truncate replaces v with a marker when its JSON form exceeds maxBytes.
// The marker keeps the original size and a prefix of the serialized body.
func Truncate(v any, maxBytes int) any {
	if v == nil || maxBytes <= 0 {
		return v
	}
	b, err := json.Marshal(v)
	if err != nil || len(b) <= maxBytes {
		return v
	}
	return map[string]any{
		"_truncated":     true,
		"_original_size": len(b),
		"_preview":       preview(b),
	}
}

func preview(b []byte) string {
	n := 0
	for i := range string(b) {
		if n == previewChars {
			return string(b[:i])
		}
		n++
	}
	return string(b)
}

// decodeBody parses a captured body. A body that is not valid JSON,
// including one cut off at the capture limit, cannot be redacted by key,
// so only its size is kept.
func decodeBody(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return map[string]any{
			"_unparseable":   true,
			"_original_size": len(raw),
		}
	}
	return v
}
