package logging

import "regexp"

var sensitiveKey = regexp.MustCompile(
	`(?i)(token|password|secret|key|credential|auth|api_key|apikey|access_token|refresh_token)`)

const redactedValue = "***REDACTED***"

// Redact returns a copy of data with values replaced for any key that looks
// like a secret. Nested maps are redacted recursively; the input is never
// modified.
func Redact(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch {
		case sensitiveKey.MatchString(k):
			out[k] = redactedValue
		default:
			if nested, ok := v.(map[string]any); ok {
				out[k] = Redact(nested)
			} else {
				out[k] = v
			}
		}
	}
	return out
}

// IsSensitiveKey reports whether a key matches the secret-detection pattern.
func IsSensitiveKey(key string) bool {
	return sensitiveKey.MatchString(key)
}
