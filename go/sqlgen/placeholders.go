package sqlgen

import "regexp"

// namedParam matches :name placeholders while leaving ::type casts alone.
// RE2 has no lookbehind, so the character preceding the colon is captured
// and restored in the replacement.
var namedParam = regexp.MustCompile(`(^|[^:]):([a-zA-Z_][a-zA-Z0-9_]*)`)

// NormalizePlaceholders rewrites :name placeholders into the gateway's
// canonical %(name)s form. Postgres-style casts (::BIGINT) pass through
// untouched.
func NormalizePlaceholders(sql string) string {
	return namedParam.ReplaceAllString(sql, `$1%($2)s`)
}

var canonicalParam = regexp.MustCompile(`%\(([a-zA-Z_][a-zA-Z0-9_]*)\)s`)

// PlaceholderNames lists the distinct parameter names referenced by sql, in
// first-appearance order.
func PlaceholderNames(sql string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range canonicalParam.FindAllStringSubmatch(sql, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}
