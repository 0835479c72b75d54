package driver

import (
	"database/sql"
	"fmt"
	"regexp"

	"github.com/sovakpeter/lakegate/go/protocol"
)

var canonicalParam = regexp.MustCompile(`%\(([a-zA-Z_][a-zA-Z0-9_]*)\)s`)

// bindFunc rewrites a canonical statement into driver-native SQL and
// argument list.
type bindFunc func(sqlText string, params map[string]any) (string, []any, error)

// bindPositional rewrites %(name)s placeholders to ? markers with arguments
// in appearance order. Used by the sqlite adapter.
func bindPositional(sqlText string, params map[string]any) (string, []any, error) {
	var args []any
	var bindErr error
	out := canonicalParam.ReplaceAllStringFunc(sqlText, func(m string) string {
		name := canonicalParam.FindStringSubmatch(m)[1]
		v, ok := params[name]
		if !ok {
			bindErr = protocol.ValidationError(
				"Missing query parameter.",
				fmt.Sprintf("no value bound for parameter %q", name))
			return m
		}
		args = append(args, v)
		return "?"
	})
	if bindErr != nil {
		return "", nil, bindErr
	}
	return out, args, nil
}

// bindNamed rewrites %(name)s placeholders to :name markers with
// sql.Named arguments. Used by the databricks adapter.
func bindNamed(sqlText string, params map[string]any) (string, []any, error) {
	seen := map[string]bool{}
	var args []any
	var bindErr error
	out := canonicalParam.ReplaceAllStringFunc(sqlText, func(m string) string {
		name := canonicalParam.FindStringSubmatch(m)[1]
		v, ok := params[name]
		if !ok {
			bindErr = protocol.ValidationError(
				"Missing query parameter.",
				fmt.Sprintf("no value bound for parameter %q", name))
			return m
		}
		if !seen[name] {
			seen[name] = true
			args = append(args, sql.Named(name, v))
		}
		return ":" + name
	})
	if bindErr != nil {
		return "", nil, bindErr
	}
	return out, args, nil
}
