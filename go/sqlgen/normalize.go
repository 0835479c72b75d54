package sqlgen

import "strings"

// NormalizeOperator adjusts an operator to the cardinality of its value:
// lists turn equality into IN, single-item lists collapse back to
// equality, an empty IN list matches nothing (IS NULL), and an empty
// NOT IN list excludes nothing (IS NOT NULL).
func NormalizeOperator(operator string, value any) (string, any) {
	op := strings.ToUpper(strings.TrimSpace(operator))
	if op == "" {
		op = "="
	}

	list, isList := asList(value)
	if !isList {
		return op, value
	}

	switch len(list) {
	case 0:
		switch op {
		case "!=", "<>", "NOT IN":
			return "IS NOT NULL", nil
		}
		return "IS NULL", nil
	case 1:
		switch op {
		case "=", "IN":
			return "=", list[0]
		case "!=", "<>", "NOT IN":
			return "!=", list[0]
		default:
			return op, list[0]
		}
	default:
		switch op {
		case "=", "IN":
			return "IN", list
		case "!=", "<>", "NOT IN":
			return "NOT IN", list
		default:
			return op, list
		}
	}
}

// NormalizeFilters applies NormalizeOperator across a filter list.
func NormalizeFilters(filters []Filter) []Filter {
	if len(filters) == 0 {
		return nil
	}
	out := make([]Filter, 0, len(filters))
	for _, f := range filters {
		op, v := NormalizeOperator(f.Operator, f.Value)
		out = append(out, Filter{Column: f.Column, Operator: op, Value: v})
	}
	return out
}

// FiltersFromWhere converts a request where-map into filters. A list value
// means IN, a nested {"op": ..., "value": ...} object selects the
// operator, anything else is equality.
func FiltersFromWhere(where map[string]any) []Filter {
	if len(where) == 0 {
		return nil
	}
	out := make([]Filter, 0, len(where))
	for _, col := range sortedKeys(where) {
		value := where[col]
		if cond, ok := value.(map[string]any); ok {
			op, _ := cond["op"].(string)
			if op == "" {
				op, _ = cond["operator"].(string)
			}
			if op != "" {
				out = append(out, Filter{Column: col, Operator: op, Value: cond["value"]})
				continue
			}
		}
		out = append(out, Filter{Column: col, Operator: "=", Value: value})
	}
	return NormalizeFilters(out)
}

func asList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}
