package sqlgen

import (
	"fmt"
	"strings"

	"github.com/sovakpeter/lakegate/go/protocol"
)

// Filter is one predicate term. Value is ignored for IS NULL / IS NOT NULL
// and must be a two-element slice for BETWEEN.
type Filter struct {
	Column   string
	Operator string
	Value    any
}

// allowedOperators is the closed set of filter operators.
var allowedOperators = map[string]bool{
	"=": true, "!=": true, "<>": true,
	">": true, ">=": true, "<": true, "<=": true,
	"LIKE": true, "NOT LIKE": true, "IN": true, "NOT IN": true, "BETWEEN": true,
	"IS NULL": true, "IS NOT NULL": true,
}

// aggregateFunctions is the allowlist for projection aggregates.
var aggregateFunctions = map[string]bool{
	"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true,
}

// SelectIntent is a typed read request.
type SelectIntent struct {
	Table      string
	Columns    []string
	Filters    []Filter
	GroupBy    []string
	Having     []Filter
	OrderBy    []protocol.OrderBy
	Aggregates []protocol.Aggregate
	Limit      *int
	Offset     *int
}

// IsWildcard reports whether the intent projects every column.
func (s *SelectIntent) IsWildcard() bool {
	if len(s.Columns) == 0 && len(s.Aggregates) == 0 {
		return true
	}
	return len(s.Columns) == 1 && s.Columns[0] == "*"
}

// Validate checks structural rules. maxLimit caps Limit in place rather
// than rejecting oversized values; the effective limit surfaces in
// response metadata.
func (s *SelectIntent) Validate(maxLimit int) error {
	if s.Table == "" {
		return protocol.ValidationError("Missing table.", "select intent without table")
	}
	for _, f := range append(append([]Filter{}, s.Filters...), s.Having...) {
		if !allowedOperators[strings.ToUpper(f.Operator)] {
			return protocol.ValidationError(
				"Unsupported filter operator.",
				fmt.Sprintf("operator %q is not allowed", f.Operator))
		}
	}
	for _, a := range s.Aggregates {
		if !aggregateFunctions[strings.ToUpper(a.Function)] {
			return protocol.ValidationError(
				"Unsupported aggregate function.",
				fmt.Sprintf("aggregate %q is not allowed", a.Function))
		}
	}
	if len(s.Having) > 0 && len(s.GroupBy) == 0 {
		return protocol.ValidationError(
			"HAVING requires GROUP BY.", "having clause without group_by")
	}
	if s.Offset != nil {
		if s.Limit == nil {
			return protocol.ValidationError(
				"OFFSET requires LIMIT.", "offset set without limit")
		}
		if *s.Offset < 0 {
			return protocol.ValidationError("Offset must be non-negative.", "offset < 0")
		}
	}
	if s.Limit != nil {
		if *s.Limit <= 0 {
			return protocol.ValidationError("Limit must be positive.", "limit <= 0")
		}
		if maxLimit > 0 && *s.Limit > maxLimit {
			capped := maxLimit
			s.Limit = &capped
		}
	}
	return nil
}

// InsertIntent is a typed single-record insert.
type InsertIntent struct {
	Table  string
	Record map[string]any
}

// Validate checks the insert has a table and at least one column.
func (i *InsertIntent) Validate() error {
	if i.Table == "" {
		return protocol.ValidationError("Missing table.", "insert intent without table")
	}
	if len(i.Record) == 0 {
		return protocol.ValidationError("Insert requires data.", "insert intent with empty record")
	}
	return nil
}

// UpdateIntent is a typed single-record update keyed by primary key values,
// optionally carrying old values for optimistic concurrency, executed as a
// plain UPDATE or a MERGE.
type UpdateIntent struct {
	Table     string
	PKValues  map[string]any
	Updates   map[string]any
	OldValues map[string]any
	Strategy  protocol.UpdateStrategy
}

// Validate enforces disjointness between updated columns, key columns, and
// concurrency predicates.
func (u *UpdateIntent) Validate() error {
	if u.Table == "" {
		return protocol.ValidationError("Missing table.", "update intent without table")
	}
	if len(u.PKValues) == 0 {
		return protocol.ValidationError("Update requires a key predicate.", "update intent without pk values")
	}
	if len(u.Updates) == 0 {
		return protocol.ValidationError("Update requires data.", "update intent with no updates")
	}
	for col := range u.Updates {
		if _, ok := u.PKValues[col]; ok {
			return protocol.ValidationError(
				"Key columns cannot be updated.",
				fmt.Sprintf("column %q appears in both updates and pk values", col))
		}
	}
	for col := range u.OldValues {
		if _, ok := u.PKValues[col]; ok {
			return protocol.ValidationError(
				"Old values must not cover key columns.",
				fmt.Sprintf("column %q appears in both old_values and pk values", col))
		}
	}
	if u.Strategy == "" {
		u.Strategy = protocol.StrategyUpdate
	}
	return nil
}

// DeleteIntent deletes one or more records, each identified by a full set
// of primary key values.
type DeleteIntent struct {
	Table  string
	PKSets []map[string]any
}

// Validate checks every key set is non-empty.
func (d *DeleteIntent) Validate() error {
	if d.Table == "" {
		return protocol.ValidationError("Missing table.", "delete intent without table")
	}
	if len(d.PKSets) == 0 {
		return protocol.ValidationError("Delete requires a key predicate.", "delete intent without pk sets")
	}
	for i, set := range d.PKSets {
		if len(set) == 0 {
			return protocol.ValidationError(
				"Delete requires a key predicate.",
				fmt.Sprintf("delete intent pk set %d is empty", i))
		}
	}
	return nil
}
