// Package sqlgen synthesizes parameterized Spark SQL from typed intents.
// Identifiers are backtick-quoted and values always travel as named
// parameters in the gateway's canonical %(name)s style; driver adapters
// rewrite placeholders to their native binding on execution.
package sqlgen

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sovakpeter/lakegate/go/protocol"
)

var (
	identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	tableRefPattern   = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*\.[a-zA-Z_][a-zA-Z0-9_]*\.[a-zA-Z_][a-zA-Z0-9_]*$`)

	lineComment  = regexp.MustCompile(`--[^\n]*`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)

	// Patterns that disqualify manifest SQL outright.
	dangerousPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i);\s*(DROP|DELETE|TRUNCATE|ALTER|CREATE|INSERT|UPDATE|GRANT|REVOKE)\b`),
		regexp.MustCompile(`(?i)\bxp_\w+`),
		regexp.MustCompile(`(?i)\bEXEC\s*\(`),
	}
)

// readonlyPrefixes are the only statement forms named queries may start with.
var readonlyPrefixes = []string{"SELECT", "WITH", "DESCRIBE", "SHOW"}

// QuoteIdentifier validates name as a plain SQL identifier and wraps it in
// backticks.
func QuoteIdentifier(name string) (string, error) {
	if !identifierPattern.MatchString(name) {
		return "", protocol.SecurityError(
			"Invalid identifier.",
			fmt.Sprintf("identifier %q does not match %s", name, identifierPattern.String()))
	}
	return "`" + name + "`", nil
}

// ParseTableRef splits a fully qualified catalog.schema.table reference.
func ParseTableRef(ref string) (catalog, schema, table string, err error) {
	if !tableRefPattern.MatchString(ref) {
		return "", "", "", protocol.SecurityError(
			"Invalid table reference.",
			fmt.Sprintf("table reference %q must be catalog.schema.table", ref))
	}
	parts := strings.Split(ref, ".")
	return parts[0], parts[1], parts[2], nil
}

// QuoteTableRef validates and quotes each segment of a 3-part reference.
func QuoteTableRef(ref string) (string, error) {
	catalog, schema, table, err := ParseTableRef(ref)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("`%s`.`%s`.`%s`", catalog, schema, table), nil
}

// StripSQLComments removes line and block comments before pattern scans so
// commented-out text cannot hide or fake attack patterns.
func StripSQLComments(sql string) string {
	sql = blockComment.ReplaceAllString(sql, " ")
	return lineComment.ReplaceAllString(sql, " ")
}

// ValidateSQL scans manifest SQL for stacked statements and other patterns
// that have no place in a curated read-only query.
func ValidateSQL(sql string) error {
	stripped := StripSQLComments(sql)
	for _, p := range dangerousPatterns {
		if p.MatchString(stripped) {
			return protocol.SecurityError(
				"Query failed safety validation.",
				fmt.Sprintf("sql matched dangerous pattern %s", p.String()))
		}
	}
	return nil
}

// ValidateReadonlyPrefix ensures a named query is a read.
func ValidateReadonlyPrefix(sql string) error {
	head := strings.ToUpper(strings.TrimSpace(StripSQLComments(sql)))
	for _, prefix := range readonlyPrefixes {
		if strings.HasPrefix(head, prefix) {
			return nil
		}
	}
	return protocol.SecurityError(
		"Only read queries are allowed here.",
		fmt.Sprintf("statement must start with one of %v", readonlyPrefixes))
}

// ValidateMutationSafety enforces the structural minimums for mutations:
// inserts need a payload, updates and merges need payload and a key
// predicate, deletes need a key predicate.
func ValidateMutationSafety(op protocol.OperationType, payload, where map[string]any) error {
	switch op {
	case protocol.OpInsert:
		if len(payload) == 0 {
			return protocol.ValidationError("Insert requires data.", "INSERT with empty payload")
		}
	case protocol.OpUpdate, protocol.OpMerge:
		if len(payload) == 0 {
			return protocol.ValidationError("Update requires data.", string(op)+" with empty payload")
		}
		if len(where) == 0 {
			return protocol.ValidationError(
				"Update requires a key predicate.", string(op)+" without WHERE would touch every row")
		}
	case protocol.OpDelete:
		if len(where) == 0 {
			return protocol.ValidationError(
				"Delete requires a key predicate.", "DELETE without WHERE would touch every row")
		}
	}
	return nil
}
