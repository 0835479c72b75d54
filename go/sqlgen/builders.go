package sqlgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sovakpeter/lakegate/go/protocol"
)

// Statement is a synthesized SQL string plus its named parameters in the
// canonical %(name)s style.
type Statement struct {
	SQL    string
	Params map[string]any
}

// BatchStatement is one SQL template executed once per parameter set.
type BatchStatement struct {
	SQL       string
	ParamSets []map[string]any
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// filterExpr renders one predicate, binding values under prefix_col names.
func filterExpr(f Filter, prefix string, params map[string]any) (string, error) {
	col, err := QuoteIdentifier(f.Column)
	if err != nil {
		return "", err
	}
	op := strings.ToUpper(strings.TrimSpace(f.Operator))
	base := prefix + "_" + f.Column

	switch op {
	case "IS NULL", "IS NOT NULL":
		return fmt.Sprintf("%s %s", col, op), nil

	case "IN", "NOT IN":
		list, ok := asList(f.Value)
		if !ok || len(list) == 0 {
			return "", protocol.ValidationError(
				"IN filter requires a non-empty list.",
				fmt.Sprintf("%s filter on %q with non-list value", op, f.Column))
		}
		names := make([]string, len(list))
		for i, v := range list {
			name := fmt.Sprintf("%s_%d", base, i)
			params[name] = v
			names[i] = "%(" + name + ")s"
		}
		return fmt.Sprintf("%s %s (%s)", col, op, strings.Join(names, ", ")), nil

	case "BETWEEN":
		list, ok := asList(f.Value)
		if !ok || len(list) != 2 {
			return "", protocol.ValidationError(
				"BETWEEN requires exactly two bounds.",
				fmt.Sprintf("BETWEEN filter on %q needs [low, high]", f.Column))
		}
		lo, hi := base+"_lo", base+"_hi"
		params[lo] = list[0]
		params[hi] = list[1]
		return fmt.Sprintf("%s BETWEEN %%(%s)s AND %%(%s)s", col, lo, hi), nil

	default:
		if !allowedOperators[op] {
			return "", protocol.ValidationError(
				"Unsupported filter operator.",
				fmt.Sprintf("operator %q is not allowed", f.Operator))
		}
		params[base] = f.Value
		return fmt.Sprintf("%s %s %%(%s)s", col, op, base), nil
	}
}

// combineAnd joins predicates over one record's columns.
func combineAnd(filters []Filter, prefix string, params map[string]any) (string, error) {
	exprs := make([]string, 0, len(filters))
	for _, f := range filters {
		e, err := filterExpr(f, prefix, params)
		if err != nil {
			return "", err
		}
		exprs = append(exprs, e)
	}
	return strings.Join(exprs, " AND "), nil
}

// BuildSelect synthesizes a SELECT from the intent. The intent must be
// validated first.
func BuildSelect(intent *SelectIntent) (*Statement, error) {
	table, err := QuoteTableRef(intent.Table)
	if err != nil {
		return nil, err
	}

	var projection []string
	switch {
	case len(intent.Aggregates) > 0:
		for _, col := range intent.GroupBy {
			q, err := QuoteIdentifier(col)
			if err != nil {
				return nil, err
			}
			projection = append(projection, q)
		}
		for _, a := range intent.Aggregates {
			fn := strings.ToUpper(a.Function)
			var target string
			if a.Column == "*" {
				target = "*"
			} else {
				target, err = QuoteIdentifier(a.Column)
				if err != nil {
					return nil, err
				}
			}
			expr := fmt.Sprintf("%s(%s)", fn, target)
			if a.Alias != "" {
				alias, err := QuoteIdentifier(a.Alias)
				if err != nil {
					return nil, err
				}
				expr += " AS " + alias
			}
			projection = append(projection, expr)
		}
	case intent.IsWildcard():
		projection = []string{"*"}
	default:
		for _, col := range intent.Columns {
			q, err := QuoteIdentifier(col)
			if err != nil {
				return nil, err
			}
			projection = append(projection, q)
		}
	}

	params := map[string]any{}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(projection, ", "), table)

	if len(intent.Filters) > 0 {
		where, err := combineAnd(NormalizeFilters(intent.Filters), "w", params)
		if err != nil {
			return nil, err
		}
		b.WriteString(" WHERE " + where)
	}

	if len(intent.GroupBy) > 0 {
		cols := make([]string, 0, len(intent.GroupBy))
		for _, col := range intent.GroupBy {
			q, err := QuoteIdentifier(col)
			if err != nil {
				return nil, err
			}
			cols = append(cols, q)
		}
		b.WriteString(" GROUP BY " + strings.Join(cols, ", "))
	}

	if len(intent.Having) > 0 {
		having, err := combineAnd(NormalizeFilters(intent.Having), "h", params)
		if err != nil {
			return nil, err
		}
		b.WriteString(" HAVING " + having)
	}

	if len(intent.OrderBy) > 0 {
		terms := make([]string, 0, len(intent.OrderBy))
		for _, o := range intent.OrderBy {
			q, err := QuoteIdentifier(o.Column)
			if err != nil {
				return nil, err
			}
			dir := "ASC"
			if o.Descending {
				dir = "DESC"
			}
			terms = append(terms, q+" "+dir)
		}
		b.WriteString(" ORDER BY " + strings.Join(terms, ", "))
	}

	if intent.Limit != nil {
		fmt.Fprintf(&b, " LIMIT %d", *intent.Limit)
		if intent.Offset != nil {
			fmt.Fprintf(&b, " OFFSET %d", *intent.Offset)
		}
	}

	return &Statement{SQL: b.String(), Params: params}, nil
}

// BuildInsert synthesizes a single-record INSERT with v_<col> parameters.
func BuildInsert(intent *InsertIntent) (*Statement, error) {
	table, err := QuoteTableRef(intent.Table)
	if err != nil {
		return nil, err
	}

	cols := sortedKeys(intent.Record)
	params := map[string]any{}
	quoted := make([]string, len(cols))
	values := make([]string, len(cols))
	for i, col := range cols {
		q, err := QuoteIdentifier(col)
		if err != nil {
			return nil, err
		}
		name := "v_" + col
		params[name] = intent.Record[col]
		quoted[i] = q
		values[i] = "%(" + name + ")s"
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(quoted, ", "), strings.Join(values, ", "))
	return &Statement{SQL: sql, Params: params}, nil
}

// BuildUpdate synthesizes either a plain UPDATE or a MERGE depending on the
// intent's strategy.
func BuildUpdate(intent *UpdateIntent) (*Statement, error) {
	if intent.Strategy == protocol.StrategyMerge {
		return buildMergeUpdate(intent)
	}
	return buildPlainUpdate(intent)
}

// buildPlainUpdate emits SET s_<col> terms keyed by pk_<col>, with
// old_<col> equality predicates appended for optimistic concurrency.
func buildPlainUpdate(intent *UpdateIntent) (*Statement, error) {
	table, err := QuoteTableRef(intent.Table)
	if err != nil {
		return nil, err
	}

	params := map[string]any{}
	sets := make([]string, 0, len(intent.Updates))
	for _, col := range sortedKeys(intent.Updates) {
		q, err := QuoteIdentifier(col)
		if err != nil {
			return nil, err
		}
		name := "s_" + col
		params[name] = intent.Updates[col]
		sets = append(sets, fmt.Sprintf("%s = %%(%s)s", q, name))
	}

	var preds []string
	for _, col := range sortedKeys(intent.PKValues) {
		q, err := QuoteIdentifier(col)
		if err != nil {
			return nil, err
		}
		name := "pk_" + col
		params[name] = intent.PKValues[col]
		preds = append(preds, fmt.Sprintf("%s = %%(%s)s", q, name))
	}
	for _, col := range sortedKeys(intent.OldValues) {
		q, err := QuoteIdentifier(col)
		if err != nil {
			return nil, err
		}
		if intent.OldValues[col] == nil {
			preds = append(preds, q+" IS NULL")
			continue
		}
		name := "old_" + col
		params[name] = intent.OldValues[col]
		preds = append(preds, fmt.Sprintf("%s = %%(%s)s", q, name))
	}

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		table, strings.Join(sets, ", "), strings.Join(preds, " AND "))
	return &Statement{SQL: sql, Params: params}, nil
}

// buildMergeUpdate emits a MERGE with a single-row source of m_<col>
// parameters, target aliased t and source aliased s.
func buildMergeUpdate(intent *UpdateIntent) (*Statement, error) {
	table, err := QuoteTableRef(intent.Table)
	if err != nil {
		return nil, err
	}

	params := map[string]any{}
	all := map[string]any{}
	for k, v := range intent.PKValues {
		all[k] = v
	}
	for k, v := range intent.Updates {
		all[k] = v
	}

	cols := sortedKeys(all)
	source := make([]string, 0, len(cols))
	quoted := make(map[string]string, len(cols))
	for _, col := range cols {
		q, err := QuoteIdentifier(col)
		if err != nil {
			return nil, err
		}
		quoted[col] = q
		name := "m_" + col
		params[name] = all[col]
		source = append(source, fmt.Sprintf("%%(%s)s AS %s", name, q))
	}

	on := make([]string, 0, len(intent.PKValues))
	for _, col := range sortedKeys(intent.PKValues) {
		on = append(on, fmt.Sprintf("t.%s = s.%s", quoted[col], quoted[col]))
	}

	sets := make([]string, 0, len(intent.Updates))
	for _, col := range sortedKeys(intent.Updates) {
		sets = append(sets, fmt.Sprintf("t.%s = s.%s", quoted[col], quoted[col]))
	}

	insertCols := make([]string, 0, len(cols))
	insertVals := make([]string, 0, len(cols))
	for _, col := range cols {
		insertCols = append(insertCols, quoted[col])
		insertVals = append(insertVals, "s."+quoted[col])
	}

	sql := fmt.Sprintf(
		"MERGE INTO %s AS t USING (SELECT %s) AS s ON %s"+
			" WHEN MATCHED THEN UPDATE SET %s"+
			" WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)",
		table,
		strings.Join(source, ", "),
		strings.Join(on, " AND "),
		strings.Join(sets, ", "),
		strings.Join(insertCols, ", "),
		strings.Join(insertVals, ", "))
	return &Statement{SQL: sql, Params: params}, nil
}

// BuildDelete synthesizes a DELETE matching any of the intent's key sets:
// AND within a set, OR across sets.
func BuildDelete(intent *DeleteIntent) (*Statement, error) {
	return buildKeyedDelete(intent.Table, intent.PKSets, "d")
}

func buildKeyedDelete(tableRef string, pkSets []map[string]any, prefix string) (*Statement, error) {
	table, err := QuoteTableRef(tableRef)
	if err != nil {
		return nil, err
	}

	params := map[string]any{}
	groups := make([]string, 0, len(pkSets))
	for i, set := range pkSets {
		preds := make([]string, 0, len(set))
		for _, col := range sortedKeys(set) {
			q, err := QuoteIdentifier(col)
			if err != nil {
				return nil, err
			}
			name := fmt.Sprintf("%s_%s_%d", prefix, col, i)
			params[name] = set[col]
			preds = append(preds, fmt.Sprintf("%s = %%(%s)s", q, name))
		}
		group := strings.Join(preds, " AND ")
		if len(pkSets) > 1 && len(set) > 1 {
			group = "(" + group + ")"
		}
		groups = append(groups, group)
	}

	sql := fmt.Sprintf("DELETE FROM %s WHERE %s", table, strings.Join(groups, " OR "))
	return &Statement{SQL: sql, Params: params}, nil
}

// BuildBatchSelect reads many records by primary key: AND within a key
// set, OR across sets, bp_<col>_<i> parameters, capped by limit.
func BuildBatchSelect(tableRef string, columns []string, pkSets []map[string]any, limit int) (*Statement, error) {
	table, err := QuoteTableRef(tableRef)
	if err != nil {
		return nil, err
	}
	if len(pkSets) == 0 {
		return nil, protocol.ValidationError("Batch read requires keys.", "batch select with no pk sets")
	}

	projection := "*"
	if len(columns) > 0 && !(len(columns) == 1 && columns[0] == "*") {
		quoted := make([]string, len(columns))
		for i, col := range columns {
			q, err := QuoteIdentifier(col)
			if err != nil {
				return nil, err
			}
			quoted[i] = q
		}
		projection = strings.Join(quoted, ", ")
	}

	params := map[string]any{}
	groups := make([]string, 0, len(pkSets))
	for i, set := range pkSets {
		if len(set) == 0 {
			return nil, protocol.ValidationError(
				"Batch read requires keys.",
				fmt.Sprintf("batch select pk set %d is empty", i))
		}
		preds := make([]string, 0, len(set))
		for _, col := range sortedKeys(set) {
			q, err := QuoteIdentifier(col)
			if err != nil {
				return nil, err
			}
			name := fmt.Sprintf("bp_%s_%d", col, i)
			params[name] = set[col]
			preds = append(preds, fmt.Sprintf("%s = %%(%s)s", q, name))
		}
		group := strings.Join(preds, " AND ")
		if len(pkSets) > 1 && len(set) > 1 {
			group = "(" + group + ")"
		}
		groups = append(groups, group)
	}

	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s LIMIT %d",
		projection, table, strings.Join(groups, " OR "), limit)
	return &Statement{SQL: sql, Params: params}, nil
}

// BuildBatchInsert synthesizes one INSERT template from the first record's
// columns plus a parameter set per record. Records missing a column bind
// NULL for it; extra columns in later records are rejected.
func BuildBatchInsert(tableRef string, records []map[string]any) (*BatchStatement, error) {
	if len(records) == 0 {
		return nil, protocol.ValidationError("Batch insert requires records.", "batch insert with no records")
	}

	template, err := BuildInsert(&InsertIntent{Table: tableRef, Record: records[0]})
	if err != nil {
		return nil, err
	}
	cols := sortedKeys(records[0])
	colSet := map[string]bool{}
	for _, c := range cols {
		colSet[c] = true
	}

	sets := make([]map[string]any, 0, len(records))
	for i, rec := range records {
		for col := range rec {
			if !colSet[col] {
				return nil, protocol.ValidationError(
					"Batch records must share the same columns.",
					fmt.Sprintf("record %d has unexpected column %q", i, col))
			}
		}
		set := make(map[string]any, len(cols))
		for _, col := range cols {
			set["v_"+col] = rec[col]
		}
		sets = append(sets, set)
	}

	return &BatchStatement{SQL: template.SQL, ParamSets: sets}, nil
}
