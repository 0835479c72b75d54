package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sovakpeter/lakegate/go/protocol"
)

func TestQuoteIdentifier(t *testing.T) {
	q, err := QuoteIdentifier("order_id")
	require.NoError(t, err)
	require.Equal(t, "`order_id`", q)

	for _, bad := range []string{"", "1col", "a-b", "a.b", "a`b", "a b", "a;drop"} {
		_, err := QuoteIdentifier(bad)
		require.Error(t, err, bad)
		require.Equal(t, protocol.CatSecurity, protocol.CategoryOf(err))
	}
}

func TestQuoteTableRef(t *testing.T) {
	q, err := QuoteTableRef("main.sales.orders")
	require.NoError(t, err)
	require.Equal(t, "`main`.`sales`.`orders`", q)

	for _, bad := range []string{"orders", "sales.orders", "a.b.c.d", "main.sales.or-ders", "main..orders"} {
		_, err := QuoteTableRef(bad)
		require.Error(t, err, bad)
	}
}

func TestParseTableRef(t *testing.T) {
	catalog, schema, table, err := ParseTableRef("main.sales.orders")
	require.NoError(t, err)
	require.Equal(t, "main", catalog)
	require.Equal(t, "sales", schema)
	require.Equal(t, "orders", table)
}

func TestValidateSQLRejectsStackedStatements(t *testing.T) {
	require.Error(t, ValidateSQL("SELECT 1; DROP TABLE x"))
	require.Error(t, ValidateSQL("SELECT 1; delete from x"))
	require.Error(t, ValidateSQL("SELECT xp_cmdshell"))
	require.Error(t, ValidateSQL("SELECT EXEC (1)"))
	require.NoError(t, ValidateSQL("SELECT executor_name FROM main.ops.jobs"))
}

func TestValidateSQLIgnoresComments(t *testing.T) {
	// Attack patterns hidden in comments are stripped before scanning,
	// and comments cannot whitewash a real stacked statement.
	require.NoError(t, ValidateSQL("SELECT 1 -- ; DROP TABLE x"))
	require.NoError(t, ValidateSQL("SELECT 1 /* ; TRUNCATE y */"))
	require.Error(t, ValidateSQL("SELECT 1 /* c */ ; DROP TABLE x"))
}

func TestValidateReadonlyPrefix(t *testing.T) {
	require.NoError(t, ValidateReadonlyPrefix("SELECT 1"))
	require.NoError(t, ValidateReadonlyPrefix("  with t as (select 1) select * from t"))
	require.NoError(t, ValidateReadonlyPrefix("DESCRIBE TABLE main.sales.orders"))
	require.NoError(t, ValidateReadonlyPrefix("SHOW TABLES IN main.sales"))
	require.NoError(t, ValidateReadonlyPrefix("-- note\nSELECT 1"))

	require.Error(t, ValidateReadonlyPrefix("INSERT INTO t VALUES (1)"))
	require.Error(t, ValidateReadonlyPrefix("DELETE FROM t"))
}

func TestValidateMutationSafety(t *testing.T) {
	payload := map[string]any{"name": "x"}
	where := map[string]any{"id": 1}

	require.Error(t, ValidateMutationSafety(protocol.OpInsert, nil, nil))
	require.NoError(t, ValidateMutationSafety(protocol.OpInsert, payload, nil))

	require.Error(t, ValidateMutationSafety(protocol.OpUpdate, payload, nil))
	require.Error(t, ValidateMutationSafety(protocol.OpUpdate, nil, where))
	require.NoError(t, ValidateMutationSafety(protocol.OpUpdate, payload, where))
	require.Error(t, ValidateMutationSafety(protocol.OpMerge, payload, nil))

	require.Error(t, ValidateMutationSafety(protocol.OpDelete, nil, nil))
	require.NoError(t, ValidateMutationSafety(protocol.OpDelete, nil, where))
}

func TestNormalizePlaceholders(t *testing.T) {
	require.Equal(t,
		"SELECT * FROM t WHERE a = %(a)s AND b = %(b_2)s",
		NormalizePlaceholders("SELECT * FROM t WHERE a = :a AND b = :b_2"))

	// Casts are untouched.
	require.Equal(t,
		"SELECT x::BIGINT FROM t WHERE y = %(y)s",
		NormalizePlaceholders("SELECT x::BIGINT FROM t WHERE y = :y"))

	// Placeholder at the start of the string.
	require.Equal(t, "%(p)s", NormalizePlaceholders(":p"))
}

func TestPlaceholderNames(t *testing.T) {
	names := PlaceholderNames("SELECT %(a)s, %(b)s, %(a)s")
	require.Equal(t, []string{"a", "b"}, names)
	require.Empty(t, PlaceholderNames("SELECT 1"))
}
