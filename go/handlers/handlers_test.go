package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sovakpeter/lakegate/go/config"
	"github.com/sovakpeter/lakegate/go/driver/drivertest"
	"github.com/sovakpeter/lakegate/go/pool"
	"github.com/sovakpeter/lakegate/go/protocol"
	"github.com/sovakpeter/lakegate/go/queries"
	"github.com/sovakpeter/lakegate/go/schema"
)

func newEnv(t *testing.T, fake *drivertest.Fake) *Env {
	t.Helper()
	registry, err := queries.NewRegistry()
	require.NoError(t, err)

	p := pool.New(fake, 2)
	cache := schema.NewCache(t.TempDir(), 16, time.Hour)
	return &Env{
		Config:  config.Defaults(),
		Pool:    p,
		Queries: registry,
		Schemas: schema.NewProvider(cache, p, registry),
	}
}

func exec(req *protocol.OperationRequest) *ExecContext {
	return &ExecContext{Request: req, CorrelationID: "test-corr"}
}

func TestRouteKey(t *testing.T) {
	cases := []struct {
		req  protocol.OperationRequest
		want string
	}{
		{protocol.OperationRequest{Operation: protocol.OpHeartbeat}, "heartbeat"},
		{protocol.OperationRequest{Operation: protocol.OpTransaction, Mode: protocol.ModeMulti}, "transaction.multi"},
		{protocol.OperationRequest{Operation: protocol.OpSchema, Scenario: protocol.ScenarioListTables}, "schema.list_tables"},
		{protocol.OperationRequest{Operation: protocol.OpRead}, "read.single"},
		{protocol.OperationRequest{Operation: protocol.OpRead, Mode: protocol.ModeNamed}, "read.named"},
		{protocol.OperationRequest{Operation: protocol.OpInsert, Mode: protocol.ModeBatch}, "insert.batch"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, RouteKey(&tc.req))
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	h, err := r.Lookup("read.single")
	require.NoError(t, err)
	require.NotNil(t, h)

	_, err = r.Lookup("read.nonsense")
	require.Error(t, err)
	require.Equal(t, protocol.CatValidation, protocol.CategoryOf(err))
}

func TestHeartbeatUsesCallerIdentity(t *testing.T) {
	fake := drivertest.NewFake()
	env := newEnv(t, fake)

	ec := exec(&protocol.OperationRequest{Operation: protocol.OpHeartbeat})
	ec.Token = "user-token"
	out, err := Heartbeat(context.Background(), env, ec)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"alive": true}, out.Data)
	require.Equal(t, []string{"user-token"}, fake.Connects())
	require.Equal(t, "SELECT 1", fake.Calls()[0].SQL)
}

func TestHeartbeatRequiresIdentity(t *testing.T) {
	env := newEnv(t, drivertest.NewFake())

	_, err := Heartbeat(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpHeartbeat,
	}))
	require.Equal(t, protocol.CatAuthentication, protocol.CategoryOf(err))
}

func TestReadSingleAppliesDefaultLimit(t *testing.T) {
	fake := drivertest.NewFake()
	fake.Script("SELECT", drivertest.Result{
		Rows: []map[string]any{{"id": int64(1)}},
	})
	env := newEnv(t, fake)

	out, err := ReadSingle(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpRead,
		Table:     "main.sales.orders",
	}))
	require.NoError(t, err)
	require.Contains(t, fake.Calls()[0].SQL, "LIMIT 1000")
	require.Equal(t, 1000, out.Metadata["effective_limit"])
	require.Equal(t, 1, out.Result.RowCount)
}

func TestReadSingleCapsOversizedLimit(t *testing.T) {
	fake := drivertest.NewFake()
	env := newEnv(t, fake)

	limit := 50000
	out, err := ReadSingle(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpRead,
		Table:     "main.sales.orders",
		Options:   &protocol.Options{Limit: &limit},
	}))
	require.NoError(t, err)
	require.Contains(t, fake.Calls()[0].SQL, "LIMIT 10000")
	require.Equal(t, 10000, out.Metadata["effective_limit"])
}

func TestReadSingleUsesResolvedColumns(t *testing.T) {
	fake := drivertest.NewFake()
	env := newEnv(t, fake)

	ec := exec(&protocol.OperationRequest{
		Operation: protocol.OpRead,
		Table:     "main.sales.orders",
	})
	ec.Resolved = &schema.Resolved{ColumnNames: []string{"id", "status"}}

	_, err := ReadSingle(context.Background(), env, ec)
	require.NoError(t, err)
	require.Contains(t, fake.Calls()[0].SQL, "SELECT `id`, `status` FROM")
}

func TestReadSingleAggregatesSkipDefaultLimit(t *testing.T) {
	fake := drivertest.NewFake()
	env := newEnv(t, fake)

	_, err := ReadSingle(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpRead,
		Table:     "main.sales.orders",
		Options: &protocol.Options{
			Aggregations: []protocol.Aggregate{{Function: "COUNT", Column: "*", Alias: "n"}},
		},
	}))
	require.NoError(t, err)
	require.NotContains(t, fake.Calls()[0].SQL, "LIMIT")
}

func TestReadBatch(t *testing.T) {
	fake := drivertest.NewFake()
	fake.Script("SELECT", drivertest.Result{
		Rows: []map[string]any{{"id": int64(1)}, {"id": int64(2)}},
	})
	env := newEnv(t, fake)

	out, err := ReadBatch(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpRead,
		Mode:      protocol.ModeBatch,
		Table:     "main.sales.orders",
		Options: &protocol.Options{
			BatchWhere: []map[string]any{{"id": 1}, {"id": 2}},
		},
	}))
	require.NoError(t, err)
	require.Contains(t, fake.Calls()[0].SQL, " OR ")
	require.Equal(t, 2, out.Metadata["requested_keys"])
	require.Equal(t, 2, out.Result.RowCount)
}

func TestReadBatchRequiresKeys(t *testing.T) {
	env := newEnv(t, drivertest.NewFake())

	_, err := ReadBatch(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpRead,
		Mode:      protocol.ModeBatch,
		Table:     "main.sales.orders",
	}))
	require.Equal(t, protocol.CatValidation, protocol.CategoryOf(err))
}

func TestReadNamedResolvesDefaultNamespace(t *testing.T) {
	fake := drivertest.NewFake()
	fake.Script("COUNT", drivertest.Result{
		Rows: []map[string]any{{"row_count": int64(42)}},
	})
	env := newEnv(t, fake)

	out, err := ReadNamed(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpRead,
		Mode:      protocol.ModeNamed,
		Options: &protocol.Options{
			QueryName: "row_count",
			Params:    map[string]any{"target": "main.sales.orders"},
		},
	}))
	require.NoError(t, err)
	require.Equal(t, "analytics.row_count", out.Metadata["query_name"])
	require.Contains(t, fake.Calls()[0].SQL, "`main`.`sales`.`orders`")
	require.Equal(t, 1, out.Result.RowCount)
}

func TestReadNamedRejectsUnknownParams(t *testing.T) {
	env := newEnv(t, drivertest.NewFake())

	_, err := ReadNamed(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpRead,
		Mode:      protocol.ModeNamed,
		Options: &protocol.Options{
			QueryName: "row_count",
			Params:    map[string]any{"target": "main.sales.orders", "sneaky": 1},
		},
	}))
	require.Equal(t, protocol.CatValidation, protocol.CategoryOf(err))
}

func TestInsertSingleRunsInTransaction(t *testing.T) {
	fake := drivertest.NewFake()
	env := newEnv(t, fake)

	out, err := InsertSingle(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpInsert,
		Table:     "main.sales.orders",
		Payload:   map[string]any{"id": 1, "status": "new"},
	}))
	require.NoError(t, err)
	require.Equal(t, int64(1), out.Metadata["affected_rows"])
	require.True(t, fake.Calls()[0].InTxn)
}

func TestInsertBatch(t *testing.T) {
	fake := drivertest.NewFake()
	env := newEnv(t, fake)

	out, err := InsertBatch(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpInsert,
		Mode:      protocol.ModeBatch,
		Table:     "main.sales.orders",
		Records: []map[string]any{
			{"id": 1, "status": "new"},
			{"id": 2, "status": "new"},
		},
	}))
	require.NoError(t, err)
	require.Equal(t, int64(2), out.Metadata["affected_rows"])
	require.Equal(t, 2, out.Metadata["record_count"])
	require.Len(t, fake.Calls(), 2)
	for _, c := range fake.Calls() {
		require.True(t, c.InTxn)
	}
}

func TestUpdateSingleConflictWithOldValues(t *testing.T) {
	fake := drivertest.NewFake()
	fake.Script("UPDATE", drivertest.Result{Affected: 0})
	env := newEnv(t, fake)

	_, err := UpdateSingle(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpUpdate,
		Table:     "main.sales.orders",
		Where:     map[string]any{"id": 1},
		Payload:   map[string]any{"status": "done"},
		Options:   &protocol.Options{OldValues: map[string]any{"status": "open"}},
	}))
	require.Equal(t, protocol.CatConflict, protocol.CategoryOf(err))
}

func TestUpdateSingleNotFoundWithoutOldValues(t *testing.T) {
	fake := drivertest.NewFake()
	fake.Script("UPDATE", drivertest.Result{Affected: 0})
	env := newEnv(t, fake)

	_, err := UpdateSingle(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpUpdate,
		Table:     "main.sales.orders",
		Where:     map[string]any{"id": 1},
		Payload:   map[string]any{"status": "done"},
	}))
	require.Equal(t, protocol.CatNotFound, protocol.CategoryOf(err))
}

func TestUpdateSingleUnknownCountIsSuccess(t *testing.T) {
	fake := drivertest.NewFake()
	fake.Script("UPDATE", drivertest.Result{Affected: -1})
	env := newEnv(t, fake)

	out, err := UpdateSingle(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpUpdate,
		Table:     "main.sales.orders",
		Where:     map[string]any{"id": 1},
		Payload:   map[string]any{"status": "done"},
		Options:   &protocol.Options{OldValues: map[string]any{"status": "open"}},
	}))
	require.NoError(t, err)
	require.Nil(t, out.Metadata["affected_rows"])
}

func TestMergeSingleZeroCountIsNotConflict(t *testing.T) {
	fake := drivertest.NewFake()
	fake.Script("MERGE", drivertest.Result{Affected: 0})
	env := newEnv(t, fake)

	_, err := MergeSingle(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpMerge,
		Table:     "main.sales.orders",
		Where:     map[string]any{"id": 1},
		Payload:   map[string]any{"status": "done"},
	}))
	require.NoError(t, err)
	require.Contains(t, fake.Calls()[0].SQL, "MERGE INTO")
}

func TestUpdateBatchPairsRecordsWithKeys(t *testing.T) {
	fake := drivertest.NewFake()
	env := newEnv(t, fake)

	out, err := UpdateBatch(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpUpdate,
		Mode:      protocol.ModeBatch,
		Table:     "main.sales.orders",
		Records: []map[string]any{
			{"status": "done"},
			{"status": "failed"},
		},
		Options: &protocol.Options{
			BatchWhere: []map[string]any{{"id": 1}, {"id": 2}},
		},
	}))
	require.NoError(t, err)
	require.Equal(t, int64(2), out.Metadata["affected_rows"])
	require.Len(t, fake.Calls(), 2)
}

func TestUpdateBatchSharedWhereKeysEveryRecord(t *testing.T) {
	fake := drivertest.NewFake()
	env := newEnv(t, fake)

	out, err := UpdateBatch(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpUpdate,
		Mode:      protocol.ModeBatch,
		Table:     "main.sales.orders",
		Where:     map[string]any{"region": "EU"},
		Records: []map[string]any{
			{"status": "done"},
			{"priority": "low"},
		},
	}))
	require.NoError(t, err)
	require.Equal(t, int64(2), out.Metadata["affected_rows"])
	require.Len(t, fake.Calls(), 2)
	for _, c := range fake.Calls() {
		require.Contains(t, c.SQL, "WHERE `region` = %(pk_region)s")
		require.Equal(t, "EU", c.Params["pk_region"])
	}
}

func TestUpdateBatchRequiresMatchingKeyCount(t *testing.T) {
	env := newEnv(t, drivertest.NewFake())

	_, err := UpdateBatch(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpUpdate,
		Mode:      protocol.ModeBatch,
		Table:     "main.sales.orders",
		Records:   []map[string]any{{"status": "done"}},
		Options:   &protocol.Options{BatchWhere: []map[string]any{{"id": 1}, {"id": 2}}},
	}))
	require.Equal(t, protocol.CatValidation, protocol.CategoryOf(err))
}

func TestDeleteSingleNotFound(t *testing.T) {
	fake := drivertest.NewFake()
	fake.Script("DELETE", drivertest.Result{Affected: 0})
	env := newEnv(t, fake)

	_, err := DeleteSingle(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpDelete,
		Table:     "main.sales.orders",
		Where:     map[string]any{"id": 1},
	}))
	require.Equal(t, protocol.CatNotFound, protocol.CategoryOf(err))
}

func TestDeleteBatchSingleStatement(t *testing.T) {
	fake := drivertest.NewFake()
	fake.Script("DELETE", drivertest.Result{Affected: 3})
	env := newEnv(t, fake)

	out, err := DeleteBatch(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpDelete,
		Mode:      protocol.ModeBatch,
		Table:     "main.sales.orders",
		Options: &protocol.Options{
			BatchWhere: []map[string]any{{"id": 1}, {"id": 2}, {"id": 3}},
		},
	}))
	require.NoError(t, err)
	require.Len(t, fake.Calls(), 1)
	require.Contains(t, fake.Calls()[0].SQL, " OR ")
	require.Equal(t, int64(3), out.Metadata["affected_rows"])
}

func TestTransactionMulti(t *testing.T) {
	fake := drivertest.NewFake()
	env := newEnv(t, fake)

	out, err := TransactionMulti(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpTransaction,
		Mode:      protocol.ModeMulti,
		Options: &protocol.Options{
			Statements: []protocol.TransactionStatement{
				{Operation: protocol.OpInsert, Table: "main.sales.orders", Payload: map[string]any{"id": 1}},
				{Operation: protocol.OpUpdate, Table: "main.sales.orders", Where: map[string]any{"id": 1}, Payload: map[string]any{"status": "done"}},
				{Operation: protocol.OpDelete, Table: "main.sales.audit", Where: map[string]any{"id": 9}},
			},
		},
	}))
	require.NoError(t, err)
	require.Equal(t, int64(3), out.Metadata["affected_rows"])
	require.Equal(t, 3, out.Metadata["statement_count"])
	require.Len(t, fake.Calls(), 3)
	for _, c := range fake.Calls() {
		require.True(t, c.InTxn)
	}
}

func TestTransactionMultiStatementLimit(t *testing.T) {
	env := newEnv(t, drivertest.NewFake())
	env.Config.Limits.MaxTransactionStatements = 2

	_, err := TransactionMulti(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpTransaction,
		Mode:      protocol.ModeMulti,
		Options: &protocol.Options{
			Statements: []protocol.TransactionStatement{
				{Operation: protocol.OpInsert, Table: "main.sales.orders", Payload: map[string]any{"id": 1}},
				{Operation: protocol.OpInsert, Table: "main.sales.orders", Payload: map[string]any{"id": 2}},
				{Operation: protocol.OpInsert, Table: "main.sales.orders", Payload: map[string]any{"id": 3}},
			},
		},
	}))
	require.Equal(t, protocol.CatValidation, protocol.CategoryOf(err))
}

func TestTransactionMultiRejectsReads(t *testing.T) {
	env := newEnv(t, drivertest.NewFake())

	_, err := TransactionMulti(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpTransaction,
		Mode:      protocol.ModeMulti,
		Options: &protocol.Options{
			Statements: []protocol.TransactionStatement{
				{Operation: protocol.OpRead, Table: "main.sales.orders"},
			},
		},
	}))
	require.Equal(t, protocol.CatValidation, protocol.CategoryOf(err))
}

func TestTransactionMultiFailureAborts(t *testing.T) {
	fake := drivertest.NewFake()
	fake.Script("UPDATE", drivertest.Result{Err: protocol.QueryExecutionError(
		protocol.ConnectionError("boom", "boom"), "UPDATE ...")})
	env := newEnv(t, fake)

	_, err := TransactionMulti(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpTransaction,
		Mode:      protocol.ModeMulti,
		Options: &protocol.Options{
			Statements: []protocol.TransactionStatement{
				{Operation: protocol.OpInsert, Table: "main.sales.orders", Payload: map[string]any{"id": 1}},
				{Operation: protocol.OpUpdate, Table: "main.sales.orders", Where: map[string]any{"id": 1}, Payload: map[string]any{"status": "x"}},
			},
		},
	}))
	require.Error(t, err)
	require.Equal(t, protocol.CatConnection, protocol.CategoryOf(err))
}

func scriptCatalogRows(fake *drivertest.Fake) {
	fake.Script("information_schema.catalogs", drivertest.Result{
		Rows: []map[string]any{{"catalog_name": "main"}, {"catalog_name": "dev"}},
	})
}

func TestSchemaListCatalogs(t *testing.T) {
	fake := drivertest.NewFake()
	scriptCatalogRows(fake)
	env := newEnv(t, fake)

	out, err := SchemaListCatalogs(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpSchema,
		Scenario:  protocol.ScenarioListCatalogs,
	}))
	require.NoError(t, err)
	require.Equal(t, 2, out.Result.RowCount)
	// Metadata always runs on the service principal.
	require.Equal(t, []string{""}, fake.Connects())
}

func TestSchemaListSchemasRequiresCatalog(t *testing.T) {
	env := newEnv(t, drivertest.NewFake())

	_, err := SchemaListSchemas(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpSchema,
		Scenario:  protocol.ScenarioListSchemas,
	}))
	require.Equal(t, protocol.CatValidation, protocol.CategoryOf(err))
}

func TestSchemaTableInfo(t *testing.T) {
	fake := drivertest.NewFake()
	fake.Script("information_schema.columns", drivertest.Result{
		Rows: []map[string]any{
			{"column_name": "id", "data_type": "BIGINT", "is_nullable": "NO", "ordinal_position": int64(1)},
		},
	})
	fake.Script("table_constraints", drivertest.Result{
		Rows: []map[string]any{{"column_name": "id"}},
	})
	env := newEnv(t, fake)

	out, err := SchemaTableInfo(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpSchema,
		Scenario:  protocol.ScenarioTableInfo,
		Table:     "main.sales.orders",
	}))
	require.NoError(t, err)

	info := out.Data.(map[string]any)
	require.Equal(t, "main", info["catalog"])
	require.Equal(t, []string{"id"}, info["primary_keys"])
	require.Equal(t, "main.sales.orders", out.Metadata["table_ref"])
}

func TestSchemaInvalidate(t *testing.T) {
	fake := drivertest.NewFake()
	env := newEnv(t, fake)

	out, err := SchemaInvalidate(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpSchema,
		Scenario:  protocol.ScenarioInvalidateTable,
		Table:     "main.sales.orders",
	}))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"invalidated": "main.sales.orders"}, out.Data)
	require.Empty(t, fake.Calls())
}

func TestTabularOutcomeFrameFormat(t *testing.T) {
	fake := drivertest.NewFake()
	fake.Script("SELECT", drivertest.Result{
		Rows: []map[string]any{{"id": int64(1), "status": "new"}},
		Columns: []protocol.ColumnMetadata{
			{Name: "id"}, {Name: "status"},
		},
	})
	env := newEnv(t, fake)

	out, err := ReadSingle(context.Background(), env, exec(&protocol.OperationRequest{
		Operation:  protocol.OpRead,
		Table:      "main.sales.orders",
		DataFormat: protocol.FormatFrame,
	}))
	require.NoError(t, err)
	require.Nil(t, out.Result.Rows)
	require.Equal(t, []string{"id", "status"}, out.Result.Frame.Columns)
	require.Equal(t, 1, out.Result.Frame.NumRows())
}

func scriptOrdersSchema(fake *drivertest.Fake) {
	fake.Script("information_schema.columns", drivertest.Result{
		Rows: []map[string]any{
			{"column_name": "id", "data_type": "BIGINT", "is_nullable": "NO", "ordinal_position": int64(1)},
			{"column_name": "status", "data_type": "STRING", "is_nullable": "YES", "ordinal_position": int64(2)},
		},
	})
	fake.Script("table_constraints", drivertest.Result{
		Rows: []map[string]any{{"column_name": "id"}},
	})
}

func TestChainKeepsColumnsOnEmptyResult(t *testing.T) {
	fake := drivertest.NewFake()
	scriptOrdersSchema(fake)
	fake.Script("FROM `main`", drivertest.Result{})
	env := newEnv(t, fake)

	out, err := ReadWithSchema().Run(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpRead,
		Table:     "main.sales.orders",
	}))
	require.NoError(t, err)
	require.Equal(t, 0, out.Result.RowCount)
	require.Equal(t, []map[string]any{}, out.Result.Rows)

	require.Len(t, out.Result.Columns, 2)
	require.Equal(t, "id", out.Result.Columns[0].Name)
	require.Equal(t, "status", out.Result.Columns[1].Name)

	last := fake.Calls()[len(fake.Calls())-1]
	require.Contains(t, last.SQL, "SELECT `id`, `status` FROM")
}

func TestChainModifierLeavesRequestUntouched(t *testing.T) {
	fake := drivertest.NewFake()
	scriptOrdersSchema(fake)
	env := newEnv(t, fake)

	limit := 5
	chain := &Chain{Steps: []Step{
		{Kind: StepSchemaFetch},
		{Kind: StepDataFetch, Modify: func(req *protocol.OperationRequest) {
			req.Options = &protocol.Options{Limit: &limit}
		}},
	}}

	req := &protocol.OperationRequest{
		Operation: protocol.OpRead,
		Table:     "main.sales.orders",
	}
	_, err := chain.Run(context.Background(), env, exec(req))
	require.NoError(t, err)
	require.Nil(t, req.Options)

	last := fake.Calls()[len(fake.Calls())-1]
	require.Contains(t, last.SQL, "LIMIT 5")
}

func TestChainSchemaFailureIsAdvisory(t *testing.T) {
	fake := drivertest.NewFake()
	fake.Script("information_schema.columns", drivertest.Result{
		Err: protocol.ConnectionError("Metadata unavailable.", "warehouse offline"),
	})
	env := newEnv(t, fake)

	out, err := ReadWithSchema().Run(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpRead,
		Table:     "main.sales.orders",
	}))
	require.NoError(t, err)
	require.Nil(t, out.Result.Columns)

	last := fake.Calls()[len(fake.Calls())-1]
	require.Contains(t, last.SQL, "SELECT *")
}

func TestChainWithoutDataFetchFails(t *testing.T) {
	env := newEnv(t, drivertest.NewFake())

	chain := &Chain{Steps: []Step{{Kind: StepSchemaFetch}}}
	_, err := chain.Run(context.Background(), env, exec(&protocol.OperationRequest{
		Operation: protocol.OpRead,
		Table:     "main.sales.orders",
	}))
	require.Equal(t, protocol.CatValidation, protocol.CategoryOf(err))
}
