package handlers

import (
	"context"

	"github.com/sovakpeter/lakegate/go/logging"
	"github.com/sovakpeter/lakegate/go/protocol"
	"github.com/sovakpeter/lakegate/go/queries"
	"github.com/sovakpeter/lakegate/go/sqlgen"
)

// Heartbeat runs the cheapest possible statement on the caller's own
// identity, proving both the pool and the warehouse are reachable.
func Heartbeat(ctx context.Context, env *Env, ec *ExecContext) (*Outcome, error) {
	if ec.Token == "" && !env.Config.IsLocal() && env.Config.Warehouse.AccessToken == "" {
		return nil, protocol.AuthenticationError(
			"Sign-in required.", "heartbeat without a user token")
	}
	conn, release, err := env.Pool.Lease(ctx, ec.Token)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, _, err := conn.Query(ctx, "SELECT 1", nil); err != nil {
		return nil, err
	}
	o := &Outcome{Data: map[string]any{"alive": true}}
	o.Meta()["heartbeat"] = true
	return o, nil
}

// ReadSingle serves READ.SINGLE: a synthesized SELECT over one table with
// filters, grouping, aggregation, ordering, and pagination. Reads without
// an explicit limit get the configured default so an unconstrained table
// scan cannot flood the UI.
func ReadSingle(ctx context.Context, env *Env, ec *ExecContext) (*Outcome, error) {
	req := ec.Request
	opts := req.Opts()

	columns := req.Columns
	if req.IsWildcard() && len(opts.Aggregations) == 0 && ec.Resolved != nil {
		columns = ec.Resolved.ColumnNames
	}

	intent := &sqlgen.SelectIntent{
		Table:      req.Table,
		Columns:    columns,
		Filters:    sqlgen.FiltersFromWhere(req.Where),
		GroupBy:    opts.GroupBy,
		Having:     sqlgen.FiltersFromWhere(opts.Having),
		OrderBy:    opts.OrderBy,
		Aggregates: opts.Aggregations,
		Limit:      opts.Limit,
		Offset:     opts.Offset,
	}
	if intent.Limit == nil && len(intent.Aggregates) == 0 {
		limit := env.Config.Limits.DefaultReadLimit
		intent.Limit = &limit
	}
	if err := intent.Validate(env.Config.Limits.MaxReadLimit); err != nil {
		return nil, err
	}

	stmt, err := sqlgen.BuildSelect(intent)
	if err != nil {
		return nil, err
	}
	logging.LogSQL(ctx, stmt.SQL, stmt.Params)

	conn, release, err := env.Pool.Lease(ctx, ec.Token)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, cols, err := conn.Query(ctx, stmt.SQL, stmt.Params)
	if err != nil {
		return nil, err
	}

	out, err := tabularOutcome(ec, rows, cols)
	if err != nil {
		return nil, err
	}
	if intent.Limit != nil {
		out.Meta()["effective_limit"] = *intent.Limit
	}
	return out, nil
}

// ReadBatch serves READ.BATCH: fetch many records by primary key in one
// statement, keys ORed together.
func ReadBatch(ctx context.Context, env *Env, ec *ExecContext) (*Outcome, error) {
	req := ec.Request
	keys := req.Opts().BatchWhere
	if len(keys) == 0 {
		return nil, protocol.ValidationError(
			"Batch read requires keys.", "read.batch without batch_where")
	}

	stmt, err := sqlgen.BuildBatchSelect(req.Table, req.Columns, keys, env.Config.Limits.MaxReadLimit)
	if err != nil {
		return nil, err
	}
	logging.LogSQL(ctx, stmt.SQL, stmt.Params)

	conn, release, err := env.Pool.Lease(ctx, ec.Token)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, cols, err := conn.Query(ctx, stmt.SQL, stmt.Params)
	if err != nil {
		return nil, err
	}

	out, err := tabularOutcome(ec, rows, cols)
	if err != nil {
		return nil, err
	}
	out.Meta()["requested_keys"] = len(keys)
	return out, nil
}

// ReadNamed serves READ.NAMED: a curated manifest query with typed,
// allowlisted parameters. Bare query names resolve into the default
// namespace.
func ReadNamed(ctx context.Context, env *Env, ec *ExecContext) (*Outcome, error) {
	opts := ec.Request.Opts()
	if opts.QueryName == "" {
		return nil, protocol.ValidationError(
			"Named read requires a query name.", "read.named without query_name")
	}
	key := queries.Resolve(opts.QueryName)

	def, err := env.Queries.Get(key)
	if err != nil {
		return nil, err
	}
	stmt, err := def.Render(opts.Params)
	if err != nil {
		return nil, err
	}
	if !opts.SkipLogging {
		logging.LogSQL(ctx, stmt.SQL, stmt.Params)
	}

	conn, release, err := env.Pool.Lease(ctx, ec.Token)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, cols, err := conn.Query(ctx, stmt.SQL, stmt.Params)
	if err != nil {
		return nil, err
	}

	out, err := tabularOutcome(ec, rows, cols)
	if err != nil {
		return nil, err
	}
	out.Meta()["query_name"] = key
	return out, nil
}
