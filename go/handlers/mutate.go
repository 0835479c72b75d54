package handlers

import (
	"context"
	"fmt"

	"github.com/sovakpeter/lakegate/go/driver"
	"github.com/sovakpeter/lakegate/go/logging"
	"github.com/sovakpeter/lakegate/go/protocol"
	"github.com/sovakpeter/lakegate/go/sqlgen"
)

// checkWriteCount interprets the affected-row count of a keyed mutation.
// Zero rows with old-value predicates means another writer got there
// first; zero rows without them means the key never matched. A count the
// warehouse does not report is treated as success.
func checkWriteCount(affected int64, hadOldValues bool) error {
	if affected == driver.RowsUnknown || affected > 0 {
		return nil
	}
	if hadOldValues {
		return protocol.ConflictError(
			"The record was modified by another user. Please reload and try again.",
			"mutation matched zero rows with old-value predicates present")
	}
	return protocol.NotFoundError(
		"No matching record was found.",
		"mutation matched zero rows")
}

// InsertSingle serves INSERT.SINGLE inside a transaction.
func InsertSingle(ctx context.Context, env *Env, ec *ExecContext) (*Outcome, error) {
	intent := &sqlgen.InsertIntent{Table: ec.Request.Table, Record: ec.Request.Payload}
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	stmt, err := sqlgen.BuildInsert(intent)
	if err != nil {
		return nil, err
	}
	logging.LogSQL(ctx, stmt.SQL, stmt.Params)

	var affected int64
	err = env.Pool.Transaction(ctx, ec.Token, func(tx driver.Txn) error {
		affected, err = tx.Exec(ctx, stmt.SQL, stmt.Params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return mutationOutcome(affected), nil
}

// InsertBatch serves INSERT.BATCH: one INSERT template executed per
// record, all inside a single transaction.
func InsertBatch(ctx context.Context, env *Env, ec *ExecContext) (*Outcome, error) {
	records := ec.Request.Records
	if len(records) == 0 {
		return nil, protocol.ValidationError(
			"Batch insert requires records.", "insert.batch without records")
	}

	batch, err := sqlgen.BuildBatchInsert(ec.Request.Table, records)
	if err != nil {
		return nil, err
	}
	logging.LogSQL(ctx, batch.SQL, map[string]any{"record_count": len(records)})

	var affected int64
	err = env.Pool.Transaction(ctx, ec.Token, func(tx driver.Txn) error {
		affected, err = tx.ExecMany(ctx, batch.SQL, batch.ParamSets)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := mutationOutcome(affected)
	out.Meta()["record_count"] = len(records)
	return out, nil
}

// UpdateSingle serves UPDATE.SINGLE: one record keyed by the where map,
// optionally guarded by old values for optimistic concurrency.
func UpdateSingle(ctx context.Context, env *Env, ec *ExecContext) (*Outcome, error) {
	return updateOne(ctx, env, ec, ec.Request.Opts().Strategy)
}

// MergeSingle serves MERGE.SINGLE: an upsert through the MERGE strategy.
func MergeSingle(ctx context.Context, env *Env, ec *ExecContext) (*Outcome, error) {
	return updateOne(ctx, env, ec, protocol.StrategyMerge)
}

func updateOne(ctx context.Context, env *Env, ec *ExecContext, strategy protocol.UpdateStrategy) (*Outcome, error) {
	req := ec.Request
	opts := req.Opts()

	intent := &sqlgen.UpdateIntent{
		Table:     req.Table,
		PKValues:  req.Where,
		Updates:   req.Payload,
		OldValues: opts.OldValues,
		Strategy:  strategy,
	}
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	stmt, err := sqlgen.BuildUpdate(intent)
	if err != nil {
		return nil, err
	}
	logging.LogSQL(ctx, stmt.SQL, stmt.Params)

	var affected int64
	err = env.Pool.Transaction(ctx, ec.Token, func(tx driver.Txn) error {
		affected, err = tx.Exec(ctx, stmt.SQL, stmt.Params)
		return err
	})
	if err != nil {
		return nil, err
	}

	// MERGE inserts when nothing matches, so a zero count is only
	// meaningful for plain updates.
	if intent.Strategy != protocol.StrategyMerge {
		if err := checkWriteCount(affected, len(intent.OldValues) > 0); err != nil {
			return nil, err
		}
	}
	return mutationOutcome(affected), nil
}

// UpdateBatch serves UPDATE.BATCH: records paired positionally with
// batch_where key sets, or all sharing the request's where map, all
// applied inside one transaction.
func UpdateBatch(ctx context.Context, env *Env, ec *ExecContext) (*Outcome, error) {
	return batchUpdate(ctx, env, ec, ec.Request.Opts().Strategy)
}

// MergeBatch serves MERGE.BATCH: batch upserts through MERGE.
func MergeBatch(ctx context.Context, env *Env, ec *ExecContext) (*Outcome, error) {
	return batchUpdate(ctx, env, ec, protocol.StrategyMerge)
}

func batchUpdate(ctx context.Context, env *Env, ec *ExecContext, strategy protocol.UpdateStrategy) (*Outcome, error) {
	req := ec.Request
	records := req.Records
	keys := req.Opts().BatchWhere
	if len(records) == 0 {
		return nil, protocol.ValidationError(
			"Batch update requires records.", "update.batch without records")
	}
	// Without per-record key sets, the request's where map keys every
	// record.
	if len(keys) == 0 && len(req.Where) > 0 {
		keys = make([]map[string]any, len(records))
		for i := range keys {
			keys[i] = req.Where
		}
	}
	if len(keys) != len(records) {
		return nil, protocol.ValidationError(
			"Each batch record needs a matching key set.",
			fmt.Sprintf("update.batch has %d records but %d key sets", len(records), len(keys)))
	}

	type prepared struct {
		stmt *sqlgen.Statement
	}
	stmts := make([]prepared, 0, len(records))
	for i := range records {
		intent := &sqlgen.UpdateIntent{
			Table:    req.Table,
			PKValues: keys[i],
			Updates:  records[i],
			Strategy: strategy,
		}
		if err := intent.Validate(); err != nil {
			return nil, err
		}
		stmt, err := sqlgen.BuildUpdate(intent)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, prepared{stmt: stmt})
	}

	var affected int64
	unknown := false
	err := env.Pool.Transaction(ctx, ec.Token, func(tx driver.Txn) error {
		for _, p := range stmts {
			logging.LogSQL(ctx, p.stmt.SQL, p.stmt.Params)
			n, err := tx.Exec(ctx, p.stmt.SQL, p.stmt.Params)
			if err != nil {
				return err
			}
			if n == driver.RowsUnknown {
				unknown = true
				continue
			}
			affected += n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if unknown {
		affected = driver.RowsUnknown
	}

	out := mutationOutcome(affected)
	out.Meta()["record_count"] = len(records)
	return out, nil
}

// DeleteSingle serves DELETE.SINGLE: one record identified by the where
// map as its full key.
func DeleteSingle(ctx context.Context, env *Env, ec *ExecContext) (*Outcome, error) {
	req := ec.Request
	if len(req.Where) == 0 {
		return nil, protocol.ValidationError(
			"Delete requires a key predicate.", "delete.single without where")
	}
	return deleteKeys(ctx, env, ec, []map[string]any{req.Where}, true)
}

// DeleteBatch serves DELETE.BATCH: many records deleted by one statement,
// key sets ORed together.
func DeleteBatch(ctx context.Context, env *Env, ec *ExecContext) (*Outcome, error) {
	keys := ec.Request.Opts().BatchWhere
	if len(keys) == 0 {
		return nil, protocol.ValidationError(
			"Batch delete requires keys.", "delete.batch without batch_where")
	}
	out, err := deleteKeys(ctx, env, ec, keys, false)
	if err != nil {
		return nil, err
	}
	out.Meta()["requested_keys"] = len(keys)
	return out, nil
}

func deleteKeys(ctx context.Context, env *Env, ec *ExecContext, keys []map[string]any, single bool) (*Outcome, error) {
	intent := &sqlgen.DeleteIntent{Table: ec.Request.Table, PKSets: keys}
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	stmt, err := sqlgen.BuildDelete(intent)
	if err != nil {
		return nil, err
	}
	logging.LogSQL(ctx, stmt.SQL, stmt.Params)

	var affected int64
	err = env.Pool.Transaction(ctx, ec.Token, func(tx driver.Txn) error {
		affected, err = tx.Exec(ctx, stmt.SQL, stmt.Params)
		return err
	})
	if err != nil {
		return nil, err
	}
	if single {
		if err := checkWriteCount(affected, false); err != nil {
			return nil, err
		}
	}
	return mutationOutcome(affected), nil
}
