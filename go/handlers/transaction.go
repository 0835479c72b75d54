package handlers

import (
	"context"
	"fmt"

	"github.com/sovakpeter/lakegate/go/driver"
	"github.com/sovakpeter/lakegate/go/logging"
	"github.com/sovakpeter/lakegate/go/protocol"
	"github.com/sovakpeter/lakegate/go/sqlgen"
)

// TransactionMulti serves TRANSACTION.MULTI: a bounded list of mutations
// applied atomically on one connection. Every statement is synthesized
// and validated before the transaction opens, so a malformed statement
// costs nothing.
func TransactionMulti(ctx context.Context, env *Env, ec *ExecContext) (*Outcome, error) {
	statements := ec.Request.Opts().Statements
	if len(statements) == 0 {
		return nil, protocol.ValidationError(
			"Transaction requires statements.", "transaction.multi without statements")
	}
	if max := env.Config.Limits.MaxTransactionStatements; len(statements) > max {
		return nil, protocol.ValidationError(
			fmt.Sprintf("Transactions are limited to %d statements.", max),
			fmt.Sprintf("transaction.multi with %d statements, limit %d", len(statements), max))
	}

	stmts := make([]*sqlgen.Statement, 0, len(statements))
	for i, ts := range statements {
		stmt, err := buildTransactionStatement(&ts)
		if err != nil {
			if op, ok := err.(*protocol.OperationError); ok {
				return nil, op.WithDetail("statement_index", i)
			}
			return nil, err
		}
		stmts = append(stmts, stmt)
	}

	results := make([]map[string]any, len(stmts))
	var total int64
	unknown := false

	err := env.Pool.Transaction(ctx, ec.Token, func(tx driver.Txn) error {
		for i, stmt := range stmts {
			logging.LogSQL(ctx, stmt.SQL, stmt.Params)
			n, err := tx.Exec(ctx, stmt.SQL, stmt.Params)
			if err != nil {
				if op, ok := err.(*protocol.OperationError); ok {
					return op.WithDetail("statement_index", i)
				}
				return err
			}
			if n == driver.RowsUnknown {
				unknown = true
				results[i] = map[string]any{"operation": string(statements[i].Operation), "affected_rows": nil}
			} else {
				total += n
				results[i] = map[string]any{"operation": string(statements[i].Operation), "affected_rows": n}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if unknown {
		total = driver.RowsUnknown
	}

	out := mutationOutcome(total)
	out.Data = map[string]any{"statements": results}
	out.Meta()["statement_count"] = len(stmts)
	return out, nil
}

// buildTransactionStatement synthesizes SQL for one transaction entry.
func buildTransactionStatement(ts *protocol.TransactionStatement) (*sqlgen.Statement, error) {
	switch ts.Operation {
	case protocol.OpInsert:
		intent := &sqlgen.InsertIntent{Table: ts.Table, Record: ts.Payload}
		if err := intent.Validate(); err != nil {
			return nil, err
		}
		return sqlgen.BuildInsert(intent)

	case protocol.OpUpdate, protocol.OpMerge:
		strategy := ts.Strategy
		if ts.Operation == protocol.OpMerge {
			strategy = protocol.StrategyMerge
		}
		intent := &sqlgen.UpdateIntent{
			Table:     ts.Table,
			PKValues:  ts.Where,
			Updates:   ts.Payload,
			OldValues: ts.OldValues,
			Strategy:  strategy,
		}
		if err := intent.Validate(); err != nil {
			return nil, err
		}
		return sqlgen.BuildUpdate(intent)

	case protocol.OpDelete:
		intent := &sqlgen.DeleteIntent{Table: ts.Table, PKSets: []map[string]any{ts.Where}}
		if err := intent.Validate(); err != nil {
			return nil, err
		}
		return sqlgen.BuildDelete(intent)

	default:
		return nil, protocol.ValidationError(
			"Transactions may only contain mutations.",
			fmt.Sprintf("transaction statement with operation %q", ts.Operation))
	}
}
