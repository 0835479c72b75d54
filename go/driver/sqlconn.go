package driver

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/sovakpeter/lakegate/go/protocol"
)

// sqlConn adapts a database/sql handle to the Conn port. Every statement
// runs under the configured per-statement deadline; the database/sql layer
// cancels the in-flight statement when the deadline fires.
type sqlConn struct {
	db      *sql.DB
	bind    bindFunc
	timeout time.Duration
}

func (c *sqlConn) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// mapExecError folds driver failures into the taxonomy. Cancellation of a
// statement that hit its deadline surfaces as TIMEOUT, not CONNECTION.
func mapExecError(err error, sqlText string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return protocol.TimeoutError(
			"The query timed out.", "statement deadline exceeded").WithCause(err)
	case errors.Is(err, context.Canceled):
		return protocol.TimeoutError(
			"The query was cancelled.", "statement context cancelled").WithCause(err)
	case strings.Contains(strings.ToLower(err.Error()), "cancel"):
		return protocol.TimeoutError(
			"The query timed out.", err.Error()).WithCause(err)
	default:
		return protocol.QueryExecutionError(err, sqlText)
	}
}

func (c *sqlConn) Query(ctx context.Context, sqlText string, params map[string]any) ([]map[string]any, []protocol.ColumnMetadata, error) {
	native, args, err := c.bind(sqlText, params)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, native, args...)
	if err != nil {
		return nil, nil, mapExecError(err, sqlText)
	}
	defer rows.Close()

	return scanRows(rows, sqlText)
}

func scanRows(rows *sql.Rows, sqlText string) ([]map[string]any, []protocol.ColumnMetadata, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, mapExecError(err, sqlText)
	}
	columns := make([]protocol.ColumnMetadata, len(types))
	names := make([]string, len(types))
	for i, t := range types {
		nullable, _ := t.Nullable()
		columns[i] = protocol.ColumnMetadata{
			Name:            t.Name(),
			DataType:        t.DatabaseTypeName(),
			Nullable:        nullable,
			OrdinalPosition: i + 1,
		}
		names[i] = t.Name()
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, mapExecError(err, sqlText)
		}
		rec := make(map[string]any, len(names))
		for i, name := range names {
			if b, ok := values[i].([]byte); ok {
				rec[name] = string(b)
			} else {
				rec[name] = values[i]
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, mapExecError(err, sqlText)
	}
	return out, columns, nil
}

func (c *sqlConn) Exec(ctx context.Context, sqlText string, params map[string]any) (int64, error) {
	native, args, err := c.bind(sqlText, params)
	if err != nil {
		return 0, err
	}
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	res, err := c.db.ExecContext(ctx, native, args...)
	if err != nil {
		return 0, mapExecError(err, sqlText)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return RowsUnknown, nil
	}
	return affected, nil
}

func (c *sqlConn) ExecMany(ctx context.Context, sqlText string, paramSets []map[string]any) (int64, error) {
	var total int64
	unknown := false
	for _, params := range paramSets {
		n, err := c.Exec(ctx, sqlText, params)
		if err != nil {
			return 0, err
		}
		if n == RowsUnknown {
			unknown = true
			continue
		}
		total += n
	}
	if unknown {
		return RowsUnknown, nil
	}
	return total, nil
}

func (c *sqlConn) Ping(ctx context.Context) error {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()
	if err := c.db.PingContext(ctx); err != nil {
		return protocol.ConnectionError(
			"The warehouse is unreachable.", err.Error()).WithCause(err)
	}
	return nil
}

func (c *sqlConn) Begin(ctx context.Context) (Txn, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, protocol.ConnectionError(
			"Could not start a transaction.", err.Error()).WithCause(err)
	}
	return &sqlTxn{tx: tx, bind: c.bind, timeout: c.timeout}, nil
}

func (c *sqlConn) Close() error { return c.db.Close() }

// sqlTxn mirrors sqlConn over an open transaction.
type sqlTxn struct {
	tx      *sql.Tx
	bind    bindFunc
	timeout time.Duration
}

func (t *sqlTxn) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, t.timeout)
}

func (t *sqlTxn) Query(ctx context.Context, sqlText string, params map[string]any) ([]map[string]any, []protocol.ColumnMetadata, error) {
	native, args, err := t.bind(sqlText, params)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := t.withDeadline(ctx)
	defer cancel()

	rows, err := t.tx.QueryContext(ctx, native, args...)
	if err != nil {
		return nil, nil, mapExecError(err, sqlText)
	}
	defer rows.Close()
	return scanRows(rows, sqlText)
}

func (t *sqlTxn) Exec(ctx context.Context, sqlText string, params map[string]any) (int64, error) {
	native, args, err := t.bind(sqlText, params)
	if err != nil {
		return 0, err
	}
	ctx, cancel := t.withDeadline(ctx)
	defer cancel()

	res, err := t.tx.ExecContext(ctx, native, args...)
	if err != nil {
		return 0, mapExecError(err, sqlText)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return RowsUnknown, nil
	}
	return affected, nil
}

func (t *sqlTxn) ExecMany(ctx context.Context, sqlText string, paramSets []map[string]any) (int64, error) {
	var total int64
	unknown := false
	for _, params := range paramSets {
		n, err := t.Exec(ctx, sqlText, params)
		if err != nil {
			return 0, err
		}
		if n == RowsUnknown {
			unknown = true
			continue
		}
		total += n
	}
	if unknown {
		return RowsUnknown, nil
	}
	return total, nil
}

func (t *sqlTxn) Commit() error   { return t.tx.Commit() }
func (t *sqlTxn) Rollback() error { return t.tx.Rollback() }
