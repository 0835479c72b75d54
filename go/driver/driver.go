// Package driver is the gateway's warehouse access port. Statements arrive
// in the canonical %(name)s parameter style and each adapter rewrites them
// to its native binding.
package driver

import (
	"context"

	"github.com/sovakpeter/lakegate/go/protocol"
)

// RowsUnknown is the affected-row count reported when the warehouse does
// not return one. Databricks does not report counts for DML.
const RowsUnknown int64 = -1

// Querier is the statement surface shared by connections and transactions.
type Querier interface {
	// Query runs a read and returns rows as column-keyed maps along with
	// result column metadata.
	Query(ctx context.Context, sql string, params map[string]any) ([]map[string]any, []protocol.ColumnMetadata, error)
	// Exec runs a mutation and returns the affected row count, or
	// RowsUnknown when the warehouse does not report one.
	Exec(ctx context.Context, sql string, params map[string]any) (int64, error)
	// ExecMany runs one template once per parameter set, returning the
	// summed affected count or RowsUnknown if any execution was unknown.
	ExecMany(ctx context.Context, sql string, paramSets []map[string]any) (int64, error)
}

// Txn is an open transaction on a connection.
type Txn interface {
	Querier
	Commit() error
	Rollback() error
}

// Conn is one leased warehouse connection.
type Conn interface {
	Querier
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (Txn, error)
	Close() error
}

// Driver opens connections for an identity. An empty token means the
// service principal; a non-empty token is an on-behalf-of user token.
type Driver interface {
	Connect(ctx context.Context, token string) (Conn, error)
	Name() string
}
