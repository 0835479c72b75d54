// Package handlers holds the per-operation execution logic. Each handler
// receives the request after validation, throttling, and routing, runs
// its statements through the connection pool, and returns a typed
// outcome for the response shaper.
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/sovakpeter/lakegate/go/config"
	"github.com/sovakpeter/lakegate/go/pool"
	"github.com/sovakpeter/lakegate/go/protocol"
	"github.com/sovakpeter/lakegate/go/queries"
	"github.com/sovakpeter/lakegate/go/schema"
	"github.com/sovakpeter/lakegate/go/shape"
)

// Env bundles the long-lived services handlers run against.
type Env struct {
	Config  *config.Config
	Pool    *pool.Pool
	Queries *queries.Registry
	Schemas *schema.Provider
}

// ExecContext is the per-request state handed to a handler.
type ExecContext struct {
	Request       *protocol.OperationRequest
	Token         string
	CorrelationID string

	// Resolved carries wildcard column resolution when it succeeded;
	// handlers fall back to SELECT * when it is nil.
	Resolved *schema.Resolved
}

// Outcome is what a handler produces. Reads set Result; schema lookups
// may set Data instead; mutations set Affected.
type Outcome struct {
	Result   *protocol.QueryResult
	Data     any
	Affected int64
	Metadata map[string]any
}

// Meta returns the outcome metadata, allocating on first use.
func (o *Outcome) Meta() map[string]any {
	if o.Metadata == nil {
		o.Metadata = map[string]any{}
	}
	return o.Metadata
}

// Handler executes one routed operation.
type Handler func(ctx context.Context, env *Env, ec *ExecContext) (*Outcome, error)

// RouteKey derives the registry key for a request: "<operation>.<mode>"
// with HEARTBEAT, TRANSACTION, and SCHEMA handled specially.
func RouteKey(req *protocol.OperationRequest) string {
	switch req.Operation {
	case protocol.OpHeartbeat:
		return "heartbeat"
	case protocol.OpTransaction:
		return "transaction.multi"
	case protocol.OpSchema:
		return "schema." + strings.ToLower(string(req.Scenario))
	}
	mode := req.Mode
	if mode == "" {
		mode = protocol.ModeSingle
	}
	return strings.ToLower(string(req.Operation) + "." + string(mode))
}

// Registry maps route keys to handlers.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns a registry with every built-in handler installed.
func NewRegistry() *Registry {
	r := &Registry{handlers: map[string]Handler{}}

	r.Register("heartbeat", Heartbeat)

	r.Register("read.single", ReadSingle)
	r.Register("read.batch", ReadBatch)
	r.Register("read.named", ReadNamed)

	r.Register("insert.single", InsertSingle)
	r.Register("insert.batch", InsertBatch)
	r.Register("update.single", UpdateSingle)
	r.Register("update.batch", UpdateBatch)
	r.Register("merge.single", MergeSingle)
	r.Register("merge.batch", MergeBatch)
	r.Register("delete.single", DeleteSingle)
	r.Register("delete.batch", DeleteBatch)

	r.Register("transaction.multi", TransactionMulti)

	r.Register("schema.list_catalogs", SchemaListCatalogs)
	r.Register("schema.list_schemas", SchemaListSchemas)
	r.Register("schema.list_tables", SchemaListTables)
	r.Register("schema.table_columns", SchemaTableColumns)
	r.Register("schema.table_info", SchemaTableInfo)
	r.Register("schema.invalidate_table_schema", SchemaInvalidate)

	return r
}

// Register installs or replaces a handler for a route key.
func (r *Registry) Register(key string, h Handler) {
	r.handlers[key] = h
}

// Lookup resolves a route key to its handler.
func (r *Registry) Lookup(key string) (Handler, error) {
	h, ok := r.handlers[key]
	if !ok {
		return nil, protocol.ValidationError(
			"Unsupported operation.",
			fmt.Sprintf("no handler registered for %q", key))
	}
	return h, nil
}

// Keys returns the registered route keys, unsorted.
func (r *Registry) Keys() []string {
	out := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	return out
}

// tabularOutcome packages rows into a QueryResult in the request's data
// format, preferring resolved column metadata when the driver reported
// none.
func tabularOutcome(ec *ExecContext, rows []map[string]any, cols []protocol.ColumnMetadata) (*Outcome, error) {
	if cols == nil && ec.Resolved != nil {
		cols = ec.Resolved.Columns
	}
	result := &protocol.QueryResult{
		DataFormat: ec.Request.EffectiveDataFormat(),
		RowCount:   len(rows),
		Columns:    cols,
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	if len(names) == 0 {
		names = nil
	}

	switch result.DataFormat {
	case protocol.FormatFrame:
		result.Frame = shape.RowsToFrame(rows, names)
	case protocol.FormatArrow:
		table, err := shape.RowsToArrow(rows, names)
		if err != nil {
			return nil, err
		}
		result.Arrow = table
	default:
		if rows == nil {
			rows = []map[string]any{}
		}
		result.Rows = rows
	}
	return &Outcome{Result: result}, nil
}

// mutationOutcome packages an affected-row count. RowsUnknown surfaces
// as a nil count so callers can tell "zero" from "not reported".
func mutationOutcome(affected int64) *Outcome {
	o := &Outcome{Affected: affected}
	if affected < 0 {
		o.Meta()["affected_rows"] = nil
	} else {
		o.Meta()["affected_rows"] = affected
	}
	return o
}
