package schema

import (
	"context"

	"github.com/sovakpeter/lakegate/go/logging"
	"github.com/sovakpeter/lakegate/go/protocol"
)

// Resolved is the outcome of wildcard column resolution.
type Resolved struct {
	ColumnNames []string
	Columns     []protocol.ColumnMetadata
	TableRef    string
}

// Resolver expands wildcard column selections into concrete column lists
// so responses carry column metadata even for empty result sets.
type Resolver struct {
	provider *Provider
}

// NewResolver wraps a provider.
func NewResolver(provider *Provider) *Resolver {
	return &Resolver{provider: provider}
}

// NeedsResolution reports whether a request wants its columns expanded:
// READ operations (other than named queries) selecting all columns.
func (r *Resolver) NeedsResolution(req *protocol.OperationRequest) bool {
	if req.Operation != protocol.OpRead || req.Mode == protocol.ModeNamed {
		return false
	}
	return req.IsWildcard()
}

// Resolve looks up the table's columns. Callers treat failures as
// advisory: the read proceeds unresolved when metadata is unavailable.
func (r *Resolver) Resolve(ctx context.Context, req *protocol.OperationRequest) (*Resolved, error) {
	if req.Table == "" {
		return nil, protocol.ValidationError(
			"Missing table.", "cannot resolve schema without a table reference")
	}

	s, err := r.provider.GetTableSchema(ctx, req.Table)
	if err != nil {
		return nil, err
	}

	logging.Logger(ctx).WithField("columns", len(s.Columns)).Debug("schema resolved")
	return &Resolved{
		ColumnNames: s.ColumnNames(),
		Columns:     s.ColumnMetadata(),
		TableRef:    s.TableRef(),
	}, nil
}
