package protocol

import (
	"fmt"

	"github.com/apache/arrow/go/v12/arrow"
)

// ColumnMetadata describes one column of a result set or cached schema.
type ColumnMetadata struct {
	Name            string `json:"name"`
	DataType        string `json:"data_type"`
	Nullable        bool   `json:"nullable"`
	IsPrimaryKey    bool   `json:"is_primary_key"`
	OrdinalPosition int    `json:"ordinal_position"`
}

// Frame is a lightweight columnar table used for the PANDAS data format.
// Columns are parallel slices in Columns order.
type Frame struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

// NumRows returns the row count of the frame.
func (f *Frame) NumRows() int {
	if f == nil || len(f.Data) == 0 {
		return 0
	}
	return len(f.Data[0])
}

// Row materializes row i as a column-keyed map.
func (f *Frame) Row(i int) map[string]any {
	out := make(map[string]any, len(f.Columns))
	for c, name := range f.Columns {
		out[name] = f.Data[c][i]
	}
	return out
}

// QueryResult is the typed result of a warehouse read. Exactly one of Rows,
// Frame, or Arrow is set, matching DataFormat.
type QueryResult struct {
	Rows       []map[string]any `json:"rows,omitempty"`
	Frame      *Frame           `json:"frame,omitempty"`
	Arrow      arrow.Table      `json:"-"`
	DataFormat DataFormat       `json:"data_format"`
	RowCount   int              `json:"row_count"`
	Columns    []ColumnMetadata `json:"columns,omitempty"`
	Metadata   map[string]any   `json:"metadata,omitempty"`
}

// Validate checks the one-of invariant between Rows, Frame, and Arrow.
func (q *QueryResult) Validate() error {
	var set int
	if q.Rows != nil {
		set++
	}
	if q.Frame != nil {
		set++
	}
	if q.Arrow != nil {
		set++
	}
	if set > 1 {
		return fmt.Errorf("query result carries %d payloads, want at most one", set)
	}
	return nil
}

// ErrorDetail is the serializable error surface of a failed response.
type ErrorDetail struct {
	Category ErrorCategory  `json:"category"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

// OperationResponse is the uniform envelope every Execute call returns.
type OperationResponse struct {
	Success  bool           `json:"success"`
	Data     any            `json:"data,omitempty"`
	Error    *ErrorDetail   `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata"`
}

// Meta returns the metadata map, allocating it on first use.
func (r *OperationResponse) Meta() map[string]any {
	if r.Metadata == nil {
		r.Metadata = map[string]any{}
	}
	return r.Metadata
}
