// Package schema caches table metadata from information_schema in a
// hybrid memory plus JSON-file store, and resolves wildcard column
// selections against it.
package schema

import (
	"time"

	"github.com/sovakpeter/lakegate/go/protocol"
)

// Column is one cached column of a table.
type Column struct {
	Name            string `json:"column_name"`
	DataType        string `json:"data_type"`
	Nullable        bool   `json:"is_nullable"`
	IsPrimaryKey    bool   `json:"is_primary_key"`
	OrdinalPosition int    `json:"ordinal_position"`
}

// Metadata converts to the protocol's column metadata shape.
func (c Column) Metadata() protocol.ColumnMetadata {
	return protocol.ColumnMetadata{
		Name:            c.Name,
		DataType:        c.DataType,
		Nullable:        c.Nullable,
		IsPrimaryKey:    c.IsPrimaryKey,
		OrdinalPosition: c.OrdinalPosition,
	}
}

// TableSchema is the cached metadata of one table.
type TableSchema struct {
	Catalog   string    `json:"catalog"`
	Schema    string    `json:"schema"`
	Table     string    `json:"table"`
	Columns   []Column  `json:"columns"`
	FetchedAt time.Time `json:"fetched_at"`
}

// TableRef returns the fully qualified reference.
func (s *TableSchema) TableRef() string {
	return s.Catalog + "." + s.Schema + "." + s.Table
}

// ColumnNames returns the ordered column names.
func (s *TableSchema) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// PrimaryKeyColumns returns the names of primary key columns, in ordinal
// order.
func (s *TableSchema) PrimaryKeyColumns() []string {
	var out []string
	for _, c := range s.Columns {
		if c.IsPrimaryKey {
			out = append(out, c.Name)
		}
	}
	return out
}

// ColumnMetadata returns all columns in the protocol shape.
func (s *TableSchema) ColumnMetadata() []protocol.ColumnMetadata {
	out := make([]protocol.ColumnMetadata, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Metadata()
	}
	return out
}
