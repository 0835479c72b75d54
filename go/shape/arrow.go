package shape

import (
	"encoding/json"
	"fmt"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"

	"github.com/sovakpeter/lakegate/go/protocol"
)

// RowsToArrow builds an arrow table from row maps. Column types are
// inferred from the first non-nil value of each column; unrecognized
// values fall back to their string rendering.
func RowsToArrow(rows []map[string]any, columns []string) (arrow.Table, error) {
	if columns == nil && len(rows) > 0 {
		columns = sortedKeys(rows[0])
	}

	fields := make([]arrow.Field, len(columns))
	for i, name := range columns {
		fields[i] = arrow.Field{Name: name, Type: inferArrowType(rows, name), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	alloc := memory.NewGoAllocator()
	builder := array.NewRecordBuilder(alloc, schema)
	defer builder.Release()

	for _, row := range rows {
		for i, name := range columns {
			if err := appendValue(builder.Field(i), row[name]); err != nil {
				return nil, protocol.ValidationError(
					"Unsupported value in arrow conversion.",
					fmt.Sprintf("column %q: %v", name, err))
			}
		}
	}

	record := builder.NewRecord()
	defer record.Release()
	return array.NewTableFromRecords(schema, []arrow.Record{record}), nil
}

func inferArrowType(rows []map[string]any, column string) arrow.DataType {
	for _, row := range rows {
		switch row[column].(type) {
		case nil:
			continue
		case bool:
			return arrow.FixedWidthTypes.Boolean
		case int, int32, int64:
			return arrow.PrimitiveTypes.Int64
		case float32, float64:
			return arrow.PrimitiveTypes.Float64
		default:
			return arrow.BinaryTypes.String
		}
	}
	return arrow.BinaryTypes.String
}

func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch fb := b.(type) {
	case *array.BooleanBuilder:
		x, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
		fb.Append(x)
	case *array.Int64Builder:
		switch x := v.(type) {
		case int:
			fb.Append(int64(x))
		case int32:
			fb.Append(int64(x))
		case int64:
			fb.Append(x)
		case float64:
			fb.Append(int64(x))
		default:
			return fmt.Errorf("expected integer, got %T", v)
		}
	case *array.Float64Builder:
		switch x := v.(type) {
		case float32:
			fb.Append(float64(x))
		case float64:
			fb.Append(x)
		case int:
			fb.Append(float64(x))
		case int64:
			fb.Append(float64(x))
		default:
			return fmt.Errorf("expected float, got %T", v)
		}
	case *array.StringBuilder:
		if s, ok := v.(string); ok {
			fb.Append(s)
		} else {
			fb.Append(fmt.Sprint(v))
		}
	default:
		return fmt.Errorf("unsupported builder %T", b)
	}
	return nil
}

// ArrowToRows materializes an arrow table as row maps.
func ArrowToRows(table arrow.Table) ([]map[string]any, error) {
	rows := make([]map[string]any, table.NumRows())
	for i := range rows {
		rows[i] = make(map[string]any, table.NumCols())
	}

	for c := 0; c < int(table.NumCols()); c++ {
		col := table.Column(c)
		name := table.Schema().Field(c).Name
		offset := 0
		for _, chunk := range col.Data().Chunks() {
			values, err := chunkValues(chunk)
			if err != nil {
				return nil, protocol.ValidationError(
					"Unsupported arrow column type.",
					fmt.Sprintf("column %q: %v", name, err))
			}
			for i, v := range values {
				rows[offset+i][name] = v
			}
			offset += chunk.Len()
		}
	}
	return rows, nil
}

// chunkValues extracts one chunk's values as Go natives. Types outside
// the common set go through the array's JSON representation.
func chunkValues(chunk arrow.Array) ([]any, error) {
	out := make([]any, chunk.Len())
	switch arr := chunk.(type) {
	case *array.Boolean:
		for i := range out {
			if arr.IsNull(i) {
				continue
			}
			out[i] = arr.Value(i)
		}
	case *array.Int64:
		for i := range out {
			if arr.IsNull(i) {
				continue
			}
			out[i] = arr.Value(i)
		}
	case *array.Float64:
		for i := range out {
			if arr.IsNull(i) {
				continue
			}
			out[i] = arr.Value(i)
		}
	case *array.String:
		for i := range out {
			if arr.IsNull(i) {
				continue
			}
			out[i] = arr.Value(i)
		}
	default:
		raw, err := json.Marshal(chunk)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
	}
	return out, nil
}
