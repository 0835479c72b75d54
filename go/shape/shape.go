// Package shape converts query results between wire data formats and the
// delivery formats the UI asks for.
package shape

import (
	"fmt"

	"github.com/sovakpeter/lakegate/go/protocol"
)

// ResolveUIFormat maps AUTO onto the natural delivery format of the data
// format the result arrived in.
func ResolveUIFormat(dataFormat protocol.DataFormat, uiFormat protocol.UIFormat) protocol.UIFormat {
	if uiFormat != protocol.UIAuto && uiFormat != "" {
		return uiFormat
	}
	switch dataFormat {
	case protocol.FormatArrow:
		return protocol.UIArrowTable
	case protocol.FormatFrame:
		return protocol.UIFrame
	default:
		return protocol.UIJSONDict
	}
}

// compatible pairs need no conversion.
var compatible = map[protocol.DataFormat]protocol.UIFormat{
	protocol.FormatJSONRows: protocol.UIJSONDict,
	protocol.FormatArrow:    protocol.UIArrowTable,
	protocol.FormatFrame:    protocol.UIFrame,
}

// NeedsConversion reports whether delivering a result in uiFormat
// requires transforming its payload.
func NeedsConversion(dataFormat protocol.DataFormat, uiFormat protocol.UIFormat) bool {
	return compatible[dataFormat] != ResolveUIFormat(dataFormat, uiFormat)
}

// Deliver converts a query result into the payload for the resolved UI
// format. The result is not modified.
func Deliver(result *protocol.QueryResult, uiFormat protocol.UIFormat) (any, error) {
	target := ResolveUIFormat(result.DataFormat, uiFormat)

	rows, err := resultRows(result)
	if err != nil {
		return nil, err
	}

	switch target {
	case protocol.UIJSONDict:
		if rows == nil {
			rows = []map[string]any{}
		}
		return rows, nil
	case protocol.UIFrame:
		if result.Frame != nil {
			return result.Frame, nil
		}
		return RowsToFrame(rows, columnOrder(result, rows)), nil
	case protocol.UIArrowTable:
		if result.Arrow != nil {
			return result.Arrow, nil
		}
		return RowsToArrow(rows, columnOrder(result, rows))
	default:
		return nil, protocol.ValidationError(
			"Unsupported delivery format.",
			fmt.Sprintf("no conversion to ui format %q", target))
	}
}

// resultRows extracts the result's payload as rows, converting from the
// frame or arrow representation when necessary.
func resultRows(result *protocol.QueryResult) ([]map[string]any, error) {
	switch {
	case result.Rows != nil:
		return result.Rows, nil
	case result.Frame != nil:
		return FrameToRows(result.Frame), nil
	case result.Arrow != nil:
		return ArrowToRows(result.Arrow)
	default:
		return nil, nil
	}
}

// columnOrder prefers declared column metadata, falling back to the first
// row's sorted keys.
func columnOrder(result *protocol.QueryResult, rows []map[string]any) []string {
	if len(result.Columns) > 0 {
		out := make([]string, len(result.Columns))
		for i, c := range result.Columns {
			out[i] = c.Name
		}
		return out
	}
	if len(rows) == 0 {
		return nil
	}
	return sortedKeys(rows[0])
}

// FrameToRows materializes a columnar frame as row maps.
func FrameToRows(f *protocol.Frame) []map[string]any {
	out := make([]map[string]any, f.NumRows())
	for i := range out {
		out[i] = f.Row(i)
	}
	return out
}

// RowsToFrame pivots row maps into a columnar frame with the given column
// order. Missing cells become nil.
func RowsToFrame(rows []map[string]any, columns []string) *protocol.Frame {
	if columns == nil && len(rows) > 0 {
		columns = sortedKeys(rows[0])
	}
	data := make([][]any, len(columns))
	for c := range columns {
		col := make([]any, len(rows))
		for r, row := range rows {
			col[r] = row[columns[c]]
		}
		data[c] = col
	}
	return &protocol.Frame{Columns: columns, Data: data}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}
