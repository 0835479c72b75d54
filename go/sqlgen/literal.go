package sqlgen

import (
	"fmt"
	"strings"
)

// FormatLiteral renders a value as a SQL literal for debug logging only.
// Generated statements always bind values as parameters; this exists so
// logs can show a runnable approximation of a query.
func FormatLiteral(value any, warehouseType string) string {
	if value == nil {
		return "NULL"
	}

	t := strings.ToUpper(warehouseType)
	if strings.HasPrefix(t, "DECIMAL") {
		t = "DECIMAL"
	}

	switch t {
	case "STRING", "VARCHAR", "CHAR", "DATE", "TIMESTAMP", "TIME":
		return quoteLiteral(fmt.Sprint(value))
	case "BOOLEAN":
		if b, ok := value.(bool); ok && !b {
			return "FALSE"
		}
		return "TRUE"
	case "":
		switch v := value.(type) {
		case bool:
			if v {
				return "TRUE"
			}
			return "FALSE"
		case string:
			return quoteLiteral(v)
		default:
			return fmt.Sprint(v)
		}
	default:
		return fmt.Sprint(value)
	}
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
