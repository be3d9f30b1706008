package datastore

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Format renders rows as a pipe-separated table for the reasoning service, keeping at most
// maxRows rows (maxRows <= 0 keeps all).
func Format(rows *Rows, maxRows int) string {
	if rows == nil || len(rows.Values) == 0 {
		return "(no rows)"
	}
	var b strings.Builder
	b.WriteString(strings.Join(rows.Columns, " | "))
	shown := rows.Values
	if maxRows > 0 && len(shown) > maxRows {
		shown = shown[:maxRows]
	}
	for _, r := range shown {
		b.WriteByte('\n')
		for i, v := range r {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(formatValue(v))
		}
	}
	if hidden := len(rows.Values) - len(shown); hidden > 0 {
		fmt.Fprintf(&b, "\n(%d more rows not shown; aggregate or add LIMIT)", hidden)
	}
	return b.String()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case [16]byte:
		return uuid.UUID(x).String()
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.RFC3339)
	case driver.Valuer:
		// pgtype values (numeric, uuid, ...) render through their SQL value.
		if val, err := x.Value(); err == nil {
			return formatValue(val)
		}
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}
