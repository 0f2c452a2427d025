package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

const logTimestampLayout = "2006-01-02 15:04:05.000"

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Local().Format(logTimestampLayout)
}

// attrString renders a value without quoting, for header fields.
func attrString(v slog.Value) string {
	v = v.Resolve()
	if v.Kind() == slog.KindString {
		return v.String()
	}
	return rawValue(v)
}

func rawValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		// Scene timestamps and thresholds read better without exponent notation.
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindTime:
		return formatTimestamp(v.Time())
	case slog.KindAny:
		switch x := v.Any().(type) {
		case error:
			return x.Error()
		case []float64:
			parts := make([]string, len(x))
			for i, f := range x {
				parts[i] = strconv.FormatFloat(f, 'f', 3, 64)
			}
			return "[" + strings.Join(parts, " ") + "]"
		case fmt.Stringer:
			return x.String()
		default:
			return fmt.Sprint(x)
		}
	default:
		return v.String()
	}
}

func formatValue(v slog.Value) string {
	s := rawValue(v.Resolve())
	if needsQuotes(s) {
		return strconv.Quote(s)
	}
	return s
}

func needsQuotes(s string) bool {
	if s == "" {
		return true
	}
	return strings.ContainsFunc(s, func(r rune) bool {
		return r <= ' ' || r == '=' || r == '"'
	})
}
