package wire

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// EncodeLiteral renders v as a SQL literal suitable for inlining into a
// simple-query string. This is the text-format escaper spec §4.2 assigns to
// the simple-query path: the parameter substitutor calls it once per
// parameter when building the substituted statement text.
func EncodeLiteral(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "null", nil
	case bool:
		if val {
			return "TRUE", nil
		}
		return "FALSE", nil
	case string:
		return quoteString(val), nil
	case []byte:
		return quoteString(fmt.Sprintf("\\x%x", val)), nil
	case int, int8, int16, int32, int64, uint32:
		return fmt.Sprintf("%d", val), nil
	case float32:
		return encodeFloatLiteral(float64(val)), nil
	case float64:
		return encodeFloatLiteral(val), nil
	case time.Time:
		return quoteString(formatDateTimeLiteral(val)), nil
	default:
		return "", NewInvalidTypeError(PgTypeText, v)
	}
}

func encodeFloatLiteral(f float64) string {
	switch {
	case math.IsNaN(f):
		return "'nan'"
	case math.IsInf(f, 1):
		return "'infinity'"
	case math.IsInf(f, -1):
		return "'-infinity'"
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

// quoteString applies the single-quote escaping rule from spec §4.2: double
// embedded quotes, and if the value contains a backslash switch to the
// E'...' escape form with backslashes doubled.
func quoteString(s string) string {
	if strings.Contains(s, `\`) {
		var b strings.Builder
		b.WriteString("E'")
		for _, r := range s {
			switch r {
			case '\'':
				b.WriteString(`''`)
			case '\\':
				b.WriteString(`\\`)
			default:
				b.WriteRune(r)
			}
		}
		b.WriteByte('\'')
		return b.String()
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// formatDateTimeLiteral renders ISO-8601 with a ±HH:MM zone offset. Years
// before 1 CE render as the absolute year, zero-padded to at least 4
// digits, followed by " BC" (proleptic Gregorian, matching Postgres's own
// BC year display convention).
func formatDateTimeLiteral(t time.Time) string {
	year := t.Year()
	bc := year <= 0
	displayYear := year
	if bc {
		displayYear = 1 - year
	}

	_, offset := t.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	offH := offset / 3600
	offM := (offset % 3600) / 60

	s := fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d%s%02d:%02d",
		displayYear, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), sign, offH, offM)
	if bc {
		s += " BC"
	}
	return s
}
