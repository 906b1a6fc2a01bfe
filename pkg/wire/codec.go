package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// pgEpoch is the zero point for Postgres date/timestamp binary encoding:
// 2000-01-01 00:00:00 UTC.
var pgEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// EncodeValue encodes a Go value as the binary wire representation for the
// declared Postgres type t. It returns *Err (KindInvalidType /
// KindInvalidFormat) on mismatch, per spec §4.2.
func EncodeValue(v any, t PgType) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case PgTypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, NewInvalidTypeError(t, v)
		}
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil

	case PgTypeSmallInteger:
		n, ok := toInt64(v)
		if !ok || n < math.MinInt16 || n > math.MaxInt16 {
			return nil, NewInvalidTypeError(t, v)
		}
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(int16(n)))
		return buf, nil

	case PgTypeInteger, PgTypeSerial:
		n, ok := toInt64(v)
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return nil, NewInvalidTypeError(t, v)
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(int32(n)))
		return buf, nil

	case PgTypeBigInteger, PgTypeBigSerial:
		n, ok := toInt64(v)
		if !ok {
			return nil, NewInvalidTypeError(t, v)
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(n))
		return buf, nil

	case PgTypeReal:
		f, ok := toFloat64(v)
		if !ok {
			return nil, NewInvalidTypeError(t, v)
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, math.Float32bits(float32(f)))
		return buf, nil

	case PgTypeDouble:
		f, ok := toFloat64(v)
		if !ok {
			return nil, NewInvalidTypeError(t, v)
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(f))
		return buf, nil

	case PgTypeText, PgTypeName:
		s, ok := v.(string)
		if !ok {
			return nil, NewInvalidTypeError(t, v)
		}
		return []byte(s), nil

	case PgTypeBytea:
		b, ok := v.([]byte)
		if !ok {
			return nil, NewInvalidTypeError(t, v)
		}
		return b, nil

	case PgTypeDate:
		tm, ok := v.(time.Time)
		if !ok {
			return nil, NewInvalidTypeError(t, v)
		}
		days := int32((tm.Unix() - pgEpoch.Unix()) / 86400)
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(days))
		return buf, nil

	case PgTypeTimestamp, PgTypeTimestampTZ:
		tm, ok := v.(time.Time)
		if !ok {
			return nil, NewInvalidTypeError(t, v)
		}
		micros := (tm.Unix()-pgEpoch.Unix())*1_000_000 + int64(tm.Nanosecond()/1000)
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(micros))
		return buf, nil

	case PgTypeUUID:
		switch u := v.(type) {
		case [16]byte:
			return u[:], nil
		case string:
			return parseUUIDString(u)
		default:
			return nil, NewInvalidTypeError(t, v)
		}

	case PgTypeJSON:
		var text string
		switch j := v.(type) {
		case string:
			text = j
		case []byte:
			text = string(j)
		default:
			return nil, NewInvalidTypeError(t, v)
		}
		out := make([]byte, 0, len(text)+1)
		out = append(out, 0x01)
		out = append(out, text...)
		return out, nil

	default:
		return nil, NewInvalidTypeError(t, v)
	}
}

// DecodeValue decodes raw binary column bytes for a given type OID. Types
// outside the built-in table (§4.2/§6) return the raw bytes, or their UTF-8
// decoding when that succeeds, exactly as spec'd for the default value
// decoder.
func DecodeValue(oid OID, raw []byte) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch oid {
	case OIDBool:
		if len(raw) != 1 {
			return nil, NewInvalidFormatError("bool: wrong length", nil)
		}
		return raw[0] != 0, nil

	case OIDInt2:
		if len(raw) != 2 {
			return nil, NewInvalidFormatError("int2: wrong length", nil)
		}
		return int16(binary.BigEndian.Uint16(raw)), nil

	case OIDInt4:
		if len(raw) != 4 {
			return nil, NewInvalidFormatError("int4: wrong length", nil)
		}
		return int32(binary.BigEndian.Uint32(raw)), nil

	case OIDInt8:
		if len(raw) != 8 {
			return nil, NewInvalidFormatError("int8: wrong length", nil)
		}
		return int64(binary.BigEndian.Uint64(raw)), nil

	case OIDFloat4:
		if len(raw) != 4 {
			return nil, NewInvalidFormatError("float4: wrong length", nil)
		}
		return math.Float32frombits(binary.BigEndian.Uint32(raw)), nil

	case OIDFloat8:
		if len(raw) != 8 {
			return nil, NewInvalidFormatError("float8: wrong length", nil)
		}
		return math.Float64frombits(binary.BigEndian.Uint64(raw)), nil

	case OIDText, OIDName, OIDUnknown:
		return string(raw), nil

	case OIDBytea:
		out := make([]byte, len(raw))
		copy(out, raw)
		return out, nil

	case OIDDate:
		if len(raw) != 4 {
			return nil, NewInvalidFormatError("date: wrong length", nil)
		}
		days := int32(binary.BigEndian.Uint32(raw))
		return pgEpoch.AddDate(0, 0, int(days)), nil

	case OIDTimestamp, OIDTimestampTZ:
		if len(raw) != 8 {
			return nil, NewInvalidFormatError("timestamp: wrong length", nil)
		}
		micros := int64(binary.BigEndian.Uint64(raw))
		return time.Unix(pgEpoch.Unix()+micros/1_000_000, (micros%1_000_000)*1000).UTC(), nil

	case OIDUUID:
		if len(raw) != 16 {
			return nil, NewInvalidFormatError("uuid: wrong length", nil)
		}
		return formatUUID(raw), nil

	case OIDJSON, OIDJSONB:
		if len(raw) < 1 || raw[0] != 0x01 {
			return nil, NewInvalidFormatError("json: missing version byte", nil)
		}
		raw = raw[1:]
		out := make([]byte, len(raw))
		copy(out, raw)
		return out, nil

	default:
		if s, ok := tryUTF8(raw); ok {
			return s, nil
		}
		out := make([]byte, len(raw))
		copy(out, raw)
		return out, nil
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch f := v.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	default:
		return 0, false
	}
}

func tryUTF8(b []byte) (string, bool) {
	if !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}

func parseUUIDString(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, "-", "")
	if len(s) != 32 {
		return nil, NewInvalidFormatError(fmt.Sprintf("uuid: invalid string %q", s), nil)
	}
	out := make([]byte, 16)
	for i := 0; i < 16; i++ {
		hi, ok1 := hexNibble(s[i*2])
		lo, ok2 := hexNibble(s[i*2+1])
		if !ok1 || !ok2 {
			return nil, NewInvalidFormatError(fmt.Sprintf("uuid: invalid string %q", s), nil)
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

func formatUUID(b []byte) string {
	const hexdigits = "0123456789abcdef"
	buf := make([]byte, 36)
	dashAt := map[int]bool{8: true, 13: true, 18: true, 23: true}
	pos := 0
	for i := 0; i < 16; i++ {
		buf[pos] = hexdigits[b[i]>>4]
		pos++
		buf[pos] = hexdigits[b[i]&0xf]
		pos++
		if dashAt[pos] {
			buf[pos] = '-'
			pos++
		}
	}
	return string(buf)
}
