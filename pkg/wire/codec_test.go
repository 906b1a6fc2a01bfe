package wire

import (
	"bytes"
	"math"
	"testing"
	"time"
)

func TestCodec_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		typ  PgType
		oid  OID
		val  any
	}{
		{"bool true", PgTypeBoolean, OIDBool, true},
		{"bool false", PgTypeBoolean, OIDBool, false},
		{"int2 min", PgTypeSmallInteger, OIDInt2, int16(math.MinInt16)},
		{"int2 max", PgTypeSmallInteger, OIDInt2, int16(math.MaxInt16)},
		{"int4 min", PgTypeInteger, OIDInt4, int32(math.MinInt32)},
		{"int4 max", PgTypeInteger, OIDInt4, int32(math.MaxInt32)},
		{"int8 min", PgTypeBigInteger, OIDInt8, int64(math.MinInt64)},
		{"int8 max", PgTypeBigInteger, OIDInt8, int64(math.MaxInt64)},
		{"float4 zero", PgTypeReal, OIDFloat4, float32(0)},
		{"float8 negzero", PgTypeDouble, OIDFloat8, math.Copysign(0, -1)},
		{"text empty", PgTypeText, OIDText, ""},
		{"text multibyte", PgTypeText, OIDText, "héllo wörld 日本語"},
		{"bytea empty", PgTypeBytea, OIDBytea, []byte{}},
		{"bytea nonempty", PgTypeBytea, OIDBytea, []byte{1, 2, 3, 0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := EncodeValue(tt.val, tt.typ)
			if err != nil {
				t.Fatalf("EncodeValue: %v", err)
			}
			dec, err := DecodeValue(tt.oid, enc)
			if err != nil {
				t.Fatalf("DecodeValue: %v", err)
			}

			switch want := tt.val.(type) {
			case []byte:
				got, ok := dec.([]byte)
				if !ok || !bytes.Equal(got, want) {
					t.Errorf("got %#v, want %#v", dec, want)
				}
			default:
				if dec != tt.val {
					t.Errorf("got %#v, want %#v", dec, tt.val)
				}
			}
		})
	}
}

func TestCodec_FloatSpecialValues(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		enc, err := EncodeValue(f, PgTypeDouble)
		if err != nil {
			t.Fatalf("EncodeValue(%v): %v", f, err)
		}
		dec, err := DecodeValue(OIDFloat8, enc)
		if err != nil {
			t.Fatalf("DecodeValue: %v", err)
		}
		got := dec.(float64)
		if math.IsNaN(f) {
			if !math.IsNaN(got) {
				t.Errorf("got %v, want NaN", got)
			}
			continue
		}
		if got != f {
			t.Errorf("got %v, want %v", got, f)
		}
	}
}

func TestCodec_DateRoundTrip(t *testing.T) {
	for _, tm := range []time.Time{
		pgEpoch,
		time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2200, 12, 31, 0, 0, 0, 0, time.UTC),
		time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC),
	} {
		enc, err := EncodeValue(tm, PgTypeDate)
		if err != nil {
			t.Fatalf("EncodeValue: %v", err)
		}
		dec, err := DecodeValue(OIDDate, enc)
		if err != nil {
			t.Fatalf("DecodeValue: %v", err)
		}
		got := dec.(time.Time)
		if !got.Equal(tm) {
			t.Errorf("got %v, want %v", got, tm)
		}
	}
}

func TestCodec_TimestampRoundTrip(t *testing.T) {
	for _, tm := range []time.Time{
		pgEpoch,
		time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2999, 12, 31, 23, 59, 59, 999000, time.UTC),
	} {
		enc, err := EncodeValue(tm, PgTypeTimestamp)
		if err != nil {
			t.Fatalf("EncodeValue: %v", err)
		}
		dec, err := DecodeValue(OIDTimestamp, enc)
		if err != nil {
			t.Fatalf("DecodeValue: %v", err)
		}
		got := dec.(time.Time)
		if !got.Equal(tm) {
			t.Errorf("got %v, want %v", got, tm)
		}
	}
}

func TestCodec_UUIDRoundTrip(t *testing.T) {
	const s = "a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11"
	enc, err := EncodeValue(s, PgTypeUUID)
	if err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}
	if len(enc) != 16 {
		t.Fatalf("encoded UUID length = %d, want 16", len(enc))
	}
	dec, err := DecodeValue(OIDUUID, enc)
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	if dec != s {
		t.Errorf("got %q, want %q", dec, s)
	}
}

func TestCodec_UUIDInvalidFormat(t *testing.T) {
	_, err := EncodeValue("not-a-uuid", PgTypeUUID)
	if err == nil {
		t.Fatal("expected error for malformed UUID")
	}
	werr, ok := err.(*Err)
	if !ok || werr.Kind != KindInvalidFormat {
		t.Fatalf("expected KindInvalidFormat, got %#v", err)
	}
}

func TestCodec_JSONRoundTrip(t *testing.T) {
	enc, err := EncodeValue(`{"a":1}`, PgTypeJSON)
	if err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}
	if enc[0] != 0x01 {
		t.Fatalf("expected leading version byte 0x01, got %#x", enc[0])
	}
	if PgTypeJSON.OID() != OIDJSON {
		t.Fatalf("PgTypeJSON.OID() = %v, want OIDJSON", PgTypeJSON.OID())
	}
	dec, err := DecodeValue(PgTypeJSON.OID(), enc)
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	if string(dec.([]byte)) != `{"a":1}` {
		t.Errorf("got %q", dec)
	}
}

func TestCodec_JSONBRoundTrip(t *testing.T) {
	enc, err := EncodeValue(`{"a":1}`, PgTypeJSON)
	if err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}
	dec, err := DecodeValue(OIDJSONB, enc)
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	if string(dec.([]byte)) != `{"a":1}` {
		t.Errorf("got %q", dec)
	}
}

func TestCodec_TypeMismatch(t *testing.T) {
	_, err := EncodeValue(42, PgTypeBoolean)
	if err == nil {
		t.Fatal("expected error")
	}
	werr, ok := err.(*Err)
	if !ok || werr.Kind != KindInvalidType {
		t.Fatalf("expected KindInvalidType, got %#v", err)
	}
}

func TestCodec_NullRoundTrip(t *testing.T) {
	enc, err := EncodeValue(nil, PgTypeInteger)
	if err != nil {
		t.Fatalf("EncodeValue(nil): %v", err)
	}
	if enc != nil {
		t.Fatalf("expected nil encoding for nil value, got %v", enc)
	}
	dec, err := DecodeValue(OIDInt4, nil)
	if err != nil {
		t.Fatalf("DecodeValue(nil): %v", err)
	}
	if dec != nil {
		t.Fatalf("expected nil decode, got %v", dec)
	}
}

func TestCodec_UnknownOIDFallsBackToUTF8(t *testing.T) {
	dec, err := DecodeValue(OID(99999), []byte("hello"))
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	if dec != "hello" {
		t.Errorf("got %#v, want UTF-8 string fallback", dec)
	}
}

func TestCodec_UnknownOIDNonUTF8FallsBackToBytes(t *testing.T) {
	raw := []byte{0xff, 0xfe, 0x00, 0x01}
	dec, err := DecodeValue(OID(99999), raw)
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	got, ok := dec.([]byte)
	if !ok || !bytes.Equal(got, raw) {
		t.Errorf("got %#v, want raw bytes %#v", dec, raw)
	}
}
