package wire

import (
	"math"
	"testing"
	"time"
)

func TestEncodeLiteral(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"null", nil, "null"},
		{"true", true, "TRUE"},
		{"false", false, "FALSE"},
		{"int", 42, "42"},
		{"simple string", "hello", "'hello'"},
		{"embedded quote", "it's", "'it''s'"},
		{"backslash", `a\b`, `E'a\\b'`},
		{"backslash and quote", `it's a\path`, `E'it''s a\\path'`},
		{"nan", math.NaN(), "'nan'"},
		{"inf", math.Inf(1), "'infinity'"},
		{"neginf", math.Inf(-1), "'-infinity'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeLiteral(tt.in)
			if err != nil {
				t.Fatalf("EncodeLiteral: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeLiteral_DateTimeBC(t *testing.T) {
	// Year 44 BCE (proleptic Gregorian year 0 is 1 BC, -1 is 2 BC, ...).
	tm := time.Date(-43, 3, 15, 12, 0, 0, 0, time.UTC)
	got, err := EncodeLiteral(tm)
	if err != nil {
		t.Fatalf("EncodeLiteral: %v", err)
	}
	want := "'0044-03-15 12:00:00+00:00 BC'"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEncodeLiteral_DateTimeAD(t *testing.T) {
	loc := time.FixedZone("", -5*3600)
	tm := time.Date(2024, 6, 1, 9, 30, 0, 0, loc)
	got, err := EncodeLiteral(tm)
	if err != nil {
		t.Fatalf("EncodeLiteral: %v", err)
	}
	want := "'2024-06-01 09:30:00-05:00'"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
