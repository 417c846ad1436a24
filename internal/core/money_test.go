package core

import (
	"encoding/json"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"1e3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestParseSignedDecimalToCents(t *testing.T) {
	cases := map[string]int64{
		"0":      0,
		"-1":     -100,
		"-12,30": -1230,
		"1000.5": 100050,
		"-0.005": -1,
	}
	for in, want := range cases {
		got, err := ParseSignedDecimalToCents(in)
		if err != nil || got != want {
			t.Errorf("%q expected %d, got %d (err=%v)", in, want, got, err)
		}
	}
}

func TestMoneyStringAndJSON(t *testing.T) {
	m := Money{Cents: -1230}
	if m.String() != "-12.30" {
		t.Fatalf("got %q", m.String())
	}

	b, err := json.Marshal(MustMoney("200"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"200.00"` {
		t.Fatalf("got %s", b)
	}

	var fromString, fromNumber Money
	if err := json.Unmarshal([]byte(`"15.5"`), &fromString); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if err := json.Unmarshal([]byte(`15.5`), &fromNumber); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if fromString != fromNumber || fromString.Cents != 1550 {
		t.Fatalf("got %v and %v", fromString, fromNumber)
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := MustMoney("10.10")
	b := MustMoney("20.20")
	if got := a.Sub(b); got.Cents != -1010 || !got.IsNegative() {
		t.Fatalf("got %v", got)
	}
	// Repeated summation stays exact.
	var total Money
	for i := 0; i < 1000; i++ {
		total = total.Add(MustMoney("0.10"))
	}
	if total.Cents != 10000 {
		t.Fatalf("expected 100.00, got %s", total)
	}
}
