package core

import "testing"

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
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
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
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"15000", 1500000, true},
		{"-1500", -150000, true},
		{"+12.5", 1250, true},
		{"-0,99", -99, true},
		{"0", 0, false},
		{"-0.00", 0, false},
		{"--1", 0, false},
		{"1e3", 0, false},
		// Unicode digits outside 0-9
		{"1.٣", 0, false},
		{"0.٥", 0, false},
		{"١٢", 0, false},
		{"92233720368547758.07", 9223372036854775807, true},
		{"92233720368547758.08", 0, false},
		// rounding carries the cents past MaxInt64
		{"92233720368547758.995", 0, false},
		{"-92233720368547758.995", 0, false},
		{"92233720368547759", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseSignedDecimalToCents(tc.in)
		if tc.ok && (err != nil || got != tc.out) {
			t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q expected error, got %d", tc.in, got)
		}
	}
}

func TestParseNonNegativeDecimalToCents(t *testing.T) {
	if got, err := ParseNonNegativeDecimalToCents("0"); err != nil || got != 0 {
		t.Fatalf("expected 0, got %d (err=%v)", got, err)
	}
	if _, err := ParseNonNegativeDecimalToCents("-5"); err == nil {
		t.Fatalf("expected error for negative input")
	}
}

func TestMoneyDecimal(t *testing.T) {
	cases := map[int64]string{
		0:       "0.00",
		5:       "0.05",
		1234:    "12.34",
		-150000: "-1500.00",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).Decimal(); got != want {
			t.Errorf("Money{%d}.Decimal() = %q, want %q", cents, got, want)
		}
	}
}
