package google

import (
	"testing"

	"lifedash/internal/core"
)

func TestParseTransactions_WithHeader(t *testing.T) {
	values := [][]any{
		{"ID", "Date", "Name", "Category", "Amount", "Icon"},
		{"tx-1", "2025-11-01", "Salary", "Income", "2500.00", ""},
		{"tx-2", "2025-11-03", "Groceries", "Food", "-42,50", "🛒"},
		{},                 // cleared row
		{"", "", "", "", ""}, // cleared row with empty cells
		{"tx-3", "not a date", "Broken", "Food", "-1.00"},
		{"tx-4", "2025-11-04", "Broken", "Food", "abc"},
		{"tx-5", "2025-10-30", "Rent", "Housing", "€ -1.200,00"},
	}

	got := parseTransactions(values)
	if len(got) != 3 {
		t.Fatalf("parseTransactions() returned %d rows, want 3: %+v", len(got), got)
	}
	want := []struct {
		id    string
		cents int64
	}{
		{"tx-1", 250000},
		{"tx-2", -4250},
		{"tx-5", -120000},
	}
	for i, w := range want {
		if got[i].ID != w.id || got[i].Amount.Cents != w.cents {
			t.Errorf("row %d = %s/%d, want %s/%d", i, got[i].ID, got[i].Amount.Cents, w.id, w.cents)
		}
	}
	if got[1].Icon != "🛒" || got[1].Category != "Food" {
		t.Errorf("row 1 = %+v", got[1])
	}
}

func TestParseTransactions_ReorderedHeader(t *testing.T) {
	values := [][]any{
		{"Amount", "ID", "Name", "Date", "Category"},
		{"-9.99", "tx-1", "Music", "2025-11-02", "Leisure"},
	}
	got := parseTransactions(values)
	if len(got) != 1 || got[0].ID != "tx-1" || got[0].Amount.Cents != -999 || got[0].Name != "Music" {
		t.Fatalf("parseTransactions() = %+v", got)
	}
}

func TestParseTransactions_NoHeader(t *testing.T) {
	values := [][]any{
		{"tx-1", "2025-11-02", "Coffee", "Food", -2.5},
	}
	got := parseTransactions(values)
	if len(got) != 1 || got[0].Amount.Cents != -250 || !got[0].Date.Equal(core.NewDate(2025, 11, 2).Time) {
		t.Fatalf("parseTransactions() = %+v", got)
	}
}

func TestParseAmountToCents(t *testing.T) {
	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{"12.34", 1234, true},
		{"-12.34", -1234, true},
		{"12,3", 1230, true},
		{"1,234.56", 123456, true},
		{"1.234,56", 123456, true},
		{"$ 5", 500, true},
		{"0.1", 10, true},
		{"", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseAmountToCents(tt.in)
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Errorf("parseAmountToCents(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestRowOf(t *testing.T) {
	values := [][]any{{"ID"}, {"tx-1"}, {}, {" tx-2 "}}
	if got := rowOf(values, "tx-2"); got != 4 {
		t.Errorf("rowOf(tx-2) = %d, want 4", got)
	}
	if got := rowOf(values, "tx-9"); got != 0 {
		t.Errorf("rowOf(tx-9) = %d, want 0", got)
	}
}

func TestTransactionRow(t *testing.T) {
	row := transactionRow(core.Transaction{
		ID: "tx-1", Name: "Coffee", Category: "Food", Amount: core.Money{Cents: -250}, Date: core.NewDate(2025, 11, 2),
	})
	if row[0] != "tx-1" || row[1] != "2025-11-02" || row[4] != "-2.50" {
		t.Errorf("transactionRow() = %v", row)
	}
	parsed := parseTransactions([][]any{headerRow(), row})
	if len(parsed) != 1 || parsed[0].Amount.Cents != -250 {
		t.Errorf("round trip through sheet row = %+v", parsed)
	}
}
