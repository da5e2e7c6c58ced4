package google

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"lifedash/internal/core"
)

var columns = []string{"ID", "Date", "Name", "Category", "Amount", "Icon"}

func headerRow() []any {
	out := make([]any, len(columns))
	for i, c := range columns {
		out[i] = c
	}
	return out
}

func transactionRow(tx core.Transaction) []any {
	return []any{tx.ID, tx.Date.String(), tx.Name, tx.Category, tx.Amount.Decimal(), tx.Icon}
}

// rowOf returns the 1-based row whose first cell equals id, or 0.
func rowOf(values [][]any, id string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}

// parseTransactions converts a values matrix (as returned by the Sheets API)
// into transactions. Columns are located by header when a header row is
// present, otherwise the default layout is assumed. Cleared and malformed rows
// are skipped.
func parseTransactions(values [][]any) []core.Transaction {
	if len(values) == 0 {
		return nil
	}
	cols := map[string]int{}
	start := 0
	headers := toStrings(values[0])
	if indexOf(headers, "ID") != -1 && indexOf(headers, "Amount") != -1 {
		for _, name := range columns {
			cols[name] = indexOf(headers, name)
		}
		start = 1
	} else {
		for i, name := range columns {
			cols[name] = i
		}
	}

	var out []core.Transaction
	for _, raw := range values[start:] {
		row := toStrings(raw)
		id := safeGet(row, cols["ID"])
		if id == "" {
			continue
		}
		cents, ok := parseAmountToCents(safeGet(row, cols["Amount"]))
		if !ok {
			continue
		}
		date, err := core.ParseDate(safeGet(row, cols["Date"]))
		if err != nil {
			continue
		}
		out = append(out, core.Transaction{
			ID:       id,
			Date:     date,
			Name:     safeGet(row, cols["Name"]),
			Category: safeGet(row, cols["Category"]),
			Amount:   core.Money{Cents: cents},
			Icon:     safeGet(row, cols["Icon"]),
		})
	}
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// parseAmountToCents accepts signed amounts as the sheet renders them, with
// a decimal comma or point and an optional currency symbol.
func parseAmountToCents(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "€$£ ")
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		// 1.234,56 or 1,234.56: the last separator is the decimal one
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(math.Round(f * 100)), true
}
