package sheets

import (
	"context"

	"lifedash/internal/core"
)

// Ports for the spreadsheet mirror of the transaction ledger.
type (
	// TransactionWriter keeps one row per transaction, keyed by ID, in the
	// sheet of the transaction's year.
	TransactionWriter interface {
		Upsert(ctx context.Context, tx core.Transaction) (rowRef string, err error)
		// Delete removes the row for id from the sheet of year. Missing rows are not an error.
		Delete(ctx context.Context, id string, year int) error
	}

	// TransactionLister returns the mirrored transactions for a given month.
	TransactionLister interface {
		ListTransactions(ctx context.Context, year int, month int) ([]core.Transaction, error)
	}
)
