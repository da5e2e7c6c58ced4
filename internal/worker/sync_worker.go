package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lifedash/internal/amqp"
	"lifedash/internal/log"
	"lifedash/internal/sheets"
)

// SyncWorker applies transaction sync messages to the spreadsheet mirror.
// Messages for the same record that arrive out of order are dropped by version.
type SyncWorker struct {
	writer sheets.TransactionWriter
	logger *log.Logger
	now    func() time.Time

	mu       sync.Mutex
	versions map[string]uint64
	years    map[string]int
}

func NewSyncWorker(writer sheets.TransactionWriter, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return &SyncWorker{
		writer:   writer,
		logger:   logger,
		now:      time.Now,
		versions: map[string]uint64{},
		years:    map[string]int{},
	}
}

// HandleSyncMessage processes a single record sync message from AMQP. A
// returned error requeues the message.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.RecordSyncMessage) error {
	w.logger.InfoContext(ctx, "Processing sync message",
		log.FieldOperation, msg.Op,
		log.FieldRecordID, msg.ID,
		log.FieldVersion, msg.Version)

	w.mu.Lock()
	defer w.mu.Unlock()

	if last, ok := w.versions[msg.ID]; ok && msg.Version <= last {
		w.logger.WarnContext(ctx, "Skipping stale sync message",
			log.FieldRecordID, msg.ID,
			log.FieldVersion, msg.Version,
			"applied_version", last)
		return nil
	}

	switch msg.Op {
	case amqp.OpUpsert:
		if err := w.upsert(ctx, msg); err != nil {
			return err
		}
	case amqp.OpDelete:
		if err := w.delete(ctx, msg); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown sync op %q", msg.Op)
	}

	w.versions[msg.ID] = msg.Version
	return nil
}

func (w *SyncWorker) upsert(ctx context.Context, msg *amqp.RecordSyncMessage) error {
	tx := *msg.Transaction
	tx.ID = msg.ID
	year := tx.Date.Year()

	// A date edit across years moves the row to the other year's sheet.
	if prev, ok := w.years[msg.ID]; ok && prev != year {
		if err := w.writer.Delete(ctx, msg.ID, prev); err != nil {
			return fmt.Errorf("remove row from %d sheet: %w", prev, err)
		}
	}

	ref, err := w.writer.Upsert(ctx, tx)
	if err != nil {
		return fmt.Errorf("sync transaction to sheets: %w", err)
	}
	w.years[msg.ID] = year
	w.logger.InfoContext(ctx, "Transaction mirrored",
		log.FieldRecordID, msg.ID,
		log.FieldAmountCents, tx.Amount.Cents,
		"row_ref", ref)
	return nil
}

func (w *SyncWorker) delete(ctx context.Context, msg *amqp.RecordSyncMessage) error {
	year, ok := w.years[msg.ID]
	if msg.Transaction != nil && !msg.Transaction.Date.IsZero() {
		year, ok = msg.Transaction.Date.Year(), true
	}
	if !ok {
		year = w.now().Year()
	}
	if err := w.writer.Delete(ctx, msg.ID, year); err != nil {
		return fmt.Errorf("delete transaction from sheets: %w", err)
	}
	delete(w.years, msg.ID)
	w.logger.InfoContext(ctx, "Transaction removed from mirror", log.FieldRecordID, msg.ID, "year", year)
	return nil
}
