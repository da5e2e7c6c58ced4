package services

import (
	"context"
	"fmt"

	"lifedash/internal/amqp"
	"lifedash/internal/core"
	"lifedash/internal/log"
	"lifedash/internal/records"
)

// SyncPublisher sends transaction changes to the remote mirror.
type SyncPublisher interface {
	PublishRecordSync(ctx context.Context, msg *amqp.RecordSyncMessage) error
}

// TransactionService orchestrates transaction changes across the record
// store and the sync queue. The store is authoritative; publishing is best effort.
type TransactionService struct {
	store     *records.Store
	publisher SyncPublisher
	logger    *log.Logger
}

// NewTransactionService wires the store with an optional publisher (nil disables sync).
func NewTransactionService(store *records.Store, publisher SyncPublisher, logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.Default(log.ComponentRecords)
	}
	return &TransactionService{store: store, publisher: publisher, logger: logger}
}

// Create saves a transaction and publishes a sync message.
func (s *TransactionService) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	saved, version, err := s.store.Transactions.AddVersioned(ctx, tx)
	if err != nil {
		return saved, fmt.Errorf("save transaction: %w", err)
	}
	s.publish(ctx, amqp.NewTransactionUpsert(saved, version))
	return saved, nil
}

// Update replaces a transaction and publishes a sync message.
func (s *TransactionService) Update(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	saved, version, err := s.store.Transactions.UpdateVersioned(ctx, tx)
	if err != nil {
		return saved, fmt.Errorf("update transaction: %w", err)
	}
	s.publish(ctx, amqp.NewTransactionUpsert(saved, version))
	return saved, nil
}

// Delete removes a transaction and publishes a delete message.
func (s *TransactionService) Delete(ctx context.Context, id string) error {
	removed, version, err := s.store.Transactions.DeleteVersioned(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.publish(ctx, amqp.NewTransactionDelete(removed, version))
	return nil
}

func (s *TransactionService) publish(ctx context.Context, msg *amqp.RecordSyncMessage) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping sync message", log.FieldRecordID, msg.ID)
		return
	}
	if err := s.publisher.PublishRecordSync(ctx, msg); err != nil {
		// The change is committed locally; the mirror catches up on the next edit.
		fields := log.NewFields().
			WithRecord(msg.Collection, msg.ID, msg.Version).
			WithOperation(log.OpSync).
			WithError(err)
		if msg.Transaction != nil {
			fields = fields.WithTransaction(msg.Transaction.Amount.Cents, msg.Transaction.Category)
		}
		s.logger.ErrorContext(ctx, "Failed to publish "+msg.Op+" sync message", fields.ToSlice()...)
	}
}
