package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"lifedash/internal/core"
	"lifedash/internal/notify"
)

// Sync operations carried by RecordSyncMessage.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// RecordSyncMessage mirrors one committed transaction change to the remote
// copy. It carries the record itself because the worker has no access to
// the dashboard's store.
type RecordSyncMessage struct {
	Op          string            `json:"op"`
	Collection  string            `json:"collection"`
	ID          string            `json:"id"`
	Version     uint64            `json:"version"`
	Transaction *core.Transaction `json:"transaction,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// NewTransactionUpsert creates a sync message for a created or edited transaction.
func NewTransactionUpsert(tx core.Transaction, version uint64) *RecordSyncMessage {
	return &RecordSyncMessage{
		Op:          OpUpsert,
		Collection:  "transactions",
		ID:          tx.ID,
		Version:     version,
		Transaction: &tx,
		Timestamp:   time.Now(),
	}
}

// NewTransactionDelete creates a sync message for a removed transaction. The
// removed record travels along so the mirror can find the row by date.
func NewTransactionDelete(tx core.Transaction, version uint64) *RecordSyncMessage {
	return &RecordSyncMessage{
		Op:          OpDelete,
		Collection:  "transactions",
		ID:          tx.ID,
		Version:     version,
		Transaction: &tx,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordSyncMessageFromJSON decodes and sanity-checks a sync message.
func RecordSyncMessageFromJSON(data []byte) (*RecordSyncMessage, error) {
	var msg RecordSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errors.New("sync message without id")
	}
	switch msg.Op {
	case OpUpsert:
		if msg.Transaction == nil {
			return nil, errors.New("upsert message without transaction")
		}
	case OpDelete:
	default:
		return nil, errors.New("unknown sync op " + msg.Op)
	}
	return &msg, nil
}

// NotificationMessage is the broker form of a fired notification.
type NotificationMessage struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	RecordID    string    `json:"record_id,omitempty"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	At          time.Time `json:"at"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewNotificationMessage(n notify.Notification) *NotificationMessage {
	return &NotificationMessage{
		ID:          n.ID,
		Kind:        string(n.Kind),
		RecordID:    n.RecordID,
		Title:       n.Title,
		Message:     n.Message,
		AmountCents: n.Amount.Cents,
		At:          n.At,
		Timestamp:   time.Now(),
	}
}

func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
