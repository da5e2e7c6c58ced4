package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"lifedash/internal/amqp"
	"lifedash/internal/core"
	"lifedash/internal/log"
	"lifedash/internal/sheets/memory"
)

func coffee(id string, year int) core.Transaction {
	return core.Transaction{
		ID:       id,
		Name:     "Coffee",
		Amount:   core.Money{Cents: -250},
		Category: "Food",
		Date:     core.NewDate(year, 11, 2),
	}
}

func TestSyncWorker_UpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	mirror := memory.New()
	w := NewSyncWorker(mirror, log.Discard())

	if err := w.HandleSyncMessage(ctx, amqp.NewTransactionUpsert(coffee("tx-1", 2025), 1)); err != nil {
		t.Fatalf("upsert error = %v", err)
	}
	got, _ := mirror.ListTransactions(ctx, 2025, 11)
	if len(got) != 1 || got[0].ID != "tx-1" {
		t.Fatalf("mirror after upsert = %+v", got)
	}

	if err := w.HandleSyncMessage(ctx, amqp.NewTransactionDelete(coffee("tx-1", 2025), 2)); err != nil {
		t.Fatalf("delete error = %v", err)
	}
	if mirror.Len() != 0 {
		t.Fatalf("mirror after delete has %d rows", mirror.Len())
	}
}

func TestSyncWorker_SkipsStaleVersions(t *testing.T) {
	ctx := context.Background()
	mirror := memory.New()
	w := NewSyncWorker(mirror, log.Discard())

	newer := coffee("tx-1", 2025)
	newer.Amount = core.Money{Cents: -400}
	if err := w.HandleSyncMessage(ctx, amqp.NewTransactionUpsert(newer, 5)); err != nil {
		t.Fatal(err)
	}
	// Redelivered older edit must not overwrite the newer one.
	if err := w.HandleSyncMessage(ctx, amqp.NewTransactionUpsert(coffee("tx-1", 2025), 3)); err != nil {
		t.Fatal(err)
	}
	got, _ := mirror.ListTransactions(ctx, 2025, 11)
	if len(got) != 1 || got[0].Amount.Cents != -400 {
		t.Fatalf("mirror = %+v, want amount -400", got)
	}
}

func TestSyncWorker_MovesRowAcrossYears(t *testing.T) {
	ctx := context.Background()
	mirror := memory.New()
	w := NewSyncWorker(mirror, log.Discard())

	if err := w.HandleSyncMessage(ctx, amqp.NewTransactionUpsert(coffee("tx-1", 2024), 1)); err != nil {
		t.Fatal(err)
	}
	if err := w.HandleSyncMessage(ctx, amqp.NewTransactionUpsert(coffee("tx-1", 2025), 2)); err != nil {
		t.Fatal(err)
	}
	if old, _ := mirror.ListTransactions(ctx, 2024, 11); len(old) != 0 {
		t.Errorf("2024 sheet still has %+v", old)
	}
	if cur, _ := mirror.ListTransactions(ctx, 2025, 11); len(cur) != 1 {
		t.Errorf("2025 sheet = %+v", cur)
	}
}

func TestSyncWorker_DeleteWithoutDateUsesKnownYear(t *testing.T) {
	ctx := context.Background()
	mirror := memory.New()
	w := NewSyncWorker(mirror, log.Discard())
	w.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	if err := w.HandleSyncMessage(ctx, amqp.NewTransactionUpsert(coffee("tx-1", 2025), 1)); err != nil {
		t.Fatal(err)
	}
	if err := w.HandleSyncMessage(ctx, amqp.NewTransactionDelete(core.Transaction{ID: "tx-1"}, 2)); err != nil {
		t.Fatal(err)
	}
	if mirror.Len() != 0 {
		t.Fatalf("mirror has %d rows, want 0", mirror.Len())
	}
}

type failingWriter struct{ err error }

func (f failingWriter) Upsert(context.Context, core.Transaction) (string, error) { return "", f.err }
func (f failingWriter) Delete(context.Context, string, int) error               { return f.err }

func TestSyncWorker_WriterErrorIsReturned(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("quota exceeded")
	w := NewSyncWorker(failingWriter{err: boom}, log.Discard())

	err := w.HandleSyncMessage(ctx, amqp.NewTransactionUpsert(coffee("tx-1", 2025), 1))
	if !errors.Is(err, boom) {
		t.Fatalf("HandleSyncMessage() error = %v, want %v", err, boom)
	}
	// A failed message is not recorded, so the requeued copy is applied.
	w.writer = memory.New()
	if err := w.HandleSyncMessage(ctx, amqp.NewTransactionUpsert(coffee("tx-1", 2025), 1)); err != nil {
		t.Fatalf("retry error = %v", err)
	}
}
