package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/iliyamo/event-raffle/internal/model"
	"github.com/iliyamo/event-raffle/internal/repository"
)

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := New()
	ev := s.AddEvent("Gala", model.EventActive)
	p := s.AddPrize(ev.ID, "TV", 3)
	boom := errors.New("boom")

	err := s.WithinTx(context.Background(), func(tx repository.Tx) error {
		if err := tx.AdjustStock(context.Background(), p.ID, -2); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	got, _ := s.Prize(p.ID)
	if got.Stock != 3 {
		t.Fatalf("stock changed on rollback: %d", got.Stock)
	}
}

func TestAdjustStockBounds(t *testing.T) {
	s := New()
	ev := s.AddEvent("Gala", model.EventActive)
	p := s.AddPrize(ev.ID, "TV", 1)
	ctx := context.Background()

	t.Run("below zero", func(t *testing.T) {
		err := s.WithinTx(ctx, func(tx repository.Tx) error { return tx.AdjustStock(ctx, p.ID, -2) })
		if !errors.Is(err, repository.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})
	t.Run("above initial", func(t *testing.T) {
		err := s.WithinTx(ctx, func(tx repository.Tx) error { return tx.AdjustStock(ctx, p.ID, 1) })
		if !errors.Is(err, repository.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})
}

func TestOneLiveEntryPerGuestAndPrize(t *testing.T) {
	s := New()
	ev := s.AddEvent("Gala", model.EventActive)
	p := s.AddPrize(ev.ID, "TV", 1)
	g := s.AddGuest(ev.ID, "Ana")
	ctx := context.Background()

	create := func(tx repository.Tx) error {
		return tx.CreateEntry(ctx, &model.RaffleEntry{EventID: ev.ID, GuestID: g.ID, PrizeID: p.ID, Status: model.EntryPending})
	}
	if err := s.WithinTx(ctx, create); err != nil {
		t.Fatalf("first entry: %v", err)
	}
	if err := s.WithinTx(ctx, create); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate live entry, got %v", err)
	}

	// Once cancelled, a fresh entry is allowed.
	err := s.WithinTx(ctx, func(tx repository.Tx) error {
		_, err := tx.SetEntriesStatus(ctx, p.ID, model.EntryCancelled, nil, model.EntryPending)
		return err
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := s.WithinTx(ctx, create); err != nil {
		t.Fatalf("entry after cancel: %v", err)
	}
}

func TestFailOn(t *testing.T) {
	s := New()
	ev := s.AddEvent("Gala", model.EventActive)
	boom := errors.New("disk full")
	s.FailOn("AppendLog", boom)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(tx repository.Tx) error {
		return tx.AppendLog(ctx, &model.RaffleLog{EventID: ev.ID})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	s.FailOn("AppendLog", nil)
	err = s.WithinTx(ctx, func(tx repository.Tx) error {
		return tx.AppendLog(ctx, &model.RaffleLog{EventID: ev.ID})
	})
	if err != nil {
		t.Fatalf("after clearing: %v", err)
	}
}
