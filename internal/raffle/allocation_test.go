package raffle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/iliyamo/event-raffle/internal/model"
	"github.com/iliyamo/event-raffle/internal/repository/memory"
)

func TestDraw_SingleUnitPrize(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()
	f.attendees(3)
	prize := f.store.AddPrize(f.event.ID, "TV", 1)

	created, err := f.svc.CreateEntries(ctx, f.event.ID, prize.ID, 9)
	if err != nil {
		t.Fatalf("CreateEntries: %v", err)
	}
	if created.Created != 3 {
		t.Fatalf("expected 3 entries, got %+v", created)
	}

	t.Run("first draw awards the only unit", func(t *testing.T) {
		res, err := f.svc.Draw(ctx, DrawRequest{EventID: f.event.ID, PrizeID: prize.ID, Quantity: 1, UserID: 9})
		if err != nil {
			t.Fatalf("Draw: %v", err)
		}
		if len(res.Winners) != 1 {
			t.Fatalf("expected 1 winner, got %d", len(res.Winners))
		}
		w := res.Winners[0]
		if w.Status != model.EntryWon || w.Position == nil || *w.Position != 1 || w.DrawnAt == nil {
			t.Errorf("winner not stamped: %+v", w)
		}
		if got := f.stock(t, prize.ID); got != 0 {
			t.Errorf("expected stock 0, got %d", got)
		}
		logs := f.logs(t, model.LogFilter{PrizeID: prize.ID})
		if len(logs) != 1 || !logs[0].Confirmed || logs[0].RaffleType != model.RafflePublic {
			t.Fatalf("expected one confirmed public log row, got %+v", logs)
		}
		if logs[0].UserID == nil || *logs[0].UserID != 9 || logs[0].BatchID != res.BatchID {
			t.Errorf("log row missing operator or batch: %+v", logs[0])
		}
	})

	t.Run("second draw fails on stock", func(t *testing.T) {
		_, err := f.svc.Draw(ctx, DrawRequest{EventID: f.event.ID, PrizeID: prize.ID, Quantity: 1})
		wantReason(t, err, ReasonInsufficientStock)
		if n := len(f.logs(t, model.LogFilter{PrizeID: prize.ID})); n != 1 {
			t.Errorf("expected log untouched, got %d rows", n)
		}
		if got := f.entries(t, prize.ID); got[model.EntryWon] != 1 || got[model.EntryPending] != 2 {
			t.Errorf("entries changed: %v", got)
		}
	})
}

func TestDraw_StockArithmeticAndPositions(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()
	f.attendees(10)
	prize := f.store.AddPrize(f.event.ID, "Mug", 5)
	if _, err := f.svc.CreateEntries(ctx, f.event.ID, prize.ID, 0); err != nil {
		t.Fatalf("CreateEntries: %v", err)
	}

	first, err := f.svc.Draw(ctx, DrawRequest{EventID: f.event.ID, PrizeID: prize.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if first.RemainingStock != 3 || f.stock(t, prize.ID) != 3 {
		t.Fatalf("expected stock 3, got %d", f.stock(t, prize.ID))
	}
	second, err := f.svc.Draw(ctx, DrawRequest{EventID: f.event.ID, PrizeID: prize.ID, Quantity: 3})
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if f.stock(t, prize.ID) != 0 {
		t.Fatalf("expected stock 0, got %d", f.stock(t, prize.ID))
	}

	guests := map[uint64]bool{}
	var positions []int
	for _, w := range append(first.Winners, second.Winners...) {
		if guests[w.GuestID] {
			t.Fatalf("guest %d won twice", w.GuestID)
		}
		guests[w.GuestID] = true
		positions = append(positions, *w.Position)
	}
	for i, p := range positions {
		if p != i+1 {
			t.Fatalf("expected positions 1..5 in draw order, got %v", positions)
		}
	}
}

func TestDraw_Validation(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()
	f.attendees(3)
	prize := f.store.AddPrize(f.event.ID, "Bike", 3)

	t.Run("empty pool", func(t *testing.T) {
		_, err := f.svc.Draw(ctx, DrawRequest{EventID: f.event.ID, PrizeID: prize.ID, Quantity: 1})
		wantReason(t, err, ReasonInsufficientPool)
		if f.stock(t, prize.ID) != 3 {
			t.Errorf("stock changed")
		}
	})

	if _, err := f.svc.CreateEntries(ctx, f.event.ID, prize.ID, 0); err != nil {
		t.Fatalf("CreateEntries: %v", err)
	}

	t.Run("quantity out of range", func(t *testing.T) {
		for _, q := range []int{0, -1, 101} {
			_, err := f.svc.Draw(ctx, DrawRequest{EventID: f.event.ID, PrizeID: prize.ID, Quantity: q})
			wantReason(t, err, ReasonQuantityRange)
		}
	})

	t.Run("quantity above stock", func(t *testing.T) {
		_, err := f.svc.Draw(ctx, DrawRequest{EventID: f.event.ID, PrizeID: prize.ID, Quantity: 4})
		wantReason(t, err, ReasonInsufficientStock)
	})

	t.Run("inactive prize", func(t *testing.T) {
		p := f.store.AddPrize(f.event.ID, "Old", 1)
		p.Active = false
		f.store.UpdatePrize(p)
		_, err := f.svc.Draw(ctx, DrawRequest{EventID: f.event.ID, PrizeID: p.ID, Quantity: 1})
		wantReason(t, err, ReasonPrizeInactive)
	})

	t.Run("inactive event", func(t *testing.T) {
		ev := f.store.AddEvent("Past", model.EventFinished)
		p := f.store.AddPrize(ev.ID, "Hat", 1)
		_, err := f.svc.Draw(ctx, DrawRequest{EventID: ev.ID, PrizeID: p.ID, Quantity: 1})
		wantReason(t, err, ReasonEventInactive)
	})

	t.Run("prize of another event", func(t *testing.T) {
		other := f.store.AddEvent("Other", model.EventActive)
		_, err := f.svc.Draw(ctx, DrawRequest{EventID: other.ID, PrizeID: prize.ID, Quantity: 1})
		wantNotFound(t, err, "prize")
	})

	t.Run("unknown event", func(t *testing.T) {
		_, err := f.svc.Draw(ctx, DrawRequest{EventID: 9999, PrizeID: prize.ID, Quantity: 1})
		wantNotFound(t, err, "event")
	})

	if got := f.entries(t, prize.ID); got[model.EntryPending] != 3 || len(got) != 1 {
		t.Errorf("rejected draws mutated entries: %v", got)
	}
}

func TestDraw_OnlyAttendedGuestsAreEntered(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()
	f.attendees(2)
	f.store.AddGuest(f.event.ID, "No show")
	prize := f.store.AddPrize(f.event.ID, "Pen", 3)

	res, err := f.svc.CreateEntries(ctx, f.event.ID, prize.ID, 0)
	if err != nil {
		t.Fatalf("CreateEntries: %v", err)
	}
	if res.Created != 2 || res.TotalEligible != 2 {
		t.Fatalf("expected 2 entries, got %+v", res)
	}
	_, err = f.svc.Draw(ctx, DrawRequest{EventID: f.event.ID, PrizeID: prize.ID, Quantity: 3})
	wantReason(t, err, ReasonInsufficientPool)
}

func TestDraw_MarkLosers(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()
	f.attendees(4)
	prize := f.store.AddPrize(f.event.ID, "Watch", 1)
	if _, err := f.svc.CreateEntries(ctx, f.event.ID, prize.ID, 0); err != nil {
		t.Fatalf("CreateEntries: %v", err)
	}

	res, err := f.svc.Draw(ctx, DrawRequest{EventID: f.event.ID, PrizeID: prize.ID, Quantity: 1, MarkLosers: true})
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if res.Lost != 3 {
		t.Errorf("expected 3 losers, got %d", res.Lost)
	}
	got := f.entries(t, prize.ID)
	if got[model.EntryWon] != 1 || got[model.EntryLost] != 3 || got[model.EntryPending] != 0 {
		t.Errorf("unexpected entry states: %v", got)
	}
}

func TestDraw_Notifications(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()
	f.attendees(5)
	prize := f.store.AddPrize(f.event.ID, "Speaker", 4)
	if _, err := f.svc.CreateEntries(ctx, f.event.ID, prize.ID, 0); err != nil {
		t.Fatalf("CreateEntries: %v", err)
	}

	t.Run("one notice per winner", func(t *testing.T) {
		res, err := f.svc.Draw(ctx, DrawRequest{EventID: f.event.ID, PrizeID: prize.ID, Quantity: 2, Notify: true})
		if err != nil {
			t.Fatalf("Draw: %v", err)
		}
		if len(f.notifier.notices) != 2 || len(res.Errors) != 0 {
			t.Fatalf("expected 2 notices, got %d (errors %v)", len(f.notifier.notices), res.Errors)
		}
		n := f.notifier.notices[0]
		if n.BatchID != res.BatchID || n.PrizeName != "Speaker" || n.RaffleType != model.RafflePublic {
			t.Errorf("unexpected notice: %+v", n)
		}
	})

	t.Run("notification failure keeps the draw", func(t *testing.T) {
		f.notifier.err = errors.New("broker down")
		res, err := f.svc.Draw(ctx, DrawRequest{EventID: f.event.ID, PrizeID: prize.ID, Quantity: 1, Notify: true})
		if err != nil {
			t.Fatalf("Draw: %v", err)
		}
		if len(res.Errors) != 1 {
			t.Errorf("expected 1 notification error, got %v", res.Errors)
		}
		if f.stock(t, prize.ID) != 1 {
			t.Errorf("expected stock 1, got %d", f.stock(t, prize.ID))
		}
	})
}

type batchNotifier struct {
	calls   int
	notices []WinnerNotice
	fail    map[int]error
	ctxErr  error
}

func (b *batchNotifier) NotifyWinner(context.Context, WinnerNotice) error {
	return errors.New("single notices are not expected")
}

func (b *batchNotifier) NotifyWinners(ctx context.Context, notices []WinnerNotice) []error {
	b.calls++
	b.ctxErr = ctx.Err()
	b.notices = append(b.notices, notices...)
	errs := make([]error, len(notices))
	for i := range notices {
		errs[i] = b.fail[i]
	}
	return errs
}

func TestDraw_BatchNotifications(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	ev := st.AddEvent("Gala", model.EventActive)
	for i := 0; i < 15; i++ {
		g := st.AddGuest(ev.ID, fmt.Sprintf("Guest %d", i+1))
		st.MarkAttended(g.ID)
	}
	prize := st.AddPrize(ev.ID, "Mug", 15)
	bn := &batchNotifier{fail: map[int]error{3: errors.New("channel closed")}}
	svc := NewService(st, DefaultOptions(), NewSampler(3), bn)
	if _, err := svc.CreateEntries(ctx, ev.ID, prize.ID, 0); err != nil {
		t.Fatalf("CreateEntries: %v", err)
	}

	t.Run("whole draw in one call", func(t *testing.T) {
		res, err := svc.Draw(ctx, DrawRequest{EventID: ev.ID, PrizeID: prize.ID, Quantity: 15, Notify: true})
		if err != nil {
			t.Fatalf("Draw: %v", err)
		}
		if bn.calls != 1 || len(bn.notices) != 15 {
			t.Fatalf("expected 15 notices in 1 call, got %d in %d", len(bn.notices), bn.calls)
		}
		if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "channel closed") {
			t.Errorf("expected the one failed notice to be reported, got %v", res.Errors)
		}
	})

	t.Run("detached from caller cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		svc.notifyAll(cctx, bn.notices[:2])
		if bn.calls != 2 {
			t.Fatalf("expected a second batch call, got %d", bn.calls)
		}
		if bn.ctxErr != nil {
			t.Errorf("notifier saw a cancelled context: %v", bn.ctxErr)
		}
	})
}

func TestDraw_AllOrNothing(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()
	f.attendees(4)
	prize := f.store.AddPrize(f.event.ID, "Laptop", 2)
	if _, err := f.svc.CreateEntries(ctx, f.event.ID, prize.ID, 0); err != nil {
		t.Fatalf("CreateEntries: %v", err)
	}

	f.store.FailOn("AdjustStock", errors.New("lost connection"))
	if _, err := f.svc.Draw(ctx, DrawRequest{EventID: f.event.ID, PrizeID: prize.ID, Quantity: 2}); err == nil {
		t.Fatal("expected draw to fail")
	}
	f.store.FailOn("AdjustStock", nil)

	if got := f.entries(t, prize.ID); got[model.EntryPending] != 4 {
		t.Errorf("winners leaked from failed draw: %v", got)
	}
	if n := len(f.logs(t, model.LogFilter{})); n != 0 {
		t.Errorf("log rows leaked from failed draw: %d", n)
	}
	if f.stock(t, prize.ID) != 2 {
		t.Errorf("stock changed by failed draw")
	}
}

func TestDraw_ConcurrentRequestsNeverOverAllocate(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()
	f.attendees(20)
	prize := f.store.AddPrize(f.event.ID, "Console", 5)
	if _, err := f.svc.CreateEntries(ctx, f.event.ID, prize.ID, 0); err != nil {
		t.Fatalf("CreateEntries: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Draw(ctx, DrawRequest{EventID: f.event.ID, PrizeID: prize.ID, Quantity: 5})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		wantReason(t, err, ReasonInsufficientStock)
	}
	if ok != 1 {
		t.Fatalf("expected exactly one successful draw, got %d", ok)
	}
	if got := f.entries(t, prize.ID); got[model.EntryWon] != 5 {
		t.Errorf("expected 5 winners, got %d", got[model.EntryWon])
	}
	if f.stock(t, prize.ID) != 0 {
		t.Errorf("expected stock 0, got %d", f.stock(t, prize.ID))
	}
}

func TestDraw_SentinelStockUntouched(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()
	f.attendees(3)
	prize := f.store.AddPrize(f.event.ID, DefaultOptions().SentinelName, 2)
	if _, err := f.svc.CreateEntries(ctx, f.event.ID, prize.ID, 0); err != nil {
		t.Fatalf("CreateEntries: %v", err)
	}
	if _, err := f.svc.Draw(ctx, DrawRequest{EventID: f.event.ID, PrizeID: prize.ID, Quantity: 2}); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if f.stock(t, prize.ID) != 2 {
		t.Errorf("sentinel stock changed to %d", f.stock(t, prize.ID))
	}
}

func TestDraw_ExclusiveWinners(t *testing.T) {
	opts := DefaultOptions()
	opts.ExclusiveWinners = true
	f := newFixture(t, opts)
	ctx := context.Background()
	guests := f.attendees(2)
	first := f.store.AddPrize(f.event.ID, "First", 1)
	second := f.store.AddPrize(f.event.ID, "Second", 2)

	if _, err := f.svc.SelectManual(ctx, SelectRequest{EventID: f.event.ID, PrizeID: first.ID, GuestID: guests[0].ID}); err != nil {
		t.Fatalf("SelectManual: %v", err)
	}
	res, err := f.svc.CreateEntries(ctx, f.event.ID, second.ID, 0)
	if err != nil {
		t.Fatalf("CreateEntries: %v", err)
	}
	if res.Created != 1 {
		t.Errorf("expected only the non-winner to be entered, got %+v", res)
	}
	_, err = f.svc.SelectManual(ctx, SelectRequest{EventID: f.event.ID, PrizeID: second.ID, GuestID: guests[0].ID})
	wantReason(t, err, ReasonWinnerElsewhere)
}

func TestCancel(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()
	f.attendees(5)
	prize := f.store.AddPrize(f.event.ID, "Trip", 5)
	if _, err := f.svc.CreateEntries(ctx, f.event.ID, prize.ID, 0); err != nil {
		t.Fatalf("CreateEntries: %v", err)
	}
	if _, err := f.svc.Draw(ctx, DrawRequest{EventID: f.event.ID, PrizeID: prize.ID, Quantity: 2}); err != nil {
		t.Fatalf("Draw: %v", err)
	}

	n, err := f.svc.Cancel(ctx, f.event.ID, prize.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 cancelled entries, got %d", n)
	}
	if f.stock(t, prize.ID) != 3 {
		t.Errorf("cancel touched stock: %d", f.stock(t, prize.ID))
	}

	t.Run("idempotent", func(t *testing.T) {
		n, err := f.svc.Cancel(ctx, f.event.ID, prize.ID)
		if err != nil || n != 0 {
			t.Fatalf("expected 0 affected, got %d, %v", n, err)
		}
	})

	t.Run("fresh entry set after cancel", func(t *testing.T) {
		res, err := f.svc.CreateEntries(ctx, f.event.ID, prize.ID, 0)
		if err != nil {
			t.Fatalf("CreateEntries: %v", err)
		}
		if res.Created != 5 || res.AlreadyEntered != 0 {
			t.Fatalf("expected 5 fresh entries, got %+v", res)
		}
		got := f.entries(t, prize.ID)
		if got[model.EntryCancelled] != 5 || got[model.EntryPending] != 5 || got[model.EntryWon] != 0 {
			t.Errorf("cancelled rows resurrected: %v", got)
		}
	})

	t.Run("positions restart after cancel", func(t *testing.T) {
		res, err := f.svc.Draw(ctx, DrawRequest{EventID: f.event.ID, PrizeID: prize.ID, Quantity: 2})
		if err != nil {
			t.Fatalf("Draw: %v", err)
		}
		for i, w := range res.Winners {
			if w.Position == nil || *w.Position != i+1 {
				t.Errorf("winner %d has position %v, want %d", i, w.Position, i+1)
			}
		}
	})
}

func TestSelectManual(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()
	guests := f.attendees(3)
	absent := f.store.AddGuest(f.event.ID, "Absent")
	prize := f.store.AddPrize(f.event.ID, "Camera", 2)

	t.Run("guest must have attended", func(t *testing.T) {
		_, err := f.svc.SelectManual(ctx, SelectRequest{EventID: f.event.ID, PrizeID: prize.ID, GuestID: absent.ID})
		wantReason(t, err, ReasonNotAttended)
	})

	t.Run("guest of another event", func(t *testing.T) {
		other := f.store.AddEvent("Other", model.EventActive)
		stranger := f.store.AddGuest(other.ID, "Stranger")
		f.store.MarkAttended(stranger.ID)
		_, err := f.svc.SelectManual(ctx, SelectRequest{EventID: f.event.ID, PrizeID: prize.ID, GuestID: stranger.ID})
		wantNotFound(t, err, "guest")
	})

	t.Run("creates an entry and awards a unit", func(t *testing.T) {
		res, err := f.svc.SelectManual(ctx, SelectRequest{EventID: f.event.ID, PrizeID: prize.ID, GuestID: guests[0].ID, Notify: true, UserID: 4})
		if err != nil {
			t.Fatalf("SelectManual: %v", err)
		}
		if res.Entry.Status != model.EntryWon || *res.Entry.Position != 1 || res.RemainingStock != 1 {
			t.Errorf("unexpected result: %+v", res)
		}
		if res.Entry.Metadata["manual"] != true {
			t.Errorf("manual flag missing from metadata: %v", res.Entry.Metadata)
		}
		if len(f.notifier.notices) != 1 {
			t.Errorf("expected 1 notice, got %d", len(f.notifier.notices))
		}
	})

	t.Run("same guest twice", func(t *testing.T) {
		_, err := f.svc.SelectManual(ctx, SelectRequest{EventID: f.event.ID, PrizeID: prize.ID, GuestID: guests[0].ID})
		wantReason(t, err, ReasonAlreadyWon)
	})

	t.Run("lost entry is reopened", func(t *testing.T) {
		if _, err := f.svc.CreateEntries(ctx, f.event.ID, prize.ID, 0); err != nil {
			t.Fatalf("CreateEntries: %v", err)
		}
		if _, err := f.svc.Draw(ctx, DrawRequest{EventID: f.event.ID, PrizeID: prize.ID, Quantity: 1, MarkLosers: true}); err != nil {
			t.Fatalf("Draw: %v", err)
		}
		// stock is now 0; give one unit back to select the loser
		p, _ := f.store.Prize(prize.ID)
		p.InitialStock, p.Stock = 3, 1
		f.store.UpdatePrize(p)

		var loser uint64
		list, _ := f.svc.Entries(ctx, f.event.ID, prize.ID)
		for _, e := range list {
			if e.Status == model.EntryLost {
				loser = e.GuestID
			}
		}
		res, err := f.svc.SelectManual(ctx, SelectRequest{EventID: f.event.ID, PrizeID: prize.ID, GuestID: loser})
		if err != nil {
			t.Fatalf("SelectManual: %v", err)
		}
		if res.Entry.Status != model.EntryWon || *res.Entry.Position != 3 {
			t.Errorf("unexpected entry: %+v", res.Entry)
		}
		if got := f.entries(t, prize.ID); got[model.EntryWon] != 3 || got[model.EntryLost] != 0 {
			t.Errorf("unexpected states: %v", got)
		}
	})

	t.Run("no stock left", func(t *testing.T) {
		_, err := f.svc.SelectManual(ctx, SelectRequest{EventID: f.event.ID, PrizeID: prize.ID, GuestID: absent.ID})
		wantReason(t, err, ReasonInsufficientStock)
	})
}
