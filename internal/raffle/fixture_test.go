package raffle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/iliyamo/event-raffle/internal/model"
	"github.com/iliyamo/event-raffle/internal/repository/memory"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []WinnerNotice
	err     error
}

func (n *recordingNotifier) NotifyWinner(_ context.Context, w WinnerNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.notices = append(n.notices, w)
	return nil
}

type fixture struct {
	store    *memory.Store
	svc      *Service
	notifier *recordingNotifier
	event    model.Event
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	st := memory.New()
	n := &recordingNotifier{}
	return &fixture{
		store:    st,
		svc:      NewService(st, opts, NewSampler(7), n),
		notifier: n,
		event:    st.AddEvent("Gala", model.EventActive),
	}
}

// attendees seeds n guests of the fixture event that have checked in.
func (f *fixture) attendees(n int) []model.Guest {
	out := make([]model.Guest, 0, n)
	for i := 0; i < n; i++ {
		g := f.store.AddGuest(f.event.ID, fmt.Sprintf("Guest %d", i+1))
		f.store.MarkAttended(g.ID)
		out = append(out, g)
	}
	return out
}

func (f *fixture) stock(t *testing.T, prizeID uint64) int {
	t.Helper()
	p, ok := f.store.Prize(prizeID)
	if !ok {
		t.Fatalf("prize %d missing", prizeID)
	}
	return p.Stock
}

func (f *fixture) entries(t *testing.T, prizeID uint64) map[model.EntryStatus]int {
	t.Helper()
	list, err := f.svc.Entries(context.Background(), f.event.ID, prizeID)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	out := map[model.EntryStatus]int{}
	for _, e := range list {
		out[e.Status]++
	}
	return out
}

func (f *fixture) logs(t *testing.T, filter model.LogFilter) []model.RaffleLog {
	t.Helper()
	logs, err := f.svc.Logs(context.Background(), f.event.ID, filter)
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	return logs
}

func wantReason(t *testing.T, err error, reason string) {
	t.Helper()
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Reason != reason {
		t.Fatalf("expected validation error %q, got %v", reason, err)
	}
}

func wantNotFound(t *testing.T, err error, resource string) {
	t.Helper()
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Resource != resource {
		t.Fatalf("expected %s not found, got %v", resource, err)
	}
}
