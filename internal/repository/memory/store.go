// Package memory is an in-process implementation of repository.Store.
// It serializes every unit of work behind one mutex and applies a
// transaction's changes only when its callback succeeds, which gives the
// same all-or-nothing and lock-ordering guarantees the raffle engine
// relies on from MySQL.  It backs the engine and handler tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/event-raffle/internal/model"
	"github.com/iliyamo/event-raffle/internal/repository"
)

type state struct {
	events     map[uint64]model.Event
	prizes     map[uint64]model.Prize
	guests     map[uint64]model.Guest
	attendance map[uint64]time.Time
	entries    map[uint64]model.RaffleEntry
	logs       map[uint64]model.RaffleLog
	nextID     uint64
}

func newState() *state {
	return &state{
		events:     map[uint64]model.Event{},
		prizes:     map[uint64]model.Prize{},
		guests:     map[uint64]model.Guest{},
		attendance: map[uint64]time.Time{},
		entries:    map[uint64]model.RaffleEntry{},
		logs:       map[uint64]model.RaffleLog{},
	}
}

func (s *state) clone() *state {
	c := &state{
		events:     make(map[uint64]model.Event, len(s.events)),
		prizes:     make(map[uint64]model.Prize, len(s.prizes)),
		guests:     make(map[uint64]model.Guest, len(s.guests)),
		attendance: make(map[uint64]time.Time, len(s.attendance)),
		entries:    make(map[uint64]model.RaffleEntry, len(s.entries)),
		logs:       make(map[uint64]model.RaffleLog, len(s.logs)),
		nextID:     s.nextID,
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.prizes {
		c.prizes[k] = v
	}
	for k, v := range s.guests {
		c.guests[k] = v
	}
	for k, v := range s.attendance {
		c.attendance[k] = v
	}
	for k, v := range s.entries {
		c.entries[k] = copyEntry(v)
	}
	for k, v := range s.logs {
		c.logs[k] = v
	}
	return c
}

func (s *state) id() uint64 {
	s.nextID++
	return s.nextID
}

// Store is a mutex-guarded in-memory repository.Store.
type Store struct {
	mu       sync.Mutex
	st       *state
	now      func() time.Time
	failures map[string]error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		st:       newState(),
		now:      func() time.Time { return time.Now().UTC() },
		failures: map[string]error{},
	}
}

// FailOn makes every later call of the named Tx method (e.g. "AppendLog")
// return err.  Passing a nil error clears the failure.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

// WithinTx runs fn against a private copy of the data and publishes the
// copy only when fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(&tx{st: work, now: s.now, failures: s.failures}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// ListEntries mirrors the MySQL listing: winners by position, then the rest by id.
func (s *Store) ListEntries(ctx context.Context, eventID, prizeID uint64) ([]model.RaffleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.RaffleEntry
	for _, e := range s.st.entries {
		if e.EventID == eventID && e.PrizeID == prizeID {
			e = copyEntry(e)
			e.GuestName = s.st.guests[e.GuestID].FullName
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Position == nil) != (b.Position == nil) {
			return a.Position != nil
		}
		if a.Position != nil && *a.Position != *b.Position {
			return *a.Position < *b.Position
		}
		return a.ID < b.ID
	})
	return out, nil
}

// ListLogs returns the filtered log of an event, newest first.
func (s *Store) ListLogs(ctx context.Context, eventID uint64, f model.LogFilter) ([]model.RaffleLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.RaffleLog
	for _, l := range s.st.logs {
		if l.EventID != eventID {
			continue
		}
		if f.RaffleType != "" && l.RaffleType != f.RaffleType {
			continue
		}
		if f.PrizeID != 0 && l.PrizeID != f.PrizeID {
			continue
		}
		if f.GuestID != 0 && l.GuestID != f.GuestID {
			continue
		}
		if f.Confirmed != nil && l.Confirmed != *f.Confirmed {
			continue
		}
		out = append(out, s.st.decorate(l))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *state) decorate(l model.RaffleLog) model.RaffleLog {
	l.PrizeName = s.prizes[l.PrizeID].Name
	l.GuestName = s.guests[l.GuestID].FullName
	return l
}

// AddEvent seeds an event.
func (s *Store) AddEvent(name, status string) model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := model.Event{ID: s.st.id(), Name: name, Status: status, CreatedAt: s.now()}
	s.st.events[ev.ID] = ev
	return ev
}

// AddPrize seeds an active prize whose stock equals its initial stock.
func (s *Store) AddPrize(eventID uint64, name string, stock int) model.Prize {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := model.Prize{ID: s.st.id(), EventID: eventID, Name: name, Stock: stock, InitialStock: stock, Active: true, CreatedAt: s.now()}
	s.st.prizes[p.ID] = p
	return p
}

// UpdatePrize overwrites a seeded prize, e.g. to deactivate it.
func (s *Store) UpdatePrize(p model.Prize) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.prizes[p.ID] = p
}

// AddGuest seeds a guest of the event.
func (s *Store) AddGuest(eventID uint64, fullName string) model.Guest {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := model.Guest{ID: s.st.id(), EventID: eventID, FullName: fullName}
	s.st.guests[g.ID] = g
	return g
}

// MarkAttended records an attendance scan for the guest.
func (s *Store) MarkAttended(guestID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.attendance[guestID]; !ok {
		s.st.attendance[guestID] = s.now()
	}
}

// Prize returns the committed state of a prize.
func (s *Store) Prize(id uint64) (model.Prize, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.prizes[id]
	return p, ok
}

func copyEntry(e model.RaffleEntry) model.RaffleEntry {
	if e.Position != nil {
		p := *e.Position
		e.Position = &p
	}
	if e.DrawnAt != nil {
		t := *e.DrawnAt
		e.DrawnAt = &t
	}
	if e.Metadata != nil {
		m := make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			m[k] = v
		}
		e.Metadata = m
	}
	return e
}

var _ repository.Store = (*Store)(nil)
