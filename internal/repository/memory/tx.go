package memory

import (
	"context"
	"sort"
	"time"

	"github.com/iliyamo/event-raffle/internal/model"
	"github.com/iliyamo/event-raffle/internal/repository"
)

// tx implements repository.Tx over a working copy of the store state.
type tx struct {
	st       *state
	now      func() time.Time
	failures map[string]error
}

func (t *tx) fail(method string) error { return t.failures[method] }

func (t *tx) Event(ctx context.Context, eventID uint64) (*model.Event, error) {
	if err := t.fail("Event"); err != nil {
		return nil, err
	}
	ev, ok := t.st.events[eventID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ev, nil
}

func (t *tx) LockEvent(ctx context.Context, eventID uint64) (*model.Event, error) {
	if err := t.fail("LockEvent"); err != nil {
		return nil, err
	}
	return t.Event(ctx, eventID)
}

func (t *tx) LockPrize(ctx context.Context, eventID, prizeID uint64) (*model.Prize, error) {
	if err := t.fail("LockPrize"); err != nil {
		return nil, err
	}
	p, ok := t.st.prizes[prizeID]
	if !ok || p.EventID != eventID {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (t *tx) Prizes(ctx context.Context, eventID uint64) ([]model.Prize, error) {
	var out []model.Prize
	for _, p := range t.st.prizes {
		if p.EventID == eventID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) PrizeByName(ctx context.Context, eventID uint64, name string) (*model.Prize, error) {
	prizes, _ := t.Prizes(ctx, eventID)
	for _, p := range prizes {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (t *tx) CreatePrize(ctx context.Context, p *model.Prize) error {
	if err := t.fail("CreatePrize"); err != nil {
		return err
	}
	p.ID = t.st.id()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = t.now()
	}
	t.st.prizes[p.ID] = *p
	return nil
}

func (t *tx) AdjustStock(ctx context.Context, prizeID uint64, delta int) error {
	if err := t.fail("AdjustStock"); err != nil {
		return err
	}
	p, ok := t.st.prizes[prizeID]
	if !ok {
		return repository.ErrNotFound
	}
	next := p.Stock + delta
	if next < 0 || next > p.InitialStock {
		return repository.ErrConflict
	}
	p.Stock = next
	t.st.prizes[prizeID] = p
	return nil
}

func (t *tx) guest(g model.Guest) model.Guest {
	if at, ok := t.st.attendance[g.ID]; ok {
		g.Attended = true
		g.AttendedAt = &at
	}
	return g
}

func (t *tx) Guest(ctx context.Context, eventID, guestID uint64) (*model.Guest, error) {
	g, ok := t.st.guests[guestID]
	if !ok || g.EventID != eventID {
		return nil, repository.ErrNotFound
	}
	g = t.guest(g)
	return &g, nil
}

func (t *tx) AttendedGuests(ctx context.Context, eventID uint64) ([]model.Guest, error) {
	if err := t.fail("AttendedGuests"); err != nil {
		return nil, err
	}
	var out []model.Guest
	for _, g := range t.st.guests {
		if _, ok := t.st.attendance[g.ID]; ok && g.EventID == eventID {
			out = append(out, t.guest(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) Entry(ctx context.Context, prizeID, entryID uint64) (*model.RaffleEntry, error) {
	e, ok := t.st.entries[entryID]
	if !ok || e.PrizeID != prizeID {
		return nil, repository.ErrNotFound
	}
	e = copyEntry(e)
	return &e, nil
}

func (t *tx) LiveEntry(ctx context.Context, prizeID, guestID uint64) (*model.RaffleEntry, error) {
	for _, e := range t.st.entries {
		if e.PrizeID == prizeID && e.GuestID == guestID && e.Live() {
			e = copyEntry(e)
			return &e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (t *tx) EntriesByStatus(ctx context.Context, prizeID uint64, statuses ...model.EntryStatus) ([]model.RaffleEntry, error) {
	if err := t.fail("EntriesByStatus"); err != nil {
		return nil, err
	}
	var out []model.RaffleEntry
	for _, e := range t.st.entries {
		if e.PrizeID == prizeID && (len(statuses) == 0 || hasStatus(statuses, e.Status)) {
			out = append(out, copyEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func hasStatus(set []model.EntryStatus, s model.EntryStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func (t *tx) WinningGuests(ctx context.Context, eventID, excludePrizeID uint64) (map[uint64]bool, error) {
	out := map[uint64]bool{}
	for _, e := range t.st.entries {
		if e.EventID == eventID && e.PrizeID != excludePrizeID && e.Status == model.EntryWon {
			out[e.GuestID] = true
		}
	}
	return out, nil
}

// checkLive enforces the one-live-entry-per-(guest, prize) unique key.
func (t *tx) checkLive(e model.RaffleEntry) error {
	if !e.Live() {
		return nil
	}
	for id, other := range t.st.entries {
		if id != e.ID && other.PrizeID == e.PrizeID && other.GuestID == e.GuestID && other.Live() {
			return repository.ErrConflict
		}
	}
	return nil
}

func (t *tx) CreateEntry(ctx context.Context, e *model.RaffleEntry) error {
	if err := t.fail("CreateEntry"); err != nil {
		return err
	}
	if err := t.checkLive(*e); err != nil {
		return err
	}
	e.ID = t.st.id()
	if e.ParticipatedAt.IsZero() {
		e.ParticipatedAt = t.now()
	}
	t.st.entries[e.ID] = copyEntry(*e)
	return nil
}

func (t *tx) CreateEntries(ctx context.Context, entries []model.RaffleEntry) error {
	if err := t.fail("CreateEntries"); err != nil {
		return err
	}
	for i := range entries {
		if err := t.CreateEntry(ctx, &entries[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) UpdateEntry(ctx context.Context, e *model.RaffleEntry) error {
	if err := t.fail("UpdateEntry"); err != nil {
		return err
	}
	cur, ok := t.st.entries[e.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if err := t.checkLive(*e); err != nil {
		return err
	}
	next := copyEntry(*e)
	next.GuestName = ""
	next.ParticipatedAt = cur.ParticipatedAt
	t.st.entries[e.ID] = next
	return nil
}

func (t *tx) SetEntriesStatus(ctx context.Context, prizeID uint64, to model.EntryStatus, drawnAt *time.Time, from ...model.EntryStatus) (int64, error) {
	if err := t.fail("SetEntriesStatus"); err != nil {
		return 0, err
	}
	var n int64
	for id, e := range t.st.entries {
		if e.PrizeID != prizeID || !hasStatus(from, e.Status) {
			continue
		}
		e.Status = to
		if drawnAt != nil {
			at := *drawnAt
			e.DrawnAt = &at
		}
		t.st.entries[id] = e
		n++
	}
	return n, nil
}

func (t *tx) DeleteEntry(ctx context.Context, entryID uint64) error {
	if _, ok := t.st.entries[entryID]; !ok {
		return repository.ErrNotFound
	}
	delete(t.st.entries, entryID)
	return nil
}

func (t *tx) MaxPosition(ctx context.Context, prizeID uint64) (int, error) {
	top := 0
	for _, e := range t.st.entries {
		if e.PrizeID == prizeID && e.Status == model.EntryWon && e.Position != nil && *e.Position > top {
			top = *e.Position
		}
	}
	return top, nil
}

func (t *tx) CountEntries(ctx context.Context, prizeID uint64, status model.EntryStatus) (int, error) {
	n := 0
	for _, e := range t.st.entries {
		if e.PrizeID == prizeID && e.Status == status {
			n++
		}
	}
	return n, nil
}

func (t *tx) AppendLog(ctx context.Context, l *model.RaffleLog) error {
	if err := t.fail("AppendLog"); err != nil {
		return err
	}
	l.ID = t.st.id()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = t.now()
	}
	stored := *l
	stored.PrizeName, stored.GuestName = "", ""
	t.st.logs[l.ID] = stored
	return nil
}

func (t *tx) SupersedeLog(ctx context.Context, logID, replacedBy uint64) error {
	if err := t.fail("SupersedeLog"); err != nil {
		return err
	}
	l, ok := t.st.logs[logID]
	if !ok {
		return repository.ErrNotFound
	}
	if !l.Confirmed {
		return repository.ErrConflict
	}
	l.Confirmed = false
	l.ReplacedBy = &replacedBy
	t.st.logs[logID] = l
	return nil
}

func (t *tx) ConfirmedLogs(ctx context.Context, eventID uint64, rt model.RaffleType) ([]model.RaffleLog, error) {
	var out []model.RaffleLog
	for _, l := range t.st.logs {
		if l.EventID == eventID && l.RaffleType == rt && l.Confirmed {
			out = append(out, t.st.decorate(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
