package repository

import (
	"context"
	"time"

	"github.com/iliyamo/event-raffle/internal/model"
)

// Store is the persistence contract used by the raffle engine.  Every
// mutation happens inside WithinTx; the callback either returns nil and
// the unit of work is committed, or returns an error and nothing is
// applied.  Implementations must make LockPrize and LockEvent hold an
// exclusive lock until the transaction ends so that two units of work
// touching the same prize (or the same event's general pool) serialize,
// and every read issued after a lock is granted must observe the writes
// committed by the previous holder.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// Read-only projections for display.  They take no locks and may be
	// stale by the time a draw commits.
	ListEntries(ctx context.Context, eventID, prizeID uint64) ([]model.RaffleEntry, error)
	ListLogs(ctx context.Context, eventID uint64, f model.LogFilter) ([]model.RaffleLog, error)
	Ping(ctx context.Context) error
}

// Tx is the set of operations available inside a unit of work.
type Tx interface {
	// Event loads the event without locking it.
	Event(ctx context.Context, eventID uint64) (*model.Event, error)
	// LockEvent loads the event and holds its row lock.
	LockEvent(ctx context.Context, eventID uint64) (*model.Event, error)
	// LockPrize loads a prize of the event and holds its row lock.
	LockPrize(ctx context.Context, eventID, prizeID uint64) (*model.Prize, error)
	Prizes(ctx context.Context, eventID uint64) ([]model.Prize, error)
	PrizeByName(ctx context.Context, eventID uint64, name string) (*model.Prize, error)
	CreatePrize(ctx context.Context, p *model.Prize) error
	// AdjustStock adds delta to the prize stock.  It fails with
	// ErrConflict when the result would leave 0..initial_stock.
	AdjustStock(ctx context.Context, prizeID uint64, delta int) error

	Guest(ctx context.Context, eventID, guestID uint64) (*model.Guest, error)
	// AttendedGuests returns the guests of the event with an attendance
	// record, ordered by id.
	AttendedGuests(ctx context.Context, eventID uint64) ([]model.Guest, error)

	Entry(ctx context.Context, prizeID, entryID uint64) (*model.RaffleEntry, error)
	// LiveEntry returns the non-cancelled entry of a guest for a prize.
	LiveEntry(ctx context.Context, prizeID, guestID uint64) (*model.RaffleEntry, error)
	// EntriesByStatus returns the entries of a prize in the given
	// statuses ordered by id.
	EntriesByStatus(ctx context.Context, prizeID uint64, statuses ...model.EntryStatus) ([]model.RaffleEntry, error)
	// WinningGuests returns the ids of guests holding a won entry on any
	// prize of the event except excludePrizeID.
	WinningGuests(ctx context.Context, eventID, excludePrizeID uint64) (map[uint64]bool, error)
	CreateEntry(ctx context.Context, e *model.RaffleEntry) error
	CreateEntries(ctx context.Context, entries []model.RaffleEntry) error
	UpdateEntry(ctx context.Context, e *model.RaffleEntry) error
	// SetEntriesStatus moves every entry of the prize currently in one of
	// from to status to, stamping drawnAt when non-nil, and returns the
	// number of rows changed.
	SetEntriesStatus(ctx context.Context, prizeID uint64, to model.EntryStatus, drawnAt *time.Time, from ...model.EntryStatus) (int64, error)
	DeleteEntry(ctx context.Context, entryID uint64) error
	// MaxPosition returns the highest position held by a won entry of
	// the prize, 0 if none.
	MaxPosition(ctx context.Context, prizeID uint64) (int, error)
	CountEntries(ctx context.Context, prizeID uint64, status model.EntryStatus) (int, error)

	AppendLog(ctx context.Context, l *model.RaffleLog) error
	// SupersedeLog clears the confirmed flag of a log row and records
	// the row that replaced it.
	SupersedeLog(ctx context.Context, logID, replacedBy uint64) error
	ConfirmedLogs(ctx context.Context, eventID uint64, t model.RaffleType) ([]model.RaffleLog, error)
}
