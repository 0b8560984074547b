// Package raffle is the prize allocation and drawing engine.  It turns
// the attended guests of an event into winners of stock-limited prizes
// and of the event-wide general draw, keeps the entry ledger and the
// append-only draw log in step, and serializes concurrent draws through
// the row locks of repository.Store.
package raffle

import (
	"time"

	"github.com/iliyamo/event-raffle/internal/repository"
)

// Options tune engine policy.
type Options struct {
	// GeneralWinners is the fixed size of the general draw.
	GeneralWinners int
	// SentinelName names the per-event prize that anchors general draw
	// log rows.  Its stock is never decremented.
	SentinelName string
	// ExclusiveWinners forbids a guest from winning two different
	// prizes of the same event.
	ExclusiveWinners bool
	// SentinelStockRepair enables the compatibility rule that refills
	// the sentinel prize to one unit when a reset leaves it with no
	// stock and no winners.
	SentinelStockRepair bool
	// MaxQuantity caps the winners of a single per-prize draw.
	MaxQuantity int
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		GeneralWinners:      15,
		SentinelName:        "Rifa General",
		SentinelStockRepair: true,
		MaxQuantity:         100,
	}
}

// Service exposes the raffle operations.  All mutating operations are
// all-or-nothing; notifications are sent after commit and their failures
// are reported next to the result instead of undoing it.
type Service struct {
	store    repository.Store
	opts     Options
	sampler  *Sampler
	notifier Notifier
	now      func() time.Time
}

// NewService wires the engine.  A nil sampler is replaced by one seeded
// from crypto/rand and a nil notifier by NopNotifier.
func NewService(store repository.Store, opts Options, sampler *Sampler, notifier Notifier) *Service {
	if sampler == nil {
		sampler = NewRandomSampler()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	def := DefaultOptions()
	if opts.GeneralWinners <= 0 {
		opts.GeneralWinners = def.GeneralWinners
	}
	if opts.SentinelName == "" {
		opts.SentinelName = def.SentinelName
	}
	if opts.MaxQuantity <= 0 {
		opts.MaxQuantity = def.MaxQuantity
	}
	return &Service{
		store:    store,
		opts:     opts,
		sampler:  sampler,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func userPtr(userID uint64) *uint64 {
	if userID == 0 {
		return nil
	}
	return &userID
}
