package raffle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/logger"

	"github.com/iliyamo/event-raffle/internal/metrics"
	"github.com/iliyamo/event-raffle/internal/model"
)

// WinnerNotice is handed to the Notifier for every selected winner.
type WinnerNotice struct {
	BatchID    string           `json:"batch_id"`
	RaffleType model.RaffleType `json:"raffle_type"`
	EventID    uint64           `json:"event_id"`
	PrizeID    uint64           `json:"prize_id"`
	PrizeName  string           `json:"prize_name"`
	EntryID    uint64           `json:"entry_id,omitempty"` // zero for general winners
	LogID      uint64           `json:"log_id"`
	GuestID    uint64           `json:"guest_id"`
	GuestName  string           `json:"guest_name"`
	GuestEmail string           `json:"guest_email,omitempty"`
	Position   int              `json:"position,omitempty"`
	DrawnAt    time.Time        `json:"drawn_at"`
}

// Notifier delivers winner notices.  It is only called after the draw
// has committed.
type Notifier interface {
	NotifyWinner(ctx context.Context, n WinnerNotice) error
}

// BatchNotifier is implemented by notifiers that can deliver every
// notice of one draw over a single connection.  The returned slice is
// parallel to notices; a nil element means delivered.
type BatchNotifier interface {
	NotifyWinners(ctx context.Context, notices []WinnerNotice) []error
}

// NopNotifier discards notices.
type NopNotifier struct{}

func (NopNotifier) NotifyWinner(context.Context, WinnerNotice) error { return nil }

// notifyTimeout bounds the whole post-commit fan-out of one operation.
const notifyTimeout = 10 * time.Second

// notifyAll sends every notice and returns one message per failure.  It
// is detached from the caller's cancellation: the draw has committed and
// a client hanging up must not drop its notices.
func (s *Service) notifyAll(ctx context.Context, notices []WinnerNotice) []string {
	if len(notices) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	results := make([]error, len(notices))
	if bn, ok := s.notifier.(BatchNotifier); ok {
		copy(results, bn.NotifyWinners(ctx, notices))
	} else {
		for i, n := range notices {
			if ctx.Err() != nil {
				results[i] = ctx.Err()
				continue
			}
			results[i] = s.notifier.NotifyWinner(ctx, n)
		}
	}

	var errs []string
	for i, err := range results {
		if err == nil {
			continue
		}
		n := notices[i]
		metrics.NotificationFailuresTotal.Inc()
		logger.Warningf("raffle: notify guest %d for prize %d (batch %s): %v", n.GuestID, n.PrizeID, n.BatchID, err)
		errs = append(errs, fmt.Sprintf("notify guest %d: %v", n.GuestID, err))
	}
	return errs
}
