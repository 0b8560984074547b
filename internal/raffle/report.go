package raffle

import (
	"context"
	"fmt"

	"github.com/google/logger"

	"github.com/iliyamo/event-raffle/internal/metrics"
	"github.com/iliyamo/event-raffle/internal/model"
	"github.com/iliyamo/event-raffle/internal/repository"
)

// PrizeStats counts the entries of one prize by status.
type PrizeStats struct {
	Prize     model.Prize `json:"prize"`
	Sentinel  bool        `json:"sentinel"`
	Pending   int         `json:"pending"`
	Won       int         `json:"won"`
	Lost      int         `json:"lost"`
	Cancelled int         `json:"cancelled"`
}

// Stats is an overview of an event's raffles.  It is a display read and
// may be stale by the time it is shown.
type Stats struct {
	EventID        uint64       `json:"event_id"`
	AttendedGuests int          `json:"attended_guests"`
	GeneralWinners int          `json:"general_winners"`
	TotalStock     int          `json:"total_stock"`
	InitialStock   int          `json:"initial_stock"`
	Awarded        int          `json:"awarded"`
	Prizes         []PrizeStats `json:"prizes"`
}

// StockReport is the consistency check of one prize.  Expected is the
// stock implied by initial stock minus standing winners; Withheld counts
// units neither in stock nor held by a winner, which is what a reset
// leaves behind.
type StockReport struct {
	PrizeID      uint64 `json:"prize_id"`
	Name         string `json:"name"`
	Sentinel     bool   `json:"sentinel"`
	Stock        int    `json:"stock"`
	InitialStock int    `json:"initial_stock"`
	Winners      int    `json:"winners"`
	Expected     int    `json:"expected"`
	Withheld     int    `json:"withheld"`
	Consistent   bool   `json:"consistent"`
}

// StockCheck is the result of CheckStock.
type StockCheck struct {
	Prizes   []StockReport          `json:"prizes"`
	Warnings []InconsistencyWarning `json:"warnings,omitempty"`
}

// Stats summarizes entries, stock and winners of an event.
func (s *Service) Stats(ctx context.Context, eventID uint64) (*Stats, error) {
	st := &Stats{EventID: eventID}
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Event(ctx, eventID); err != nil {
			return notFound(err, "event", eventID)
		}
		attended, err := tx.AttendedGuests(ctx, eventID)
		if err != nil {
			return fmt.Errorf("load attended guests: %w", err)
		}
		st.AttendedGuests = len(attended)
		general, err := tx.ConfirmedLogs(ctx, eventID, model.RaffleGeneral)
		if err != nil {
			return fmt.Errorf("load general winners: %w", err)
		}
		st.GeneralWinners = len(general)

		prizes, err := tx.Prizes(ctx, eventID)
		if err != nil {
			return fmt.Errorf("load prizes: %w", err)
		}
		for _, p := range prizes {
			ps := PrizeStats{Prize: p, Sentinel: p.IsSentinel(s.opts.SentinelName)}
			counts := map[model.EntryStatus]*int{
				model.EntryPending:   &ps.Pending,
				model.EntryWon:       &ps.Won,
				model.EntryLost:      &ps.Lost,
				model.EntryCancelled: &ps.Cancelled,
			}
			for status, dst := range counts {
				n, err := tx.CountEntries(ctx, p.ID, status)
				if err != nil {
					return fmt.Errorf("count %s entries of prize %d: %w", status, p.ID, err)
				}
				*dst = n
			}
			if !ps.Sentinel {
				st.TotalStock += p.Stock
				st.InitialStock += p.InitialStock
				st.Awarded += ps.Won
			}
			st.Prizes = append(st.Prizes, ps)
		}
		return nil
	})
	if err != nil {
		return nil, conflict(err)
	}
	return st, nil
}

// CheckStock compares every prize's stock with its standing winners.
// It only reports; nothing is corrected.  A prize is inconsistent when
// stock plus winners exceeds its initial stock, or when the general pool
// prize has no stock left.
func (s *Service) CheckStock(ctx context.Context, eventID uint64) (*StockCheck, error) {
	out := &StockCheck{}
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Event(ctx, eventID); err != nil {
			return notFound(err, "event", eventID)
		}
		prizes, err := tx.Prizes(ctx, eventID)
		if err != nil {
			return fmt.Errorf("load prizes: %w", err)
		}
		for _, p := range prizes {
			winners, err := tx.CountEntries(ctx, p.ID, model.EntryWon)
			if err != nil {
				return fmt.Errorf("count winners of prize %d: %w", p.ID, err)
			}
			r := StockReport{
				PrizeID:      p.ID,
				Name:         p.Name,
				Sentinel:     p.IsSentinel(s.opts.SentinelName),
				Stock:        p.Stock,
				InitialStock: p.InitialStock,
				Winners:      winners,
				Expected:     p.InitialStock - winners,
				Consistent:   true,
			}
			if r.Expected > r.Stock {
				r.Withheld = r.Expected - r.Stock
			}
			var msg string
			switch {
			case r.Sentinel:
				r.Expected = p.InitialStock
				r.Withheld = 0
				if p.Stock == 0 {
					msg = "general pool prize has no stock"
				}
			case p.Stock+winners > p.InitialStock:
				msg = "stock plus winners exceeds initial stock"
			}
			if msg != "" {
				r.Consistent = false
				out.Warnings = append(out.Warnings, InconsistencyWarning{
					PrizeID:      p.ID,
					PrizeName:    p.Name,
					Stock:        p.Stock,
					InitialStock: p.InitialStock,
					Winners:      winners,
					Message:      msg,
				})
			}
			out.Prizes = append(out.Prizes, r)
		}
		return nil
	})
	if err != nil {
		return nil, conflict(err)
	}
	for _, w := range out.Warnings {
		metrics.InconsistenciesTotal.Inc()
		logger.Warningf("raffle: %s", w)
	}
	return out, nil
}

// Logs returns the draw history of an event, newest first.
func (s *Service) Logs(ctx context.Context, eventID uint64, f model.LogFilter) ([]model.RaffleLog, error) {
	logs, err := s.store.ListLogs(ctx, eventID, f)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	return logs, nil
}
