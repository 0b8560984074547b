package raffle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"

	"github.com/iliyamo/event-raffle/internal/metrics"
	"github.com/iliyamo/event-raffle/internal/model"
	"github.com/iliyamo/event-raffle/internal/repository"
)

// DrawRequest asks for Quantity winners of one prize.
type DrawRequest struct {
	EventID  uint64
	PrizeID  uint64
	Quantity int
	// Notify enqueues a notice per winner after commit.
	Notify bool
	// MarkLosers moves every entry still pending after the draw to lost.
	MarkLosers bool
	// UserID is the acting operator, zero when unknown.
	UserID uint64
}

// DrawResult is the outcome of a committed per-prize draw.  Errors only
// lists notification failures; the draw itself succeeded.
type DrawResult struct {
	BatchID        string              `json:"batch_id"`
	Winners        []model.RaffleEntry `json:"winners"`
	Lost           int64               `json:"lost,omitempty"`
	RemainingStock int                 `json:"remaining_stock"`
	Errors         []string            `json:"errors,omitempty"`
}

// SelectRequest asks for one specific guest to win a prize.
type SelectRequest struct {
	EventID uint64
	PrizeID uint64
	GuestID uint64
	Notify  bool
	UserID  uint64
}

// SelectResult is the outcome of a committed manual selection.
type SelectResult struct {
	BatchID        string            `json:"batch_id"`
	Entry          model.RaffleEntry `json:"entry"`
	RemainingStock int               `json:"remaining_stock"`
	Errors         []string          `json:"errors,omitempty"`
}

// candidate is a pending entry whose guest is currently eligible.
type candidate struct {
	entry model.RaffleEntry
	guest model.Guest
}

// lockPrize takes the prize row lock, then loads the event.  The lock
// comes first: nothing of the unit of work may be read before it is
// held.  Both must exist and the prize must belong to the event.
func (s *Service) lockPrize(ctx context.Context, tx repository.Tx, eventID, prizeID uint64) (*model.Event, *model.Prize, error) {
	p, err := tx.LockPrize(ctx, eventID, prizeID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, nil, err
		}
		if _, evErr := tx.Event(ctx, eventID); evErr != nil {
			return nil, nil, notFound(evErr, "event", eventID)
		}
		return nil, nil, notFound(err, "prize", prizeID)
	}
	ev, err := tx.Event(ctx, eventID)
	if err != nil {
		return nil, nil, notFound(err, "event", eventID)
	}
	return ev, p, nil
}

// drawPool returns the pending entries of the prize whose guests are
// eligible, in entry id order.
func (s *Service) drawPool(ctx context.Context, tx repository.Tx, p model.Prize) ([]candidate, error) {
	eligible, err := Eligible(ctx, tx, p, s.opts.ExclusiveWinners)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint64]model.Guest, len(eligible))
	for _, g := range eligible {
		byID[g.ID] = g
	}
	pending, err := tx.EntriesByStatus(ctx, p.ID, model.EntryPending)
	if err != nil {
		return nil, fmt.Errorf("load pending entries: %w", err)
	}
	pool := make([]candidate, 0, len(pending))
	for _, e := range pending {
		if g, ok := byID[e.GuestID]; ok {
			pool = append(pool, candidate{entry: e, guest: g})
		}
	}
	return pool, nil
}

// Draw selects Quantity winners of a prize among its eligible pending
// entries.  Under the prize lock it re-validates the event, the prize,
// the quantity, the stock and the pool, then marks the winners, takes
// the units from stock, optionally marks the rest as lost and writes one
// confirmed log row per winner.  Any failed precondition returns a
// ValidationError and changes nothing.
func (s *Service) Draw(ctx context.Context, req DrawRequest) (*DrawResult, error) {
	start := time.Now()
	res := &DrawResult{BatchID: uuid.NewString()}
	var notices []WinnerNotice

	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		ev, p, err := s.lockPrize(ctx, tx, req.EventID, req.PrizeID)
		if err != nil {
			return err
		}
		switch {
		case !ev.IsActive():
			return invalid(ReasonEventInactive)
		case !p.Active:
			return invalid(ReasonPrizeInactive)
		case req.Quantity < 1 || req.Quantity > s.opts.MaxQuantity:
			return invalid(ReasonQuantityRange)
		case req.Quantity > p.Stock:
			return invalid(ReasonInsufficientStock)
		}

		pool, err := s.drawPool(ctx, tx, *p)
		if err != nil {
			return err
		}
		if len(pool) < req.Quantity {
			return invalid(ReasonInsufficientPool)
		}
		top, err := tx.MaxPosition(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("max position: %w", err)
		}

		now := s.now()
		for i, ix := range s.sampler.Pick(len(pool), req.Quantity) {
			c := pool[ix]
			e := c.entry
			pos := top + i + 1
			e.Status = model.EntryWon
			e.Position = &pos
			e.DrawnAt = &now
			e.Metadata = withMetadata(e.Metadata, map[string]any{
				"batch_id":           res.BatchID,
				"total_participants": len(pool),
				"drawn_by":           req.UserID,
			})
			if err := tx.UpdateEntry(ctx, &e); err != nil {
				return fmt.Errorf("mark winner %d: %w", e.ID, err)
			}
			l := &model.RaffleLog{
				EventID:    ev.ID,
				PrizeID:    p.ID,
				GuestID:    e.GuestID,
				UserID:     userPtr(req.UserID),
				BatchID:    res.BatchID,
				RaffleType: model.RafflePublic,
				Confirmed:  true,
				CreatedAt:  now,
			}
			if err := tx.AppendLog(ctx, l); err != nil {
				return fmt.Errorf("append log: %w", err)
			}
			e.GuestName = c.guest.FullName
			res.Winners = append(res.Winners, e)
			notices = append(notices, WinnerNotice{
				BatchID:    res.BatchID,
				RaffleType: model.RafflePublic,
				EventID:    ev.ID,
				PrizeID:    p.ID,
				PrizeName:  p.Name,
				EntryID:    e.ID,
				LogID:      l.ID,
				GuestID:    e.GuestID,
				GuestName:  c.guest.FullName,
				GuestEmail: c.guest.Email,
				Position:   pos,
				DrawnAt:    now,
			})
		}

		if !p.IsSentinel(s.opts.SentinelName) {
			if err := tx.AdjustStock(ctx, p.ID, -req.Quantity); err != nil {
				return fmt.Errorf("decrement stock: %w", err)
			}
			p.Stock -= req.Quantity
		}
		res.RemainingStock = p.Stock

		if req.MarkLosers {
			n, err := tx.SetEntriesStatus(ctx, p.ID, model.EntryLost, &now, model.EntryPending)
			if err != nil {
				return fmt.Errorf("mark losers: %w", err)
			}
			res.Lost = n
		}
		return nil
	})
	metrics.DrawDuration.WithLabelValues(string(model.RafflePublic)).Observe(time.Since(start).Seconds())
	if err := finish(string(model.RafflePublic), err); err != nil {
		return nil, err
	}
	metrics.WinnersTotal.WithLabelValues(string(model.RafflePublic)).Add(float64(len(res.Winners)))
	logger.Infof("raffle: prize %d drew %d winner(s), stock left %d (batch %s)",
		req.PrizeID, len(res.Winners), res.RemainingStock, res.BatchID)

	if req.Notify {
		res.Errors = s.notifyAll(ctx, notices)
	}
	return res, nil
}

// Cancel voids the raffle of a prize: every entry that is not already
// cancelled becomes cancelled, winners included.  Stock is left alone.
// Cancelling twice reports zero affected entries the second time.
func (s *Service) Cancel(ctx context.Context, eventID, prizeID uint64) (int64, error) {
	var n int64
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		if _, _, err := s.lockPrize(ctx, tx, eventID, prizeID); err != nil {
			return err
		}
		var err error
		n, err = tx.SetEntriesStatus(ctx, prizeID, model.EntryCancelled, nil,
			model.EntryPending, model.EntryWon, model.EntryLost)
		if err != nil {
			return fmt.Errorf("cancel entries: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, conflict(err)
	}
	logger.Infof("raffle: prize %d cancelled, %d entr(ies) voided", prizeID, n)
	return n, nil
}

// SelectManual awards one unit of a prize to a chosen guest.  The guest
// must belong to the event and have attended.  A live entry is reused
// (a lost entry is reopened first) or created when the guest has none.
func (s *Service) SelectManual(ctx context.Context, req SelectRequest) (*SelectResult, error) {
	res := &SelectResult{BatchID: uuid.NewString()}
	var notice WinnerNotice

	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		ev, p, err := s.lockPrize(ctx, tx, req.EventID, req.PrizeID)
		if err != nil {
			return err
		}
		switch {
		case !ev.IsActive():
			return invalid(ReasonEventInactive)
		case !p.Active:
			return invalid(ReasonPrizeInactive)
		case p.Stock < 1:
			return invalid(ReasonInsufficientStock)
		}
		g, err := tx.Guest(ctx, req.EventID, req.GuestID)
		if err != nil {
			return notFound(err, "guest", req.GuestID)
		}
		if !g.Attended {
			return invalid(ReasonNotAttended)
		}
		if s.opts.ExclusiveWinners {
			others, err := tx.WinningGuests(ctx, ev.ID, p.ID)
			if err != nil {
				return fmt.Errorf("load winners of other prizes: %w", err)
			}
			if others[g.ID] {
				return invalid(ReasonWinnerElsewhere)
			}
		}

		now := s.now()
		e, err := tx.LiveEntry(ctx, p.ID, g.ID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			e = &model.RaffleEntry{
				EventID:        ev.ID,
				GuestID:        g.ID,
				PrizeID:        p.ID,
				Status:         model.EntryPending,
				ParticipatedAt: now,
				Metadata:       map[string]any{"entered_by": req.UserID, "manual": true},
			}
			if err := tx.CreateEntry(ctx, e); err != nil {
				return fmt.Errorf("create entry: %w", err)
			}
		case err != nil:
			return fmt.Errorf("load entry: %w", err)
		case e.Status == model.EntryWon:
			return invalid(ReasonAlreadyWon)
		case e.Status == model.EntryLost:
			e.Status = model.EntryPending
			e.DrawnAt = nil
		}

		top, err := tx.MaxPosition(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("max position: %w", err)
		}
		pos := top + 1
		e.Status = model.EntryWon
		e.Position = &pos
		e.DrawnAt = &now
		e.Metadata = withMetadata(e.Metadata, map[string]any{
			"batch_id": res.BatchID,
			"drawn_by": req.UserID,
			"manual":   true,
		})
		if err := tx.UpdateEntry(ctx, e); err != nil {
			return fmt.Errorf("mark winner %d: %w", e.ID, err)
		}
		if !p.IsSentinel(s.opts.SentinelName) {
			if err := tx.AdjustStock(ctx, p.ID, -1); err != nil {
				return fmt.Errorf("decrement stock: %w", err)
			}
			p.Stock--
		}
		l := &model.RaffleLog{
			EventID:    ev.ID,
			PrizeID:    p.ID,
			GuestID:    g.ID,
			UserID:     userPtr(req.UserID),
			BatchID:    res.BatchID,
			RaffleType: model.RafflePublic,
			Confirmed:  true,
			CreatedAt:  now,
		}
		if err := tx.AppendLog(ctx, l); err != nil {
			return fmt.Errorf("append log: %w", err)
		}

		e.GuestName = g.FullName
		res.Entry = *e
		res.RemainingStock = p.Stock
		notice = WinnerNotice{
			BatchID:    res.BatchID,
			RaffleType: model.RafflePublic,
			EventID:    ev.ID,
			PrizeID:    p.ID,
			PrizeName:  p.Name,
			EntryID:    e.ID,
			LogID:      l.ID,
			GuestID:    g.ID,
			GuestName:  g.FullName,
			GuestEmail: g.Email,
			Position:   pos,
			DrawnAt:    now,
		}
		return nil
	})
	if err := finish(string(model.RafflePublic), err); err != nil {
		return nil, err
	}
	metrics.WinnersTotal.WithLabelValues(string(model.RafflePublic)).Inc()
	logger.Infof("raffle: guest %d selected for prize %d, stock left %d (batch %s)",
		req.GuestID, req.PrizeID, res.RemainingStock, res.BatchID)

	if req.Notify {
		res.Errors = s.notifyAll(ctx, []WinnerNotice{notice})
	}
	return res, nil
}

// withMetadata returns base extended with extra.  base is not modified.
func withMetadata(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
