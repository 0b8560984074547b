package raffle

import (
	"context"
	"fmt"

	"github.com/google/logger"

	"github.com/iliyamo/event-raffle/internal/metrics"
	"github.com/iliyamo/event-raffle/internal/model"
	"github.com/iliyamo/event-raffle/internal/repository"
)

// CreateEntriesResult summarizes a bulk registration.
type CreateEntriesResult struct {
	Created        int `json:"created"`
	AlreadyEntered int `json:"already_entered"`
	TotalEligible  int `json:"total_eligible"`
}

// ResetResult is the outcome of ResetEntry.
type ResetResult struct {
	Entry    model.RaffleEntry      `json:"entry"`
	Warnings []InconsistencyWarning `json:"warnings,omitempty"`
}

// CreateEntries registers a pending entry for every currently eligible
// guest of the prize that has no live entry yet.  Calling it again only
// adds guests that became eligible in between; cancelled entries are
// never revived.
func (s *Service) CreateEntries(ctx context.Context, eventID, prizeID, userID uint64) (*CreateEntriesResult, error) {
	res := &CreateEntriesResult{}
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		ev, p, err := s.lockPrize(ctx, tx, eventID, prizeID)
		if err != nil {
			return err
		}
		if !ev.IsActive() {
			return invalid(ReasonEventInactive)
		}
		if !p.Active {
			return invalid(ReasonPrizeInactive)
		}
		eligible, err := Eligible(ctx, tx, *p, s.opts.ExclusiveWinners)
		if err != nil {
			return err
		}
		live, err := tx.EntriesByStatus(ctx, p.ID, model.EntryPending, model.EntryWon, model.EntryLost)
		if err != nil {
			return fmt.Errorf("load live entries: %w", err)
		}
		entered := make(map[uint64]bool, len(live))
		for _, e := range live {
			entered[e.GuestID] = true
		}

		now := s.now()
		batch := make([]model.RaffleEntry, 0, len(eligible))
		for _, g := range eligible {
			if entered[g.ID] {
				res.AlreadyEntered++
				continue
			}
			batch = append(batch, model.RaffleEntry{
				EventID:        ev.ID,
				GuestID:        g.ID,
				PrizeID:        p.ID,
				Status:         model.EntryPending,
				ParticipatedAt: now,
				Metadata: map[string]any{
					"entered_by":         userID,
					"total_participants": len(eligible),
				},
			})
		}
		if err := tx.CreateEntries(ctx, batch); err != nil {
			return fmt.Errorf("create entries: %w", err)
		}
		res.Created = len(batch)
		res.TotalEligible = len(eligible)
		return nil
	})
	if err != nil {
		return nil, conflict(err)
	}
	logger.Infof("raffle: prize %d registered %d new entr(ies), %d already entered", prizeID, res.Created, res.AlreadyEntered)
	return res, nil
}

// ResetEntry reverts a won entry to pending and clears its draw stamps.
// The unit is not returned to stock.  For the general pool prize the
// optional repair rule refills one unit when nothing is left and no
// winner remains; any other disagreement is reported as a warning.
func (s *Service) ResetEntry(ctx context.Context, eventID, prizeID, entryID uint64) (*ResetResult, error) {
	res := &ResetResult{}
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		_, p, err := s.lockPrize(ctx, tx, eventID, prizeID)
		if err != nil {
			return err
		}
		e, err := tx.Entry(ctx, prizeID, entryID)
		if err != nil {
			return notFound(err, "entry", entryID)
		}
		if e.EventID != eventID {
			return &NotFoundError{Resource: "entry", ID: entryID}
		}
		if e.Status != model.EntryWon {
			return invalid(ReasonResetNotWon)
		}
		e.Status = model.EntryPending
		e.Position = nil
		e.DrawnAt = nil
		if err := tx.UpdateEntry(ctx, e); err != nil {
			return fmt.Errorf("reset entry: %w", err)
		}
		res.Entry = *e

		if !p.IsSentinel(s.opts.SentinelName) || p.Stock > 0 {
			return nil
		}
		winners, err := tx.CountEntries(ctx, p.ID, model.EntryWon)
		if err != nil {
			return fmt.Errorf("count winners: %w", err)
		}
		if winners > 0 {
			res.Warnings = append(res.Warnings, InconsistencyWarning{
				PrizeID:      p.ID,
				PrizeName:    p.Name,
				Stock:        p.Stock,
				InitialStock: p.InitialStock,
				Winners:      winners,
				Message:      "general pool prize has winners but no stock",
			})
			return nil
		}
		if s.opts.SentinelStockRepair && p.InitialStock > 0 {
			if err := tx.AdjustStock(ctx, p.ID, 1); err != nil {
				return fmt.Errorf("repair stock: %w", err)
			}
			logger.Warningf("raffle: general pool prize %d had no stock and no winners, stock repaired to 1", p.ID)
		}
		return nil
	})
	if err != nil {
		return nil, conflict(err)
	}
	for _, w := range res.Warnings {
		metrics.InconsistenciesTotal.Inc()
		logger.Warningf("raffle: %s", w)
	}
	logger.Infof("raffle: entry %d of prize %d reset to pending", entryID, prizeID)
	return res, nil
}

// DeleteEntry removes a pending, lost or cancelled entry.  Won entries
// must be reset first.
func (s *Service) DeleteEntry(ctx context.Context, eventID, prizeID, entryID uint64) error {
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		if _, _, err := s.lockPrize(ctx, tx, eventID, prizeID); err != nil {
			return err
		}
		e, err := tx.Entry(ctx, prizeID, entryID)
		if err != nil {
			return notFound(err, "entry", entryID)
		}
		if e.EventID != eventID {
			return &NotFoundError{Resource: "entry", ID: entryID}
		}
		if e.Status == model.EntryWon {
			return invalid(ReasonDeleteWon)
		}
		if err := tx.DeleteEntry(ctx, e.ID); err != nil {
			return notFound(err, "entry", entryID)
		}
		return nil
	})
	return conflict(err)
}

// Entries lists the entries of a prize, winners first by position.
// The listing takes no lock and may be stale.
func (s *Service) Entries(ctx context.Context, eventID, prizeID uint64) ([]model.RaffleEntry, error) {
	entries, err := s.store.ListEntries(ctx, eventID, prizeID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}
