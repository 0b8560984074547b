package raffle

import (
	"context"
	"fmt"

	"github.com/iliyamo/event-raffle/internal/model"
	"github.com/iliyamo/event-raffle/internal/repository"
)

// Eligible returns the guests that may win prize, ordered by id: every
// attended guest of the prize's event without a won entry on the prize.
// With exclusive set, guests holding a won entry on any other prize of
// the event are left out as well.  It reads through tx so the result
// reflects attendance as of the current unit of work.
func Eligible(ctx context.Context, tx repository.Tx, prize model.Prize, exclusive bool) ([]model.Guest, error) {
	attended, err := tx.AttendedGuests(ctx, prize.EventID)
	if err != nil {
		return nil, fmt.Errorf("load attended guests: %w", err)
	}
	won, err := tx.EntriesByStatus(ctx, prize.ID, model.EntryWon)
	if err != nil {
		return nil, fmt.Errorf("load winners: %w", err)
	}
	excluded := make(map[uint64]bool, len(won))
	for _, e := range won {
		excluded[e.GuestID] = true
	}
	if exclusive {
		others, err := tx.WinningGuests(ctx, prize.EventID, prize.ID)
		if err != nil {
			return nil, fmt.Errorf("load winners of other prizes: %w", err)
		}
		for id := range others {
			excluded[id] = true
		}
	}
	out := make([]model.Guest, 0, len(attended))
	for _, g := range attended {
		if !excluded[g.ID] {
			out = append(out, g)
		}
	}
	return out, nil
}

// EligibleGeneral returns the attended guests of the event that do not
// hold a confirmed general draw row, ordered by id.  Per-prize history
// is ignored.
func EligibleGeneral(ctx context.Context, tx repository.Tx, eventID uint64) ([]model.Guest, error) {
	attended, err := tx.AttendedGuests(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load attended guests: %w", err)
	}
	confirmed, err := tx.ConfirmedLogs(ctx, eventID, model.RaffleGeneral)
	if err != nil {
		return nil, fmt.Errorf("load general winners: %w", err)
	}
	winners := make(map[uint64]bool, len(confirmed))
	for _, l := range confirmed {
		winners[l.GuestID] = true
	}
	out := make([]model.Guest, 0, len(attended))
	for _, g := range attended {
		if !winners[g.ID] {
			out = append(out, g)
		}
	}
	return out, nil
}
