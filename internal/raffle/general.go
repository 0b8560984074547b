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

// GeneralWinner is one standing slot of the general draw.
type GeneralWinner struct {
	LogID     uint64      `json:"log_id"`
	Guest     model.Guest `json:"guest"`
	CreatedAt time.Time   `json:"created_at"`
}

// GeneralDrawResult is the outcome of DrawGeneral.
type GeneralDrawResult struct {
	BatchID string          `json:"batch_id"`
	PrizeID uint64          `json:"prize_id"`
	Winners []GeneralWinner `json:"winners"`
	Errors  []string        `json:"errors,omitempty"`
}

// ReselectResult is the outcome of ReselectGeneral.
type ReselectResult struct {
	BatchID     string        `json:"batch_id"`
	Replaced    uint64        `json:"replaced_log_id"`
	Replacement GeneralWinner `json:"replacement"`
	Errors      []string      `json:"errors,omitempty"`
}

// sentinelPrize returns the event's general pool prize, creating it with
// count units when the event has none yet.
func (s *Service) sentinelPrize(ctx context.Context, tx repository.Tx, eventID uint64, count int) (*model.Prize, error) {
	p, err := tx.PrizeByName(ctx, eventID, s.opts.SentinelName)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load general pool prize: %w", err)
	}
	p = &model.Prize{
		EventID:      eventID,
		Name:         s.opts.SentinelName,
		Description:  "General raffle pool",
		Category:     "general",
		Stock:        count,
		InitialStock: count,
		Active:       true,
	}
	if err := tx.CreatePrize(ctx, p); err != nil {
		return nil, fmt.Errorf("create general pool prize: %w", err)
	}
	logger.Infof("raffle: created general pool prize %d for event %d", p.ID, eventID)
	return p, nil
}

// DrawGeneral selects the configured number of general winners among all
// attended guests of the event.  It runs once per event: while any
// confirmed general row exists it is rejected.  Prize stock is untouched.
func (s *Service) DrawGeneral(ctx context.Context, eventID uint64, notify bool, userID uint64) (*GeneralDrawResult, error) {
	start := time.Now()
	count := s.opts.GeneralWinners
	res := &GeneralDrawResult{BatchID: uuid.NewString()}
	var notices []WinnerNotice

	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		ev, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return notFound(err, "event", eventID)
		}
		if !ev.IsActive() {
			return invalid(ReasonEventInactive)
		}
		confirmed, err := tx.ConfirmedLogs(ctx, ev.ID, model.RaffleGeneral)
		if err != nil {
			return fmt.Errorf("load general winners: %w", err)
		}
		if len(confirmed) > 0 {
			return invalid(ReasonGeneralDrawn)
		}
		pool, err := EligibleGeneral(ctx, tx, ev.ID)
		if err != nil {
			return err
		}
		if len(pool) < count {
			return invalid(ReasonInsufficientPool)
		}
		p, err := s.sentinelPrize(ctx, tx, ev.ID, count)
		if err != nil {
			return err
		}
		res.PrizeID = p.ID

		now := s.now()
		for i, ix := range s.sampler.Pick(len(pool), count) {
			g := pool[ix]
			l := &model.RaffleLog{
				EventID:    ev.ID,
				PrizeID:    p.ID,
				GuestID:    g.ID,
				UserID:     userPtr(userID),
				BatchID:    res.BatchID,
				RaffleType: model.RaffleGeneral,
				Confirmed:  true,
				CreatedAt:  now,
			}
			if err := tx.AppendLog(ctx, l); err != nil {
				return fmt.Errorf("append log: %w", err)
			}
			res.Winners = append(res.Winners, GeneralWinner{LogID: l.ID, Guest: g, CreatedAt: now})
			notices = append(notices, WinnerNotice{
				BatchID:    res.BatchID,
				RaffleType: model.RaffleGeneral,
				EventID:    ev.ID,
				PrizeID:    p.ID,
				PrizeName:  p.Name,
				LogID:      l.ID,
				GuestID:    g.ID,
				GuestName:  g.FullName,
				GuestEmail: g.Email,
				Position:   i + 1,
				DrawnAt:    now,
			})
		}
		return nil
	})
	metrics.DrawDuration.WithLabelValues(string(model.RaffleGeneral)).Observe(time.Since(start).Seconds())
	if err := finish(string(model.RaffleGeneral), err); err != nil {
		return nil, err
	}
	metrics.WinnersTotal.WithLabelValues(string(model.RaffleGeneral)).Add(float64(len(res.Winners)))
	logger.Infof("raffle: event %d general draw selected %d winner(s) (batch %s)", eventID, len(res.Winners), res.BatchID)

	if notify {
		res.Errors = s.notifyAll(ctx, notices)
	}
	return res, nil
}

// ReselectGeneral replaces one confirmed general winner.  The new winner
// is drawn from guests holding no confirmed general row, so the replaced
// guest and every other standing winner are out of the pool.  The old
// row is superseded and a new confirmed row is appended in the same
// unit of work; all other rows stay as they are.
func (s *Service) ReselectGeneral(ctx context.Context, eventID, guestID uint64, notify bool, userID uint64) (*ReselectResult, error) {
	start := time.Now()
	res := &ReselectResult{BatchID: uuid.NewString()}
	var notice WinnerNotice

	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		ev, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return notFound(err, "event", eventID)
		}
		if _, err := tx.Guest(ctx, ev.ID, guestID); err != nil {
			return notFound(err, "guest", guestID)
		}
		if !ev.IsActive() {
			return invalid(ReasonEventInactive)
		}
		confirmed, err := tx.ConfirmedLogs(ctx, ev.ID, model.RaffleGeneral)
		if err != nil {
			return fmt.Errorf("load general winners: %w", err)
		}
		var old *model.RaffleLog
		for i := range confirmed {
			if confirmed[i].GuestID == guestID {
				old = &confirmed[i]
				break
			}
		}
		if old == nil {
			return invalid(ReasonNotGeneralWinner)
		}
		pool, err := EligibleGeneral(ctx, tx, ev.ID)
		if err != nil {
			return err
		}
		if len(pool) == 0 {
			return invalid(ReasonInsufficientPool)
		}
		g := pool[s.sampler.Pick(len(pool), 1)[0]]

		now := s.now()
		l := &model.RaffleLog{
			EventID:    ev.ID,
			PrizeID:    old.PrizeID,
			GuestID:    g.ID,
			UserID:     userPtr(userID),
			BatchID:    res.BatchID,
			RaffleType: model.RaffleGeneral,
			Confirmed:  true,
			CreatedAt:  now,
		}
		if err := tx.AppendLog(ctx, l); err != nil {
			return fmt.Errorf("append log: %w", err)
		}
		if err := tx.SupersedeLog(ctx, old.ID, l.ID); err != nil {
			return fmt.Errorf("supersede log %d: %w", old.ID, err)
		}
		res.Replaced = old.ID
		res.Replacement = GeneralWinner{LogID: l.ID, Guest: g, CreatedAt: now}
		notice = WinnerNotice{
			BatchID:    res.BatchID,
			RaffleType: model.RaffleGeneral,
			EventID:    ev.ID,
			PrizeID:    old.PrizeID,
			PrizeName:  old.PrizeName,
			LogID:      l.ID,
			GuestID:    g.ID,
			GuestName:  g.FullName,
			GuestEmail: g.Email,
			DrawnAt:    now,
		}
		return nil
	})
	metrics.DrawDuration.WithLabelValues(string(model.RaffleGeneral)).Observe(time.Since(start).Seconds())
	if err := finish(string(model.RaffleGeneral), err); err != nil {
		return nil, err
	}
	metrics.WinnersTotal.WithLabelValues(string(model.RaffleGeneral)).Inc()
	logger.Infof("raffle: event %d general winner %d replaced by guest %d (batch %s)",
		eventID, guestID, res.Replacement.Guest.ID, res.BatchID)

	if notify {
		res.Errors = s.notifyAll(ctx, []WinnerNotice{notice})
	}
	return res, nil
}

// GeneralWinners lists the standing general winners of the event in the
// order their rows were written.
func (s *Service) GeneralWinners(ctx context.Context, eventID uint64) ([]model.RaffleLog, error) {
	var out []model.RaffleLog
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Event(ctx, eventID); err != nil {
			return notFound(err, "event", eventID)
		}
		var err error
		out, err = tx.ConfirmedLogs(ctx, eventID, model.RaffleGeneral)
		return err
	})
	if err != nil {
		return nil, conflict(err)
	}
	return out, nil
}
