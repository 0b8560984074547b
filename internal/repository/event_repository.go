package repository

import (
	"context"

	"github.com/iliyamo/event-raffle/internal/model"
)

const eventColumns = `id, name, status, created_at`

// Event loads an event without locking it.
func (t *mysqlTx) Event(ctx context.Context, eventID uint64) (*model.Event, error) {
	var ev model.Event
	err := t.tx.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, eventID).
		Scan(&ev.ID, &ev.Name, &ev.Status, &ev.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &ev, nil
}

// LockEvent loads an event and holds its row lock until the transaction
// ends.  The general draw of an event serializes on this lock.
func (t *mysqlTx) LockEvent(ctx context.Context, eventID uint64) (*model.Event, error) {
	var ev model.Event
	err := t.tx.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ? FOR UPDATE`, eventID).
		Scan(&ev.ID, &ev.Name, &ev.Status, &ev.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &ev, nil
}
