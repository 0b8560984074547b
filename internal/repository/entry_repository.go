package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iliyamo/event-raffle/internal/model"
)

const entryColumns = `e.id, e.event_id, e.guest_id, e.prize_id, e.status, e.position, e.participated_at, e.drawn_at, e.metadata`

func scanEntry(row interface{ Scan(...any) error }, extra ...any) (*model.RaffleEntry, error) {
	var e model.RaffleEntry
	var pos sql.NullInt64
	var drawn sql.NullTime
	var meta []byte
	dest := append([]any{&e.ID, &e.EventID, &e.GuestID, &e.PrizeID, &e.Status, &pos, &e.ParticipatedAt, &drawn, &meta}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if pos.Valid {
		p := int(pos.Int64)
		e.Position = &p
	}
	if drawn.Valid {
		t := drawn.Time.UTC()
		e.DrawnAt = &t
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode entry %d metadata: %w", e.ID, err)
		}
	}
	return &e, nil
}

func encodeMetadata(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullPosition(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// Entry loads one entry of a prize.
func (t *mysqlTx) Entry(ctx context.Context, prizeID, entryID uint64) (*model.RaffleEntry, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM raffle_entries e WHERE e.id = ? AND e.prize_id = ? FOR UPDATE`,
		entryID, prizeID)
	e, err := scanEntry(row)
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// LiveEntry returns the non-cancelled entry of a guest for a prize.
func (t *mysqlTx) LiveEntry(ctx context.Context, prizeID, guestID uint64) (*model.RaffleEntry, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM raffle_entries e
		 WHERE e.prize_id = ? AND e.guest_id = ? AND e.status <> 'cancelled'
		 ORDER BY e.id DESC LIMIT 1 FOR UPDATE`,
		prizeID, guestID)
	e, err := scanEntry(row)
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// EntriesByStatus returns the entries of a prize in any of the given
// statuses, ordered by id.  With no statuses every entry is returned.
func (t *mysqlTx) EntriesByStatus(ctx context.Context, prizeID uint64, statuses ...model.EntryStatus) ([]model.RaffleEntry, error) {
	q := `SELECT ` + entryColumns + ` FROM raffle_entries e WHERE e.prize_id = ?`
	args := []any{prizeID}
	if len(statuses) > 0 {
		q += ` AND e.status IN (` + placeholders(len(statuses)) + `)`
		for _, s := range statuses {
			args = append(args, string(s))
		}
	}
	q += ` ORDER BY e.id`
	rows, err := t.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.RaffleEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// WinningGuests returns guests with a won entry on another prize of the event.
func (t *mysqlTx) WinningGuests(ctx context.Context, eventID, excludePrizeID uint64) (map[uint64]bool, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT DISTINCT guest_id FROM raffle_entries WHERE event_id = ? AND prize_id <> ? AND status = 'won'`,
		eventID, excludePrizeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64]bool)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// CreateEntry inserts one entry and populates its ID.  A second live
// entry for the same (guest, prize) violates uq_entries_live and comes
// back as ErrConflict.
func (t *mysqlTx) CreateEntry(ctx context.Context, e *model.RaffleEntry) error {
	meta, err := encodeMetadata(e.Metadata)
	if err != nil {
		return err
	}
	if e.ParticipatedAt.IsZero() {
		e.ParticipatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO raffle_entries (event_id, guest_id, prize_id, status, position, participated_at, drawn_at, metadata)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := t.tx.ExecContext(ctx, q, e.EventID, e.GuestID, e.PrizeID, string(e.Status),
		nullPosition(e.Position), e.ParticipatedAt, nullTime(e.DrawnAt), meta)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// CreateEntries inserts a batch of entries with a single statement.
func (t *mysqlTx) CreateEntries(ctx context.Context, entries []model.RaffleEntry) error {
	if len(entries) == 0 {
		return nil
	}
	q := `INSERT INTO raffle_entries (event_id, guest_id, prize_id, status, position, participated_at, drawn_at, metadata) VALUES `
	args := make([]any, 0, len(entries)*8)
	now := time.Now().UTC()
	for i, e := range entries {
		if i > 0 {
			q += `, `
		}
		q += `(` + placeholders(8) + `)`
		meta, err := encodeMetadata(e.Metadata)
		if err != nil {
			return err
		}
		at := e.ParticipatedAt
		if at.IsZero() {
			at = now
		}
		args = append(args, e.EventID, e.GuestID, e.PrizeID, string(e.Status),
			nullPosition(e.Position), at, nullTime(e.DrawnAt), meta)
	}
	if _, err := t.tx.ExecContext(ctx, q, args...); err != nil {
		return translate(err)
	}
	return nil
}

// UpdateEntry writes status, position, drawn_at and metadata back.
func (t *mysqlTx) UpdateEntry(ctx context.Context, e *model.RaffleEntry) error {
	meta, err := encodeMetadata(e.Metadata)
	if err != nil {
		return err
	}
	const q = `UPDATE raffle_entries SET status = ?, position = ?, drawn_at = ?, metadata = ? WHERE id = ?`
	res, err := t.tx.ExecContext(ctx, q, string(e.Status), nullPosition(e.Position), nullTime(e.DrawnAt), meta, e.ID)
	if err != nil {
		return translate(err)
	}
	if _, err := res.RowsAffected(); err != nil {
		return err
	}
	return nil
}

// SetEntriesStatus moves every entry of a prize in one of from to status to.
func (t *mysqlTx) SetEntriesStatus(ctx context.Context, prizeID uint64, to model.EntryStatus, drawnAt *time.Time, from ...model.EntryStatus) (int64, error) {
	if len(from) == 0 {
		return 0, nil
	}
	q := `UPDATE raffle_entries SET status = ?, drawn_at = COALESCE(?, drawn_at)
	      WHERE prize_id = ? AND status IN (` + placeholders(len(from)) + `)`
	args := []any{string(to), nullTime(drawnAt), prizeID}
	for _, s := range from {
		args = append(args, string(s))
	}
	res, err := t.tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteEntry removes an entry row.
func (t *mysqlTx) DeleteEntry(ctx context.Context, entryID uint64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM raffle_entries WHERE id = ?`, entryID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MaxPosition returns the highest position among the standing winners
// of the prize, 0 if none.  Cancelled rows keep their old position and
// are ignored.
func (t *mysqlTx) MaxPosition(ctx context.Context, prizeID uint64) (int, error) {
	var pos sql.NullInt64
	err := t.tx.QueryRowContext(ctx,
		`SELECT MAX(position) FROM raffle_entries WHERE prize_id = ? AND status = ?`,
		prizeID, string(model.EntryWon)).Scan(&pos)
	if err != nil {
		return 0, err
	}
	return int(pos.Int64), nil
}

// CountEntries counts the entries of a prize in one status.
func (t *mysqlTx) CountEntries(ctx context.Context, prizeID uint64, status model.EntryStatus) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM raffle_entries WHERE prize_id = ? AND status = ?`, prizeID, string(status)).Scan(&n)
	return n, err
}

// ListEntries returns every entry of a prize with the guest's name,
// winners first in position order.
func (s *MySQLStore) ListEntries(ctx context.Context, eventID, prizeID uint64) ([]model.RaffleEntry, error) {
	const q = `SELECT ` + entryColumns + `, g.full_name
	           FROM raffle_entries e
	           JOIN guests g ON g.id = e.guest_id
	           WHERE e.event_id = ? AND e.prize_id = ?
	           ORDER BY e.position IS NULL, e.position, e.id`
	rows, err := s.db.QueryContext(ctx, q, eventID, prizeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.RaffleEntry
	for rows.Next() {
		var name string
		e, err := scanEntry(rows, &name)
		if err != nil {
			return nil, err
		}
		e.GuestName = name
		out = append(out, *e)
	}
	return out, rows.Err()
}
