package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/event-raffle/internal/model"
)

// The draw log is append-only.  AppendLog is the only writer of new rows
// and SupersedeLog the only statement that ever touches an existing one.

const logColumns = `l.id, l.event_id, l.prize_id, l.guest_id, l.user_id, l.batch_id, l.raffle_type, l.confirmed, l.replaced_by, l.created_at, p.name, g.full_name`

const logJoins = ` FROM raffle_logs l
	JOIN prizes p ON p.id = l.prize_id
	JOIN guests g ON g.id = l.guest_id`

func scanLog(row interface{ Scan(...any) error }) (*model.RaffleLog, error) {
	var l model.RaffleLog
	var user, replaced sql.NullInt64
	if err := row.Scan(&l.ID, &l.EventID, &l.PrizeID, &l.GuestID, &user, &l.BatchID, &l.RaffleType,
		&l.Confirmed, &replaced, &l.CreatedAt, &l.PrizeName, &l.GuestName); err != nil {
		return nil, err
	}
	if user.Valid {
		u := uint64(user.Int64)
		l.UserID = &u
	}
	if replaced.Valid {
		r := uint64(replaced.Int64)
		l.ReplacedBy = &r
	}
	return &l, nil
}

func collectLogs(rows *sql.Rows) ([]model.RaffleLog, error) {
	defer rows.Close()
	var out []model.RaffleLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// AppendLog inserts a log row and populates its ID and CreatedAt.
func (t *mysqlTx) AppendLog(ctx context.Context, l *model.RaffleLog) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	var user any
	if l.UserID != nil {
		user = *l.UserID
	}
	const q = `INSERT INTO raffle_logs (event_id, prize_id, guest_id, user_id, batch_id, raffle_type, confirmed, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := t.tx.ExecContext(ctx, q, l.EventID, l.PrizeID, l.GuestID, user, l.BatchID,
		string(l.RaffleType), l.Confirmed, l.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	return nil
}

// SupersedeLog marks a confirmed row as replaced.  Rows that are already
// superseded are left alone and reported as ErrConflict.
func (t *mysqlTx) SupersedeLog(ctx context.Context, logID, replacedBy uint64) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE raffle_logs SET confirmed = 0, replaced_by = ? WHERE id = ? AND confirmed = 1`,
		replacedBy, logID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// ConfirmedLogs returns the standing rows of one raffle type, oldest first.
func (t *mysqlTx) ConfirmedLogs(ctx context.Context, eventID uint64, rt model.RaffleType) ([]model.RaffleLog, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+logColumns+logJoins+` WHERE l.event_id = ? AND l.raffle_type = ? AND l.confirmed = 1 ORDER BY l.id`,
		eventID, string(rt))
	if err != nil {
		return nil, err
	}
	return collectLogs(rows)
}

// ListLogs returns the draw history of an event, newest first.
func (s *MySQLStore) ListLogs(ctx context.Context, eventID uint64, f model.LogFilter) ([]model.RaffleLog, error) {
	where := []string{"l.event_id = ?"}
	args := []any{eventID}
	if f.RaffleType != "" {
		where = append(where, "l.raffle_type = ?")
		args = append(args, string(f.RaffleType))
	}
	if f.PrizeID != 0 {
		where = append(where, "l.prize_id = ?")
		args = append(args, f.PrizeID)
	}
	if f.GuestID != 0 {
		where = append(where, "l.guest_id = ?")
		args = append(args, f.GuestID)
	}
	if f.Confirmed != nil {
		where = append(where, "l.confirmed = ?")
		args = append(args, *f.Confirmed)
	}
	q := `SELECT ` + logColumns + logJoins + ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY l.created_at DESC, l.id DESC`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectLogs(rows)
}
