package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/event-raffle/internal/model"
)

const prizeColumns = `id, event_id, name, description, category, stock, initial_stock, active, created_at`

func scanPrize(row interface{ Scan(...any) error }) (*model.Prize, error) {
	var p model.Prize
	var desc, cat sql.NullString
	if err := row.Scan(&p.ID, &p.EventID, &p.Name, &desc, &cat, &p.Stock, &p.InitialStock, &p.Active, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Description = desc.String
	p.Category = cat.String
	return &p, nil
}

// LockPrize loads a prize of the given event with SELECT ... FOR UPDATE.
// Concurrent draws on the same prize block here until the holder
// commits, so stock and the entry set are re-read after the wait.
func (t *mysqlTx) LockPrize(ctx context.Context, eventID, prizeID uint64) (*model.Prize, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+prizeColumns+` FROM prizes WHERE id = ? AND event_id = ? FOR UPDATE`,
		prizeID, eventID)
	p, err := scanPrize(row)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// Prizes lists every prize of an event ordered by id.
func (t *mysqlTx) Prizes(ctx context.Context, eventID uint64) ([]model.Prize, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+prizeColumns+` FROM prizes WHERE event_id = ? ORDER BY id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Prize
	for rows.Next() {
		p, err := scanPrize(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// PrizeByName locks and returns the prize of an event with the given
// name.  It is used to find the sentinel prize of the general draw.
func (t *mysqlTx) PrizeByName(ctx context.Context, eventID uint64, name string) (*model.Prize, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+prizeColumns+` FROM prizes WHERE event_id = ? AND name = ? ORDER BY id LIMIT 1 FOR UPDATE`,
		eventID, name)
	p, err := scanPrize(row)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// CreatePrize inserts a prize and populates its generated ID.
func (t *mysqlTx) CreatePrize(ctx context.Context, p *model.Prize) error {
	const q = `INSERT INTO prizes (event_id, name, description, category, stock, initial_stock, active)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := t.tx.ExecContext(ctx, q, p.EventID, p.Name, p.Description, p.Category, p.Stock, p.InitialStock, p.Active)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// AdjustStock changes a prize's stock by delta.  The guard in the WHERE
// clause keeps 0 <= stock <= initial_stock even if a caller skipped its
// own validation; a refused update is reported as ErrConflict.
func (t *mysqlTx) AdjustStock(ctx context.Context, prizeID uint64, delta int) error {
	const q = `UPDATE prizes SET stock = stock + ?
	           WHERE id = ? AND stock + ? >= 0 AND stock + ? <= initial_stock`
	res, err := t.tx.ExecContext(ctx, q, delta, prizeID, delta, delta)
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
