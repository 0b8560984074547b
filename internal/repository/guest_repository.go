package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/event-raffle/internal/model"
)

// Guest returns a guest of the event.  Attended is true when at least one
// attendance row exists for the guest.
func (t *mysqlTx) Guest(ctx context.Context, eventID, guestID uint64) (*model.Guest, error) {
	const q = `SELECT g.id, g.event_id, g.full_name, g.email, g.employee_number, g.company, MIN(a.scanned_at)
	           FROM guests g
	           LEFT JOIN attendances a ON a.guest_id = g.id
	           WHERE g.id = ? AND g.event_id = ?
	           GROUP BY g.id, g.event_id, g.full_name, g.email, g.employee_number, g.company`
	g, err := scanGuest(t.tx.QueryRowContext(ctx, q, guestID, eventID))
	if err != nil {
		return nil, notFound(err)
	}
	return g, nil
}

// AttendedGuests returns every guest of the event that has an attendance
// record, ordered by id.  It is evaluated on each call; attendance
// recorded up to the start of the statement is visible.
func (t *mysqlTx) AttendedGuests(ctx context.Context, eventID uint64) ([]model.Guest, error) {
	const q = `SELECT g.id, g.event_id, g.full_name, g.email, g.employee_number, g.company, MIN(a.scanned_at)
	           FROM guests g
	           JOIN attendances a ON a.guest_id = g.id
	           WHERE g.event_id = ?
	           GROUP BY g.id, g.event_id, g.full_name, g.email, g.employee_number, g.company
	           ORDER BY g.id`
	rows, err := t.tx.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Guest
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

func scanGuest(row interface{ Scan(...any) error }) (*model.Guest, error) {
	var g model.Guest
	var email, emp, company sql.NullString
	var scanned sql.NullTime
	if err := row.Scan(&g.ID, &g.EventID, &g.FullName, &email, &emp, &company, &scanned); err != nil {
		return nil, err
	}
	g.Email = email.String
	g.EmployeeNumber = emp.String
	g.Company = company.String
	if scanned.Valid {
		at := scanned.Time.UTC()
		g.Attended = true
		g.AttendedAt = &at
	}
	return &g, nil
}
