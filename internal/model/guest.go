package model

import "time"

// Guest is a participant of an event.  Attended is derived from the
// attendances table; only attended guests are ever eligible to win.
type Guest struct {
	ID             uint64     `json:"id"`              // guests.id
	EventID        uint64     `json:"event_id"`        // guests.event_id
	FullName       string     `json:"full_name"`       // guests.full_name
	Email          string     `json:"email"`           // guests.email
	EmployeeNumber string     `json:"employee_number"` // guests.employee_number
	Company        string     `json:"company"`         // guests.company
	Attended       bool       `json:"attended"`        // attendances row exists
	AttendedAt     *time.Time `json:"attended_at,omitempty"`
}
