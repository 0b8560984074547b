package model

import "time"

// Event statuses.  Only an active event accepts draws.
const (
	EventActive    = "active"
	EventCancelled = "cancelled"
	EventFinished  = "finished"
)

// Event is the tenancy boundary of the raffle engine.  Every prize,
// guest, entry and log row belongs to exactly one event.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – display name.
//  Status    – active, cancelled or finished.
//  CreatedAt – creation timestamp.
type Event struct {
	ID        uint64    `json:"id"`         // events.id
	Name      string    `json:"name"`       // events.name
	Status    string    `json:"status"`     // events.status
	CreatedAt time.Time `json:"created_at"` // events.created_at
}

// IsActive reports whether draws may run for the event.
func (e Event) IsActive() bool { return e.Status == EventActive }
