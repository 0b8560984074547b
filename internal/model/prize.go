package model

import "time"

// Prize is an awardable item of an event.  Stock holds the units that
// can still be awarded and never exceeds InitialStock.
//
// Fields:
//  ID           – primary key identifier.
//  EventID      – owning event.
//  Name         – display name; the configured sentinel name marks the
//                 general draw pool instead of physical stock.
//  Description  – optional free text.
//  Category     – grouping used by statistics.
//  Stock        – remaining awardable units.
//  InitialStock – units the prize was created with.
//  Active       – inactive prizes cannot be drawn.
type Prize struct {
	ID           uint64    `json:"id"`            // prizes.id
	EventID      uint64    `json:"event_id"`      // prizes.event_id
	Name         string    `json:"name"`          // prizes.name
	Description  string    `json:"description"`   // prizes.description
	Category     string    `json:"category"`      // prizes.category
	Stock        int       `json:"stock"`         // prizes.stock
	InitialStock int       `json:"initial_stock"` // prizes.initial_stock
	Active       bool      `json:"active"`        // prizes.active
	CreatedAt    time.Time `json:"created_at"`    // prizes.created_at
}

// IsSentinel reports whether the prize is the general pool placeholder
// identified by sentinelName.
func (p Prize) IsSentinel(sentinelName string) bool {
	return sentinelName != "" && p.Name == sentinelName
}
