package model

import "time"

// RaffleType distinguishes per-prize draws from the event-wide general draw.
type RaffleType string

const (
	RafflePublic  RaffleType = "public"
	RaffleGeneral RaffleType = "general"
)

// RaffleLog is an append-only record of one winner selection.  A row is
// never deleted; a general reselect supersedes a row by clearing
// Confirmed and pointing ReplacedBy at the replacement row.
//
// Fields:
//  ID         – primary key identifier.
//  EventID    – owning event.
//  PrizeID    – drawn prize, or the event's sentinel prize for general draws.
//  GuestID    – selected guest.
//  UserID     – acting operator, nil when unknown.
//  BatchID    – UUID shared by every row written by one draw operation.
//  RaffleType – public or general.
//  Confirmed  – true while the row is the standing outcome of its slot.
//  ReplacedBy – id of the row that superseded this one.
//  CreatedAt  – selection timestamp.
type RaffleLog struct {
	ID         uint64     `json:"id"`
	EventID    uint64     `json:"event_id"`
	PrizeID    uint64     `json:"prize_id"`
	GuestID    uint64     `json:"guest_id"`
	UserID     *uint64    `json:"user_id"`
	BatchID    string     `json:"batch_id"`
	RaffleType RaffleType `json:"raffle_type"`
	Confirmed  bool       `json:"confirmed"`
	ReplacedBy *uint64    `json:"replaced_by"`
	CreatedAt  time.Time  `json:"created_at"`
	PrizeName  string     `json:"prize_name,omitempty"` // joined for listings
	GuestName  string     `json:"guest_name,omitempty"` // joined for listings
}

// LogFilter narrows a log listing.  Zero values mean "any".
type LogFilter struct {
	RaffleType RaffleType
	PrizeID    uint64
	GuestID    uint64
	Confirmed  *bool
}
