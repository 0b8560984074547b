package model

import "time"

// EntryStatus is the state of a raffle entry.
type EntryStatus string

const (
	EntryPending   EntryStatus = "pending"
	EntryWon       EntryStatus = "won"
	EntryLost      EntryStatus = "lost"
	EntryCancelled EntryStatus = "cancelled"
)

// entryTransitions lists the legal moves of the entry state machine.
// Cancelled is terminal; a cancelled raffle needs a fresh entry set.
var entryTransitions = map[EntryStatus][]EntryStatus{
	EntryPending: {EntryWon, EntryLost, EntryCancelled},
	EntryWon:     {EntryPending, EntryCancelled},
	EntryLost:    {EntryPending, EntryCancelled},
}

// CanTransition reports whether an entry may move from s to next.
func (s EntryStatus) CanTransition(next EntryStatus) bool {
	for _, allowed := range entryTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s EntryStatus) Valid() bool {
	switch s {
	case EntryPending, EntryWon, EntryLost, EntryCancelled:
		return true
	}
	return false
}

// RaffleEntry ties one guest to one prize's drawing pool.  At most one
// non-cancelled entry exists per (guest, prize) pair.
//
// Fields:
//  ID             – primary key identifier.
//  EventID        – owning event.
//  GuestID        – participant.
//  PrizeID        – prize the guest is in the running for.
//  Status         – pending, won, lost or cancelled.
//  Position       – 1-based winner rank within the prize, nil unless won.
//  ParticipatedAt – when the entry was registered.
//  DrawnAt        – when the entry won or lost, nil otherwise.
//  Metadata       – free-form draw details (batch id, who entered it...).
type RaffleEntry struct {
	ID             uint64         `json:"id"`
	EventID        uint64         `json:"event_id"`
	GuestID        uint64         `json:"guest_id"`
	PrizeID        uint64         `json:"prize_id"`
	Status         EntryStatus    `json:"status"`
	Position       *int           `json:"position"`
	ParticipatedAt time.Time      `json:"participated_at"`
	DrawnAt        *time.Time     `json:"drawn_at"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	GuestName      string         `json:"guest_name,omitempty"` // joined from guests for listings
}

// Live reports whether the entry still counts towards the (guest, prize)
// uniqueness rule.
func (e RaffleEntry) Live() bool { return e.Status != EntryCancelled }
