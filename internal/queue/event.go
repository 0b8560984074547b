// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them.
package queue

// WinnerQueueName is the durable queue carrying WinnerDrawnEvent messages.
const WinnerQueueName = "raffle.winner_drawn"

// WinnerDrawnEvent is published once per winner after a draw commits.
// It carries enough detail for downstream consumers (mailers, screens,
// audit sinks) to act without querying the primary database.
type WinnerDrawnEvent struct {
	BatchID    string `json:"batch_id"`
	RaffleType string `json:"raffle_type"`
	EventID    uint64 `json:"event_id"`
	PrizeID    uint64 `json:"prize_id"`
	PrizeName  string `json:"prize_name"`
	EntryID    uint64 `json:"entry_id,omitempty"`
	LogID      uint64 `json:"log_id"`
	GuestID    uint64 `json:"guest_id"`
	GuestName  string `json:"guest_name"`
	GuestEmail string `json:"guest_email,omitempty"`
	Position   int    `json:"position,omitempty"`
	DrawnAt    string `json:"drawn_at"`
}
