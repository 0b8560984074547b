// Package service holds adapters between the raffle engine and outside
// systems.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/logger"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/event-raffle/internal/queue"
	"github.com/iliyamo/event-raffle/internal/raffle"
)

// WinnerPublisher implements raffle.Notifier by publishing one persistent
// message per winner to the raffle.winner_drawn queue.  All notices of a
// draw share one connection and channel, and dialing the broker is
// bounded by dialTimeout.
type WinnerPublisher struct {
	url         string
	dialTimeout time.Duration
	timeout     time.Duration
	dial        func(url string, cfg amqp.Config) (*amqp.Connection, error)
}

// NewWinnerPublisher returns a publisher for the broker at url.  A
// non-positive dialTimeout falls back to 3s.
func NewWinnerPublisher(url string, dialTimeout time.Duration) *WinnerPublisher {
	if dialTimeout <= 0 {
		dialTimeout = 3 * time.Second
	}
	return &WinnerPublisher{url: url, dialTimeout: dialTimeout, timeout: 5 * time.Second, dial: amqp.DialConfig}
}

// NotifyWinner publishes a single notice.
func (p *WinnerPublisher) NotifyWinner(ctx context.Context, n raffle.WinnerNotice) error {
	return p.NotifyWinners(ctx, []raffle.WinnerNotice{n})[0]
}

// NotifyWinners publishes the notices of one draw over a single
// connection.  When the broker cannot be reached every notice carries
// the same error.  Errors are logged and returned so the engine can
// report them next to the draw result.
func (p *WinnerPublisher) NotifyWinners(ctx context.Context, notices []raffle.WinnerNotice) []error {
	errs := make([]error, len(notices))
	failAll := func(err error) []error {
		for i := range errs {
			errs[i] = err
		}
		return errs
	}
	if len(notices) == 0 {
		return errs
	}
	if err := ctx.Err(); err != nil {
		return failAll(err)
	}

	conn, err := p.dial(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(p.dialTimeout),
	})
	if err != nil {
		logger.Errorf("winner-publisher: dial failed: %v", err)
		return failAll(fmt.Errorf("dial broker: %w", err))
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		logger.Errorf("winner-publisher: channel open failed: %v", err)
		return failAll(fmt.Errorf("open channel: %w", err))
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue.WinnerQueueName, true, false, false, false, nil); err != nil {
		logger.Errorf("winner-publisher: queue declare failed: %v", err)
		return failAll(fmt.Errorf("declare queue: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	for i, n := range notices {
		body, err := json.Marshal(EventFromNotice(n))
		if err != nil {
			errs[i] = fmt.Errorf("marshal event: %w", err)
			continue
		}
		pub := amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    fmt.Sprintf("%s-%d", n.BatchID, n.LogID),
			Timestamp:    time.Now().UTC(),
			Body:         body,
		}
		if err := ch.PublishWithContext(ctx, "", queue.WinnerQueueName, false, false, pub); err != nil {
			logger.Errorf("winner-publisher: publish failed: %v", err)
			errs[i] = err
		}
	}
	return errs
}

// EventFromNotice converts an engine notice into the wire payload.
func EventFromNotice(n raffle.WinnerNotice) queue.WinnerDrawnEvent {
	return queue.WinnerDrawnEvent{
		BatchID:    n.BatchID,
		RaffleType: string(n.RaffleType),
		EventID:    n.EventID,
		PrizeID:    n.PrizeID,
		PrizeName:  n.PrizeName,
		EntryID:    n.EntryID,
		LogID:      n.LogID,
		GuestID:    n.GuestID,
		GuestName:  n.GuestName,
		GuestEmail: n.GuestEmail,
		Position:   n.Position,
		DrawnAt:    n.DrawnAt.UTC().Format(time.RFC3339),
	}
}
