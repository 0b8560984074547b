package raffle

import (
	"errors"
	"fmt"

	"github.com/iliyamo/event-raffle/internal/metrics"
	"github.com/iliyamo/event-raffle/internal/repository"
)

// Reasons carried by ValidationError.  They are shown to operators as is.
const (
	ReasonEventInactive     = "event is not active"
	ReasonPrizeInactive     = "prize is not active"
	ReasonQuantityRange     = "quantity out of range"
	ReasonInsufficientStock = "insufficient stock"
	ReasonInsufficientPool  = "insufficient eligible participants"
	ReasonNotAttended       = "guest has not attended the event"
	ReasonAlreadyWon        = "guest already won this prize"
	ReasonWinnerElsewhere   = "guest already won another prize of the event"
	ReasonResetNotWon       = "only won entries can be reset"
	ReasonDeleteWon         = "won entries cannot be deleted"
	ReasonGeneralDrawn      = "general draw already performed"
	ReasonNotGeneralWinner  = "guest is not a confirmed general winner"
)

// ValidationError reports an unmet precondition.  Nothing was changed
// and retrying without changing the input fails the same way.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalid(reason string) error { return &ValidationError{Reason: reason} }

// ConflictError reports lock contention or a concurrent modification.
// The whole operation may be retried; every precondition is re-checked
// under the lock.
type ConflictError struct {
	Err error
}

func (e *ConflictError) Error() string { return fmt.Sprintf("concurrent modification: %v", e.Err) }
func (e *ConflictError) Unwrap() error { return e.Err }

// NotFoundError reports a resource that does not exist or does not
// belong to the stated event.
type NotFoundError struct {
	Resource string
	ID       uint64
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %d not found", e.Resource, e.ID) }

// notFound converts repository.ErrNotFound into a NotFoundError for the
// named resource and passes any other error through.
func notFound(err error, resource string, id uint64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Resource: resource, ID: id}
	}
	return err
}

// InconsistencyWarning describes a prize whose stock disagrees with its
// recorded winners.  Warnings are logged and returned to the caller; they
// never abort the operation that found them.
type InconsistencyWarning struct {
	PrizeID      uint64 `json:"prize_id"`
	PrizeName    string `json:"prize_name"`
	Stock        int    `json:"stock"`
	InitialStock int    `json:"initial_stock"`
	Winners      int    `json:"winners"`
	Message      string `json:"message"`
}

func (w InconsistencyWarning) String() string {
	return fmt.Sprintf("prize %d (%s): %s [stock=%d initial=%d winners=%d]",
		w.PrizeID, w.PrizeName, w.Message, w.Stock, w.InitialStock, w.Winners)
}

// finish maps store errors raised by a unit of work onto the engine's
// error types and records the outcome.
func finish(kind string, err error) error {
	switch {
	case err == nil:
		metrics.DrawsTotal.WithLabelValues(kind, metrics.OutcomeOK).Inc()
		return nil
	case errors.Is(err, repository.ErrConflict):
		metrics.DrawsTotal.WithLabelValues(kind, metrics.OutcomeConflict).Inc()
		return &ConflictError{Err: err}
	}
	var ve *ValidationError
	var nf *NotFoundError
	if errors.As(err, &ve) || errors.As(err, &nf) {
		metrics.DrawsTotal.WithLabelValues(kind, metrics.OutcomeRejected).Inc()
		return err
	}
	metrics.DrawsTotal.WithLabelValues(kind, metrics.OutcomeError).Inc()
	return err
}

// conflict maps repository.ErrConflict for operations that are not draws.
func conflict(err error) error {
	if errors.Is(err, repository.ErrConflict) {
		return &ConflictError{Err: err}
	}
	return err
}
