// Package repository defines the persistence contract of the raffle
// engine and its MySQL implementation.  The sentinel values below allow
// higher layers such as the raffle service and the HTTP handlers to
// distinguish between different failure scenarios.  ErrNotFound means
// the requested row does not exist inside the stated event, while
// ErrConflict signals that the database refused the unit of work because
// of concurrent modification (lock wait timeout, deadlock or a duplicate
// live entry) and the whole operation may be retried.
package repository

import "errors"

// ErrNotFound is returned when a row does not exist or does not belong
// to the event given by the caller.  Handlers translate it into 404.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a transaction lost a race with another
// writer.  Handlers translate it into 409.
var ErrConflict = errors.New("conflict")

