package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidQuery          = errors.New("invalid query")
	ErrIncompleteInventory   = errors.New("incomplete inventory")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	// ErrReservationConflict covers deadlocks, lock-wait and transaction
	// timeouts. Callers may retry the whole booking.
	ErrReservationConflict = errors.New("reservation conflict")
	ErrBookingExists       = errors.New("booking already reserved")
)

// ValidationError is a client-fixable problem with a query, keyed by field.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = msg
}

func (e *ValidationError) Len() int { return len(e.Fields) }

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid query: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidQuery }

// IncompleteInventoryError means at least one night of the stay has no
// inventory record for the room. Search drops the room; it is not a failure.
type IncompleteInventoryError struct {
	RoomID       int64
	MissingDates []time.Time
}

func (e *IncompleteInventoryError) Error() string {
	ds := make([]string, len(e.MissingDates))
	for i, d := range e.MissingDates {
		ds[i] = DateKey(d)
	}
	return fmt.Sprintf("room %d has no inventory for %s", e.RoomID, strings.Join(ds, ","))
}

func (e *IncompleteInventoryError) Is(target error) bool { return target == ErrIncompleteInventory }

type CellShortage struct {
	RoomID    int64     `json:"roomId"`
	Date      time.Time `json:"date"`
	Requested int       `json:"requested"`
	Remaining int       `json:"remaining"`
	Missing   bool      `json:"missing,omitempty"`
}

// InsufficientInventoryError lists every night that could not be reserved.
// The offer is no longer available; the caller should search again.
type InsufficientInventoryError struct {
	BookingID string
	Cells     []CellShortage
}

func (e *InsufficientInventoryError) Error() string {
	parts := make([]string, len(e.Cells))
	for i, c := range e.Cells {
		parts[i] = fmt.Sprintf("%s wants %d has %d", formatCellKey(c.RoomID, c.Date), c.Requested, c.Remaining)
	}
	return fmt.Sprintf("booking %s: insufficient inventory: %s", e.BookingID, strings.Join(parts, ", "))
}

func (e *InsufficientInventoryError) Is(target error) bool { return target == ErrInsufficientInventory }

// AsInsufficient mirrors errors.As for the common case.
func AsInsufficient(err error) (*InsufficientInventoryError, bool) {
	var ie *InsufficientInventoryError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// Retryable reports whether the booking workflow may try again: either the
// inventory moved under it or the transaction lost a race.
func Retryable(err error) bool {
	return errors.Is(err, ErrInsufficientInventory) || errors.Is(err, ErrReservationConflict)
}
