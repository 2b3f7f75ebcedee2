package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"stayfinder/internal/adapters/observability"
	"stayfinder/internal/domain"
)

type ReservationOptions struct {
	Retries   int           // extra attempts after a conflict
	Timeout   time.Duration // whole call, retries included
	BaseDelay time.Duration
}

// ReservationCoordinator is the only writer of reservation state.
type ReservationCoordinator struct {
	store domain.ReservationStore
	cache domain.Cache
	pub   domain.EventPublisher
	opts  ReservationOptions
}

func NewReservationCoordinator(store domain.ReservationStore, cache domain.Cache, pub domain.EventPublisher, opts ReservationOptions) *ReservationCoordinator {
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 25 * time.Millisecond
	}
	return &ReservationCoordinator{store: store, cache: cache, pub: pub, opts: opts}
}

// Reserve consumes quantity from every (room, date) cell of the booking or
// from none of them. A shortage on any night yields
// *domain.InsufficientInventoryError listing every failing night.
func (c *ReservationCoordinator) Reserve(ctx context.Context, bookingID string, items []domain.LineItem) ([]domain.ReservationLine, error) {
	start := time.Now()
	lines, attempts, err := c.reserve(ctx, bookingID, items)
	observability.ObserveReservation(reserveOutcome(err), attempts, time.Since(start))
	if err != nil {
		ev := log.Warn()
		if !domain.Retryable(err) && !isValidation(err) && !errors.Is(err, domain.ErrBookingExists) {
			ev = log.Error()
		}
		ev.Err(err).Str("booking_id", bookingID).Int("attempts", attempts).Msg("reservation rejected")
		return nil, err
	}

	log.Info().Str("booking_id", bookingID).Int("lines", len(lines)).Int("attempts", attempts).Msg("reservation committed")
	c.afterChange(ctx, bookingID, "reserved", len(lines))
	return lines, nil
}

func (c *ReservationCoordinator) reserve(ctx context.Context, bookingID string, items []domain.LineItem) ([]domain.ReservationLine, int, error) {
	if err := validateReserve(bookingID, items); err != nil {
		return nil, 0, err
	}
	merged := domain.MergeLineItems(items)
	keys := make([]domain.CellKey, len(merged))
	for i, it := range merged {
		keys[i] = it.Key()
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	var (
		out      []domain.ReservationLine
		attempts int
	)
	op := func() error {
		attempts++
		err := c.store.WithinTx(ctx, func(tx domain.ReservationTx) error {
			exists, err := tx.BookingExists(ctx, bookingID)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("booking %s: %w", bookingID, domain.ErrBookingExists)
			}
			locked, err := tx.LockCells(ctx, keys)
			if err != nil {
				return err
			}
			lines, short := domain.PlanReservation(bookingID, merged, locked)
			if len(short) > 0 {
				return &domain.InsufficientInventoryError{BookingID: bookingID, Cells: short}
			}
			if err := tx.InsertLines(ctx, lines); err != nil {
				return err
			}
			out = lines
			return nil
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrReservationConflict) && ctx.Err() == nil {
			observability.ReservationRetries.Inc()
			return err
		}
		return backoff.Permanent(err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.opts.BaseDelay
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.opts.Retries)), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		if ctx.Err() != nil && !errors.Is(err, domain.ErrReservationConflict) {
			err = fmt.Errorf("%w: %w", domain.ErrReservationConflict, ctx.Err())
		}
		return nil, attempts, err
	}
	return out, attempts, nil
}

// Release cancels every active line of the booking. Releasing an unknown or
// already released booking is a no-op.
func (c *ReservationCoordinator) Release(ctx context.Context, bookingID string) (int, error) {
	if bookingID == "" {
		return 0, domain.NewValidationError("bookingId", "this field is required")
	}
	n, err := c.store.Release(ctx, bookingID)
	if err != nil {
		observability.ObserveRelease("error")
		return 0, fmt.Errorf("release booking %s: %w", bookingID, err)
	}
	if n == 0 {
		observability.ObserveRelease("noop")
		return 0, nil
	}
	observability.ObserveRelease("released")
	log.Info().Str("booking_id", bookingID).Int("lines", n).Msg("reservation released")
	c.afterChange(ctx, bookingID, "released", n)
	return n, nil
}

func (c *ReservationCoordinator) Lines(ctx context.Context, bookingID string) ([]domain.ReservationLine, error) {
	return c.store.ListLines(ctx, bookingID)
}

// afterChange is best effort: the commit already happened.
func (c *ReservationCoordinator) afterChange(ctx context.Context, bookingID, kind string, n int) {
	invalidateSearches(ctx, c.cache)
	if c.pub == nil {
		return
	}
	ev := domain.ReservationEvent{
		EventID:   uuid.NewString(),
		BookingID: bookingID,
		Kind:      kind,
		Lines:     n,
		At:        time.Now().UTC(),
	}
	if err := c.pub.PublishJSON(ctx, "reservation."+kind, ev); err != nil {
		log.Warn().Err(err).Str("booking_id", bookingID).Str("kind", kind).Msg("publish reservation event failed")
	}
}

func validateReserve(bookingID string, items []domain.LineItem) error {
	verr := &domain.ValidationError{}
	if bookingID == "" {
		verr.Add("bookingId", "this field is required")
	}
	if len(items) == 0 {
		verr.Add("items", "provide at least one line item")
	}
	for i, it := range items {
		if e := validateStruct(it); e != nil {
			for f, msg := range e.Fields {
				verr.Add(fmt.Sprintf("items[%d].%s", i, f), msg)
			}
		}
	}
	if verr.Len() > 0 {
		return verr
	}
	return nil
}

func reserveOutcome(err error) string {
	switch {
	case err == nil:
		return "reserved"
	case errors.Is(err, domain.ErrInsufficientInventory):
		return "insufficient"
	case errors.Is(err, domain.ErrReservationConflict):
		return "conflict"
	case errors.Is(err, domain.ErrBookingExists):
		return "duplicate"
	case isValidation(err):
		return "invalid"
	default:
		return "error"
	}
}
