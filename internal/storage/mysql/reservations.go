package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"

	"stayfinder/internal/domain"
)

// MySQL server error numbers that matter to reservations.
const (
	errDupEntry        = 1062
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// WithinTx runs fn in a READ COMMITTED transaction so the active-line sums
// read after locking see every committed competitor.
func (r *Repo) WithinTx(ctx context.Context, fn func(domain.ReservationTx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&reservationTx{tx: tx}); err != nil {
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	committed = true
	return nil
}

func (r *Repo) Release(ctx context.Context, bookingID string) (int, error) {
	res, err := r.db.ExecContext(ctx, releaseSQL, bookingID)
	if err != nil {
		return 0, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

type reservationTx struct{ tx *sql.Tx }

func (t *reservationTx) BookingExists(ctx context.Context, bookingID string) (bool, error) {
	var exists bool
	if err := t.tx.QueryRowContext(ctx, bookingExistsSQL, bookingID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// LockCells takes the row locks one key at a time in the caller's order, so
// two bookings that share cells always queue instead of deadlocking.
func (t *reservationTx) LockCells(ctx context.Context, keys []domain.CellKey) (map[domain.CellKey]domain.Cell, error) {
	out := make(map[domain.CellKey]domain.Cell, len(keys))
	for _, k := range keys {
		var c domain.Cell
		err := t.tx.QueryRowContext(ctx, lockCellSQL, k.RoomID, domain.DateKey(k.Date)).
			Scan(&c.Record.ID, &c.Record.RoomID, &c.Record.Date, &c.Record.TotalStock, &c.Record.NightlyPrice)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", k, err)
		}
		if err := t.tx.QueryRowContext(ctx, reservedQtySQL, c.Record.ID).Scan(&c.Reserved); err != nil {
			return nil, fmt.Errorf("reserved qty %s: %w", k, err)
		}
		c.Record.Date = domain.DateOf(c.Record.Date)
		out[k] = c
	}
	return out, nil
}

func (t *reservationTx) InsertLines(ctx context.Context, lines []domain.ReservationLine) error {
	if len(lines) == 0 {
		return nil
	}
	values := make([]string, 0, len(lines))
	args := make([]any, 0, len(lines)*5)
	for _, l := range lines {
		values = append(values, "(?,?,?,?,?)")
		args = append(args, l.BookingID, l.InventoryID, l.Quantity, l.LockedPrice.StringFixed(2), string(l.Status))
	}
	_, err := t.tx.ExecContext(ctx, insertLinesPrefix+strings.Join(values, ","), args...)
	return err
}

// classify maps driver errors onto the domain's reservation errors.
func classify(err error) error {
	var me *gomysql.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Number {
	case errDeadlock, errLockWaitTimeout:
		return fmt.Errorf("%w: %w", domain.ErrReservationConflict, err)
	case errDupEntry:
		return fmt.Errorf("%w: %w", domain.ErrBookingExists, err)
	}
	return err
}
