package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type LineStatus string

const (
	LineActive    LineStatus = "ACTIVE"
	LineCancelled LineStatus = "CANCELLED" // terminal
)

// ReservationLine is one night of one booking consuming one inventory cell
// (the booking_inventory table).
type ReservationLine struct {
	BookingID   string
	InventoryID int64
	RoomID      int64
	Date        time.Time
	Quantity    int
	LockedPrice decimal.Decimal // frozen at reservation time
	Status      LineStatus
}

// LineItem is what the booking workflow asks to reserve.
type LineItem struct {
	RoomID   int64     `json:"roomId" validate:"required,gt=0"`
	Date     time.Time `json:"date" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,min=1"`
}

func (l LineItem) Key() CellKey { return CellKey{RoomID: l.RoomID, Date: DateOf(l.Date)} }

// MergeLineItems folds duplicate cells together and sorts the result in lock order.
func MergeLineItems(items []LineItem) []LineItem {
	byKey := make(map[CellKey]int, len(items))
	for _, it := range items {
		byKey[it.Key()] += it.Quantity
	}
	out := make([]LineItem, 0, len(byKey))
	for k, q := range byKey {
		out = append(out, LineItem{RoomID: k.RoomID, Date: k.Date, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out
}

// PlanReservation checks every requested cell against the locked cells and
// returns either the lines to insert or the full list of shortages. Items
// must already be merged.
func PlanReservation(bookingID string, items []LineItem, locked map[CellKey]Cell) ([]ReservationLine, []CellShortage) {
	var (
		lines     = make([]ReservationLine, 0, len(items))
		shortages []CellShortage
	)
	for _, it := range items {
		c, ok := locked[it.Key()]
		remaining := 0
		if ok {
			remaining = c.Remaining()
		}
		if !ok || remaining < it.Quantity {
			shortages = append(shortages, CellShortage{
				RoomID:    it.RoomID,
				Date:      DateOf(it.Date),
				Requested: it.Quantity,
				Remaining: remaining,
				Missing:   !ok,
			})
			continue
		}
		lines = append(lines, ReservationLine{
			BookingID:   bookingID,
			InventoryID: c.Record.ID,
			RoomID:      it.RoomID,
			Date:        DateOf(it.Date),
			Quantity:    it.Quantity,
			LockedPrice: c.Record.NightlyPrice,
			Status:      LineActive,
		})
	}
	if len(shortages) > 0 {
		return nil, shortages
	}
	return lines, nil
}

// ReservationEvent is published after a reservation commits or is released.
type ReservationEvent struct {
	EventID   string    `json:"eventId"`
	BookingID string    `json:"bookingId"`
	Kind      string    `json:"kind"` // reserved|released
	Lines     int       `json:"lines"`
	At        time.Time `json:"at"`
}

func formatCellKey(roomID int64, d time.Time) string {
	return fmt.Sprintf("%d@%s", roomID, DateKey(d))
}
