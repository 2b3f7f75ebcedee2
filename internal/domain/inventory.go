package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryRecord is the capacity and price of one room for one night.
// TotalStock is owned by hotel management; bookings never change it.
type InventoryRecord struct {
	ID           int64
	RoomID       int64
	Date         time.Time
	TotalStock   int
	NightlyPrice decimal.Decimal
}

// Cell pairs a record with the quantity held by active reservation lines.
type Cell struct {
	Record   InventoryRecord
	Reserved int
}

func (c Cell) Remaining() int { return Remaining(c.Record, c.Reserved) }

// Remaining is the derived availability of a record. It is never stored.
func Remaining(rec InventoryRecord, activeQty int) int {
	r := rec.TotalStock - activeQty
	if r < 0 {
		return 0
	}
	return r
}

type CellKey struct {
	RoomID int64
	Date   time.Time
}

func (k CellKey) String() string { return formatCellKey(k.RoomID, k.Date) }

// Less orders keys by room id, then date. Reservations lock cells in this order.
func (k CellKey) Less(o CellKey) bool {
	if k.RoomID != o.RoomID {
		return k.RoomID < o.RoomID
	}
	return k.Date.Before(o.Date)
}

// CellsByDate indexes one room's cells by calendar date.
func CellsByDate(cells []Cell) map[string]Cell {
	out := make(map[string]Cell, len(cells))
	for _, c := range cells {
		out[DateKey(c.Record.Date)] = c
	}
	return out
}
