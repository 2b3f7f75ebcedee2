package domain

import "context"

// CatalogReader is the read side of hotel/room management, which is owned
// elsewhere.
type CatalogReader interface {
	// ListCandidateRooms returns active rooms of open, active hotels that fit
	// the guest count, ordered by room id.
	ListCandidateRooms(ctx context.Context, q CandidateQuery) ([]RoomCandidate, error)
	GetRoomCandidate(ctx context.Context, roomID int64) (RoomCandidate, error)
	HotelFacilities(ctx context.Context, hotelIDs []int64) (map[int64][]int64, error)
	ListOpenHotelIDs(ctx context.Context) ([]int64, error)
}

type InventoryStore interface {
	// LoadCells returns, per room, the records inside the stay together with
	// the quantity held by ACTIVE reservation lines. Nights without a record
	// are simply absent.
	LoadCells(ctx context.Context, roomIDs []int64, stay StayWindow) (map[int64][]Cell, error)
	UpsertInventory(ctx context.Context, recs []InventoryRecord) error
}

// ReservationTx is one booking's unit of work.
type ReservationTx interface {
	BookingExists(ctx context.Context, bookingID string) (bool, error)
	// LockCells locks the records for keys in the order given. Keys without a
	// record are left out of the result.
	LockCells(ctx context.Context, keys []CellKey) (map[CellKey]Cell, error)
	InsertLines(ctx context.Context, lines []ReservationLine) error
}

type ReservationStore interface {
	// WithinTx commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx ReservationTx) error) error
	// Release cancels the booking's ACTIVE lines and returns how many changed.
	Release(ctx context.Context, bookingID string) (int, error)
	ListLines(ctx context.Context, bookingID string) ([]ReservationLine, error)
}

type CatalogClient interface {
	GetCalendar(ctx context.Context, hotelID int64, from, to string) (map[string]any, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}
