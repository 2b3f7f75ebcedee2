// Package memory is an in-process implementation of the catalog, inventory
// and reservation ports. A single mutex serialises every reservation
// transaction, which trivially satisfies per-cell serialisability.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"stayfinder/internal/domain"
)

type Store struct {
	mu        sync.RWMutex
	hotels    map[int64]domain.Hotel
	rooms     map[int64]domain.Room
	records   map[domain.CellKey]domain.InventoryRecord
	lines     []domain.ReservationLine
	misses    []Miss
	nextRecID int64
}

func New() *Store {
	return &Store{
		hotels:  make(map[int64]domain.Hotel),
		rooms:   make(map[int64]domain.Room),
		records: make(map[domain.CellKey]domain.InventoryRecord),
	}
}

// ---- seeding ----

func (s *Store) PutHotel(h domain.Hotel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hotels[h.ID] = h
}

func (s *Store) PutRoom(r domain.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[r.ID] = r
}

// ---- CatalogReader ----

func (s *Store) ListCandidateRooms(_ context.Context, q domain.CandidateQuery) ([]domain.RoomCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kw := strings.ToLower(strings.TrimSpace(q.Keyword))
	var out []domain.RoomCandidate
	for _, r := range s.rooms {
		h, ok := s.hotels[r.HotelID]
		if !ok || !h.Searchable() || !r.Active || r.MaxOccupancy < q.GuestCount {
			continue
		}
		if kw != "" && !strings.Contains(strings.ToLower(h.City), kw) && !strings.Contains(strings.ToLower(h.District), kw) {
			continue
		}
		out = append(out, domain.RoomCandidate{Room: r, Hotel: h})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Room.ID < out[j].Room.ID })
	return out, nil
}

func (s *Store) GetRoomCandidate(_ context.Context, roomID int64) (domain.RoomCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return domain.RoomCandidate{}, domain.ErrNotFound
	}
	h, ok := s.hotels[r.HotelID]
	if !ok {
		return domain.RoomCandidate{}, domain.ErrNotFound
	}
	return domain.RoomCandidate{Room: r, Hotel: h}, nil
}

func (s *Store) HotelFacilities(_ context.Context, hotelIDs []int64) (map[int64][]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64][]int64, len(hotelIDs))
	for _, id := range hotelIDs {
		if h, ok := s.hotels[id]; ok {
			out[id] = append([]int64(nil), h.FacilityIDs...)
		}
	}
	return out, nil
}

func (s *Store) ListOpenHotelIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []int64
	for id, h := range s.hotels {
		if h.Searchable() {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *Store) HotelRoomIDs(_ context.Context, hotelID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []int64
	for id, r := range s.rooms {
		if r.HotelID == hotelID {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// ---- InventoryStore ----

func (s *Store) UpsertInventory(_ context.Context, recs []domain.InventoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		if rec.TotalStock < 0 {
			return fmt.Errorf("room %d %s: negative stock", rec.RoomID, domain.DateKey(rec.Date))
		}
		k := domain.CellKey{RoomID: rec.RoomID, Date: domain.DateOf(rec.Date)}
		if prev, ok := s.records[k]; ok {
			rec.ID = prev.ID
		} else {
			s.nextRecID++
			rec.ID = s.nextRecID
		}
		rec.Date = k.Date
		s.records[k] = rec
	}
	return nil
}

func (s *Store) LoadCells(_ context.Context, roomIDs []int64, stay domain.StayWindow) (map[int64][]domain.Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reserved := s.activeByRecord()
	out := make(map[int64][]domain.Cell, len(roomIDs))
	for _, roomID := range roomIDs {
		for _, d := range stay.Dates() {
			rec, ok := s.records[domain.CellKey{RoomID: roomID, Date: d}]
			if !ok {
				continue
			}
			out[roomID] = append(out[roomID], domain.Cell{Record: rec, Reserved: reserved[rec.ID]})
		}
	}
	return out, nil
}

// activeByRecord sums ACTIVE line quantities; callers hold mu.
func (s *Store) activeByRecord() map[int64]int {
	out := make(map[int64]int)
	for _, l := range s.lines {
		if l.Status == domain.LineActive {
			out[l.InventoryID] += l.Quantity
		}
	}
	return out
}

// ---- ReservationStore ----

type tx struct {
	s       *Store
	pending []domain.ReservationLine
}

func (s *Store) WithinTx(ctx context.Context, fn func(domain.ReservationTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrReservationConflict, err)
	}
	t := &tx{s: s}
	if err := fn(t); err != nil {
		return err
	}
	s.lines = append(s.lines, t.pending...)
	return nil
}

func (t *tx) BookingExists(_ context.Context, bookingID string) (bool, error) {
	for _, l := range t.s.lines {
		if l.BookingID == bookingID {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) LockCells(_ context.Context, keys []domain.CellKey) (map[domain.CellKey]domain.Cell, error) {
	reserved := t.s.activeByRecord()
	out := make(map[domain.CellKey]domain.Cell, len(keys))
	for _, k := range keys {
		rec, ok := t.s.records[k]
		if !ok {
			continue
		}
		out[k] = domain.Cell{Record: rec, Reserved: reserved[rec.ID]}
	}
	return out, nil
}

func (t *tx) InsertLines(_ context.Context, lines []domain.ReservationLine) error {
	t.pending = append(t.pending, lines...)
	return nil
}

func (s *Store) Release(_ context.Context, bookingID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.lines {
		if s.lines[i].BookingID == bookingID && s.lines[i].Status == domain.LineActive {
			s.lines[i].Status = domain.LineCancelled
			n++
		}
	}
	return n, nil
}

func (s *Store) ListLines(_ context.Context, bookingID string) ([]domain.ReservationLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ReservationLine
	for _, l := range s.lines {
		if l.BookingID == bookingID {
			out = append(out, l)
		}
	}
	return out, nil
}

// ---- sync bookkeeping ----

type Miss struct {
	HotelID int64
	Status  int
	Reason  string
}

func (s *Store) LogMiss(_ context.Context, hotelID int64, status int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.misses = append(s.misses, Miss{HotelID: hotelID, Status: status, Reason: reason})
	return nil
}

func (s *Store) Misses() []Miss {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Miss(nil), s.misses...)
}
