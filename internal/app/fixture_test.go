package app_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stayfinder/internal/domain"
	"stayfinder/internal/storage/memory"
)

// ---- fakes ----

// fakeCache round-trips through JSON the way the redis adapter does.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	gets  int
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

func (c *fakeCache) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	if b, ok := c.store[key]; ok {
		_ = json.Unmarshal(b, &n)
	}
	n++
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	c.store[key], _ = json.Marshal(n)
	return n, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	keys   []string
	events []domain.ReservationEvent
}

func (p *fakePublisher) PublishJSON(ctx context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	if ev, ok := v.(domain.ReservationEvent); ok {
		p.events = append(p.events, ev)
	}
	return nil
}

// ---- fixture ----

// Taipei has one open hotel (1) and one closed hotel (2); Tainan has hotel 3.
//
//	room 10 (hotel 1, 2 guests): Nov 1 100 / Nov 2 150, stock 3
//	room 11 (hotel 1, 4 guests): Nov 1 200 / Nov 2 200, stock 1
//	room 12 (hotel 1, 2 guests): Nov 1 only, stock 5
//	room 20 (hotel 2, 2 guests): both nights, stock 5
//	room 30 (hotel 3, 2 guests): both nights, stock 5
func seedTaipei(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	s.PutHotel(domain.Hotel{ID: 1, Name: "Da'an Inn", City: "Taipei", District: "Da'an", HotelTypeID: 1, StarRating: 4, BusinessOpen: true, Active: true, FacilityIDs: []int64{1, 2, 3}})
	s.PutHotel(domain.Hotel{ID: 2, Name: "Xinyi Tower", City: "Taipei", District: "Xinyi", HotelTypeID: 2, StarRating: 5, BusinessOpen: false, Active: true, FacilityIDs: []int64{1, 2, 3}})
	s.PutHotel(domain.Hotel{ID: 3, Name: "Anping House", City: "Tainan", District: "Anping", HotelTypeID: 1, StarRating: 3, BusinessOpen: true, Active: true, FacilityIDs: []int64{1, 3}})

	s.PutRoom(domain.Room{ID: 10, HotelID: 1, RoomType: "Double", BedType: "Queen", MaxOccupancy: 2, Active: true})
	s.PutRoom(domain.Room{ID: 11, HotelID: 1, RoomType: "Family", BedType: "Twin", MaxOccupancy: 4, Active: true})
	s.PutRoom(domain.Room{ID: 12, HotelID: 1, RoomType: "Single", BedType: "Single", MaxOccupancy: 2, Active: true})
	s.PutRoom(domain.Room{ID: 20, HotelID: 2, RoomType: "Suite", BedType: "King", MaxOccupancy: 2, Active: true})
	s.PutRoom(domain.Room{ID: 30, HotelID: 3, RoomType: "Double", BedType: "Queen", MaxOccupancy: 2, Active: true})

	recs := []domain.InventoryRecord{
		rec(10, nov(1), 3, "100"), rec(10, nov(2), 3, "150"),
		rec(11, nov(1), 1, "200"), rec(11, nov(2), 1, "200"),
		rec(12, nov(1), 5, "80"),
		rec(20, nov(1), 5, "300"), rec(20, nov(2), 5, "300"),
		rec(30, nov(1), 5, "90"), rec(30, nov(2), 5, "90"),
	}
	if err := s.UpsertInventory(context.Background(), recs); err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	return s
}

func nov(day int) time.Time { return time.Date(2026, time.November, day, 0, 0, 0, 0, time.UTC) }

func rec(roomID int64, d time.Time, stock int, price string) domain.InventoryRecord {
	return domain.InventoryRecord{RoomID: roomID, Date: d, TotalStock: stock, NightlyPrice: decimal.RequireFromString(price)}
}

func stay(t *testing.T, in, out time.Time) domain.StayWindow {
	t.Helper()
	s, err := domain.NewStayWindow(in, out)
	if err != nil {
		t.Fatalf("stay: %v", err)
	}
	return s
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func roomIDs(offers []domain.Offer) []int64 {
	out := make([]int64, len(offers))
	for i, o := range offers {
		out[i] = o.RoomID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
