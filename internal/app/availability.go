package app

import (
	"context"
	"fmt"

	"stayfinder/internal/domain"
)

type AvailabilityFilter struct {
	catalog   domain.CatalogReader
	inventory domain.InventoryStore
}

func NewAvailabilityFilter(c domain.CatalogReader, inv domain.InventoryStore) *AvailabilityFilter {
	return &AvailabilityFilter{catalog: c, inventory: inv}
}

// FindAvailableRooms returns the ids of rooms that can host guestCount guests
// with at least quantity units free on every night of the stay.
func (f *AvailabilityFilter) FindAvailableRooms(ctx context.Context, stay domain.StayWindow, guestCount, quantity int) ([]int64, error) {
	cands, err := f.FindAvailable(ctx, domain.CandidateQuery{GuestCount: guestCount}, stay, quantity)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(cands))
	for i, c := range cands {
		ids[i] = c.Room.ID
	}
	return ids, nil
}

// FindAvailable is FindAvailableRooms with a keyword and the joined hotel data
// kept, which is what search needs downstream.
func (f *AvailabilityFilter) FindAvailable(ctx context.Context, q domain.CandidateQuery, stay domain.StayWindow, quantity int) ([]domain.RoomCandidate, error) {
	if stay.Nights() <= 0 {
		return nil, domain.NewValidationError("night", "stay must cover at least one night")
	}
	if q.GuestCount < 1 {
		return nil, domain.NewValidationError("guestNumber", "must be at least 1")
	}
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return nil, domain.NewValidationError("quantity", "must be at least 1")
	}

	// closed hotels and undersized rooms are already gone at this point
	cands, err := f.catalog.ListCandidateRooms(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list candidate rooms: %w", err)
	}
	if len(cands) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(cands))
	for i, c := range cands {
		ids[i] = c.Room.ID
	}
	cells, err := f.inventory.LoadCells(ctx, ids, stay)
	if err != nil {
		return nil, fmt.Errorf("load inventory cells: %w", err)
	}

	out := make([]domain.RoomCandidate, 0, len(cands))
	for _, c := range cands {
		if Qualifies(cells[c.Room.ID], stay, quantity) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Qualifies reports whether every night of the stay has a record with at
// least quantity remaining. A missing night counts as zero stock.
func Qualifies(cells []domain.Cell, stay domain.StayWindow, quantity int) bool {
	byDate := domain.CellsByDate(cells)
	for _, d := range stay.Dates() {
		c, ok := byDate[domain.DateKey(d)]
		if !ok || c.Remaining() < quantity {
			return false
		}
	}
	return true
}
