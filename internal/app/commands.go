package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stayfinder/internal/adapters/observability"
	"stayfinder/internal/domain"
)

// SyncStore is what inventory sync writes to.
type SyncStore interface {
	domain.InventoryStore
	LogMiss(ctx context.Context, hotelID int64, status int, reason string) error
	HotelRoomIDs(ctx context.Context, hotelID int64) ([]int64, error)
}

// InventorySyncService pulls room calendars from hotel management and
// upserts them as inventory records.
type InventorySyncService struct {
	client domain.CatalogClient
	repo   SyncStore
	cache  domain.Cache
}

func NewInventorySyncService(c domain.CatalogClient, r SyncStore, cache domain.Cache) *InventorySyncService {
	return &InventorySyncService{client: c, repo: r, cache: cache}
}

// SyncHotel fetches [from, from+days) for one hotel. Unknown or forbidden
// hotels are recorded as misses and skipped; anything else is returned.
func (s *InventorySyncService) SyncHotel(ctx context.Context, hotelID int64, from time.Time, days int) (int, error) {
	if days <= 0 {
		return 0, fmt.Errorf("sync hotel %d: days must be positive", hotelID)
	}
	start := domain.DateOf(from)
	to := start.AddDate(0, 0, days)

	payload, err := s.client.GetCalendar(ctx, hotelID, domain.DateKey(start), domain.DateKey(to))
	if err != nil {
		if status, reason, ok := missOf(err); ok {
			_ = s.repo.LogMiss(ctx, hotelID, status, reason)
			return 0, nil
		}
		return 0, fmt.Errorf("fetch calendar for hotel %d: %w", hotelID, err)
	}

	roomIDs, err := s.repo.HotelRoomIDs(ctx, hotelID)
	if err != nil {
		return 0, fmt.Errorf("rooms of hotel %d: %w", hotelID, err)
	}
	owned := make(map[int64]bool, len(roomIDs))
	for _, id := range roomIDs {
		owned[id] = true
	}

	recs, skipped := mapCalendar(hotelID, payload, owned)
	if len(skipped) > 0 {
		_ = s.repo.LogMiss(ctx, hotelID, 422, fmt.Sprintf("%d calendar entries skipped", len(skipped)))
	}
	recs = inWindow(recs, start, to)
	if len(recs) == 0 {
		return 0, nil
	}
	if err := s.repo.UpsertInventory(ctx, recs); err != nil {
		return 0, fmt.Errorf("upsert inventory for hotel %d: %w", hotelID, err)
	}
	observability.InventoryUpserts.Add(float64(len(recs)))

	// new stock or prices change what search should show
	invalidateSearches(ctx, s.cache)
	return len(recs), nil
}

func inWindow(recs []domain.InventoryRecord, from, to time.Time) []domain.InventoryRecord {
	out := recs[:0]
	for _, r := range recs {
		if !r.Date.Before(from) && r.Date.Before(to) {
			out = append(out, r)
		}
	}
	return out
}

// missOf classifies client errors that mean "skip this hotel".
func missOf(err error) (int, string, bool) {
	low := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, domain.ErrNotFound) || strings.Contains(low, "not found"):
		return 404, "not found", true
	case strings.Contains(low, "403") || strings.Contains(low, "forbidden") ||
		strings.Contains(low, "401") || strings.Contains(low, "unauthorized"):
		return 403, "inactive", true
	}
	return 0, "", false
}
