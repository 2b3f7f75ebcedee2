package app

import (
	"context"
	"fmt"

	"stayfinder/internal/domain"
)

type FacilityMatcher struct {
	catalog domain.CatalogReader
}

func NewFacilityMatcher(c domain.CatalogReader) *FacilityMatcher {
	return &FacilityMatcher{catalog: c}
}

// FilterByFacilities keeps the hotels whose facility set is a superset of
// required. Input order is preserved; an empty required set passes everything.
func (m *FacilityMatcher) FilterByFacilities(ctx context.Context, hotelIDs, required []int64) ([]int64, error) {
	req := uniqueIDs(required)
	if len(req) == 0 || len(hotelIDs) == 0 {
		return hotelIDs, nil
	}
	have, err := m.catalog.HotelFacilities(ctx, uniqueIDs(hotelIDs))
	if err != nil {
		return nil, fmt.Errorf("hotel facilities: %w", err)
	}
	out := make([]int64, 0, len(hotelIDs))
	for _, id := range hotelIDs {
		if HasAllFacilities(have[id], req) {
			out = append(out, id)
		}
	}
	return out, nil
}

// HasAllFacilities is the set-intersection cardinality check
// |have ∩ required| == |required|. required must be free of duplicates.
func HasAllFacilities(have, required []int64) bool {
	set := make(map[int64]struct{}, len(have))
	for _, f := range have {
		set[f] = struct{}{}
	}
	matched := 0
	for _, f := range required {
		if _, ok := set[f]; ok {
			matched++
		}
	}
	return matched == len(required)
}

func uniqueIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
