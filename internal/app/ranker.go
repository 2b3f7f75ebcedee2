package app

import (
	"cmp"
	"slices"

	"stayfinder/internal/domain"
)

// SearchRanker filters, orders and pages offers. It holds no state.
type SearchRanker struct{}

func NewSearchRanker() SearchRanker { return SearchRanker{} }

func (SearchRanker) Rank(offers []domain.Offer, f domain.RankFilters, s domain.Sort, p domain.PageRequest) domain.Page[domain.Offer] {
	kept := make([]domain.Offer, 0, len(offers))
	for _, o := range offers {
		if passes(o, f) {
			kept = append(kept, o)
		}
	}

	by := comparator(s.Key)
	slices.SortStableFunc(kept, func(a, b domain.Offer) int {
		c := by(a, b)
		if s.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		// stable secondary keys so pages never overlap between requests
		if c = cmp.Compare(a.RoomID, b.RoomID); c != 0 {
			return c
		}
		return cmp.Compare(a.HotelID, b.HotelID)
	})

	return paginate(kept, p)
}

func passes(o domain.Offer, f domain.RankFilters) bool {
	if f.MinPrice != nil && o.PerStayPrice.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && o.PerStayPrice.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.StarRating != nil && o.StarRating != *f.StarRating {
		return false
	}
	if len(f.HotelTypes) > 0 && !slices.Contains(f.HotelTypes, o.HotelTypeID) {
		return false
	}
	return true
}

func comparator(k domain.SortKey) func(a, b domain.Offer) int {
	switch k {
	case domain.SortByPrice:
		return func(a, b domain.Offer) int { return a.PerStayPrice.Cmp(b.PerStayPrice) }
	case domain.SortByStarRating:
		return func(a, b domain.Offer) int { return cmp.Compare(a.StarRating, b.StarRating) }
	case domain.SortByRemaining:
		return func(a, b domain.Offer) int { return cmp.Compare(a.Remaining, b.Remaining) }
	case domain.SortByHotel:
		return func(a, b domain.Offer) int { return cmp.Compare(a.HotelID, b.HotelID) }
	default:
		return func(a, b domain.Offer) int { return cmp.Compare(a.MaxOccupancy, b.MaxOccupancy) }
	}
}

func paginate[T any](items []T, p domain.PageRequest) domain.Page[T] {
	size := p.Size
	if size <= 0 {
		size = domain.DefaultPageSize
	}
	page := max(p.Page, 0)
	total := len(items)
	out := domain.Page[T]{
		Items:      []T{},
		Page:       page,
		Size:       size,
		Total:      total,
		TotalPages: (total + size - 1) / size,
	}
	// checked before multiplying so a huge page number cannot overflow
	if page > total/size {
		return out
	}
	start := page * size
	if start >= total {
		return out
	}
	end := min(start+size, total)
	out.Items = append(out.Items, items[start:end]...)
	return out
}
