package app_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"stayfinder/internal/app"
	"stayfinder/internal/domain"
)

func offers() []domain.Offer {
	mk := func(room, hotel int64, price string, occ, star int, typ int64) domain.Offer {
		return domain.Offer{RoomID: room, HotelID: hotel, PerStayPrice: decimal.RequireFromString(price), MaxOccupancy: occ, StarRating: star, HotelTypeID: typ}
	}
	return []domain.Offer{
		mk(5, 1, "300", 2, 4, 1),
		mk(1, 1, "100", 2, 4, 1),
		mk(4, 2, "250", 4, 5, 2),
		mk(2, 3, "100", 3, 3, 1),
		mk(3, 2, "500", 2, 5, 2),
	}
}

func TestRank_PagesAreDisjointAndComplete(t *testing.T) {
	r := app.NewSearchRanker()
	s := domain.Sort{Key: domain.SortByMaxOccupancy}

	seen := map[int64]bool{}
	for page := 0; page < 3; page++ {
		p := r.Rank(offers(), domain.RankFilters{}, s, domain.PageRequest{Page: page, Size: 2})
		if p.Total != 5 || p.TotalPages != 3 {
			t.Fatalf("page %d: total=%d pages=%d", page, p.Total, p.TotalPages)
		}
		for _, o := range p.Items {
			if seen[o.RoomID] {
				t.Fatalf("room %d appeared twice", o.RoomID)
			}
			seen[o.RoomID] = true
		}
	}
	if len(seen) != 5 {
		t.Fatalf("saw %d rooms, want 5", len(seen))
	}

	past := r.Rank(offers(), domain.RankFilters{}, s, domain.PageRequest{Page: 9, Size: 2})
	if past.Items == nil || len(past.Items) != 0 {
		t.Fatalf("page past the end should be empty, got %+v", past.Items)
	}
}

func TestRank_SortTieBreakByRoomID(t *testing.T) {
	r := app.NewSearchRanker()

	asc := r.Rank(offers(), domain.RankFilters{}, domain.Sort{Key: domain.SortByPrice}, domain.PageRequest{Size: 10})
	if got := roomIDs(asc.Items); !equalIDs(got, []int64{1, 2, 4, 5, 3}) {
		t.Fatalf("price asc: %v", got)
	}
	desc := r.Rank(offers(), domain.RankFilters{}, domain.Sort{Key: domain.SortByPrice, Desc: true}, domain.PageRequest{Size: 10})
	if got := roomIDs(desc.Items); !equalIDs(got, []int64{3, 5, 4, 1, 2}) {
		t.Fatalf("price desc: %v", got)
	}
}

func TestRank_Filters(t *testing.T) {
	r := app.NewSearchRanker()
	five := 5

	cases := []struct {
		name string
		f    domain.RankFilters
		want []int64
	}{
		{"price range inclusive", domain.RankFilters{MinPrice: dec("100"), MaxPrice: dec("250")}, []int64{1, 2, 4}},
		{"star rating", domain.RankFilters{StarRating: &five}, []int64{3, 4}},
		{"hotel type", domain.RankFilters{HotelTypes: []int64{2}}, []int64{3, 4}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := r.Rank(offers(), tc.f, domain.Sort{Key: domain.SortByHotel}, domain.PageRequest{Size: 10})
			got := roomIDs(p.Items)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v want set %v", got, tc.want)
			}
			want := map[int64]bool{}
			for _, id := range tc.want {
				want[id] = true
			}
			for _, id := range got {
				if !want[id] {
					t.Fatalf("unexpected room %d in %v", id, got)
				}
			}
		})
	}
}

func TestRank_HugePageIsEmptyNotPanic(t *testing.T) {
	r := app.NewSearchRanker()
	for _, page := range []int{3, 922337203685477581, int(^uint(0) >> 1)} {
		p := r.Rank(offers(), domain.RankFilters{}, domain.Sort{Key: domain.SortByPrice}, domain.PageRequest{Page: page, Size: 10})
		if p.Items == nil || len(p.Items) != 0 || p.Total != 5 || p.TotalPages != 1 {
			t.Fatalf("page %d: %+v", page, p)
		}
	}
}
