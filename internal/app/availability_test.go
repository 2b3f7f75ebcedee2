package app_test

import (
	"context"
	"errors"
	"testing"

	"stayfinder/internal/app"
	"stayfinder/internal/domain"
)

func TestFindAvailableRooms(t *testing.T) {
	store := seedTaipei(t)
	f := app.NewAvailabilityFilter(store, store)
	ctx := context.Background()
	two := stay(t, nov(1), nov(3))

	cases := []struct {
		name     string
		guests   int
		quantity int
		want     []int64
	}{
		// 12 lacks Nov 2; 20 belongs to a closed hotel
		{"one unit", 2, 1, []int64{10, 11, 30}},
		{"two units", 2, 2, []int64{10, 30}},
		{"four guests", 4, 1, []int64{11}},
		{"more than stock", 1, 6, []int64{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.FindAvailableRooms(ctx, two, tc.guests, tc.quantity)
			if err != nil {
				t.Fatalf("err: %v", err)
			}
			if !equalIDs(got, tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestFindAvailableRooms_SingleNightIncludesPartialRoom(t *testing.T) {
	store := seedTaipei(t)
	f := app.NewAvailabilityFilter(store, store)

	got, err := f.FindAvailableRooms(context.Background(), stay(t, nov(1), nov(2)), 1, 1)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !equalIDs(got, []int64{10, 11, 12, 30}) {
		t.Fatalf("got %v", got)
	}
}

func TestFindAvailable_RejectsBadInput(t *testing.T) {
	store := seedTaipei(t)
	f := app.NewAvailabilityFilter(store, store)
	ctx := context.Background()

	if _, err := f.FindAvailable(ctx, domain.CandidateQuery{GuestCount: 0}, stay(t, nov(1), nov(2)), 1); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("guest 0: want invalid query, got %v", err)
	}
	if _, err := f.FindAvailable(ctx, domain.CandidateQuery{GuestCount: 1}, domain.StayWindow{CheckIn: nov(2), CheckOut: nov(2)}, 1); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("zero nights: want invalid query, got %v", err)
	}
}

func TestQualifies_MissingNightIsZeroStock(t *testing.T) {
	s := stay(t, nov(1), nov(3))
	cells := []domain.Cell{{Record: rec(1, nov(1), 5, "10")}}
	if app.Qualifies(cells, s, 1) {
		t.Fatalf("missing Nov 2 must not qualify")
	}
	cells = append(cells, domain.Cell{Record: rec(1, nov(2), 5, "10"), Reserved: 4})
	if !app.Qualifies(cells, s, 1) {
		t.Fatalf("one left on Nov 2 should qualify for 1")
	}
	if app.Qualifies(cells, s, 2) {
		t.Fatalf("one left on Nov 2 must not qualify for 2")
	}
}
