package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"stayfinder/internal/app"
	"stayfinder/internal/domain"
)

func taipeiRequest() domain.SearchRequest {
	req := domain.NewSearchRequest()
	req.Keyword = "Taipei"
	req.GuestNumber = 2
	req.SortBy = domain.SortByPrice
	req.SetCheckIn(nov(1))
	req.SetCheckOut(nov(3))
	return req
}

func TestSearch_TaipeiSkipsClosedHotelAndIncompleteRooms(t *testing.T) {
	store := seedTaipei(t)
	svc := app.NewSearchService(store, store, nil, 0, 2)

	page, err := svc.Search(context.Background(), taipeiRequest())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if got := roomIDs(page.Items); !equalIDs(got, []int64{10, 11}) {
		t.Fatalf("got rooms %v want [10 11]", got)
	}
	first := page.Items[0]
	if !first.PerStayPrice.Equal(*dec("250")) || first.Night != 2 || first.Remaining != 3 || first.City != "Taipei" {
		t.Fatalf("unexpected offer: %+v", first)
	}
}

func TestSearch_FiltersAndQuantity(t *testing.T) {
	store := seedTaipei(t)
	svc := app.NewSearchService(store, store, nil, 0, 2)
	ctx := context.Background()

	req := taipeiRequest()
	req.Quantity = 2
	page, err := svc.Search(ctx, req)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if got := roomIDs(page.Items); !equalIDs(got, []int64{10}) {
		t.Fatalf("quantity 2: got %v", got)
	}

	req = taipeiRequest()
	req.MaxPrice = dec("300")
	page, _ = svc.Search(ctx, req)
	if got := roomIDs(page.Items); !equalIDs(got, []int64{10}) {
		t.Fatalf("maxPrice 300: got %v", got)
	}

	req = taipeiRequest()
	req.Keyword = ""
	req.Facilities = []int64{1, 2}
	page, _ = svc.Search(ctx, req)
	if got := roomIDs(page.Items); !equalIDs(got, []int64{10, 11}) {
		t.Fatalf("facilities 1,2: got %v", got)
	}
}

func TestSearch_Validation(t *testing.T) {
	store := seedTaipei(t)
	svc := app.NewSearchService(store, store, nil, 0, 2)
	ctx := context.Background()

	req := taipeiRequest()
	req.SetCheckOut(nov(1))
	_, err := svc.Search(ctx, req)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want validation error, got %v", err)
	}
	if _, ok := verr.Fields["night"]; !ok {
		t.Fatalf("want night field error, got %v", verr.Fields)
	}

	req = taipeiRequest()
	req.SortBy = "cheapest"
	if _, err := svc.Search(ctx, req); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("bad sortBy: want invalid query, got %v", err)
	}

	req = taipeiRequest()
	req.MinPrice, req.MaxPrice = dec("500"), dec("100")
	if _, err := svc.Search(ctx, req); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("min > max: want invalid query, got %v", err)
	}
}

func TestSearch_RejectsOversizedStayAndPage(t *testing.T) {
	store := seedTaipei(t)
	svc := app.NewSearchService(store, store, nil, 0, 2)
	ctx := context.Background()

	req := taipeiRequest()
	req.SetCheckOut(time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC))
	_, err := svc.Search(ctx, req)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Fields["night"] == "" {
		t.Fatalf("long stay: want night error, got %v", err)
	}

	req = taipeiRequest()
	req.Page = 922337203685477581
	if _, err := svc.Search(ctx, req); !errors.As(err, &verr) || verr.Fields["page"] == "" {
		t.Fatalf("huge page: want page error, got %v", err)
	}

	req = taipeiRequest()
	req.Page = domain.MaxPage
	page, err := svc.Search(ctx, req)
	if err != nil || len(page.Items) != 0 || page.Total != 2 {
		t.Fatalf("last allowed page: %+v err=%v", page, err)
	}
}

func TestSearch_CacheHitThenInvalidate(t *testing.T) {
	store := seedTaipei(t)
	cache := &fakeCache{}
	svc := app.NewSearchService(store, store, cache, time.Minute, 2)
	ctx := context.Background()

	if _, err := svc.Search(ctx, taipeiRequest()); err != nil {
		t.Fatalf("err: %v", err)
	}

	// take room 11 offline in storage; the cached page still shows it
	store.PutRoom(domain.Room{ID: 11, HotelID: 1, MaxOccupancy: 4, Active: false})
	page, err := svc.Search(ctx, taipeiRequest())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if got := roomIDs(page.Items); !equalIDs(got, []int64{10, 11}) {
		t.Fatalf("expected cached page, got %v", got)
	}

	svc.Invalidate(ctx)
	page, err = svc.Search(ctx, taipeiRequest())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if got := roomIDs(page.Items); !equalIDs(got, []int64{10}) {
		t.Fatalf("expected fresh page after invalidation, got %v", got)
	}
}

func TestQuoteRoom(t *testing.T) {
	store := seedTaipei(t)
	svc := app.NewSearchService(store, store, nil, 0, 2)
	ctx := context.Background()

	o, err := svc.QuoteRoom(ctx, 10, stay(t, nov(1), nov(3)))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !o.PerStayPrice.Equal(*dec("250")) || o.HotelID != 1 {
		t.Fatalf("unexpected offer: %+v", o)
	}

	if _, err := svc.QuoteRoom(ctx, 20, stay(t, nov(1), nov(3))); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("closed hotel: want not found, got %v", err)
	}
	if _, err := svc.QuoteRoom(ctx, 999, stay(t, nov(1), nov(3))); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown room: want not found, got %v", err)
	}
	if _, err := svc.QuoteRoom(ctx, 12, stay(t, nov(1), nov(3))); !errors.Is(err, domain.ErrIncompleteInventory) {
		t.Fatalf("room 12: want incomplete inventory, got %v", err)
	}
}
