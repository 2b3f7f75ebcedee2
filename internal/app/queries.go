package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"stayfinder/internal/adapters/observability"
	"stayfinder/internal/domain"
)

// searchGenKey is bumped whenever inventory or reservations change so cached
// pages from before the change are never read again.
const searchGenKey = "search:gen"

type SearchService struct {
	catalog  domain.CatalogReader
	avail    *AvailabilityFilter
	fac      *FacilityMatcher
	price    *PriceAggregator
	ranker   SearchRanker
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewSearchService(c domain.CatalogReader, inv domain.InventoryStore, cache domain.Cache, ttl time.Duration, workers int) *SearchService {
	return &SearchService{
		catalog:  c,
		avail:    NewAvailabilityFilter(c, inv),
		fac:      NewFacilityMatcher(c),
		price:    NewPriceAggregator(inv, workers),
		ranker:   NewSearchRanker(),
		cache:    cache,
		cacheTTL: ttl,
	}
}

func (s *SearchService) Search(ctx context.Context, req domain.SearchRequest) (domain.Page[domain.Offer], error) {
	start := time.Now()
	page, cached, err := s.search(ctx, req)
	observability.ObserveSearch(outcome(err, cached), len(page.Items), time.Since(start))
	return page, err
}

func (s *SearchService) search(ctx context.Context, req domain.SearchRequest) (domain.Page[domain.Offer], bool, error) {
	req = normalize(req)
	if err := ValidateSearch(req); err != nil {
		return domain.Page[domain.Offer]{}, false, err
	}
	stay, err := req.Stay()
	if err != nil {
		return domain.Page[domain.Offer]{}, false, err
	}

	key := s.cacheKey(ctx, req)
	var out domain.Page[domain.Offer]
	if key != "" {
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			return out, true, nil
		}
	}

	cands, err := s.avail.FindAvailable(ctx, domain.CandidateQuery{Keyword: req.Keyword, GuestCount: req.GuestNumber}, stay, req.Quantity)
	if err != nil {
		return domain.Page[domain.Offer]{}, false, err
	}

	cands, err = s.withFacilities(ctx, cands, req.Facilities)
	if err != nil {
		return domain.Page[domain.Offer]{}, false, err
	}

	roomIDs := make([]int64, len(cands))
	for i, c := range cands {
		roomIDs[i] = c.Room.ID
	}
	quotes, err := s.price.AggregateAll(ctx, roomIDs, stay)
	if err != nil {
		return domain.Page[domain.Offer]{}, false, err
	}

	offers := make([]domain.Offer, 0, len(cands))
	for _, c := range cands {
		q, ok := quotes[c.Room.ID]
		// inventory can move between the two reads; the second one wins
		if !ok || q.MinNightlyRemaining < req.Quantity {
			continue
		}
		offers = append(offers, domain.NewOffer(c, q))
	}

	out = s.ranker.Rank(offers,
		domain.RankFilters{MinPrice: req.MinPrice, MaxPrice: req.MaxPrice, StarRating: req.StarRating, HotelTypes: req.HotelTypes},
		domain.Sort{Key: req.SortBy, Desc: req.SortOrder == "desc"},
		domain.PageRequest{Page: req.Page, Size: req.Size},
	)

	if key != "" {
		_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	}
	log.Debug().
		Str("keyword", req.Keyword).
		Str("check_in", domain.DateKey(req.CheckInDate)).
		Int("night", req.Night).
		Int("candidates", len(cands)).
		Int("total", out.Total).
		Msg("search done")
	return out, false, nil
}

func (s *SearchService) withFacilities(ctx context.Context, cands []domain.RoomCandidate, required []int64) ([]domain.RoomCandidate, error) {
	if len(required) == 0 || len(cands) == 0 {
		return cands, nil
	}
	hotelIDs := make([]int64, 0, len(cands))
	for _, c := range cands {
		hotelIDs = append(hotelIDs, c.Hotel.ID)
	}
	ok, err := s.fac.FilterByFacilities(ctx, uniqueIDs(hotelIDs), required)
	if err != nil {
		return nil, err
	}
	allowed := make(map[int64]struct{}, len(ok))
	for _, id := range ok {
		allowed[id] = struct{}{}
	}
	out := cands[:0:0]
	for _, c := range cands {
		if _, keep := allowed[c.Hotel.ID]; keep {
			out = append(out, c)
		}
	}
	return out, nil
}

// QuoteRoom prices a single searchable room for the stay.
func (s *SearchService) QuoteRoom(ctx context.Context, roomID int64, stay domain.StayWindow) (domain.Offer, error) {
	c, err := s.catalog.GetRoomCandidate(ctx, roomID)
	if err != nil {
		return domain.Offer{}, err
	}
	if !c.Room.Active || !c.Hotel.Searchable() {
		return domain.Offer{}, domain.ErrNotFound
	}
	q, err := s.price.Aggregate(ctx, roomID, stay)
	if err != nil {
		return domain.Offer{}, err
	}
	return domain.NewOffer(c, q), nil
}

// Invalidate retires every cached search page.
func (s *SearchService) Invalidate(ctx context.Context) {
	invalidateSearches(ctx, s.cache)
}

func invalidateSearches(ctx context.Context, cache domain.Cache) {
	if cache == nil {
		return
	}
	if _, err := cache.Incr(ctx, searchGenKey); err != nil {
		log.Warn().Err(err).Msg("search cache invalidation failed")
	}
}

func (s *SearchService) cacheKey(ctx context.Context, req domain.SearchRequest) string {
	if s.cache == nil || s.cacheTTL <= 0 {
		return ""
	}
	var gen int64
	if _, err := s.cache.Get(ctx, searchGenKey, &gen); err != nil {
		return ""
	}
	b, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	sum := sha1.Sum(b)
	return fmt.Sprintf("search:%d:%s", gen, hex.EncodeToString(sum[:]))
}

func normalize(req domain.SearchRequest) domain.SearchRequest {
	req.Keyword = strings.TrimSpace(req.Keyword)
	req.SortOrder = strings.ToLower(strings.TrimSpace(req.SortOrder))
	if req.SortOrder == "" {
		req.SortOrder = "asc"
	}
	if req.SortBy == "" {
		req.SortBy = domain.SortByMaxOccupancy
	}
	if req.Size == 0 {
		req.Size = domain.DefaultPageSize
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	req.Facilities = uniqueIDs(req.Facilities)
	req.SetCheckIn(req.CheckInDate)
	req.SetCheckOut(req.CheckOutDate)
	return req
}

func outcome(err error, cached bool) string {
	switch {
	case err == nil && cached:
		return "cache_hit"
	case err == nil:
		return "ok"
	case isValidation(err):
		return "invalid"
	default:
		return "error"
	}
}
