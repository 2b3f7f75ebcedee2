package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SortKey string

const (
	SortByPrice        SortKey = "price"
	SortByMaxOccupancy SortKey = "maxOccupancy"
	SortByStarRating   SortKey = "starRating"
	SortByRemaining    SortKey = "remaining"
	SortByHotel        SortKey = "hotelId"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	MaxPage         = 100000
)

// SearchRequest is the query-layer search shape. Night is derived and kept in
// step by SetCheckIn/SetCheckOut.
type SearchRequest struct {
	Keyword      string           `json:"keyword" validate:"max=100"`
	CheckInDate  time.Time        `json:"checkInDate" validate:"required"`
	CheckOutDate time.Time        `json:"checkOutDate" validate:"required"`
	GuestNumber  int              `json:"guestNumber" validate:"min=1"`
	Quantity     int              `json:"quantity" validate:"min=0,max=20"`
	MinPrice     *decimal.Decimal `json:"minPrice,omitempty"`
	MaxPrice     *decimal.Decimal `json:"maxPrice,omitempty"`
	HotelTypes   []int64          `json:"hotelTypes,omitempty" validate:"dive,gt=0"`
	Facilities   []int64          `json:"facilities,omitempty" validate:"dive,gt=0"`
	StarRating   *int             `json:"starRating,omitempty" validate:"omitempty,min=1,max=5"`
	Page         int              `json:"page" validate:"min=0,max=100000"`
	Size         int              `json:"size" validate:"min=1,max=100"`
	SortBy       SortKey          `json:"sortBy" validate:"oneof=price maxOccupancy starRating remaining hotelId"`
	SortOrder    string           `json:"sortOrder" validate:"oneof=asc desc"`
	Night        int              `json:"night"`
}

// NewSearchRequest returns a request with the documented defaults.
func NewSearchRequest() SearchRequest {
	return SearchRequest{
		GuestNumber: 1,
		Quantity:    1,
		Size:        DefaultPageSize,
		SortBy:      SortByMaxOccupancy,
		SortOrder:   "asc",
	}
}

func (r *SearchRequest) SetCheckIn(t time.Time) {
	r.CheckInDate = DateOf(t)
	r.recomputeNight()
}

func (r *SearchRequest) SetCheckOut(t time.Time) {
	r.CheckOutDate = DateOf(t)
	r.recomputeNight()
}

func (r *SearchRequest) recomputeNight() {
	if r.CheckInDate.IsZero() || r.CheckOutDate.IsZero() {
		r.Night = 0
		return
	}
	r.Night = NightsBetween(r.CheckInDate, r.CheckOutDate)
}

func (r SearchRequest) Stay() (StayWindow, error) {
	return NewStayWindow(r.CheckInDate, r.CheckOutDate)
}

// Quote is the aggregated price and binding capacity of one room for a stay.
type Quote struct {
	RoomID              int64           `json:"roomId"`
	PerStayPrice        decimal.Decimal `json:"perStayPrice"`
	MinNightlyRemaining int             `json:"minNightlyRemaining"`
	Nights              int             `json:"night"`
}

// Offer is one rankable search result.
type Offer struct {
	HotelID      int64           `json:"hotelId"`
	HotelName    string          `json:"hotelName"`
	City         string          `json:"city"`
	District     string          `json:"district"`
	Address      string          `json:"address"`
	HotelTypeID  int64           `json:"hotelTypeId"`
	StarRating   int             `json:"starRating"`
	RoomID       int64           `json:"roomId"`
	RoomType     string          `json:"roomType"`
	BedType      string          `json:"bedType"`
	MaxOccupancy int             `json:"maxOccupancy"`
	PerStayPrice decimal.Decimal `json:"perStayPrice"`
	Night        int             `json:"night"`
	Remaining    int             `json:"remaining"`
}

func NewOffer(c RoomCandidate, q Quote) Offer {
	return Offer{
		HotelID:      c.Hotel.ID,
		HotelName:    c.Hotel.Name,
		City:         c.Hotel.City,
		District:     c.Hotel.District,
		Address:      c.Hotel.Address,
		HotelTypeID:  c.Hotel.HotelTypeID,
		StarRating:   c.Hotel.StarRating,
		RoomID:       c.Room.ID,
		RoomType:     c.Room.RoomType,
		BedType:      c.Room.BedType,
		MaxOccupancy: c.Room.MaxOccupancy,
		PerStayPrice: q.PerStayPrice,
		Night:        q.Nights,
		Remaining:    q.MinNightlyRemaining,
	}
}

type RankFilters struct {
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	StarRating *int
	HotelTypes []int64
}

type Sort struct {
	Key  SortKey
	Desc bool
}

type PageRequest struct {
	Page int
	Size int
}

type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	Size       int `json:"size"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}
