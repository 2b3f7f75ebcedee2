package domain

type Hotel struct {
	ID           int64
	Name         string
	City         string
	District     string
	Address      string
	HotelTypeID  int64
	StarRating   int
	BusinessOpen bool // closed hotels are never searchable
	Active       bool
	FacilityIDs  []int64
}

// Searchable reports whether the hotel may appear in search results at all.
func (h Hotel) Searchable() bool { return h.Active && h.BusinessOpen }

type Room struct {
	ID           int64
	HotelID      int64
	RoomType     string
	BedType      string
	MaxOccupancy int
	Active       bool
}

// RoomCandidate is a room joined with the hotel fields search needs.
type RoomCandidate struct {
	Room  Room
	Hotel Hotel
}

type CandidateQuery struct {
	Keyword    string // matched against city and district
	GuestCount int
}
