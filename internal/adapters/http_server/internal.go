package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"stayfinder/internal/app"
	"stayfinder/internal/domain"
)

// InternalHandlers serves the booking workflow. Mount them on NewInternal only.
type InternalHandlers struct {
	R *app.ReservationCoordinator
}

type reserveItem struct {
	RoomID   int64  `json:"roomId"`
	Date     string `json:"date"`
	Quantity int    `json:"quantity"`
}

type reserveRequest struct {
	BookingID string        `json:"bookingId"`
	Items     []reserveItem `json:"items"`
}

type lineDTO struct {
	BookingID   string          `json:"bookingId"`
	InventoryID int64           `json:"inventoryId"`
	RoomID      int64           `json:"roomId"`
	Date        string          `json:"date"`
	Quantity    int             `json:"quantity"`
	LockedPrice decimal.Decimal `json:"lockedPrice"`
	Status      string          `json:"status"`
}

type reservationResponse struct {
	BookingID string    `json:"bookingId"`
	Lines     []lineDTO `json:"lines"`
}

func (s *Server) MountInternal(h *InternalHandlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Route("/internal/v1/reservations", func(r chi.Router) {
		r.Post("/", h.reserve)
		r.Get("/{bookingID}", h.lines)
		r.Delete("/{bookingID}", h.release)
	})
}

func toDTO(bookingID string, lines []domain.ReservationLine) reservationResponse {
	out := reservationResponse{BookingID: bookingID, Lines: make([]lineDTO, len(lines))}
	for i, l := range lines {
		out.Lines[i] = lineDTO{
			BookingID:   l.BookingID,
			InventoryID: l.InventoryID,
			RoomID:      l.RoomID,
			Date:        domain.DateKey(l.Date),
			Quantity:    l.Quantity,
			LockedPrice: l.LockedPrice,
			Status:      string(l.Status),
		}
	}
	return out
}

func bookingID(raw string, verr *domain.ValidationError) string {
	id, err := uuid.Parse(raw)
	if err != nil {
		verr.Add("bookingId", "must be a UUID")
		return ""
	}
	return id.String()
}

func (h *InternalHandlers) reserve(w http.ResponseWriter, r *http.Request) {
	var body reserveRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error(), nil)
		return
	}

	verr := &domain.ValidationError{}
	id := bookingID(body.BookingID, verr)
	items := make([]domain.LineItem, 0, len(body.Items))
	for i, it := range body.Items {
		d, err := domain.ParseDate(it.Date)
		if err != nil {
			verr.Add(fmt.Sprintf("items[%d].date", i), "must be a date in YYYY-MM-DD format")
			continue
		}
		items = append(items, domain.LineItem{RoomID: it.RoomID, Date: d, Quantity: it.Quantity})
	}
	if verr.Len() > 0 {
		writeError(w, r, verr)
		return
	}

	lines, err := h.R.Reserve(r.Context(), id, items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toDTO(id, lines))
}

func (h *InternalHandlers) release(w http.ResponseWriter, r *http.Request) {
	verr := &domain.ValidationError{}
	id := bookingID(chi.URLParam(r, "bookingID"), verr)
	if verr.Len() > 0 {
		writeError(w, r, verr)
		return
	}
	if _, err := h.R.Release(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InternalHandlers) lines(w http.ResponseWriter, r *http.Request) {
	verr := &domain.ValidationError{}
	id := bookingID(chi.URLParam(r, "bookingID"), verr)
	if verr.Len() > 0 {
		writeError(w, r, verr)
		return
	}
	lines, err := h.R.Lines(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(lines) == 0 {
		writeError(w, r, domain.ErrNotFound)
		return
	}
	writeJSON(w, r, toDTO(id, lines))
}
