package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"stayfinder/internal/app"
	"stayfinder/internal/domain"
)

// Handlers serves the public, read-only API.
type Handlers struct {
	Search *app.SearchService
	// Ready is checked by /healthz; nil means always ready.
	Ready func(ctx context.Context) error
}

type problem struct {
	Type   string                `json:"type"`
	Title  string                `json:"title"`
	Status int                   `json:"status"`
	Detail string                `json:"detail,omitempty"`
	Errors map[string]string     `json:"errors,omitempty"`
	Cells  []domain.CellShortage `json:"cells,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", h.healthz)
	s.mux.Get("/v1/search", h.search)
	s.mux.Get("/v1/rooms/{id}/quote", h.quote)
}

func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if h.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ready(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Unavailable", err.Error(), nil)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeProblem(w http.ResponseWriter, status int, title, detail string, ext func(*problem)) {
	p := problem{Type: "about:blank", Title: title, Status: status, Detail: detail}
	if ext != nil {
		ext(&p)
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *domain.ValidationError
		ierr *domain.InsufficientInventoryError
	)
	switch {
	case errors.As(err, &verr):
		writeProblem(w, http.StatusBadRequest, "Invalid Query", "one or more parameters are invalid", func(p *problem) { p.Errors = verr.Fields })
	case errors.As(err, &ierr):
		writeProblem(w, http.StatusConflict, "Insufficient Inventory", "the offer is no longer available; search again", func(p *problem) { p.Cells = ierr.Cells })
	case errors.Is(err, domain.ErrBookingExists):
		writeProblem(w, http.StatusConflict, "Booking Exists", "booking already holds inventory", nil)
	case errors.Is(err, domain.ErrReservationConflict):
		w.Header().Set("Retry-After", "1")
		writeProblem(w, http.StatusServiceUnavailable, "Reservation Conflict", "concurrent reservations collided; retry", nil)
	case errors.Is(err, domain.ErrIncompleteInventory):
		writeProblem(w, http.StatusNotFound, "Not Available", "room has no inventory for every night of the stay", nil)
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "resource not found", nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeProblem(w, http.StatusServiceUnavailable, "Unavailable", "request timed out", nil)
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "", nil)
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); etag != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if etag != "" {
		w.Header().Set("ETag", etag)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	req, verr := parseSearch(r)
	if verr != nil {
		writeError(w, r, verr)
		return
	}
	page, err := h.Search.Search(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=5")
	writeJSON(w, r, page)
}

func (h *Handlers) quote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number", nil)
		return
	}
	verr := &domain.ValidationError{}
	q := r.URL.Query()
	in := parseDate(q, "checkInDate", verr)
	out := parseDate(q, "checkOutDate", verr)
	if verr.Len() > 0 {
		writeError(w, r, verr)
		return
	}
	stay, err := domain.NewStayWindow(in, out)
	if err != nil {
		writeError(w, r, err)
		return
	}
	offer, err := h.Search.QuoteRoom(r.Context(), id, stay)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, offer)
}

// parseSearch turns query parameters into a SearchRequest. Only syntax is
// checked here; ranges and combinations are the service's job.
func parseSearch(r *http.Request) (domain.SearchRequest, error) {
	q := r.URL.Query()
	req := domain.NewSearchRequest()
	verr := &domain.ValidationError{}

	req.Keyword = strings.TrimSpace(q.Get("keyword"))
	req.SetCheckIn(parseDate(q, "checkInDate", verr))
	req.SetCheckOut(parseDate(q, "checkOutDate", verr))
	parseInt(q, "guestNumber", &req.GuestNumber, verr)
	parseInt(q, "quantity", &req.Quantity, verr)
	parseInt(q, "page", &req.Page, verr)
	parseInt(q, "size", &req.Size, verr)
	req.MinPrice = parseDecimal(q, "minPrice", verr)
	req.MaxPrice = parseDecimal(q, "maxPrice", verr)
	req.HotelTypes = parseIDs(q, "hotelTypes", verr)
	req.Facilities = parseIDs(q, "facilities", verr)
	if v := q.Get("starRating"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			verr.Add("starRating", "must be an integer")
		} else {
			req.StarRating = &n
		}
	}
	if v := q.Get("sortBy"); v != "" {
		req.SortBy = domain.SortKey(v)
	}
	if v := q.Get("sortOrder"); v != "" {
		req.SortOrder = v
	}

	if verr.Len() > 0 {
		return req, verr
	}
	return req, nil
}

type queryGetter interface{ Get(string) string }

func parseDate(q queryGetter, key string, verr *domain.ValidationError) time.Time {
	v := q.Get(key)
	if v == "" {
		verr.Add(key, "this field is required")
		return time.Time{}
	}
	d, err := domain.ParseDate(v)
	if err != nil {
		verr.Add(key, "must be a date in YYYY-MM-DD format")
	}
	return d
}

func parseInt(q queryGetter, key string, dst *int, verr *domain.ValidationError) {
	v := q.Get(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		verr.Add(key, "must be an integer")
		return
	}
	*dst = n
}

func parseDecimal(q queryGetter, key string, verr *domain.ValidationError) *decimal.Decimal {
	v := q.Get(key)
	if v == "" {
		return nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		verr.Add(key, "must be a decimal number")
		return nil
	}
	return &d
}

// parseIDs accepts "1,2,3".
func parseIDs(q queryGetter, key string, verr *domain.ValidationError) []int64 {
	v := q.Get(key)
	if v == "" {
		return nil
	}
	var out []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			verr.Add(key, "must be a comma-separated list of ids")
			return nil
		}
		out = append(out, id)
	}
	return out
}
