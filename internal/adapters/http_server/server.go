package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type Server struct{ mux *chi.Mux }

// New builds the public router. searchRPS <= 0 disables rate limiting.
func New(searchRPS int) *Server {
	m := base()
	if searchRPS > 0 {
		m.Use(RateLimit(searchRPS))
	}
	return &Server{mux: m}
}

// NewInternal builds the router for the internal listener. Reservation
// routes live only here.
func NewInternal() *Server { return &Server{mux: base()} }

func base() *chi.Mux {
	m := chi.NewRouter()

	// all middlewares go before any routes are added
	m.Use(chimw.RealIP)
	m.Use(chimw.RequestID)
	m.Use(chimw.Recoverer)
	m.Use(Timeout(15 * time.Second))
	m.Use(Metrics)
	m.Use(Logger(log.Logger))
	return m
}

func (s *Server) Mux() http.Handler { return s.mux }

// Mount attaches any extra handler (e.g., /metrics) to the router.
func (s *Server) Mount(path string, h http.Handler) {
	s.mux.Handle(path, h)
}
