package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "stayfinder", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stayfinder", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "stayfinder", Name: "external_requests_total", Help: "Outbound requests."},
		[]string{"service", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stayfinder", Name: "external_request_duration_seconds",
			Help:    "Outbound request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "stayfinder", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del|incr|error
	)
	CacheBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "stayfinder", Name: "cache_breaker_state", Help: "Cache circuit state (0=closed, 1=open, 2=half-open)."},
		[]string{"cache"},
	)
	SearchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "stayfinder", Name: "search_requests_total", Help: "Searches by outcome."},
		[]string{"outcome"}, // ok|cache_hit|invalid|error
	)
	SearchLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stayfinder", Name: "search_duration_seconds",
		Help:    "Search duration seconds.",
		Buckets: prometheus.DefBuckets,
	})
	SearchOffers = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stayfinder", Name: "search_page_offers",
		Help:    "Offers returned per search page.",
		Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
	})
	Reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "stayfinder", Name: "reservations_total", Help: "Reservation attempts by outcome."},
		[]string{"outcome"}, // reserved|insufficient|conflict|duplicate|invalid|error
	)
	ReservationLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stayfinder", Name: "reservation_duration_seconds",
		Help:    "Reservation duration seconds, retries included.",
		Buckets: prometheus.DefBuckets,
	})
	ReservationAttempts = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stayfinder", Name: "reservation_attempts",
		Help:    "Transaction attempts per reservation.",
		Buckets: []float64{1, 2, 3, 4, 6, 10},
	})
	ReservationRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stayfinder", Name: "reservation_retries_total",
		Help: "Reservation transactions retried after a conflict.",
	})
	Releases = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "stayfinder", Name: "releases_total", Help: "Release calls by outcome."},
		[]string{"outcome"}, // released|noop|error
	)
	InventoryUpserts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stayfinder", Name: "inventory_upserts_total",
		Help: "Inventory records written by calendar sync.",
	})
)

// Serve starts a standalone metrics listener on addr; empty addr disables it.
func Serve(addr string, reg *prometheus.Registry) {
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency,
		CacheEvents, CacheBreakerState,
		SearchRequests, SearchLatency, SearchOffers,
		Reservations, ReservationLatency, ReservationAttempts, ReservationRetries, Releases,
		InventoryUpserts,
	)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) {
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveSearch(outcome string, offers int, dur time.Duration) {
	SearchRequests.WithLabelValues(outcome).Inc()
	SearchLatency.Observe(dur.Seconds())
	if outcome == "ok" || outcome == "cache_hit" {
		SearchOffers.Observe(float64(offers))
	}
}

func ObserveReservation(outcome string, attempts int, dur time.Duration) {
	Reservations.WithLabelValues(outcome).Inc()
	ReservationLatency.Observe(dur.Seconds())
	if attempts > 0 {
		ReservationAttempts.Observe(float64(attempts))
	}
}

func ObserveRelease(outcome string) { Releases.WithLabelValues(outcome).Inc() }

func LabelErr(err error) string {
	if err == nil {
		return "none"
	}
	return fmt.Sprintf("%T", err)
}
