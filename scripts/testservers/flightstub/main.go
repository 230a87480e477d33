// Command flightstub serves the booking and search endpoints with tunable
// latency and failure ratios so flightload can be exercised locally.
//
//	go run ./scripts/testservers/flightstub --port 8080 --latency 5ms --server-error-ratio 0.02
package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/torosent/flightload/internal/logging"
)

type stubOptions struct {
	latency          time.Duration
	jitter           time.Duration
	clientErrorRatio float64
	serverErrorRatio float64
	hangRatio        float64
	hang             time.Duration
}

type stub struct {
	opts     stubOptions
	log      *zap.Logger
	mu       sync.Mutex
	rng      *rand.Rand
	bookings atomic.Int64
}

func main() {
	var opts stubOptions
	port := pflag.Int("port", 8080, "Listening port")
	logLevel := pflag.String("log-level", "info", "Log level: debug, info, warn or error")
	pflag.DurationVar(&opts.latency, "latency", 5*time.Millisecond, "Base response latency")
	pflag.DurationVar(&opts.jitter, "jitter", 0, "Uniform extra latency added on top of --latency")
	pflag.Float64Var(&opts.clientErrorRatio, "client-error-ratio", 0, "Fraction of requests answered with 409 Conflict")
	pflag.Float64Var(&opts.serverErrorRatio, "server-error-ratio", 0, "Fraction of requests answered with 503 Service Unavailable")
	pflag.Float64Var(&opts.hangRatio, "hang-ratio", 0, "Fraction of requests held for --hang before answering")
	pflag.DurationVar(&opts.hang, "hang", 45*time.Second, "How long hanging requests are held")
	pflag.Parse()

	logger, err := logging.New(*logLevel, logging.FormatConsole, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	s := &stub{
		opts: opts,
		log:  logger,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	addr := ":" + strconv.Itoa(*port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("flight stub listening", zap.String("addr", addr),
		zap.Duration("latency", opts.latency),
		zap.Float64("client_error_ratio", opts.clientErrorRatio),
		zap.Float64("server_error_ratio", opts.serverErrorRatio),
		zap.Float64("hang_ratio", opts.hangRatio))
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func (s *stub) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/booking/initiate", s.handleBooking)
	mux.HandleFunc("/api/v1/search/flights", s.handleSearch)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

type bookingRequest struct {
	FlightIDs []int64 `json:"flightIds"`
	SeatCount int     `json:"seatCount"`
}

func (s *stub) handleBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
		return
	}
	if len(req.FlightIDs) == 0 || req.SeatCount < 1 {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "flightIds and seatCount are required"})
		return
	}
	if s.fail(w, r) {
		return
	}
	id := s.bookings.Add(1)
	respondJSON(w, http.StatusOK, map[string]any{
		"bookingId": fmt.Sprintf("BK-%08d", id),
		"flightIds": req.FlightIDs,
		"seatCount": req.SeatCount,
		"status":    "PENDING",
	})
}

func (s *stub) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	q := r.URL.Query()
	source := strings.ToUpper(q.Get("source"))
	destination := strings.ToUpper(q.Get("destination"))
	date := q.Get("departureDate")
	passengers, err := strconv.Atoi(q.Get("passengerCount"))
	switch {
	case source == "" || destination == "" || date == "" || err != nil:
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "source, destination, departureDate and passengerCount are required"})
		return
	case source == destination:
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "source and destination must differ"})
		return
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "departureDate must be YYYY-MM-DD"})
		return
	}
	if s.fail(w, r) {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"source":         source,
		"destination":    destination,
		"departureDate":  date,
		"passengerCount": passengers,
		"flights": []map[string]any{
			{"flightId": 1000 + len(source)*len(destination), "departure": date + "T08:15:00Z", "seatsAvailable": 42},
		},
	})
}

// fail applies the configured latency and, depending on the dice, writes an
// error response. It reports whether the request was answered.
func (s *stub) fail(w http.ResponseWriter, r *http.Request) bool {
	roll, extra := s.roll()
	time.Sleep(s.opts.latency + extra)

	switch {
	case roll < s.opts.hangRatio:
		s.log.Debug("holding request", zap.String("path", r.URL.Path), zap.String("request_id", r.Header.Get("X-Request-ID")))
		select {
		case <-time.After(s.opts.hang):
		case <-r.Context().Done():
			return true
		}
	case roll < s.opts.hangRatio+s.opts.serverErrorRatio:
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "inventory service unavailable"})
		return true
	case roll < s.opts.hangRatio+s.opts.serverErrorRatio+s.opts.clientErrorRatio:
		respondJSON(w, http.StatusConflict, map[string]any{"error": "seats no longer available"})
		return true
	}
	return false
}

func (s *stub) roll() (float64, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var extra time.Duration
	if s.opts.jitter > 0 {
		extra = time.Duration(s.rng.Int63n(int64(s.opts.jitter)))
	}
	return s.rng.Float64(), extra
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
