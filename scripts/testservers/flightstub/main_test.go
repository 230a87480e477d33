package main

import (
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newTestStub(opts stubOptions) *stub {
	return &stub{opts: opts, log: zap.NewNop(), rng: rand.New(rand.NewSource(1))}
}

func TestStubEndpoints(t *testing.T) {
	h := newTestStub(stubOptions{}).routes()

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"booking", http.MethodPost, "/api/v1/booking/initiate", `{"flightIds":[1,2],"seatCount":2}`, http.StatusOK},
		{"booking bad body", http.MethodPost, "/api/v1/booking/initiate", `{`, http.StatusBadRequest},
		{"booking wrong method", http.MethodGet, "/api/v1/booking/initiate", "", http.StatusMethodNotAllowed},
		{"search", http.MethodGet, "/api/v1/search/flights?source=JFK&destination=LAX&departureDate=2025-10-03&passengerCount=2", "", http.StatusOK},
		{"search same airport", http.MethodGet, "/api/v1/search/flights?source=JFK&destination=jfk&departureDate=2025-10-03&passengerCount=2", "", http.StatusBadRequest},
		{"search bad date", http.MethodGet, "/api/v1/search/flights?source=JFK&destination=LAX&departureDate=03/10/2025&passengerCount=2", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestStubErrorRatios(t *testing.T) {
	tests := []struct {
		name string
		opts stubOptions
		want int
	}{
		{"server errors", stubOptions{serverErrorRatio: 1}, http.StatusServiceUnavailable},
		{"client errors", stubOptions{clientErrorRatio: 1}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestStub(tt.opts).routes()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/booking/initiate", strings.NewReader(`{"flightIds":[7],"seatCount":1}`))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
