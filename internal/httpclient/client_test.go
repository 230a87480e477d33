package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/torosent/flightload/internal/sampler"
)

func TestBuildBookingRequest(t *testing.T) {
	builder, err := NewRequestBuilder("http://example.com/")
	if err != nil {
		t.Fatalf("expected builder, got error: %v", err)
	}

	spec := &sampler.BookingSpec{FlightIDs: []int64{12, 7000}, SeatCount: 2}
	req, err := builder.Build(context.Background(), spec)
	if err != nil {
		t.Fatalf("expected request, got error: %v", err)
	}

	if req.Method != http.MethodPost {
		t.Fatalf("expected method POST, got %s", req.Method)
	}
	if req.URL.String() != "http://example.com/api/v1/booking/initiate" {
		t.Fatalf("unexpected URL %s", req.URL)
	}
	if ct := req.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON content type, got %q", ct)
	}
	if _, err := uuid.Parse(req.Header.Get(RequestIDHeader)); err != nil {
		t.Fatalf("expected UUID request id, got %q", req.Header.Get(RequestIDHeader))
	}

	data, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if string(data) != `{"flightIds":[12,7000],"seatCount":2}` {
		t.Fatalf("unexpected body %s", data)
	}
	if req.ContentLength != int64(len(data)) {
		t.Fatalf("expected content length %d, got %d", len(data), req.ContentLength)
	}

	// GetBody must replay the same payload.
	again, err := req.GetBody()
	if err != nil {
		t.Fatalf("GetBody error: %v", err)
	}
	replay, _ := io.ReadAll(again)
	if string(replay) != string(data) {
		t.Fatalf("GetBody replayed %q, want %q", replay, data)
	}
}

func TestBuildSearchRequest(t *testing.T) {
	builder, err := NewRequestBuilder("https://api.example.com/prefix")
	if err != nil {
		t.Fatalf("expected builder, got error: %v", err)
	}

	spec := &sampler.SearchSpec{
		Source:         "JFK",
		Destination:    "LAX",
		DepartureDate:  time.Date(2025, time.October, 5, 0, 0, 0, 0, time.UTC),
		PassengerCount: 3,
	}
	req, err := builder.Build(context.Background(), spec)
	if err != nil {
		t.Fatalf("expected request, got error: %v", err)
	}
	if req.Method != http.MethodGet {
		t.Fatalf("expected GET, got %s", req.Method)
	}
	if req.URL.Path != "/prefix/api/v1/search/flights" {
		t.Fatalf("unexpected path %s", req.URL.Path)
	}
	q := req.URL.Query()
	want := map[string]string{
		"source":         "JFK",
		"destination":    "LAX",
		"departureDate":  "2025-10-05",
		"passengerCount": "3",
	}
	for key, val := range want {
		if got := q.Get(key); got != val {
			t.Errorf("query %s = %q, want %q", key, got, val)
		}
	}
	if req.Header.Get("Content-Type") != "" {
		t.Errorf("GET request should not carry a content type")
	}
}

func TestRequestIDsAreUnique(t *testing.T) {
	builder, err := NewRequestBuilder("http://example.com")
	if err != nil {
		t.Fatalf("NewRequestBuilder: %v", err)
	}
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		req, err := builder.Build(context.Background(), &sampler.BookingSpec{FlightIDs: []int64{1}, SeatCount: 1})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		id := req.Header.Get(RequestIDHeader)
		if seen[id] {
			t.Fatalf("duplicate request id %s", id)
		}
		seen[id] = true
	}
}

func TestNewRequestBuilderRejectsInvalidTargets(t *testing.T) {
	for _, target := range []string{"", "   ", "ftp://example.com", "http://", "://bad"} {
		if _, err := NewRequestBuilder(target); err == nil {
			t.Errorf("expected error for target %q", target)
		}
	}
}

func TestBuildRejectsNilSpec(t *testing.T) {
	builder, _ := NewRequestBuilder("http://example.com")
	if _, err := builder.Build(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil spec")
	}
}

func TestClientTimeoutApplied(t *testing.T) {
	timeout := 50 * time.Millisecond
	client := NewClient(timeout, DefaultPoolOptions(4))
	defer client.CloseIdleConnections()

	if client.Timeout != timeout {
		t.Fatalf("expected client timeout %s, got %s", timeout, client.Timeout)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(timeout * 3)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if resp != nil {
		resp.Body.Close()
	}
	if err == nil {
		t.Fatalf("expected timeout error, got nil")
	}

	elapsed := time.Since(start)
	if elapsed < timeout {
		t.Fatalf("request returned too quickly: %s < %s", elapsed, timeout)
	}
	if elapsed > timeout*5 {
		t.Fatalf("request took too long: %s", elapsed)
	}

	if !errors.Is(err, context.DeadlineExceeded) {
		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			t.Fatalf("expected timeout error, got %v", err)
		}
	}

	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", client.Transport)
	}
	if transport.MaxIdleConns != 100 {
		t.Fatalf("expected 100 idle connections, got %d", transport.MaxIdleConns)
	}
	if transport.MaxConnsPerHost != 8 {
		t.Fatalf("expected 8 connections per host, got %d", transport.MaxConnsPerHost)
	}
	if transport.IdleConnTimeout == 0 {
		t.Fatalf("expected transport to set idle connection timeout")
	}
}

func TestNewJSONBody(t *testing.T) {
	body, err := NewJSONBody(map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("NewJSONBody: %v", err)
	}
	rc, _ := body.NewReader()
	defer rc.Close()
	var got map[string]int
	if err := json.NewDecoder(rc).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["a"] != 1 {
		t.Fatalf("unexpected payload %v", got)
	}

	if _, err := NewJSONBody(make(chan int)); err == nil {
		t.Fatal("expected error encoding a channel")
	}
}
