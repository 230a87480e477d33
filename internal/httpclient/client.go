package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/torosent/flightload/internal/sampler"
)

const (
	BookingPath = "/api/v1/booking/initiate"
	SearchPath  = "/api/v1/search/flights"

	// RequestIDHeader carries a fresh UUID on every request so the target's
	// logs can be joined with error samples.
	RequestIDHeader = "X-Request-ID"
)

const userAgent = "flightload"

// RequestBuilder turns sampled specs into HTTP requests against one base URL.
type RequestBuilder struct {
	base    *url.URL
	headers http.Header
}

func NewRequestBuilder(baseURL string) (*RequestBuilder, error) {
	target := strings.TrimSpace(baseURL)
	if target == "" {
		return nil, errors.New("target URL is required")
	}
	base, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid target URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("target URL must use http or https, got %q", base.Scheme)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("target URL %q has no host", target)
	}
	base.Path = strings.TrimRight(base.Path, "/")

	headers := http.Header{}
	headers.Set("Accept", "application/json")
	headers.Set("User-Agent", userAgent)

	return &RequestBuilder{base: base, headers: headers}, nil
}

// Base returns the normalized target URL.
func (b *RequestBuilder) Base() string {
	if b == nil || b.base == nil {
		return ""
	}
	return b.base.String()
}

// Build creates the request for spec. Booking specs become a JSON POST, search
// specs a GET with query parameters.
func (b *RequestBuilder) Build(ctx context.Context, spec sampler.Spec) (*http.Request, error) {
	if b == nil {
		return nil, errors.New("builder cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		method = http.MethodGet
		target = *b.base
		body   BodySource
		err    error
	)
	switch s := spec.(type) {
	case *sampler.BookingSpec:
		method = http.MethodPost
		target.Path += BookingPath
		body, err = NewJSONBody(s)
		if err != nil {
			return nil, err
		}
	case *sampler.SearchSpec:
		target.Path += SearchPath
		q := url.Values{}
		q.Set("source", s.Source)
		q.Set("destination", s.Destination)
		q.Set("departureDate", s.DepartureDate.Format(sampler.DateLayout))
		q.Set("passengerCount", strconv.Itoa(s.PassengerCount))
		target.RawQuery = q.Encode()
		body = emptyBodySource{}
	case nil:
		return nil, errors.New("request spec cannot be nil")
	default:
		return nil, fmt.Errorf("unsupported request spec %T", spec)
	}

	reader, err := body.NewReader()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		_ = reader.Close()
		return nil, err
	}

	req.Header = b.headers.Clone()
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	if length, ok := body.ContentLength(); ok {
		req.ContentLength = length
	}
	req.GetBody = body.NewReader

	return req, nil
}

// PoolOptions bound the shared connection pool.
type PoolOptions struct {
	MaxIdleConns    int
	MaxConnsPerHost int
}

// DefaultPoolOptions sizes the pool for the given worker count.
func DefaultPoolOptions(concurrency int) PoolOptions {
	perHost := 2 * concurrency
	if perHost < 2 {
		perHost = 2
	}
	return PoolOptions{MaxIdleConns: 100, MaxConnsPerHost: perHost}
}

func NewClient(timeout time.Duration, pool PoolOptions) *http.Client {
	if timeout < 0 {
		timeout = 0
	}
	if pool.MaxIdleConns <= 0 {
		pool.MaxIdleConns = 100
	}
	if pool.MaxConnsPerHost < 0 {
		pool.MaxConnsPerHost = 0
	}
	idlePerHost := pool.MaxConnsPerHost
	if idlePerHost == 0 || idlePerHost > pool.MaxIdleConns {
		idlePerHost = pool.MaxIdleConns
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          pool.MaxIdleConns,
		MaxIdleConnsPerHost:   idlePerHost,
		MaxConnsPerHost:       pool.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// drain discards the rest of a response body so the connection can be reused.
func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
