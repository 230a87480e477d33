// Package report turns a frozen metrics snapshot into the final run report:
// throughput, response code histogram, category breakdown and latency
// statistics. Given a RunID, building a report is pure: the same snapshot and
// RunInfo always yield the same Report.
package report

import (
	"sort"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/torosent/flightload/internal/metrics"
)

// TopErrorKinds bounds the error kind summary.
const TopErrorKinds = 5

// RunInfo describes how the run was configured.
type RunInfo struct {
	RunID          string // generated when empty
	Mode           string
	BaseURL        string
	Concurrency    int
	Duration       time.Duration // configured, not measured
	Pacing         time.Duration
	Timeout        time.Duration
	RatePerSecond  int
	Seed           int64
	Interrupted    bool
	WorkerRequests []int64
	Timestamp      time.Time // completion time, defaults to the window end

	Booking *BookingParams
	Search  *SearchParams
}

// BookingParams echoes the booking sampler domain.
type BookingParams struct {
	FlightIDMin int64
	FlightIDMax int64
	MaxLegs     int
	SeatMin     int
	SeatMax     int
}

// SearchParams echoes the search sampler domain.
type SearchParams struct {
	AirportsCount int
	DateStart     time.Time
	DateEnd       time.Time
	PassengersMin int
	PassengersMax int
}

// Report is the complete, serializable run report.
type Report struct {
	RunID      string     `json:"run_id"`
	TestConfig TestConfig `json:"test_config"`
	Results    Results    `json:"results"`
	Thresholds []Check    `json:"thresholds,omitempty"`
}

// TestConfig is the run configuration as written to the artifact.
type TestConfig struct {
	Mode           string  `json:"mode"`
	BaseURL        string  `json:"base_url"`
	Concurrency    int     `json:"concurrency"`
	Duration       float64 `json:"duration"` // seconds
	PacingMs       float64 `json:"pacing_ms"`
	TimeoutMs      float64 `json:"timeout_ms"`
	RatePerSecond  int     `json:"rate_per_second,omitempty"`
	Seed           int64   `json:"seed"`
	FlightIDRange  string  `json:"flight_id_range,omitempty"`
	MaxLegs        int     `json:"max_legs,omitempty"`
	SeatCountRange string  `json:"seat_count_range,omitempty"`
	AirportsCount  int     `json:"airports_count,omitempty"`
	DateRange      string  `json:"date_range,omitempty"`
	PassengerRange string  `json:"passenger_range,omitempty"`
}

// Results holds everything derived from the snapshot.
type Results struct {
	TotalRequests       int64                 `json:"total_requests"`
	ActualDuration      float64               `json:"actual_duration"` // seconds
	Throughput          float64               `json:"throughput"`      // requests per second
	ResponseCodes       map[string]int64      `json:"response_codes"`
	Categories          Categories            `json:"categories"`
	LatencyStats        *LatencyStats         `json:"latency_stats"`
	SuccessLatencyStats *LatencyStats         `json:"success_latency_stats"`
	ErrorCount          int64                 `json:"error_count"`
	ErrorKinds          []KindCount           `json:"error_kinds"`
	ErrorSamples        []metrics.ErrorRecord `json:"error_samples"`
	WorkerRequests      []int64               `json:"worker_requests,omitempty"`
	Interrupted         bool                  `json:"interrupted"`
	Timestamp           time.Time             `json:"timestamp"`
}

// Category is one outcome class's share of the total.
type Category struct {
	Count   int64   `json:"count"`
	Percent float64 `json:"percent"`
}

// Categories lists every outcome class in a fixed order.
type Categories struct {
	Success        Category `json:"success"`
	ClientError    Category `json:"client_error"`
	ServerError    Category `json:"server_error"`
	Timeout        Category `json:"timeout"`
	TransportError Category `json:"transport_error"`
}

// Get returns the category for class c.
func (c Categories) Get(class metrics.Class) Category {
	switch class {
	case metrics.Success:
		return c.Success
	case metrics.ClientError:
		return c.ClientError
	case metrics.ServerError:
		return c.ServerError
	case metrics.Timeout:
		return c.Timeout
	case metrics.TransportError:
		return c.TransportError
	}
	return Category{}
}

// LatencyStats are in milliseconds. P95 and P99 are nearest-rank: the sorted
// sample at index floor(p*n).
type LatencyStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
}

// KindCount is one row of the error kind summary.
type KindCount struct {
	Kind  string `json:"kind"`
	Count int64  `json:"count"`
}

// Check is the evaluated form of one pass/fail threshold.
type Check struct {
	Expression string  `json:"expression"`
	Actual     float64 `json:"actual"`
	Passed     bool    `json:"passed"`
	Message    string  `json:"message,omitempty"`
}

// Build derives the report for snap. It tolerates an empty snapshot.
func Build(snap metrics.Snapshot, info RunInfo) Report {
	runID := info.RunID
	if runID == "" {
		runID = NewRunID()
	}

	duration := snap.Duration().Seconds()
	res := Results{
		TotalRequests:       snap.Total,
		ActualDuration:      duration,
		Throughput:          throughput(snap.Total, duration),
		ResponseCodes:       make(map[string]int64, len(snap.Codes)),
		Categories:          categories(snap),
		LatencyStats:        Stats(snap.Latencies),
		SuccessLatencyStats: Stats(snap.SuccessLatencies),
		ErrorCount:          snap.ErrorCount,
		ErrorKinds:          topKinds(snap.ErrorKinds, TopErrorKinds),
		ErrorSamples:        append([]metrics.ErrorRecord{}, snap.Errors...),
		WorkerRequests:      append([]int64(nil), info.WorkerRequests...),
		Interrupted:         info.Interrupted,
		Timestamp:           info.Timestamp,
	}
	for k, v := range snap.Codes {
		res.ResponseCodes[k] = v
	}
	if res.Timestamp.IsZero() {
		res.Timestamp = snap.WindowEnd
	}

	return Report{
		RunID:      runID,
		TestConfig: testConfig(info),
		Results:    res,
	}
}

// NewRunID returns a fresh lexically sortable run identifier.
func NewRunID() string {
	return ulid.Make().String()
}

// Passed reports whether every evaluated threshold passed.
func (r Report) Passed() bool {
	for _, c := range r.Thresholds {
		if !c.Passed {
			return false
		}
	}
	return true
}

func throughput(total int64, seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return float64(total) / seconds
}

// Percent returns count as a percentage of total, or 0 when total is 0.
func Percent(count, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

func categories(snap metrics.Snapshot) Categories {
	cat := func(c metrics.Class) Category {
		n := snap.Count(c)
		return Category{Count: n, Percent: Percent(n, snap.Total)}
	}
	return Categories{
		Success:        cat(metrics.Success),
		ClientError:    cat(metrics.ClientError),
		ServerError:    cat(metrics.ServerError),
		Timeout:        cat(metrics.Timeout),
		TransportError: cat(metrics.TransportError),
	}
}

// Stats computes latency statistics over samples (milliseconds). It returns
// nil when there are none.
func Stats(samples []float64) *LatencyStats {
	n := len(samples)
	if n == 0 {
		return nil
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	p95, _ := Percentile(sorted, 0.95)
	p99, _ := Percentile(sorted, 0.99)
	return &LatencyStats{
		Min:    sorted[0],
		Max:    sorted[n-1],
		Mean:   sum / float64(n),
		Median: median(sorted),
		P95:    p95,
		P99:    p99,
	}
}

// Percentile returns sorted[floor(p*n)], clamped to the last element. sorted
// must be in ascending order. ok is false when sorted is empty.
func Percentile(sorted []float64, p float64) (v float64, ok bool) {
	n := len(sorted)
	if n == 0 {
		return 0, false
	}
	idx := int(p * float64(n))
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx], true
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func topKinds(kinds map[string]int64, limit int) []KindCount {
	out := make([]KindCount, 0, len(kinds))
	for k, v := range kinds {
		out = append(out, KindCount{Kind: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Kind < out[j].Kind
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

const dateLayout = "2006-01-02"

func testConfig(info RunInfo) TestConfig {
	tc := TestConfig{
		Mode:          info.Mode,
		BaseURL:       info.BaseURL,
		Concurrency:   info.Concurrency,
		Duration:      info.Duration.Seconds(),
		PacingMs:      ms(info.Pacing),
		TimeoutMs:     ms(info.Timeout),
		RatePerSecond: info.RatePerSecond,
		Seed:          info.Seed,
	}
	if b := info.Booking; b != nil {
		tc.FlightIDRange = span(b.FlightIDMin, b.FlightIDMax)
		tc.MaxLegs = b.MaxLegs
		tc.SeatCountRange = span(int64(b.SeatMin), int64(b.SeatMax))
	}
	if s := info.Search; s != nil {
		tc.AirportsCount = s.AirportsCount
		tc.DateRange = s.DateStart.Format(dateLayout) + ".." + s.DateEnd.Format(dateLayout)
		tc.PassengerRange = span(int64(s.PassengersMin), int64(s.PassengersMax))
	}
	return tc
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func span(lo, hi int64) string {
	return strconv.FormatInt(lo, 10) + "-" + strconv.FormatInt(hi, 10)
}
