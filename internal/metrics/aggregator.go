package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// DefaultMaxErrorSamples bounds the number of ErrorRecords kept verbatim.
const DefaultMaxErrorSamples = 100

// Sink receives every recorded outcome. Implementations must be safe for
// concurrent use; they are called outside the aggregator's lock.
type Sink interface {
	Observe(o Outcome)
}

// ErrorRecord describes one failed attempt.
type ErrorRecord struct {
	Time    time.Time `json:"time"`
	Class   string    `json:"class"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Request string    `json:"request,omitempty"`
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithMaxErrorSamples bounds the verbatim error list. Values < 0 keep none.
func WithMaxErrorSamples(n int) Option {
	return func(a *Aggregator) {
		if n < 0 {
			n = 0
		}
		a.maxErrorSamples = n
	}
}

// WithSink registers a sink that observes every outcome.
func WithSink(s Sink) Option {
	return func(a *Aggregator) {
		if s != nil {
			a.sinks = append(a.sinks, s)
		}
	}
}

// Aggregator accumulates outcomes from any number of workers.
type Aggregator struct {
	mu               sync.Mutex
	total            int64
	codes            map[string]int64
	classes          [numClasses]int64
	latencies        []float64
	successLatencies []float64
	errors           []ErrorRecord
	errorCount       int64
	errorKinds       map[string]int64
	hist             *hdrhistogram.Histogram
	start            time.Time
	end              time.Time

	maxErrorSamples int
	sinks           []Sink
}

// NewAggregator returns an empty aggregator.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		codes:      make(map[string]int64),
		errorKinds: make(map[string]int64),
		// Track latencies from 1µs up to 60s with 3 significant figures.
		hist:            hdrhistogram.New(1, 60_000_000, 3),
		latencies:       make([]float64, 0, 4096),
		maxErrorSamples: DefaultMaxErrorSamples,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start opens the measurement window.
func (a *Aggregator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.start = time.Now()
	a.end = time.Time{}
}

// Stop closes the measurement window. Only the first call after Start has an
// effect.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.end.IsZero() {
		a.end = time.Now()
	}
}

// Record adds one outcome and returns the total after it was counted.
func (a *Aggregator) Record(o Outcome) int64 {
	class := o.Class
	if class < 0 || class >= numClasses {
		class = TransportError
	}
	ms := o.LatencyMs()

	a.mu.Lock()
	a.total++
	total := a.total
	a.codes[o.Key()]++
	a.classes[class]++
	a.latencies = append(a.latencies, ms)
	if class == Success {
		a.successLatencies = append(a.successLatencies, ms)
	}
	a.recordHist(o.Latency)
	if class.IsError() || o.Err != nil {
		a.recordError(o, class)
	}
	a.mu.Unlock()

	for _, s := range a.sinks {
		s.Observe(o)
	}
	return total
}

func (a *Aggregator) recordHist(latency time.Duration) {
	if latency <= 0 {
		return
	}
	us := latency.Microseconds()
	if us < a.hist.LowestTrackableValue() {
		us = a.hist.LowestTrackableValue()
	}
	if us > a.hist.HighestTrackableValue() {
		us = a.hist.HighestTrackableValue()
	}
	_ = a.hist.RecordValue(us)
}

func (a *Aggregator) recordError(o Outcome, class Class) {
	a.errorCount++
	kind := ErrorKind(o)
	a.errorKinds[kind]++
	if len(a.errors) >= a.maxErrorSamples {
		return
	}
	msg := class.Label()
	if o.Err != nil {
		msg = o.Err.Error()
	}
	when := o.IssuedAt
	if when.IsZero() {
		when = time.Now()
	}
	a.errors = append(a.errors, ErrorRecord{
		Time:    when,
		Class:   class.String(),
		Kind:    kind,
		Message: msg,
		Request: o.Request,
	})
}

// Live is a non-authoritative view of the counters while a run is in flight.
type Live struct {
	Total   int64
	Classes map[Class]int64
	Codes   map[string]int64
	P50Ms   float64
	P99Ms   float64
	Elapsed time.Duration
}

// Live returns current counters and histogram percentiles for progress output.
func (a *Aggregator) Live() Live {
	a.mu.Lock()
	defer a.mu.Unlock()

	l := Live{
		Total:   a.total,
		Classes: make(map[Class]int64, numClasses),
		Codes:   make(map[string]int64, len(a.codes)),
	}
	for i, n := range a.classes {
		l.Classes[Class(i)] = n
	}
	for k, n := range a.codes {
		l.Codes[k] = n
	}
	if a.hist.TotalCount() > 0 {
		l.P50Ms = float64(a.hist.ValueAtQuantile(50)) / 1000
		l.P99Ms = float64(a.hist.ValueAtQuantile(99)) / 1000
	}
	if !a.start.IsZero() {
		end := a.end
		if end.IsZero() {
			end = time.Now()
		}
		l.Elapsed = end.Sub(a.start)
	}
	return l
}

// Snapshot is a frozen copy of everything recorded. Latencies are in
// milliseconds, in completion order.
type Snapshot struct {
	Total            int64
	Codes            map[string]int64
	Classes          [numClasses]int64
	Latencies        []float64
	SuccessLatencies []float64
	Errors           []ErrorRecord
	ErrorCount       int64
	ErrorKinds       map[string]int64
	WindowStart      time.Time
	WindowEnd        time.Time
}

// Snapshot deep-copies the aggregator state. It is consistent at any time, but
// only final once every writer has returned. An open window ends at the time
// of the call.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Snapshot{
		Total:            a.total,
		Codes:            make(map[string]int64, len(a.codes)),
		Classes:          a.classes,
		Latencies:        append([]float64(nil), a.latencies...),
		SuccessLatencies: append([]float64(nil), a.successLatencies...),
		Errors:           append([]ErrorRecord(nil), a.errors...),
		ErrorCount:       a.errorCount,
		ErrorKinds:       make(map[string]int64, len(a.errorKinds)),
		WindowStart:      a.start,
		WindowEnd:        a.end,
	}
	for k, v := range a.codes {
		s.Codes[k] = v
	}
	for k, v := range a.errorKinds {
		s.ErrorKinds[k] = v
	}
	if s.WindowEnd.IsZero() && !s.WindowStart.IsZero() {
		s.WindowEnd = time.Now()
	}
	return s
}

// Count returns the number of outcomes in class c.
func (s Snapshot) Count(c Class) int64 {
	if c < 0 || c >= numClasses {
		return 0
	}
	return s.Classes[c]
}

// Duration is the length of the measurement window, or 0 if it was never
// opened.
func (s Snapshot) Duration() time.Duration {
	if s.WindowStart.IsZero() || s.WindowEnd.Before(s.WindowStart) {
		return 0
	}
	return s.WindowEnd.Sub(s.WindowStart)
}

// Verify checks the snapshot's counting invariants.
func (s Snapshot) Verify() error {
	var codeSum, classSum int64
	for _, n := range s.Codes {
		codeSum += n
	}
	for _, n := range s.Classes {
		classSum += n
	}
	switch {
	case codeSum != s.Total:
		return fmt.Errorf("histogram sums to %d, total is %d", codeSum, s.Total)
	case classSum != s.Total:
		return fmt.Errorf("classes sum to %d, total is %d", classSum, s.Total)
	case int64(len(s.Latencies)) != s.Total:
		return fmt.Errorf("%d latencies recorded, total is %d", len(s.Latencies), s.Total)
	case int64(len(s.SuccessLatencies)) != s.Count(Success):
		return fmt.Errorf("%d success latencies, %d successes", len(s.SuccessLatencies), s.Count(Success))
	}
	return nil
}
