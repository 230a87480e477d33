package output

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/torosent/flightload/internal/metrics"
)

// LiveSource exposes in-flight counters. *metrics.Aggregator implements it.
type LiveSource interface {
	Live() metrics.Live
}

// Sample is one progress tick, kept for the HTML report charts.
type Sample struct {
	ElapsedSeconds float64 `json:"elapsed_s"`
	Total          int64   `json:"total"`
	CurrentRPS     float64 `json:"current_rps"`
	P50Ms          float64 `json:"p50_latency_ms"`
	P99Ms          float64 `json:"p99_latency_ms"`
}

// ProgressReporter displays real-time progress updates and records a sample
// per tick.
type ProgressReporter struct {
	source   LiveSource
	interval time.Duration
	ticker   *time.Ticker
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32

	mu      sync.Mutex
	history []Sample
	last    metrics.Live
}

// NewProgressReporter creates a progress reporter that updates at the given
// interval. A nil writer records history without printing.
func NewProgressReporter(source LiveSource, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &ProgressReporter{
		source:   source,
		interval: interval,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	p.ticker = time.NewTicker(p.interval)
	go p.run()
}

// Stop halts progress updates and terminates the progress line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
		fmt.Fprintln(p.writer)
	}
}

// History returns the samples recorded so far.
func (p *ProgressReporter) History() []Sample {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Sample(nil), p.history...)
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprint(p.writer, p.tick())
		case <-p.done:
			return
		}
	}
}

// tick samples the source once and returns the progress line.
func (p *ProgressReporter) tick() string {
	live := p.source.Live()

	p.mu.Lock()
	rps := 0.0
	if dt := (live.Elapsed - p.last.Elapsed).Seconds(); dt > 0 {
		rps = float64(live.Total-p.last.Total) / dt
	}
	p.history = append(p.history, Sample{
		ElapsedSeconds: live.Elapsed.Seconds(),
		Total:          live.Total,
		CurrentRPS:     rps,
		P50Ms:          live.P50Ms,
		P99Ms:          live.P99Ms,
	})
	p.last = live
	p.mu.Unlock()

	return FormatLive(live)
}

// FormatLive renders the single-line progress view.
func FormatLive(live metrics.Live) string {
	avg := 0.0
	if s := live.Elapsed.Seconds(); s > 0 {
		avg = float64(live.Total) / s
	}
	failures := live.Total - live.Classes[metrics.Success]
	return fmt.Sprintf("\r[%s] Requests: %d | 2xx: %d | Failures: %d | RPS: %.1f | P50: %.1fms | P99: %.1fms",
		live.Elapsed.Truncate(time.Second), live.Total, live.Classes[metrics.Success], failures, avg, live.P50Ms, live.P99Ms)
}
