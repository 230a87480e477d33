package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/torosent/flightload/internal/metrics"
)

type fakeLive struct {
	mu   sync.Mutex
	live metrics.Live
}

func (f *fakeLive) Live() metrics.Live {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}

func (f *fakeLive) set(l metrics.Live) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live = l
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFormatLive(t *testing.T) {
	line := FormatLive(metrics.Live{
		Total:   200,
		Classes: map[metrics.Class]int64{metrics.Success: 190, metrics.ServerError: 10},
		P50Ms:   12.5,
		P99Ms:   80,
		Elapsed: 2 * time.Second,
	})
	for _, want := range []string{"Requests: 200", "2xx: 190", "Failures: 10", "RPS: 100.0", "P50: 12.5ms", "P99: 80.0ms"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestProgressReporterTickRecordsHistory(t *testing.T) {
	src := &fakeLive{}
	p := NewProgressReporter(src, time.Second, nil)

	src.set(metrics.Live{Total: 100, Elapsed: time.Second, Classes: map[metrics.Class]int64{}})
	p.tick()
	src.set(metrics.Live{Total: 300, Elapsed: 2 * time.Second, Classes: map[metrics.Class]int64{}})
	p.tick()

	history := p.History()
	if len(history) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(history))
	}
	if history[0].CurrentRPS != 100 {
		t.Errorf("first sample rps = %v, want 100", history[0].CurrentRPS)
	}
	if history[1].CurrentRPS != 200 {
		t.Errorf("second sample rps = %v, want 200", history[1].CurrentRPS)
	}
}

func TestProgressReporterBasic(t *testing.T) {
	agg := metrics.NewAggregator()
	agg.Start()
	agg.Record(metrics.FromResponse(200, 5*time.Millisecond, time.Now(), "r"))

	var out syncBuffer
	p := NewProgressReporter(agg, 10*time.Millisecond, &out)
	p.Start()
	p.Start() // second start is a no-op
	time.Sleep(50 * time.Millisecond)
	p.Stop()
	p.Stop()

	if !strings.Contains(out.String(), "Requests: 1") {
		t.Errorf("expected progress output, got %q", out.String())
	}
	if len(p.History()) == 0 {
		t.Error("expected history samples")
	}
}
