package runner

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/torosent/flightload/internal/metrics"
	"github.com/torosent/flightload/internal/sampler"
)

// DefaultLogEvery is the progress log interval, in aggregated requests.
const DefaultLogEvery = 50

// Requester issues the request described by spec and classifies the result.
// It must never panic on request failure; failures are Outcomes.
type Requester interface {
	Do(ctx context.Context, spec sampler.Spec) metrics.Outcome
}

// Options configure the Runner.
type Options struct {
	Concurrency    int                         // number of worker goroutines
	Duration       time.Duration               // wall-clock run length (0 completes immediately)
	Pacing         time.Duration               // sleep after each request, per worker
	RatePerSecond  int                         // global request cap (0 means unlimited)
	Seed           int64                       // base RNG seed; worker i uses Seed+i (0 means time based)
	LogEvery       int                         // progress log interval in aggregated requests
	Sampler        sampler.Sampler             // request generator (required)
	Requester      Requester                   // request executor (required)
	Aggregator     *metrics.Aggregator         // shared outcome sink (optional)
	Logger         *zap.Logger                 // optional, defaults to a no-op logger
	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.Duration < 0 {
		o.Duration = 0
	}
	if o.Pacing < 0 {
		o.Pacing = 0
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.LogEvery <= 0 {
		o.LogEvery = DefaultLogEvery
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
	if o.Aggregator == nil {
		o.Aggregator = metrics.NewAggregator()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst equal to rps to smooth pacing under concurrency.
			return rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}
