package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/flightload/internal/metrics"
)

// Result summarizes a completed run.
type Result struct {
	Snapshot       metrics.Snapshot
	Total          int64
	Errors         int64
	Duration       time.Duration
	Interrupted    bool
	WorkerRequests []int64 // indexed by worker
	Seed           int64   // base seed actually used
}

// Runner executes a timed load test with a fixed worker pool.
type Runner struct {
	opts Options
}

// New validates and normalizes opt.
func New(opt Options) (*Runner, error) {
	if opt.Sampler == nil {
		return nil, errors.New("runner: sampler is required")
	}
	if opt.Requester == nil {
		return nil, errors.New("runner: requester is required")
	}
	opt.normalize()
	return &Runner{opts: opt}, nil
}

// Aggregator returns the aggregator outcomes are recorded into.
func (r *Runner) Aggregator() *metrics.Aggregator {
	return r.opts.Aggregator
}

// runState is what every worker of one run shares besides the aggregator.
type runState struct {
	deadlineNanos atomic.Int64
	stop          chan struct{}
	stopOnce      sync.Once
}

func newRunState(deadline time.Time) *runState {
	s := &runState{stop: make(chan struct{})}
	s.deadlineNanos.Store(deadline.UnixNano())
	return s
}

func (s *runState) deadline() time.Time {
	return time.Unix(0, s.deadlineNanos.Load())
}

func (s *runState) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
	}
	return time.Now().UnixNano() >= s.deadlineNanos.Load()
}

// halt moves the deadline to now and releases sleeping workers.
func (s *runState) halt() {
	s.stopOnce.Do(func() {
		now := time.Now().UnixNano()
		if now < s.deadlineNanos.Load() {
			s.deadlineNanos.Store(now)
		}
		close(s.stop)
	})
}

// Run starts the workers and blocks until the duration elapses or ctx is
// cancelled, then waits for every worker and returns the final snapshot.
// In-flight requests are not aborted by cancellation.
func (r *Runner) Run(ctx context.Context) Result {
	opts := r.opts
	agg := opts.Aggregator
	log := opts.Logger

	agg.Start()
	start := time.Now()
	state := newRunState(start.Add(opts.Duration))

	log.Info("load test started",
		zap.Int("workers", opts.Concurrency),
		zap.Duration("duration", opts.Duration),
		zap.Duration("pacing", opts.Pacing),
		zap.Int("rate", opts.RatePerSecond),
		zap.Int64("seed", opts.Seed),
	)

	// The watcher outlives the deadline: an interrupt that arrives while
	// in-flight requests drain still marks the run interrupted.
	var interrupted atomic.Bool
	done := make(chan struct{})
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		timer := time.NewTimer(opts.Duration)
		defer timer.Stop()
		expired := timer.C
		for {
			select {
			case <-ctx.Done():
				interrupted.Store(true)
				state.halt()
				return
			case <-expired:
				state.halt()
				expired = nil
			case <-done:
				if ctx.Err() != nil {
					interrupted.Store(true)
				}
				return
			}
		}
	}()

	gate := newArrivalGate(opts)
	workers := make([]*worker, opts.Concurrency)
	var wg sync.WaitGroup
	for i := range workers {
		w := newWorker(i, &opts, state, gate)
		workers[i] = w
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(ctx)
		}()
	}
	wg.Wait()
	close(done)
	<-watched
	agg.Stop()

	snap := agg.Snapshot()
	res := Result{
		Snapshot:       snap,
		Total:          snap.Total,
		Errors:         snap.ErrorCount,
		Duration:       snap.Duration(),
		Interrupted:    interrupted.Load(),
		WorkerRequests: make([]int64, len(workers)),
		Seed:           opts.Seed,
	}
	for i, w := range workers {
		res.WorkerRequests[i] = w.requests
	}

	log.Info("load test finished",
		zap.Int64("total", res.Total),
		zap.Int64("errors", res.Errors),
		zap.Duration("elapsed", res.Duration),
		zap.Bool("interrupted", res.Interrupted),
	)
	return res
}
