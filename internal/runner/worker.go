package runner

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/flightload/internal/metrics"
)

// worker issues requests sequentially until the run stops. Its RNG and
// request counter are never shared.
type worker struct {
	id       int
	rng      *rand.Rand
	requests int64

	opts  *Options
	state *runState
	gate  *arrivalGate
	log   *zap.Logger
}

func newWorker(id int, opts *Options, state *runState, gate *arrivalGate) *worker {
	return &worker{
		id:    id,
		rng:   rand.New(rand.NewSource(opts.Seed + int64(id))),
		opts:  opts,
		state: state,
		gate:  gate,
		log:   opts.Logger.With(zap.Int("worker", id)),
	}
}

func (w *worker) run(ctx context.Context) {
	defer func() {
		w.log.Debug("worker completed", zap.Int64("requests", w.requests))
	}()

	for {
		if w.state.stopped() {
			return
		}
		if err := w.gate.Wait(ctx, w.state.deadline()); err != nil {
			return
		}
		// The gate may have released us after cancellation moved the deadline.
		if w.state.stopped() {
			return
		}

		spec := w.opts.Sampler.Sample(w.rng)
		o := w.opts.Requester.Do(ctx, spec)
		total := w.opts.Aggregator.Record(o)
		w.requests++
		w.logOutcome(o, total)

		if !w.pause() {
			return
		}
	}
}

func (w *worker) logOutcome(o metrics.Outcome, total int64) {
	switch o.Class {
	case metrics.ServerError:
		w.log.Warn("server error",
			zap.Int("status", o.StatusCode),
			zap.Duration("latency", o.Latency),
			zap.String("request", o.Request),
		)
	case metrics.Timeout, metrics.TransportError:
		w.log.Debug("request failed",
			zap.String("class", o.Class.String()),
			zap.Error(o.Err),
			zap.String("request", o.Request),
		)
	}
	if total%int64(w.opts.LogEvery) == 0 {
		w.log.Info("progress",
			zap.Int64("total", total),
			zap.String("status", o.Key()),
			zap.Duration("latency", o.Latency),
			zap.String("request", o.Request),
		)
	}
}

// pause sleeps the pacing interval. It returns false if the run stopped
// while sleeping.
func (w *worker) pause() bool {
	if w.opts.Pacing <= 0 {
		return true
	}
	timer := time.NewTimer(w.opts.Pacing)
	defer timer.Stop()
	select {
	case <-w.state.stop:
		return false
	case <-timer.C:
		return true
	}
}
