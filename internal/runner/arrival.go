package runner

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// arrivalGate admits requests at the global rate cap. A nil gate admits
// everything immediately.
type arrivalGate struct {
	limiter *rate.Limiter
}

func newArrivalGate(opt Options) *arrivalGate {
	if opt.RatePerSecond <= 0 {
		return nil
	}
	limiter := opt.LimiterFactory(opt.RatePerSecond)
	if limiter == nil || limiter.Limit() == rate.Inf {
		return nil
	}
	return &arrivalGate{limiter: limiter}
}

// Wait blocks until a request may be issued. It fails when ctx ends or when
// the next token would only arrive after deadline.
func (g *arrivalGate) Wait(ctx context.Context, deadline time.Time) error {
	if g == nil || g.limiter == nil {
		return nil
	}
	waitCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	return g.limiter.Wait(waitCtx)
}
