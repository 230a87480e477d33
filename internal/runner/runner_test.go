package runner_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/flightload/internal/httpclient"
	"github.com/torosent/flightload/internal/metrics"
	"github.com/torosent/flightload/internal/runner"
	"github.com/torosent/flightload/internal/sampler"
)

// fakeRequester simulates performing a request with fixed latency. Like the
// HTTP requester it ignores cancellation of the run context.
type fakeRequester struct {
	latency time.Duration
	calls   *int64
	status  int
}

func (f *fakeRequester) Do(ctx context.Context, spec sampler.Spec) metrics.Outcome {
	if f.calls != nil {
		atomic.AddInt64(f.calls, 1)
	}
	issued := time.Now()
	if f.latency > 0 {
		time.Sleep(f.latency)
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	return metrics.FromResponse(status, time.Since(issued), issued, spec.String())
}

func bookingSampler(t *testing.T) sampler.Sampler {
	t.Helper()
	s, err := sampler.NewBooking(sampler.DefaultBookingOptions())
	if err != nil {
		t.Fatalf("NewBooking: %v", err)
	}
	return s
}

func newRunner(t *testing.T, opts runner.Options) *runner.Runner {
	t.Helper()
	if opts.Sampler == nil {
		opts.Sampler = bookingSampler(t)
	}
	r, err := runner.New(opts)
	if err != nil {
		t.Fatalf("runner.New: %v", err)
	}
	return r
}

func checkConsistent(t *testing.T, res runner.Result) {
	t.Helper()
	if err := res.Snapshot.Verify(); err != nil {
		t.Fatalf("snapshot inconsistent: %v", err)
	}
	var sum int64
	for _, n := range res.WorkerRequests {
		sum += n
	}
	if sum != res.Total {
		t.Fatalf("worker requests sum to %d, total is %d", sum, res.Total)
	}
}

func TestNewRequiresSamplerAndRequester(t *testing.T) {
	if _, err := runner.New(runner.Options{Requester: &fakeRequester{}}); err == nil {
		t.Fatal("expected error without sampler")
	}
	if _, err := runner.New(runner.Options{Sampler: bookingSampler(t)}); err == nil {
		t.Fatal("expected error without requester")
	}
}

func TestRunnerZeroDurationCompletesImmediately(t *testing.T) {
	var calls int64
	r := newRunner(t, runner.Options{
		Concurrency: 4,
		Duration:    0,
		Requester:   &fakeRequester{calls: &calls},
	})
	start := time.Now()
	res := r.Run(context.Background())
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("zero duration run took %s", elapsed)
	}
	if res.Total != 0 || calls != 0 {
		t.Fatalf("expected no requests, got total=%d calls=%d", res.Total, calls)
	}
	if res.Interrupted {
		t.Fatal("zero duration run should not be interrupted")
	}
	if len(res.WorkerRequests) != 4 {
		t.Fatalf("expected 4 worker counters, got %d", len(res.WorkerRequests))
	}
	checkConsistent(t, res)
}

// TestRunnerHonorsDuration ensures the deadline stops every worker.
func TestRunnerHonorsDuration(t *testing.T) {
	var calls int64
	r := newRunner(t, runner.Options{
		Concurrency: 10,
		Duration:    50 * time.Millisecond,
		Requester:   &fakeRequester{latency: 5 * time.Millisecond, calls: &calls},
	})
	start := time.Now()
	res := r.Run(context.Background())
	elapsed := time.Since(start)
	if elapsed < 50*time.Millisecond || elapsed > 250*time.Millisecond {
		// allow some scheduling fudge but not extremely off
		t.Fatalf("duration enforcement off: %s", elapsed)
	}
	if res.Duration <= 0 {
		t.Fatalf("result duration not recorded")
	}
	if res.Total <= 0 {
		t.Fatalf("expected some requests executed")
	}
	if calls != res.Total {
		t.Fatalf("calls mismatch: %d vs %d", calls, res.Total)
	}
	checkConsistent(t, res)
}

func TestRunnerPacingSpacesRequests(t *testing.T) {
	var calls int64
	r := newRunner(t, runner.Options{
		Concurrency: 1,
		Duration:    100 * time.Millisecond,
		Pacing:      25 * time.Millisecond,
		Requester:   &fakeRequester{calls: &calls},
	})
	res := r.Run(context.Background())
	// one request per 25ms window, plus the one issued at t=0
	if res.Total < 2 || res.Total > 5 {
		t.Fatalf("pacing off: total=%d", res.Total)
	}
}

// TestRateLimiterCapsThroughput ensures the global cap restricts RPS.
func TestRateLimiterCapsThroughput(t *testing.T) {
	var calls int64
	rateLimit := 100 // requests per second theoretical maximum
	duration := 100 * time.Millisecond
	r := newRunner(t, runner.Options{
		Concurrency:    20,
		Duration:       duration,
		RatePerSecond:  rateLimit,
		Requester:      &fakeRequester{calls: &calls},
		LimiterFactory: func(rps int) *rate.Limiter { return rate.NewLimiter(rate.Limit(rps), 1) },
	})
	res := r.Run(context.Background())
	// expected upper bound ~ rateLimit * (duration seconds)
	maxExpected := int(float64(rateLimit) * (float64(duration) / float64(time.Second)) * 1.20) // 20% slack
	if int(res.Total) > maxExpected {
		t.Fatalf("rate limiter exceeded: total=%d max=%d", res.Total, maxExpected)
	}
	if calls != res.Total {
		t.Fatalf("calls mismatch: %d vs %d", calls, res.Total)
	}
}

func TestRunnerInterruptReturnsPartialSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := newRunner(t, runner.Options{
		Concurrency: 5,
		Duration:    10 * time.Second,
		Pacing:      time.Millisecond,
		Requester:   &fakeRequester{latency: 2 * time.Millisecond},
	})
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	res := r.Run(ctx)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("interrupt not honoured promptly: %s", elapsed)
	}
	if !res.Interrupted {
		t.Fatal("expected Interrupted result")
	}
	if res.Total == 0 {
		t.Fatal("expected partial data before the interrupt")
	}
	if res.Duration >= 10*time.Second {
		t.Fatalf("window should end at the interrupt, got %s", res.Duration)
	}
	checkConsistent(t, res)
}

func TestRunnerInterruptLetsInFlightRequestsFinish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int64
	r := newRunner(t, runner.Options{
		Concurrency: 3,
		Duration:    10 * time.Second,
		Requester:   &fakeRequester{latency: 200 * time.Millisecond, calls: &calls},
	})
	time.AfterFunc(50*time.Millisecond, cancel)

	res := r.Run(ctx)
	if res.Total != 3 || calls != 3 {
		t.Fatalf("expected each worker to record its in-flight request, total=%d calls=%d", res.Total, calls)
	}
	if res.Snapshot.Count(metrics.Success) != 3 {
		t.Fatalf("in-flight requests should complete successfully, got %v", res.Snapshot.Classes)
	}
}

func TestRunnerInterruptAfterDeadlineIsReported(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := newRunner(t, runner.Options{
		Concurrency: 2,
		Duration:    50 * time.Millisecond,
		Requester:   &fakeRequester{latency: 400 * time.Millisecond},
	})
	// The deadline passes while the first requests are still in flight.
	time.AfterFunc(150*time.Millisecond, cancel)

	res := r.Run(ctx)
	if !res.Interrupted {
		t.Fatal("interrupt during the drain should mark the run interrupted")
	}
	if res.Total != 2 {
		t.Fatalf("expected the two in-flight requests, got total=%d", res.Total)
	}
	checkConsistent(t, res)
}

func TestRunnerCompletedRunIsNotInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newRunner(t, runner.Options{
		Concurrency: 2,
		Duration:    50 * time.Millisecond,
		Requester:   &fakeRequester{latency: 5 * time.Millisecond},
	})
	res := r.Run(ctx)
	cancel()
	if res.Interrupted {
		t.Fatal("a run that reached its deadline should not be interrupted")
	}
}

func TestRunnerAgainstStubServer(t *testing.T) {
	if testing.Short() {
		t.Skip("runs for two seconds")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	requester := newHTTPRequester(t, srv.URL, 5)
	r := newRunner(t, runner.Options{
		Concurrency: 5,
		Duration:    2 * time.Second,
		Pacing:      10 * time.Millisecond,
		Requester:   requester,
	})
	res := r.Run(context.Background())
	checkConsistent(t, res)

	if res.Total == 0 {
		t.Fatal("expected requests against the stub")
	}
	if got := res.Snapshot.Count(metrics.Success); got != res.Total {
		t.Fatalf("expected 100%% success, got %d of %d (%v)", got, res.Total, res.Snapshot.Codes)
	}
	// Every iteration costs at least 5ms of service time plus 10ms pacing.
	maxExpected := int64(5 * (2000/15 + 1))
	if res.Total > maxExpected {
		t.Fatalf("more requests than pacing allows: total=%d max=%d", res.Total, maxExpected)
	}
	throughput := float64(res.Total) / res.Duration.Seconds()
	if throughput < 80 || throughput > 360 {
		t.Fatalf("throughput %.1f req/s outside the expected band", throughput)
	}
}

func TestRunnerConnectionFailureIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	r := newRunner(t, runner.Options{
		Concurrency: 2,
		Duration:    100 * time.Millisecond,
		Pacing:      5 * time.Millisecond,
		Requester:   newHTTPRequester(t, url, 2),
	})
	res := r.Run(context.Background())
	checkConsistent(t, res)

	if res.Total == 0 {
		t.Fatal("expected attempts against the closed server")
	}
	if got := res.Snapshot.Count(metrics.TransportError); got != res.Total {
		t.Fatalf("expected every outcome to be a transport error, got %v", res.Snapshot.Classes)
	}
	if res.Snapshot.Codes[metrics.KeyError] != res.Total {
		t.Fatalf("expected ERROR key for all outcomes, got %v", res.Snapshot.Codes)
	}
	if res.Errors != res.Total {
		t.Fatalf("error count = %d, want %d", res.Errors, res.Total)
	}
}

func newHTTPRequester(t *testing.T, base string, concurrency int) *httpclient.Requester {
	t.Helper()
	builder, err := httpclient.NewRequestBuilder(base)
	if err != nil {
		t.Fatalf("NewRequestBuilder: %v", err)
	}
	req, err := httpclient.NewRequester(httpclient.RequesterOptions{
		Client:  httpclient.NewClient(time.Second, httpclient.DefaultPoolOptions(concurrency)),
		Builder: builder,
		Timeout: time.Second,
	})
	if err != nil {
		t.Fatalf("NewRequester: %v", err)
	}
	return req
}
