// Package runner provides the load test execution engine for flightload.
//
// A [Runner] starts a fixed pool of workers that run until a wall-clock
// deadline. Each worker loops:
//   - stop if the deadline passed or the run was cancelled
//   - wait on the optional global rate cap
//   - draw a request from the [sampler.Sampler] and issue it via the [Requester]
//   - record exactly one [metrics.Outcome] into the shared aggregator
//   - sleep the pacing interval
//
// # Basic Usage
//
//	r, err := runner.New(runner.Options{
//		Concurrency: 10,
//		Duration:    time.Minute,
//		Pacing:      10 * time.Millisecond,
//		Sampler:     bookingSampler,
//		Requester:   httpRequester,
//	})
//	if err != nil {
//		return err
//	}
//	result := r.Run(ctx)
//
// # Cancellation
//
// Cancelling the context passed to Run moves the deadline to now. Workers
// exit at their next loop top; requests already in flight complete and are
// recorded. Run always waits for every worker before freezing the snapshot,
// so an interrupted [Result] is consistent, just shorter.
//
// Per-request failures are outcomes, never worker-terminating. There are no
// retries.
package runner
