// Package metrics classifies request outcomes and aggregates them for reporting.
//
// # Outcomes
//
// Every attempt produces exactly one [Outcome]. Responses are classified by
// status family: 2xx is [Success], 4xx is [ClientError] and 5xx is
// [ServerError]. Requests that exceed their deadline are [Timeout]; every other
// failure, including a response with an unexpected status, is [TransportError].
//
//	o := metrics.FromResponse(resp.StatusCode, latency, issued, spec.String())
//
// # Aggregator
//
// The [Aggregator] accumulates outcomes from all workers:
//
//	agg := metrics.NewAggregator(metrics.WithMaxErrorSamples(100))
//	agg.Start()
//	agg.Record(o)
//	agg.Stop()
//	snap := agg.Snapshot()
//
// Each Record updates the total, the status histogram, the class counters and
// the latency list under a single lock, so a [Snapshot] always satisfies
//
//	Total == sum(Codes) == sum(Classes) == len(Latencies)
//
// [Aggregator.Live] serves progress output and the dashboard from an
// HDR histogram without copying the latency list.
//
// # Sinks
//
// A [Sink] registered with [WithSink] observes every outcome after it has been
// counted. Sinks run outside the aggregator lock and must be concurrency-safe.
package metrics
