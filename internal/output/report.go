// Package output renders run reports: the console summary, the JSON artifact,
// a standalone HTML page and the live progress line.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/torosent/flightload/internal/metrics"
	"github.com/torosent/flightload/internal/report"
)

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, rep report.Report) {
	res := rep.Results
	tc := rep.TestConfig

	fmt.Fprintf(w, "\n--- Load Test Results (%s) ---\n", tc.Mode)
	fmt.Fprintf(w, "Run ID:            %s\n", rep.RunID)
	fmt.Fprintf(w, "Target:            %s\n", tc.BaseURL)
	fmt.Fprintf(w, "Concurrency:       %d\n", tc.Concurrency)
	fmt.Fprintf(w, "Total Requests:    %d\n", res.TotalRequests)
	fmt.Fprintf(w, "Duration:          %.2fs\n", res.ActualDuration)
	fmt.Fprintf(w, "Throughput:        %.2f req/s\n", res.Throughput)
	if res.Interrupted {
		fmt.Fprintln(w, "Interrupted:       yes (partial results)")
	}

	if len(res.ResponseCodes) > 0 {
		fmt.Fprintln(w, "\nResponse Codes:")
		for _, code := range sortedCodes(res.ResponseCodes) {
			n := res.ResponseCodes[code]
			fmt.Fprintf(w, "  %s: %d (%.1f%%)\n", code, n, report.Percent(n, res.TotalRequests))
		}
	}

	fmt.Fprintln(w, "\nResponse Summary:")
	for _, c := range metrics.Classes() {
		cat := res.Categories.Get(c)
		fmt.Fprintf(w, "  %-20s %d (%.1f%%)\n", c.Label()+":", cat.Count, cat.Percent)
	}

	writeLatency(w, "Latency (ms):", res.LatencyStats)
	writeLatency(w, "Success Latency (ms):", res.SuccessLatencyStats)

	if res.ErrorCount > 0 {
		fmt.Fprintf(w, "\nErrors (%d):\n", res.ErrorCount)
		for _, k := range res.ErrorKinds {
			fmt.Fprintf(w, "  %s: %d\n", k.Kind, k.Count)
		}
	}

	if len(rep.Thresholds) > 0 {
		passed := 0
		for _, c := range rep.Thresholds {
			if c.Passed {
				passed++
			}
		}
		fmt.Fprintf(w, "\nThresholds (%d/%d passed):\n", passed, len(rep.Thresholds))
		for _, c := range rep.Thresholds {
			fmt.Fprintf(w, "  %s\n", c.Message)
		}
	}
}

func writeLatency(w io.Writer, title string, stats *report.LatencyStats) {
	fmt.Fprintf(w, "\n%s\n", title)
	if stats == nil {
		fmt.Fprintln(w, "  unavailable (no samples)")
		return
	}
	fmt.Fprintf(w, "  Min:             %.1f\n", stats.Min)
	fmt.Fprintf(w, "  Max:             %.1f\n", stats.Max)
	fmt.Fprintf(w, "  Mean:            %.1f\n", stats.Mean)
	fmt.Fprintf(w, "  Median:          %.1f\n", stats.Median)
	fmt.Fprintf(w, "  P95:             %.1f\n", stats.P95)
	fmt.Fprintf(w, "  P99:             %.1f\n", stats.P99)
}

// sortedCodes orders numeric status codes ascending, followed by the
// TIMEOUT and ERROR keys.
func sortedCodes(codes map[string]int64) []string {
	keys := make([]string, 0, len(codes))
	for k := range codes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return keys[i] > keys[j]
	})
	return keys
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, rep report.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
