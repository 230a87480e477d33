// Package threshold evaluates pass/fail assertions against a run report.
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/torosent/flightload/internal/metrics"
	"github.com/torosent/flightload/internal/report"
)

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric    string  // e.g., "latency", "errors", "requests"
	Aggregate string  // e.g., "p95", "p99", "avg", "percent", "rate"
	Operator  string  // e.g., "<", "<=", ">", ">=", "=="
	Value     float64 // The threshold value to compare against
	Raw       string  // Original threshold string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// Check converts r into the form stored on a report.
func (r Result) Check() report.Check {
	return report.Check{
		Expression: r.Threshold.Raw,
		Actual:     r.Actual,
		Passed:     r.Pass,
		Message:    r.Message,
	}
}

// Evaluator evaluates thresholds against a report.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks all thresholds against the provided report.
func (e *Evaluator) Evaluate(rep report.Report) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, e.evaluateOne(t, rep))
	}
	return results
}

// Apply evaluates every threshold and stores the checks on rep. It returns
// whether all of them passed.
func (e *Evaluator) Apply(rep *report.Report) bool {
	results := e.Evaluate(*rep)
	rep.Thresholds = nil
	for _, r := range results {
		rep.Thresholds = append(rep.Thresholds, r.Check())
	}
	return rep.Passed()
}

func (e *Evaluator) evaluateOne(t Threshold, rep report.Report) Result {
	actual, err := extractMetricValue(t, rep)
	if err != nil {
		return Result{
			Threshold: t,
			Actual:    0,
			Pass:      false,
			Message:   fmt.Sprintf("error: %v", err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	message := fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value)
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   message,
	}
}

var thresholdPattern = regexp.MustCompile(`^([a-z0-9_]+)(?::([a-z0-9]+))?\s*([<>=!]+)\s*([0-9.]+)$`)

// aliases expands the short forms accepted on the command line.
var aliases = map[string][2]string{
	"p95":          {"latency", "p95"},
	"p99":          {"latency", "p99"},
	"median":       {"latency", "median"},
	"mean":         {"latency", "avg"},
	"avg":          {"latency", "avg"},
	"min":          {"latency", "min"},
	"max":          {"latency", "max"},
	"error_rate":   {"errors", "percent"},
	"failure_rate": {"failed", "percent"},
	"success_rate": {"success", "percent"},
	"throughput":   {"requests", "rate"},
}

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
// - "latency:p95 < 500"          (latency percentile in ms)
// - "success_latency:avg < 200"  (latency of 2xx responses in ms)
// - "errors:percent < 1"         (timeouts and transport errors, in percent)
// - "server_errors:count < 10"   (outcome count of one category)
// - "requests:rate > 100"        (requests per second)
// - "p95 < 500", "error_rate < 1", "throughput > 100" (short forms)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := thresholdPattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric:aggregate operator value, e.g., 'latency:p95 < 500')", s)
	}

	metric := matches[1]
	aggregate := matches[2]
	operator := matches[3]
	valueStr := matches[4]

	if aggregate == "" {
		alias, ok := aliases[metric]
		if !ok {
			return Threshold{}, fmt.Errorf("unknown threshold shorthand %q (supported: p95, p99, median, avg, min, max, error_rate, failure_rate, success_rate, throughput)", metric)
		}
		metric, aggregate = alias[0], alias[1]
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}

	if !isValidMetric(metric) {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: %s)", metric, strings.Join(validMetrics, ", "))
	}

	if !isValidAggregate(metric, aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate %q for %s", aggregate, metric)
	}

	if !isValidOperator(operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errors []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errors = append(errors, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errors, "; "))
	}

	return result, nil
}

var validMetrics = []string{
	"latency", "success_latency", "requests", "errors", "failed",
	"success", "client_errors", "server_errors", "timeouts", "transport_errors",
}

// categoryClass maps per-category metrics to their outcome class.
var categoryClass = map[string]metrics.Class{
	"success":          metrics.Success,
	"client_errors":    metrics.ClientError,
	"server_errors":    metrics.ServerError,
	"timeouts":         metrics.Timeout,
	"transport_errors": metrics.TransportError,
}

func isValidMetric(metric string) bool {
	for _, v := range validMetrics {
		if metric == v {
			return true
		}
	}
	return false
}

func isValidAggregate(metric, aggregate string) bool {
	var valid []string
	switch metric {
	case "latency", "success_latency":
		valid = []string{"p95", "p99", "median", "avg", "min", "max"}
	case "requests":
		valid = []string{"count", "rate"}
	default:
		valid = []string{"count", "percent"}
	}
	for _, v := range valid {
		if aggregate == v {
			return true
		}
	}
	return false
}

func isValidOperator(operator string) bool {
	valid := []string{"<", "<=", ">", ">=", "=="}
	for _, v := range valid {
		if operator == v {
			return true
		}
	}
	return false
}

func extractMetricValue(t Threshold, rep report.Report) (float64, error) {
	res := rep.Results
	switch t.Metric {
	case "latency":
		return extractLatencyMetric(t.Aggregate, res.LatencyStats)
	case "success_latency":
		return extractLatencyMetric(t.Aggregate, res.SuccessLatencyStats)
	case "requests":
		return extractRequestMetric(t.Aggregate, res)
	case "errors":
		return countOrPercent(t.Aggregate, res.ErrorCount, res.TotalRequests)
	case "failed":
		return countOrPercent(t.Aggregate, res.TotalRequests-res.Categories.Success.Count, res.TotalRequests)
	default:
		class, ok := categoryClass[t.Metric]
		if !ok {
			return 0, fmt.Errorf("unknown metric: %s", t.Metric)
		}
		return countOrPercent(t.Aggregate, res.Categories.Get(class).Count, res.TotalRequests)
	}
}

func extractLatencyMetric(aggregate string, stats *report.LatencyStats) (float64, error) {
	if stats == nil {
		return 0, fmt.Errorf("no latency samples")
	}
	switch aggregate {
	case "p95":
		return stats.P95, nil
	case "p99":
		return stats.P99, nil
	case "median":
		return stats.Median, nil
	case "avg", "mean":
		return stats.Mean, nil
	case "min":
		return stats.Min, nil
	case "max":
		return stats.Max, nil
	default:
		return 0, fmt.Errorf("unsupported latency aggregate %q", aggregate)
	}
}

func extractRequestMetric(aggregate string, res report.Results) (float64, error) {
	switch aggregate {
	case "count":
		return float64(res.TotalRequests), nil
	case "rate":
		return res.Throughput, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for requests (use 'count' or 'rate')", aggregate)
	}
}

func countOrPercent(aggregate string, count, total int64) (float64, error) {
	switch aggregate {
	case "count":
		return float64(count), nil
	case "percent":
		return report.Percent(count, total), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q (use 'count' or 'percent')", aggregate)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
