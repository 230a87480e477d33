package output_test

import (
	"time"

	"github.com/torosent/flightload/internal/metrics"
	"github.com/torosent/flightload/internal/report"
)

func sampleReport() report.Report {
	agg := metrics.NewAggregator()
	agg.Start()
	now := time.Now()
	for i := 1; i <= 95; i++ {
		agg.Record(metrics.FromResponse(200, time.Duration(i)*time.Millisecond, now, "booking flights=[1] seats=1"))
	}
	agg.Record(metrics.FromResponse(404, 5*time.Millisecond, now, "booking flights=[2] seats=1"))
	agg.Record(metrics.FromResponse(503, 7*time.Millisecond, now, "booking flights=[3] seats=2"))
	agg.Record(metrics.FromResponse(503, 7*time.Millisecond, now, "booking flights=[4] seats=2"))
	agg.Record(metrics.FromError(timeoutError{}, time.Second, now, "booking flights=[5] seats=3"))
	agg.Record(metrics.FromError(errString("connection refused"), time.Millisecond, now, "booking flights=[6] seats=3"))
	agg.Stop()

	return report.Build(agg.Snapshot(), report.RunInfo{
		RunID:       "01TESTRUN",
		Mode:        "booking",
		BaseURL:     "http://localhost:8080",
		Concurrency: 5,
		Duration:    2 * time.Second,
		Booking:     &report.BookingParams{FlightIDMin: 1, FlightIDMax: 8000, MaxLegs: 3, SeatMin: 1, SeatMax: 3},
	})
}

type errString string

func (e errString) Error() string { return string(e) }

// timeoutError behaves like a client timeout.
type timeoutError struct{}

func (timeoutError) Error() string   { return "deadline exceeded" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
