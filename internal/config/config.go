package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

type Mode string

const (
	ModeBooking Mode = "booking"
	ModeSearch  Mode = "search"
)

// Default artifact names per mode. Existing result tooling looks for these.
const (
	DefaultBookingOutput = "load_test_booking_results.json"
	DefaultSearchOutput  = "load_test_results.json"
)

const DateLayout = "2006-01-02"

type Config struct {
	Mode            Mode          `mapstructure:"mode"`
	TargetURL       string        `mapstructure:"target"`
	Concurrency     int           `mapstructure:"concurrency"`
	Duration        time.Duration `mapstructure:"duration"`
	Pacing          time.Duration `mapstructure:"pacing"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Rate            int           `mapstructure:"rate"`
	Seed            int64         `mapstructure:"seed"`
	Output          string        `mapstructure:"output"`
	HTMLOutput      string        `mapstructure:"html_output"`
	JSONOutput      bool          `mapstructure:"json_output"`
	Dashboard       bool          `mapstructure:"dashboard"`
	NoProgress      bool          `mapstructure:"no_progress"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	Thresholds      []string      `mapstructure:"thresholds"`
	MaxErrorSamples int           `mapstructure:"max_error_samples"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxConnsPerHost int           `mapstructure:"max_conns_per_host"` // 0 picks the mode default
	ConfigFile      string        `mapstructure:"-"`
	Booking         BookingConfig `mapstructure:"booking"`
	Search          SearchConfig  `mapstructure:"search"`
	Tracing         TracingConfig `mapstructure:"tracing"`
}

type BookingConfig struct {
	FlightIDMin int64 `mapstructure:"flight_id_min"`
	FlightIDMax int64 `mapstructure:"flight_id_max"`
	MaxLegs     int   `mapstructure:"max_legs"`
	SeatMin     int   `mapstructure:"seat_min"`
	SeatMax     int   `mapstructure:"seat_max"`
}

type SearchConfig struct {
	AirportsFile  string    `mapstructure:"airports"`
	DateStart     time.Time `mapstructure:"date_start"`
	DateEnd       time.Time `mapstructure:"date_end"`
	PassengersMin int       `mapstructure:"passengers_min"`
	PassengersMax int       `mapstructure:"passengers_max"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Propagate   *bool   `mapstructure:"propagate"` // nil follows Enabled
}

// Enabled reports whether an OTLP endpoint is configured, either directly or
// through OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

// Defaults returns the configuration used when neither a file nor a flag sets
// a value.
func Defaults(mode Mode) Config {
	cfg := Config{
		Mode:            mode,
		TargetURL:       "http://localhost:8080",
		Concurrency:     10,
		Duration:        60 * time.Second,
		Pacing:          10 * time.Millisecond,
		Timeout:         30 * time.Second,
		LogLevel:        "info",
		LogFormat:       "console",
		MaxErrorSamples: 100,
		MaxIdleConns:    100,
		Booking: BookingConfig{
			FlightIDMin: 1,
			FlightIDMax: 8000,
			MaxLegs:     3,
			SeatMin:     1,
			SeatMax:     3,
		},
		Search: SearchConfig{
			DateStart:     time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC),
			DateEnd:       time.Date(2025, time.October, 30, 0, 0, 0, 0, time.UTC),
			PassengersMin: 1,
			PassengersMax: 9,
		},
		Tracing: TracingConfig{
			Protocol:   "grpc",
			SampleRate: 1.0,
		},
	}
	switch mode {
	case ModeBooking:
		cfg.Output = DefaultBookingOutput
	case ModeSearch:
		cfg.Output = DefaultSearchOutput
	}
	return cfg
}

// ConnsPerHost resolves the per-host connection limit: 30 for booking and twice
// the concurrency for search unless set explicitly.
func (c Config) ConnsPerHost() int {
	if c.MaxConnsPerHost > 0 {
		return c.MaxConnsPerHost
	}
	if c.Mode == ModeBooking {
		return 30
	}
	return 2 * c.Concurrency
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Warnings lists settings that are valid but aggressive enough to call out
// before the run starts.
func (c Config) Warnings() []string {
	var warnings []string
	if c.Concurrency > 500 {
		warnings = append(warnings, fmt.Sprintf("high concurrency configured (%d workers); ensure you have authorization to test the target system", c.Concurrency))
	}
	if c.Rate > 1000 {
		warnings = append(warnings, fmt.Sprintf("high rate limit configured (%d RPS); ensure you have authorization to test the target system", c.Rate))
	}
	return warnings
}

func (c Config) Validate() error {
	var issues []string

	switch c.Mode {
	case ModeBooking, ModeSearch:
	default:
		issues = append(issues, fmt.Sprintf("mode must be 'booking' or 'search', got %q", c.Mode))
	}

	if target := strings.TrimSpace(c.TargetURL); target == "" {
		issues = append(issues, "target is required (use --help for usage information)")
	} else if u, err := url.Parse(target); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		issues = append(issues, fmt.Sprintf("target %q must be an http(s) URL", target))
	}

	if c.Concurrency < 1 {
		issues = append(issues, "concurrency must be >= 1")
	}
	if c.Duration < 0 {
		issues = append(issues, "duration must be >= 0")
	}
	if c.Pacing < 0 {
		issues = append(issues, "pacing must be >= 0")
	}
	if c.Timeout <= 0 {
		issues = append(issues, "timeout must be > 0")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.MaxErrorSamples < 0 {
		issues = append(issues, "max-error-samples must be >= 0")
	}
	if c.MaxIdleConns < 0 || c.MaxConnsPerHost < 0 {
		issues = append(issues, "connection limits must be >= 0")
	}
	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json-output are mutually exclusive")
	}
	if strings.TrimSpace(c.Output) == "" {
		issues = append(issues, "output path is required")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log-level must be debug, info, warn or error, got %q", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("log-format must be console or json, got %q", c.LogFormat))
	}

	switch c.Mode {
	case ModeBooking:
		issues = append(issues, validateBooking(c.Booking)...)
	case ModeSearch:
		issues = append(issues, validateSearch(c.Search)...)
	}
	issues = append(issues, validateTracing(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateBooking(b BookingConfig) []string {
	var issues []string
	if b.FlightIDMin < 1 {
		issues = append(issues, "booking: flight-id-min must be >= 1")
	}
	if b.FlightIDMax < b.FlightIDMin {
		issues = append(issues, "booking: flight-id-max must be >= flight-id-min")
	}
	if b.MaxLegs < 1 {
		issues = append(issues, "booking: max-legs must be >= 1")
	}
	if b.SeatMin < 1 {
		issues = append(issues, "booking: seat-min must be >= 1")
	}
	if b.SeatMax < b.SeatMin {
		issues = append(issues, "booking: seat-max must be >= seat-min")
	}
	return issues
}

func validateSearch(s SearchConfig) []string {
	var issues []string
	if strings.TrimSpace(s.AirportsFile) == "" {
		issues = append(issues, "search: airports file is required")
	}
	if s.DateStart.IsZero() || s.DateEnd.IsZero() {
		issues = append(issues, "search: date range is required")
	} else if s.DateEnd.Before(s.DateStart) {
		issues = append(issues, "search: date-end must not be before date-start")
	}
	if s.PassengersMin < 1 {
		issues = append(issues, "search: passengers-min must be >= 1")
	}
	if s.PassengersMax < s.PassengersMin {
		issues = append(issues, "search: passengers-max must be >= passengers-min")
	}
	return issues
}

func validateTracing(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
