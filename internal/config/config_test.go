package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/torosent/flightload/internal/config"
)

func TestParseFlagsDefaults(t *testing.T) {
	loader := config.NewLoader()

	cfg, err := loader.Load([]string{"booking"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetURL != "http://localhost:8080" {
		t.Errorf("TargetURL = %q, want http://localhost:8080", cfg.TargetURL)
	}
	if cfg.Concurrency != 10 {
		t.Errorf("Concurrency = %d, want 10", cfg.Concurrency)
	}
	if cfg.Duration != 60*time.Second {
		t.Errorf("Duration = %s, want 60s", cfg.Duration)
	}
	if cfg.Pacing != 10*time.Millisecond {
		t.Errorf("Pacing = %s, want 10ms", cfg.Pacing)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %s, want 30s", cfg.Timeout)
	}
	if cfg.Rate != 0 {
		t.Errorf("Rate = %d, want 0", cfg.Rate)
	}
	if cfg.Output != config.DefaultBookingOutput {
		t.Errorf("Output = %q, want %q", cfg.Output, config.DefaultBookingOutput)
	}
	if cfg.Booking.FlightIDMin != 1 || cfg.Booking.FlightIDMax != 8000 {
		t.Errorf("flight id range = %d..%d, want 1..8000", cfg.Booking.FlightIDMin, cfg.Booking.FlightIDMax)
	}
	if cfg.Booking.MaxLegs != 3 || cfg.Booking.SeatMin != 1 || cfg.Booking.SeatMax != 3 {
		t.Errorf("unexpected booking defaults %+v", cfg.Booking)
	}
	if cfg.JSONOutput {
		t.Errorf("JSONOutput = true, want false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestSearchDefaults(t *testing.T) {
	cfg, err := config.NewLoader().Load([]string{"search", "--airports", "airports.txt"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Output != config.DefaultSearchOutput {
		t.Errorf("Output = %q, want %q", cfg.Output, config.DefaultSearchOutput)
	}
	if cfg.Duration != 60*time.Second {
		t.Errorf("Duration = %s, want 60s", cfg.Duration)
	}
	if got := cfg.Search.DateStart.Format(config.DateLayout); got != "2025-10-01" {
		t.Errorf("DateStart = %s, want 2025-10-01", got)
	}
	if got := cfg.Search.DateEnd.Format(config.DateLayout); got != "2025-10-30" {
		t.Errorf("DateEnd = %s, want 2025-10-30", got)
	}
	if cfg.Search.PassengersMin != 1 || cfg.Search.PassengersMax != 9 {
		t.Errorf("passengers = %d..%d, want 1..9", cfg.Search.PassengersMin, cfg.Search.PassengersMax)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadRequiresMode(t *testing.T) {
	if _, err := config.NewLoader().Load(nil); !errors.Is(err, config.ErrHelpRequested) {
		t.Errorf("Load(nil) error = %v, want ErrHelpRequested", err)
	}
	if _, err := config.NewLoader().Load([]string{"booking", "--help"}); !errors.Is(err, config.ErrHelpRequested) {
		t.Errorf("Load(--help) error = %v, want ErrHelpRequested", err)
	}
	_, err := config.NewLoader().Load([]string{"checkout"})
	if err == nil || !strings.Contains(err.Error(), "unknown mode") {
		t.Errorf("Load(checkout) error = %v, want unknown mode", err)
	}
}

func TestSearchFlagsNotAcceptedForBooking(t *testing.T) {
	if _, err := config.NewLoader().Load([]string{"booking", "--airports", "a.txt"}); err == nil {
		t.Fatal("expected unknown flag error")
	}
}

func TestLoadConfigFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{
		"target": "https://api.example.com",
		"concurrency": 25,
		"duration": "2m",
		"timeout": "45s",
		"rate": 100,
		"seed": 1234,
		"output": "results.json",
		"thresholds": ["p95 < 500", "error_rate < 1"],
		"booking": {"flight_id_max": 500, "max_legs": 2}
	}`), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{"booking", "--config", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetURL != "https://api.example.com" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if cfg.Concurrency != 25 {
		t.Errorf("Concurrency = %d, want 25", cfg.Concurrency)
	}
	if cfg.Duration != 2*time.Minute {
		t.Errorf("Duration = %s, want 2m", cfg.Duration)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %s, want 45s", cfg.Timeout)
	}
	if cfg.Seed != 1234 {
		t.Errorf("Seed = %d, want 1234", cfg.Seed)
	}
	if cfg.Output != "results.json" {
		t.Errorf("Output = %q, want results.json", cfg.Output)
	}
	if len(cfg.Thresholds) != 2 {
		t.Errorf("Thresholds = %v", cfg.Thresholds)
	}
	if cfg.Booking.FlightIDMax != 500 || cfg.Booking.MaxLegs != 2 {
		t.Errorf("Booking = %+v", cfg.Booking)
	}
	if cfg.Booking.SeatMax != 3 {
		t.Errorf("unset booking keys should keep defaults, got SeatMax=%d", cfg.Booking.SeatMax)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, path)
	}
}

func TestLoadConfigFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
target: http://search.internal:8080
concurrency: 8
duration: 30s
log_level: debug
search:
  airports: airports.yaml
  date_start: "2025-12-01"
  date_end: "2025-12-24"
  passengers_max: 6
tracing:
  endpoint: collector:4318
  protocol: http
  insecure: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{"search", "--config", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetURL != "http://search.internal:8080" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Search.AirportsFile != "airports.yaml" {
		t.Errorf("AirportsFile = %q", cfg.Search.AirportsFile)
	}
	if got := cfg.Search.DateEnd.Format(config.DateLayout); got != "2025-12-24" {
		t.Errorf("DateEnd = %s, want 2025-12-24", got)
	}
	if cfg.Search.PassengersMax != 6 {
		t.Errorf("PassengersMax = %d, want 6", cfg.Search.PassengersMax)
	}
	if cfg.Tracing.Endpoint != "collector:4318" || cfg.Tracing.Protocol != "http" || !cfg.Tracing.Insecure {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if !cfg.Tracing.ShouldPropagate() {
		t.Error("propagation should follow tracing being enabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("concurrency: 8\npacing: 50ms\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{"booking", "--config", path, "-c", "3"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Concurrency != 3 {
		t.Errorf("Concurrency = %d, want flag value 3", cfg.Concurrency)
	}
	if cfg.Pacing != 50*time.Millisecond {
		t.Errorf("Pacing = %s, want file value 50ms", cfg.Pacing)
	}
}

func TestDurationInSeconds(t *testing.T) {
	cfg, err := config.NewLoader().Load([]string{"booking", "-d", "1"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Duration != time.Second {
		t.Errorf("Duration = %s, want 1s", cfg.Duration)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("duration: 1.5\ntimeout: 2\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	cfg, err = config.NewLoader().Load([]string{"booking", "--config", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Duration != 1500*time.Millisecond {
		t.Errorf("Duration = %s, want 1.5s", cfg.Duration)
	}
	if cfg.Timeout != 2*time.Second {
		t.Errorf("Timeout = %s, want 2s", cfg.Timeout)
	}
}

func TestWarnings(t *testing.T) {
	cfg, err := config.NewLoader().Load([]string{"booking"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if w := cfg.Warnings(); len(w) != 0 {
		t.Errorf("Warnings() = %v for defaults, want none", w)
	}

	cfg.Concurrency = 501
	cfg.Rate = 1001
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	w := cfg.Warnings()
	if len(w) != 2 {
		t.Fatalf("Warnings() = %v, want two", w)
	}
	if !strings.Contains(w[0], "501 workers") || !strings.Contains(w[1], "1001 RPS") {
		t.Errorf("Warnings() = %v", w)
	}
}

func TestMissingConfigFile(t *testing.T) {
	_, err := config.NewLoader().Load([]string{"booking", "--config", filepath.Join(t.TempDir(), "nope.yaml")})
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"concurrency", func(c *config.Config) { c.Concurrency = 0 }, "concurrency must be >= 1"},
		{"duration", func(c *config.Config) { c.Duration = -time.Second }, "duration must be >= 0"},
		{"pacing", func(c *config.Config) { c.Pacing = -time.Millisecond }, "pacing must be >= 0"},
		{"timeout", func(c *config.Config) { c.Timeout = 0 }, "timeout must be > 0"},
		{"target", func(c *config.Config) { c.TargetURL = "" }, "target is required"},
		{"target scheme", func(c *config.Config) { c.TargetURL = "ftp://x" }, "must be an http(s) URL"},
		{"exclusive output", func(c *config.Config) { c.Dashboard = true; c.JSONOutput = true }, "mutually exclusive"},
		{"log level", func(c *config.Config) { c.LogLevel = "loud" }, "log-level"},
		{"flight ids", func(c *config.Config) { c.Booking.FlightIDMax = 0 }, "flight-id-max"},
		{"seats", func(c *config.Config) { c.Booking.SeatMin = 4 }, "seat-max must be >= seat-min"},
		{"sample rate", func(c *config.Config) { c.Tracing.SampleRate = 2 }, "sample rate"},
		{"tracing protocol", func(c *config.Config) { c.Tracing.Protocol = "thrift" }, "tracing: protocol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults(config.ModeBooking)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tt.want)
			}
			var verr config.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			found := false
			for _, issue := range verr.Issues() {
				if strings.Contains(issue, tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("issues %v do not mention %q", verr.Issues(), tt.want)
			}
		})
	}
}

func TestSearchValidation(t *testing.T) {
	cfg := config.Defaults(config.ModeSearch)
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "airports file is required") {
		t.Fatalf("Validate() error = %v, want missing airports", err)
	}

	cfg.Search.AirportsFile = "airports.txt"
	cfg.Search.DateStart, cfg.Search.DateEnd = cfg.Search.DateEnd, cfg.Search.DateStart
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "date-end") {
		t.Fatalf("Validate() error = %v, want date order issue", err)
	}
}
