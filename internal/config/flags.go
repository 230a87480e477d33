package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags of mode configured.
func newFlagCommand(mode Mode) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "flightload " + string(mode),
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags(), mode)
	return cmd
}

// configureFlags sets up the flags for mode on the provided flag set. Flag
// defaults mirror Defaults(mode) so --help shows the effective values.
func configureFlags(flags *pflag.FlagSet, mode Mode) {
	def := Defaults(mode)

	// Load control flags
	flags.String("target", def.TargetURL, "Base URL of the flight service")
	flags.IntP("concurrency", "c", def.Concurrency, "Number of concurrent workers")
	flags.VarP(newSecondsValue(def.Duration), "duration", "d", "How long to run the test, in seconds or as a duration (e.g. 60, 30s, 1m)")
	flags.Duration("pacing", def.Pacing, "Pause between consecutive requests of one worker")
	flags.Var(newSecondsValue(def.Timeout), "timeout", "Per-request timeout, in seconds or as a duration")
	flags.IntP("rate", "r", 0, "Global requests per second cap (0 means unlimited)")
	flags.Int64("seed", 0, "Random seed for request sampling (0 means time based)")
	flags.Int("max-idle-conns", def.MaxIdleConns, "Idle connections kept in the shared pool")
	flags.Int("max-conns-per-host", 0, "Connections per host (0 means 30 for booking, 2x concurrency for search)")

	// Output flags
	flags.StringP("output", "o", def.Output, "Path of the JSON results artifact")
	flags.String("html-output", "", "Generate HTML report to the specified file path")
	flags.Bool("json-output", false, "Print the JSON report to stdout instead of the text summary")
	flags.Bool("dashboard", false, "Show live terminal dashboard with metrics")
	flags.Bool("no-progress", false, "Disable the live progress line")
	flags.String("log-level", def.LogLevel, "Log level: debug, info, warn or error")
	flags.String("log-format", def.LogFormat, "Log format: console or json")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flags.StringSlice("threshold", nil, "Pass/fail thresholds (repeatable, e.g. 'p95 < 500', 'error_rate < 1')")
	flags.Int("max-error-samples", def.MaxErrorSamples, "Maximum number of error records kept in the report")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (host:port); enables tracing")
	flags.String("tracing-protocol", def.Tracing.Protocol, "OTLP protocol: grpc or http")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("tracing-sample-rate", def.Tracing.SampleRate, "Fraction of requests to trace (0.0-1.0)")
	flags.Bool("tracing-propagate", false, "Inject W3C trace context headers (defaults to on when tracing is enabled)")

	switch mode {
	case ModeBooking:
		flags.Int64("flight-id-min", def.Booking.FlightIDMin, "Lowest flight ID to book")
		flags.Int64("flight-id-max", def.Booking.FlightIDMax, "Highest flight ID to book")
		flags.Int("max-legs", def.Booking.MaxLegs, "Maximum flight legs per booking")
		flags.Int("seat-min", def.Booking.SeatMin, "Minimum seats per booking")
		flags.Int("seat-max", def.Booking.SeatMax, "Maximum seats per booking")
	case ModeSearch:
		flags.String("airports", "", "Airport catalog file (txt, json or yaml)")
		flags.String("date-start", def.Search.DateStart.Format(DateLayout), "First departure date (YYYY-MM-DD)")
		flags.String("date-end", def.Search.DateEnd.Format(DateLayout), "Last departure date (YYYY-MM-DD)")
		flags.Int("passengers-min", def.Search.PassengersMin, "Minimum passengers per search")
		flags.Int("passengers-max", def.Search.PassengersMax, "Maximum passengers per search")
	}
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file. Only flags the user set are applied.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("target") {
		val, err := fs.GetString("target")
		if err != nil {
			return err
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}
	if fs.Changed("concurrency") {
		val, err := fs.GetInt("concurrency")
		if err != nil {
			return err
		}
		cfg.Concurrency = val
	}
	if fs.Changed("duration") {
		val, err := getSeconds(fs, "duration")
		if err != nil {
			return err
		}
		cfg.Duration = val
	}
	if fs.Changed("pacing") {
		val, err := fs.GetDuration("pacing")
		if err != nil {
			return err
		}
		cfg.Pacing = val
	}
	if fs.Changed("timeout") {
		val, err := getSeconds(fs, "timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetInt("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}
	if fs.Changed("seed") {
		val, err := fs.GetInt64("seed")
		if err != nil {
			return err
		}
		cfg.Seed = val
	}
	if fs.Changed("max-idle-conns") {
		val, err := fs.GetInt("max-idle-conns")
		if err != nil {
			return err
		}
		cfg.MaxIdleConns = val
	}
	if fs.Changed("max-conns-per-host") {
		val, err := fs.GetInt("max-conns-per-host")
		if err != nil {
			return err
		}
		cfg.MaxConnsPerHost = val
	}
	if fs.Changed("output") {
		val, err := fs.GetString("output")
		if err != nil {
			return err
		}
		cfg.Output = strings.TrimSpace(val)
	}
	if fs.Changed("html-output") {
		val, err := fs.GetString("html-output")
		if err != nil {
			return err
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("no-progress") {
		val, err := fs.GetBool("no-progress")
		if err != nil {
			return err
		}
		cfg.NoProgress = val
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("log-format") {
		val, err := fs.GetString("log-format")
		if err != nil {
			return err
		}
		cfg.LogFormat = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("metrics-addr") {
		val, err := fs.GetString("metrics-addr")
		if err != nil {
			return err
		}
		cfg.MetricsAddr = strings.TrimSpace(val)
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	if fs.Changed("max-error-samples") {
		val, err := fs.GetInt("max-error-samples")
		if err != nil {
			return err
		}
		cfg.MaxErrorSamples = val
	}

	if err := applyTracingFlags(&cfg.Tracing, fs); err != nil {
		return err
	}

	switch cfg.Mode {
	case ModeBooking:
		return applyBookingFlags(&cfg.Booking, fs)
	case ModeSearch:
		return applySearchFlags(&cfg.Search, fs)
	}
	return nil
}

func applyTracingFlags(t *TracingConfig, fs *pflag.FlagSet) error {
	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		t.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		t.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		t.Insecure = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		t.SampleRate = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		t.Propagate = &val
	}
	return nil
}

func applyBookingFlags(b *BookingConfig, fs *pflag.FlagSet) error {
	if fs.Changed("flight-id-min") {
		val, err := fs.GetInt64("flight-id-min")
		if err != nil {
			return err
		}
		b.FlightIDMin = val
	}
	if fs.Changed("flight-id-max") {
		val, err := fs.GetInt64("flight-id-max")
		if err != nil {
			return err
		}
		b.FlightIDMax = val
	}
	if fs.Changed("max-legs") {
		val, err := fs.GetInt("max-legs")
		if err != nil {
			return err
		}
		b.MaxLegs = val
	}
	if fs.Changed("seat-min") {
		val, err := fs.GetInt("seat-min")
		if err != nil {
			return err
		}
		b.SeatMin = val
	}
	if fs.Changed("seat-max") {
		val, err := fs.GetInt("seat-max")
		if err != nil {
			return err
		}
		b.SeatMax = val
	}
	return nil
}

func applySearchFlags(s *SearchConfig, fs *pflag.FlagSet) error {
	if fs.Changed("airports") {
		val, err := fs.GetString("airports")
		if err != nil {
			return err
		}
		s.AirportsFile = strings.TrimSpace(val)
	}
	if fs.Changed("date-start") {
		val, err := fs.GetString("date-start")
		if err != nil {
			return err
		}
		d, err := parseDate(val)
		if err != nil {
			return fmt.Errorf("date-start: %w", err)
		}
		s.DateStart = d
	}
	if fs.Changed("date-end") {
		val, err := fs.GetString("date-end")
		if err != nil {
			return err
		}
		d, err := parseDate(val)
		if err != nil {
			return fmt.Errorf("date-end: %w", err)
		}
		s.DateEnd = d
	}
	if fs.Changed("passengers-min") {
		val, err := fs.GetInt("passengers-min")
		if err != nil {
			return err
		}
		s.PassengersMin = val
	}
	if fs.Changed("passengers-max") {
		val, err := fs.GetInt("passengers-max")
		if err != nil {
			return err
		}
		s.PassengersMax = val
	}
	return nil
}

// secondsValue is a duration flag that also takes a bare number of seconds.
type secondsValue time.Duration

func newSecondsValue(def time.Duration) *secondsValue {
	v := secondsValue(def)
	return &v
}

func (v *secondsValue) Set(s string) error {
	d, err := parseSeconds(s)
	if err != nil {
		return err
	}
	*v = secondsValue(d)
	return nil
}

func (v *secondsValue) String() string { return time.Duration(*v).String() }

func (v *secondsValue) Type() string { return "seconds" }

func getSeconds(fs *pflag.FlagSet, name string) (time.Duration, error) {
	f := fs.Lookup(name)
	if f == nil {
		return 0, fmt.Errorf("flag %q is not defined", name)
	}
	v, ok := f.Value.(*secondsValue)
	if !ok {
		return 0, fmt.Errorf("flag %q is %s, not seconds", name, f.Value.Type())
	}
	return time.Duration(*v), nil
}

func parseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(value), time.UTC)
}
