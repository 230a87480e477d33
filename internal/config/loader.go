package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses "<mode> [flags]" arguments and the optional configuration file
// into a Config.
func (l Loader) Load(args []string) (*Config, error) {
	if len(args) == 0 {
		printModes(os.Stdout)
		return nil, ErrHelpRequested
	}
	switch args[0] {
	case "-h", "--help", "help":
		printModes(os.Stdout)
		return nil, ErrHelpRequested
	}

	mode := Mode(strings.ToLower(strings.TrimSpace(args[0])))
	if mode != ModeBooking && mode != ModeSearch {
		return nil, fmt.Errorf("unknown mode %q: use 'booking' or 'search'", args[0])
	}

	cmd := newFlagCommand(mode)
	if err := cmd.Flags().Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	return l.FromFlags(mode, flagSet)
}

// FromFlags builds a Config for mode from a parsed flag set. Values come from
// Defaults, then the file named by --config, then flags the user set.
func (Loader) FromFlags(mode Mode, flagSet *pflag.FlagSet) (*Config, error) {
	configPath := ""
	if f := flagSet.Lookup("config"); f != nil {
		configPath = strings.TrimSpace(f.Value.String())
	}

	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Defaults(mode)
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(&cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(&cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	return &cfg, nil
}

func printModes(out io.Writer) {
	fmt.Fprintln(out, "Usage: flightload <booking|search> [flags]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Modes:")
	fmt.Fprintln(out, "  booking   POST random itineraries to /api/v1/booking/initiate")
	fmt.Fprintln(out, "  search    GET random routes from /api/v1/search/flights (requires --airports)")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Run 'flightload <mode> --help' for the flags of a mode.")
}

// applyConfigSettings applies settings from a config file to the Config struct.
// A "mode" key in the file is ignored: the mode comes from the command.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "target"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("target: %w", err)
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "concurrency"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("concurrency: %w", err)
		}
		cfg.Concurrency = val
	}

	if raw, ok := lookupSetting(settings, "duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		cfg.Duration = dur
	}

	if raw, ok := lookupSetting(settings, "pacing"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("pacing: %w", err)
		}
		cfg.Pacing = dur
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}

	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		cfg.Rate = val
	}

	if raw, ok := lookupSetting(settings, "seed"); ok {
		val, err := asInt64(raw)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		cfg.Seed = val
	}

	if raw, ok := lookupSetting(settings, "max_idle_conns", "maxidleconns", "max-idle-conns"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("max_idle_conns: %w", err)
		}
		cfg.MaxIdleConns = val
	}

	if raw, ok := lookupSetting(settings, "max_conns_per_host", "maxconnsperhost", "max-conns-per-host"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("max_conns_per_host: %w", err)
		}
		cfg.MaxConnsPerHost = val
	}

	if raw, ok := lookupSetting(settings, "output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("output: %w", err)
		}
		if val = strings.TrimSpace(val); val != "" {
			cfg.Output = val
		}
	}

	if raw, ok := lookupSetting(settings, "html_output", "htmloutput", "html-output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("html_output: %w", err)
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "json_output", "jsonoutput", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("json_output: %w", err)
		}
		cfg.JSONOutput = val
	}

	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		cfg.Dashboard = val
	}

	if raw, ok := lookupSetting(settings, "no_progress", "noprogress", "no-progress"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("no_progress: %w", err)
		}
		cfg.NoProgress = val
	}

	if raw, ok := lookupSetting(settings, "log_level", "loglevel", "log-level"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
		cfg.LogLevel = val
	}

	if raw, ok := lookupSetting(settings, "log_format", "logformat", "log-format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("log_format: %w", err)
		}
		cfg.LogFormat = val
	}

	if raw, ok := lookupSetting(settings, "metrics_addr", "metricsaddr", "metrics-addr"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("metrics_addr: %w", err)
		}
		cfg.MetricsAddr = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "max_error_samples", "maxerrorsamples", "max-error-samples"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("max_error_samples: %w", err)
		}
		cfg.MaxErrorSamples = val
	}

	if raw, ok := lookupSetting(settings, "booking"); ok {
		if err := parseBooking(&cfg.Booking, raw); err != nil {
			return fmt.Errorf("booking: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "search"); ok {
		if err := parseSearch(&cfg.Search, raw); err != nil {
			return fmt.Errorf("search: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := parseTracing(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

func parseBooking(b *BookingConfig, value interface{}) error {
	entry, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(entry, "flight_id_min", "flightidmin", "flight-id-min"); ok {
		val, err := asInt64(raw)
		if err != nil {
			return fmt.Errorf("flight_id_min: %w", err)
		}
		b.FlightIDMin = val
	}
	if raw, ok := lookupSetting(entry, "flight_id_max", "flightidmax", "flight-id-max"); ok {
		val, err := asInt64(raw)
		if err != nil {
			return fmt.Errorf("flight_id_max: %w", err)
		}
		b.FlightIDMax = val
	}
	if raw, ok := lookupSetting(entry, "max_legs", "maxlegs", "max-legs"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("max_legs: %w", err)
		}
		b.MaxLegs = val
	}
	if raw, ok := lookupSetting(entry, "seat_min", "seatmin", "seat-min"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("seat_min: %w", err)
		}
		b.SeatMin = val
	}
	if raw, ok := lookupSetting(entry, "seat_max", "seatmax", "seat-max"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("seat_max: %w", err)
		}
		b.SeatMax = val
	}
	return nil
}

func parseSearch(s *SearchConfig, value interface{}) error {
	entry, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(entry, "airports", "airports_file", "airportsfile"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("airports: %w", err)
		}
		s.AirportsFile = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "date_start", "datestart", "date-start"); ok {
		val, err := asDate(raw)
		if err != nil {
			return fmt.Errorf("date_start: %w", err)
		}
		s.DateStart = val
	}
	if raw, ok := lookupSetting(entry, "date_end", "dateend", "date-end"); ok {
		val, err := asDate(raw)
		if err != nil {
			return fmt.Errorf("date_end: %w", err)
		}
		s.DateEnd = val
	}
	if raw, ok := lookupSetting(entry, "passengers_min", "passengersmin", "passengers-min"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("passengers_min: %w", err)
		}
		s.PassengersMin = val
	}
	if raw, ok := lookupSetting(entry, "passengers_max", "passengersmax", "passengers-max"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("passengers_max: %w", err)
		}
		s.PassengersMax = val
	}
	return nil
}

func parseTracing(t *TracingConfig, value interface{}) error {
	entry, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(entry, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		t.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		t.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(entry, "service_name", "servicename", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("service_name: %w", err)
		}
		t.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		t.Insecure = val
	}
	if raw, ok := lookupSetting(entry, "sample_rate", "samplerate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		t.SampleRate = val
	}
	if raw, ok := lookupSetting(entry, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		t.Propagate = &val
	}
	return nil
}
