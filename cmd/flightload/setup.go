package main

import (
	"fmt"

	"github.com/torosent/flightload/internal/catalog"
	"github.com/torosent/flightload/internal/config"
	"github.com/torosent/flightload/internal/httpclient"
	"github.com/torosent/flightload/internal/report"
	"github.com/torosent/flightload/internal/runner"
	"github.com/torosent/flightload/internal/sampler"
	"github.com/torosent/flightload/internal/tracing"
)

// domainParams echoes the sampler domain into the report.
type domainParams struct {
	booking *report.BookingParams
	search  *report.SearchParams
}

// newSampler builds the request generator for cfg.Mode. Search mode loads the
// airport catalog first.
func newSampler(cfg *config.Config) (sampler.Sampler, domainParams, error) {
	switch cfg.Mode {
	case config.ModeBooking:
		b := cfg.Booking
		s, err := sampler.NewBooking(sampler.BookingOptions{
			FlightIDMin: b.FlightIDMin,
			FlightIDMax: b.FlightIDMax,
			MaxLegs:     b.MaxLegs,
			SeatMin:     b.SeatMin,
			SeatMax:     b.SeatMax,
		})
		if err != nil {
			return nil, domainParams{}, err
		}
		return s, domainParams{booking: &report.BookingParams{
			FlightIDMin: b.FlightIDMin,
			FlightIDMax: b.FlightIDMax,
			MaxLegs:     b.MaxLegs,
			SeatMin:     b.SeatMin,
			SeatMax:     b.SeatMax,
		}}, nil

	case config.ModeSearch:
		sc := cfg.Search
		airports, err := catalog.Load(sc.AirportsFile)
		if err != nil {
			return nil, domainParams{}, err
		}
		s, err := sampler.NewSearch(sampler.SearchOptions{
			Airports:      airports,
			DateStart:     sc.DateStart,
			DateEnd:       sc.DateEnd,
			PassengersMin: sc.PassengersMin,
			PassengersMax: sc.PassengersMax,
		})
		if err != nil {
			return nil, domainParams{}, err
		}
		start, end := s.DateRange()
		paxMin, paxMax := s.PassengerRange()
		return s, domainParams{search: &report.SearchParams{
			AirportsCount: len(s.Airports()),
			DateStart:     start,
			DateEnd:       end,
			PassengersMin: paxMin,
			PassengersMax: paxMax,
		}}, nil
	}
	return nil, domainParams{}, fmt.Errorf("unknown mode %q", cfg.Mode)
}

// newRequester wires the shared HTTP client, request builder and tracer.
func newRequester(cfg *config.Config, tp *tracing.Provider) (*httpclient.Requester, error) {
	builder, err := httpclient.NewRequestBuilder(cfg.TargetURL)
	if err != nil {
		return nil, err
	}
	client := httpclient.NewClient(cfg.Timeout, httpclient.PoolOptions{
		MaxIdleConns:    cfg.MaxIdleConns,
		MaxConnsPerHost: cfg.ConnsPerHost(),
	})
	return httpclient.NewRequester(httpclient.RequesterOptions{
		Client:    client,
		Builder:   builder,
		Timeout:   cfg.Timeout,
		Tracer:    tp.Tracer(),
		Propagate: tp.ShouldPropagate(),
	})
}

func runInfo(cfg *config.Config, runID string, result runner.Result, params domainParams) report.RunInfo {
	return report.RunInfo{
		RunID:          runID,
		Mode:           string(cfg.Mode),
		BaseURL:        cfg.TargetURL,
		Concurrency:    cfg.Concurrency,
		Duration:       cfg.Duration,
		Pacing:         cfg.Pacing,
		Timeout:        cfg.Timeout,
		RatePerSecond:  cfg.Rate,
		Seed:           result.Seed,
		Interrupted:    result.Interrupted,
		WorkerRequests: result.WorkerRequests,
		Booking:        params.booking,
		Search:         params.search,
	}
}
