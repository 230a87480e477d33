package sampler

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

const (
	ModeSearch = "search"

	// DateLayout is the ISO date format used for departureDate.
	DateLayout = "2006-01-02"
)

// SearchSpec holds the query parameters of a flight search request.
type SearchSpec struct {
	Source         string
	Destination    string
	DepartureDate  time.Time
	PassengerCount int
}

func (s *SearchSpec) Mode() string { return ModeSearch }

func (s *SearchSpec) String() string {
	return fmt.Sprintf("%s→%s on %s for %d passengers",
		s.Source, s.Destination, s.DepartureDate.Format(DateLayout), s.PassengerCount)
}

// SearchOptions bound the search profile's domain.
type SearchOptions struct {
	Airports      []string
	DateStart     time.Time
	DateEnd       time.Time // inclusive
	PassengersMin int
	PassengersMax int
}

// DefaultSearchOptions covers October 1-30 2025 and 1-9 passengers. Airports
// must still be supplied.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		DateStart:     time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC),
		DateEnd:       time.Date(2025, time.October, 30, 0, 0, 0, 0, time.UTC),
		PassengersMin: 1,
		PassengersMax: 9,
	}
}

// Search draws search specs.
type Search struct {
	airports []string
	start    time.Time
	days     int
	paxMin   int
	paxMax   int
}

// NewSearch validates opts and returns a search sampler. At least two distinct
// airports are required so that source and destination can always differ.
func NewSearch(opts SearchOptions) (*Search, error) {
	airports := dedupe(opts.Airports)
	var issues []string
	if len(airports) < 2 {
		issues = append(issues, fmt.Sprintf("need at least 2 distinct airports, got %d", len(airports)))
	}
	start := truncateDay(opts.DateStart)
	end := truncateDay(opts.DateEnd)
	if start.IsZero() || end.IsZero() {
		issues = append(issues, "date range is required")
	} else if end.Before(start) {
		issues = append(issues, "date end must not be before date start")
	}
	if opts.PassengersMin < 1 {
		issues = append(issues, "passengers min must be >= 1")
	}
	if opts.PassengersMax < opts.PassengersMin {
		issues = append(issues, "passengers max must be >= passengers min")
	}
	if len(issues) > 0 {
		return nil, errors.New("search sampler: " + strings.Join(issues, "; "))
	}

	return &Search{
		airports: airports,
		start:    start,
		days:     int(end.Sub(start).Hours()/24) + 1,
		paxMin:   opts.PassengersMin,
		paxMax:   opts.PassengersMax,
	}, nil
}

// Airports returns the distinct airport codes the sampler draws from.
func (s *Search) Airports() []string {
	return append([]string(nil), s.airports...)
}

// DateRange returns the inclusive departure date window.
func (s *Search) DateRange() (time.Time, time.Time) {
	return s.start, s.start.AddDate(0, 0, s.days-1)
}

// PassengerRange returns the inclusive passenger count bounds.
func (s *Search) PassengerRange() (int, int) {
	return s.paxMin, s.paxMax
}

// Sample draws a route with source != destination. The destination is drawn
// uniformly from the catalog minus the source by skipping over the source's
// index, so no resampling loop is needed.
func (s *Search) Sample(rng *rand.Rand) Spec {
	n := len(s.airports)
	src := rng.Intn(n)
	dst := rng.Intn(n - 1)
	if dst >= src {
		dst++
	}
	return &SearchSpec{
		Source:         s.airports[src],
		Destination:    s.airports[dst],
		DepartureDate:  s.start.AddDate(0, 0, rng.Intn(s.days)),
		PassengerCount: between(rng, s.paxMin, s.paxMax),
	}
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dedupe(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
