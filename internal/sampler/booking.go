package sampler

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

const ModeBooking = "booking"

// BookingSpec holds the body of a booking initiate request.
type BookingSpec struct {
	FlightIDs []int64 `json:"flightIds"`
	SeatCount int     `json:"seatCount"`
}

func (s *BookingSpec) Mode() string { return ModeBooking }

func (s *BookingSpec) String() string {
	ids := make([]string, len(s.FlightIDs))
	for i, id := range s.FlightIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("flights [%s] for %d seats", strings.Join(ids, ", "), s.SeatCount)
}

// BookingOptions bound the booking profile's domain.
type BookingOptions struct {
	FlightIDMin int64
	FlightIDMax int64
	MaxLegs     int
	SeatMin     int
	SeatMax     int
}

// DefaultBookingOptions mirrors the generated dataset: flight IDs 1-8000,
// itineraries of up to three legs and 1-3 seats.
func DefaultBookingOptions() BookingOptions {
	return BookingOptions{
		FlightIDMin: 1,
		FlightIDMax: 8000,
		MaxLegs:     3,
		SeatMin:     1,
		SeatMax:     3,
	}
}

func (o BookingOptions) validate() error {
	var issues []string
	if o.FlightIDMin < 1 {
		issues = append(issues, "flight id min must be >= 1")
	}
	if o.FlightIDMax < o.FlightIDMin {
		issues = append(issues, "flight id max must be >= flight id min")
	}
	if o.MaxLegs < 1 {
		issues = append(issues, "max legs must be >= 1")
	}
	if o.SeatMin < 1 {
		issues = append(issues, "seat min must be >= 1")
	}
	if o.SeatMax < o.SeatMin {
		issues = append(issues, "seat max must be >= seat min")
	}
	if len(issues) > 0 {
		return errors.New("booking sampler: " + strings.Join(issues, "; "))
	}
	return nil
}

// Booking draws booking specs.
type Booking struct {
	opts BookingOptions
}

// NewBooking validates opts and returns a booking sampler.
func NewBooking(opts BookingOptions) (*Booking, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Booking{opts: opts}, nil
}

// Options returns the sampler's domain.
func (b *Booking) Options() BookingOptions { return b.opts }

// Sample draws 1..MaxLegs flight IDs independently (duplicates allowed) and a
// seat count.
func (b *Booking) Sample(rng *rand.Rand) Spec {
	legs := between(rng, 1, b.opts.MaxLegs)
	ids := make([]int64, legs)
	for i := range ids {
		ids[i] = between64(rng, b.opts.FlightIDMin, b.opts.FlightIDMax)
	}
	return &BookingSpec{
		FlightIDs: ids,
		SeatCount: between(rng, b.opts.SeatMin, b.opts.SeatMax),
	}
}
