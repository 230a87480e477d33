// Package sampler draws randomized, well-formed request parameters for the
// booking and search load profiles.
//
// Samplers are pure with respect to everything except the *rand.Rand they are
// given: the same seed always yields the same sequence of specs. A Sampler never
// blocks and never fails once constructed; all validation happens in the
// constructors, before any worker starts.
package sampler

import (
	"math/rand"
)

// Spec is one generated request's parameters. It is created by a worker,
// consumed once by that worker, and never mutated.
type Spec interface {
	// Mode reports the profile that produced the spec ("booking" or "search").
	Mode() string
	// String renders a short description used in logs and error records.
	String() string
}

// Sampler draws a Spec from its configured domain.
type Sampler interface {
	Sample(rng *rand.Rand) Spec
}

// between returns a uniform integer in the inclusive range [lo, hi].
func between(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.Intn(hi-lo+1)
}

// between64 is between for int64 bounds.
func between64(rng *rand.Rand, lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Int63n(hi-lo+1)
}
