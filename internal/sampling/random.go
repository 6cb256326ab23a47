package sampling

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// New returns a generator seeded with seed.
func New(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Derive mixes a stream index into seed so that components sharing a base
// seed draw from independent, reproducible sources.
func Derive(seed int64, stream uint64) int64 {
	z := uint64(seed) + (stream+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return int64(z ^ (z >> 31))
}

// Choice picks one element uniformly. values must not be empty.
func Choice[T any](r *rand.Rand, values []T) T {
	return values[r.Intn(len(values))]
}

// IntBetween returns an integer in [lo, hi].
func IntBetween(r *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.Intn(hi-lo+1)
}

// Between returns a float in [lo, hi).
func Between(r *rand.Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

// Bernoulli fires with probability p. p <= 0 never fires, p >= 1 always does.
func Bernoulli(r *rand.Rand, p float64) bool {
	return r.Float64() < p
}

// Pareto draws from a Lomax distribution with the given shape, matching
// the numpy convention of a Pareto II shifted to start at zero.
func Pareto(r *rand.Rand, shape float64) float64 {
	return math.Pow(1-r.Float64(), -1/shape) - 1
}

// LogNormal draws exp(N(mu, sigma)).
func LogNormal(r *rand.Rand, mu, sigma float64) float64 {
	return math.Exp(mu + sigma*r.NormFloat64())
}

// Seconds converts a float number of seconds to a Duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// UUID returns a version 4 UUID whose bytes come from r.
func UUID(r *rand.Rand) string {
	id, err := uuid.NewRandomFromReader(r)
	if err != nil {
		// *rand.Rand never fails a Read.
		panic(err)
	}
	return id.String()
}

// ShortID returns prefix followed by the first 8 hex digits of a UUID drawn from r.
func ShortID(r *rand.Rand, prefix string) string {
	id, err := uuid.NewRandomFromReader(r)
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("%s%x", prefix, id[:4])
}
