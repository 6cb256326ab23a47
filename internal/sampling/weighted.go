package sampling

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// ErrInvalidWeights is returned when a weight table cannot be sampled.
var ErrInvalidWeights = errors.New("invalid weight table")

// Option pairs a value with its relative weight.
type Option[T any] struct {
	Value  T       `yaml:"value" json:"value"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// Weighted draws values proportionally to their weights. It is the single
// categorical primitive used by every synthesizer.
type Weighted[T any] struct {
	values     []T
	cumulative []float64
	total      float64
}

// NewWeighted validates options and precomputes the cumulative table.
// Weights need not sum to one but must be finite, non-negative and not all zero.
func NewWeighted[T any](options []Option[T]) (*Weighted[T], error) {
	if len(options) == 0 {
		return nil, fmt.Errorf("%w: no options", ErrInvalidWeights)
	}
	w := &Weighted[T]{
		values:     make([]T, 0, len(options)),
		cumulative: make([]float64, 0, len(options)),
	}
	for i, opt := range options {
		if math.IsNaN(opt.Weight) || math.IsInf(opt.Weight, 0) || opt.Weight < 0 {
			return nil, fmt.Errorf("%w: option %d has weight %v", ErrInvalidWeights, i, opt.Weight)
		}
		w.total += opt.Weight
		w.values = append(w.values, opt.Value)
		w.cumulative = append(w.cumulative, w.total)
	}
	if w.total <= 0 {
		return nil, fmt.Errorf("%w: weights sum to zero", ErrInvalidWeights)
	}
	return w, nil
}

// MustWeighted is NewWeighted for tables known at compile time.
func MustWeighted[T any](options []Option[T]) *Weighted[T] {
	w, err := NewWeighted(options)
	if err != nil {
		panic(err)
	}
	return w
}

// Pick returns one value drawn with r.
func (w *Weighted[T]) Pick(r *rand.Rand) T {
	x := r.Float64() * w.total
	i := sort.Search(len(w.cumulative), func(i int) bool { return w.cumulative[i] > x })
	if i == len(w.cumulative) {
		i = len(w.cumulative) - 1
	}
	return w.values[i]
}

// Len reports the number of options.
func (w *Weighted[T]) Len() int { return len(w.values) }

// Uniform builds equal-weight options from values.
func Uniform[T any](values ...T) []Option[T] {
	opts := make([]Option[T], len(values))
	for i, v := range values {
		opts[i] = Option[T]{Value: v, Weight: 1}
	}
	return opts
}
