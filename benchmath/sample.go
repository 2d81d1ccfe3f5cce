// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchmath provides tools for computing spread statistics
// over repeated benchmark measurements.
//
// The central quantity is the relative spread of a set of values,
// (max-min)/min. It is used both for the latencies a single run
// records for one test and for the medians of that test across
// several runs. A minimum of zero makes the spread undefined; this
// package reports that as a *DivisionByZeroError rather than
// returning an infinity, since a zero latency indicates a broken
// benchmark.
package benchmath

import (
	"errors"
	"fmt"
	"math"

	"github.com/aclements/go-moremath/stats"
)

// ErrEmptySample is returned when a sample has no measurements.
var ErrEmptySample = errors.New("sample has no measurements")

// A DivisionByZeroError reports that the minimum of a set of values
// was zero, so their relative spread is undefined.
type DivisionByZeroError struct {
	// What describes the values, e.g. "latencies" or "medians".
	What string
}

func (e *DivisionByZeroError) Error() string {
	return fmt.Sprintf("division by zero: minimum of %s is 0", e.What)
}

// A Sample is a set of repeated measurements of a single benchmark
// within one run. All derived statistics are computed by NewSample,
// and a Sample must not be modified after construction.
type Sample struct {
	// Values are the measured values, in ascending order.
	Values []float64

	Min, Max, Median float64
}

// NewSample constructs a Sample from a set of measurements. It does
// not retain values.
//
// NewSample fails if values is empty, contains a negative or NaN
// value, or if its minimum is zero.
func NewSample(values []float64) (*Sample, error) {
	if len(values) == 0 {
		return nil, ErrEmptySample
	}
	for _, v := range values {
		if v < 0 || math.IsNaN(v) {
			return nil, fmt.Errorf("invalid measurement %v", v)
		}
	}

	// Sort a copy for fast order statistics.
	s := stats.Sample{Xs: append([]float64(nil), values...)}
	s.Sort()
	min, max := s.Bounds()
	if min == 0 {
		return nil, &DivisionByZeroError{"latencies"}
	}
	return &Sample{
		Values: s.Xs,
		Min:    min,
		Max:    max,
		Median: s.Quantile(0.5),
	}, nil
}

// N returns the number of measurements in s.
func (s *Sample) N() int {
	return len(s.Values)
}

// MaxDelta returns (max-min)/min of s.
func (s *Sample) MaxDelta() float64 {
	return (s.Max - s.Min) / s.Min
}

// Variance returns the spread of s relative to the midpoint of its
// range, (max-min)/((max+min)/2). Despite the name, this is not the
// statistical variance.
func (s *Sample) Variance() float64 {
	return (s.Max - s.Min) / ((s.Max + s.Min) / 2)
}

// Median returns the median of xs. It does not modify xs.
// The median of an empty slice is NaN.
func Median(xs []float64) float64 {
	s := stats.Sample{Xs: append([]float64(nil), xs...)}
	s.Sort()
	return s.Quantile(0.5)
}

// MaxDelta returns the relative spread (max-min)/min of xs. what
// describes xs for the error returned when min(xs) is zero.
func MaxDelta(xs []float64, what string) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrEmptySample
	}
	min, max := stats.Bounds(xs)
	if min == 0 {
		return 0, &DivisionByZeroError{what}
	}
	return (max - min) / min, nil
}

// A Thresholds configures the thresholds used to classify
// measurements as unstable.
//
// This should be initialized to DefaultThresholds because it may be
// extended with other fields in the future.
type Thresholds struct {
	// Stable is the relative spread at or above which a test is
	// considered unstable, either within a run or across runs.
	Stable float64
}

// DefaultThresholds contains a reasonable set of defaults for Thresholds.
var DefaultThresholds = Thresholds{
	Stable: 0.07,
}

// Validate reports whether t can be used for classification.
func (t Thresholds) Validate() error {
	if !(t.Stable > 0) || math.IsInf(t.Stable, 0) {
		return fmt.Errorf("threshold %v not in (0, ∞)", t.Stable)
	}
	return nil
}
