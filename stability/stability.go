// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stability classifies benchmark tests as stable or unstable
// across repeated runs of the same suite.
//
// A test is unstable within a run if the latencies recorded for it in
// that run spread by at least a threshold, relative to their minimum.
// It is unstable across runs if its per-run medians spread by at least
// the threshold. Cross-run analysis requires every run to contain
// exactly the same tests; a test missing from any run is an error
// rather than something to skip, because comparisons over partially
// aligned runs are meaningless.
package stability

import (
	"errors"
	"fmt"
	"sort"

	"github.com/torchbench/benchstab/benchjson"
	"github.com/torchbench/benchstab/benchmath"
)

// ErrNoResults is returned when an analysis is given no result sets.
var ErrNoResults = errors.New("no result sets")

// A MissingTestError reports a test that is absent from one of the
// result sets being compared.
type MissingTestError struct {
	Test string
	Run  string
}

func (e *MissingTestError) Error() string {
	return fmt.Sprintf("missing test: %s not present in run %s", e.Test, e.Run)
}

// CommonTests returns the sorted names of the tests in sets. Every
// result set must contain every test; otherwise CommonTests returns a
// *MissingTestError for the first (test, run) pair, in sorted test
// and run order, that is absent.
func CommonTests(sets []*benchjson.ResultSet) ([]string, error) {
	if len(sets) == 0 {
		return nil, ErrNoResults
	}
	seen := make(map[string]struct{})
	for _, rs := range sets {
		for _, o := range rs.Observations {
			seen[o.Name()] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, rs := range sets {
			if _, ok := rs.Lookup(name); !ok {
				return nil, &MissingTestError{Test: name, Run: rs.Name}
			}
		}
	}
	return names, nil
}

// A Report is the result of classifying a collection of runs at one
// threshold.
type Report struct {
	Threshold float64

	// WithinRun maps each test that was unstable within at least
	// one run to the largest max delta seen in any run.
	WithinRun map[string]float64

	// AcrossRun maps each test whose medians were unstable across
	// runs to the relative spread of those medians.
	AcrossRun map[string]float64
}

// UnstableAcrossRun returns the sorted names of the tests in
// r.AcrossRun.
func (r *Report) UnstableAcrossRun() []string {
	return sortedKeys(r.AcrossRun)
}

// UnstableWithinRun returns the sorted names of the tests in
// r.WithinRun.
func (r *Report) UnstableWithinRun() []string {
	return sortedKeys(r.WithinRun)
}

// Classify classifies the tests in sets at the given threshold.
//
// It fails with a *MissingTestError if the sets do not all contain
// the same tests, and with an error wrapping a
// *benchmath.DivisionByZeroError if some test's minimum median is zero.
func Classify(sets []*benchjson.ResultSet, threshold float64) (*Report, error) {
	if err := (benchmath.Thresholds{Stable: threshold}).Validate(); err != nil {
		return nil, err
	}
	names, err := CommonTests(sets)
	if err != nil {
		return nil, err
	}

	r := &Report{
		Threshold: threshold,
		WithinRun: make(map[string]float64),
		AcrossRun: make(map[string]float64),
	}
	for _, rs := range sets {
		for _, o := range rs.Observations {
			d := o.MaxDelta()
			if d < threshold {
				continue
			}
			if prev, ok := r.WithinRun[o.Name()]; !ok || d > prev {
				r.WithinRun[o.Name()] = d
			}
		}
	}

	spreads, err := crossRunSpreads(sets, names)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if d := spreads[name]; d >= threshold {
			r.AcrossRun[name] = d
		}
	}
	return r, nil
}

// crossRunSpreads returns the relative spread of the per-run medians
// of each named test. Every set must contain every name.
func crossRunSpreads(sets []*benchjson.ResultSet, names []string) (map[string]float64, error) {
	spreads := make(map[string]float64, len(names))
	medians := make([]float64, len(sets))
	for _, name := range names {
		for i, rs := range sets {
			o, ok := rs.Lookup(name)
			if !ok {
				return nil, &MissingTestError{Test: name, Run: rs.Name}
			}
			medians[i] = o.Median()
		}
		d, err := benchmath.MaxDelta(medians, "medians")
		if err != nil {
			return nil, fmt.Errorf("test %s: %w", name, err)
		}
		spreads[name] = d
	}
	return spreads, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
