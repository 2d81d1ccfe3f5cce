// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stability

import (
	"fmt"

	"github.com/torchbench/benchstab/benchjson"
)

// SweepOptions configures a threshold sweep. The thresholds visited
// are Base, Base+Step, ..., Base+(Steps-1)*Step.
type SweepOptions struct {
	Base  float64
	Step  float64
	Steps int
}

// DefaultSweepOptions sweeps thresholds from 1% to 11%.
var DefaultSweepOptions = SweepOptions{
	Base:  0.01,
	Step:  0.01,
	Steps: 11,
}

// Thresholds returns the thresholds visited by o, in increasing order.
func (o SweepOptions) Thresholds() []float64 {
	ts := make([]float64, 0, o.Steps)
	for i := 0; i < o.Steps; i++ {
		ts = append(ts, o.Base+o.Step*float64(i))
	}
	return ts
}

// A SweepPoint is the set of tests unstable across runs at one
// threshold.
type SweepPoint struct {
	Threshold float64
	Unstable  []string // sorted
}

// A SweepResult is the sensitivity of cross-run classification to the
// threshold.
type SweepResult struct {
	// Tests is the number of tests common to all runs.
	Tests int

	// Points are in increasing threshold order.
	Points []SweepPoint
}

// Sweep classifies sets at each threshold described by opts. Because
// a test is unstable at threshold t iff its spread is >= t, the
// unstable sets of successive points shrink by inclusion.
func Sweep(sets []*benchjson.ResultSet, opts SweepOptions) (*SweepResult, error) {
	if opts.Steps < 1 || !(opts.Step > 0) {
		return nil, fmt.Errorf("invalid sweep: %d steps of %v", opts.Steps, opts.Step)
	}
	names, err := CommonTests(sets)
	if err != nil {
		return nil, err
	}
	res := &SweepResult{Tests: len(names)}
	for _, t := range opts.Thresholds() {
		r, err := Classify(sets, t)
		if err != nil {
			return nil, err
		}
		res.Points = append(res.Points, SweepPoint{Threshold: t, Unstable: r.UnstableAcrossRun()})
	}
	return res, nil
}
