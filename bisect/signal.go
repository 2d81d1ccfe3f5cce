// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bisect

import (
	"fmt"

	"github.com/aclements/go-moremath/mathx"
	"github.com/torchbench/benchstab/benchjson"
)

// A PerfSignal is the change in one test's mean latency between two
// versions.
type PerfSignal struct {
	Name          string
	Before, After float64

	// Ratio is After/Before.
	Ratio float64

	// Delta is the change in percent, (Ratio-1)*100.
	Delta float64
}

func newPerfSignal(name string, before, after float64) PerfSignal {
	ratio := after / before
	return PerfSignal{
		Name:   name,
		Before: before,
		After:  after,
		Ratio:  ratio,
		Delta:  (ratio - 1) * 100,
	}
}

// Direction describes which way the latency moved: "slower",
// "faster" or "unchanged".
func (p PerfSignal) Direction() string {
	switch mathx.Sign(p.Delta) {
	case 1:
		return "slower"
	case -1:
		return "faster"
	}
	return "unchanged"
}

func (p PerfSignal) String() string {
	return fmt.Sprintf("%s: %.6g -> %.6g (%+.2f%%, %s)", p.Name, p.Before, p.After, p.Delta, p.Direction())
}

// A Signal is the set of tests whose performance changed between two
// consecutive versions, TestA (before) and TestB (after).
type Signal struct {
	TestA, TestB         string
	TestAData, TestBData *benchjson.Snapshot
	PerfSignals          []PerfSignal
}
