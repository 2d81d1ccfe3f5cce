// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stability

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/torchbench/benchstab/benchjson"
)

// A Kind distinguishes the two ways a test can be unstable.
type Kind string

const (
	Single Kind = "single" // unstable within a run
	Cross  Kind = "cross"  // unstable across runs
)

// WriteObservations writes one CSV row per observation in sets, in
// run order and then file order, with the header
// name,device,run_times,median,max_delta,variance.
func WriteObservations(out io.Writer, sets []*benchjson.ResultSet) error {
	tab := [][]string{{"name", "device", "run_times", "median", "max_delta", "variance"}}
	for _, rs := range sets {
		for _, o := range rs.Observations {
			tab = append(tab, []string{
				o.Name(),
				o.Device(),
				strconv.Itoa(o.RunTimes()),
				strof(o.Median()),
				strof(o.MaxDelta()),
				strof(o.Variance()),
			})
		}
	}
	return writeAll(out, tab)
}

// WriteUnstable writes the unstable tests of r with the header
// name,max_delta,type. Rows for each requested kind are sorted by
// name. If no kinds are given, both are written, single first.
func WriteUnstable(out io.Writer, r *Report, kinds ...Kind) error {
	if len(kinds) == 0 {
		kinds = []Kind{Single, Cross}
	}
	tab := [][]string{{"name", "max_delta", "type"}}
	for _, k := range kinds {
		m := r.WithinRun
		if k == Cross {
			m = r.AcrossRun
		}
		for _, name := range sortedKeys(m) {
			tab = append(tab, []string{name, strof(m[name]), string(k)})
		}
	}
	return writeAll(out, tab)
}

// WriteSweep writes one row per sweep point with the header
// threshold,stable,unstable, giving the number of tests on each side
// of the threshold.
func WriteSweep(out io.Writer, sr *SweepResult) error {
	tab := [][]string{{"threshold", "stable", "unstable"}}
	for _, p := range sr.Points {
		tab = append(tab, []string{
			strof(p.Threshold),
			strconv.Itoa(sr.Tests - len(p.Unstable)),
			strconv.Itoa(len(p.Unstable)),
		})
	}
	return writeAll(out, tab)
}

func writeAll(out io.Writer, tab [][]string) error {
	csvw := csv.NewWriter(out)
	if err := csvw.WriteAll(tab); err != nil {
		return err
	}
	csvw.Flush()
	return csvw.Error()
}

func strof(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
