// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bisect

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aclements/go-gg/table"
	"github.com/torchbench/benchstab/benchjson"
	"github.com/torchbench/benchstab/benchmath"
)

// VersionKey returns the key under which results for the PyTorch
// version v are grouped. For nightly builds such as
// "1.13.0.dev20220801+cu113" this is the part after "dev", so keys
// sort by build date.
func VersionKey(v string) string {
	if i := strings.Index(v, "dev"); i >= 0 {
		return v[i+len("dev"):]
	}
	return v
}

// A VersionDB groups result snapshots by PyTorch version.
type VersionDB struct {
	keys  []string // sorted
	snaps map[string][]*benchjson.Snapshot
}

// BuildVersionDB groups snaps by the version key of their
// machine_info.pytorch_version. Within a version, snapshots keep the
// order of snaps, so the last one is the latest when snaps are in file
// name order.
func BuildVersionDB(snaps []*benchjson.Snapshot) (*VersionDB, error) {
	db := &VersionDB{snaps: make(map[string][]*benchjson.Snapshot)}
	for _, s := range snaps {
		v, err := s.MachineString("pytorch_version")
		if err != nil {
			return nil, err
		}
		key := VersionKey(v)
		if _, ok := db.snaps[key]; !ok {
			db.keys = append(db.keys, key)
		}
		db.snaps[key] = append(db.snaps[key], s)
	}
	sort.Strings(db.keys)
	return db, nil
}

// Versions returns the version keys in db in sorted order.
func (db *VersionDB) Versions() []string {
	return db.keys
}

// Latest returns the last snapshot recorded for version key, or nil.
func (db *VersionDB) Latest(key string) *benchjson.Snapshot {
	ss := db.snaps[key]
	if len(ss) == 0 {
		return nil
	}
	return ss[len(ss)-1]
}

// CommonTests returns the sorted names of the tests present in the
// latest snapshot of every version.
func (db *VersionDB) CommonTests() []string {
	var common map[string]bool
	for _, key := range db.keys {
		cur := make(map[string]bool)
		for _, name := range db.Latest(key).Names() {
			if common == nil || common[name] {
				cur[name] = true
			}
		}
		common = cur
	}
	names := make([]string, 0, len(common))
	for name := range common {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Means returns, for each version key, the mean of every common test
// in that version's latest snapshot.
func (db *VersionDB) Means() (map[string]map[string]float64, error) {
	tests := db.CommonTests()
	out := make(map[string]map[string]float64, len(db.keys))
	for _, key := range db.keys {
		all, err := db.Latest(key).Means()
		if err != nil {
			return nil, err
		}
		m := make(map[string]float64, len(tests))
		for _, name := range tests {
			m[name] = all[name]
		}
		out[key] = m
	}
	return out, nil
}

// WriteTable writes a table of the means of every common test (rows)
// in every version (columns) to w.
func (db *VersionDB) WriteTable(w io.Writer) error {
	means, err := db.Means()
	if err != nil {
		return err
	}
	tests := db.CommonTests()
	b := table.NewBuilder(nil).Add("Benchmark", tests)
	for _, key := range db.keys {
		col := make([]float64, len(tests))
		for i, name := range tests {
			col[i] = means[key][name]
		}
		b.Add(key, col)
	}
	return table.Fprint(w, b.Done())
}

// Signals compares the means of the common tests between each pair of
// consecutive versions and returns one Signal per pair in which at
// least one test moved by thresholdPct percent or more.
func (db *VersionDB) Signals(thresholdPct float64) ([]*Signal, error) {
	if !(thresholdPct > 0) {
		return nil, fmt.Errorf("threshold %v%% must be positive", thresholdPct)
	}
	means, err := db.Means()
	if err != nil {
		return nil, err
	}
	tests := db.CommonTests()

	var sigs []*Signal
	for i := 1; i < len(db.keys); i++ {
		a, b := db.keys[i-1], db.keys[i]
		sig := &Signal{
			TestA:     a,
			TestB:     b,
			TestAData: db.Latest(a),
			TestBData: db.Latest(b),
		}
		for _, name := range tests {
			before, after := means[a][name], means[b][name]
			if before == 0 {
				return nil, fmt.Errorf("test %s in %s: %w", name, a, &benchmath.DivisionByZeroError{What: "means"})
			}
			p := newPerfSignal(name, before, after)
			if p.Delta >= thresholdPct || -p.Delta >= thresholdPct {
				sig.PerfSignals = append(sig.PerfSignals, p)
			}
		}
		if len(sig.PerfSignals) > 0 {
			sigs = append(sigs, sig)
		}
	}
	return sigs, nil
}
