// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchjson reads benchmark results in the pytest-benchmark
// JSON format.
//
// A result file holds one run of a benchmark suite: a machine_info
// object describing the machine and software under test, and a list
// of benchmarks, each with a name and the statistics recorded for it.
// Decode parses a file into a Snapshot, which preserves that
// structure. Snapshot.ResultSet converts a Snapshot into a ResultSet
// of validated Observations, the form consumed by stability analysis.
package benchjson

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aclements/go-moremath/stats"
	"github.com/torchbench/benchstab/benchmath"
)

// A ParseError reports a result file that could not be parsed.
type ParseError struct {
	FileName string
	Msg      string
	Err      error // underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.FileName, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.FileName, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// A MissingKeyError reports that a snapshot's machine_info lacks a
// required key.
type MissingKeyError struct {
	FileName string
	Key      string
}

func (e *MissingKeyError) Error() string {
	if e.FileName == "" {
		return fmt.Sprintf("no snapshot: machine_info has no key %q", e.Key)
	}
	return fmt.Sprintf("%s: machine_info has no key %q", e.FileName, e.Key)
}

// A Snapshot is the decoded content of one result file.
type Snapshot struct {
	// FileName is the name the snapshot was read from. It is
	// used in error messages.
	FileName string `json:"-"`

	MachineInfo map[string]interface{} `json:"machine_info"`
	Benchmarks  []Benchmark            `json:"benchmarks"`
}

// A Benchmark is a single named benchmark entry.
type Benchmark struct {
	Name  string `json:"name"`
	Stats Stats  `json:"stats"`
}

// Stats are the statistics recorded for a Benchmark. Data holds the
// raw measurements when the run was configured to keep them.
type Stats struct {
	Mean *float64  `json:"mean"`
	Data []float64 `json:"data"`
}

// Latencies returns the measurements to use for variance
// computation: the raw data when present, otherwise the mean alone.
func (s Stats) Latencies() []float64 {
	if len(s.Data) > 0 {
		return s.Data
	}
	if s.Mean != nil {
		return []float64{*s.Mean}
	}
	return nil
}

// Decode reads a Snapshot from r. fileName is used in error messages.
func Decode(r io.Reader, fileName string) (*Snapshot, error) {
	var snap Snapshot
	dec := json.NewDecoder(r)
	if err := dec.Decode(&snap); err != nil {
		return nil, &ParseError{FileName: fileName, Msg: "invalid JSON", Err: err}
	}
	// A result file holds exactly one JSON value.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, &ParseError{FileName: fileName, Msg: "trailing data after JSON value"}
	}
	if snap.Benchmarks == nil {
		return nil, &ParseError{FileName: fileName, Msg: "no benchmarks list"}
	}
	snap.FileName = fileName
	return &snap, nil
}

// MachineString returns the string value of machine_info[key].
func (s *Snapshot) MachineString(key string) (string, error) {
	if s == nil {
		return "", &MissingKeyError{Key: key}
	}
	v, ok := s.MachineInfo[key]
	if !ok || v == nil {
		return "", &MissingKeyError{s.FileName, key}
	}
	if str, ok := v.(string); ok {
		return str, nil
	}
	return fmt.Sprint(v), nil
}

// Names returns the benchmark names in s, in file order.
func (s *Snapshot) Names() []string {
	names := make([]string, 0, len(s.Benchmarks))
	for _, b := range s.Benchmarks {
		names = append(names, b.Name)
	}
	return names
}

// Means returns the mean of each benchmark in s, keyed by name. If a
// benchmark has no recorded mean, it is computed from its data.
func (s *Snapshot) Means() (map[string]float64, error) {
	means := make(map[string]float64, len(s.Benchmarks))
	for _, b := range s.Benchmarks {
		switch {
		case b.Stats.Mean != nil:
			means[b.Name] = *b.Stats.Mean
		case len(b.Stats.Data) > 0:
			means[b.Name] = stats.Mean(b.Stats.Data)
		default:
			return nil, &ParseError{FileName: s.FileName, Msg: fmt.Sprintf("benchmark %q has neither mean nor data", b.Name)}
		}
	}
	return means, nil
}

// ResultSet converts s into a ResultSet. Benchmarks with an empty
// name are ignored.
func (s *Snapshot) ResultSet() (*ResultSet, error) {
	rs := &ResultSet{
		Name:   s.FileName,
		byName: make(map[string]*Observation, len(s.Benchmarks)),
	}
	for _, b := range s.Benchmarks {
		if b.Name == "" {
			continue
		}
		if _, ok := rs.byName[b.Name]; ok {
			return nil, &ParseError{FileName: s.FileName, Msg: fmt.Sprintf("duplicate benchmark %q", b.Name)}
		}
		latencies := b.Stats.Latencies()
		if latencies == nil {
			return nil, &ParseError{FileName: s.FileName, Msg: fmt.Sprintf("benchmark %q has neither mean nor data", b.Name)}
		}
		obs, err := NewObservation(b.Name, latencies)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.FileName, err)
		}
		rs.Observations = append(rs.Observations, obs)
		rs.byName[b.Name] = obs
	}
	return rs, nil
}

// An Observation is the measurements of one test in one run, along
// with statistics derived from them. Observations are immutable.
type Observation struct {
	name   string
	device string
	sample *benchmath.Sample
}

// NewObservation constructs an Observation from a test name and the
// latencies recorded for it. It fails if latencies is empty or its
// minimum is zero, in which case the error wraps a
// *benchmath.DivisionByZeroError.
func NewObservation(name string, latencies []float64) (*Observation, error) {
	s, err := benchmath.NewSample(latencies)
	if err != nil {
		return nil, fmt.Errorf("test %s: %w", name, err)
	}
	return &Observation{name: name, device: Device(name), sample: s}, nil
}

// Device returns the device a test runs on, as embedded in its name:
// "cpu", "cuda", or "unknown".
func Device(name string) string {
	switch {
	case strings.Contains(name, "cpu"):
		return "cpu"
	case strings.Contains(name, "cuda"):
		return "cuda"
	}
	return "unknown"
}

func (o *Observation) Name() string   { return o.name }
func (o *Observation) Device() string { return o.device }

// RunTimes returns the number of latencies recorded.
func (o *Observation) RunTimes() int { return o.sample.N() }

// Latencies returns a copy of the latencies in ascending order.
func (o *Observation) Latencies() []float64 {
	return append([]float64(nil), o.sample.Values...)
}

func (o *Observation) Median() float64   { return o.sample.Median }
func (o *Observation) MaxDelta() float64 { return o.sample.MaxDelta() }
func (o *Observation) Variance() float64 { return o.sample.Variance() }

// A ResultSet is the observations of one run, at most one per test
// name. ResultSets are not modified after construction and may be
// shared by any number of readers.
type ResultSet struct {
	// Name identifies the run, typically the file it was read from.
	Name string

	// Observations are in file order.
	Observations []*Observation

	byName map[string]*Observation
}

// NewResultSet constructs a ResultSet from observations. It fails if
// two observations share a name.
func NewResultSet(name string, obs ...*Observation) (*ResultSet, error) {
	rs := &ResultSet{Name: name, byName: make(map[string]*Observation, len(obs))}
	for _, o := range obs {
		if _, ok := rs.byName[o.name]; ok {
			return nil, &ParseError{FileName: name, Msg: fmt.Sprintf("duplicate benchmark %q", o.name)}
		}
		rs.byName[o.name] = o
	}
	rs.Observations = append([]*Observation(nil), obs...)
	return rs, nil
}

// Lookup returns the observation of test name in rs.
func (rs *ResultSet) Lookup(name string) (*Observation, bool) {
	o, ok := rs.byName[name]
	return o, ok
}

// Len returns the number of tests in rs.
func (rs *ResultSet) Len() int {
	return len(rs.Observations)
}

// Names returns the test names in rs in sorted order.
func (rs *ResultSet) Names() []string {
	names := make([]string, 0, len(rs.byName))
	for name := range rs.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
