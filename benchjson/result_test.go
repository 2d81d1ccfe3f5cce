// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchjson

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/torchbench/benchstab/benchmath"
)

const sampleJSON = `{
	"machine_info": {"pytorch_version": "1.9.0.dev20210315+cu111", "pytorch_git_version": "abc123", "cpu": {"count": 8}},
	"benchmarks": [
		{"name": "test_train[resnet50-cuda-eager]", "stats": {"mean": 2.0, "data": [1.0, 2.0, 3.0]}},
		{"name": "test_eval[bert-cpu-jit]", "stats": {"mean": 4.0}},
		{"name": "", "stats": {"mean": 1.0}}
	]
}`

func TestDecode(t *testing.T) {
	snap, err := Decode(strings.NewReader(sampleJSON), "run1.json")
	if err != nil {
		t.Fatal(err)
	}
	if snap.FileName != "run1.json" {
		t.Errorf("FileName = %q, want run1.json", snap.FileName)
	}
	want := []string{"test_train[resnet50-cuda-eager]", "test_eval[bert-cpu-jit]", ""}
	if diff := cmp.Diff(want, snap.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}

	v, err := snap.MachineString("pytorch_git_version")
	if err != nil || v != "abc123" {
		t.Errorf("MachineString(pytorch_git_version) = %q, %v, want abc123", v, err)
	}
	_, err = snap.MachineString("nope")
	var mk *MissingKeyError
	if !errors.As(err, &mk) || mk.Key != "nope" || mk.FileName != "run1.json" {
		t.Errorf("MachineString(nope) error = %v, want MissingKeyError", err)
	}
}

func TestDecodeErrors(t *testing.T) {
	check := func(input string) {
		t.Helper()
		_, err := Decode(strings.NewReader(input), "bad.json")
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Decode(%q) error = %v, want *ParseError", input, err)
			return
		}
		if pe.FileName != "bad.json" {
			t.Errorf("ParseError.FileName = %q, want bad.json", pe.FileName)
		}
	}
	check(`{"benchmarks": [`)
	check(`not json`)
	check(`{"machine_info": {}}`)
	check(`null`)
	check(`{"benchmarks": []} {"benchmarks": []}`)
	check(`{"benchmarks": []} garbage`)

	if _, err := Decode(strings.NewReader("{\"benchmarks\": []}\n\n"), "ok.json"); err != nil {
		t.Errorf("Decode with trailing newlines: %v", err)
	}
}

func TestResultSet(t *testing.T) {
	snap, err := Decode(strings.NewReader(sampleJSON), "run1.json")
	if err != nil {
		t.Fatal(err)
	}
	rs, err := snap.ResultSet()
	if err != nil {
		t.Fatal(err)
	}
	if rs.Name != "run1.json" {
		t.Errorf("Name = %q, want run1.json", rs.Name)
	}
	if rs.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (empty names are ignored)", rs.Len())
	}

	o, ok := rs.Lookup("test_train[resnet50-cuda-eager]")
	if !ok {
		t.Fatal("train test missing")
	}
	if o.Device() != "cuda" || o.RunTimes() != 3 || o.Median() != 2 || o.MaxDelta() != 2 || o.Variance() != 1 {
		t.Errorf("train observation = device %s, run_times %d, median %v, max_delta %v, variance %v",
			o.Device(), o.RunTimes(), o.Median(), o.MaxDelta(), o.Variance())
	}

	// Without data, the mean stands in as a single latency.
	o, _ = rs.Lookup("test_eval[bert-cpu-jit]")
	if o.Device() != "cpu" || o.RunTimes() != 1 || o.Median() != 4 || o.MaxDelta() != 0 {
		t.Errorf("eval observation = device %s, run_times %d, median %v, max_delta %v",
			o.Device(), o.RunTimes(), o.Median(), o.MaxDelta())
	}

	wantNames := []string{"test_eval[bert-cpu-jit]", "test_train[resnet50-cuda-eager]"}
	if diff := cmp.Diff(wantNames, rs.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
}

func TestResultSetZeroLatency(t *testing.T) {
	input := `{"benchmarks": [{"name": "test_foo_cpu[a-b-c]", "stats": {"data": [0.0, 1.0]}}]}`
	snap, err := Decode(strings.NewReader(input), "zero.json")
	if err != nil {
		t.Fatal(err)
	}
	_, err = snap.ResultSet()
	var dz *benchmath.DivisionByZeroError
	if !errors.As(err, &dz) {
		t.Fatalf("ResultSet error = %v, want DivisionByZeroError", err)
	}
	if !strings.Contains(err.Error(), "test_foo_cpu[a-b-c]") || !strings.Contains(err.Error(), "zero.json") {
		t.Errorf("error %q does not name the test and file", err)
	}
}

func TestResultSetErrors(t *testing.T) {
	check := func(input string) {
		t.Helper()
		snap, err := Decode(strings.NewReader(input), "bad.json")
		if err != nil {
			t.Fatal(err)
		}
		_, err = snap.ResultSet()
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("ResultSet(%s) error = %v, want *ParseError", input, err)
		}
	}
	check(`{"benchmarks": [{"name": "a", "stats": {}}]}`)
	check(`{"benchmarks": [{"name": "a", "stats": {"mean": 1}}, {"name": "a", "stats": {"mean": 2}}]}`)
}

func TestObservation(t *testing.T) {
	latencies := []float64{1.2, 1.0, 1.5}
	o, err := NewObservation("test_foo_cpu[a-b-c]", latencies)
	if err != nil {
		t.Fatal(err)
	}
	if want := (1.5 - 1.0) / 1.0; math.Abs(o.MaxDelta()-want) > 1e-9 {
		t.Errorf("MaxDelta() = %v, want %v", o.MaxDelta(), want)
	}
	got := o.Latencies()
	got[0] = 99
	if o.Latencies()[0] != 1.0 {
		t.Errorf("Latencies returned shared storage")
	}

	if _, err := NewObservation("x", nil); !errors.Is(err, benchmath.ErrEmptySample) {
		t.Errorf("NewObservation with no latencies: error = %v, want ErrEmptySample", err)
	}
}

func TestNewResultSet(t *testing.T) {
	a, _ := NewObservation("a", []float64{1})
	b, _ := NewObservation("b", []float64{2})
	rs, err := NewResultSet("r", b, a)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, rs.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
	if _, err := NewResultSet("r", a, a); err == nil {
		t.Errorf("NewResultSet with duplicate names succeeded")
	}
}

func TestMeans(t *testing.T) {
	input := `{"benchmarks": [{"name": "a", "stats": {"mean": 3}}, {"name": "b", "stats": {"data": [1, 2, 3]}}]}`
	snap, err := Decode(strings.NewReader(input), "m.json")
	if err != nil {
		t.Fatal(err)
	}
	means, err := snap.Means()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]float64{"a": 3, "b": 2}
	if diff := cmp.Diff(want, means); diff != "" {
		t.Errorf("Means mismatch (-want +got):\n%s", diff)
	}
}

func TestDevice(t *testing.T) {
	for name, want := range map[string]string{
		"test_train[x-cpu-eager]":  "cpu",
		"test_train[x-cuda-eager]": "cuda",
		"test_train[x-mps-eager]":  "unknown",
	} {
		if got := Device(name); got != want {
			t.Errorf("Device(%q) = %q, want %q", name, got, want)
		}
	}
}
