// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/torchbench/benchstab/stability"
	"github.com/torchbench/benchstab/storage/db"
)

// writeRuns writes one result file per element of runs, each mapping
// test names to latencies.
func writeRuns(t *testing.T, runs ...map[string][]float64) string {
	t.Helper()
	dir := t.TempDir()
	for i, run := range runs {
		var bs []string
		for name, data := range run {
			js := strings.Join(strings.Fields(fmt.Sprint(data)), ",")
			bs = append(bs, fmt.Sprintf(`{"name": %q, "stats": {"data": %s}}`, name, js))
		}
		content := fmt.Sprintf(`{"machine_info": {}, "benchmarks": [%s]}`, strings.Join(bs, ","))
		path := filepath.Join(dir, fmt.Sprintf("run%d.json", i))
		if err := os.WriteFile(path, []byte(content), 0666); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

const (
	steady = "test_train[alexnet-cpu-eager]"
	noisy  = "test_eval[bert-cuda-jit]"
)

func TestBenchstab(t *testing.T) {
	in := writeRuns(t,
		map[string][]float64{steady: {1, 1.01, 1}, noisy: {2, 2}},
		map[string][]float64{steady: {1, 1, 1.02}, noisy: {3, 3}},
		map[string][]float64{steady: {1.01, 1, 1}, noisy: {2.5, 2.5}},
	)
	out := t.TempDir()
	png := filepath.Join(out, "sweep.png")
	html := filepath.Join(out, "report.html")
	dsn := filepath.Join(out, "history.db")

	var stdout, stderr bytes.Buffer
	args := []string{"-o", out, "-png", png, "-html", html, "-db", dsn, in}
	if err := benchstab(context.Background(), &stdout, &stderr, args); err != nil {
		t.Fatalf("benchstab: %v\nstderr:\n%s", err, stderr.String())
	}

	if got, want := stdout.String(), "name,max_delta,type\n"+noisy+",0.5,cross\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}

	read := func(name string) string {
		t.Helper()
		data, err := os.ReadFile(filepath.Join(out, name))
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}
	if got, want := read("filter.txt"), "(not ((eval and bert and cuda and jit)))\n"; got != want {
		t.Errorf("filter.txt = %q, want %q", got, want)
	}
	if got := read("tests.csv"); strings.Count(got, "\n") != 7 {
		t.Errorf("tests.csv has %d lines, want 7:\n%s", strings.Count(got, "\n"), got)
	}
	if got := read("sweep.csv"); !strings.HasPrefix(got, "threshold,stable,unstable\n0.01,1,1\n") {
		t.Errorf("sweep.csv:\n%s", got)
	}
	if got := read("unstable.csv"); !strings.Contains(got, noisy+",0.5,cross\n") {
		t.Errorf("unstable.csv:\n%s", got)
	}
	norms, err := stability.ReadNorms(strings.NewReader(read("norm.yaml")))
	if err != nil {
		t.Fatal(err)
	}
	if e := norms[noisy]; e.Stable || e.Norm != 2.5 {
		t.Errorf("norm of %s = %+v, want {2.5 false}", noisy, e)
	}
	if e := norms[steady]; !e.Stable || e.Norm != 1 {
		t.Errorf("norm of %s = %+v, want {1 true}", steady, e)
	}
	if data, err := os.ReadFile(png); err != nil || !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Errorf("%s is not a PNG (err %v)", png, err)
	}
	if data, err := os.ReadFile(html); err != nil || !bytes.Contains(data, []byte(noisy)) {
		t.Errorf("%s does not mention %s (err %v)", html, noisy, err)
	}

	d, err := db.OpenSQL("sqlite3", dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if n, err := d.CountRuns(); err != nil || n != 3 {
		t.Errorf("CountRuns = %d, %v, want 3", n, err)
	}
}

func TestBenchstabMissingTest(t *testing.T) {
	in := writeRuns(t,
		map[string][]float64{steady: {1}, noisy: {2}},
		map[string][]float64{steady: {1}},
	)
	var stdout, stderr bytes.Buffer
	err := benchstab(context.Background(), &stdout, &stderr, []string{"-o", t.TempDir(), in})
	if err == nil || !strings.Contains(err.Error(), "missing test: "+noisy+" not present in run run1.json") {
		t.Errorf("benchstab error = %v, want missing test", err)
	}
}

func TestBenchstabSkipInvalid(t *testing.T) {
	in := writeRuns(t,
		map[string][]float64{steady: {1}},
		map[string][]float64{steady: {1}},
	)
	if err := os.WriteFile(filepath.Join(in, "broken.json"), []byte("{"), 0666); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := benchstab(context.Background(), &stdout, &stderr, []string{"-o", t.TempDir(), in}); err == nil {
		t.Errorf("benchstab with an invalid file succeeded")
	}

	stdout.Reset()
	stderr.Reset()
	if err := benchstab(context.Background(), &stdout, &stderr, []string{"-skip-invalid", "-o", t.TempDir(), in}); err != nil {
		t.Fatalf("benchstab -skip-invalid: %v", err)
	}
	if !strings.Contains(stderr.String(), "warning: broken.json") {
		t.Errorf("stderr = %q, want a warning about broken.json", stderr.String())
	}
}

func TestBenchstabUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := benchstab(context.Background(), &stdout, &stderr, nil); err != errUsage {
		t.Errorf("benchstab with no arguments: error = %v, want usage", err)
	}
	if err := benchstab(context.Background(), &stdout, &stderr, []string{"-threshold", "0", "x"}); err == nil {
		t.Errorf("benchstab -threshold 0 succeeded")
	}
}
