// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/torchbench/benchstab/benchjson"
	"github.com/torchbench/benchstab/bisect"
)

var results = map[string]string{
	"0801.json": `{"machine_info": {"pytorch_version": "1.13.0.dev20220801+cu113", "pytorch_git_version": "aaa"},
		"benchmarks": [{"name": "test_train[m-cuda-eager]", "stats": {"mean": 1.0}}, {"name": "test_eval[m-cuda-eager]", "stats": {"mean": 0.5}}]}`,
	"0802.json": `{"machine_info": {"pytorch_version": "1.13.0.dev20220802+cu113", "pytorch_git_version": "bbb"},
		"benchmarks": [{"name": "test_train[m-cuda-eager]", "stats": {"mean": 1.5}}, {"name": "test_eval[m-cuda-eager]", "stats": {"mean": 0.5}}]}`,
	"0803.json": `{"machine_info": {"pytorch_version": "1.13.0.dev20220803+cu113", "pytorch_git_version": "ccc"},
		"benchmarks": [{"name": "test_train[m-cuda-eager]", "stats": {"mean": 1.52}}, {"name": "test_eval[m-cuda-eager]", "stats": {"mean": 0.5}}]}`,
}

func writeResults(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0666); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestBenchbisect(t *testing.T) {
	in := writeResults(t, results)
	out := t.TempDir()
	var stdout, stderr bytes.Buffer
	if err := benchbisect(context.Background(), &stdout, &stderr, []string{"-o", out, in}); err != nil {
		t.Fatalf("benchbisect: %v", err)
	}

	if !strings.HasPrefix(stdout.String(), "Benchmark ") {
		t.Errorf("stdout does not start with the means table:\n%s", stdout.String())
	}
	if !strings.Contains(stdout.String(), "20220801+cu113 -> 20220802+cu113\n") {
		t.Errorf("stdout does not report the 0801 -> 0802 signal:\n%s", stdout.String())
	}

	data, err := os.ReadFile(filepath.Join(out, "bisection_20220802+cu113", "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	var c bisect.Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		t.Fatal(err)
	}
	if c.Start != "aaa" || c.End != "bbb" || c.Threshold != 7 {
		t.Errorf("config = %+v", c)
	}
	if len(c.Tests) != 1 || c.Tests[0] != "test_train[m-cuda-eager]" {
		t.Errorf("config tests = %v, want [test_train[m-cuda-eager]]", c.Tests)
	}
	if d := c.Details["test_train[m-cuda-eager]"]; d.Before != 1 || d.After != 1.5 || d.Delta != 50 {
		t.Errorf("config details = %+v", d)
	}

	// 0802 -> 0803 changed by ~1.3%, below the threshold.
	if _, err := os.Stat(filepath.Join(out, "bisection_20220803+cu113")); !os.IsNotExist(err) {
		t.Errorf("wrote a config for a change below the threshold")
	}
}

func TestBenchbisectMissingVersion(t *testing.T) {
	in := writeResults(t, map[string]string{
		"x.json": `{"machine_info": {}, "benchmarks": []}`,
	})
	var stdout, stderr bytes.Buffer
	err := benchbisect(context.Background(), &stdout, &stderr, []string{"-o", t.TempDir(), in})
	var mke *benchjson.MissingKeyError
	if !errors.As(err, &mke) {
		t.Errorf("benchbisect error = %v, want MissingKeyError", err)
	}
}
