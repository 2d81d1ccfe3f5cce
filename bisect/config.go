// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bisect

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/torchbench/benchstab/benchjson"
)

// A Config is the input of one bisection: the version range to search
// and the tests whose performance changed across it.
type Config struct {
	Direction    string            `yaml:"direction"`
	Threshold    float64           `yaml:"threshold"`
	Timeout      int               `yaml:"timeout"`
	StartVersion string            `yaml:"start_version"`
	Start        string            `yaml:"start"`
	EndVersion   string            `yaml:"end_version"`
	End          string            `yaml:"end"`
	Tests        []string          `yaml:"tests"`
	Details      map[string]Detail `yaml:"details"`
}

// A Detail records the measured change of one test in a Config.
type Detail struct {
	Before float64 `yaml:"before"`
	After  float64 `yaml:"after"`
	Delta  float64 `yaml:"delta"`
}

// ConfigOptions are the settings copied into every Config.
//
// This should be initialized to DefaultConfigOptions because it may be
// extended with other fields in the future.
type ConfigOptions struct {
	Direction string  // "both", "increase" or "decrease"
	Threshold float64 // percent
	Timeout   int     // seconds per bisection step
}

// DefaultConfigOptions are the settings used by the nightly bisection
// job.
var DefaultConfigOptions = ConfigOptions{
	Direction: "both",
	Threshold: 7,
	Timeout:   120,
}

// NewConfig builds the bisection config for sig. The version range is
// taken from the pytorch_version and pytorch_git_version machine info
// of sig's two snapshots; a missing key is a *benchjson.MissingKeyError.
func NewConfig(sig *Signal, opts ConfigOptions) (*Config, error) {
	c := &Config{
		Direction: opts.Direction,
		Threshold: opts.Threshold,
		Timeout:   opts.Timeout,
		Tests:     []string{},
		Details:   make(map[string]Detail, len(sig.PerfSignals)),
	}
	for _, f := range []struct {
		dst  *string
		snap *benchjson.Snapshot
		key  string
	}{
		{&c.StartVersion, sig.TestAData, "pytorch_version"},
		{&c.Start, sig.TestAData, "pytorch_git_version"},
		{&c.EndVersion, sig.TestBData, "pytorch_version"},
		{&c.End, sig.TestBData, "pytorch_git_version"},
	} {
		v, err := f.snap.MachineString(f.key)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}
	for _, p := range sig.PerfSignals {
		c.Tests = append(c.Tests, p.Name)
		c.Details[p.Name] = Detail{Before: p.Before, After: p.After, Delta: p.Delta}
	}
	return c, nil
}

// ConfigPath returns the path of the config file for sig under root.
func ConfigPath(root string, sig *Signal) string {
	return filepath.Join(root, "bisection_"+sig.TestB, "config.yaml")
}

// WriteConfigs writes the config of each signal in sigs to
// ConfigPath(root, sig), creating directories as needed. It returns
// the paths written.
func WriteConfigs(root string, sigs []*Signal, opts ConfigOptions) ([]string, error) {
	var paths []string
	for _, sig := range sigs {
		c, err := NewConfig(sig, opts)
		if err != nil {
			return nil, err
		}
		data, err := yaml.Marshal(c)
		if err != nil {
			return nil, err
		}
		path := ConfigPath(root, sig)
		if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, data, 0666); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
