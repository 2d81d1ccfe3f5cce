// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stability

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/torchbench/benchstab/benchjson"
	"github.com/torchbench/benchstab/benchmath"
)

// A NormEntry is the normalization baseline of one test.
type NormEntry struct {
	// Norm is the median of the test's per-run medians.
	Norm float64 `yaml:"norm"`

	// Stable is false if the test was unstable across runs.
	Stable bool `yaml:"stable"`
}

// Norms computes the baseline of every test in sets. Tests named in
// unstable are marked not stable.
//
// Like Classify, Norms requires every set to contain the same tests.
func Norms(sets []*benchjson.ResultSet, unstable []string) (map[string]NormEntry, error) {
	names, err := CommonTests(sets)
	if err != nil {
		return nil, err
	}
	bad := make(map[string]bool, len(unstable))
	for _, name := range unstable {
		bad[name] = true
	}

	norms := make(map[string]NormEntry, len(names))
	medians := make([]float64, len(sets))
	for _, name := range names {
		for i, rs := range sets {
			o, ok := rs.Lookup(name)
			if !ok {
				return nil, &MissingTestError{Test: name, Run: rs.Name}
			}
			medians[i] = o.Median()
		}
		norms[name] = NormEntry{
			Norm:   benchmath.Median(medians),
			Stable: !bad[name],
		}
	}
	return norms, nil
}

// WriteNorms writes norms to w as a YAML mapping from test name to
// {norm, stable}, sorted by test name.
func WriteNorms(w io.Writer, norms map[string]NormEntry) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(norms); err != nil {
		return err
	}
	return enc.Close()
}

// ReadNorms reads a norm file written by WriteNorms.
func ReadNorms(r io.Reader) (map[string]NormEntry, error) {
	var norms map[string]NormEntry
	if err := yaml.NewDecoder(r).Decode(&norms); err != nil {
		return nil, err
	}
	return norms, nil
}
