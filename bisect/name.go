// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bisect prepares input for an external bisection tool from
// benchmark results: test exclusion filters, performance signals
// between consecutive versions, and per-signal bisection configs.
package bisect

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// A TestName is a test name decomposed into its case and three
// bracketed parameters, as in "test_<case>[<p1>-<p2>-<p3>]".
type TestName struct {
	Case       string
	P1, P2, P3 string
}

// A NameFormatError reports a test name that does not have the form
// test_<case>[<p1>-<p2>-<p3>].
type NameFormatError struct {
	Name string
}

func (e *NameFormatError) Error() string {
	return fmt.Sprintf("test name %q does not match test_<case>[<p1>-<p2>-<p3>]", e.Name)
}

var testNameRe = regexp.MustCompile(`^test_(.*)\[(.*)-(.*)-(.*)\]$`)

// ParseTestName decomposes name. Because the components may
// themselves contain '-', the split is greedy: the last two '-'
// inside the brackets separate p2 from p1 and p3 from p2.
func ParseTestName(name string) (TestName, error) {
	m := testNameRe.FindStringSubmatch(name)
	if m == nil {
		return TestName{}, &NameFormatError{name}
	}
	return TestName{Case: m[1], P1: m[2], P2: m[3], P3: m[4]}, nil
}

// Filter returns a test selection expression that excludes every
// test in names:
//
//	(not ((c1 and p1 and p2 and p3) or (c1' and p1' and p2' and p3')))
//
// Terms appear in sorted name order. Filter returns "" if names is
// empty, since there is nothing to exclude.
func Filter(names []string) (string, error) {
	if len(names) == 0 {
		return "", nil
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	terms := make([]string, 0, len(sorted))
	for _, name := range sorted {
		tn, err := ParseTestName(name)
		if err != nil {
			return "", err
		}
		terms = append(terms, "("+strings.Join([]string{tn.Case, tn.P1, tn.P2, tn.P3}, " and ")+")")
	}
	return "(not (" + strings.Join(terms, " or ") + "))", nil
}
