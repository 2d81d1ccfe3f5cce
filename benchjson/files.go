// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchjson

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// A Source is a collection of result files.
type Source interface {
	// List returns the names of the non-empty ".json" files in
	// the source, in sorted order.
	List(ctx context.Context) ([]string, error)

	// Open opens the named file for reading.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Dir returns a Source for the result files in a local directory.
// Subdirectories are not searched.
func Dir(path string) Source {
	return dirSource(path)
}

type dirSource string

func (d dirSource) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(string(d))
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		if info.Size() == 0 {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (d dirSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(string(d), name))
}

// A Files reads every result file in a Source.
//
// Files are parsed concurrently, but Files returns only after all of
// them have been read, so callers always see complete input.
type Files struct {
	Source Source

	// SkipInvalid causes files that fail to parse to be reported
	// through Warn and skipped instead of failing the load. Other
	// errors, such as a zero latency, are always fatal.
	SkipInvalid bool

	// Warn reports non-fatal problems. If nil, they are written
	// to stderr.
	Warn func(format string, args ...interface{})

	// Concurrency limits the number of files parsed at once.
	// Zero means no limit.
	Concurrency int
}

func (f *Files) warn(format string, args ...interface{}) {
	if f.Warn != nil {
		f.Warn(format, args...)
		return
	}
	fmt.Fprintf(os.Stderr, format, args...)
}

// Snapshots reads and decodes every file in f.Source. The result is
// in file name order; skipped files are omitted.
func (f *Files) Snapshots(ctx context.Context) ([]*Snapshot, error) {
	names, err := f.Source.List(ctx)
	if err != nil {
		return nil, err
	}

	snaps := make([]*Snapshot, len(names))
	errs := make([]error, len(names))
	g, gctx := errgroup.WithContext(ctx)
	if f.Concurrency > 0 {
		g.SetLimit(f.Concurrency)
	}
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			r, err := f.Source.Open(gctx, name)
			if err != nil {
				return err
			}
			defer r.Close()
			snaps[i], errs[i] = Decode(r, name)
			if errs[i] != nil && !f.canSkip(errs[i]) {
				return errs[i]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := snaps[:0]
	for i, snap := range snaps {
		if errs[i] != nil {
			f.warn("%v\n", errs[i])
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

// Load reads every file in f.Source into a ResultSet.
func (f *Files) Load(ctx context.Context) ([]*ResultSet, error) {
	snaps, err := f.Snapshots(ctx)
	if err != nil {
		return nil, err
	}
	var sets []*ResultSet
	for _, snap := range snaps {
		rs, err := snap.ResultSet()
		if err != nil {
			if f.canSkip(err) {
				f.warn("%v\n", err)
				continue
			}
			return nil, err
		}
		sets = append(sets, rs)
	}
	return sets, nil
}

func (f *Files) canSkip(err error) bool {
	var pe *ParseError
	return f.SkipInvalid && errors.As(err, &pe)
}
