// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Benchbisect prepares bisection jobs from nightly benchmark results.
//
// Usage:
//
//	benchbisect [options] result-dir
//
// Benchbisect groups the JSON result files in result-dir by the
// PyTorch version that produced them, prints a table of every test's
// mean latency per version, and compares each pair of consecutive
// versions. For each pair in which some test's mean moved by at least
// -threshold percent, it writes a bisection config to
// <dir>/bisection_<version>/config.yaml, where dir is set by -o.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/torchbench/benchstab/benchjson"
	"github.com/torchbench/benchstab/bisect"
)

var exit = os.Exit // replaced during testing

var errUsage = errors.New("usage")

func main() {
	log.SetPrefix("benchbisect: ")
	log.SetFlags(0)
	err := benchbisect(context.Background(), os.Stdout, os.Stderr, os.Args[1:])
	if err == errUsage {
		exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func benchbisect(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	fs := flag.NewFlagSet("benchbisect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: benchbisect [options] result-dir\n")
		fmt.Fprintf(stderr, "options:\n")
		fs.PrintDefaults()
	}
	opts := bisect.DefaultConfigOptions
	fs.Float64Var(&opts.Threshold, "threshold", opts.Threshold, "report tests whose mean changed by at least `pct` percent")
	fs.IntVar(&opts.Timeout, "timeout", opts.Timeout, "bisection step timeout in `seconds`")
	outDir := fs.String("o", "bisections", "write bisection configs under `dir`")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return errUsage
		}
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}

	files := &benchjson.Files{
		Source: benchjson.Dir(fs.Arg(0)),
		Warn: func(format string, args ...interface{}) {
			fmt.Fprintf(stderr, "warning: "+format, args...)
		},
	}
	snaps, err := files.Snapshots(ctx)
	if err != nil {
		return err
	}
	vdb, err := bisect.BuildVersionDB(snaps)
	if err != nil {
		return err
	}
	if err := vdb.WriteTable(stdout); err != nil {
		return err
	}

	sigs, err := vdb.Signals(opts.Threshold)
	if err != nil {
		return err
	}
	for _, sig := range sigs {
		fmt.Fprintf(stdout, "\n%s -> %s\n", sig.TestA, sig.TestB)
		for _, p := range sig.PerfSignals {
			fmt.Fprintf(stdout, "\t%v\n", p)
		}
	}
	paths, err := bisect.WriteConfigs(*outDir, sigs, opts)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintf(stderr, "wrote %s\n", p)
	}
	return nil
}
