// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Benchstab finds the benchmarks that are unstable across repeated
// runs of the same suite and computes normalization baselines.
//
// Usage:
//
//	benchstab [options] result-dir
//
// result-dir is a directory, or a gs://bucket/prefix location, holding
// one JSON result file per run. Every run must contain the same tests.
//
// Benchstab writes the following files to the -o directory:
//
//	tests.csv     per-run statistics of every test
//	unstable.csv  tests unstable within a run (single) or across runs (cross)
//	sweep.csv     number of stable and unstable tests at each swept threshold
//	filter.txt    an expression excluding the tests unstable across runs
//	norm.yaml     the baseline of every test
//
// and prints the tests unstable across runs to standard output.
//
// The -png and -html options additionally draw the threshold sweep and
// an HTML report. With -db, the runs and the norms are also recorded in
// a history database. -db-driver selects sqlite3 (the default) or
// mysql; mysql DSNs may address a Cloud SQL instance as
// user@cloudsql(project:region:instance)/database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	_ "github.com/GoogleCloudPlatform/cloudsql-proxy/proxy/dialers/mysql"
	_ "github.com/go-sql-driver/mysql"
	"github.com/torchbench/benchstab/benchjson"
	"github.com/torchbench/benchstab/benchmath"
	"github.com/torchbench/benchstab/bisect"
	"github.com/torchbench/benchstab/stability"
	"github.com/torchbench/benchstab/storage/db"
	_ "github.com/torchbench/benchstab/storage/db/sqlite3"
)

var exit = os.Exit // replaced during testing

var errUsage = errors.New("usage")

func main() {
	log.SetPrefix("benchstab: ")
	log.SetFlags(0)
	err := benchstab(context.Background(), os.Stdout, os.Stderr, os.Args[1:])
	if err == errUsage {
		exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func benchstab(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	fs := flag.NewFlagSet("benchstab", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: benchstab [options] result-dir\n")
		fmt.Fprintf(stderr, "options:\n")
		fs.PrintDefaults()
	}

	th := benchmath.DefaultThresholds
	so := stability.DefaultSweepOptions
	fs.Float64Var(&th.Stable, "threshold", th.Stable, "consider a test unstable if its relative spread is at least `t`")
	fs.Float64Var(&so.Base, "sweep-base", so.Base, "first threshold of the sweep")
	fs.Float64Var(&so.Step, "sweep-step", so.Step, "threshold increment of the sweep")
	fs.IntVar(&so.Steps, "sweep-steps", so.Steps, "number of thresholds in the sweep")
	var (
		skipInvalid = fs.Bool("skip-invalid", false, "warn about and skip result files that cannot be parsed")
		outDir      = fs.String("o", ".", "write output files to `dir`")
		pngFile     = fs.String("png", "", "draw the threshold sweep to `file`")
		htmlFile    = fs.String("html", "", "write an HTML report to `file`")
		dsn         = fs.String("db", "", "record runs and norms in the database `dsn`")
		driver      = fs.String("db-driver", "sqlite3", "database `driver` for -db: sqlite3 or mysql")
		token       = fs.String("token", os.Getenv("GCS_TOKEN"), "OAuth2 access `token` for gs:// locations")
	)
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
	if err := th.Validate(); err != nil {
		return err
	}

	src, err := source(ctx, fs.Arg(0), *token)
	if err != nil {
		return err
	}
	files := &benchjson.Files{
		Source:      src,
		SkipInvalid: *skipInvalid,
		Warn: func(format string, args ...interface{}) {
			fmt.Fprintf(stderr, "warning: "+format, args...)
		},
	}
	sets, err := files.Load(ctx)
	if err != nil {
		return err
	}
	if len(sets) == 0 {
		return fmt.Errorf("no result files in %s", fs.Arg(0))
	}

	report, err := stability.Classify(sets, th.Stable)
	if err != nil {
		return err
	}
	sweep, err := stability.Sweep(sets, so)
	if err != nil {
		return err
	}
	unstable := report.UnstableAcrossRun()
	norms, err := stability.Norms(sets, unstable)
	if err != nil {
		return err
	}
	filter, err := bisect.Filter(unstable)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*outDir, 0777); err != nil {
		return err
	}
	outputs := []struct {
		name  string
		write func(io.Writer) error
	}{
		{"tests.csv", func(w io.Writer) error { return stability.WriteObservations(w, sets) }},
		{"unstable.csv", func(w io.Writer) error { return stability.WriteUnstable(w, report) }},
		{"sweep.csv", func(w io.Writer) error { return stability.WriteSweep(w, sweep) }},
		{"filter.txt", func(w io.Writer) error { _, err := fmt.Fprintln(w, filter); return err }},
		{"norm.yaml", func(w io.Writer) error { return stability.WriteNorms(w, norms) }},
	}
	for _, o := range outputs {
		if err := writeFile(filepath.Join(*outDir, o.name), o.write); err != nil {
			return err
		}
	}
	if *pngFile != "" {
		if err := writeFile(*pngFile, func(w io.Writer) error { return stability.Chart(w, sweep) }); err != nil {
			return err
		}
	}
	if *htmlFile != "" {
		if err := writeFile(*htmlFile, func(w io.Writer) error { return stability.WriteHTML(w, report, norms, len(sets)) }); err != nil {
			return err
		}
	}
	if *dsn != "" {
		if err := record(ctx, *driver, *dsn, sets, th.Stable, norms); err != nil {
			return err
		}
	}

	return stability.WriteUnstable(stdout, report, stability.Cross)
}

// source returns the Source for a result location.
func source(ctx context.Context, location, token string) (benchjson.Source, error) {
	bucket, prefix, ok := benchjson.ParseGCSPath(location)
	if !ok {
		return benchjson.Dir(location), nil
	}
	client, err := benchjson.NewGCSClient(ctx, token)
	if err != nil {
		return nil, err
	}
	return benchjson.GCS(client, bucket, prefix), nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %v", path, err)
	}
	return f.Close()
}

// record stores sets and norms in the history database.
func record(ctx context.Context, driver, dsn string, sets []*benchjson.ResultSet, threshold float64, norms map[string]stability.NormEntry) error {
	d, err := db.OpenSQL(driver, dsn)
	if err != nil {
		return fmt.Errorf("open database: %v", err)
	}
	defer d.Close()
	for _, rs := range sets {
		if _, err := d.InsertResultSet(ctx, rs); err != nil {
			return fmt.Errorf("record %s: %v", rs.Name, err)
		}
	}
	if _, err := d.InsertNorms(ctx, threshold, len(sets), norms); err != nil {
		return fmt.Errorf("record norms: %v", err)
	}
	return nil
}
