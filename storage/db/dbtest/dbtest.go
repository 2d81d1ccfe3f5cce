// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dbtest opens empty history databases for tests.
//
// By default each database is a private in-memory SQLite database.
// With -cloud and -cloudsql=project:region:instance, tests instead run
// against a scratch MySQL database created on that Cloud SQL instance
// and dropped on cleanup.
package dbtest

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"flag"
	"fmt"
	"testing"

	_ "github.com/GoogleCloudPlatform/cloudsql-proxy/proxy/dialers/mysql"
	"github.com/torchbench/benchstab/storage/db"
	_ "github.com/torchbench/benchstab/storage/db/sqlite3"
)

var (
	cloud    = flag.Bool("cloud", false, "run database tests on Cloud SQL instead of in-memory SQLite")
	instance = flag.String("cloudsql", "", "Cloud SQL `instance` (project:region:name) used by -cloud")
)

// scratchMySQL creates a uniquely named database on the -cloudsql
// instance. It returns the database DSN and a function that drops it.
func scratchMySQL(t *testing.T) (string, func()) {
	t.Helper()
	if *instance == "" {
		t.Skip("-cloud needs -cloudsql to name an instance")
	}
	var suffix [6]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		t.Fatal(err)
	}
	name := "benchstab_test_" + hex.EncodeToString(suffix[:])
	server := fmt.Sprintf("root:@cloudsql(%s)/", *instance)

	admin, err := sql.Open("mysql", server)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := admin.Exec("CREATE DATABASE `" + name + "`"); err != nil {
		admin.Close()
		t.Fatalf("create %s on %s: %v", name, *instance, err)
	}
	t.Logf("using scratch database %s on %s", name, *instance)

	drop := func() {
		if _, err := admin.Exec("DROP DATABASE `" + name + "`"); err != nil {
			t.Errorf("drop %s: %v", name, err)
		}
		admin.Close()
	}
	return server + name, drop
}

// NewDB opens an empty history database for t. The returned cleanup
// function closes it and releases any scratch database; call it
// instead of db.Close.
func NewDB(t *testing.T) (*db.DB, func()) {
	t.Helper()
	driver, dsn, drop := "sqlite3", ":memory:", func() {}
	if *cloud {
		driver = "mysql"
		dsn, drop = scratchMySQL(t)
	}

	d, err := db.OpenSQL(driver, dsn)
	if err != nil {
		drop()
		t.Fatalf("open %s database: %v", driver, err)
	}
	cleanup := func() {
		d.Close()
		drop()
	}

	// Runs and NormSets own every other row, so both empty means the
	// whole schema is.
	for _, c := range []struct {
		table string
		count func() (int, error)
	}{
		{"Runs", d.CountRuns},
		{"NormSets", d.CountNormSets},
	} {
		n, err := c.count()
		if err != nil {
			cleanup()
			t.Fatalf("count %s: %v", c.table, err)
		}
		if n != 0 {
			cleanup()
			t.Fatalf("fresh database has %d row(s) in %s, want 0", n, c.table)
		}
	}
	return d, cleanup
}
