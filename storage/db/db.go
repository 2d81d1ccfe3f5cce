// Copyright 2016 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package db stores the history of stability analyses: the runs that
// were loaded and the normalization baselines computed from them.
package db

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/torchbench/benchstab/benchjson"
	"github.com/torchbench/benchstab/stability"
)

// ErrNoNorms is returned by LatestNorms if no norms have been stored.
var ErrNoNorms = errors.New("no norms stored")

// DB is a high-level interface to a history database. It's safe for
// concurrent use by multiple goroutines.
type DB struct {
	sql *sql.DB // underlying database connection
	// prepared statements
	insertRun         *sql.Stmt
	insertObservation *sql.Stmt
	insertNormSet     *sql.Stmt
	insertNorm        *sql.Stmt
}

// OpenSQL creates a DB backed by a SQL database. The parameters are
// the same as the parameters for sql.Open. Only mysql and sqlite3 are
// explicitly supported; other database engines will receive MySQL
// query syntax which may or may not be compatible.
func OpenSQL(driverName, dataSourceName string) (*DB, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if hook := openHooks[driverName]; hook != nil {
		if err := hook(db); err != nil {
			return nil, err
		}
	}
	d := &DB{sql: db}
	if err := d.createTables(driverName); err != nil {
		return nil, err
	}
	if err := d.prepareStatements(); err != nil {
		return nil, err
	}
	return d, nil
}

var openHooks = make(map[string]func(*sql.DB) error)

// RegisterOpenHook registers a hook to be called after opening a connection to driverName.
// This is used by the sqlite3 package to register a ConnectHook.
// It must be called from an init function.
func RegisterOpenHook(driverName string, hook func(*sql.DB) error) {
	openHooks[driverName] = hook
}

// createTmpl is the template used to prepare the CREATE statements
// for the database. It is evaluated with . as a map containing one
// entry whose key is the driver name.
var createTmpl = template.Must(template.New("create").Parse(`
CREATE TABLE IF NOT EXISTS Runs (
	RunID {{if .sqlite3}}INTEGER PRIMARY KEY AUTOINCREMENT{{else}}SERIAL PRIMARY KEY AUTO_INCREMENT{{end}},
	Name VARCHAR(255)
);
CREATE TABLE IF NOT EXISTS Observations (
	RunID BIGINT UNSIGNED,
	Name VARCHAR(255),
	Device VARCHAR(16),
	RunTimes INTEGER,
	Median DOUBLE,
	MaxDelta DOUBLE,
	Variance DOUBLE,
	PRIMARY KEY (RunID, Name),
	FOREIGN KEY (RunID) REFERENCES Runs(RunID) ON UPDATE CASCADE ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS NormSets (
	NormSetID {{if .sqlite3}}INTEGER PRIMARY KEY AUTOINCREMENT{{else}}SERIAL PRIMARY KEY AUTO_INCREMENT{{end}},
	Threshold DOUBLE,
	Runs INTEGER
);
CREATE TABLE IF NOT EXISTS Norms (
	NormSetID BIGINT UNSIGNED,
	Name VARCHAR(255),
	Norm DOUBLE,
	Stable BOOLEAN,
	PRIMARY KEY (NormSetID, Name),
	FOREIGN KEY (NormSetID) REFERENCES NormSets(NormSetID) ON UPDATE CASCADE ON DELETE CASCADE
);
`))

// createTables creates any missing tables on the connection in
// db.sql. driverName is the same driver name passed to sql.Open and
// is used to select the correct syntax.
func (db *DB) createTables(driverName string) error {
	var buf bytes.Buffer
	if err := createTmpl.Execute(&buf, map[string]bool{driverName: true}); err != nil {
		return err
	}
	for _, q := range strings.Split(buf.String(), ";") {
		if strings.TrimSpace(q) == "" {
			continue
		}
		if _, err := db.sql.Exec(q); err != nil {
			return fmt.Errorf("create table: %v", err)
		}
	}
	return nil
}

// prepareStatements calls db.sql.Prepare on reusable SQL statements.
func (db *DB) prepareStatements() error {
	var err error
	db.insertRun, err = db.sql.Prepare("INSERT INTO Runs(Name) VALUES (?)")
	if err != nil {
		return err
	}
	db.insertObservation, err = db.sql.Prepare("INSERT INTO Observations(RunID, Name, Device, RunTimes, Median, MaxDelta, Variance) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	db.insertNormSet, err = db.sql.Prepare("INSERT INTO NormSets(Threshold, Runs) VALUES (?, ?)")
	if err != nil {
		return err
	}
	db.insertNorm, err = db.sql.Prepare("INSERT INTO Norms(NormSetID, Name, Norm, Stable) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	return nil
}

// withTx runs f in a transaction, committing if f succeeds and rolling
// back otherwise.
func (db *DB) withTx(ctx context.Context, f func(*sql.Tx) error) (err error) {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	return f(tx)
}

// InsertResultSet records rs and its observations as a new run and
// returns the run's ID.
func (db *DB) InsertResultSet(ctx context.Context, rs *benchjson.ResultSet) (int64, error) {
	var id int64
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.StmtContext(ctx, db.insertRun).ExecContext(ctx, rs.Name)
		if err != nil {
			return err
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		stmt := tx.StmtContext(ctx, db.insertObservation)
		for _, o := range rs.Observations {
			if _, err := stmt.ExecContext(ctx, id, o.Name(), o.Device(), o.RunTimes(), o.Median(), o.MaxDelta(), o.Variance()); err != nil {
				return fmt.Errorf("insert %s: %v", o.Name(), err)
			}
		}
		return nil
	})
	return id, err
}

// InsertNorms records norms, computed from runs result sets at the
// given threshold, and returns the ID of the new norm set.
func (db *DB) InsertNorms(ctx context.Context, threshold float64, runs int, norms map[string]stability.NormEntry) (int64, error) {
	var id int64
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.StmtContext(ctx, db.insertNormSet).ExecContext(ctx, threshold, runs)
		if err != nil {
			return err
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		stmt := tx.StmtContext(ctx, db.insertNorm)
		for name, e := range norms {
			if _, err := stmt.ExecContext(ctx, id, name, e.Norm, e.Stable); err != nil {
				return fmt.Errorf("insert norm %s: %v", name, err)
			}
		}
		return nil
	})
	return id, err
}

// LatestNorms returns the most recently inserted norms and the
// threshold they were computed at. It returns ErrNoNorms if there are
// none.
func (db *DB) LatestNorms(ctx context.Context) (threshold float64, norms map[string]stability.NormEntry, err error) {
	var id int64
	err = db.sql.QueryRowContext(ctx, "SELECT NormSetID, Threshold FROM NormSets ORDER BY NormSetID DESC LIMIT 1").Scan(&id, &threshold)
	if err == sql.ErrNoRows {
		return 0, nil, ErrNoNorms
	} else if err != nil {
		return 0, nil, err
	}

	rows, err := db.sql.QueryContext(ctx, "SELECT Name, Norm, Stable FROM Norms WHERE NormSetID = ?", id)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()
	norms = make(map[string]stability.NormEntry)
	for rows.Next() {
		var name string
		var e stability.NormEntry
		if err := rows.Scan(&name, &e.Norm, &e.Stable); err != nil {
			return 0, nil, err
		}
		norms[name] = e
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}
	return threshold, norms, nil
}

// RunMedians returns the median of test name in every stored run that
// contains it, in insertion order.
func (db *DB) RunMedians(ctx context.Context, name string) ([]float64, error) {
	rows, err := db.sql.QueryContext(ctx, "SELECT Median FROM Observations WHERE Name = ? ORDER BY RunID", name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var medians []float64
	for rows.Next() {
		var m float64
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		medians = append(medians, m)
	}
	return medians, rows.Err()
}

// CountRuns returns the number of runs stored in the DB.
func (db *DB) CountRuns() (int, error) {
	var n int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM Runs").Scan(&n)
	return n, err
}

// CountNormSets returns the number of norm sets recorded in the database.
func (db *DB) CountNormSets() (int, error) {
	var n int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM NormSets").Scan(&n)
	return n, err
}

// Close closes the database connections, releasing any open resources.
func (db *DB) Close() error {
	for _, stmt := range []*sql.Stmt{db.insertRun, db.insertObservation, db.insertNormSet, db.insertNorm} {
		if err := stmt.Close(); err != nil {
			return err
		}
	}
	return db.sql.Close()
}
