// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright 2025 The powerprobe Authors. All rights reserved.
// This file is licensed under the AGPL v3.0 or later license. See LICENSE and
// AUTHORS file for more information.

package samplestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/RootLeo00/Dynamic-Scaling-Policy-Energy-5G-ORAN/probe/logging"
)

// Run describes one archived collection run.
type Run struct {
	ID       string
	Label    string
	Mode     string
	StoredAt time.Time
	Samples  int
}

// NewRun returns a Run with a fresh random id
func NewRun(label, mode string) Run {
	return Run{ID: uuid.NewString(), Label: label, Mode: mode}
}

// Archive keeps finished collection runs in a SQLite database, so they can be
// rendered again later.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens (or creates) the SQLite file at path and creates the
// tables if needed. The caller must Close it.
func OpenArchive(path string) (*Archive, error) {
	logger := logging.Logger()

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "Error while opening the run archive")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "Error while connecting to the run archive")
	}

	a := &Archive{db: db}
	if err := a.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("Run archive ready at ", path)
	return a, nil
}

func (a *Archive) migrate() error {
	const stmt = `
CREATE TABLE IF NOT EXISTS runs (
    id         TEXT PRIMARY KEY,
    label      TEXT NOT NULL,
    mode       TEXT NOT NULL,
    stored_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS samples (
    run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    entity     TEXT NOT NULL,
    seq        INTEGER NOT NULL,
    ts         REAL NOT NULL,
    value      REAL NOT NULL,
    cmdline    TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, entity, seq)
);
`
	if _, err := a.db.Exec(stmt); err != nil {
		return errors.Wrap(err, "Error while creating the run archive tables")
	}
	return nil
}

// SaveRun stores the buffer under run.ID in a single transaction. Saving the
// same id again replaces the previous content.
func (a *Archive) SaveRun(ctx context.Context, run Run, buf *Buffer) (err error) {
	if run.ID == "" {
		return errors.New("Run id is empty")
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "Error while starting the archive transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range []string{`DELETE FROM samples WHERE run_id = ?`, `DELETE FROM runs WHERE id = ?`} {
		if _, err = tx.ExecContext(ctx, stmt, run.ID); err != nil {
			return errors.Wrap(err, "Error while replacing the archived run")
		}
	}

	storedAt := run.StoredAt
	if storedAt.IsZero() {
		storedAt = time.Now()
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, label, mode, stored_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Label, run.Mode, storedAt.UnixNano()); err != nil {
		return errors.Wrap(err, "Error while archiving the run")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO samples (run_id, entity, seq, ts, value, cmdline) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "Error while preparing the sample insert")
	}
	defer stmt.Close()

	for _, entity := range buf.Entities() {
		for seq, s := range buf.Series(entity) {
			if _, err = stmt.ExecContext(ctx, run.ID, entity, seq, s.Timestamp, s.Value, s.Cmdline); err != nil {
				return errors.Wrapf(err, "Error while archiving a sample of %s", entity)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "Error while committing the archive transaction")
	}

	logging.Logger().Debugf("Archived run %s (%s) with %d samples", run.ID, run.Label, buf.Total())
	return nil
}

// Runs lists the archived runs, most recent first
func (a *Archive) Runs(ctx context.Context) ([]Run, error) {
	rows, err := a.db.QueryContext(ctx, `
SELECT r.id, r.label, r.mode, r.stored_at, COUNT(s.seq)
FROM runs r LEFT JOIN samples s ON s.run_id = r.id
GROUP BY r.id
ORDER BY r.stored_at DESC, r.id`)
	if err != nil {
		return nil, errors.Wrap(err, "Error while listing archived runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run      Run
			storedAt int64
		)
		if err := rows.Scan(&run.ID, &run.Label, &run.Mode, &storedAt, &run.Samples); err != nil {
			return nil, errors.Wrap(err, "Error while reading an archived run")
		}
		run.StoredAt = time.Unix(0, storedAt)
		runs = append(runs, run)
	}
	return runs, errors.Wrap(rows.Err(), "Error while listing archived runs")
}

// LoadRun rebuilds the buffer of an archived run. Entities come back in
// lexical order, samples in their original order.
func (a *Archive) LoadRun(ctx context.Context, id string) (*Buffer, error) {
	var exists int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return nil, errors.Wrap(err, "Error while looking up the archived run")
	}
	if exists == 0 {
		return nil, errors.Errorf("Run %q not found in the archive", id)
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT entity, ts, value, cmdline FROM samples WHERE run_id = ? ORDER BY entity, seq`, id)
	if err != nil {
		return nil, errors.Wrap(err, "Error while loading the archived samples")
	}
	defer rows.Close()

	buf := NewBuffer()
	for rows.Next() {
		var (
			entity string
			s      Sample
		)
		if err := rows.Scan(&entity, &s.Timestamp, &s.Value, &s.Cmdline); err != nil {
			return nil, errors.Wrap(err, "Error while reading an archived sample")
		}
		buf.Append(entity, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "Error while loading the archived samples")
	}
	return buf, nil
}

// Close releases the database
func (a *Archive) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
