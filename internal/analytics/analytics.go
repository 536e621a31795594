// Package analytics records command usage in a local SQLite database:
// frequency, success and failure rates, response times, time-of-day
// patterns, and misrecognitions. Everything stays on the machine.
//
// This data is observational: the scoring engine takes its frequency bonus
// from the adaptation store's usage counters, not from here. PriorityBoost
// derives a comparable boost from the recorded history for dashboards and
// offline tuning; the rest is for the status output and for spotting
// commands that keep failing.
package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS command_stats (
    command           TEXT PRIMARY KEY,
    count             INTEGER NOT NULL DEFAULT 0,
    success_count     INTEGER NOT NULL DEFAULT 0,
    fail_count        INTEGER NOT NULL DEFAULT 0,
    total_response_ms REAL    NOT NULL DEFAULT 0,
    last_used         TEXT    NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS command_hours (
    command TEXT    NOT NULL,
    hour    INTEGER NOT NULL CHECK (hour BETWEEN 0 AND 23),
    count   INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (command, hour)
);

CREATE TABLE IF NOT EXISTS hourly_totals (
    hour  INTEGER PRIMARY KEY CHECK (hour BETWEEN 0 AND 23),
    count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS daily_usage (
    day   TEXT PRIMARY KEY,
    count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS misrecognitions (
    wrong   TEXT NOT NULL,
    correct TEXT NOT NULL,
    count   INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (wrong, correct)
);

CREATE TABLE IF NOT EXISTS sessions (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at        TEXT NOT NULL,
    ended_at          TEXT NOT NULL DEFAULT '',
    total_commands    INTEGER NOT NULL DEFAULT 0,
    success_commands  INTEGER NOT NULL DEFAULT 0,
    failed_commands   INTEGER NOT NULL DEFAULT 0,
    total_response_ms REAL    NOT NULL DEFAULT 0
);
`

// maxPriorityBoost caps the usage-based scoring nudge.
const maxPriorityBoost = 0.2

// CommandStats is the aggregated record for one command.
type CommandStats struct {
	Command       string
	Count         int
	SuccessCount  int
	FailCount     int
	AvgResponseMS float64
	LastUsed      time.Time
}

// HourCount pairs an hour of day with a usage count.
type HourCount struct {
	Hour  int
	Count int
}

// FailureRate pairs a command with its observed failure fraction.
type FailureRate struct {
	Command string
	Rate    float64
}

// Misrecognition pairs a corrected form with how often it was the fix.
type Misrecognition struct {
	Correct string
	Count   int
}

// Summary aggregates the whole database for status output.
type Summary struct {
	TotalCommands  int
	UniqueCommands int
	SuccessRate    float64
	FailureRate    float64
	AvgResponseMS  float64
	TotalSessions  int
}

// DB is the analytics store. Safe for concurrent use; SQLite serializes
// writers internally.
type DB struct {
	db        *sql.DB
	sessionID int64
}

// Open opens (creating if needed) the analytics database at path and
// ensures the schema exists.
func Open(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("analytics: path must not be empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("analytics: open %s: %w", path, err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent recording.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("analytics: enable wal: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("analytics: migrate: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}

// StartSession opens a new usage session. Any previously started session is
// left as-is; sessions are bookkeeping, not a lock.
func (d *DB) StartSession(ctx context.Context) error {
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO sessions (started_at) VALUES (?)`,
		time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("analytics: start session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("analytics: session id: %w", err)
	}
	d.sessionID = id
	return nil
}

// EndSession stamps the end time on the current session.
func (d *DB) EndSession(ctx context.Context) error {
	if d.sessionID == 0 {
		return nil
	}
	_, err := d.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE id = ?`,
		time.Now().Format(time.RFC3339), d.sessionID)
	if err != nil {
		return fmt.Errorf("analytics: end session: %w", err)
	}
	d.sessionID = 0
	return nil
}

// RecordCommand records one executed command with its outcome and response
// time, updating per-command, hourly, daily, and session aggregates in a
// single transaction.
func (d *DB) RecordCommand(ctx context.Context, command string, success bool, responseMS float64) error {
	command = canon(command)
	if command == "" {
		return errors.New("analytics: command must not be empty")
	}
	now := time.Now()
	hour := now.Hour()
	day := now.Format("2006-01-02")
	succ, fail := 0, 0
	if success {
		succ = 1
	} else {
		fail = 1
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("analytics: begin: %w", err)
	}
	defer tx.Rollback()

	stmts := []struct {
		q    string
		args []any
	}{
		{`INSERT INTO command_stats (command, count, success_count, fail_count, total_response_ms, last_used)
		  VALUES (?, 1, ?, ?, ?, ?)
		  ON CONFLICT (command) DO UPDATE SET
		      count             = count + 1,
		      success_count     = success_count + excluded.success_count,
		      fail_count        = fail_count + excluded.fail_count,
		      total_response_ms = total_response_ms + excluded.total_response_ms,
		      last_used         = excluded.last_used`,
			[]any{command, succ, fail, responseMS, now.Format(time.RFC3339)}},
		{`INSERT INTO command_hours (command, hour, count) VALUES (?, ?, 1)
		  ON CONFLICT (command, hour) DO UPDATE SET count = count + 1`,
			[]any{command, hour}},
		{`INSERT INTO hourly_totals (hour, count) VALUES (?, 1)
		  ON CONFLICT (hour) DO UPDATE SET count = count + 1`,
			[]any{hour}},
		{`INSERT INTO daily_usage (day, count) VALUES (?, 1)
		  ON CONFLICT (day) DO UPDATE SET count = count + 1`,
			[]any{day}},
	}
	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, st.q, st.args...); err != nil {
			return fmt.Errorf("analytics: record command: %w", err)
		}
	}
	if d.sessionID != 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE sessions SET
			     total_commands    = total_commands + 1,
			     success_commands  = success_commands + ?,
			     failed_commands   = failed_commands + ?,
			     total_response_ms = total_response_ms + ?
			 WHERE id = ?`,
			succ, fail, responseMS, d.sessionID); err != nil {
			return fmt.Errorf("analytics: update session: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("analytics: commit: %w", err)
	}
	return nil
}

// RecordMisrecognition counts one wrong-to-correct fix for later pattern
// analysis. A no-op when the two are equal.
func (d *DB) RecordMisrecognition(ctx context.Context, wrong, correct string) error {
	wrong = canon(wrong)
	correct = canon(correct)
	if wrong == correct || wrong == "" {
		return nil
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO misrecognitions (wrong, correct, count) VALUES (?, ?, 1)
		 ON CONFLICT (wrong, correct) DO UPDATE SET count = count + 1`,
		wrong, correct)
	if err != nil {
		return fmt.Errorf("analytics: record misrecognition: %w", err)
	}
	return nil
}

// TopCommands returns the n most used commands, most used first.
func (d *DB) TopCommands(ctx context.Context, n int) ([]CommandStats, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT command, count, success_count, fail_count, total_response_ms, last_used
		 FROM command_stats
		 ORDER BY count DESC, command
		 LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("analytics: top commands: %w", err)
	}
	defer rows.Close()

	var out []CommandStats
	for rows.Next() {
		var (
			cs      CommandStats
			totalMS float64
			last    string
		)
		if err := rows.Scan(&cs.Command, &cs.Count, &cs.SuccessCount, &cs.FailCount, &totalMS, &last); err != nil {
			return nil, fmt.Errorf("analytics: scan: %w", err)
		}
		if cs.Count > 0 {
			cs.AvgResponseMS = totalMS / float64(cs.Count)
		}
		cs.LastUsed, _ = time.Parse(time.RFC3339, last)
		out = append(out, cs)
	}
	return out, rows.Err()
}

// PriorityBoost returns a scoring nudge in [0, maxPriorityBoost] scaled by
// how the command's usage compares to the most used command. Unknown
// commands get 0.
func (d *DB) PriorityBoost(ctx context.Context, command string) (float64, error) {
	var count, maxCount int
	err := d.db.QueryRowContext(ctx,
		`SELECT count, (SELECT MAX(count) FROM command_stats)
		 FROM command_stats WHERE command = ?`, canon(command)).Scan(&count, &maxCount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("analytics: priority boost: %w", err)
	}
	if maxCount <= 0 {
		return 0, nil
	}
	boost := float64(count) / float64(maxCount) * maxPriorityBoost
	if boost > maxPriorityBoost {
		boost = maxPriorityBoost
	}
	return boost, nil
}

// FailureProne returns up to n commands with the highest failure rates,
// requiring at least 3 uses so a single failed attempt does not dominate.
func (d *DB) FailureProne(ctx context.Context, n int) ([]FailureRate, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT command, CAST(fail_count AS REAL) / count AS rate
		 FROM command_stats
		 WHERE count >= 3
		 ORDER BY rate DESC, command
		 LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("analytics: failure prone: %w", err)
	}
	defer rows.Close()

	var out []FailureRate
	for rows.Next() {
		var fr FailureRate
		if err := rows.Scan(&fr.Command, &fr.Rate); err != nil {
			return nil, fmt.Errorf("analytics: scan: %w", err)
		}
		out = append(out, fr)
	}
	return out, rows.Err()
}

// PeakHours returns the n busiest hours of the day.
func (d *DB) PeakHours(ctx context.Context, n int) ([]HourCount, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT hour, count FROM hourly_totals ORDER BY count DESC, hour LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("analytics: peak hours: %w", err)
	}
	defer rows.Close()

	var out []HourCount
	for rows.Next() {
		var hc HourCount
		if err := rows.Scan(&hc.Hour, &hc.Count); err != nil {
			return nil, fmt.Errorf("analytics: scan: %w", err)
		}
		out = append(out, hc)
	}
	return out, rows.Err()
}

// MisrecognitionPatterns returns, for each misheard phrase, the corrections
// seen for it ordered by frequency.
func (d *DB) MisrecognitionPatterns(ctx context.Context) (map[string][]Misrecognition, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT wrong, correct, count FROM misrecognitions ORDER BY wrong, count DESC`)
	if err != nil {
		return nil, fmt.Errorf("analytics: misrecognition patterns: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]Misrecognition)
	for rows.Next() {
		var (
			wrong string
			m     Misrecognition
		)
		if err := rows.Scan(&wrong, &m.Correct, &m.Count); err != nil {
			return nil, fmt.Errorf("analytics: scan: %w", err)
		}
		out[wrong] = append(out[wrong], m)
	}
	return out, rows.Err()
}

// Summarize aggregates the whole database.
func (d *DB) Summarize(ctx context.Context) (Summary, error) {
	var (
		s          Summary
		succ, fail int
		totalMS    float64
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(count), 0),
		        COUNT(*),
		        COALESCE(SUM(success_count), 0),
		        COALESCE(SUM(fail_count), 0),
		        COALESCE(SUM(total_response_ms), 0)
		 FROM command_stats`).Scan(
		&s.TotalCommands, &s.UniqueCommands, &succ, &fail, &totalMS)
	if err != nil {
		return Summary{}, fmt.Errorf("analytics: summarize: %w", err)
	}
	if s.TotalCommands > 0 {
		s.SuccessRate = float64(succ) / float64(s.TotalCommands) * 100
		s.FailureRate = float64(fail) / float64(s.TotalCommands) * 100
		s.AvgResponseMS = totalMS / float64(s.TotalCommands)
	}
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&s.TotalSessions); err != nil {
		return Summary{}, fmt.Errorf("analytics: summarize: %w", err)
	}
	return s, nil
}

func canon(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
