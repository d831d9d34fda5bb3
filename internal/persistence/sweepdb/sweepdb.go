// Package sweepdb stores parameter sweep results in a SQLite file so
// runs can be compared across invocations and queried with plain SQL.
package sweepdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"mangoline.dev/internal/sim/belt"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sweeps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			seed INTEGER NOT NULL,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS robot_points (
			sweep_id INTEGER NOT NULL,
			num_robots INTEGER NOT NULL,
			avg_eff REAL NOT NULL,
			min_eff REAL NOT NULL,
			max_eff REAL NOT NULL,
			avg_missed_box REAL NOT NULL,
			optimal INTEGER NOT NULL,
			PRIMARY KEY (sweep_id, num_robots)
		);`,
		`CREATE TABLE IF NOT EXISTS failure_points (
			sweep_id INTEGER NOT NULL,
			failure_prob REAL NOT NULL,
			robots_no_backup INTEGER NOT NULL,
			eff_no_backup REAL NOT NULL,
			robots_with_backup INTEGER NOT NULL,
			backup_count INTEGER NOT NULL,
			eff_with_backup REAL NOT NULL,
			PRIMARY KEY (sweep_id, failure_prob)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// BeginSweep records a new sweep run and returns its id.
func (s *Store) BeginSweep(kind string, seed int64) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO sweeps (kind, seed, started_at) VALUES (?, ?, ?)`,
		kind, seed, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) InsertRobotPoint(sweepID int64, p belt.RobotSweepPoint) error {
	_, err := s.db.Exec(
		`INSERT INTO robot_points
		 (sweep_id, num_robots, avg_eff, min_eff, max_eff, avg_missed_box, optimal)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sweepID, p.NumRobots, p.AvgEff, p.MinEff, p.MaxEff, p.AvgMissedBox, boolToInt(p.Optimal),
	)
	return err
}

func (s *Store) InsertFailurePoint(sweepID int64, p belt.FailureSweepPoint) error {
	_, err := s.db.Exec(
		`INSERT INTO failure_points
		 (sweep_id, failure_prob, robots_no_backup, eff_no_backup,
		  robots_with_backup, backup_count, eff_with_backup)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sweepID, p.FailureProb, p.RobotsNoBackup, p.EffNoBackup,
		p.RobotsWithBackup, p.BackupCount, p.EffWithBackup,
	)
	return err
}

// RobotPoints returns the robot sweep rows for a run, ordered by count.
func (s *Store) RobotPoints(sweepID int64) ([]belt.RobotSweepPoint, error) {
	rows, err := s.db.Query(
		`SELECT num_robots, avg_eff, min_eff, max_eff, avg_missed_box, optimal
		 FROM robot_points WHERE sweep_id = ? ORDER BY num_robots`, sweepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []belt.RobotSweepPoint
	for rows.Next() {
		var p belt.RobotSweepPoint
		var opt int
		if err := rows.Scan(&p.NumRobots, &p.AvgEff, &p.MinEff, &p.MaxEff, &p.AvgMissedBox, &opt); err != nil {
			return nil, err
		}
		p.Optimal = opt != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

// FailurePoints returns the failure sweep rows for a run, ordered by probability.
func (s *Store) FailurePoints(sweepID int64) ([]belt.FailureSweepPoint, error) {
	rows, err := s.db.Query(
		`SELECT failure_prob, robots_no_backup, eff_no_backup,
		        robots_with_backup, backup_count, eff_with_backup
		 FROM failure_points WHERE sweep_id = ? ORDER BY failure_prob`, sweepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []belt.FailureSweepPoint
	for rows.Next() {
		var p belt.FailureSweepPoint
		if err := rows.Scan(&p.FailureProb, &p.RobotsNoBackup, &p.EffNoBackup,
			&p.RobotsWithBackup, &p.BackupCount, &p.EffWithBackup); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
