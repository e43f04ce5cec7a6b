// Package auditdb persists a queryable trail of completed jobs and the
// entities each one touched, to a small SQLite-backed index. This is
// additive observability (cmd/swarmctl reads it; nothing in the engine
// depends on it): a pure-Go, cgo-free embedded store written from a single
// background goroutine so the tick loop never blocks on disk I/O.
package auditdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// JobCompletion is one row for the jobs table: a job the Job Manager marked
// completed this tick (§4.2).
type JobCompletion struct {
	JobID         string // engine-assigned sequential id, e.g. "J000001"
	Kind          string
	Creator       string
	CompletedTick uint64
}

// EntityAudit is one row for the entities table: an entity a chunk-distributed
// action kind (deconstruct, upgrade, build, §4.8–§4.9) finished acting on.
type EntityAudit struct {
	JobID      string
	Action     string // "deconstruct", "upgrade", "build"
	EntityName string
	ChunkX     int
	ChunkY     int
	Tick       uint64
}

type reqKind int

const (
	reqJob reqKind = iota + 1
	reqEntity
)

type req struct {
	kind   reqKind
	job    JobCompletion
	entity EntityAudit
}

// Store is the audit trail's sqlite-backed writer. All mutation happens on
// a background goroutine fed by a buffered channel; callers on the tick
// loop never wait on disk I/O.
type Store struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

// Open creates (or reuses) the sqlite file at path and starts the writer
// goroutine.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("auditdb: empty path")
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

	s := &Store{
		db: db,
		// High buffer: a burst of chunk completions (many agents finishing
		// at once) shouldn't stall the sim waiting for disk.
		ch: make(chan req, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
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
		`CREATE TABLE IF NOT EXISTS jobs (
			audit_id TEXT PRIMARY KEY,
			job_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			creator TEXT NOT NULL,
			completed_tick INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_job_id ON jobs(job_id);`,
		`CREATE TABLE IF NOT EXISTS entities (
			audit_id TEXT PRIMARY KEY,
			job_id TEXT NOT NULL,
			action TEXT NOT NULL,
			entity_name TEXT NOT NULL,
			chunk_x INTEGER NOT NULL,
			chunk_y INTEGER NOT NULL,
			tick INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_entities_job_id ON entities(job_id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the writer goroutine and closes the database.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteJobCompleted enqueues a completed job's audit row. Dropped silently
// (with the sqlite row never written) if the writer has fallen behind; the
// audit trail is additive observability, not the system of record (§3).
func (s *Store) WriteJobCompleted(jc JobCompletion) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqJob, job: jc}:
	default:
	}
}

// WriteEntityAudit enqueues one acted-on-entity row.
func (s *Store) WriteEntityAudit(ea EntityAudit) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqEntity, entity: ea}:
	default:
	}
}

func (s *Store) loop() {
	insertJob, _ := s.db.Prepare(`INSERT OR REPLACE INTO jobs(audit_id,job_id,kind,creator,completed_tick) VALUES(?,?,?,?,?)`)
	insertEntity, _ := s.db.Prepare(`INSERT OR REPLACE INTO entities(audit_id,job_id,action,entity_name,chunk_x,chunk_y,tick) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		if insertJob != nil {
			_ = insertJob.Close()
		}
		if insertEntity != nil {
			_ = insertEntity.Close()
		}
	}()

	for r := range s.ch {
		switch r.kind {
		case reqJob:
			_, _ = insertJob.Exec(uuid.NewString(), r.job.JobID, r.job.Kind, r.job.Creator, r.job.CompletedTick)
		case reqEntity:
			_, _ = insertEntity.Exec(uuid.NewString(), r.entity.JobID, r.entity.Action, r.entity.EntityName, r.entity.ChunkX, r.entity.ChunkY, r.entity.Tick)
		}
	}
}

// RecentJobs returns up to limit most-recently-completed jobs, newest
// first, for cmd/swarmctl's status dump.
func (s *Store) RecentJobs(limit int) ([]JobCompletion, error) {
	rows, err := s.db.Query(`SELECT job_id, kind, creator, completed_tick FROM jobs ORDER BY completed_tick DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JobCompletion
	for rows.Next() {
		var jc JobCompletion
		if err := rows.Scan(&jc.JobID, &jc.Kind, &jc.Creator, &jc.CompletedTick); err != nil {
			return nil, err
		}
		out = append(out, jc)
	}
	return out, rows.Err()
}

// entityCountsByAction is a small reporting helper used by cmd/swarmctl.
func (s *Store) entityCountsByAction() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT action, COUNT(*) FROM entities GROUP BY action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, err
		}
		out[action] = n
	}
	return out, rows.Err()
}

// EntityCountsByAction exposes entityCountsByAction to other packages
// (cmd/swarmctl's human-readable dump).
func (s *Store) EntityCountsByAction() (map[string]int, error) { return s.entityCountsByAction() }
