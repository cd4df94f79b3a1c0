package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
	"github.com/m-mizutani/drover/pkg/infra/store/migrations"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Store persists runs and job results in SQLite.
type Store struct {
	db *sql.DB
}

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

// Open opens (creating if needed) a run store at path and applies
// embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, goerr.New("store path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open run store", goerr.V("path", path))
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to ping run store", goerr.V("path", path))
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun upserts the run and replaces its job rows. Called once when a
// run is queued and again at finalization.
func (s *Store) SaveRun(ctx context.Context, run *model.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if run.ID == "" {
		return goerr.New("run ID is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin tx", goerr.V("run_id", run.ID))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (
		   id, workflow, repository, branch, commit_sha,
		   tag, grp, status, error, image, started_at, finished_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status,
		   error = excluded.error,
		   image = excluded.image,
		   finished_at = excluded.finished_at`,
		run.ID, run.Workflow, run.Repository, run.Branch, run.Commit,
		run.Tag, run.Group, string(run.Status), run.Error, run.Image,
		toMillis(run.StartedAt), toMillis(run.FinishedAt),
	); err != nil {
		return goerr.Wrap(err, "failed to save run", goerr.V("run_id", run.ID))
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM job_runs WHERE run_id = ?", run.ID); err != nil {
		return goerr.Wrap(err, "failed to clear job runs", goerr.V("run_id", run.ID))
	}
	for _, j := range run.Jobs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO job_runs (run_id, name, status, error, started_at, finished_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, j.Name, string(j.Status), j.Error,
			toMillis(j.StartedAt), toMillis(j.FinishedAt),
		); err != nil {
			return goerr.Wrap(err, "failed to save job run",
				goerr.V("run_id", run.ID),
				goerr.V("job", j.Name),
			)
		}
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit run", goerr.V("run_id", run.ID))
	}
	return nil
}

// GetRun returns one run with its jobs, or types.ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (*model.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, workflow, repository, branch, commit_sha,
		        tag, grp, status, error, image, started_at, finished_at
		   FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(types.ErrRunNotFound, "unknown run", goerr.V("run_id", id))
		}
		return nil, goerr.Wrap(err, "failed to get run", goerr.V("run_id", id))
	}

	if err := s.loadJobs(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 uses
// the default page size.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*model.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workflow, repository, branch, commit_sha,
		        tag, grp, status, error, image, started_at, finished_at
		   FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan run")
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to list runs")
	}

	for _, run := range runs {
		if err := s.loadJobs(ctx, run); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*model.Run, error) {
	var run model.Run
	var status string
	var startedAt, finishedAt int64
	if err := row.Scan(
		&run.ID, &run.Workflow, &run.Repository, &run.Branch, &run.Commit,
		&run.Tag, &run.Group, &status, &run.Error, &run.Image,
		&startedAt, &finishedAt,
	); err != nil {
		return nil, err
	}
	run.Status = model.RunStatus(status)
	run.StartedAt = fromMillis(startedAt)
	run.FinishedAt = fromMillis(finishedAt)
	return &run, nil
}

func (s *Store) loadJobs(ctx context.Context, run *model.Run) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, status, error, started_at, finished_at
		   FROM job_runs WHERE run_id = ? ORDER BY name`, run.ID)
	if err != nil {
		return goerr.Wrap(err, "failed to load job runs", goerr.V("run_id", run.ID))
	}
	defer rows.Close()

	for rows.Next() {
		var j model.JobRun
		var status string
		var startedAt, finishedAt int64
		if err := rows.Scan(&j.Name, &status, &j.Error, &startedAt, &finishedAt); err != nil {
			return goerr.Wrap(err, "failed to scan job run", goerr.V("run_id", run.ID))
		}
		j.Status = model.RunStatus(status)
		j.StartedAt = fromMillis(startedAt)
		j.FinishedAt = fromMillis(finishedAt)
		run.Jobs = append(run.Jobs, &j)
	}
	return rows.Err()
}
