package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"brandops/internal/job"
	logx "brandops/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) PutJob(ctx context.Context, j *job.Job) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if j == nil || strings.TrimSpace(j.ID) == "" {
		return errors.New("job id is required")
	}
	ids, err := json.Marshal(j.BrandIDs)
	if err != nil {
		return err
	}
	created := j.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO jobs(id, brand_ids, created_at) VALUES(?,?,?)
		 ON CONFLICT(id) DO UPDATE SET brand_ids=excluded.brand_ids`,
		j.ID, string(ids), created.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM brand_outputs WHERE job_id = ?`, j.ID); err != nil {
		return err
	}
	for brandID, o := range j.Outputs {
		if o == nil {
			continue
		}
		content, err := json.Marshal(o.Content)
		if err != nil {
			return err
		}
		updated := o.UpdatedAt
		if updated.IsZero() {
			updated = created
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO brand_outputs(job_id, brand_id, status, title, caption, content, artifact_ref, err, updated_at)
			 VALUES(?,?,?,?,?,?,?,?,?)`,
			j.ID, brandID, string(o.Status), nullStr(o.Title), nullStr(o.Caption), string(content),
			nullStr(o.ArtifactRef), nullStr(o.Error), updated.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) GetJob(ctx context.Context, id string) (*job.Job, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	var ids, created string
	err := s.db.QueryRowContext(ctx, `SELECT brand_ids, created_at FROM jobs WHERE id = ?`, id).Scan(&ids, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	j := &job.Job{ID: id, Outputs: map[string]*job.BrandOutput{}}
	if err := json.Unmarshal([]byte(ids), &j.BrandIDs); err != nil {
		return nil, fmt.Errorf("job %q brand_ids: %w", id, err)
	}
	j.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)

	rows, err := s.db.QueryContext(ctx,
		`SELECT brand_id, status, title, caption, content, artifact_ref, err, updated_at
		 FROM brand_outputs WHERE job_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			brandID, status, content, updated string
			title, caption, ref, errStr       sql.NullString
		)
		if err := rows.Scan(&brandID, &status, &title, &caption, &content, &ref, &errStr, &updated); err != nil {
			return nil, err
		}
		o := &job.BrandOutput{
			Status:      job.Status(status),
			Title:       title.String,
			Caption:     caption.String,
			ArtifactRef: ref.String,
			Error:       errStr.String,
		}
		if content != "" && content != "null" {
			if err := json.Unmarshal([]byte(content), &o.Content); err != nil {
				return nil, fmt.Errorf("job %q brand %q content: %w", id, brandID, err)
			}
		}
		o.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		j.Outputs[brandID] = o
	}
	return j, rows.Err()
}

func (s *sqliteStore) ListJobs(ctx context.Context) ([]*job.Job, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM jobs ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*job.Job, 0, len(ids))
	for _, id := range ids {
		j, err := s.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

func (s *sqliteStore) UpdateStatus(ctx context.Context, jobID, brandID string, st job.Status) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var cur string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM brand_outputs WHERE job_id = ? AND brand_id = ?`, jobID, brandID).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("job %q brand %q: %w", jobID, brandID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	from := job.Status(cur)
	if from == st {
		return nil
	}
	if !from.CanTransition(st) {
		return fmt.Errorf("%w: %s -> %s", job.ErrInvalidTransition, from, st)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE brand_outputs SET status = ?, updated_at = ? WHERE job_id = ? AND brand_id = ?`,
		string(st), time.Now().UTC().Format(time.RFC3339Nano), jobID, brandID,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, job_id, action, ok, fail, err, took_ms, meta)
		 VALUES(?,?,?,?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), e.JobID, e.Action, e.OK, e.Fail, nullStr(e.Error), e.TookMS, nullStr(e.MetaJSON),
	)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
