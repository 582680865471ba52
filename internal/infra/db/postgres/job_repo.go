package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	domain "github.com/lintora/lintora/internal/domain/audits"
)

// JobRepository persists audit jobs in PostgreSQL. Same shape as the MySQL
// repository, with $n placeholders.
type JobRepository struct{ db *sql.DB }

func NewJobRepository(db *sql.DB) *JobRepository { return &JobRepository{db: db} }

// Connect opens a pooled Postgres connection and verifies it.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Create insert job record baru (queued)
func (r *JobRepository) Create(ctx context.Context, j *domain.Job) error {
	const q = `
INSERT INTO audit_jobs (id, project_name, code_hash, status, created_at, error)
VALUES ($1,$2,$3,$4,$5,$6);
`
	created := j.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	if _, err := r.db.ExecContext(ctx, q,
		j.ID, j.ProjectName, j.CodeHash, string(j.Status), created, j.Error,
	); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	const q = `
SELECT id, project_name, code_hash, status, created_at, COALESCE(error,''),
       COALESCE(report::text,''), COALESCE(artifact_url,'')
FROM audit_jobs WHERE id=$1 LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, id)
	return scanJob(row.Scan)
}

func (r *JobRepository) UpdateStatus(ctx context.Context, id domain.JobID, st domain.Status, errMsg string) error {
	const q = `
UPDATE audit_jobs
SET status=$1, error=CASE WHEN $2='' THEN error ELSE $2 END
WHERE id=$3;
`
	res, err := r.db.ExecContext(ctx, q, string(st), errMsg, id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *JobRepository) SaveReport(ctx context.Context, id domain.JobID, rep *domain.Report, html []byte) error {
	repJSON, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	const q = `
UPDATE audit_jobs SET
 status=$1, risk_level=$2,
 total_findings=$3, critical=$4, high=$5, medium=$6, low=$7, info=$8,
 report=$9::jsonb, html_report=$10
WHERE id=$11;
`
	res, err := r.db.ExecContext(ctx, q,
		string(domain.StatusCompleted), rep.RiskLevel,
		rep.Summary.TotalFindings, rep.Summary.Critical, rep.Summary.High,
		rep.Summary.Medium, rep.Summary.Low, rep.Summary.Info,
		string(repJSON), string(html), id,
	)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *JobRepository) HTMLReport(ctx context.Context, id domain.JobID) ([]byte, error) {
	const q = `SELECT COALESCE(html_report,'') FROM audit_jobs WHERE id=$1 LIMIT 1;`
	var html string
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&html); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if html == "" {
		return nil, domain.ErrNotFound
	}
	return []byte(html), nil
}

func (r *JobRepository) Latest(ctx context.Context, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, project_name, code_hash, status, created_at, COALESCE(error,''),
       COALESCE(report::text,''), COALESCE(artifact_url,'')
FROM audit_jobs ORDER BY created_at DESC, id DESC LIMIT $1;
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// SetArtifactURL records where the report bundle was archived.
func (r *JobRepository) SetArtifactURL(ctx context.Context, id domain.JobID, url string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE audit_jobs SET artifact_url=$1 WHERE id=$2;`, url, id)
	return err
}

func scanJob(scan func(dest ...any) error) (*domain.Job, error) {
	var j domain.Job
	var repJSON, artifactURL string
	if err := scan(
		&j.ID, &j.ProjectName, &j.CodeHash, &j.Status, &j.CreatedAt, &j.Error,
		&repJSON, &artifactURL,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	j.ArtifactURL = artifactURL
	if repJSON != "" {
		var rep domain.Report
		if err := json.Unmarshal([]byte(repJSON), &rep); err != nil {
			return nil, fmt.Errorf("decode stored report: %w", err)
		}
		j.Report = &rep
	}
	return &j, nil
}
