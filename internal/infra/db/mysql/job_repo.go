package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/lintora/lintora/internal/domain/audits"
)

// JobRepository persists audit jobs in MySQL. The full report is stored as a
// JSON column next to denormalised summary counts so dashboards can query
// severity totals without unpacking the report.
//
// Expected schema:
//
//	CREATE TABLE audit_jobs (
//	  id            VARCHAR(64) PRIMARY KEY,
//	  project_name  VARCHAR(255) NOT NULL,
//	  code_hash     CHAR(64) NOT NULL,
//	  status        VARCHAR(16) NOT NULL,
//	  created_at    DATETIME(6) NOT NULL,
//	  error         TEXT,
//	  risk_level    VARCHAR(16),
//	  total_findings INT NOT NULL DEFAULT 0,
//	  critical      INT NOT NULL DEFAULT 0,
//	  high          INT NOT NULL DEFAULT 0,
//	  medium        INT NOT NULL DEFAULT 0,
//	  low           INT NOT NULL DEFAULT 0,
//	  info          INT NOT NULL DEFAULT 0,
//	  report        JSON,
//	  html_report   LONGTEXT,
//	  artifact_url  VARCHAR(1024)
//	);
type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create insert job record baru (queued)
func (r *JobRepository) Create(ctx context.Context, j *domain.Job) error {
	const q = `
INSERT INTO audit_jobs (id, project_name, code_hash, status, created_at, error)
VALUES (?,?,?,?,?,?);
`
	created := j.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, q,
		j.ID, stringOrDash(j.ProjectName), j.CodeHash, string(j.Status), created, j.Error,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get by ID
func (r *JobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	const q = `
SELECT id, project_name, code_hash, status, created_at, COALESCE(error,''),
       COALESCE(report,''), COALESCE(artifact_url,'')
FROM audit_jobs WHERE id=? LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, id)
	return scanJob(row.Scan)
}

// UpdateStatus: the orchestrator is the only writer, so a plain UPDATE is a
// safe transition.
func (r *JobRepository) UpdateStatus(ctx context.Context, id domain.JobID, st domain.Status, errMsg string) error {
	const q = `UPDATE audit_jobs SET status=?, error=IF(?='', error, ?) WHERE id=?;`
	res, err := r.db.ExecContext(ctx, q, string(st), errMsg, errMsg, id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		if _, gerr := r.Get(ctx, id); gerr != nil {
			return gerr
		}
	}
	return nil
}

// SaveReport stores the terminal artifact and marks the job completed.
func (r *JobRepository) SaveReport(ctx context.Context, id domain.JobID, rep *domain.Report, html []byte) error {
	repJSON, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	const q = `
UPDATE audit_jobs SET
 status=?, risk_level=?,
 total_findings=?, critical=?, high=?, medium=?, low=?, info=?,
 report=?, html_report=?
WHERE id=?;
`
	res, err := r.db.ExecContext(ctx, q,
		string(domain.StatusCompleted), rep.RiskLevel,
		rep.Summary.TotalFindings, rep.Summary.Critical, rep.Summary.High,
		rep.Summary.Medium, rep.Summary.Low, rep.Summary.Info,
		repJSON, string(html), id,
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

// HTMLReport implements domain.Repository.
func (r *JobRepository) HTMLReport(ctx context.Context, id domain.JobID) ([]byte, error) {
	const q = `SELECT COALESCE(html_report,'') FROM audit_jobs WHERE id=? LIMIT 1;`
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

// Latest jobs, newest first
func (r *JobRepository) Latest(ctx context.Context, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, project_name, code_hash, status, created_at, COALESCE(error,''),
       COALESCE(report,''), COALESCE(artifact_url,'')
FROM audit_jobs ORDER BY created_at DESC, id DESC LIMIT ?;
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
	_, err := r.db.ExecContext(ctx, `UPDATE audit_jobs SET artifact_url=? WHERE id=?;`, url, id)
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

// stringOrDash returns "-" when the input is empty/whitespace
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
