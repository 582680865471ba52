package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	domain "github.com/lintora/lintora/internal/domain/audits"
)

// Store adalah file-per-job Repository: data/jobs/<id>/job.json plus
// report.json and report.html once completed. Reads are served from an
// in-memory index so pollers never hit the disk; the single writer (the
// orchestrator) persists every transition with write-temp-then-rename so a
// concurrent GET can never observe a half-written file.
type Store struct {
	base string

	mu   sync.RWMutex
	jobs map[domain.JobID]*domain.Job
}

func New(base string) (*Store, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create jobs dir: %w", err)
	}
	s := &Store{base: base, jobs: make(map[domain.JobID]*domain.Job)}
	if err := s.reload(); err != nil {
		return nil, err
	}
	log.Printf("job store initialised at %s (%d jobs)", base, len(s.jobs))
	return s, nil
}

// reload restores the index from disk after a restart.
func (s *Store) reload() error {
	entries, err := os.ReadDir(s.base)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.base, e.Name(), "job.json"))
		if err != nil {
			continue
		}
		var j domain.Job
		if err := json.Unmarshal(data, &j); err != nil {
			log.Printf("job store: skipping corrupt record %s: %v", e.Name(), err)
			continue
		}
		// a job caught mid-flight by a restart can never finish
		if !j.Status.Terminal() {
			j.Status = domain.StatusFailed
			j.Error = "service restarted while the job was in flight"
		}
		s.jobs[j.ID] = &j
	}
	return nil
}

func (s *Store) jobDir(id domain.JobID) string {
	return filepath.Join(s.base, string(id))
}

// persist writes job.json atomically.
func (s *Store) persist(j *domain.Job) error {
	dir := s.jobDir(j.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(filepath.Join(dir, "job.json"), data)
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Create implements domain.Repository.
func (s *Store) Create(ctx context.Context, j *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *j
	s.jobs[j.ID] = &cp
	return s.persist(&cp)
}

// Get returns a copy so pollers cannot race with the writer.
func (s *Store) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

// UpdateStatus implements domain.Repository.
func (s *Store) UpdateStatus(ctx context.Context, id domain.JobID, st domain.Status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Status = st
	if errMsg != "" {
		j.Error = errMsg
	}
	return s.persist(j)
}

// SaveReport stores the terminal artifact and flips the job to completed.
func (s *Store) SaveReport(ctx context.Context, id domain.JobID, rep *domain.Report, html []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}

	dir := s.jobDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}

	repData, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	if err := atomicWrite(filepath.Join(dir, "report.json"), repData); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if len(html) > 0 {
		if err := atomicWrite(filepath.Join(dir, "report.html"), html); err != nil {
			return fmt.Errorf("write html report: %w", err)
		}
	}

	j.Report = rep
	j.Status = domain.StatusCompleted
	return s.persist(j)
}

// SetArtifactURL records where the report bundle was archived.
func (s *Store) SetArtifactURL(ctx context.Context, id domain.JobID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.ArtifactURL = url
	return s.persist(j)
}

// HTMLReport implements domain.Repository.
func (s *Store) HTMLReport(ctx context.Context, id domain.JobID) ([]byte, error) {
	s.mu.RLock()
	_, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}

	data, err := os.ReadFile(filepath.Join(s.jobDir(id), "report.html"))
	if os.IsNotExist(err) {
		return nil, domain.ErrNotFound
	}
	return data, err
}

// Latest returns the most recent jobs, newest first.
func (s *Store) Latest(ctx context.Context, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
