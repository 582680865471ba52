package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/lintora/lintora/internal/domain/audits"
)

func newJob(id string) *domain.Job {
	return &domain.Job{
		ID:          domain.JobID(id),
		ProjectName: "proj",
		CodeHash:    "abc123",
		Status:      domain.StatusQueued,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestCreateAndGet(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newJob("job1")))

	got, err := s.Get(ctx, "job1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, got.Status)
	assert.Equal(t, "proj", got.ProjectName)
}

func TestGetUnknownIsNotFound(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateStatus(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newJob("job1")))

	require.NoError(t, s.UpdateStatus(ctx, "job1", domain.StatusFailed, "all analyzers failed"))

	got, err := s.Get(ctx, "job1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "all analyzers failed", got.Error)

	assert.ErrorIs(t, s.UpdateStatus(ctx, "ghost", domain.StatusFailed, "x"), domain.ErrNotFound)
}

func TestSaveReportPersistsFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newJob("job1")))

	rep := &domain.Report{
		ProjectName: "proj",
		RiskLevel:   "HIGH",
		Summary:     domain.Summary{TotalFindings: 1, High: 1, AnalyzersUsed: []string{"heuristic"}},
		Findings:    []domain.Finding{{ID: "f1", Severity: domain.SeverityHigh, Source: domain.SourceHeuristic}},
	}
	require.NoError(t, s.SaveReport(ctx, "job1", rep, []byte("<html>report</html>")))

	got, err := s.Get(ctx, "job1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	require.NotNil(t, got.Report)
	assert.Equal(t, "HIGH", got.Report.RiskLevel)

	// files on disk, no leftover temp files
	assert.FileExists(t, filepath.Join(dir, "job1", "report.json"))
	assert.FileExists(t, filepath.Join(dir, "job1", "report.html"))
	assert.FileExists(t, filepath.Join(dir, "job1", "job.json"))
	assert.NoFileExists(t, filepath.Join(dir, "job1", "report.json.tmp"))

	html, err := s.HTMLReport(ctx, "job1")
	require.NoError(t, err)
	assert.Equal(t, "<html>report</html>", string(html))
}

func TestSetArtifactURL(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newJob("job1")))

	require.NoError(t, s.SetArtifactURL(ctx, "job1", "https://minio.local/audits/job1/report.json"))

	got, err := s.Get(ctx, "job1")
	require.NoError(t, err)
	assert.Equal(t, "https://minio.local/audits/job1/report.json", got.ArtifactURL)

	// survives a restart
	s2, err := New(dir)
	require.NoError(t, err)
	got, err = s2.Get(ctx, "job1")
	require.NoError(t, err)
	assert.Equal(t, "https://minio.local/audits/job1/report.json", got.ArtifactURL)

	assert.ErrorIs(t, s.SetArtifactURL(ctx, "ghost", "x"), domain.ErrNotFound)
}

func TestHTMLReportMissing(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newJob("job1")))

	_, err = s.HTMLReport(ctx, "job1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.HTMLReport(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReloadAfterRestart(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	completed := newJob("done")
	require.NoError(t, s.Create(ctx, completed))
	require.NoError(t, s.SaveReport(ctx, "done", &domain.Report{RiskLevel: "LOW"}, nil))

	inflight := newJob("stuck")
	require.NoError(t, s.Create(ctx, inflight))
	require.NoError(t, s.UpdateStatus(ctx, "stuck", domain.StatusProcessing, ""))

	// simulate restart
	s2, err := New(dir)
	require.NoError(t, err)

	got, err := s2.Get(ctx, "done")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)

	// a job that was mid-flight must come back failed, not stuck processing
	got, err = s2.Get(ctx, "stuck")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.NotEmpty(t, got.Error)
}

func TestLatestOrdersNewestFirst(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		j := newJob(id)
		j.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Create(ctx, j))
	}

	got, err := s.Latest(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.JobID("c"), got[0].ID)
	assert.Equal(t, domain.JobID("b"), got[1].ID)
}

func TestConcurrentReadsDuringWrites(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newJob("job1")))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				j, err := s.Get(ctx, "job1")
				assert.NoError(t, err)
				assert.NotEmpty(t, j.ID)
			}
		}()
	}
	for n := 0; n < 50; n++ {
		require.NoError(t, s.UpdateStatus(ctx, "job1", domain.StatusProcessing, ""))
	}
	wg.Wait()
}

func TestReloadSkipsCorruptRecord(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bad"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad", "job.json"), []byte("{not json"), 0o644))

	s, err := New(dir)
	require.NoError(t, err)
	_, err = s.Get(context.Background(), "bad")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
