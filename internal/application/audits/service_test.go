package audits

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/lintora/lintora/internal/domain/audits"
)

//
// ==== fakes ====
//

type memRepo struct {
	mu   sync.Mutex
	jobs map[domain.JobID]*domain.Job
	html map[domain.JobID][]byte
}

func newMemRepo() *memRepo {
	return &memRepo{jobs: map[domain.JobID]*domain.Job{}, html: map[domain.JobID][]byte{}}
}

func (r *memRepo) Create(_ context.Context, j *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *j
	r.jobs[j.ID] = &cp
	return nil
}

func (r *memRepo) Get(_ context.Context, id domain.JobID) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id domain.JobID, st domain.Status, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Status = st
	if errMsg != "" {
		j.Error = errMsg
	}
	return nil
}

func (r *memRepo) SaveReport(_ context.Context, id domain.JobID, rep *domain.Report, html []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Status = domain.StatusCompleted
	j.Report = rep
	r.html[id] = html
	return nil
}

func (r *memRepo) HTMLReport(_ context.Context, id domain.JobID) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.html[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return h, nil
}

func (r *memRepo) Latest(_ context.Context, limit int) ([]*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Job
	for _, j := range r.jobs {
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

type fakeProducer struct {
	name      string
	available bool
	findings  []domain.Finding
	err       error
	delay     time.Duration
}

func (p *fakeProducer) Name() string    { return p.name }
func (p *fakeProducer) Available() bool { return p.available }

func (p *fakeProducer) Analyze(ctx context.Context, _ *domain.Workspace) ([]domain.Finding, error) {
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.delay):
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.findings, nil
}

type fakeExtractor struct{ ws *domain.Workspace }

func (e *fakeExtractor) Extract(_ context.Context, _ []byte, dest string) (*domain.Workspace, error) {
	if e.ws == nil {
		return nil, domain.ErrNoSolidityFiles
	}
	ws := *e.ws
	ws.Root = dest
	return &ws, nil
}

type fakeSigner struct{}

func (fakeSigner) SignReport(*domain.Report) (string, string, error) { return "sig", "pub", nil }

type fakeRenderer struct{}

func (fakeRenderer) Render(*domain.Report) ([]byte, error) { return []byte("<html>"), nil }

//
// ==== helpers ====
//

func zipArchive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("contracts/Vault.sol")
	require.NoError(t, err)
	_, err = f.Write([]byte("pragma solidity ^0.8.0;\ncontract Vault {}\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func testService(t *testing.T, repo *memRepo, producers ...domain.Producer) *Service {
	t.Helper()
	s := NewService(4)
	s.Repo = repo
	s.Extractor = &fakeExtractor{ws: &domain.Workspace{
		Files:      []domain.SourceFile{{Rel: "contracts/Vault.sol", Content: "contract Vault {}"}},
		TotalFiles: 3,
	}}
	s.Producers = producers
	s.Signer = fakeSigner{}
	s.Renderer = fakeRenderer{}
	s.ProducerTimeout = 2 * time.Second
	s.WorkDir = t.TempDir()
	return s
}

func waitTerminal(t *testing.T, repo *memRepo, id domain.JobID) *domain.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		j, err := repo.Get(context.Background(), id)
		require.NoError(t, err)
		if j.Status.Terminal() {
			return j
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal status")
	return nil
}

//
// ==== tests ====
//

func TestSubmitRejectsNonZip(t *testing.T) {
	s := testService(t, newMemRepo())
	_, err := s.Submit(context.Background(), SubmitCommand{ProjectName: "x", Archive: []byte("not a zip")})
	assert.ErrorIs(t, err, domain.ErrInvalidArchive)
}

func TestSubmitRejectsOversizedUpload(t *testing.T) {
	s := testService(t, newMemRepo())
	s.MaxUploadSize = 10
	_, err := s.Submit(context.Background(), SubmitCommand{ProjectName: "x", Archive: zipArchive(t)})
	assert.ErrorIs(t, err, domain.ErrPayloadTooLarge)
}

func TestSubmitQueuesJob(t *testing.T) {
	repo := newMemRepo()
	s := testService(t, repo)

	job, err := s.Submit(context.Background(), SubmitCommand{ProjectName: "vault", Archive: zipArchive(t)})
	require.NoError(t, err)
	assert.Len(t, string(job.ID), 32)
	assert.Equal(t, domain.StatusQueued, job.Status)
	assert.Len(t, job.CodeHash, 64)

	stored, err := repo.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, stored.Status)
}

func TestSubmitQueueFull(t *testing.T) {
	repo := newMemRepo()
	s := testService(t, repo)
	s.queue = make(chan queued, 1) // no workers running, second submit must bounce

	_, err := s.Submit(context.Background(), SubmitCommand{ProjectName: "a", Archive: zipArchive(t)})
	require.NoError(t, err)

	job2, err := s.Submit(context.Background(), SubmitCommand{ProjectName: "b", Archive: zipArchive(t)})
	assert.ErrorIs(t, err, domain.ErrQueueFull)
	assert.Nil(t, job2)
}

func TestProcessCompletesWithAllProducers(t *testing.T) {
	repo := newMemRepo()
	s := testService(t, repo,
		&fakeProducer{name: "heuristic", available: true, findings: []domain.Finding{
			{ID: "h1", Severity: domain.SeverityHigh, Category: domain.CategoryReentrancy, FilePath: "a.sol", LineNumber: 10, Source: domain.SourceHeuristic},
		}},
		&fakeProducer{name: "groq_ai", available: true, findings: []domain.Finding{
			{ID: "a1", Severity: domain.SeverityMedium, Category: domain.CategoryLogicError, FilePath: "a.sol", LineNumber: 40, Source: domain.SourceAI},
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx, 1)

	job, err := s.Submit(ctx, SubmitCommand{ProjectName: "vault", Archive: zipArchive(t)})
	require.NoError(t, err)

	done := waitTerminal(t, repo, job.ID)
	require.Equal(t, domain.StatusCompleted, done.Status)
	require.NotNil(t, done.Report)
	assert.Equal(t, []string{"heuristic", "groq_ai"}, done.Report.Summary.AnalyzersUsed)
	assert.Equal(t, 2, done.Report.Summary.TotalFindings)
	assert.Equal(t, "sig", done.Report.Signature)
	assert.Equal(t, job.CodeHash, done.Report.CodeHash)

	html, err := repo.HTMLReport(ctx, job.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, html)
}

func TestProcessExcludesFailedProducer(t *testing.T) {
	repo := newMemRepo()
	s := testService(t, repo,
		&fakeProducer{name: "heuristic", available: true, findings: []domain.Finding{
			{ID: "h1", Severity: domain.SeverityLow, Category: domain.CategoryOther, FilePath: "a.sol", Source: domain.SourceHeuristic},
		}},
		&fakeProducer{name: "groq_ai", available: true, err: errors.New("upstream 500")},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx, 1)

	job, err := s.Submit(ctx, SubmitCommand{ProjectName: "vault", Archive: zipArchive(t)})
	require.NoError(t, err)

	done := waitTerminal(t, repo, job.ID)
	require.Equal(t, domain.StatusCompleted, done.Status)
	// a failed producer never appears as "ran and found nothing"
	assert.Equal(t, []string{"heuristic"}, done.Report.Summary.AnalyzersUsed)
	assert.Equal(t, 1, done.Report.Summary.TotalFindings)
}

func TestProcessFailsWhenAllProducersFail(t *testing.T) {
	repo := newMemRepo()
	s := testService(t, repo,
		&fakeProducer{name: "heuristic", available: true, err: errors.New("boom")},
		&fakeProducer{name: "groq_ai", available: false},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx, 1)

	job, err := s.Submit(ctx, SubmitCommand{ProjectName: "vault", Archive: zipArchive(t)})
	require.NoError(t, err)

	done := waitTerminal(t, repo, job.ID)
	assert.Equal(t, domain.StatusFailed, done.Status)
	assert.Contains(t, done.Error, "all analyzers failed")
	assert.Nil(t, done.Report)
}

func TestProcessHonoursProducerTimeout(t *testing.T) {
	repo := newMemRepo()
	s := testService(t, repo,
		&fakeProducer{name: "fast", available: true, findings: []domain.Finding{
			{ID: "f1", Severity: domain.SeverityInfo, Category: domain.CategoryOther, Source: domain.SourceHeuristic},
		}},
		&fakeProducer{name: "slow", available: true, delay: time.Minute},
	)
	s.ProducerTimeout = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx, 1)

	job, err := s.Submit(ctx, SubmitCommand{ProjectName: "vault", Archive: zipArchive(t)})
	require.NoError(t, err)

	done := waitTerminal(t, repo, job.ID)
	require.Equal(t, domain.StatusCompleted, done.Status)
	assert.Equal(t, []string{"fast"}, done.Report.Summary.AnalyzersUsed)
}

func TestProcessFailsOnExtractError(t *testing.T) {
	repo := newMemRepo()
	s := testService(t, repo, &fakeProducer{name: "heuristic", available: true})
	s.Extractor = &fakeExtractor{} // no workspace: extraction error

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx, 1)

	job, err := s.Submit(ctx, SubmitCommand{ProjectName: "vault", Archive: zipArchive(t)})
	require.NoError(t, err)

	done := waitTerminal(t, repo, job.ID)
	assert.Equal(t, domain.StatusFailed, done.Status)
	assert.Contains(t, done.Error, "no Solidity")
}
