package audits

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/lintora/lintora/internal/domain/audits"
)

// Service implements use-cases untuk audit jobs.
// Submit is safe for concurrent callers; processing happens on the worker pool.
type Service struct {
	Repo      domain.Repository
	Extractor domain.Extractor
	Producers []domain.Producer
	Signer    domain.Signer
	Renderer  domain.Renderer
	Artifacts domain.ArtifactStore // optional, nil when archiving is disabled
	Clock     Clock

	MaxUploadSize   int64
	ProducerTimeout time.Duration
	Risk            domain.RiskThresholds
	WorkDir         string // base dir for per-job workspaces

	// optional observers, invoked when a job reaches a terminal status
	OnCompleted func()
	OnFailed    func()

	queue chan queued
	wg    sync.WaitGroup
}

// Clock abstraction supaya gampang ditest
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

type queued struct {
	job     *domain.Job
	archive []byte
}

// NewService wires the orchestrator. queueSize bounds how many accepted jobs
// can wait for a worker before Submit starts returning ErrQueueFull.
func NewService(queueSize int) *Service {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Service{
		Clock:           SystemClock{},
		ProducerTimeout: 360 * time.Second,
		Risk:            domain.DefaultRiskThresholds(),
		WorkDir:         filepath.Join(os.TempDir(), "lintora"),
		queue:           make(chan queued, queueSize),
	}
}

//
// ==== USE CASES ====
//

type SubmitCommand struct {
	ProjectName string
	Archive     []byte
}

// Submit validates the upload, persists a queued job and hands it to the
// worker pool. Returns the job so the handler can answer 202 immediately.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (*domain.Job, error) {
	if s.MaxUploadSize > 0 && int64(len(cmd.Archive)) > s.MaxUploadSize {
		return nil, domain.ErrPayloadTooLarge
	}
	if len(cmd.Archive) < 4 || cmd.Archive[0] != 'P' || cmd.Archive[1] != 'K' {
		return nil, domain.ErrInvalidArchive
	}

	sum := sha256.Sum256(cmd.Archive)
	job := &domain.Job{
		ID:          domain.JobID(strings.ReplaceAll(uuid.New().String(), "-", "")),
		ProjectName: cmd.ProjectName,
		CodeHash:    hex.EncodeToString(sum[:]),
		Status:      domain.StatusQueued,
		CreatedAt:   s.Clock.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, job); err != nil {
		return nil, err
	}

	select {
	case s.queue <- queued{job: job, archive: cmd.Archive}:
		return job, nil
	default:
		// pool saturated: never leave the job stuck in "queued" forever
		_ = s.Repo.UpdateStatus(ctx, job.ID, domain.StatusFailed, domain.ErrQueueFull.Error())
		return nil, domain.ErrQueueFull
	}
}

// Get ambil 1 job by id
func (s *Service) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	return s.Repo.Get(ctx, id)
}

// HTMLReport ambil rendered report untuk completed job
func (s *Service) HTMLReport(ctx context.Context, id domain.JobID) ([]byte, error) {
	return s.Repo.HTMLReport(ctx, id)
}

// Latest ambil N job terakhir
func (s *Service) Latest(ctx context.Context, limit int) ([]*domain.Job, error) {
	return s.Repo.Latest(ctx, limit)
}

//
// ==== WORKER POOL ====
//

// Start launches n workers draining the queue until ctx is cancelled.
func (s *Service) Start(ctx context.Context, n int) {
	if n <= 0 {
		n = 2
	}
	for i := 0; i < n; i++ {
		s.wg.Add(1)
		go func(worker int) {
			defer s.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case item := <-s.queue:
					s.process(ctx, item)
				}
			}
		}(i)
	}
	log.Printf("audit worker pool started with %d workers", n)
}

// Wait blocks until every worker has exited. Call after cancelling Start's ctx.
func (s *Service) Wait() { s.wg.Wait() }

func (s *Service) process(ctx context.Context, item queued) {
	job := item.job
	if err := s.Repo.UpdateStatus(ctx, job.ID, domain.StatusProcessing, ""); err != nil {
		log.Printf("job %s: mark processing: %v", job.ID, err)
		return
	}

	dest := filepath.Join(s.WorkDir, string(job.ID))
	defer os.RemoveAll(dest)

	ws, err := s.Extractor.Extract(ctx, item.archive, dest)
	if err != nil {
		s.fail(job.ID, fmt.Errorf("extract archive: %w", err))
		return
	}

	perProducer, analyzersUsed, failures := s.runProducers(ctx, ws)
	if len(analyzersUsed) == 0 {
		s.fail(job.ID, fmt.Errorf("%w: %s", domain.ErrAllProducersFailed, strings.Join(failures, "; ")))
		return
	}
	for _, f := range failures {
		log.Printf("job %s: analyzer degraded: %s", job.ID, f)
	}

	merged := domain.MergeFindings(perProducer...)
	summary := domain.BuildSummary(merged, ws.TotalFiles, len(ws.Files), analyzersUsed)

	rep := &domain.Report{
		ProjectName: job.ProjectName,
		Timestamp:   s.Clock.Now().UTC(),
		CodeHash:    job.CodeHash,
		RiskLevel:   domain.CalculateRiskLevel(summary, s.Risk),
		Summary:     summary,
		Findings:    merged,
	}

	if s.Signer != nil {
		sig, pub, err := s.Signer.SignReport(rep)
		if err != nil {
			// an unsigned report is still a valid report
			log.Printf("job %s: sign report: %v", job.ID, err)
		} else {
			rep.Signature = sig
			rep.PublicKey = pub
		}
	}

	var html []byte
	if s.Renderer != nil {
		if html, err = s.Renderer.Render(rep); err != nil {
			s.fail(job.ID, fmt.Errorf("render report: %w", err))
			return
		}
	}

	if err := s.Repo.SaveReport(ctx, job.ID, rep, html); err != nil {
		s.fail(job.ID, fmt.Errorf("persist report: %w", err))
		return
	}
	log.Printf("job %s: completed, risk=%s findings=%d analyzers=%v",
		job.ID, rep.RiskLevel, summary.TotalFindings, analyzersUsed)
	if s.OnCompleted != nil {
		s.OnCompleted()
	}

	s.archive(ctx, job.ID, rep, html)
}

// runProducers fans every available producer out on its own goroutine with a
// per-producer timeout. Returns per-producer findings in fixed producer order
// (failed producers contribute a nil slice), the names that succeeded, and the
// failure messages.
func (s *Service) runProducers(ctx context.Context, ws *domain.Workspace) ([][]domain.Finding, []string, []string) {
	active := make([]domain.Producer, 0, len(s.Producers))
	for _, p := range s.Producers {
		if p.Available() {
			active = append(active, p)
		} else {
			log.Printf("analyzer %s unavailable, skipping", p.Name())
		}
	}

	perProducer := make([][]domain.Finding, len(active))
	errs := make([]error, len(active))

	var wg sync.WaitGroup
	for i, p := range active {
		wg.Add(1)
		go func(i int, p domain.Producer) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, s.ProducerTimeout)
			defer cancel()

			started := time.Now()
			findings, err := p.Analyze(pctx, ws)
			if err != nil {
				errs[i] = err
				return
			}
			perProducer[i] = findings
			log.Printf("analyzer %s: %d findings in %s", p.Name(), len(findings), time.Since(started).Round(time.Millisecond))
		}(i, p)
	}
	wg.Wait()

	var used, failures []string
	for i, p := range active {
		if errs[i] != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", p.Name(), errs[i]))
			continue
		}
		used = append(used, p.Name())
	}
	return perProducer, used, failures
}

func (s *Service) fail(id domain.JobID, err error) {
	log.Printf("job %s: failed: %v", id, err)
	// background ctx: the failure must be recorded even if the request ctx died
	if uerr := s.Repo.UpdateStatus(context.Background(), id, domain.StatusFailed, err.Error()); uerr != nil {
		log.Printf("job %s: record failure: %v", id, uerr)
	}
	if s.OnFailed != nil {
		s.OnFailed()
	}
}

// archive pushes the report bundle to object storage when configured.
func (s *Service) archive(ctx context.Context, id domain.JobID, rep *domain.Report, html []byte) {
	if s.Artifacts == nil {
		return
	}
	repJSON, err := json.Marshal(rep)
	if err != nil {
		log.Printf("job %s: encode report for archive: %v", id, err)
		return
	}
	url, err := s.Artifacts.UploadBytes(ctx, repJSON, fmt.Sprintf("%s/report.json", id), "application/json")
	if err != nil {
		log.Printf("job %s: archive report json: %v", id, err)
		return
	}
	if len(html) > 0 {
		if _, err := s.Artifacts.UploadBytes(ctx, html, fmt.Sprintf("%s/report.html", id), "text/html"); err != nil {
			log.Printf("job %s: archive report html: %v", id, err)
		}
	}

	type artifactRecorder interface {
		SetArtifactURL(ctx context.Context, id domain.JobID, url string) error
	}
	if rec, ok := s.Repo.(artifactRecorder); ok {
		if err := rec.SetArtifactURL(ctx, id, url); err != nil && !errors.Is(err, domain.ErrNotFound) {
			log.Printf("job %s: record artifact url: %v", id, err)
		}
	}
}
