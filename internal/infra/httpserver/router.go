package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appaudits "github.com/lintora/lintora/internal/application/audits"
	domain "github.com/lintora/lintora/internal/domain/audits"
	"github.com/lintora/lintora/internal/middleware"
)

type Router struct {
	svc     *appaudits.Service
	appName string
	version string
	started time.Time

	maxUploadSize int64
	rateLimit     func(http.Handler) http.Handler
}

type Options struct {
	AppName       string
	Version       string
	MaxUploadSize int64
	RateLimit     func(http.Handler) http.Handler // nil disables limiting
	DBChecker     middleware.HealthChecker        // nil when the file store is used
}

func NewRouter(svc *appaudits.Service, opts Options) http.Handler {
	r := &Router{
		svc:           svc,
		appName:       opts.AppName,
		version:       opts.Version,
		started:       time.Now(),
		maxUploadSize: opts.MaxUploadSize,
	}

	mux := chi.NewRouter()
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	mux.Get("/", r.handleLanding)
	mux.Get("/health", r.wrap(r.handleHealth))
	mux.Get("/health/deep", middleware.DeepHealthHandler(opts.DBChecker))
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Group(func(g chi.Router) {
		if opts.RateLimit != nil {
			g.Use(opts.RateLimit)
		}
		g.Post("/audit", r.wrap(r.handleSubmit))
	})

	mux.Get("/audit/{job_id}", r.wrap(r.handleStatus))
	mux.Get("/audits/latest", r.wrap(r.handleLatest))
	mux.Get("/report/{job_id}", r.wrap(r.handleReport))

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap maps domain errors to HTTP status codes so handlers just return errors.
func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, err)
		case errors.Is(err, domain.ErrPayloadTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err)
		case errors.Is(err, domain.ErrInvalidArchive), errors.Is(err, errBadRequest):
			writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, domain.ErrQueueFull):
			w.Header().Set("Retry-After", "30")
			writeError(w, http.StatusServiceUnavailable, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
	}
}

var errBadRequest = errors.New("bad request")

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

// POST /audit — multipart form: "file" (ZIP), optional "project_name".
// Responds 202 with the queued job id; processing continues in the pool.
func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	if r.maxUploadSize > 0 {
		req.Body = http.MaxBytesReader(w, req.Body, r.maxUploadSize)
	}
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domain.ErrPayloadTooLarge
		}
		return fmt.Errorf("%w: expected multipart form upload", errBadRequest)
	}

	file, header, err := req.FormFile("file")
	if err != nil {
		return fmt.Errorf("%w: missing \"file\" field", errBadRequest)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	projectName := req.FormValue("project_name")
	if projectName == "" {
		projectName = middleware.ProjectNameFromFilename(header.Filename)
	}
	if err := middleware.ValidateProjectName(projectName); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	job, err := r.svc.Submit(req.Context(), appaudits.SubmitCommand{
		ProjectName: projectName,
		Archive:     data,
	})
	if err != nil {
		return err
	}
	middleware.IncrementAudits()

	return writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":  string(job.ID),
		"status":  string(job.Status),
		"message": "audit queued, poll /audit/{job_id} for progress",
	})
}

// statusResponse is the polling contract: report and error are explicit nulls
// until set, and html_report_url points at the rendered page once completed.
// The internal code hash is not part of the public shape.
type statusResponse struct {
	JobID         string         `json:"job_id"`
	ProjectName   string         `json:"project_name"`
	Status        string         `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	Report        *domain.Report `json:"report"`
	Error         *string        `json:"error"`
	HTMLReportURL *string        `json:"html_report_url"`
}

func statusFromJob(j *domain.Job) statusResponse {
	resp := statusResponse{
		JobID:       string(j.ID),
		ProjectName: j.ProjectName,
		Status:      string(j.Status),
		CreatedAt:   j.CreatedAt,
		Report:      j.Report,
	}
	if j.Error != "" {
		errMsg := j.Error
		resp.Error = &errMsg
	}
	if j.Status == domain.StatusCompleted {
		url := "/report/" + string(j.ID)
		resp.HTMLReportURL = &url
	}
	return resp
}

// GET /audit/{job_id}
func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "job_id")
	if err := middleware.ValidateJobID(id); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	job, err := r.svc.Get(req.Context(), domain.JobID(id))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, statusFromJob(job))
}

// GET /audits/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	jobs, err := r.svc.Latest(req.Context(), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	out := make([]statusResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, statusFromJob(j))
	}
	return writeJSON(w, http.StatusOK, out)
}

// GET /report/{job_id} — rendered HTML for a completed job.
func (r *Router) handleReport(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "job_id")
	if err := middleware.ValidateJobID(id); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	job, err := r.svc.Get(req.Context(), domain.JobID(id))
	if err != nil {
		return err
	}
	if job.Status != domain.StatusCompleted {
		return fmt.Errorf("%w: report not available, job is %s", domain.ErrNotFound, job.Status)
	}

	html, err := r.svc.HTMLReport(req.Context(), domain.JobID(id))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = w.Write(html)
	return err
}

// GET /health
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"service":        r.appName,
		"version":        r.version,
		"uptime_seconds": int64(time.Since(r.started).Seconds()),
	})
}

// GET / — minimal landing page with usage instructions.
func (r *Router) handleLanding(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, landingHTML, r.appName, r.appName, r.version)
}

const landingHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>%s</title>
<style>body{font-family:sans-serif;max-width:640px;margin:4rem auto;line-height:1.6;color:#1a1a2e}
code{background:#f3f4f6;padding:0.1rem 0.4rem;border-radius:4px}</style>
</head>
<body>
<h1>%s <small>v%s</small></h1>
<p>Asynchronous smart-contract security audits.</p>
<ol>
<li><code>POST /audit</code> with a multipart <code>file</code> field containing a ZIP of your Solidity project (202 returns a <code>job_id</code>)</li>
<li><code>GET /audit/{job_id}</code> to poll status</li>
<li><code>GET /report/{job_id}</code> for the signed HTML report once completed</li>
</ol>
</body>
</html>
`
