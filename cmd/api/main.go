package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appaudits "github.com/lintora/lintora/internal/application/audits"
	"github.com/lintora/lintora/internal/config"
	"github.com/lintora/lintora/internal/crypto"
	domain "github.com/lintora/lintora/internal/domain/audits"
	"github.com/lintora/lintora/internal/infra/ai/groq"
	"github.com/lintora/lintora/internal/infra/analyzers/mythril"
	"github.com/lintora/lintora/internal/infra/analyzers/patterns"
	"github.com/lintora/lintora/internal/infra/analyzers/slither"
	"github.com/lintora/lintora/internal/infra/archive"
	mysqlp "github.com/lintora/lintora/internal/infra/db/mysql"
	postgresp "github.com/lintora/lintora/internal/infra/db/postgres"
	"github.com/lintora/lintora/internal/infra/httpserver"
	filestore "github.com/lintora/lintora/internal/infra/jobstore/file"
	minioStore "github.com/lintora/lintora/internal/infra/storage"
	"github.com/lintora/lintora/internal/middleware"
	"github.com/lintora/lintora/internal/reporting"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// job store per configured driver
	var (
		repo      domain.Repository
		dbChecker middleware.HealthChecker
	)
	switch cfg.Storage.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		defer db.Close()
		repo = mysqlp.NewJobRepository(db)
		dbChecker = &middleware.DatabaseHealthChecker{DB: db}
	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		defer db.Close()
		repo = postgresp.NewJobRepository(db)
		dbChecker = &middleware.DatabaseHealthChecker{DB: db}
	default:
		store, err := filestore.New(cfg.Storage.JobsDir)
		if err != nil {
			log.Fatalf("job store init error: %v", err)
		}
		repo = store
	}

	// optional report archive bucket
	var artifacts domain.ArtifactStore
	if cfg.Minio.Enabled {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		artifacts = store
	}

	signer, err := crypto.NewSigner()
	if err != nil {
		log.Fatalf("signer init error: %v", err)
	}

	renderer, err := reporting.NewHTMLRenderer(cfg.App.Name)
	if err != nil {
		log.Fatalf("renderer init error: %v", err)
	}

	// producer order fixes merge tie-breaking, keep it stable
	producers := []domain.Producer{
		patterns.NewScanner(),
		mythril.NewAnalyzer(cfg.Mythril.Bin, cfg.Mythril.Enabled, cfg.Mythril.ExecutionTimeout, cfg.Mythril.MaxDepth),
		slither.NewAnalyzer(cfg.Slither.Bin, cfg.Slither.Enabled),
		groq.NewReviewer(cfg.Groq.APIKey, cfg.Groq.BaseURL, cfg.Groq.Model,
			cfg.Groq.MaxTokens, cfg.Groq.TimeoutSeconds, cfg.Groq.MaxRetries),
	}

	svc := appaudits.NewService(cfg.Analysis.QueueSize)
	svc.Repo = repo
	svc.Extractor = archive.NewExtractor(cfg.Upload.MaxFilesInArchive, cfg.Upload.MaxExtractedSizeBytes)
	svc.Producers = producers
	svc.Signer = signer
	svc.Renderer = renderer
	svc.Artifacts = artifacts
	svc.MaxUploadSize = cfg.Upload.MaxUploadSizeBytes
	svc.ProducerTimeout = time.Duration(cfg.Analysis.ProducerTimeoutSeconds) * time.Second
	svc.Risk = cfg.Analysis.Risk
	svc.OnCompleted = middleware.IncrementAuditsCompleted
	svc.OnFailed = middleware.IncrementAuditsFailed

	svc.Start(ctx, cfg.Analysis.Workers)

	opts := httpserver.Options{
		AppName:       cfg.App.Name,
		Version:       cfg.App.Version,
		MaxUploadSize: cfg.Upload.MaxUploadSizeBytes,
		DBChecker:     dbChecker,
	}
	if cfg.RateLimit.Enabled {
		opts.RateLimit = middleware.RateLimitMiddleware(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpserver.NewRouter(svc, opts),
		ReadTimeout:  60 * time.Second, // uploads can be slow
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("%s v%s listening on %s", cfg.App.Name, cfg.App.Version, addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	// stop the worker pool; in-flight jobs are recovered as failed on restart
	cancel()
	svc.Wait()
}
