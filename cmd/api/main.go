package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bryanwahyu/automaton-audit/internal/application"
	appenrich "github.com/bryanwahyu/automaton-audit/internal/application/enrich"
	appreports "github.com/bryanwahyu/automaton-audit/internal/application/reports"
	"github.com/bryanwahyu/automaton-audit/internal/config"
	domai "github.com/bryanwahyu/automaton-audit/internal/domain/ai"
	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
	"github.com/bryanwahyu/automaton-audit/internal/domain/projects"
	"github.com/bryanwahyu/automaton-audit/internal/infra/ai/gemini"
	"github.com/bryanwahyu/automaton-audit/internal/infra/ai/openai"
	"github.com/bryanwahyu/automaton-audit/internal/infra/db/mysql"
	"github.com/bryanwahyu/automaton-audit/internal/infra/db/postgres"
	"github.com/bryanwahyu/automaton-audit/internal/infra/httpserver"
	"github.com/bryanwahyu/automaton-audit/internal/infra/storage"
	"github.com/bryanwahyu/automaton-audit/internal/middleware"
)

func main() {
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()

	db, projectRepo, findingRepo, err := openDatabase(ctx, cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var archive appreports.ArtifactStore
	if cfg.Storage.Enabled {
		store, err := storage.New(ctx,
			cfg.Storage.Endpoint,
			cfg.Storage.Region,
			cfg.Storage.BucketName,
			cfg.Storage.AccessKey,
			cfg.Storage.SecretKey,
			cfg.Storage.UseSSL,
		)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		archive = store
	}

	var enricher domai.Enricher
	switch cfg.AI.Provider {
	case "openai":
		enricher = openai.New(cfg.AI.Model)
	default:
		enricher = gemini.New(cfg.AI.Model)
	}

	reportsSvc := &appreports.Service{
		Projects: projectRepo,
		Findings: findingRepo,
		Archive:  archive,
		Clock:    application.SystemClock{},
	}
	enrichSvc := appenrich.NewService(findingRepo, enricher)

	api := httpserver.NewRouter(reportsSvc, enrichSvc, enricher, cfg.Server.AllowedOrigins)

	mux := http.NewServeMux()
	mux.Handle("/health", middleware.HealthHandler(map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}))
	mux.HandleFunc("/metrics", middleware.MetricsHandler)
	mux.Handle("/", api)

	var handler http.Handler = mux
	if cfg.Server.AuthToken != "" {
		handler = middleware.TokenAuth(cfg.Server.AuthToken)(handler)
	}
	handler = middleware.RateLimitMiddleware(100, 10)(handler)
	handler = middleware.MetricsMiddleware(handler)
	handler = middleware.LoggingMiddleware(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("listening on %s (db=%s ai=%s)", srv.Addr, cfg.Database.Driver, cfg.AI.Provider)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, projects.Repository, findings.Repository, error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, nil, nil, err
		}
		return db, postgres.NewProjectRepository(db), postgres.NewFindingRepository(db), nil
	case "mysql":
		db, err := mysql.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, nil, err
		}
		if err := mysql.Migrate(ctx, db); err != nil {
			return nil, nil, nil, err
		}
		return db, mysql.NewProjectRepository(db), mysql.NewFindingRepository(db), nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}
