package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/protocol-evidence-server/internal/api"
	"github.com/protocol-evidence-server/internal/config"
	"github.com/protocol-evidence-server/internal/database"
	"github.com/protocol-evidence-server/internal/domain"
	"github.com/protocol-evidence-server/internal/repository"
	"github.com/protocol-evidence-server/internal/review"
	"github.com/protocol-evidence-server/internal/service"
	"github.com/protocol-evidence-server/pkg/search"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	dataCfg := config.LoadDataConfig()
	if cfg.Search.PubMed.APIKey == "" {
		cfg.Search.PubMed.APIKey = dataCfg.PubMedAPIKey
	}

	logger := setupLogger(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting protocol evidence server")

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database pool and schema
	db, err := database.NewConnection(ctx, database.FromDomainConfig(&cfg.Database), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := runMigrations(ctx, configManager, logger); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	synthesisRepo := repository.NewSynthesisRepository(db.Pool, logger)
	assessmentRepo := repository.NewAssessmentRepository(db.Pool, logger)

	reviews, err := newReviewStore(configManager, cfg, dataCfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open review store")
	}
	defer reviews.Close()

	// Search stack: Redis cache is optional, the search port degrades to
	// the in-process cache when Redis is unreachable.
	var cacheClient *search.CacheClient
	if cfg.Cache.Enabled {
		cacheClient, err = search.NewCacheClient(cfg.Cache)
		if err != nil {
			logger.WithError(err).Warn("Redis cache unavailable, continuing without it")
			cacheClient = nil
		} else {
			defer cacheClient.Close()
		}
	}
	searchClient := search.NewResilientSearchClient(&cfg.Search, &cfg.Cache, cacheClient, logger)

	// Engine
	synthesizer := service.NewProtocolSynthesizer(logger, searchClient)
	riskScorer := service.NewRiskScorer(logger)

	server := api.NewServer(configManager, logger, api.Dependencies{
		Synthesizer: synthesizer,
		RiskScorer:  riskScorer,
		Syntheses:   synthesisRepo,
		Assessments: assessmentRepo,
		Reviews:     reviews,
		Database:    db,
		Search:      searchClient,
	})

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Start server
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	writeReviewSnapshot(reviews, dataCfg, logger)
	logger.Info("Server stopped")
}

// writeReviewSnapshot dumps the clinician reviews to the export directory on
// shutdown so grade-calibration data survives a lost database file.
func writeReviewSnapshot(reviews review.Store, dataCfg *config.DataConfig, logger *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	path, err := review.WriteSnapshot(ctx, reviews, dataCfg.ExportDir())
	if err != nil {
		logger.WithError(err).Warn("Failed to write review snapshot")
		return
	}
	if path != "" {
		logger.WithField("path", path).Info("Review snapshot written")
	}
}

// setupLogger builds the application logger from configuration.
func setupLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(os.Stdout)
	}

	return logger
}

// runMigrations applies all pending schema migrations on startup.
func runMigrations(ctx context.Context, configManager domain.ConfigManager, logger *logrus.Logger) error {
	dbCfg := configManager.GetDatabaseConfig()

	runner, err := database.NewMigrationRunner(configManager.GetDatabaseConnectionString(), dbCfg.MigrationsPath, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := runner.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close migration runner")
		}
	}()

	return runner.Up(ctx)
}

// newReviewStore opens the configured clinician review backend. The SQLite
// database falls back to the per-user data directory when no explicit path
// is configured.
func newReviewStore(configManager domain.ConfigManager, cfg *domain.Config, dataCfg *config.DataConfig) (review.Store, error) {
	switch cfg.Review.Backend {
	case "postgres":
		return review.NewPostgresStoreFromURL(configManager.GetDatabaseConnectionString())
	case "sqlite", "":
		path, err := dataCfg.ReviewStorePath(cfg.Review.SQLitePath)
		if err != nil {
			return nil, err
		}
		return review.NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown review backend %q", cfg.Review.Backend)
	}
}
