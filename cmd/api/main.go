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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/benefis-partners/prospect-pipeline/internal/adapters/approvalqueue"
	"github.com/benefis-partners/prospect-pipeline/internal/adapters/companynamecache"
	"github.com/benefis-partners/prospect-pipeline/internal/adapters/crm"
	"github.com/benefis-partners/prospect-pipeline/internal/adapters/datasetfilter"
	"github.com/benefis-partners/prospect-pipeline/internal/adapters/generative"
	"github.com/benefis-partners/prospect-pipeline/internal/adapters/runarchive"
	"github.com/benefis-partners/prospect-pipeline/internal/adapters/scraper"
	"github.com/benefis-partners/prospect-pipeline/internal/adapters/websearch"
	"github.com/benefis-partners/prospect-pipeline/internal/config"
	httpPlatform "github.com/benefis-partners/prospect-pipeline/internal/platform/http"
	"github.com/benefis-partners/prospect-pipeline/internal/platform/logger"
	"github.com/benefis-partners/prospect-pipeline/internal/platform/metrics"
	"github.com/benefis-partners/prospect-pipeline/internal/platform/notify"
	"github.com/benefis-partners/prospect-pipeline/internal/platform/postgres"
	"github.com/benefis-partners/prospect-pipeline/internal/platform/redis"
	"github.com/benefis-partners/prospect-pipeline/internal/platform/sentryhub"
	"github.com/benefis-partners/prospect-pipeline/internal/platform/storage"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/handler"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/normalizer"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/orchestrator"
	pipelinePorts "github.com/benefis-partners/prospect-pipeline/modules/pipeline/ports"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/repository"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/titles"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting prospect-pipeline API server",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	ctx := context.Background()

	pgClient, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pgClient.Close()
	logger.Info("Connected to PostgreSQL")

	migrationsPath := "./migrations"
	if err := postgres.RunMigrations(ctx, cfg.Database, logger, migrationsPath); err != nil {
		logger.Fatal("Failed to run database migrations",
			zap.Error(err),
			zap.String("migrations_path", migrationsPath),
		)
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	var s3Client *storage.S3Client
	if cfg.Storage.Endpoint != "" && cfg.Storage.Bucket != "" {
		s3Client, err = storage.NewS3Client(cfg.Storage)
		if err != nil {
			logger.Warn("Failed to initialize S3 client, run-artifact archiving will be disabled", zap.Error(err))
		} else {
			logger.Info("S3 client initialized", zap.String("bucket", cfg.Storage.Bucket))
		}
	} else {
		logger.Info("S3 configuration not provided, run-artifact archiving will be disabled")
	}

	sentryHub, err := sentryhub.Init(sentryhub.Config{DSN: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment})
	if err != nil {
		logger.Fatal("Failed to initialize Sentry", zap.Error(err))
	}
	defer sentryHub.Flush(2 * time.Second)

	notifier := notify.New(notify.Config{
		APIKey:          cfg.Notify.ResendAPIKey,
		FromAddress:     cfg.Notify.FromAddress,
		ReviewerAddress: cfg.Notify.ToAddress,
	})

	metricsRegistry := metrics.NewRegistry(prometheus.DefaultRegisterer)

	pipelineDefaults, err := loadPipelineDefaults(cfg.Pipeline.DefaultsPath)
	if err != nil {
		logger.Fatal("Failed to load pipeline defaults", zap.Error(err))
	}
	titleSet := titles.FromDefaults(pipelineDefaults)

	orch, scraperCloser, err := buildOrchestrator(cfg, pgClient, redisClient.Client, s3Client, pipelineDefaults, titleSet, metricsRegistry, sentryHub, notifier)
	if err != nil {
		logger.Fatal("Failed to build pipeline orchestrator", zap.Error(err))
	}
	if scraperCloser != nil {
		defer scraperCloser()
	}

	runStore := repository.NewRunRepository(pgClient.Pool)
	runHandler := handler.NewRunHandler(orch, runStore)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpPlatform.RequestIDMiddleware())
	router.Use(httpPlatform.LoggerMiddleware(logger))
	router.Use(httpPlatform.CORSMiddleware())

	router.GET("/health", healthCheckHandler(ctx, pgClient, redisClient))
	router.GET("/ping", pingHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		runHandler.RegisterRoutes(v1)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func loadPipelineDefaults(overridePath string) (*config.PipelineDefaults, error) {
	if overridePath != "" {
		return config.LoadPipelineDefaultsFile(overridePath)
	}
	return config.LoadPipelineDefaults()
}

// buildOrchestrator wires every adapter behind modules/pipeline/ports into
// one *orchestrator.Orchestrator. It returns a closer for the scraper
// engine when the selected engine holds an OS resource (the headless
// browser process behind RodScraper).
func buildOrchestrator(
	cfg *config.Config,
	pgClient *postgres.Client,
	rdb *goredis.Client,
	s3Client *storage.S3Client,
	pipelineDefaults *config.PipelineDefaults,
	titleSet *titles.Set,
	metricsRegistry *metrics.Registry,
	sentryHub *sentryhub.Hub,
	notifier *notify.Notifier,
) (*orchestrator.Orchestrator, func(), error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	crmClient := crm.New(httpClient, cfg.CRM.BaseURL, cfg.CRM.APIKey)

	datasetClient := datasetfilter.New(httpClient, datasetfilter.Options{
		BaseURL:               cfg.Dataset.BaseURL,
		APIToken:              cfg.Dataset.APIKey,
		MinConnections:        cfg.Pipeline.MinConnections,
		Titles:                titleSet,
		DownloadWarmupRetries: 3,
	})

	searchClient := websearch.New(httpClient, websearch.Options{
		BaseURL:     cfg.Search.BaseURL,
		APIKey:      cfg.Search.APIKey,
		ProfileHost: "www.linkedin.com",
	})

	var profileScraper pipelinePorts.ProfileScraper
	var closer func()
	switch cfg.Scraper.Engine {
	case "rod":
		rodScraper, err := scraper.NewRodScraper(cfg.Scraper.NavigationTimeout, cfg.Scraper.MaxScrapeConcurrency)
		if err != nil {
			return nil, nil, fmt.Errorf("build rod scraper: %w", err)
		}
		profileScraper = rodScraper
		closer = func() { _ = rodScraper.Close() }
	default:
		profileScraper = scraper.NewActorClient(httpClient, cfg.Scraper.ActorBaseURL, cfg.Scraper.APIKey)
	}

	textClient := generative.New(generative.Options{APIKey: cfg.Text.APIKey})

	nameCache := companynamecache.New(rdb)
	deterministicNormalizer := normalizer.NewDeterministic(pipelineDefaults)
	generativeNormalizer := normalizer.NewGenerative(textClient)
	fallbackNormalizer := normalizer.NewWithFallback(generativeNormalizer, deterministicNormalizer, nameCache)

	approvalQueue := approvalqueue.New(rdb)

	runStore := repository.NewRunRepository(pgClient.Pool)

	var archiver pipelinePorts.RunArchiver
	if s3Client != nil {
		archiver = runarchive.New(s3Client)
	}

	orch := &orchestrator.Orchestrator{
		Resolver:      crmClient,
		Normalizer:    fallbackNormalizer,
		DatasetFilter: datasetClient,
		WebSearch:     searchClient,
		BuildQuery:    searchClient.BuildQuery,
		Titles:        titleSet,
		Scraper:       profileScraper,
		Employer:      deterministicNormalizer,
		Text:          textClient,
		Queue:         approvalQueue,
		Store:         runStore,
		Archiver:      archiver,
		Metrics:       metricsRegistry,
		Sentry:        sentryHub,
		Notifier:      notifier,
	}

	return orch, closer, nil
}

func healthCheckHandler(ctx context.Context, pgClient *postgres.Client, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		services := make(map[string]string)

		if err := pgClient.Health(ctx); err != nil {
			services["postgres"] = "down"
		} else {
			services["postgres"] = "up"
		}

		if err := redisClient.Health(ctx); err != nil {
			services["redis"] = "down"
		} else {
			services["redis"] = "up"
		}

		httpPlatform.RespondWithHealth(c, services)
	}
}

func pingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}
