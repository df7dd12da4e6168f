package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"listing-composer/internal/config"
	"listing-composer/internal/handler"
	"listing-composer/internal/listingapi"
	"listing-composer/internal/logger"
	"listing-composer/internal/middleware"
	mongoclient "listing-composer/internal/mongo"
	"listing-composer/internal/repository"
	"listing-composer/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	appLogger, closeLogger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer closeLogger()

	if err := run(cfg, appLogger); err != nil {
		appLogger.Error("Application stopped with error", err, nil)
		closeLogger()
		os.Exit(1)
	}
}

func newLogger(cfg *config.AppConfig) (logger.Logger, func(), error) {
	stdout := logger.NewSlogAdapter(logger.SlogConfig{
		Level:    logger.ParseLevel(cfg.StdoutLogger.Level),
		IsJSON:   cfg.StdoutLogger.JSON,
		UseColor: !cfg.StdoutLogger.JSON,
	})
	if !cfg.FluentBit.Enabled {
		return stdout.WithFields(logger.Fields{"service": cfg.AppName}), func() {}, nil
	}

	fluentClient, err := logger.NewFluentClient(logger.FluentConfig{
		Host:      cfg.FluentBit.Host,
		Port:      cfg.FluentBit.Port,
		TagPrefix: cfg.AppName,
	})
	if err != nil {
		return nil, nil, err
	}
	fluentLogger, err := logger.NewFluentAdapter(fluentClient, logger.ParseLevel(cfg.FluentBit.Level))
	if err != nil {
		return nil, nil, err
	}
	multi, err := logger.NewMulti(stdout, fluentLogger)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := fluentClient.Close(); err != nil {
			fmt.Printf("ERROR: Error closing fluent client: %v\n", err)
		}
	}
	return multi.WithFields(logger.Fields{"service": cfg.AppName}), closeFn, nil
}

type closer func(ctx context.Context) error

// newObjectStore builds the configured image store. The returned closer
// releases its client.
func newObjectStore(ctx context.Context, cfg *config.AppConfig, log logger.Logger) (service.ObjectStore, *repository.PhotoRepository, closer, error) {
	policy := repository.NewStoragePolicy(cfg.Storage.MaxImageBytes)
	noop := func(context.Context) error { return nil }

	switch cfg.Storage.Backend {
	case config.StorageFirebase:
		app, err := repository.NewFirebaseApp(ctx, cfg.Storage.Firebase.ProjectID, cfg.Storage.Firebase.Bucket, cfg.Storage.Firebase.CredentialsFile)
		if err != nil {
			return nil, nil, nil, err
		}
		repo, err := repository.NewFirebasePhotoRepository(ctx, app, cfg.Storage.Firebase.Bucket, policy)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info("Using Firebase Storage for images", logger.Fields{"bucket": cfg.Storage.Firebase.Bucket})
		return repo, nil, noop, nil

	case config.StorageS3:
		awsCfg, err := repository.LoadAWSConfig(ctx, cfg.Storage.S3.Region, cfg.Storage.S3.Endpoint)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("aws config: %w", err)
		}
		repo := repository.NewS3PhotoRepository(awsCfg, cfg.Storage.S3.Endpoint != "", cfg.Storage.S3.Bucket,
			cfg.Storage.S3.PublicBaseURL, cfg.Storage.S3.PresignTTL, policy)
		log.Info("Using S3 for images", logger.Fields{"bucket": cfg.Storage.S3.Bucket})
		return repo, nil, noop, nil

	default:
		client, err := mongoclient.NewMongoClient(ctx, cfg.Storage.Mongo.URI, log)
		if err != nil {
			return nil, nil, nil, err
		}
		repo := repository.NewPhotoRepository(client, cfg.Storage.Mongo.Database, cfg.PublicBaseURL, policy)
		log.Info("Using GridFS for images", logger.Fields{"database": cfg.Storage.Mongo.Database})
		return repo, repo, client.Disconnect, nil
	}
}

func newDraftRepository(ctx context.Context, cfg *config.AppConfig, log logger.Logger) (service.DraftRepository, closer, error) {
	if cfg.Drafts.RedisURL == "" {
		log.Warn("REDIS_URL is not set, drafts are kept in memory", nil)
		return repository.NewMemoryDraftRepository(cfg.Drafts.TTL), func(context.Context) error { return nil }, nil
	}
	client, err := repository.NewRedisClient(ctx, cfg.Drafts.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	log.Info("Connected to Redis", nil)
	return repository.NewRedisDraftRepository(client, cfg.Drafts.TTL), func(context.Context) error { return client.Close() }, nil
}

func run(cfg *config.AppConfig, log logger.Logger) error {
	ctx := context.Background()

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	listingRepo := repository.NewListingRepository(db)
	if err := listingRepo.EnsureSchema(ctx); err != nil {
		return err
	}

	store, photos, closeStore, err := newObjectStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(context.Background()); err != nil {
			log.Error("Error closing object store", err, nil)
		}
	}()

	drafts, closeDrafts, err := newDraftRepository(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeDrafts(context.Background()); err != nil {
			log.Error("Error closing draft repository", err, nil)
		}
	}()

	composer := service.NewComposer(drafts, store,
		listingapi.NewClient(cfg.ListingAPI.URL, cfg.ListingAPI.Timeout),
		service.WithOrphanCleanup(cfg.Storage.CleanupOrphans),
	)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	r.MaxMultipartMemory = cfg.Storage.MaxImageBytes + (1 << 20)

	r.GET("/healthz", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	// 1. Открытые роуты (без JWT)
	(&handler.ListingHandler{Repo: listingRepo}).RegisterRoutes(api)
	if photos != nil {
		(&handler.PhotoHandler{Repo: photos}).RegisterRoutes(api)
	}

	// 2. Защищённые роуты (JWT обязательно)
	protected := api.Group("", middleware.JWTAuthMiddleware(cfg.JWTSecret))
	(&handler.ComposerHandler{Composer: composer}).RegisterRoutes(protected)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server...", logger.Fields{"port": cfg.Port})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Warn("Received OS signal, shutting down...", logger.Fields{"signal": sig.String()})
	case err := <-serverErrors:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during HTTP server shutdown", err, nil)
	}
	log.Info("Application shut down gracefully.", nil)
	return nil
}
