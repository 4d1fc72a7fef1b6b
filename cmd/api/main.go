package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/quizforge/quizforge-api/internal/cache"
	"github.com/quizforge/quizforge-api/internal/config"
	"github.com/quizforge/quizforge-api/internal/database"
	"github.com/quizforge/quizforge-api/internal/grading"
	"github.com/quizforge/quizforge-api/internal/handler"
	"github.com/quizforge/quizforge-api/internal/middleware"
	"github.com/quizforge/quizforge-api/internal/models"
	"github.com/quizforge/quizforge-api/internal/ratelimit"
	"github.com/quizforge/quizforge-api/internal/repository"
	"github.com/quizforge/quizforge-api/internal/router"
	"github.com/quizforge/quizforge-api/internal/service"
	"github.com/quizforge/quizforge-api/internal/worker"
	"github.com/quizforge/quizforge-api/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Question{}, &models.Submission{}, &models.SubmissionItem{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, completion events limited to redis")
		} else {
			defer natsConn.Close()
		}
	}

	generator, err := buildGenerator(cfg, logger)
	if err != nil {
		log.Fatalf("failed to create feedback generator: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	questionRepo := repository.NewQuestionRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	engine := grading.NewEngine(grading.Config{PartialOverlapThreshold: cfg.PartialThreshold})
	store := cache.NewRedisStore(redisClient)
	limiter := ratelimit.NewRedisLimiter(redisClient, "feedback", cfg.FeedbackRateMax, cfg.FeedbackRateWindow)

	orchestrator := service.NewFeedbackOrchestrator(store, limiter, generator, service.FeedbackOrchestratorConfig{
		CacheTTL:          cfg.FeedbackCacheTTL,
		MinFeedbackLength: cfg.MinFeedbackLength,
		Retry: service.RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			Timeout:     cfg.ProviderTimeout,
		},
	}, logger)

	publisher := service.NewEventPublisher(redisClient, natsConn, cfg.EventChannelBase, logger)

	var submissionService service.SubmissionService
	pool := worker.NewPool(cfg.WorkerCount, cfg.QueueSize, worker.HandlerFunc(func(ctx context.Context, task worker.Task) {
		submissionService.HandleEnrichment(ctx, task)
	}), logger)

	submissionService = service.NewSubmissionService(
		submissionRepo,
		questionRepo,
		engine,
		orchestrator,
		pool,
		publisher,
		validate,
		service.SubmissionServiceConfig{EnrichmentThreshold: cfg.EnrichmentThreshold},
		logger,
	)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	pool.Start(workerCtx)

	if err := submissionService.Resume(workerCtx); err != nil {
		logger.Error().Err(err).Msg("failed to resume interrupted submissions")
	}

	submissionHandler := handler.NewSubmissionHandler(submissionService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler: submissionHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		RateLimit:         middleware.RateLimit("submissions", 30, time.Minute),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, pool, stopWorkers)
}

func buildGenerator(cfg config.Config, logger zerolog.Logger) (ai.Generator, error) {
	switch cfg.AIProvider {
	case "anthropic":
		return ai.NewAnthropicGenerator(ai.AnthropicConfig{APIKey: cfg.AnthropicAPIKey, Model: cfg.AIModel})
	default:
		return ai.NewOpenAIGenerator(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.AIModel,
			Logger: logger,
		})
	}
}

func waitForShutdown(app *fiber.App, pool *worker.Pool, stopWorkers context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	// Let queued enrichment tasks drain before cutting the workers loose.
	pool.Stop()
	stopWorkers()

	log.Println("server stopped")
}
