package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/helioworks/support-ai-platform/cmd/mainconfig"
	"github.com/helioworks/support-ai-platform/internal/api/router"
	"github.com/helioworks/support-ai-platform/internal/app/bootstrap"
	"github.com/helioworks/support-ai-platform/internal/billing"
	appconfig "github.com/helioworks/support-ai-platform/internal/config"
	"github.com/helioworks/support-ai-platform/internal/customer"
	"github.com/helioworks/support-ai-platform/internal/events"
	"github.com/helioworks/support-ai-platform/internal/llm"
	"github.com/helioworks/support-ai-platform/internal/notify"
	"github.com/helioworks/support-ai-platform/internal/observability/metrics"
	"github.com/helioworks/support-ai-platform/internal/session"
	"github.com/helioworks/support-ai-platform/internal/tierconf"
	"github.com/helioworks/support-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting support-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// LLM provider
	bedrock := llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg))
	var llmClient llm.Client = bedrock
	if cfg.FallbackModelID != "" {
		llmClient = llm.NewFallbackClient(bedrock, llm.WithModel(bedrock, cfg.FallbackModelID), logger.Logger)
	}
	registry := llm.NewRegistry(pool, redisClient, llm.RegistryDefaults{
		Model:     cfg.BedrockModelID,
		MaxTokens: int32(cfg.MaxTokensCeiling),
	}, logger)

	tiers := tierconf.NewStore(pool, redisClient, logger)
	ledger := billing.NewLedger(pool, billing.Rates{
		InputPerMillion:      cfg.InputTokenRatePerMillion,
		OutputPerMillion:     cfg.OutputTokenRatePerMillion,
		DefaultMarkupPercent: cfg.UsageMarkupDefaultPercent,
	}, logger)
	customers := customer.NewPGReadModel(pool)

	// Session lifecycle events go to the log, and to SQS when a queue is
	// configured.
	sinks := events.MultiSink{events.NewLogSink(logger)}
	if cfg.SessionEventQueueURL != "" {
		sinks = append(sinks, events.NewSQSSink(sqs.NewFromConfig(awsCfg), cfg.SessionEventQueueURL))
	}

	// Staff notifications: SendGrid when an API key is present, SES otherwise.
	var emailSender notify.EmailSender
	if cfg.SendGridAPIKey != "" {
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.NotifyFromEmail,
			FromName:  cfg.NotifyFromName,
		}, logger); s != nil {
			emailSender = s
		}
	} else if cfg.NotifyFromEmail != "" {
		if s := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.NotifyFromEmail,
			FromName:  cfg.NotifyFromName,
		}, logger); s != nil {
			emailSender = s
		}
	}
	notifier := notify.NewService(emailSender, notify.NewPGContactStore(pool), logger)

	sessionMetrics := metrics.NewSessionMetrics(nil)

	store := session.NewPGStore(pool)
	builder := session.NewPromptBuilder(cfg.VIPLifetimeValueThreshold, cfg.HighSentimentThreshold)
	responder := session.NewResponder(llmClient, registry, builder, ledger,
		sessionMetrics, logger, int32(cfg.MaxTokensCeiling), cfg.LLMTimeout)
	svc := session.NewService(session.ServiceConfig{
		Store:     store,
		Analyzer:  session.NewAnalyzer(),
		Evaluator: session.NewEvaluator(cfg.VIPLifetimeValueThreshold),
		Tiers:     tiers,
		Responder: responder,
		Customers: customers,
		Sink:      sinks,
		Notifier:  notifier,
		Metrics:   sessionMetrics,
		Logger:    logger,
	})
	sessionHandler := session.NewHandler(svc, session.NewAnalytics(store), logger)

	// Setup router
	routerCfg := &router.Config{
		Logger:             logger,
		SessionHandler:     sessionHandler,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	}
	r := router.New(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
