package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"

	"github.com/helioworks/support-ai-platform/cmd/mainconfig"
	appconfig "github.com/helioworks/support-ai-platform/internal/config"
	"github.com/helioworks/support-ai-platform/internal/events"
	"github.com/helioworks/support-ai-platform/pkg/logging"
)

// events-worker drains the session event queue and re-emits each event as a
// structured log line. Downstream analytics pipelines tail these lines.
func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel).Component("events-worker")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.SessionEventQueueURL == "" {
		logger.Error("events worker requires SESSION_EVENT_QUEUE_URL")
		os.Exit(1)
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	sink := events.NewLogSink(logger)
	consumer := events.NewConsumer(sqs.NewFromConfig(awsCfg), cfg.SessionEventQueueURL,
		func(ctx context.Context, evt events.Event) error {
			return sink.Emit(ctx, evt)
		}, logger)

	go consumer.Run(ctx)
	logger.Info("events worker started", "queue_url", cfg.SessionEventQueueURL)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("events worker shutting down")
	cancel()
	time.Sleep(2 * time.Second)
}
