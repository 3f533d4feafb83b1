package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"

	"alexa-gemini-agent/handler"
	"alexa-gemini-agent/internal/queue"
	"alexa-gemini-agent/internal/repository"
	"alexa-gemini-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	resultsTable := mustEnv("RESULTS_TABLE")
	queueURL := mustEnv("REQUESTS_QUEUE_URL")
	askTimeout := envMillis("ASK_TIMEOUT_MS", 7000)
	recallTimeout := envMillis("RECALL_TIMEOUT_MS", 2500)
	pollInterval := envMillis("POLL_INTERVAL_MS", 500)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	store, err := repository.New(awsdynamodb.NewFromConfig(cfg), resultsTable)
	if err != nil {
		slog.Error("failed to create results store", "err", err)
		os.Exit(1)
	}
	requests, err := queue.New(awssqs.NewFromConfig(cfg), queueURL)
	if err != nil {
		slog.Error("failed to create requests queue client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	turns, err := usecase.NewTurnService(requests, store, askTimeout, recallTimeout, pollInterval)
	if err != nil {
		slog.Error("failed to create turn service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewAlexaHandler(turns, slog.Default())
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envMillis(key string, def int) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(def) * time.Millisecond
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return time.Duration(def) * time.Millisecond
	}
	return time.Duration(n) * time.Millisecond
}
