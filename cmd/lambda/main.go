package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"review-agent/handler"
	"review-agent/internal/integrations/openai"
	"review-agent/internal/integrations/paramstore"
	"review-agent/internal/repository"
	"review-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	stateTable := mustEnv("STATE_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	assistantID := mustEnv("ASSISTANT_ID")
	maxQuestionLen := envInt("MAX_QUESTION_LENGTH", 4000)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	dynamoClient := awsdynamodb.NewFromConfig(cfg)
	stateClient, err := repository.New(dynamoClient, stateTable)
	if err != nil {
		slog.Error("failed to create state client", "err", err)
		os.Exit(1)
	}

	apiClient, err := openai.NewClient(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create assistants client", "err", err)
		os.Exit(1)
	}

	// ---- Orchestration ----
	ingestor, err := usecase.NewIngestor(apiClient)
	if err != nil {
		slog.Error("failed to create ingestor", "err", err)
		os.Exit(1)
	}
	sessions, err := usecase.NewSessionService(apiClient)
	if err != nil {
		slog.Error("failed to create session service", "err", err)
		os.Exit(1)
	}
	runs, err := usecase.NewRunController(apiClient, sessions)
	if err != nil {
		slog.Error("failed to create run controller", "err", err)
		os.Exit(1)
	}
	reviewService, err := usecase.NewReviewService(ssmClient, apiClient, ingestor, sessions, runs, stateClient, paramPrefix, assistantID, maxQuestionLen)
	if err != nil {
		slog.Error("failed to create review service", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(reviewService)
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

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
