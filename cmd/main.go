package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"message-sweeper/handler"
	"message-sweeper/internal/config"
	"message-sweeper/internal/integrations/paramstore"
	"message-sweeper/internal/logging"
	"message-sweeper/internal/repository"
	"message-sweeper/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	if cfg.StoreBackend != config.BackendDynamoDB {
		slog.Error("lambda deployment requires the dynamodb backend", "backend", cfg.StoreBackend)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		logger.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	tableName, err := ssmClient.ResolveTableName(ctx, cfg.MessagesTable, cfg.MessagesTableParam)
	if err != nil {
		logger.Error("failed to resolve messages table", "err", err)
		os.Exit(1)
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), tableName)
	if err != nil {
		logger.Error("failed to create message store", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	sweeper, err := usecase.NewSweepService(store, logger, cfg.SweepMaxBatchSize)
	if err != nil {
		logger.Error("failed to create sweep service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(sweeper, logger)
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	// Concurrency is capped by the function's reserved concurrency.
	logger.Info("sweeper ready",
		"table", tableName,
		"max_batch_size", cfg.SweepMaxBatchSize,
		"max_instances", cfg.SweepMaxInstances,
		"global_max_instances", cfg.GlobalMaxInstances,
	)

	lambda.Start(h.Handle)
}
