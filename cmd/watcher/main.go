package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"

	"github.com/parcrypto/starshop/pkg/marketplace"
	"github.com/parcrypto/starshop/pkg/queue"
	dydbstore "github.com/parcrypto/starshop/pkg/storage/dynamodb"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// AWS Session
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	dbClient := dynamodb.NewFromConfig(cfg)
	ordersTable := os.Getenv("DYNAMODB_ORDERS_TABLE_NAME")
	if ordersTable == "" {
		log.Fatal("DYNAMODB_ORDERS_TABLE_NAME environment variable not set")
	}

	sqsClient := sqs.NewFromConfig(cfg)
	sqsQueueURL := os.Getenv("SQS_QUEUE_URL")
	if sqsQueueURL == "" {
		log.Fatal("SQS_QUEUE_URL environment variable not set")
	}

	marketURL := os.Getenv("MARKETPLACE_BASE_URL")
	goldenKey := os.Getenv("MARKETPLACE_GOLDEN_KEY")
	if marketURL == "" || goldenKey == "" {
		log.Fatal("MARKETPLACE_BASE_URL and MARKETPLACE_GOLDEN_KEY environment variables are required")
	}

	market := marketplace.NewHTTPClient(marketURL, goldenKey)
	ledger := dydbstore.New(dbClient, ordersTable)
	jobQueue := queue.NewSQSQueue(sqsClient, sqsQueueURL)

	watcher := marketplace.NewWatcher(market, ledger, jobQueue, logger, marketplace.WatcherConfig{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("Starting marketplace watcher")
	if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("watcher stopped: %v", err)
	}
}
