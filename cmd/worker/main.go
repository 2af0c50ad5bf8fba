package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-photobook-orderflow/internal/aws"
	"github.com/imrishuroy/go-photobook-orderflow/internal/config"
	"github.com/imrishuroy/go-photobook-orderflow/internal/logger"
	"github.com/imrishuroy/go-photobook-orderflow/internal/orders"
	"github.com/imrishuroy/go-photobook-orderflow/internal/processor"
)

func newHandler(cfg *config.Config, clients *aws.AWSClients, logg *zap.Logger) *processor.SQSHandler {
	var metrics orders.Metrics
	if cfg.Metrics.Enabled {
		metrics = aws.NewMetrics(clients.CloudWatch, cfg.Metrics.Namespace)
	}

	store := orders.NewStore(clients.DynamoDB, cfg.Tables.Orders)
	proc := processor.New(store, processor.NewStageFulfiller(logg), logg,
		cfg.Orders.ProcessingLease, cfg.Orders.RepositoryTimeout).WithMetrics(metrics)

	return processor.NewSQSHandler(proc, logg)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	clients, err := aws.NewAWSClients(context.Background(), cfg.AWS)
	if err != nil {
		logg.Fatal("failed to init aws clients", zap.Error(err))
	}

	handler := newHandler(cfg, clients, logg)

	// If RUN_LOCAL=true, simulate a single SQS event for local testing.
	if cfg.Server.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = `{"order_id":"local-order-1","correlation_id":"local"}`
		}
		resp, err := handler.Handle(context.Background(), events.SQSEvent{
			Records: []events.SQSMessage{{MessageId: "local-1", Body: body}},
		})
		if err != nil {
			logg.Fatal("local handler error", zap.Error(err))
		}
		logg.Info("local run finished", zap.Int("batchItemFailures", len(resp.BatchItemFailures)))
		return
	}

	lambda.Start(handler.Handle)
}
