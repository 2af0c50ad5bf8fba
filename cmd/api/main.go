package main

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-photobook-orderflow/internal/aws"
	"github.com/imrishuroy/go-photobook-orderflow/internal/config"
	"github.com/imrishuroy/go-photobook-orderflow/internal/handlers"
	"github.com/imrishuroy/go-photobook-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-photobook-orderflow/internal/logger"
	"github.com/imrishuroy/go-photobook-orderflow/internal/orders"
	"github.com/imrishuroy/go-photobook-orderflow/internal/pricing"
	"github.com/imrishuroy/go-photobook-orderflow/internal/processor"
	"github.com/imrishuroy/go-photobook-orderflow/internal/uploads"
	"github.com/imrishuroy/go-photobook-orderflow/internal/validation"
)

func setupRouter(cfg *config.Config, clients *aws.AWSClients, logg *zap.Logger) (*gin.Engine, error) {
	engine, err := pricing.NewEngine(pricing.Mode(cfg.Orders.PricingMode), map[string]decimal.Decimal{
		string(orders.TypeAlbum):   cfg.Orders.AlbumPrice,
		string(orders.TypeCollage): cfg.Orders.CollagePrice,
	})
	if err != nil {
		return nil, err
	}

	var opts []validation.Option
	if engine.Mode() == pricing.ModeItemized {
		opts = append(opts, validation.RequireItems())
	}
	v := validation.New(opts...)

	var metrics orders.Metrics
	if cfg.Metrics.Enabled {
		metrics = aws.NewMetrics(clients.CloudWatch, cfg.Metrics.Namespace)
	}

	idem := idempotency.NewStore(clients.DynamoDB, cfg.Tables.Idempotency, cfg.Orders.IdempotencyTTL)
	store := orders.NewStore(clients.DynamoDB, cfg.Tables.Orders).
		WithProjections(cfg.Tables.Projections).
		WithIdempotency(idem)

	svc := orders.NewService(store, idem, v, engine, logg, orders.Options{
		Currency:              cfg.Orders.Currency,
		Retention:             cfg.Orders.Retention,
		DefaultPageSize:       cfg.Orders.DefaultPageSize,
		MaxPageSize:           cfg.Orders.MaxPageSize,
		MaxTransitionAttempts: cfg.Orders.MaxTransitionAttempts,
		RepositoryTimeout:     cfg.Orders.RepositoryTimeout,
		RetryBackoff:          orders.DefaultOptions().RetryBackoff,
	}).WithMetrics(metrics)
	if cfg.Queue.URL != "" {
		svc.WithDispatcher(processor.NewQueueDispatcher(aws.NewPublisher(clients.SQS, cfg.Queue.URL)))
	}

	proc := processor.New(store, processor.NewStageFulfiller(logg), logg,
		cfg.Orders.ProcessingLease, cfg.Orders.RepositoryTimeout).WithMetrics(metrics)

	up := uploads.NewService(aws.NewS3Presigner(clients.S3Presign, cfg.Storage.Bucket), v, logg, uploads.Options{
		TTL:         cfg.Storage.PresignTTL,
		MaxFileSize: cfg.Storage.MaxUploadBytes,
	})

	return handlers.NewRouter(handlers.HandlerConfig{
		Orders:    svc,
		Processor: proc,
		Uploads:   up,
		Logger:    logg,
	}), nil
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

	r, err := setupRouter(cfg, clients, logg)
	if err != nil {
		logg.Fatal("failed to build router", zap.Error(err))
	}

	if cfg.Server.RunLocal {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logg.Info("running local server", zap.String("addr", addr))
		if err := r.Run(addr); err != nil {
			logg.Fatal("failed to run local server", zap.Error(err))
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
