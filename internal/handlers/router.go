package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-photobook-orderflow/internal/logger"
	"github.com/imrishuroy/go-photobook-orderflow/internal/orders"
	"github.com/imrishuroy/go-photobook-orderflow/internal/processor"
	"github.com/imrishuroy/go-photobook-orderflow/internal/uploads"
	"github.com/imrishuroy/go-photobook-orderflow/internal/validation"
)

const requestIDHeader = "X-Request-Id"

type OrderService interface {
	Create(ctx context.Context, req validation.CreateOrderRequest, idempotencyKey string) (*orders.CreateResult, error)
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	UpdateStatus(ctx context.Context, orderID string, req validation.UpdateStatusRequest) (*orders.Order, error)
	List(ctx context.Context, req validation.ListOrdersRequest) (*orders.ListResult, error)
}

type OrderProcessor interface {
	Process(ctx context.Context, orderID string) (*processor.Result, error)
}

type UploadPresigner interface {
	Presign(ctx context.Context, req uploads.PresignRequest) (*uploads.PresignResult, error)
}

// HandlerConfig groups dependencies for the HTTP handlers.
type HandlerConfig struct {
	Orders    OrderService
	Processor OrderProcessor
	Uploads   UploadPresigner
	Logger    *zap.Logger
}

// NewRouter builds the gin engine with request logging, panic recovery and all routes.
func NewRouter(cfg HandlerConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(RequestLogger(cfg.Logger))
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		cfg.Logger.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("requestId", logger.RequestID(c.Request.Context())),
		)
		writeError(c, APIError{Code: CodeInternal, Message: "internal server error", Status: http.StatusInternalServerError})
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	RegisterOrdersRoutes(r, cfg)
	RegisterUploadRoutes(r, cfg)

	return r
}

// RequestLogger tags each request with an id (taken from X-Request-Id when
// present) and logs it once the handler returns.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))

		c.Next()

		log.Info("request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("requestId", id),
		)
	}
}
