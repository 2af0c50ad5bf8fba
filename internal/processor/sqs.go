package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-photobook-orderflow/internal/logger"
	"github.com/imrishuroy/go-photobook-orderflow/internal/orders"
)

// errLeaseHeld asks SQS to redeliver: if the holder crashed, its lease
// expires and the next delivery takes over.
var errLeaseHeld = errors.New("processor: order is being processed elsewhere")

// SQSHandler processes worker messages and reports partial batch failures.
type SQSHandler struct {
	processor *Processor
	logger    *zap.Logger
}

func NewSQSHandler(p *Processor, logger *zap.Logger) *SQSHandler {
	return &SQSHandler{processor: p, logger: logger}
}

// Handle processes every record. Only transient failures are returned to SQS
// for redelivery; permanent outcomes are acknowledged.
func (h *SQSHandler) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	h.logger.Info("received SQS messages", zap.Int("count", len(ev.Records)))

	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := h.handleRecord(ctx, rec); err != nil {
			h.logger.Error("message will be retried",
				zap.String("messageId", rec.MessageId),
				zap.Error(err),
			)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: rec.MessageId,
			})
		}
	}
	return resp, nil
}

func (h *SQSHandler) handleRecord(ctx context.Context, rec events.SQSMessage) error {
	var msg WorkerMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil || msg.OrderID == "" {
		h.logger.Error("dropping malformed message",
			zap.String("messageId", rec.MessageId),
			zap.String("body", rec.Body),
			zap.Error(err),
		)
		return nil
	}
	if msg.CorrelationID != "" {
		ctx = logger.WithRequestID(ctx, msg.CorrelationID)
	}

	log := h.logger.With(
		zap.String("orderId", msg.OrderID),
		zap.String("correlationId", msg.CorrelationID),
	)

	res, err := h.processor.Process(ctx, msg.OrderID)
	var perr *ProcessingError
	switch {
	case errors.As(err, &perr):
		log.Warn("order failed during processing", zap.Error(err))
		return nil
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, ErrInvalidStatus):
		log.Warn("skipping message", zap.Error(err))
		return nil
	case err != nil:
		return err
	}

	if res.Status == orders.StatusProcessing {
		return fmt.Errorf("order %s: %w", msg.OrderID, errLeaseHeld)
	}
	log.Info("message processed",
		zap.String("status", string(res.Status)),
		zap.Bool("alreadyProcessed", res.AlreadyProcessed),
	)
	return nil
}
