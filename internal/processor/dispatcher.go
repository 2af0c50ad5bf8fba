package processor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/imrishuroy/go-photobook-orderflow/internal/logger"
)

// WorkerMessage is the payload sent from API -> SQS -> Worker.
type WorkerMessage struct {
	OrderID       string `json:"order_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Sender publishes a message body to the orders queue. aws.Publisher implements it.
type Sender interface {
	SendOrderMessage(ctx context.Context, messageBody string, attributes map[string]string) error
}

// QueueDispatcher hands orders that entered PROCESSING to the worker.
type QueueDispatcher struct {
	sender Sender
}

func NewQueueDispatcher(sender Sender) *QueueDispatcher {
	return &QueueDispatcher{sender: sender}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, orderID string) error {
	msg := WorkerMessage{
		OrderID:       orderID,
		CorrelationID: logger.RequestID(ctx),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal worker message: %w", err)
	}
	return d.sender.SendOrderMessage(ctx, string(body), map[string]string{
		"order_id":       msg.OrderID,
		"correlation_id": msg.CorrelationID,
	})
}
