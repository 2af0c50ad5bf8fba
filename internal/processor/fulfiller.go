package processor

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-photobook-orderflow/internal/orders"
)

// Fulfiller performs the business work for an order. Any error marks the order FAILED.
type Fulfiller interface {
	Fulfill(ctx context.Context, order orders.Order) error
}

// Step is one named unit of fulfillment work.
type Step struct {
	Name string
	Run  func(ctx context.Context, order orders.Order) error
}

// StageFulfiller runs its steps in order and stops at the first failure.
type StageFulfiller struct {
	logger *zap.Logger
	steps  []Step
}

// NewStageFulfiller returns the default payment then production pipeline.
// Extra steps are appended after them.
func NewStageFulfiller(logger *zap.Logger, extra ...Step) *StageFulfiller {
	steps := []Step{
		{Name: "payment", Run: capturePayment},
		{Name: "production", Run: scheduleProduction},
	}
	return &StageFulfiller{logger: logger, steps: append(steps, extra...)}
}

func (f *StageFulfiller) Fulfill(ctx context.Context, order orders.Order) error {
	for _, step := range f.steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		f.logger.Info("running fulfillment step",
			zap.String("orderId", order.OrderID),
			zap.String("step", step.Name),
		)
		if err := step.Run(ctx, order); err != nil {
			return fmt.Errorf("%s: %w", step.Name, err)
		}
	}
	return nil
}

// capturePayment is a placeholder until a payment provider is wired in.
func capturePayment(_ context.Context, order orders.Order) error {
	if order.TotalPrice.IsNegative() {
		return fmt.Errorf("invalid amount %s", order.TotalPrice.StringFixed(2))
	}
	return nil
}

func scheduleProduction(_ context.Context, order orders.Order) error {
	if len(order.Images) == 0 {
		return errors.New("no images to print")
	}
	return nil
}
