// Package processor runs the fulfillment stage for orders in PROCESSING and
// records the outcome. It is driven by the API and by the SQS worker.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-photobook-orderflow/internal/orders"
)

const (
	MetricOrdersCompleted = "OrdersCompleted"
	MetricOrdersFailed    = "OrdersFailed"
)

// maxErrorMessage matches the errorMessage limit accepted by the API.
const maxErrorMessage = 1000

// ErrInvalidStatus is returned when asked to process an order that was never moved to PROCESSING.
var ErrInvalidStatus = errors.New("processor: order is not in PROCESSING")

// ProcessingError reports a fulfillment failure. The order has already been
// marked FAILED when it is returned.
type ProcessingError struct {
	OrderID string
	Err     error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing order %s: %v", e.OrderID, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

type Result struct {
	OrderID string        `json:"orderId"`
	Status  orders.Status `json:"status"`
	Message string        `json:"message"`
	// AlreadyProcessed is set when the order was terminal before this call.
	AlreadyProcessed bool `json:"-"`
}

type nopMetrics struct{}

func (nopMetrics) Count(context.Context, string, map[string]string) error { return nil }

// Processor performs one fulfillment attempt per call, guarded by a processing lease.
type Processor struct {
	repo      orders.Repository
	fulfiller Fulfiller
	metrics   orders.Metrics
	logger    *zap.Logger
	lease     time.Duration
	timeout   time.Duration
	nowFunc   func() time.Time
	newToken  func() string
}

// New returns a Processor. lease bounds how long a crashed invocation blocks
// others; timeout bounds each repository call.
func New(repo orders.Repository, fulfiller Fulfiller, logger *zap.Logger, lease, timeout time.Duration) *Processor {
	return &Processor{
		repo:      repo,
		fulfiller: fulfiller,
		metrics:   nopMetrics{},
		logger:    logger,
		lease:     lease,
		timeout:   timeout,
		nowFunc:   time.Now,
		newToken:  uuid.NewString,
	}
}

func (p *Processor) WithMetrics(m orders.Metrics) *Processor {
	if m != nil {
		p.metrics = m
	}
	return p
}

// Process drives a PROCESSING order to COMPLETED or FAILED. Terminal orders are
// reported without any write.
func (p *Processor) Process(ctx context.Context, orderID string) (*Result, error) {
	order, err := p.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case orders.StatusCompleted, orders.StatusFailed:
		return settled(order), nil
	case orders.StatusPending:
		return nil, fmt.Errorf("order %s is %s: %w", orderID, order.Status, ErrInvalidStatus)
	}

	token := p.newToken()
	var claimed *orders.Order
	err = p.call(ctx, func(ctx context.Context) error {
		var err error
		claimed, err = p.repo.ClaimProcessing(ctx, orderID, token, p.nowFunc(), p.lease)
		return err
	})
	if errors.Is(err, orders.ErrStatusMismatch) {
		p.logger.Info("order is claimed by another invocation", zap.String("orderId", orderID))
		return p.current(ctx, orderID)
	}
	if err != nil {
		return nil, err
	}

	log := p.logger.With(zap.String("orderId", orderID), zap.Int("attempt", claimed.Attempts))
	log.Info("processing order")

	stageErr := p.fulfill(ctx, *claimed)

	upd := orders.StatusUpdate{
		Status:     orders.StatusCompleted,
		UpdatedAt:  p.nowFunc().UTC(),
		ClaimToken: token,
	}
	if stageErr != nil {
		upd.Status = orders.StatusFailed
		upd.ErrorMessage = truncate(stageErr.Error(), maxErrorMessage)
	}

	var final *orders.Order
	err = p.call(ctx, func(ctx context.Context) error {
		var err error
		final, err = p.repo.UpdateStatus(ctx, orderID, orders.StatusProcessing, upd)
		return err
	})
	if errors.Is(err, orders.ErrStatusMismatch) {
		log.Warn("order changed while processing, keeping the stored outcome")
		return p.current(ctx, orderID)
	}
	if err != nil {
		return nil, err
	}

	if stageErr != nil {
		log.Error("order processing failed", zap.Error(stageErr))
		p.count(ctx, MetricOrdersFailed, final.Type)
		return &Result{
			OrderID: orderID,
			Status:  final.Status,
			Message: "order processing failed: " + final.ErrorMessage,
		}, &ProcessingError{OrderID: orderID, Err: stageErr}
	}

	log.Info("order processed")
	p.count(ctx, MetricOrdersCompleted, final.Type)
	return &Result{
		OrderID: orderID,
		Status:  final.Status,
		Message: "order processed successfully",
	}, nil
}

// fulfill runs the stage once; a panic counts as a failure.
func (p *Processor) fulfill(ctx context.Context, order orders.Order) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fulfillment panicked: %v", r)
		}
	}()
	return p.fulfiller.Fulfill(ctx, order)
}

// current re-reads the order after a lost conditional write and reports it.
func (p *Processor) current(ctx context.Context, orderID string) (*Result, error) {
	order, err := p.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case orders.StatusProcessing:
		return &Result{
			OrderID: orderID,
			Status:  order.Status,
			Message: "order processing already in progress",
		}, nil
	case orders.StatusPending:
		return nil, fmt.Errorf("order %s is %s: %w", orderID, order.Status, ErrInvalidStatus)
	default:
		return settled(order), nil
	}
}

func (p *Processor) get(ctx context.Context, orderID string) (*orders.Order, error) {
	var order *orders.Order
	err := p.call(ctx, func(ctx context.Context) error {
		var err error
		order, err = p.repo.Get(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", orderID, orders.ErrNotFound)
	}
	return order, nil
}

func (p *Processor) call(ctx context.Context, fn func(context.Context) error) error {
	return orders.WithRepositoryTimeout(ctx, p.timeout, fn)
}

func (p *Processor) count(ctx context.Context, name string, typ orders.Type) {
	if err := p.metrics.Count(ctx, name, map[string]string{"Type": string(typ)}); err != nil {
		p.logger.Warn("failed to publish metric", zap.String("metric", name), zap.Error(err))
	}
}

func settled(o *orders.Order) *Result {
	msg := "order already completed"
	if o.Status == orders.StatusFailed {
		msg = "order already failed: " + o.ErrorMessage
	}
	return &Result{OrderID: o.OrderID, Status: o.Status, Message: msg, AlreadyProcessed: true}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
