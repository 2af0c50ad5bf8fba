package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-photobook-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-photobook-orderflow/internal/pricing"
	"github.com/imrishuroy/go-photobook-orderflow/internal/validation"
)

// Metric names published by the service and the processor.
const (
	MetricOrdersCreated       = "OrdersCreated"
	MetricStatusChanged       = "OrderStatusChanged"
	MetricTransitionConflicts = "OrderTransitionConflicts"
)

// Metrics counts lifecycle events. aws.Metrics implements it.
type Metrics interface {
	Count(ctx context.Context, name string, dims map[string]string) error
}

// Dispatcher hands an order that entered PROCESSING to the async processor.
type Dispatcher interface {
	Dispatch(ctx context.Context, orderID string) error
}

// IdempotencyStore creates and reads idempotency records.
type IdempotencyStore interface {
	NewRecord(key, orderID, fingerprint string) idempotency.Record
	Get(ctx context.Context, key string) (*idempotency.Record, error)
}

type nopMetrics struct{}

func (nopMetrics) Count(context.Context, string, map[string]string) error { return nil }

type Options struct {
	Currency              string
	Retention             time.Duration
	DefaultPageSize       int
	MaxPageSize           int
	MaxTransitionAttempts int
	RepositoryTimeout     time.Duration
	RetryBackoff          time.Duration
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Currency:              "USD",
		Retention:             180 * 24 * time.Hour,
		DefaultPageSize:       20,
		MaxPageSize:           100,
		MaxTransitionAttempts: 3,
		RepositoryTimeout:     5 * time.Second,
		RetryBackoff:          50 * time.Millisecond,
	}
}

type CreateResult struct {
	Order Order
	// Replayed is true when the idempotency key matched an earlier request.
	Replayed bool
}

type ListResult struct {
	Orders     []Order
	NextCursor string
}

// Service orchestrates validation, pricing, the state machine and the repository.
type Service struct {
	repo       Repository
	idem       IdempotencyStore
	validator  *validation.Validator
	pricer     *pricing.Engine
	metrics    Metrics
	dispatcher Dispatcher
	logger     *zap.Logger
	opts       Options
	nowFunc    func() time.Time
	newID      func() string
}

func NewService(repo Repository, idem IdempotencyStore, v *validation.Validator, pricer *pricing.Engine, logger *zap.Logger, opts Options) *Service {
	defaults := DefaultOptions()
	if opts.Currency == "" {
		opts.Currency = defaults.Currency
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = defaults.DefaultPageSize
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = defaults.MaxPageSize
	}
	if opts.MaxTransitionAttempts <= 0 {
		opts.MaxTransitionAttempts = defaults.MaxTransitionAttempts
	}
	return &Service{
		repo:      repo,
		idem:      idem,
		validator: v,
		pricer:    pricer,
		metrics:   nopMetrics{},
		logger:    logger,
		opts:      opts,
		nowFunc:   time.Now,
		newID:     uuid.NewString,
	}
}

func (s *Service) WithMetrics(m Metrics) *Service {
	if m != nil {
		s.metrics = m
	}
	return s
}

func (s *Service) WithDispatcher(d Dispatcher) *Service {
	s.dispatcher = d
	return s
}

// Create validates and prices req, then persists a PENDING order. With a
// non-empty idempotencyKey a repeated request returns the original order.
func (s *Service) Create(ctx context.Context, req validation.CreateOrderRequest, idempotencyKey string) (*CreateResult, error) {
	if len(idempotencyKey) > idempotency.MaxKeyLength {
		return nil, validation.Errors{{
			Field:   "Idempotency-Key",
			Message: fmt.Sprintf("Idempotency-Key must be at most %d characters", idempotency.MaxKeyLength),
			Rule:    "max",
		}}
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	useKey := idempotencyKey != "" && s.idem != nil
	var fingerprint string
	if useKey {
		fp, err := idempotency.Fingerprint(req)
		if err != nil {
			return nil, err
		}
		fingerprint = fp
		if res, err := s.replay(ctx, idempotencyKey, fingerprint); res != nil || err != nil {
			return res, err
		}
	}

	order, err := s.buildOrder(req)
	if err != nil {
		return nil, err
	}

	var rec *idempotency.Record
	if useKey {
		r := s.idem.NewRecord(idempotencyKey, order.OrderID, fingerprint)
		rec = &r
	}

	err = s.call(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, order, rec)
	})
	if errors.Is(err, ErrDuplicateIdempotencyKey) {
		// lost a race with a concurrent request using the same key
		res, rerr := s.replay(ctx, idempotencyKey, fingerprint)
		if rerr != nil {
			return nil, rerr
		}
		if res == nil {
			return nil, fmt.Errorf("create order: %w", ErrConflict)
		}
		return res, nil
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.String("orderId", order.OrderID),
		zap.String("type", string(order.Type)),
		zap.String("totalPrice", order.TotalPrice.StringFixed(2)),
	)
	s.count(ctx, MetricOrdersCreated, map[string]string{"Type": string(order.Type)})

	return &CreateResult{Order: order}, nil
}

// Get returns the order or ErrNotFound.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, validation.Errors{{Field: "orderId", Message: "orderId is required", Rule: "required"}}
	}

	var order *Order
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.Get(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return order, nil
}

// UpdateStatus applies a transition with a conditional write on the status that
// was read. Lost races are retried with a fresh read up to MaxTransitionAttempts.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, req validation.UpdateStatusRequest) (*Order, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	maxAttempts := s.opts.MaxTransitionAttempts
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		current, err := s.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}

		next, err := Transition(*current, TransitionRequest{
			Status:       Status(req.Status),
			ErrorMessage: req.ErrorMessage,
		}, s.nowFunc())
		if err != nil {
			return nil, err
		}

		var updated *Order
		err = s.call(ctx, func(ctx context.Context) error {
			var err error
			updated, err = s.repo.UpdateStatus(ctx, orderID, current.Status, StatusUpdate{
				Status:       next.Status,
				ErrorMessage: next.ErrorMessage,
				UpdatedAt:    next.UpdatedAt,
			})
			return err
		})
		if errors.Is(err, ErrStatusMismatch) {
			s.logger.Warn("status changed concurrently, retrying",
				zap.String("orderId", orderID),
				zap.Int("attempt", attempt),
				zap.Int("maxAttempts", maxAttempts),
			)
			s.count(ctx, MetricTransitionConflicts, nil)
			if attempt < maxAttempts {
				if err := s.backoff(ctx, attempt); err != nil {
					return nil, err
				}
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		s.logger.Info("order status updated",
			zap.String("orderId", orderID),
			zap.String("from", string(current.Status)),
			zap.String("to", string(updated.Status)),
		)
		s.count(ctx, MetricStatusChanged, map[string]string{"Status": string(updated.Status)})

		if updated.Status == StatusProcessing && s.dispatcher != nil {
			if err := s.dispatcher.Dispatch(ctx, orderID); err != nil {
				s.logger.Error("failed to dispatch order for processing",
					zap.String("orderId", orderID),
					zap.Error(err),
				)
			}
		}
		return updated, nil
	}

	return nil, fmt.Errorf("update order %s after %d attempts: %w", orderID, maxAttempts, ErrConflict)
}

// List returns one page of orders, newest first. Only the highest precedence
// filter is applied: customerEmail, then status, then type.
func (s *Service) List(ctx context.Context, req validation.ListOrdersRequest) (*ListResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	limit := s.opts.DefaultPageSize
	if req.Limit != nil {
		limit = *req.Limit
	}
	if limit > s.opts.MaxPageSize {
		limit = s.opts.MaxPageSize
	}

	q := Query{
		Filter: Filter{
			CustomerEmail: normalizeEmail(req.CustomerEmail),
			Status:        Status(req.Status),
			Type:          Type(req.Type),
		},
		Limit:  limit,
		Cursor: req.Cursor,
	}

	var page *Page
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		page, err = s.repo.Query(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &ListResult{Orders: page.Orders, NextCursor: page.NextCursor}, nil
}

func (s *Service) replay(ctx context.Context, key, fingerprint string) (*CreateResult, error) {
	var rec *idempotency.Record
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		rec, err = s.idem.Get(ctx, key)
		return err
	})
	if err != nil || rec == nil {
		return nil, err
	}
	if rec.Fingerprint != fingerprint {
		return nil, ErrIdempotencyKeyReused
	}

	order, err := s.Get(ctx, rec.OrderID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("idempotent create replayed",
		zap.String("orderId", order.OrderID),
		zap.String("idempotencyKey", key),
	)
	return &CreateResult{Order: *order, Replayed: true}, nil
}

func (s *Service) buildOrder(req validation.CreateOrderRequest) (Order, error) {
	items := make([]LineItem, 0, len(req.Items))
	priced := make([]pricing.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, LineItem{
			ID:       strings.TrimSpace(it.ID),
			Name:     strings.TrimSpace(it.Name),
			Quantity: it.Quantity,
			Price:    NewMoney(*it.Price),
		})
		priced = append(priced, pricing.LineItem{Price: *it.Price, Quantity: int64(it.Quantity)})
	}

	total, err := s.pricer.Price(req.Type, priced)
	if err != nil {
		return Order{}, fmt.Errorf("price order: %w", err)
	}
	// client totals are only a consistency check, never the source of truth
	if req.TotalPrice != nil && s.pricer.Mode() == pricing.ModeItemized && !req.TotalPrice.Round(2).Equal(total) {
		return Order{}, validation.Errors{{
			Field:   "totalPrice",
			Message: fmt.Sprintf("totalPrice does not match the sum of item prices (%s)", total.StringFixed(2)),
			Rule:    "total_matches_items",
		}}
	}

	images := make([]string, 0, len(req.Images))
	for _, img := range req.Images {
		images = append(images, strings.TrimSpace(img))
	}
	imageCount := req.ImageCount
	if imageCount == 0 {
		imageCount = len(images)
	}
	currency := req.Currency
	if currency == "" {
		currency = s.opts.Currency
	}

	now := s.nowFunc().UTC()
	id := s.newID()
	order := Order{
		OrderID:       id,
		EntityType:    entityOrder,
		CustomerEmail: normalizeEmail(req.CustomerEmail),
		CustomerID:    strings.TrimSpace(req.CustomerID),
		Type:          Type(req.Type),
		Status:        StatusPending,
		TotalPrice:    NewMoney(total),
		Currency:      currency,
		PaymentMethod: req.PaymentMethod,
		ImageCount:    imageCount,
		Images:        images,
		Items:         items,
		UserDetails:   userDetailsFrom(req.UserDetails),
		SpecialNote:   strings.TrimSpace(req.SpecialNote),
		Metadata:      metadataFrom(req.Metadata),
		CreatedAt:     now,
		UpdatedAt:     now,
		CreatedSK:     SortKey(now, id),
	}
	if s.opts.Retention > 0 {
		order.ExpiresAt = now.Add(s.opts.Retention).Unix()
	}
	return order, nil
}

// call bounds fn by the repository timeout and classifies its failure.
func (s *Service) call(ctx context.Context, fn func(context.Context) error) error {
	return WithRepositoryTimeout(ctx, s.opts.RepositoryTimeout, fn)
}

func (s *Service) backoff(ctx context.Context, attempt int) error {
	if s.opts.RetryBackoff <= 0 {
		return nil
	}
	timer := time.NewTimer(s.opts.RetryBackoff * time.Duration(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (s *Service) count(ctx context.Context, name string, dims map[string]string) {
	if err := s.metrics.Count(ctx, name, dims); err != nil {
		s.logger.Warn("failed to publish metric", zap.String("metric", name), zap.Error(err))
	}
}

// WithRepositoryTimeout runs fn under timeout (when positive). A deadline maps to
// ErrUnavailable; other failures, except the sentinels callers branch on, are
// wrapped with ErrRepository.
func WithRepositoryTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := fn(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	case errors.Is(err, ErrStatusMismatch),
		errors.Is(err, ErrDuplicateIdempotencyKey),
		errors.Is(err, ErrInvalidCursor),
		errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func userDetailsFrom(in *validation.UserDetails) UserDetails {
	if in == nil {
		return UserDetails{}
	}
	return UserDetails{
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.TrimSpace(in.Email),
		Phone:        strings.TrimSpace(in.Phone),
		Address:      strings.TrimSpace(in.Address),
		City:         strings.TrimSpace(in.City),
		PostalCode:   strings.TrimSpace(in.PostalCode),
		Instructions: strings.TrimSpace(in.Instructions),
	}
}

func metadataFrom(in *validation.Metadata) *Metadata {
	if in == nil || (in.Album == nil && in.Collage == nil) {
		return nil
	}
	out := &Metadata{}
	if a := in.Album; a != nil {
		out.Album = &AlbumMetadata{Orientation: a.Orientation, PageCount: a.PageCount, Dimensions: a.Dimensions}
	}
	if c := in.Collage; c != nil {
		out.Collage = &CollageMetadata{Orientation: c.Orientation, Layout: c.Layout, Dimensions: c.Dimensions}
	}
	return out
}
