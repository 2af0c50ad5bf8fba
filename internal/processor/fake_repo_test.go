package processor

import (
	"context"
	"sync"
	"time"

	"github.com/imrishuroy/go-photobook-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-photobook-orderflow/internal/orders"
)

// memRepo is an in-memory orders.Repository with the same conditional semantics as orders.Store.
type memRepo struct {
	mu     sync.Mutex
	orders map[string]orders.Order
	err    error // returned by every call when set

	// beforeUpdate runs ahead of the next UpdateStatus, outside the lock.
	beforeUpdate func()
}

func newMemRepo(seed ...orders.Order) *memRepo {
	r := &memRepo{orders: map[string]orders.Order{}}
	for _, o := range seed {
		r.orders[o.OrderID] = o
	}
	return r
}

func (r *memRepo) Get(_ context.Context, id string) (*orders.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (r *memRepo) Create(_ context.Context, o orders.Order, _ *idempotency.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.OrderID] = o
	return nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id string, expected orders.Status, upd orders.StatusUpdate) (*orders.Order, error) {
	if hook := r.beforeUpdate; hook != nil {
		r.beforeUpdate = nil
		hook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	o, ok := r.orders[id]
	if !ok || o.Status != expected || (upd.ClaimToken != "" && o.ProcessingToken != upd.ClaimToken) {
		return nil, orders.ErrStatusMismatch
	}
	o.Status = upd.Status
	o.UpdatedAt = upd.UpdatedAt
	o.ErrorMessage = upd.ErrorMessage
	o.ProcessingToken = ""
	o.ProcessingLeaseUntil = 0
	r.orders[id] = o
	return &o, nil
}

func (r *memRepo) ClaimProcessing(_ context.Context, id, token string, now time.Time, lease time.Duration) (*orders.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	o, ok := r.orders[id]
	if !ok || o.Status != orders.StatusProcessing {
		return nil, orders.ErrStatusMismatch
	}
	if o.ProcessingToken != "" && o.ProcessingLeaseUntil >= now.UnixMilli() {
		return nil, orders.ErrStatusMismatch
	}
	o.ProcessingToken = token
	o.ProcessingLeaseUntil = now.Add(lease).UnixMilli()
	o.Attempts++
	r.orders[id] = o
	return &o, nil
}

func (r *memRepo) Query(context.Context, orders.Query) (*orders.Page, error) {
	return &orders.Page{Orders: []orders.Order{}}, nil
}

func (r *memRepo) order(id string) orders.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id]
}
