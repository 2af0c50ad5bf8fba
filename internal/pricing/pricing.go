// Package pricing computes order totals with exact decimal arithmetic.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Mode string

const (
	// ModeFlat charges a fixed fee per order type.
	ModeFlat Mode = "flat"
	// ModeItemized charges the sum of price x quantity over the line items.
	ModeItemized Mode = "itemized"
)

// minorUnits is the precision of the currency minor unit (cents).
const minorUnits = 2

var (
	ErrUnknownType = errors.New("pricing: unknown order type")
	ErrNoItems     = errors.New("pricing: itemized pricing requires at least one item")
	ErrInvalidItem = errors.New("pricing: invalid line item")
)

type LineItem struct {
	Price    decimal.Decimal
	Quantity int64
}

// DefaultFlatRates returns the standard album and collage fees.
func DefaultFlatRates() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"album":   decimal.RequireFromString("5.00"),
		"collage": decimal.RequireFromString("3.00"),
	}
}

type Engine struct {
	mode  Mode
	rates map[string]decimal.Decimal
}

// NewEngine returns an engine for mode. rates lists the known order types and,
// in flat mode, their fee.
func NewEngine(mode Mode, rates map[string]decimal.Decimal) (*Engine, error) {
	if mode != ModeFlat && mode != ModeItemized {
		return nil, fmt.Errorf("pricing: unsupported mode %q", mode)
	}
	if len(rates) == 0 {
		rates = DefaultFlatRates()
	}

	copied := make(map[string]decimal.Decimal, len(rates))
	for k, v := range rates {
		if v.IsNegative() {
			return nil, fmt.Errorf("pricing: negative rate for %q", k)
		}
		copied[k] = v
	}
	return &Engine{mode: mode, rates: copied}, nil
}

func (e *Engine) Mode() Mode { return e.mode }

// Price returns the order total rounded to the currency minor unit.
// Flat mode ignores items.
func (e *Engine) Price(orderType string, items []LineItem) (decimal.Decimal, error) {
	rate, ok := e.rates[orderType]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownType, orderType)
	}

	if e.mode == ModeFlat {
		return rate.Round(minorUnits), nil
	}

	if len(items) == 0 {
		return decimal.Zero, ErrNoItems
	}

	total := decimal.Zero
	for i, it := range items {
		if it.Quantity <= 0 || it.Price.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: item %d", ErrInvalidItem, i)
		}
		total = total.Add(it.Price.Mul(decimal.NewFromInt(it.Quantity)))
	}
	return total.Round(minorUnits), nil
}
