package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a single sales transaction as persisted by the upstream
// store. Orders are immutable once persisted; Raw carries the original
// platform payload, which is the only place address data lives.
type Order struct {
	ID         string                 `json:"id"`
	StoreID    string                 `json:"store_id"`
	TotalPrice decimal.Decimal        `json:"total_price"`
	Currency   string                 `json:"currency"`
	OrderedAt  time.Time              `json:"ordered_at"`
	Raw        map[string]interface{} `json:"raw,omitempty"`
	Items      []LineItem             `json:"items"`
}

// LineItem is one product line on an order. ProductID is empty when the
// product was deleted or never matched against the catalog; the platform
// product id is still available for grouping in that case.
type LineItem struct {
	ProductID         string          `json:"product_id,omitempty"`
	PlatformProductID string          `json:"platform_product_id"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	Quantity          int64           `json:"quantity"`
}

// Revenue is unit price times quantity.
func (li LineItem) Revenue() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(li.Quantity))
}

// ProductKey is the grouping key for product rollups. Line items without a
// catalog product fall back to a synthetic key derived from the platform id
// so unmatched products still aggregate consistently.
func (li LineItem) ProductKey() string {
	if li.ProductID != "" {
		return li.ProductID
	}
	return "unknown_" + li.PlatformProductID
}

// Validate rejects structurally invalid orders. Negative prices or
// quantities are the only hard failures the analytics core raises; sparse
// or empty data is handled downstream.
func (o Order) Validate() error {
	if o.TotalPrice.IsNegative() {
		return fmt.Errorf("%w: order %s has negative total price %s", ErrInvalidInput, o.ID, o.TotalPrice)
	}
	for _, li := range o.Items {
		if li.Price.IsNegative() {
			return fmt.Errorf("%w: order %s item %s has negative price %s", ErrInvalidInput, o.ID, li.ProductKey(), li.Price)
		}
		if li.Quantity < 0 {
			return fmt.Errorf("%w: order %s item %s has negative quantity %d", ErrInvalidInput, o.ID, li.ProductKey(), li.Quantity)
		}
	}
	return nil
}

// OrderTuple is the flat time-ordered shape the anomaly engine consumes as
// historical input. It is the only persisted format the detection lookback
// requires.
type OrderTuple struct {
	OrderID    string          `json:"order_id"`
	Timestamp  time.Time       `json:"timestamp"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// Tuples reduces orders to their flat anomaly-history representation.
func Tuples(orders []Order) []OrderTuple {
	out := make([]OrderTuple, 0, len(orders))
	for _, o := range orders {
		out = append(out, OrderTuple{OrderID: o.ID, Timestamp: o.OrderedAt, TotalPrice: o.TotalPrice})
	}
	return out
}
