package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"shoppulse/models"
)

// OrderStore supplies the order history that report building runs over.
// Implementations must return orders that already passed ingest validation.
type OrderStore interface {
	// FetchOrders returns the orders for a store placed in [start, end).
	FetchOrders(ctx context.Context, storeID string, start, end time.Time) ([]models.Order, error)
	// FetchOrderTuples returns the compact order history since the given
	// instant, used by anomaly scoring and archival.
	FetchOrderTuples(ctx context.Context, storeID string, since time.Time) ([]models.OrderTuple, error)
}

// MemoryStore retains orders per store in memory. It is safe for concurrent
// use and returns defensive copies so callers can mutate results freely.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string][]models.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string][]models.Order)}
}

// Add appends orders to a store's history. Orders are kept sorted by
// placement time so range fetches stay deterministic.
func (s *MemoryStore) Add(storeID string, orders ...models.Order) {
	if len(orders) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[storeID] = append(s.orders[storeID], orders...)
	sort.SliceStable(s.orders[storeID], func(i, j int) bool {
		return s.orders[storeID][i].OrderedAt.Before(s.orders[storeID][j].OrderedAt)
	})
}

func (s *MemoryStore) FetchOrders(ctx context.Context, storeID string, start, end time.Time) ([]models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Order
	for _, order := range s.orders[storeID] {
		if order.OrderedAt.Before(start) || !order.OrderedAt.Before(end) {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

func (s *MemoryStore) FetchOrderTuples(ctx context.Context, storeID string, since time.Time) ([]models.OrderTuple, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.OrderTuple
	for _, order := range s.orders[storeID] {
		if order.OrderedAt.Before(since) {
			continue
		}
		out = append(out, models.OrderTuple{
			OrderID:    order.ID,
			Timestamp:  order.OrderedAt,
			TotalPrice: order.TotalPrice,
		})
	}
	return out, nil
}

// Len reports the number of orders retained for a store.
func (s *MemoryStore) Len(storeID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders[storeID])
}
