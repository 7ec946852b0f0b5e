package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"medicore.org/internal/ids"
)

// Service defines inventory operations.
type Service interface {
	CreateItem(ctx context.Context, item Item) (Item, error)
	GetItem(ctx context.Context, id string) (Item, error)
	ListItems(ctx context.Context, itemType string) ([]Item, error)
	ListLowStock(ctx context.Context) ([]Item, error)
	Adjust(ctx context.Context, itemID string, delta int64, staffID, notes string) (int64, error)
	Transactions(ctx context.Context, itemID string) ([]Transaction, error)
}

// InMemory implements Service with in-process concurrency safety. Used by
// tests and when no database DSN is configured.
type InMemory struct {
	mu    sync.RWMutex
	items map[string]*Item
	txs   []Transaction
}

// NewInMemory creates an empty inventory.
func NewInMemory() *InMemory {
	return &InMemory{items: make(map[string]*Item)}
}

func (s *InMemory) CreateItem(ctx context.Context, item Item) (Item, error) {
	if item.Name == "" {
		return Item{}, fmt.Errorf("%w: item_name is required", ErrInvalidInput)
	}
	if !ValidType(item.Type) {
		return Item{}, fmt.Errorf("%w: unknown item_type %q", ErrInvalidInput, item.Type)
	}
	if item.Quantity < 0 || item.ReorderLevel < 0 {
		return Item{}, fmt.Errorf("%w: quantity and reorder_level must be >= 0", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item.ID = ids.New()
	item.CreatedAt = time.Now().UTC()
	stored := item
	s.items[item.ID] = &stored
	return item, nil
}

func (s *InMemory) GetItem(ctx context.Context, id string) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return *item, nil
}

func (s *InMemory) ListItems(ctx context.Context, itemType string) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Item
	for _, item := range s.items {
		if itemType != "" && item.Type != itemType {
			continue
		}
		res = append(res, *item)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Type != res[j].Type {
			return res[i].Type < res[j].Type
		}
		return res[i].Name < res[j].Name
	})
	return res, nil
}

func (s *InMemory) ListLowStock(ctx context.Context) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Item
	for _, item := range s.items {
		if item.LowStock() {
			res = append(res, *item)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Quantity < res[j].Quantity })
	return res, nil
}

// Adjust applies a signed quantity change and appends the matching stock
// transaction. The quantity check and both writes happen under one lock so
// concurrent adjustments cannot drive the quantity negative.
func (s *InMemory) Adjust(ctx context.Context, itemID string, delta int64, staffID, notes string) (int64, error) {
	if delta == 0 {
		return 0, fmt.Errorf("%w: adjustment must be non-zero", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return 0, ErrNotFound
	}
	newQuantity := item.Quantity + delta
	if newQuantity < 0 {
		return 0, ErrInsufficientStock
	}

	now := time.Now().UTC()
	item.Quantity = newQuantity
	item.LastRestocked = now

	direction := DirectionAdd
	magnitude := delta
	if delta < 0 {
		direction = DirectionRemove
		magnitude = -delta
	}
	s.txs = append(s.txs, Transaction{
		ID:        ids.New(),
		ItemID:    itemID,
		Direction: direction,
		Quantity:  magnitude,
		StaffID:   staffID,
		Notes:     notes,
		CreatedAt: now,
	})
	return newQuantity, nil
}

func (s *InMemory) Transactions(ctx context.Context, itemID string) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Transaction
	for i := len(s.txs) - 1; i >= 0; i-- {
		if itemID != "" && s.txs[i].ItemID != itemID {
			continue
		}
		res = append(res, s.txs[i])
	}
	return res, nil
}
