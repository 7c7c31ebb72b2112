package memory

import (
	"context"
	"sync"
	"time"

	"bidding-system/internal/domain"
)

// PriceStore keeps items in process memory. It honours the same conditional
// write contract as the durable stores and backs single-node runs and tests.
type PriceStore struct {
	mu    sync.RWMutex
	items map[string]domain.Item
}

func NewPriceStore() *PriceStore {
	return &PriceStore{items: make(map[string]domain.Item)}
}

func (s *PriceStore) CreateItem(ctx context.Context, itemID string, startingPrice int64) (*domain.Item, error) {
	if startingPrice < 0 {
		return nil, domain.ErrInvalidPrice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[itemID]; exists {
		return nil, domain.ErrItemExists
	}
	item := domain.Item{ID: itemID, CurrentPrice: startingPrice, UpdatedAt: time.Now()}
	s.items[itemID] = item
	return &item, nil
}

func (s *PriceStore) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemID]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	return &item, nil
}

func (s *PriceStore) ReadPrice(ctx context.Context, itemID string) (int64, uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemID]
	if !ok {
		return 0, 0, domain.ErrItemNotFound
	}
	return item.CurrentPrice, item.Version, nil
}

func (s *PriceStore) ConditionalSetPrice(ctx context.Context, itemID string, newPrice int64, expectedVersion uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return 0, domain.ErrItemNotFound
	}
	if item.Version != expectedVersion {
		return 0, domain.ErrVersionConflict
	}

	item.CurrentPrice = newPrice
	item.Version++
	item.UpdatedAt = time.Now()
	s.items[itemID] = item
	return item.Version, nil
}
