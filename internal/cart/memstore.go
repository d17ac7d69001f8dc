package cart

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store used by tests and local development.
type MemStore struct {
	mu    sync.RWMutex
	carts map[uuid.UUID]Cart
	items map[uuid.UUID]Item
}

// NewMemStore constructs an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		carts: make(map[uuid.UUID]Cart),
		items: make(map[uuid.UUID]Item),
	}
}

func (m *MemStore) CreateCart(_ context.Context, c Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[c.ID] = c
	return nil
}

func (m *MemStore) GetCart(_ context.Context, id uuid.UUID) (Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.carts[id]
	if !ok {
		return Cart{}, ErrNotFound
	}
	return c, nil
}

func (m *MemStore) GetCartByAnon(_ context.Context, anonID string) (Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.carts {
		if c.AnonID == anonID {
			return c, nil
		}
	}
	return Cart{}, ErrNotFound
}

func (m *MemStore) TouchCart(_ context.Context, id uuid.UUID, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[id]
	if !ok {
		return ErrNotFound
	}
	c.ExpiresAt = expiresAt
	c.UpdatedAt = time.Now()
	m.carts[id] = c
	return nil
}

func (m *MemStore) CreateItem(_ context.Context, it Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.carts[it.CartID]; !ok {
		return ErrNotFound
	}
	m.items[it.ID] = it
	return nil
}

func (m *MemStore) UpdateItem(_ context.Context, it Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[it.ID]; !ok {
		return ErrNotFound
	}
	m.items[it.ID] = it
	return nil
}

func (m *MemStore) GetItem(_ context.Context, cartID, itemID uuid.UUID) (Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[itemID]
	if !ok || it.CartID != cartID {
		return Item{}, ErrNotFound
	}
	return it, nil
}

func (m *MemStore) ListItems(_ context.Context, cartID uuid.UUID) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Item, 0)
	for _, it := range m.items {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (m *MemStore) DeleteItem(_ context.Context, cartID, itemID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[itemID]
	if !ok || it.CartID != cartID {
		return ErrNotFound
	}
	delete(m.items, itemID)
	return nil
}

func (m *MemStore) DeleteItems(_ context.Context, cartID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, it := range m.items {
		if it.CartID == cartID {
			delete(m.items, id)
		}
	}
	return nil
}
