package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store used by tests and local development.
type MemStore struct {
	mu       sync.RWMutex
	products map[uuid.UUID]Product
	variants map[uuid.UUID]Variant
}

// NewMemStore constructs an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		products: make(map[uuid.UUID]Product),
		variants: make(map[uuid.UUID]Variant),
	}
}

func (m *MemStore) CreateProduct(_ context.Context, p Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.products {
		if existing.Slug == p.Slug {
			return ErrSlugTaken
		}
	}
	m.products[p.ID] = p
	return nil
}

func (m *MemStore) UpdateProduct(_ context.Context, p Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range m.products {
		if id != p.ID && existing.Slug == p.Slug {
			return ErrSlugTaken
		}
	}
	m.products[p.ID] = p
	return nil
}

func (m *MemStore) GetProduct(_ context.Context, id uuid.UUID) (Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (m *MemStore) GetProductBySlug(_ context.Context, slug string) (Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return Product{}, ErrNotFound
}

func (m *MemStore) ListProducts(_ context.Context, params ListParams) ([]Product, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]Product, 0, len(m.products))
	q := strings.ToLower(strings.TrimSpace(params.Query))
	for _, p := range m.products {
		if params.ActiveOnly && !p.Active {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Title), q) && !strings.Contains(p.Slug, q) {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Slug < matched[j].Slug })
	total := int64(len(matched))

	page, limit := params.Page, params.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = len(matched)
	}
	start := (page - 1) * limit
	if start >= len(matched) {
		return []Product{}, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (m *MemStore) CreateVariant(_ context.Context, v Variant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[v.ProductID]; !ok {
		return ErrNotFound
	}
	m.variants[v.ID] = v
	return nil
}

func (m *MemStore) UpdateVariant(_ context.Context, v Variant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.variants[v.ID]; !ok {
		return ErrNotFound
	}
	m.variants[v.ID] = v
	return nil
}

func (m *MemStore) GetVariant(_ context.Context, id uuid.UUID) (Variant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.variants[id]
	if !ok {
		return Variant{}, ErrNotFound
	}
	return v, nil
}

func (m *MemStore) ListVariantsByProduct(_ context.Context, productID uuid.UUID) ([]Variant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Variant, 0)
	for _, v := range m.variants {
		if v.ProductID == productID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}
