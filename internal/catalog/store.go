package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound indicates the product or variant could not be located.
var ErrNotFound = errors.New("catalog: not found")

// ErrSlugTaken indicates another product already owns the slug.
var ErrSlugTaken = errors.New("catalog: slug already in use")

// ListParams captures filters for the public product listing.
type ListParams struct {
	Query      string
	ActiveOnly bool
	Page       int
	Limit      int
}

// Store persists products and variants.
type Store interface {
	CreateProduct(ctx context.Context, p Product) error
	UpdateProduct(ctx context.Context, p Product) error
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	GetProductBySlug(ctx context.Context, slug string) (Product, error)
	ListProducts(ctx context.Context, params ListParams) ([]Product, int64, error)
	CreateVariant(ctx context.Context, v Variant) error
	UpdateVariant(ctx context.Context, v Variant) error
	GetVariant(ctx context.Context, id uuid.UUID) (Variant, error)
	ListVariantsByProduct(ctx context.Context, productID uuid.UUID) ([]Variant, error)
}
