package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-sewa/internal/availability"
	"github.com/noah-isme/backend-sewa/internal/common"
	"github.com/noah-isme/backend-sewa/internal/pricing"
)

// SubjectSink receives reservation pool updates when products or variants
// change. Satisfied by availability.MemStore; the postgres availability
// store reads catalog tables directly and needs no sink.
type SubjectSink interface {
	PutSubject(s availability.Subject)
}

// Service owns product and variant management plus subject resolution for
// the pricing and availability engines.
type Service struct {
	Store    Store
	Cache    *Cache
	Validate *validator.Validate
	Subjects SubjectSink
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateProductInput captures a new listing from a vendor.
type CreateProductInput struct {
	Slug            string            `json:"slug" validate:"required,min=2,max=120"`
	Title           string            `json:"title" validate:"required,min=2,max=200"`
	Description     string            `json:"description"`
	Rates           pricing.RateTable `json:"rates" validate:"required"`
	SecurityDeposit pricing.Money     `json:"securityDeposit" validate:"gte=0"`
	QtyOnHand       int               `json:"qtyOnHand" validate:"gte=0"`
	Active          bool              `json:"active"`
}

// UpdateProductInput captures a listing update. Zero quantities are legal:
// a vendor can take a listing out of circulation without deleting it.
type UpdateProductInput struct {
	Title           string            `json:"title" validate:"required,min=2,max=200"`
	Description     string            `json:"description"`
	Rates           pricing.RateTable `json:"rates" validate:"required"`
	SecurityDeposit pricing.Money     `json:"securityDeposit" validate:"gte=0"`
	QtyOnHand       int               `json:"qtyOnHand" validate:"gte=0"`
	Active          bool              `json:"active"`
}

// CreateVariantInput captures a sub-pool of an existing product.
type CreateVariantInput struct {
	SKU       string            `json:"sku"`
	Title     string            `json:"title" validate:"required,min=1,max=200"`
	Rates     pricing.RateTable `json:"rates"`
	QtyOnHand int               `json:"qtyOnHand" validate:"gte=0"`
	Active    bool              `json:"active"`
}

// ProductDetail is the public detail payload.
type ProductDetail struct {
	Product
	Variants []Variant `json:"variants"`
}

// ProductListResult contains list data and pagination metadata.
type ProductListResult struct {
	Items []Product `json:"items"`
	Total int64     `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}

// CreateProduct validates and persists a new listing and registers its
// reservation pool.
func (s *Service) CreateProduct(ctx context.Context, in CreateProductInput) (Product, error) {
	if s == nil || s.Store == nil {
		return Product{}, errors.New("catalog service not configured")
	}
	in.Slug = strings.ToLower(strings.TrimSpace(in.Slug))
	in.Title = strings.TrimSpace(in.Title)
	if err := s.validate(in); err != nil {
		return Product{}, err
	}
	if err := in.Rates.Validate(); err != nil {
		return Product{}, badRequest("rates", err.Error(), err)
	}
	now := s.now()
	product := Product{
		ID:              uuid.New(),
		Slug:            in.Slug,
		Title:           in.Title,
		Description:     strings.TrimSpace(in.Description),
		Rates:           in.Rates,
		SecurityDeposit: in.SecurityDeposit,
		QtyOnHand:       in.QtyOnHand,
		Active:          in.Active,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Store.CreateProduct(ctx, product); err != nil {
		if errors.Is(err, ErrSlugTaken) {
			return Product{}, &common.AppError{Code: "CONFLICT", Message: "slug already in use", HTTPStatus: http.StatusConflict, Err: err}
		}
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	s.syncSubject(product.ID, product.QtyOnHand)
	return product, nil
}

// UpdateProduct applies an update and refreshes the reservation pool size.
// Existing reservations are untouched; a shrunk pool only constrains new
// requests.
func (s *Service) UpdateProduct(ctx context.Context, id uuid.UUID, in UpdateProductInput) (Product, error) {
	if s == nil || s.Store == nil {
		return Product{}, errors.New("catalog service not configured")
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := s.validate(in); err != nil {
		return Product{}, err
	}
	if err := in.Rates.Validate(); err != nil {
		return Product{}, badRequest("rates", err.Error(), err)
	}
	product, err := s.Store.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	product.Title = in.Title
	product.Description = strings.TrimSpace(in.Description)
	product.Rates = in.Rates
	product.SecurityDeposit = in.SecurityDeposit
	product.QtyOnHand = in.QtyOnHand
	product.Active = in.Active
	product.UpdatedAt = s.now()
	if err := s.Store.UpdateProduct(ctx, product); err != nil {
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	s.syncSubject(product.ID, product.QtyOnHand)
	s.invalidate(ctx, product.Slug)
	return product, nil
}

// AddVariant creates a sub-pool under the product.
func (s *Service) AddVariant(ctx context.Context, productID uuid.UUID, in CreateVariantInput) (Variant, error) {
	if s == nil || s.Store == nil {
		return Variant{}, errors.New("catalog service not configured")
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := s.validate(in); err != nil {
		return Variant{}, err
	}
	if len(in.Rates) > 0 {
		if err := in.Rates.Validate(); err != nil {
			return Variant{}, badRequest("rates", err.Error(), err)
		}
	}
	product, err := s.Store.GetProduct(ctx, productID)
	if err != nil {
		return Variant{}, err
	}
	variant := Variant{
		ID:        uuid.New(),
		ProductID: product.ID,
		SKU:       strings.TrimSpace(in.SKU),
		Title:     in.Title,
		Rates:     in.Rates,
		QtyOnHand: in.QtyOnHand,
		Active:    in.Active,
	}
	if err := s.Store.CreateVariant(ctx, variant); err != nil {
		return Variant{}, fmt.Errorf("create variant: %w", err)
	}
	s.syncSubject(variant.ID, variant.QtyOnHand)
	s.invalidate(ctx, product.Slug)
	return variant, nil
}

// GetDetail returns the product and its variants by slug.
func (s *Service) GetDetail(ctx context.Context, slug string) (ProductDetail, error) {
	if s == nil || s.Store == nil {
		return ProductDetail{}, errors.New("catalog service not configured")
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return ProductDetail{}, badRequest("slug", "slug is required", nil)
	}
	key := detailCacheKey(slug)
	if s.Cache != nil {
		var cached ProductDetail
		if ok, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}
	product, err := s.Store.GetProductBySlug(ctx, slug)
	if err != nil {
		return ProductDetail{}, err
	}
	variants, err := s.Store.ListVariantsByProduct(ctx, product.ID)
	if err != nil {
		return ProductDetail{}, fmt.Errorf("list variants: %w", err)
	}
	detail := ProductDetail{Product: product, Variants: variants}
	if s.Cache != nil {
		_ = s.Cache.SetJSON(ctx, key, detail)
	}
	return detail, nil
}

// List returns a filtered product page.
func (s *Service) List(ctx context.Context, params ListParams) (ProductListResult, error) {
	if s == nil || s.Store == nil {
		return ProductListResult{}, errors.New("catalog service not configured")
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = 20
	}
	if params.Limit > 100 {
		params.Limit = 100
	}
	items, total, err := s.Store.ListProducts(ctx, params)
	if err != nil {
		return ProductListResult{}, fmt.Errorf("list products: %w", err)
	}
	return ProductListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

// Terms resolves a reservation subject to its rental pricing terms. A
// variant with no rate table of its own inherits the product's rates and
// deposit.
func (s *Service) Terms(ctx context.Context, subjectID uuid.UUID) (RentalTerms, error) {
	if s == nil || s.Store == nil {
		return RentalTerms{}, errors.New("catalog service not configured")
	}
	if variant, err := s.Store.GetVariant(ctx, subjectID); err == nil {
		product, err := s.Store.GetProduct(ctx, variant.ProductID)
		if err != nil {
			return RentalTerms{}, err
		}
		terms := RentalTerms{
			SubjectID:       variant.ID,
			ProductID:       product.ID,
			Title:           product.Title + " / " + variant.Title,
			Slug:            product.Slug,
			Rates:           variant.Rates,
			SecurityDeposit: product.SecurityDeposit,
		}
		if len(terms.Rates) == 0 {
			terms.Rates = product.Rates
		}
		return terms, nil
	} else if !errors.Is(err, ErrNotFound) {
		return RentalTerms{}, err
	}
	product, err := s.Store.GetProduct(ctx, subjectID)
	if err != nil {
		return RentalTerms{}, err
	}
	return RentalTerms{
		SubjectID:       product.ID,
		ProductID:       product.ID,
		Title:           product.Title,
		Slug:            product.Slug,
		Rates:           product.Rates,
		SecurityDeposit: product.SecurityDeposit,
	}, nil
}

func (s *Service) validate(in any) error {
	if s.Validate == nil {
		return nil
	}
	if err := s.Validate.Struct(in); err != nil {
		return badRequest("payload", err.Error(), err)
	}
	return nil
}

func (s *Service) syncSubject(id uuid.UUID, totalQty int) {
	if s.Subjects == nil {
		return
	}
	s.Subjects.PutSubject(availability.Subject{ID: id, TotalQty: totalQty})
}

func (s *Service) invalidate(ctx context.Context, slug string) {
	if s.Cache == nil {
		return
	}
	s.Cache.Invalidate(ctx, detailCacheKey(slug))
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details:    map[string]any{"field": field},
	}
}
