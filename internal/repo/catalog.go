package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-sewa/internal/catalog"
	"github.com/noah-isme/backend-sewa/internal/pricing"
)

const pgUniqueViolation = "23505"

// CatalogStore implements catalog.Store on postgres. Rate tables are stored
// as jsonb so new rental units never need a schema change.
type CatalogStore struct {
	Pool *pgxpool.Pool
}

func (s *CatalogStore) CreateProduct(ctx context.Context, p catalog.Product) error {
	rates, err := json.Marshal(p.Rates)
	if err != nil {
		return fmt.Errorf("encode rates: %w", err)
	}
	const q = `
INSERT INTO products (id, slug, title, description, rates, security_deposit, qty_on_hand, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = dbFrom(ctx, s.Pool).Exec(ctx, q,
		pgUUID(p.ID), p.Slug, p.Title, p.Description, rates,
		int64(p.SecurityDeposit), int32(p.QtyOnHand), p.Active, p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err) {
		return catalog.ErrSlugTaken
	}
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (s *CatalogStore) UpdateProduct(ctx context.Context, p catalog.Product) error {
	rates, err := json.Marshal(p.Rates)
	if err != nil {
		return fmt.Errorf("encode rates: %w", err)
	}
	const q = `
UPDATE products
SET slug = $2, title = $3, description = $4, rates = $5, security_deposit = $6,
    qty_on_hand = $7, active = $8, updated_at = $9
WHERE id = $1`
	tag, err := dbFrom(ctx, s.Pool).Exec(ctx, q,
		pgUUID(p.ID), p.Slug, p.Title, p.Description, rates,
		int64(p.SecurityDeposit), int32(p.QtyOnHand), p.Active, p.UpdatedAt)
	if isUniqueViolation(err) {
		return catalog.ErrSlugTaken
	}
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func (s *CatalogStore) GetProduct(ctx context.Context, id uuid.UUID) (catalog.Product, error) {
	const q = productSelect + ` WHERE id = $1`
	return scanProduct(dbFrom(ctx, s.Pool).QueryRow(ctx, q, pgUUID(id)))
}

func (s *CatalogStore) GetProductBySlug(ctx context.Context, slug string) (catalog.Product, error) {
	const q = productSelect + ` WHERE slug = $1`
	return scanProduct(dbFrom(ctx, s.Pool).QueryRow(ctx, q, slug))
}

func (s *CatalogStore) ListProducts(ctx context.Context, params catalog.ListParams) ([]catalog.Product, int64, error) {
	where := `WHERE ($1 = '' OR title ILIKE '%' || $1 || '%' OR slug ILIKE '%' || $1 || '%')
  AND (NOT $2 OR active)`
	var total int64
	if err := dbFrom(ctx, s.Pool).QueryRow(ctx, `SELECT count(*) FROM products `+where, params.Query, params.ActiveOnly).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}
	q := productSelect + ` ` + where + ` ORDER BY created_at DESC LIMIT $3 OFFSET $4`
	offset := (params.Page - 1) * params.Limit
	rows, err := dbFrom(ctx, s.Pool).Query(ctx, q, params.Query, params.ActiveOnly, int32(params.Limit), int32(offset))
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	var out []catalog.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (s *CatalogStore) CreateVariant(ctx context.Context, v catalog.Variant) error {
	rates, err := json.Marshal(v.Rates)
	if err != nil {
		return fmt.Errorf("encode rates: %w", err)
	}
	const q = `
INSERT INTO variants (id, product_id, sku, title, rates, qty_on_hand, active)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = dbFrom(ctx, s.Pool).Exec(ctx, q,
		pgUUID(v.ID), pgUUID(v.ProductID), v.SKU, v.Title, rates, int32(v.QtyOnHand), v.Active)
	if err != nil {
		return fmt.Errorf("insert variant: %w", err)
	}
	return nil
}

func (s *CatalogStore) UpdateVariant(ctx context.Context, v catalog.Variant) error {
	rates, err := json.Marshal(v.Rates)
	if err != nil {
		return fmt.Errorf("encode rates: %w", err)
	}
	const q = `
UPDATE variants SET sku = $2, title = $3, rates = $4, qty_on_hand = $5, active = $6 WHERE id = $1`
	tag, err := dbFrom(ctx, s.Pool).Exec(ctx, q, pgUUID(v.ID), v.SKU, v.Title, rates, int32(v.QtyOnHand), v.Active)
	if err != nil {
		return fmt.Errorf("update variant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func (s *CatalogStore) GetVariant(ctx context.Context, id uuid.UUID) (catalog.Variant, error) {
	const q = variantSelect + ` WHERE id = $1`
	return scanVariant(dbFrom(ctx, s.Pool).QueryRow(ctx, q, pgUUID(id)))
}

func (s *CatalogStore) ListVariantsByProduct(ctx context.Context, productID uuid.UUID) ([]catalog.Variant, error) {
	const q = variantSelect + ` WHERE product_id = $1 ORDER BY title`
	rows, err := dbFrom(ctx, s.Pool).Query(ctx, q, pgUUID(productID))
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()
	var out []catalog.Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

const productSelect = `
SELECT id, slug, title, description, rates, security_deposit, qty_on_hand, active, created_at, updated_at
FROM products`

const variantSelect = `
SELECT id, product_id, sku, title, rates, qty_on_hand, active
FROM variants`

func scanProduct(row pgx.Row) (catalog.Product, error) {
	var (
		id    pgtype.UUID
		p     catalog.Product
		rates []byte
		dep   int64
		qty   int32
	)
	err := row.Scan(&id, &p.Slug, &p.Title, &p.Description, &rates, &dep, &qty, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Product{}, catalog.ErrNotFound
		}
		return catalog.Product{}, fmt.Errorf("scan product: %w", err)
	}
	p.ID = fromPgUUID(id)
	p.SecurityDeposit = pricing.Money(dep)
	p.QtyOnHand = int(qty)
	if err := json.Unmarshal(rates, &p.Rates); err != nil {
		return catalog.Product{}, fmt.Errorf("decode rates: %w", err)
	}
	return p, nil
}

func scanVariant(row pgx.Row) (catalog.Variant, error) {
	var (
		id, productID pgtype.UUID
		v             catalog.Variant
		rates         []byte
		qty           int32
	)
	err := row.Scan(&id, &productID, &v.SKU, &v.Title, &rates, &qty, &v.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Variant{}, catalog.ErrNotFound
		}
		return catalog.Variant{}, fmt.Errorf("scan variant: %w", err)
	}
	v.ID = fromPgUUID(id)
	v.ProductID = fromPgUUID(productID)
	v.QtyOnHand = int(qty)
	if err := json.Unmarshal(rates, &v.Rates); err != nil {
		return catalog.Variant{}, fmt.Errorf("decode rates: %w", err)
	}
	return v, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
