package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-sewa/internal/cart"
)

// CartStore implements cart.Store on postgres. The priced line is stored as
// jsonb alongside the hold that backs it.
type CartStore struct {
	Pool *pgxpool.Pool
}

func (s *CartStore) CreateCart(ctx context.Context, c cart.Cart) error {
	const q = `
INSERT INTO carts (id, anon_id, expires_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := dbFrom(ctx, s.Pool).Exec(ctx, q, pgUUID(c.ID), c.AnonID, c.ExpiresAt, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert cart: %w", err)
	}
	return nil
}

func (s *CartStore) GetCart(ctx context.Context, id uuid.UUID) (cart.Cart, error) {
	const q = `SELECT id, anon_id, expires_at, created_at, updated_at FROM carts WHERE id = $1`
	return scanCart(dbFrom(ctx, s.Pool).QueryRow(ctx, q, pgUUID(id)))
}

func (s *CartStore) GetCartByAnon(ctx context.Context, anonID string) (cart.Cart, error) {
	const q = `
SELECT id, anon_id, expires_at, created_at, updated_at
FROM carts WHERE anon_id = $1
ORDER BY created_at DESC LIMIT 1`
	return scanCart(dbFrom(ctx, s.Pool).QueryRow(ctx, q, anonID))
}

func (s *CartStore) TouchCart(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	const q = `UPDATE carts SET expires_at = $2, updated_at = now() WHERE id = $1`
	tag, err := dbFrom(ctx, s.Pool).Exec(ctx, q, pgUUID(id), expiresAt)
	if err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrNotFound
	}
	return nil
}

func (s *CartStore) CreateItem(ctx context.Context, it cart.Item) error {
	line, err := json.Marshal(it.Line)
	if err != nil {
		return fmt.Errorf("encode line: %w", err)
	}
	const q = `
INSERT INTO cart_items (id, cart_id, reservation_id, title, slug, line)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = dbFrom(ctx, s.Pool).Exec(ctx, q, pgUUID(it.ID), pgUUID(it.CartID), pgUUID(it.ReservationID), it.Title, it.Slug, line)
	if err != nil {
		return fmt.Errorf("insert cart item: %w", err)
	}
	return nil
}

func (s *CartStore) UpdateItem(ctx context.Context, it cart.Item) error {
	line, err := json.Marshal(it.Line)
	if err != nil {
		return fmt.Errorf("encode line: %w", err)
	}
	const q = `
UPDATE cart_items SET reservation_id = $3, title = $4, slug = $5, line = $6
WHERE id = $1 AND cart_id = $2`
	tag, err := dbFrom(ctx, s.Pool).Exec(ctx, q, pgUUID(it.ID), pgUUID(it.CartID), pgUUID(it.ReservationID), it.Title, it.Slug, line)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrNotFound
	}
	return nil
}

func (s *CartStore) GetItem(ctx context.Context, cartID, itemID uuid.UUID) (cart.Item, error) {
	const q = `
SELECT id, cart_id, reservation_id, title, slug, line
FROM cart_items WHERE id = $1 AND cart_id = $2`
	return scanCartItem(dbFrom(ctx, s.Pool).QueryRow(ctx, q, pgUUID(itemID), pgUUID(cartID)))
}

func (s *CartStore) ListItems(ctx context.Context, cartID uuid.UUID) ([]cart.Item, error) {
	const q = `
SELECT id, cart_id, reservation_id, title, slug, line
FROM cart_items WHERE cart_id = $1
ORDER BY title`
	rows, err := dbFrom(ctx, s.Pool).Query(ctx, q, pgUUID(cartID))
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()
	var out []cart.Item
	for rows.Next() {
		it, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *CartStore) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	const q = `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`
	tag, err := dbFrom(ctx, s.Pool).Exec(ctx, q, pgUUID(itemID), pgUUID(cartID))
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrNotFound
	}
	return nil
}

func (s *CartStore) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	_, err := dbFrom(ctx, s.Pool).Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, pgUUID(cartID))
	if err != nil {
		return fmt.Errorf("delete cart items: %w", err)
	}
	return nil
}

func scanCart(row pgx.Row) (cart.Cart, error) {
	var id pgtype.UUID
	var c cart.Cart
	if err := row.Scan(&id, &c.AnonID, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cart.Cart{}, cart.ErrNotFound
		}
		return cart.Cart{}, fmt.Errorf("scan cart: %w", err)
	}
	c.ID = fromPgUUID(id)
	return c, nil
}

func scanCartItem(row pgx.Row) (cart.Item, error) {
	var id, cartID, reservationID pgtype.UUID
	var it cart.Item
	var line []byte
	if err := row.Scan(&id, &cartID, &reservationID, &it.Title, &it.Slug, &line); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cart.Item{}, cart.ErrNotFound
		}
		return cart.Item{}, fmt.Errorf("scan cart item: %w", err)
	}
	it.ID = fromPgUUID(id)
	it.CartID = fromPgUUID(cartID)
	it.ReservationID = fromPgUUID(reservationID)
	if err := json.Unmarshal(line, &it.Line); err != nil {
		return cart.Item{}, fmt.Errorf("decode line: %w", err)
	}
	return it, nil
}
