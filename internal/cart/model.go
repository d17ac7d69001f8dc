package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-sewa/internal/pricing"
)

// ErrNotFound indicates the requested cart or item could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrExpired indicates the cart's TTL has lapsed.
var ErrExpired = errors.New("cart expired")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// Cart is a guest shopping cart. Every line holds live inventory through a
// HELD reservation, so an expired cart automatically returns its stock.
type Cart struct {
	ID        uuid.UUID `json:"id"`
	AnonID    string    `json:"anonId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Item is one rental line in a cart, paired with the hold that backs it.
type Item struct {
	ID            uuid.UUID    `json:"id"`
	CartID        uuid.UUID    `json:"cartId"`
	ReservationID uuid.UUID    `json:"reservationId"`
	Title         string       `json:"title"`
	Slug          string       `json:"slug"`
	Line          pricing.Line `json:"line"`
}

// Store persists carts and their items.
type Store interface {
	CreateCart(ctx context.Context, c Cart) error
	GetCart(ctx context.Context, id uuid.UUID) (Cart, error)
	GetCartByAnon(ctx context.Context, anonID string) (Cart, error)
	TouchCart(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	CreateItem(ctx context.Context, it Item) error
	UpdateItem(ctx context.Context, it Item) error
	GetItem(ctx context.Context, cartID, itemID uuid.UUID) (Item, error)
	ListItems(ctx context.Context, cartID uuid.UUID) ([]Item, error)
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error
	DeleteItems(ctx context.Context, cartID uuid.UUID) error
}
