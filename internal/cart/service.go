package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-sewa/internal/availability"
	"github.com/noah-isme/backend-sewa/internal/catalog"
	"github.com/noah-isme/backend-sewa/internal/pricing"
)

// TermsResolver resolves a reservation subject to its rental pricing terms.
// Satisfied by catalog.Service.
type TermsResolver interface {
	Terms(ctx context.Context, subjectID uuid.UUID) (catalog.RentalTerms, error)
}

// Service encapsulates cart domain operations. Adding a line prices the
// request and places a hold; the hold's TTL tracks the cart's TTL so
// abandoned carts release stock on their own.
type Service struct {
	Store    Store
	Terms    TermsResolver
	Ledger   *availability.Ledger
	TTL      time.Duration
	TaxBps   int
	Duration pricing.DurationOptions
	Now      func() time.Time
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 30 * time.Minute
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Summary is the cart contents with a pricing preview.
type Summary struct {
	Cart    Cart                 `json:"cart"`
	Items   []Item               `json:"items"`
	Pricing pricing.OrderPricing `json:"pricing"`
}

// EnsureCart loads or creates a cart for the anonymous identifier.
func (s *Service) EnsureCart(ctx context.Context, anonID string) (Cart, error) {
	if s == nil || s.Store == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	anonID = strings.TrimSpace(anonID)
	if anonID == "" {
		anonID = uuid.NewString()
	}
	now := s.now()
	expires := now.Add(s.ttl())
	existing, err := s.Store.GetCartByAnon(ctx, anonID)
	if err == nil && existing.ExpiresAt.After(now) {
		_ = s.Store.TouchCart(ctx, existing.ID, expires)
		existing.ExpiresAt = expires
		return existing, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Cart{}, err
	}
	created := Cart{ID: uuid.New(), AnonID: anonID, ExpiresAt: expires, CreatedAt: now, UpdatedAt: now}
	if err := s.Store.CreateCart(ctx, created); err != nil {
		return Cart{}, fmt.Errorf("create cart: %w", err)
	}
	return created, nil
}

// AddItem prices a rental request and backs it with a hold.
func (s *Service) AddItem(ctx context.Context, cartID, subjectID uuid.UUID, qty int, w pricing.Window, unit pricing.UnitKind) (Item, error) {
	if s == nil || s.Store == nil || s.Terms == nil || s.Ledger == nil {
		return Item{}, errors.New("cart service not configured")
	}
	c, err := s.liveCart(ctx, cartID)
	if err != nil {
		return Item{}, err
	}
	terms, err := s.Terms.Terms(ctx, subjectID)
	if err != nil {
		return Item{}, err
	}
	line, err := pricing.PriceLine(subjectID, qty, w, unit, terms.Rates, terms.SecurityDeposit, s.Duration)
	if err != nil {
		return Item{}, err
	}
	held, err := s.Ledger.Reserve(ctx, subjectID, qty, w, s.ttl())
	if err != nil {
		return Item{}, err
	}
	item := Item{
		ID:            uuid.New(),
		CartID:        c.ID,
		ReservationID: held.ID,
		Title:         terms.Title,
		Slug:          terms.Slug,
		Line:          line,
	}
	if err := s.Store.CreateItem(ctx, item); err != nil {
		_, _ = s.Ledger.Release(ctx, held.ID)
		return Item{}, fmt.Errorf("create cart item: %w", err)
	}
	s.touch(ctx, c.ID)
	return item, nil
}

// UpdateItem reprices a line for a new quantity or window. The old hold is
// released before the new one is requested so the line's own stock does not
// block it; on failure the old hold is re-reserved.
func (s *Service) UpdateItem(ctx context.Context, cartID, itemID uuid.UUID, qty int, w pricing.Window, unit pricing.UnitKind) (Item, error) {
	if s == nil || s.Store == nil || s.Terms == nil || s.Ledger == nil {
		return Item{}, errors.New("cart service not configured")
	}
	if _, err := s.liveCart(ctx, cartID); err != nil {
		return Item{}, err
	}
	item, err := s.Store.GetItem(ctx, cartID, itemID)
	if err != nil {
		return Item{}, err
	}
	terms, err := s.Terms.Terms(ctx, item.Line.SubjectID)
	if err != nil {
		return Item{}, err
	}
	line, err := pricing.PriceLine(item.Line.SubjectID, qty, w, unit, terms.Rates, terms.SecurityDeposit, s.Duration)
	if err != nil {
		return Item{}, err
	}

	if _, err := s.Ledger.Release(ctx, item.ReservationID); err != nil && !errors.Is(err, availability.ErrReservationNotFound) {
		return Item{}, err
	}
	held, err := s.Ledger.Reserve(ctx, item.Line.SubjectID, qty, w, s.ttl())
	if err != nil {
		// Put the previous hold back so the line keeps its stock.
		if prev, reErr := s.Ledger.Reserve(ctx, item.Line.SubjectID, item.Line.Qty, item.Line.Window, s.ttl()); reErr == nil {
			item.ReservationID = prev.ID
			_ = s.Store.UpdateItem(ctx, item)
		} else {
			_ = s.Store.DeleteItem(ctx, cartID, itemID)
		}
		return Item{}, err
	}
	item.ReservationID = held.ID
	item.Line = line
	if err := s.Store.UpdateItem(ctx, item); err != nil {
		_, _ = s.Ledger.Release(ctx, held.ID)
		return Item{}, fmt.Errorf("update cart item: %w", err)
	}
	s.touch(ctx, cartID)
	return item, nil
}

// RemoveItem drops a line and releases its hold.
func (s *Service) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	if s == nil || s.Store == nil || s.Ledger == nil {
		return errors.New("cart service not configured")
	}
	item, err := s.Store.GetItem(ctx, cartID, itemID)
	if err != nil {
		return err
	}
	if _, err := s.Ledger.Release(ctx, item.ReservationID); err != nil && !errors.Is(err, availability.ErrReservationNotFound) {
		return err
	}
	if err := s.Store.DeleteItem(ctx, cartID, itemID); err != nil {
		return err
	}
	s.touch(ctx, cartID)
	return nil
}

// Summarize returns the cart contents and a pricing preview for the
// settlement mode. Delivery and discounts are applied at checkout.
func (s *Service) Summarize(ctx context.Context, cartID uuid.UUID, mode pricing.SettlementMode) (Summary, error) {
	if s == nil || s.Store == nil {
		return Summary{}, errors.New("cart service not configured")
	}
	c, err := s.liveCart(ctx, cartID)
	if err != nil {
		return Summary{}, err
	}
	items, err := s.Store.ListItems(ctx, c.ID)
	if err != nil {
		return Summary{}, err
	}
	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, it.Line)
	}
	return Summary{
		Cart:    c,
		Items:   items,
		Pricing: pricing.ComputeOrder(lines, 0, s.TaxBps, 0, 0, mode),
	}, nil
}

func (s *Service) liveCart(ctx context.Context, cartID uuid.UUID) (Cart, error) {
	c, err := s.Store.GetCart(ctx, cartID)
	if err != nil {
		return Cart{}, err
	}
	if !c.ExpiresAt.IsZero() && !c.ExpiresAt.After(s.now()) {
		return Cart{}, ErrExpired
	}
	return c, nil
}

func (s *Service) touch(ctx context.Context, cartID uuid.UUID) {
	_ = s.Store.TouchCart(ctx, cartID, s.now().Add(s.ttl()))
}
