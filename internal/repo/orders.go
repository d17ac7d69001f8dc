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

	"github.com/noah-isme/backend-sewa/internal/order"
	"github.com/noah-isme/backend-sewa/internal/pricing"
)

// OrderStore implements order.Store on postgres. Lines and the frozen
// pricing breakdown are stored as jsonb; lifecycle columns stay relational
// so status transitions and listings stay indexable.
type OrderStore struct {
	Pool *pgxpool.Pool
}

func (s *OrderStore) Create(ctx context.Context, o order.Order) error {
	lines, pricingJSON, err := encodeOrderBlobs(o)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO orders (id, anon_id, status, payment_status, settlement, lines, pricing,
                    amount_paid, expected_return_at, picked_up_at, returned_at, cancelled_at,
                    created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err = dbFrom(ctx, s.Pool).Exec(ctx, q,
		pgUUID(o.ID), o.AnonID, string(o.Status), string(o.PaymentStatus), string(o.Settlement),
		lines, pricingJSON, int64(o.AmountPaid), o.ExpectedReturnAt,
		o.PickedUpAt, o.ReturnedAt, o.CancelledAt, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *OrderStore) Update(ctx context.Context, o order.Order) error {
	lines, pricingJSON, err := encodeOrderBlobs(o)
	if err != nil {
		return err
	}
	const q = `
UPDATE orders
SET status = $2, payment_status = $3, lines = $4, pricing = $5, amount_paid = $6,
    picked_up_at = $7, returned_at = $8, cancelled_at = $9, updated_at = $10
WHERE id = $1`
	tag, err := dbFrom(ctx, s.Pool).Exec(ctx, q,
		pgUUID(o.ID), string(o.Status), string(o.PaymentStatus), lines, pricingJSON,
		int64(o.AmountPaid), o.PickedUpAt, o.ReturnedAt, o.CancelledAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (s *OrderStore) Get(ctx context.Context, id uuid.UUID) (order.Order, error) {
	const q = orderSelect + ` WHERE id = $1`
	return scanOrder(dbFrom(ctx, s.Pool).QueryRow(ctx, q, pgUUID(id)))
}

func (s *OrderStore) ListByAnon(ctx context.Context, anonID string, page, limit int) ([]order.Order, int64, error) {
	var total int64
	if err := dbFrom(ctx, s.Pool).QueryRow(ctx, `SELECT count(*) FROM orders WHERE anon_id = $1`, anonID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	const q = orderSelect + ` WHERE anon_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	offset := (page - 1) * limit
	rows, err := dbFrom(ctx, s.Pool).Query(ctx, q, anonID, int32(limit), int32(offset))
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

const orderSelect = `
SELECT id, anon_id, status, payment_status, settlement, lines, pricing,
       amount_paid, expected_return_at, picked_up_at, returned_at, cancelled_at,
       created_at, updated_at
FROM orders`

func encodeOrderBlobs(o order.Order) ([]byte, []byte, error) {
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return nil, nil, fmt.Errorf("encode order lines: %w", err)
	}
	pricingJSON, err := json.Marshal(o.Pricing)
	if err != nil {
		return nil, nil, fmt.Errorf("encode order pricing: %w", err)
	}
	return lines, pricingJSON, nil
}

func scanOrder(row pgx.Row) (order.Order, error) {
	var (
		id                              pgtype.UUID
		o                               order.Order
		status, payStatus, settlement   string
		lines, pricingJSON              []byte
		amountPaid                      int64
		pickedUp, returned, cancelledAt *time.Time
	)
	err := row.Scan(&id, &o.AnonID, &status, &payStatus, &settlement, &lines, &pricingJSON,
		&amountPaid, &o.ExpectedReturnAt, &pickedUp, &returned, &cancelledAt,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Order{}, order.ErrNotFound
		}
		return order.Order{}, fmt.Errorf("scan order: %w", err)
	}
	o.ID = fromPgUUID(id)
	o.Status = order.Status(status)
	o.PaymentStatus = order.PaymentStatus(payStatus)
	o.Settlement = pricing.SettlementMode(settlement)
	o.AmountPaid = pricing.Money(amountPaid)
	o.PickedUpAt = pickedUp
	o.ReturnedAt = returned
	o.CancelledAt = cancelledAt
	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return order.Order{}, fmt.Errorf("decode order lines: %w", err)
	}
	if err := json.Unmarshal(pricingJSON, &o.Pricing); err != nil {
		return order.Order{}, fmt.Errorf("decode order pricing: %w", err)
	}
	return o, nil
}
