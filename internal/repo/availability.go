package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-sewa/internal/availability"
	"github.com/noah-isme/backend-sewa/internal/pricing"
)

// AvailabilityStore implements availability.Store on postgres. Subjects are
// a view over products and variants; reservations have their own table with
// an index on (subject_id, starts_at, ends_at).
type AvailabilityStore struct {
	Pool *pgxpool.Pool
}

func (s *AvailabilityStore) GetSubject(ctx context.Context, id uuid.UUID) (availability.Subject, error) {
	const q = `
SELECT id, qty_on_hand FROM variants WHERE id = $1
UNION ALL
SELECT id, qty_on_hand FROM products WHERE id = $1
LIMIT 1`
	var sid pgtype.UUID
	var qty int32
	if err := dbFrom(ctx, s.Pool).QueryRow(ctx, q, pgUUID(id)).Scan(&sid, &qty); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return availability.Subject{}, availability.ErrSubjectNotFound
		}
		return availability.Subject{}, fmt.Errorf("get subject: %w", err)
	}
	return availability.Subject{ID: fromPgUUID(sid), TotalQty: int(qty)}, nil
}

func (s *AvailabilityStore) ActiveOverlapping(ctx context.Context, subjectID uuid.UUID, w pricing.Window, now time.Time) ([]availability.Reservation, error) {
	const q = `
SELECT id, subject_id, order_id, qty, starts_at, ends_at, state, expires_at, created_at
FROM reservations
WHERE subject_id = $1
  AND starts_at < $3
  AND ends_at > $2
  AND (state = 'CONFIRMED' OR (state = 'HELD' AND expires_at > $4))`
	rows, err := dbFrom(ctx, s.Pool).Query(ctx, q, pgUUID(subjectID), w.Start, w.End, now)
	if err != nil {
		return nil, fmt.Errorf("list overlapping reservations: %w", err)
	}
	defer rows.Close()
	var out []availability.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *AvailabilityStore) Insert(ctx context.Context, r availability.Reservation) error {
	const q = `
INSERT INTO reservations (id, subject_id, order_id, qty, starts_at, ends_at, state, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := dbFrom(ctx, s.Pool).Exec(ctx, q,
		pgUUID(r.ID), pgUUID(r.SubjectID), pgUUIDPtr(r.OrderID), int32(r.Qty),
		r.Window.Start, r.Window.End, string(r.State), r.ExpiresAt, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (s *AvailabilityStore) Get(ctx context.Context, id uuid.UUID) (availability.Reservation, error) {
	const q = `
SELECT id, subject_id, order_id, qty, starts_at, ends_at, state, expires_at, created_at
FROM reservations WHERE id = $1`
	row := dbFrom(ctx, s.Pool).QueryRow(ctx, q, pgUUID(id))
	r, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return availability.Reservation{}, availability.ErrReservationNotFound
		}
		return availability.Reservation{}, err
	}
	return r, nil
}

func (s *AvailabilityStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := dbFrom(ctx, s.Pool).Exec(ctx, `DELETE FROM reservations WHERE id = $1`, pgUUID(id))
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	return nil
}

// Confirm is conditional on the row still being a live hold; the state check
// runs inside the UPDATE so a racing expiry cannot interleave.
func (s *AvailabilityStore) Confirm(ctx context.Context, id, orderID uuid.UUID, now time.Time) (availability.Reservation, error) {
	const q = `
UPDATE reservations
SET state = 'CONFIRMED', order_id = $2
WHERE id = $1 AND state = 'HELD' AND expires_at > $3
RETURNING id, subject_id, order_id, qty, starts_at, ends_at, state, expires_at, created_at`
	row := dbFrom(ctx, s.Pool).QueryRow(ctx, q, pgUUID(id), pgUUID(orderID), now)
	r, err := scanReservation(row)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return availability.Reservation{}, err
	}
	current, getErr := s.Get(ctx, id)
	if getErr != nil {
		return availability.Reservation{}, getErr
	}
	if current.State == availability.StateHeld {
		return availability.Reservation{}, availability.ErrReservationExpired
	}
	return availability.Reservation{}, availability.ErrIllegalTransition
}

func (s *AvailabilityStore) Release(ctx context.Context, id uuid.UUID, now time.Time) (availability.Reservation, error) {
	const q = `
UPDATE reservations
SET state = 'RELEASED'
WHERE id = $1
RETURNING id, subject_id, order_id, qty, starts_at, ends_at, state, expires_at, created_at`
	row := dbFrom(ctx, s.Pool).QueryRow(ctx, q, pgUUID(id))
	r, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return availability.Reservation{}, availability.ErrReservationNotFound
		}
		return availability.Reservation{}, err
	}
	return r, nil
}

func (s *AvailabilityStore) ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]availability.Reservation, error) {
	const q = `
SELECT id, subject_id, order_id, qty, starts_at, ends_at, state, expires_at, created_at
FROM reservations
WHERE state = 'HELD' AND expires_at <= $1
ORDER BY expires_at
LIMIT $2`
	rows, err := dbFrom(ctx, s.Pool).Query(ctx, q, now, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("list expired holds: %w", err)
	}
	defer rows.Close()
	var out []availability.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *AvailabilityStore) ByOrder(ctx context.Context, orderID uuid.UUID) ([]availability.Reservation, error) {
	const q = `
SELECT id, subject_id, order_id, qty, starts_at, ends_at, state, expires_at, created_at
FROM reservations WHERE order_id = $1`
	rows, err := dbFrom(ctx, s.Pool).Query(ctx, q, pgUUID(orderID))
	if err != nil {
		return nil, fmt.Errorf("list reservations by order: %w", err)
	}
	defer rows.Close()
	var out []availability.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanReservation(row pgx.Row) (availability.Reservation, error) {
	var (
		id, subjectID, orderID pgtype.UUID
		qty                    int32
		startsAt, endsAt       time.Time
		state                  string
		expiresAt, createdAt   time.Time
	)
	if err := row.Scan(&id, &subjectID, &orderID, &qty, &startsAt, &endsAt, &state, &expiresAt, &createdAt); err != nil {
		return availability.Reservation{}, err
	}
	return availability.Reservation{
		ID:        fromPgUUID(id),
		SubjectID: fromPgUUID(subjectID),
		OrderID:   fromPgUUID(orderID),
		Qty:       int(qty),
		Window:    pricing.Window{Start: startsAt, End: endsAt},
		State:     availability.State(state),
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}
