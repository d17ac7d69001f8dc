package availability

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-sewa/internal/pricing"
)

// MemStore is an in-memory Store used by tests and single-node setups.
type MemStore struct {
	mu           sync.RWMutex
	subjects     map[uuid.UUID]Subject
	reservations map[uuid.UUID]Reservation
}

// NewMemStore constructs an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		subjects:     make(map[uuid.UUID]Subject),
		reservations: make(map[uuid.UUID]Reservation),
	}
}

// PutSubject registers or updates a subject's total quantity.
func (s *MemStore) PutSubject(subject Subject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects[subject.ID] = subject
}

// GetSubject implements Store.
func (s *MemStore) GetSubject(_ context.Context, id uuid.UUID) (Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subject, ok := s.subjects[id]
	if !ok {
		return Subject{}, ErrSubjectNotFound
	}
	return subject, nil
}

// ActiveOverlapping implements Store.
func (s *MemStore) ActiveOverlapping(_ context.Context, subjectID uuid.UUID, w pricing.Window, now time.Time) ([]Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Reservation
	for _, r := range s.reservations {
		if r.SubjectID != subjectID {
			continue
		}
		if !r.blocks(now) || !r.Window.Overlaps(w) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Insert implements Store.
func (s *MemStore) Insert(_ context.Context, r Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations[r.ID] = r
	return nil
}

// Get implements Store.
func (s *MemStore) Get(_ context.Context, id uuid.UUID) (Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return Reservation{}, ErrReservationNotFound
	}
	return r, nil
}

// Delete implements Store.
func (s *MemStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reservations, id)
	return nil
}

// Confirm implements Store.
func (s *MemStore) Confirm(_ context.Context, id, orderID uuid.UUID, now time.Time) (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return Reservation{}, ErrReservationNotFound
	}
	if r.State != StateHeld {
		return Reservation{}, ErrIllegalTransition
	}
	if !r.ExpiresAt.After(now) {
		return Reservation{}, ErrReservationExpired
	}
	r.State = StateConfirmed
	r.OrderID = orderID
	s.reservations[id] = r
	return r, nil
}

// Release implements Store.
func (s *MemStore) Release(_ context.Context, id uuid.UUID, _ time.Time) (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return Reservation{}, ErrReservationNotFound
	}
	if r.State != StateReleased {
		r.State = StateReleased
		s.reservations[id] = r
	}
	return r, nil
}

// ExpiredHolds implements Store.
func (s *MemStore) ExpiredHolds(_ context.Context, now time.Time, limit int) ([]Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Reservation
	for _, r := range s.reservations {
		if r.State == StateHeld && !r.ExpiresAt.After(now) {
			out = append(out, r)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// ByOrder implements Store.
func (s *MemStore) ByOrder(_ context.Context, orderID uuid.UUID) ([]Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Reservation
	for _, r := range s.reservations {
		if r.OrderID == orderID {
			out = append(out, r)
		}
	}
	return out, nil
}
