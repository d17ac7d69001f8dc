package availability

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-sewa/internal/events"
	"github.com/noah-isme/backend-sewa/internal/obs"
	"github.com/noah-isme/backend-sewa/internal/pricing"
)

// SubjectLocker serializes a critical section per subject key across
// processes. Satisfied by lock.Locker.
type SubjectLocker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// ExpiryScheduler schedules the delayed release of a hold.
type ExpiryScheduler interface {
	ScheduleRelease(ctx context.Context, reservationID uuid.UUID, at time.Time) error
}

// Availability is the read-only answer to "does this fit?".
type Availability struct {
	Available    bool `json:"available"`
	AvailableQty int  `json:"availableQty"`
	TotalQty     int  `json:"totalQty"`
}

// Ledger performs atomic check-and-reserve over a reservation store. The
// admission check is a sweep line over interval breakpoints: total reserved
// quantity is bounded at every instant, not merely in aggregate, so two
// disjoint 1-unit rentals of a 1-unit subject coexist.
type Ledger struct {
	Store       Store
	Now         func() time.Time
	Locker      SubjectLocker
	LockTTL     time.Duration
	DefaultTTL  time.Duration
	MaxAttempts int
	Events      *events.Bus
	Expiry      ExpiryScheduler

	mu       sync.Mutex
	subjects map[uuid.UUID]*sync.Mutex
}

func (l *Ledger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *Ledger) defaultTTL() time.Duration {
	if l == nil || l.DefaultTTL <= 0 {
		return 15 * time.Minute
	}
	return l.DefaultTTL
}

func (l *Ledger) subjectMutex(id uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.subjects == nil {
		l.subjects = make(map[uuid.UUID]*sync.Mutex)
	}
	mu, ok := l.subjects[id]
	if !ok {
		mu = &sync.Mutex{}
		l.subjects[id] = mu
	}
	return mu
}

// withSubject runs fn while holding the subject's in-process mutex and, when
// configured, a cross-instance redis lock. Different subjects never contend.
func (l *Ledger) withSubject(ctx context.Context, id uuid.UUID, fn func(context.Context) error) error {
	mu := l.subjectMutex(id)
	mu.Lock()
	defer mu.Unlock()
	if l.Locker != nil {
		ttl := l.LockTTL
		if ttl <= 0 {
			ttl = 10 * time.Second
		}
		return l.Locker.WithLock(ctx, "availability:subject:"+id.String(), ttl, fn)
	}
	return fn(ctx)
}

// Check answers whether qty units fit the window. Read-only: no hold is
// created.
func (l *Ledger) Check(ctx context.Context, subjectID uuid.UUID, qty int, w pricing.Window) (Availability, error) {
	if l == nil || l.Store == nil {
		return Availability{}, errors.New("availability ledger not configured")
	}
	if qty <= 0 {
		return Availability{}, pricing.ErrInvalidQuantity
	}
	if err := w.Validate(); err != nil {
		return Availability{}, err
	}
	subject, err := l.Store.GetSubject(ctx, subjectID)
	if err != nil {
		return Availability{}, err
	}
	free, err := l.headroom(ctx, subject, w, l.now())
	if err != nil {
		return Availability{}, err
	}
	if free < 0 {
		free = 0
	}
	return Availability{Available: free >= qty, AvailableQty: free, TotalQty: subject.TotalQty}, nil
}

// Reserve creates a HELD reservation valid for ttl, or fails with a
// CapacityError naming the quantity that would fit. The check-and-insert is
// atomic per subject; a bounded optimistic retry re-validates after insert
// to cover writers outside the lock.
func (l *Ledger) Reserve(ctx context.Context, subjectID uuid.UUID, qty int, w pricing.Window, ttl time.Duration) (Reservation, error) {
	if l == nil || l.Store == nil {
		return Reservation{}, errors.New("availability ledger not configured")
	}
	if qty <= 0 {
		return Reservation{}, pricing.ErrInvalidQuantity
	}
	if err := w.Validate(); err != nil {
		return Reservation{}, err
	}
	subject, err := l.Store.GetSubject(ctx, subjectID)
	if err != nil {
		return Reservation{}, err
	}
	if ttl <= 0 {
		ttl = l.defaultTTL()
	}
	attempts := l.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	var out Reservation
	err = l.withSubject(ctx, subjectID, func(ctx context.Context) error {
		for attempt := 0; attempt < attempts; attempt++ {
			now := l.now()
			free, err := l.headroom(ctx, subject, w, now)
			if err != nil {
				return err
			}
			if qty > free {
				return l.capacityError(subject, qty, free)
			}
			// The caller-supplied timeout abandons the request before
			// any hold is written.
			if err := ctx.Err(); err != nil {
				return err
			}
			held := Reservation{
				ID:        uuid.New(),
				SubjectID: subjectID,
				Qty:       qty,
				Window:    w,
				State:     StateHeld,
				ExpiresAt: now.Add(ttl),
				CreatedAt: now,
			}
			if err := l.Store.Insert(ctx, held); err != nil {
				return err
			}
			free, err = l.headroom(ctx, subject, w, now)
			if err != nil {
				_ = l.Store.Delete(ctx, held.ID)
				return err
			}
			if free >= 0 {
				out = held
				return nil
			}
			// Lost an admission race: roll the hold back and retry.
			if err := l.Store.Delete(ctx, held.ID); err != nil {
				return err
			}
		}
		now := l.now()
		free, err := l.headroom(ctx, subject, w, now)
		if err != nil {
			return err
		}
		return l.capacityError(subject, qty, free)
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientAvailability) {
			obs.IncReservation("rejected")
		}
		return Reservation{}, err
	}

	obs.IncReservation("held")
	if l.Expiry != nil {
		_ = l.Expiry.ScheduleRelease(ctx, out.ID, out.ExpiresAt)
	}
	l.emit(ctx, events.TopicReservationHeld, out)
	return out, nil
}

// Confirm transitions a hold to CONFIRMED for the order. Confirmation and
// TTL expiry are mutually exclusive on the same record: both run under the
// subject lock and the store transition re-checks the deadline.
func (l *Ledger) Confirm(ctx context.Context, reservationID, orderID uuid.UUID) (Reservation, error) {
	if l == nil || l.Store == nil {
		return Reservation{}, errors.New("availability ledger not configured")
	}
	current, err := l.Store.Get(ctx, reservationID)
	if err != nil {
		return Reservation{}, err
	}
	var out Reservation
	err = l.withSubject(ctx, current.SubjectID, func(ctx context.Context) error {
		var err error
		out, err = l.Store.Confirm(ctx, reservationID, orderID, l.now())
		return err
	})
	if err != nil {
		return Reservation{}, err
	}
	obs.IncReservation("confirmed")
	l.emit(ctx, events.TopicReservationConfirmed, out)
	return out, nil
}

// Release frees a HELD or CONFIRMED reservation for future windows.
func (l *Ledger) Release(ctx context.Context, reservationID uuid.UUID) (Reservation, error) {
	if l == nil || l.Store == nil {
		return Reservation{}, errors.New("availability ledger not configured")
	}
	current, err := l.Store.Get(ctx, reservationID)
	if err != nil {
		return Reservation{}, err
	}
	var out Reservation
	err = l.withSubject(ctx, current.SubjectID, func(ctx context.Context) error {
		var err error
		out, err = l.Store.Release(ctx, reservationID, l.now())
		return err
	})
	if err != nil {
		return Reservation{}, err
	}
	obs.IncReservation("released")
	l.emit(ctx, events.TopicReservationReleased, out)
	return out, nil
}

// ReleaseForOrder releases every reservation confirmed for the order, used
// on cancellation and on return completion.
func (l *Ledger) ReleaseForOrder(ctx context.Context, orderID uuid.UUID) error {
	if l == nil || l.Store == nil {
		return errors.New("availability ledger not configured")
	}
	held, err := l.Store.ByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	for _, r := range held {
		if r.State == StateReleased {
			continue
		}
		if _, err := l.Release(ctx, r.ID); err != nil && !errors.Is(err, ErrReservationNotFound) {
			return err
		}
	}
	return nil
}

// ReleaseExpiredHold releases the reservation only if it is still a lapsed
// hold. A hold confirmed in the meantime is left untouched.
func (l *Ledger) ReleaseExpiredHold(ctx context.Context, reservationID uuid.UUID) (bool, error) {
	if l == nil || l.Store == nil {
		return false, errors.New("availability ledger not configured")
	}
	current, err := l.Store.Get(ctx, reservationID)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			return false, nil
		}
		return false, err
	}
	released := false
	err = l.withSubject(ctx, current.SubjectID, func(ctx context.Context) error {
		r, err := l.Store.Get(ctx, reservationID)
		if err != nil {
			return err
		}
		now := l.now()
		if r.State != StateHeld || r.ExpiresAt.After(now) {
			return nil
		}
		if _, err := l.Store.Release(ctx, reservationID, now); err != nil {
			return err
		}
		released = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if released {
		obs.IncReservation("expired")
		l.emit(ctx, events.TopicReservationExpired, current)
	}
	return released, nil
}

// ReleaseExpired sweeps up to limit lapsed holds. Safety net behind the
// per-hold scheduled releases.
func (l *Ledger) ReleaseExpired(ctx context.Context, limit int) (int, error) {
	if l == nil || l.Store == nil {
		return 0, errors.New("availability ledger not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	lapsed, err := l.Store.ExpiredHolds(ctx, l.now(), limit)
	if err != nil {
		return 0, err
	}
	released := 0
	for _, r := range lapsed {
		ok, err := l.ReleaseExpiredHold(ctx, r.ID)
		if err != nil {
			return released, err
		}
		if ok {
			released++
		}
	}
	return released, nil
}

func (l *Ledger) headroom(ctx context.Context, subject Subject, w pricing.Window, now time.Time) (int, error) {
	active, err := l.Store.ActiveOverlapping(ctx, subject.ID, w, now)
	if err != nil {
		return 0, err
	}
	return subject.TotalQty - maxConcurrent(active, w, now), nil
}

func (l *Ledger) capacityError(subject Subject, requested, free int) error {
	if free < 0 {
		free = 0
	}
	return &CapacityError{SubjectID: subject.ID, Requested: requested, Available: free, Total: subject.TotalQty}
}

func (l *Ledger) emit(ctx context.Context, topic string, r Reservation) {
	if l.Events == nil {
		return
	}
	_, _ = l.Events.Emit(ctx, topic, r.SubjectID, map[string]any{
		"reservationId": r.ID.String(),
		"subjectId":     r.SubjectID.String(),
		"qty":           r.Qty,
		"start":         r.Window.Start,
		"end":           r.Window.End,
	})
}

// maxConcurrent computes the peak reserved quantity inside w. Breakpoints
// are the clipped start/end instants of blocking reservations; at equal
// instants ends apply before starts, matching half-open windows.
func maxConcurrent(res []Reservation, w pricing.Window, now time.Time) int {
	type point struct {
		at    time.Time
		delta int
	}
	pts := make([]point, 0, len(res)*2)
	for _, r := range res {
		if !r.blocks(now) || !r.Window.Overlaps(w) {
			continue
		}
		start := r.Window.Start
		if start.Before(w.Start) {
			start = w.Start
		}
		end := r.Window.End
		if end.After(w.End) {
			end = w.End
		}
		pts = append(pts, point{at: start, delta: r.Qty}, point{at: end, delta: -r.Qty})
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].at.Equal(pts[j].at) {
			return pts[i].delta < pts[j].delta
		}
		return pts[i].at.Before(pts[j].at)
	})
	current, peak := 0, 0
	for _, p := range pts {
		current += p.delta
		if current > peak {
			peak = current
		}
	}
	return peak
}
