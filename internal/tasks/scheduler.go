package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Scheduler enqueues delayed hold releases. It satisfies
// availability.ExpiryScheduler.
type Scheduler struct {
	Client *asynq.Client
}

// ScheduleRelease enqueues a release task to fire at the hold's expiry.
func (s *Scheduler) ScheduleRelease(ctx context.Context, reservationID uuid.UUID, at time.Time) error {
	if s == nil || s.Client == nil {
		return errors.New("task scheduler not configured")
	}
	task, opts, err := NewHoldReleaseTask(reservationID)
	if err != nil {
		return err
	}
	opts = append(opts, asynq.ProcessAt(at))
	_, err = s.Client.EnqueueContext(ctx, task, opts...)
	if err != nil && errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}
