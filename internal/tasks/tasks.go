// Package tasks defines the asynq task types that back reservation hold
// expiry: a per-hold delayed release plus a periodic safety-net sweep.
package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// TypeHoldRelease releases one lapsed hold at its expiry instant.
	TypeHoldRelease = "hold:release"
	// TypeHoldSweep releases any lapsed holds the per-hold tasks missed.
	TypeHoldSweep = "hold:sweep"
)

// HoldReleasePayload identifies the hold to release.
type HoldReleasePayload struct {
	ReservationID uuid.UUID `json:"reservationId"`
}

// HoldSweepPayload bounds one sweep run.
type HoldSweepPayload struct {
	Batch int `json:"batch"`
}

// NewHoldReleaseTask builds a release task. The task id pins one task per
// reservation so rescheduling never stacks duplicates.
func NewHoldReleaseTask(reservationID uuid.UUID) (*asynq.Task, []asynq.Option, error) {
	payload, err := json.Marshal(HoldReleasePayload{ReservationID: reservationID})
	if err != nil {
		return nil, nil, err
	}
	opts := []asynq.Option{asynq.TaskID("hold:release:" + reservationID.String())}
	return asynq.NewTask(TypeHoldRelease, payload), opts, nil
}

// NewHoldSweepTask builds a sweep task.
func NewHoldSweepTask(batch int) (*asynq.Task, error) {
	payload, err := json.Marshal(HoldSweepPayload{Batch: batch})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeHoldSweep, payload), nil
}
