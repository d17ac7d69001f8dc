package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-sewa/internal/availability"
	"github.com/noah-isme/backend-sewa/internal/obs"
)

// Handler processes hold expiry tasks against the availability ledger.
type Handler struct {
	Ledger     *availability.Ledger
	SweepBatch int
	Logger     zerolog.Logger
}

// Register attaches the handlers to an asynq mux.
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeHoldRelease, h.HandleHoldRelease)
	mux.HandleFunc(TypeHoldSweep, h.HandleHoldSweep)
}

// HandleHoldRelease releases one lapsed hold. A hold that was confirmed or
// already released in the meantime is a no-op, not an error.
func (h *Handler) HandleHoldRelease(ctx context.Context, t *asynq.Task) error {
	if h == nil || h.Ledger == nil {
		return errors.New("hold release handler not configured")
	}
	var payload HoldReleasePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", TypeHoldRelease, err)
	}
	released, err := h.Ledger.ReleaseExpiredHold(ctx, payload.ReservationID)
	if err != nil {
		return err
	}
	if released {
		h.Logger.Info().Str("reservation_id", payload.ReservationID.String()).Msg("hold_released")
	}
	return nil
}

// HandleHoldSweep releases up to a batch of lapsed holds.
func (h *Handler) HandleHoldSweep(ctx context.Context, t *asynq.Task) error {
	if h == nil || h.Ledger == nil {
		return errors.New("hold sweep handler not configured")
	}
	var payload HoldSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", TypeHoldSweep, err)
	}
	batch := payload.Batch
	if batch <= 0 {
		batch = h.SweepBatch
	}
	released, err := h.Ledger.ReleaseExpired(ctx, batch)
	if err != nil {
		return err
	}
	for i := 0; i < released; i++ {
		obs.IncCounter(obs.HoldSweepReleased)
	}
	if released > 0 {
		h.Logger.Info().Int("released", released).Msg("hold_sweep")
	}
	return nil
}
