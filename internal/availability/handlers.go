package availability

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-sewa/internal/common"
	"github.com/noah-isme/backend-sewa/internal/pricing"
)

// Handler wires the availability ledger to HTTP.
type Handler struct {
	Ledger *Ledger
}

// Check answers whether the requested quantity fits the window.
// GET /v1/subjects/{id}/availability?qty=&start=&end=
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Ledger == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "availability ledger not configured", nil)
		return
	}
	subjectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid subject id", nil)
		return
	}
	qty := 1
	if raw := r.URL.Query().Get("qty"); raw != "" {
		qty, err = strconv.Atoi(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid qty", nil)
			return
		}
	}
	window, err := parseWindow(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "start and end must be RFC3339 timestamps", nil)
		return
	}
	avail, err := h.Ledger.Check(r.Context(), subjectID, qty, window)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": avail})
}

// Reserve creates a time-limited hold.
// POST /v1/reservations
func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Ledger == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "availability ledger not configured", nil)
		return
	}
	var payload struct {
		SubjectID  string `json:"subjectId"`
		Qty        int    `json:"qty"`
		Start      string `json:"start"`
		End        string `json:"end"`
		TTLSeconds int    `json:"ttlSeconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	subjectID, err := uuid.Parse(payload.SubjectID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid subject id", nil)
		return
	}
	window, err := parseWindow(payload.Start, payload.End)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "start and end must be RFC3339 timestamps", nil)
		return
	}
	ttl := time.Duration(payload.TTLSeconds) * time.Second
	held, err := h.Ledger.Reserve(r.Context(), subjectID, payload.Qty, window, ttl)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": held})
}

// Confirm promotes a hold into a confirmed reservation.
// POST /v1/reservations/{id}/confirm
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Ledger == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "availability ledger not configured", nil)
		return
	}
	reservationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid reservation id", nil)
		return
	}
	var payload struct {
		OrderID string `json:"orderId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	orderID, err := uuid.Parse(payload.OrderID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	confirmed, err := h.Ledger.Confirm(r.Context(), reservationID, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": confirmed})
}

// Release frees a reservation.
// POST /v1/reservations/{id}/release
func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Ledger == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "availability ledger not configured", nil)
		return
	}
	reservationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid reservation id", nil)
		return
	}
	released, err := h.Ledger.Release(r.Context(), reservationID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": released})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var capErr *CapacityError
	switch {
	case errors.As(err, &capErr):
		common.JSONError(w, http.StatusConflict, "INSUFFICIENT_AVAILABILITY", "requested quantity is not available for the window", map[string]any{
			"subjectId": capErr.SubjectID,
			"requested": capErr.Requested,
			"available": capErr.Available,
			"total":     capErr.Total,
		})
	case errors.Is(err, ErrSubjectNotFound), errors.Is(err, ErrReservationNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrReservationExpired):
		common.JSONError(w, http.StatusConflict, "RESERVATION_EXPIRED", err.Error(), nil)
	case errors.Is(err, ErrIllegalTransition):
		common.JSONError(w, http.StatusConflict, "ILLEGAL_TRANSITION", err.Error(), nil)
	case errors.Is(err, pricing.ErrInvalidQuantity), errors.Is(err, pricing.ErrInvalidWindow):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}

func parseWindow(start, end string) (pricing.Window, error) {
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return pricing.Window{}, err
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return pricing.Window{}, err
	}
	return pricing.Window{Start: s, End: e}, nil
}
