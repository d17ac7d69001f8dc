package checkout

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-sewa/internal/availability"
	"github.com/noah-isme/backend-sewa/internal/cart"
	"github.com/noah-isme/backend-sewa/internal/common"
	"github.com/noah-isme/backend-sewa/internal/pricing"
)

// Handler wires checkout to HTTP.
type Handler struct {
	Svc *Service
}

// PlaceOrder confirms a cart into an order.
// POST /v1/checkout
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	var payload struct {
		CartID         string        `json:"cartId"`
		Settlement     string        `json:"settlement"`
		DeliveryCharge pricing.Money `json:"deliveryCharge"`
		Discount       pricing.Money `json:"discount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	cartID, err := uuid.Parse(payload.CartID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	mode := pricing.SettlementMode(strings.ToUpper(strings.TrimSpace(payload.Settlement)))
	if mode != "" && !mode.Valid() {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "settlement must be FULL or DEPOSIT", nil)
		return
	}
	o, err := h.Svc.PlaceOrder(r.Context(), Input{
		CartID:         cartID,
		Settlement:     mode,
		DeliveryCharge: payload.DeliveryCharge,
		Discount:       payload.Discount,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": o})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrNotFound), errors.Is(err, availability.ErrReservationNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, cart.ErrExpired):
		common.JSONError(w, http.StatusGone, "CART_EXPIRED", err.Error(), nil)
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, availability.ErrReservationExpired):
		common.JSONError(w, http.StatusConflict, "RESERVATION_EXPIRED", "a hold lapsed before checkout; re-add the line", nil)
	case errors.Is(err, availability.ErrIllegalTransition):
		common.JSONError(w, http.StatusConflict, "ILLEGAL_TRANSITION", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}
