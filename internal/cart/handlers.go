package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-sewa/internal/availability"
	"github.com/noah-isme/backend-sewa/internal/catalog"
	"github.com/noah-isme/backend-sewa/internal/common"
	"github.com/noah-isme/backend-sewa/internal/pricing"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc *Service
}

type itemPayload struct {
	SubjectID string `json:"subjectId"`
	Qty       int    `json:"qty"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Unit      string `json:"unit"`
}

func (p itemPayload) parse() (uuid.UUID, int, pricing.Window, pricing.UnitKind, error) {
	subjectID, err := uuid.Parse(p.SubjectID)
	if err != nil {
		return uuid.Nil, 0, pricing.Window{}, "", errors.New("invalid subject id")
	}
	start, err := time.Parse(time.RFC3339, p.Start)
	if err != nil {
		return uuid.Nil, 0, pricing.Window{}, "", errors.New("start must be an RFC3339 timestamp")
	}
	end, err := time.Parse(time.RFC3339, p.End)
	if err != nil {
		return uuid.Nil, 0, pricing.Window{}, "", errors.New("end must be an RFC3339 timestamp")
	}
	unit := pricing.UnitKind(strings.ToLower(strings.TrimSpace(p.Unit)))
	if !unit.Valid() {
		return uuid.Nil, 0, pricing.Window{}, "", errors.New("unsupported billing unit")
	}
	return subjectID, p.Qty, pricing.Window{Start: start, End: end}, unit, nil
}

// Create creates or returns a guest cart.
// POST /v1/carts
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var payload struct {
		AnonID string `json:"anonId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	c, err := h.Svc.EnsureCart(r.Context(), payload.AnonID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": c})
}

// Get returns cart contents and a pricing preview.
// GET /v1/carts/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	mode := pricing.SettlementMode(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("settlement"))))
	if mode == "" {
		mode = pricing.SettleFull
	}
	if !mode.Valid() {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "settlement must be FULL or DEPOSIT", nil)
		return
	}
	summary, err := h.Svc.Summarize(r.Context(), cartID, mode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": summary})
}

// AddItem adds a priced rental line backed by a hold.
// POST /v1/carts/{id}/items
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	var payload itemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	subjectID, qty, window, unit, err := payload.parse()
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	item, err := h.Svc.AddItem(r.Context(), cartID, subjectID, qty, window, unit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": item})
}

// UpdateItem reprices a line for a new quantity or window.
// PUT /v1/carts/{id}/items/{itemId}
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	var payload itemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	item, err := h.Svc.Store.GetItem(r.Context(), cartID, itemID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if payload.SubjectID == "" {
		payload.SubjectID = item.Line.SubjectID.String()
	}
	if payload.Unit == "" {
		payload.Unit = string(item.Line.Unit)
	}
	if payload.Start == "" {
		payload.Start = item.Line.Window.Start.Format(time.RFC3339)
	}
	if payload.End == "" {
		payload.End = item.Line.Window.End.Format(time.RFC3339)
	}
	_, qty, window, unit, err := payload.parse()
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	updated, err := h.Svc.UpdateItem(r.Context(), cartID, itemID, qty, window, unit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// RemoveItem drops a line and releases its hold.
// DELETE /v1/carts/{id}/items/{itemId}
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), cartID, itemID); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"removed": true}})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var capErr *availability.CapacityError
	var appErr *common.AppError
	switch {
	case errors.As(err, &capErr):
		common.JSONError(w, http.StatusConflict, "INSUFFICIENT_AVAILABILITY", "requested quantity is not available for the window", map[string]any{
			"subjectId": capErr.SubjectID,
			"requested": capErr.Requested,
			"available": capErr.Available,
			"total":     capErr.Total,
		})
	case errors.As(err, &appErr):
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
	case errors.Is(err, ErrNotFound), errors.Is(err, catalog.ErrNotFound), errors.Is(err, availability.ErrSubjectNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrExpired):
		common.JSONError(w, http.StatusGone, "CART_EXPIRED", err.Error(), nil)
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, pricing.ErrInvalidQuantity),
		errors.Is(err, pricing.ErrInvalidWindow),
		errors.Is(err, pricing.ErrUnsupportedUnit),
		errors.Is(err, pricing.ErrRateNotConfigured):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}
