package billing

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	errors "github.com/frahmantamala/topup-billing/internal"
	"github.com/frahmantamala/topup-billing/internal/transport"
	"github.com/frahmantamala/topup-billing/pkg/logger"
)

// Handler serves the topup and invoice-listing endpoints. Authentication is
// handled by the fronting application; account identity arrives explicitly in
// the payload or query.
type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     service,
	}
}

// CreateTopup handles POST /api/v1/billing/topup
func (h *Handler) CreateTopup(w http.ResponseWriter, r *http.Request) {
	var dto CreateTopupDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("CreateTopup: invalid request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	inv, err := h.Service.CreateTopup(&dto)
	if err != nil {
		h.Logger.Error("CreateTopup: service error", "error", err, "account_id", dto.AccountID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("CreateTopup: topup invoice created",
		"ref", inv.Ref,
		"account_id", dto.AccountID,
		"amount", dto.AmountIDR)

	h.WriteJSON(w, http.StatusCreated, inv)
}

// CreateManualTopup handles POST /api/v1/billing/topup/manual
func (h *Handler) CreateManualTopup(w http.ResponseWriter, r *http.Request) {
	var dto CreateManualTopupDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("CreateManualTopup: invalid request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	inv, err := h.Service.CreateManualTopup(&dto)
	if err != nil {
		h.Logger.Error("CreateManualTopup: service error", "error", err, "account_id", dto.AccountID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, inv)
}

// ConfirmManualTopup handles POST /api/v1/billing/topup/manual/{ref}/confirm
func (h *Handler) ConfirmManualTopup(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	if ref == "" {
		h.WriteError(w, http.StatusBadRequest, "invoice ref is required")
		return
	}

	accountID, ok := h.accountIDFromQuery(w, r)
	if !ok {
		return
	}

	if err := h.Service.ConfirmManualTopup(accountID, ref); err != nil {
		h.Logger.Error("ConfirmManualTopup: service error", "error", err, "ref", ref, "account_id", accountID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "processing"})
}

// ListInvoices handles GET /api/v1/billing/invoices
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountIDFromQuery(w, r)
	if !ok {
		return
	}

	limit := 30
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	invoices, err := h.Service.ListInvoices(accountID, limit, offset)
	if err != nil {
		h.Logger.Error("ListInvoices: service error", "error", err, "account_id", accountID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"invoices": invoices,
		"limit":    limit,
		"offset":   offset,
	})
}

// ListWaitingPayments handles GET /api/v1/billing/invoices/waiting
func (h *Handler) ListWaitingPayments(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountIDFromQuery(w, r)
	if !ok {
		return
	}

	invoices, err := h.Service.WaitingPayments(accountID)
	if err != nil {
		h.Logger.Error("ListWaitingPayments: service error", "error", err, "account_id", accountID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"invoices": invoices,
	})
}

func (h *Handler) accountIDFromQuery(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("account_id")
	accountID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || accountID <= 0 {
		h.Logger.Error("invalid account_id query parameter", "account_id", raw)
		h.WriteError(w, http.StatusBadRequest, "valid account_id is required")
		return 0, false
	}
	return accountID, true
}
