package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	errors "github.com/frahmantamala/topup-billing/internal"
	"github.com/frahmantamala/topup-billing/internal/core/events"
	"github.com/frahmantamala/topup-billing/internal/gateway"
	"github.com/frahmantamala/topup-billing/internal/transport"
)

// WebhookHandler is the boundary adapter for asynchronous payment-status
// notifications from the gateway. Three gates run in strict order (signature,
// payload, event type); nothing touches the store until all pass. Every
// branch answers HTTP 200 with a {success, message?} body, because the
// gateway retries on anything else.
type WebhookHandler struct {
	*transport.BaseHandler
	billingService ServiceAPI
	eventBus       *events.EventBus
	callbackSecret []byte
	logger         *slog.Logger
}

func NewWebhookHandler(baseHandler *transport.BaseHandler, billingService ServiceAPI, eventBus *events.EventBus, callbackSecret []byte, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler:    baseHandler,
		billingService: billingService,
		eventBus:       eventBus,
		callbackSecret: callbackSecret,
		logger:         logger,
	}
}

func (h *WebhookHandler) HandlePaymentNotification(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read notification body", "error", err)
		h.WriteJSON(w, http.StatusOK, NotificationResponse{
			Success: false,
			Message: "invalid data sent by payment gateway",
		})
		return
	}

	// signature gate: reject before any parsing or store access
	providedSignature := r.Header.Get(gateway.HeaderCallbackSignature)
	if !gateway.VerifyCallbackSignature(rawBody, providedSignature, h.callbackSecret) {
		h.logger.Warn("notification rejected: invalid signature",
			"remote_addr", r.RemoteAddr)
		h.WriteJSON(w, http.StatusOK, NotificationResponse{
			Success: false,
			Message: "invalid signature",
		})
		return
	}

	// payload gate: the gateway must send at least one field
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(rawBody, &fields); err != nil || len(fields) == 0 {
		h.logger.Warn("notification rejected: empty or malformed payload", "error", err)
		h.WriteJSON(w, http.StatusOK, NotificationResponse{
			Success: false,
			Message: "invalid data sent by payment gateway",
		})
		return
	}

	// event-type gate: only payment_status events carry ledger changes
	if event := r.Header.Get(gateway.HeaderCallbackEvent); event != gateway.EventPaymentStatus {
		h.logger.Info("notification ignored: unsupported callback event", "event", event)
		h.WriteJSON(w, http.StatusOK, NotificationResponse{
			Success: false,
			Message: "unsupported callback event, no action was taken",
		})
		return
	}

	var req PaymentNotificationRequest
	if err := json.Unmarshal(rawBody, &req); err != nil {
		h.logger.Error("failed to decode notification payload", "error", err)
		h.WriteJSON(w, http.StatusOK, NotificationResponse{
			Success: false,
			Message: "invalid data sent by payment gateway",
		})
		return
	}

	h.logger.Info("received payment notification",
		"merchant_ref", req.MerchantRef,
		"status", req.Status,
		"total_amount", req.TotalAmount,
		"fee_customer", req.FeeCustomer,
		"is_closed_payment", req.IsClosedPayment)

	// intermediate updates carry no settlement decision; acknowledge and stop
	if req.IsClosedPayment != 1 {
		h.WriteJSON(w, http.StatusOK, NotificationResponse{
			Success: true,
			Message: "notification acknowledged, no action taken",
		})
		return
	}

	newStatus := NormalizeStatus(req.Status)
	if !newStatus.Known() {
		h.logger.Warn("unrecognized payment status, persisting as-is",
			"merchant_ref", req.MerchantRef,
			"status", req.Status)
	}

	var paidAt *time.Time
	if req.PaidAt > 0 {
		t := time.Unix(req.PaidAt, 0).UTC()
		paidAt = &t
	}

	result, err := h.billingService.Reconcile(r.Context(), req.MerchantRef, newStatus, paidAt, req.TotalAmount, req.FeeCustomer)
	if err != nil {
		if appErr, ok := errors.IsAppError(err); ok && appErr.Code == errors.ErrCodeInvoiceNotFound {
			h.logger.Warn("notification for unknown invoice, possible stale or forged ref",
				"merchant_ref", req.MerchantRef)
			h.WriteJSON(w, http.StatusOK, NotificationResponse{
				Success: false,
				Message: fmt.Sprintf("invoice not found or already paid: %s", req.MerchantRef),
			})
			return
		}

		h.logger.Error("failed to reconcile notification",
			"error", err,
			"merchant_ref", req.MerchantRef,
			"status", newStatus)
		h.WriteJSON(w, http.StatusOK, NotificationResponse{
			Success: false,
			Message: "failed while updating invoice status",
		})
		return
	}

	h.publishReconcileEvents(result)

	h.WriteJSON(w, http.StatusOK, NotificationResponse{Success: true})
}

// publishReconcileEvents runs after the transaction committed; handlers are
// async, so the background context outlives the request.
func (h *WebhookHandler) publishReconcileEvents(result *ReconcileResult) {
	settled := events.NewInvoiceSettledEvent(
		result.Ref,
		result.AccountID,
		string(result.PreviousStatus),
		string(result.NewStatus),
	)
	h.eventBus.Publish(context.Background(), settled)

	if result.Action == BalanceNoop {
		return
	}

	adjusted := events.NewBalanceAdjustedEvent(
		result.Ref,
		result.AccountID,
		result.Action.String(),
		result.NetAmount,
	)
	h.eventBus.Publish(context.Background(), adjusted)
	h.logger.Info("published balance adjusted event",
		"event_id", adjusted.EventID(),
		"ref", result.Ref,
		"direction", result.Action.String())
}
