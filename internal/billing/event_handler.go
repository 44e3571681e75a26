package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/topup-billing/internal/core/events"
)

// EventHandler consumes billing events for the operator-facing audit trail.
// It is a side channel: reconciliation outcomes never depend on it.
type EventHandler struct {
	logger *slog.Logger
}

func NewEventHandler(logger *slog.Logger) *EventHandler {
	return &EventHandler{logger: logger}
}

func (h *EventHandler) HandleInvoiceSettled(ctx context.Context, event events.Event) error {
	settled, ok := event.(*events.InvoiceSettledEvent)
	if !ok {
		return fmt.Errorf("expected InvoiceSettledEvent, got %T", event)
	}

	h.logger.Info("audit: invoice settled",
		"event_id", settled.EventID(),
		"ref", settled.Ref,
		"account_id", settled.AccountID,
		"previous_status", settled.PreviousStatus,
		"new_status", settled.NewStatus)

	return nil
}

func (h *EventHandler) HandleBalanceAdjusted(ctx context.Context, event events.Event) error {
	adjusted, ok := event.(*events.BalanceAdjustedEvent)
	if !ok {
		return fmt.Errorf("expected BalanceAdjustedEvent, got %T", event)
	}

	h.logger.Info("audit: balance adjusted",
		"event_id", adjusted.EventID(),
		"ref", adjusted.Ref,
		"account_id", adjusted.AccountID,
		"direction", adjusted.Direction,
		"net_amount", adjusted.NetAmount)

	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypeInvoiceSettled, h.HandleInvoiceSettled)
	eventBus.Subscribe(events.EventTypeBalanceAdjusted, h.HandleBalanceAdjusted)

	h.logger.Info("billing event handlers registered",
		"handlers", []string{events.EventTypeInvoiceSettled, events.EventTypeBalanceAdjusted})
}
