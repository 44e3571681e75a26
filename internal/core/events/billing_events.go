package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeInvoiceSettled  = "invoice.settled"
	EventTypeBalanceAdjusted = "balance.adjusted"
)

type InvoiceSettledEvent struct {
	BaseEvent
	Ref            string `json:"ref"`
	AccountID      int64  `json:"account_id"`
	PreviousStatus string `json:"previous_status"`
	NewStatus      string `json:"new_status"`
}

func NewInvoiceSettledEvent(ref string, accountID int64, previousStatus, newStatus string) *InvoiceSettledEvent {
	return &InvoiceSettledEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeInvoiceSettled,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"ref":             ref,
				"account_id":      accountID,
				"previous_status": previousStatus,
				"new_status":      newStatus,
			},
		},
		Ref:            ref,
		AccountID:      accountID,
		PreviousStatus: previousStatus,
		NewStatus:      newStatus,
	}
}

type BalanceAdjustedEvent struct {
	BaseEvent
	Ref       string `json:"ref"`
	AccountID int64  `json:"account_id"`
	Direction string `json:"direction"`
	NetAmount int64  `json:"net_amount"`
}

func NewBalanceAdjustedEvent(ref string, accountID int64, direction string, netAmount int64) *BalanceAdjustedEvent {
	return &BalanceAdjustedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeBalanceAdjusted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"ref":        ref,
				"account_id": accountID,
				"direction":  direction,
				"net_amount": netAmount,
			},
		},
		Ref:       ref,
		AccountID: accountID,
		Direction: direction,
		NetAmount: netAmount,
	}
}
