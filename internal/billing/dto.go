package billing

import (
	"github.com/frahmantamala/topup-billing/internal/core/common/validation"
)

// CreateTopupDTO is the request payload for a gateway topup invoice.
type CreateTopupDTO struct {
	AccountID   int64  `json:"account_id"`
	AmountIDR   int64  `json:"amount_idr"`
	PaymentCode string `json:"payment_code"`
}

func (d *CreateTopupDTO) Validate() error {
	if appErr := validation.ValidateTopupAmount(d.AmountIDR); appErr != nil {
		return appErr
	}

	validator := validation.NewValidator()
	validator.Field("account_id", d.AccountID).Required()
	validator.Field("payment_code", d.PaymentCode).Required()

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// CreateManualTopupDTO is the request payload for a manual (bank transfer)
// topup invoice. No payment code: the operator settles it by hand.
type CreateManualTopupDTO struct {
	AccountID int64 `json:"account_id"`
	AmountIDR int64 `json:"amount_idr"`
}

func (d *CreateManualTopupDTO) Validate() error {
	if appErr := validation.ValidateTopupAmount(d.AmountIDR); appErr != nil {
		return appErr
	}

	validator := validation.NewValidator()
	validator.Field("account_id", d.AccountID).Required()

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// PaymentNotificationRequest is the flat callback body sent by the gateway.
// paid_at is unix seconds, zero meaning not paid; is_closed_payment is a
// boolean-as-int where 1 marks the final settlement event.
type PaymentNotificationRequest struct {
	MerchantRef     string `json:"merchant_ref"`
	Status          string `json:"status"`
	PaidAt          int64  `json:"paid_at"`
	TotalAmount     int64  `json:"total_amount"`
	FeeCustomer     int64  `json:"fee_customer"`
	IsClosedPayment int    `json:"is_closed_payment"`
}

// NotificationResponse is the body returned to the gateway for every callback
// branch. Always sent with HTTP 200; rejection is expressed via Success.
type NotificationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
