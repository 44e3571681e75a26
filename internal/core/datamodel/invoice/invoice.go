package invoice

import "time"

const TypeTopup = "TOPUP"

// Invoice is one topup attempt, correlated with the gateway through Ref
// (the merchant_ref of callbacks). Ref is immutable once created and the row
// is never deleted; terminal statuses stay behind as the audit trail.
//
// TotalAmount is not a column: it is the SUM of the line items and is filled
// by list queries through a subselect.
type Invoice struct {
	ID            int64      `json:"id" gorm:"primaryKey"`
	Ref           string     `json:"ref" gorm:"column:ref;not null;uniqueIndex"`
	AccountID     int64      `json:"account_id" gorm:"column:account_id;not null;index"`
	Type          string     `json:"type" gorm:"column:type;not null;default:TOPUP"`
	Title         string     `json:"title" gorm:"column:title"`
	PaymentMethod string     `json:"payment_method" gorm:"column:payment_method"`
	Status        string     `json:"status" gorm:"column:status;not null;default:UNPAID"`
	FeeCustomer   int64      `json:"fee_customer" gorm:"column:fee_customer;not null;default:0"`
	PaidAt        *time.Time `json:"paid_at,omitempty" gorm:"column:paid_at"`
	ExpiredAt     *time.Time `json:"expired_at,omitempty" gorm:"column:expired_at"`
	CreatedAt     time.Time  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt     time.Time  `json:"updated_at" gorm:"column:updated_at"`

	TotalAmount int64 `json:"total_amount" gorm:"->;-:migration"`
}

func (Invoice) TableName() string {
	return "invoices"
}

// InvoiceItem is one line of an invoice; the topup amount and the gateway
// service cost are separate lines, so the invoice total stays derived.
type InvoiceItem struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	InvoiceID  int64     `json:"invoice_id" gorm:"column:invoice_id;not null;index"`
	Title      string    `json:"title" gorm:"column:title;not null"`
	Qty        int       `json:"qty" gorm:"column:qty;not null;default:1"`
	Price      int64     `json:"price" gorm:"column:price;not null"`
	TotalPrice int64     `json:"total_price" gorm:"column:total_price;not null"`
	CreatedAt  time.Time `json:"created_at" gorm:"column:created_at"`
}

func (InvoiceItem) TableName() string {
	return "invoice_items"
}
