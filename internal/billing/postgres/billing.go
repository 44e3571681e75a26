package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	internal "github.com/frahmantamala/topup-billing/internal"
	"github.com/frahmantamala/topup-billing/internal/billing"
	"github.com/frahmantamala/topup-billing/internal/core/datamodel/account"
	"github.com/frahmantamala/topup-billing/internal/core/datamodel/invoice"
)

// totalAmountSubquery derives the invoice total from its line items so the
// invoices table never stores a figure that can drift from the items.
const totalAmountSubquery = "(SELECT COALESCE(SUM(total_price), 0) FROM invoice_items WHERE invoice_items.invoice_id = invoices.id) AS total_amount"

// BillingRepository implements the billing.RepositoryAPI interface using GORM
type BillingRepository struct {
	db        *gorm.DB
	txTimeout time.Duration
}

// NewBillingRepository creates a new billing repository. txTimeout bounds the
// reconciliation transaction; zero falls back to the default.
func NewBillingRepository(db *gorm.DB, txTimeout time.Duration) billing.RepositoryAPI {
	return &BillingRepository{db: db, txTimeout: txTimeout}
}

// CreateInvoice saves an invoice and its line items in one transaction.
func (r *BillingRepository) CreateInvoice(inv *invoice.Invoice, items []invoice.InvoiceItem) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(inv).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].InvoiceID = inv.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByRef retrieves an invoice by its merchant ref
func (r *BillingRepository) GetByRef(ref string) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	err := r.db.Select("invoices.*, "+totalAmountSubquery).
		Where("ref = ?", ref).
		First(&inv).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, billing.ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// ListByAccount retrieves invoices for an account with pagination
func (r *BillingRepository) ListByAccount(accountID int64, limit, offset int) ([]*invoice.Invoice, error) {
	var invoices []*invoice.Invoice
	err := r.db.Select("invoices.*, "+totalAmountSubquery).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&invoices).Error
	return invoices, err
}

// ListWaitingPayments retrieves unexpired UNPAID topup invoices for an account
func (r *BillingRepository) ListWaitingPayments(accountID int64) ([]*invoice.Invoice, error) {
	var invoices []*invoice.Invoice
	err := r.db.Select("invoices.*, "+totalAmountSubquery).
		Where("account_id = ?", accountID).
		Where("type = ?", invoice.TypeTopup).
		Where("status = ?", string(billing.StatusUnpaid)).
		Where("expired_at > ?", time.Now().UTC()).
		Order("created_at DESC").
		Find(&invoices).Error
	return invoices, err
}

// CountUnpaidSince counts UNPAID topup invoices an account opened since the
// given time. Used for the daily pending-topup cap.
func (r *BillingRepository) CountUnpaidSince(accountID int64, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&invoice.Invoice{}).
		Where("account_id = ?", accountID).
		Where("type = ?", invoice.TypeTopup).
		Where("status = ?", string(billing.StatusUnpaid)).
		Where("created_at >= ?", since).
		Count(&count).Error
	return count, err
}

// MarkProcessing moves an invoice from UNPAID to PROCESSING. The status guard
// in the WHERE clause makes the confirm step a no-op if the gateway settled
// the invoice in the meantime.
func (r *BillingRepository) MarkProcessing(invoiceID int64) error {
	res := r.db.Model(&invoice.Invoice{}).
		Where("id = ?", invoiceID).
		Where("status = ?", string(billing.StatusUnpaid)).
		Updates(map[string]interface{}{
			"status":     string(billing.StatusProcessing),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return billing.ErrInvalidInvoiceStatus
	}
	return nil
}

// WithInvoiceTx loads the invoice by ref under a row lock and runs fn inside
// the same transaction. SQLite has no FOR UPDATE but serializes writers, so
// the lock clause only applies on postgres.
func (r *BillingRepository) WithInvoiceTx(ctx context.Context, ref string, fn func(tx billing.InvoiceTx) error) error {
	ctx, cancel := internal.WithTimeout(ctx, r.txTimeout)
	defer cancel()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Where("ref = ?", ref)
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var inv invoice.Invoice
		if err := query.First(&inv).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return billing.ErrInvoiceNotFound
			}
			return err
		}

		return fn(&invoiceTx{tx: tx, inv: &inv})
	})
}

// invoiceTx scopes reconciliation writes to one locked invoice row.
type invoiceTx struct {
	tx  *gorm.DB
	inv *invoice.Invoice
}

func (t *invoiceTx) Invoice() *invoice.Invoice {
	return t.inv
}

func (t *invoiceTx) UpdateStatus(status string, paidAt *time.Time, feeCustomer int64) error {
	updates := map[string]interface{}{
		"status":       status,
		"fee_customer": feeCustomer,
		"updated_at":   time.Now(),
	}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}

	res := t.tx.Model(&invoice.Invoice{}).
		Where("id = ?", t.inv.ID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return billing.ErrUpdateFailed
	}
	return nil
}

func (t *invoiceTx) IncrementBalance(accountID int64, amount int64) error {
	return t.adjustBalance(accountID, gorm.Expr("balance + ?", amount))
}

func (t *invoiceTx) DecrementBalance(accountID int64, amount int64) error {
	return t.adjustBalance(accountID, gorm.Expr("balance - ?", amount))
}

func (t *invoiceTx) adjustBalance(accountID int64, expr interface{}) error {
	res := t.tx.Model(&account.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"balance":    expr,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.NewNotFoundError("account not found", internal.ErrCodeAccountNotFound)
	}
	return nil
}
