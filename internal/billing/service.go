package billing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	errors "github.com/frahmantamala/topup-billing/internal"
	"github.com/frahmantamala/topup-billing/internal/core/datamodel/invoice"
)

const (
	topupExpiry       = time.Hour
	manualTopupExpiry = 168 * time.Hour

	// maxPendingTopups is the per-day cap of UNPAID topup invoices an account
	// may accumulate before it must settle the previous ones.
	maxPendingTopups = 3
)

// InvoiceTx is the transactional context handed to reconciliation steps. It
// is scoped to one row-locked invoice and its owner's balance; the
// transaction commits or rolls back as a unit.
type InvoiceTx interface {
	Invoice() *invoice.Invoice
	UpdateStatus(status string, paidAt *time.Time, feeCustomer int64) error
	IncrementBalance(accountID int64, amount int64) error
	DecrementBalance(accountID int64, amount int64) error
}

// RepositoryAPI is the data access surface for billing.
type RepositoryAPI interface {
	CreateInvoice(inv *invoice.Invoice, items []invoice.InvoiceItem) error
	GetByRef(ref string) (*invoice.Invoice, error)
	ListByAccount(accountID int64, limit, offset int) ([]*invoice.Invoice, error)
	ListWaitingPayments(accountID int64) ([]*invoice.Invoice, error)
	CountUnpaidSince(accountID int64, since time.Time) (int64, error)
	MarkProcessing(invoiceID int64) error
	WithInvoiceTx(ctx context.Context, ref string, fn func(tx InvoiceTx) error) error
}

// ServiceAPI is the surface handlers depend on.
type ServiceAPI interface {
	Reconcile(ctx context.Context, ref string, newStatus Status, paidAt *time.Time, totalAmount, feeCustomer int64) (*ReconcileResult, error)
	CreateTopup(dto *CreateTopupDTO) (*invoice.Invoice, error)
	CreateManualTopup(dto *CreateManualTopupDTO) (*invoice.Invoice, error)
	ConfirmManualTopup(accountID int64, ref string) error
	ListInvoices(accountID int64, limit, offset int) ([]*invoice.Invoice, error)
	WaitingPayments(accountID int64) ([]*invoice.Invoice, error)
}

// Service holds the billing business logic: topup invoice creation and the
// reconciliation of gateway payment notifications against the ledger.
type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// ReconcileResult reports what one notification did to the ledger.
type ReconcileResult struct {
	Ref            string
	AccountID      int64
	PreviousStatus Status
	NewStatus      Status
	NetAmount      int64
	Action         BalanceAction
}

// Reconcile applies one verified payment notification to the invoice and its
// owner's balance inside a single store transaction. The previous status is
// read from the persisted row under a row lock, so concurrent notifications
// for the same ref serialize and the credit/debit decision always sees a
// consistent state. Replaying a notification is a balance no-op because the
// previous status already equals the new one.
func (s *Service) Reconcile(ctx context.Context, ref string, newStatus Status, paidAt *time.Time, totalAmount, feeCustomer int64) (*ReconcileResult, error) {
	netAmount := totalAmount - feeCustomer

	var result *ReconcileResult
	err := s.repo.WithInvoiceTx(ctx, ref, func(tx InvoiceTx) error {
		inv := tx.Invoice()

		// raw persisted value, not a normalized copy: unknown statuses that
		// were passed through earlier must still compare correctly
		previousStatus := Status(inv.Status)

		if err := tx.UpdateStatus(string(newStatus), paidAt, feeCustomer); err != nil {
			return fmt.Errorf("update invoice %s: %w", ref, err)
		}

		action := TransitionAction(previousStatus, newStatus)
		switch action {
		case BalanceCredit:
			if err := tx.IncrementBalance(inv.AccountID, netAmount); err != nil {
				return fmt.Errorf("credit account %d: %w", inv.AccountID, err)
			}
		case BalanceDebit:
			if err := tx.DecrementBalance(inv.AccountID, netAmount); err != nil {
				return fmt.Errorf("debit account %d: %w", inv.AccountID, err)
			}
		}

		result = &ReconcileResult{
			Ref:            ref,
			AccountID:      inv.AccountID,
			PreviousStatus: previousStatus,
			NewStatus:      newStatus,
			NetAmount:      netAmount,
			Action:         action,
		}
		return nil
	})
	if err != nil {
		if appErr, ok := errors.IsAppError(err); ok {
			return nil, appErr
		}
		s.logger.Error("reconciliation transaction failed",
			"error", err,
			"ref", ref,
			"new_status", newStatus)
		return nil, ErrUpdateFailed.WithCause(err)
	}

	s.logger.Info("notification reconciled",
		"ref", ref,
		"account_id", result.AccountID,
		"previous_status", result.PreviousStatus,
		"new_status", result.NewStatus,
		"balance_action", result.Action.String(),
		"net_amount", result.NetAmount)

	return result, nil
}

// CreateTopup opens a gateway topup invoice in UNPAID status. The checkout
// itself happens outside this service; callbacks later settle the invoice.
func (s *Service) CreateTopup(dto *CreateTopupDTO) (*invoice.Invoice, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Error("topup validation failed", "error", err, "account_id", dto.AccountID)
		return nil, err
	}

	if err := s.checkPendingLimit(dto.AccountID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	expiredAt := now.Add(topupExpiry)

	inv := &invoice.Invoice{
		Ref:           newTopupRef("TOP"),
		AccountID:     dto.AccountID,
		Type:          invoice.TypeTopup,
		Title:         "Topup Balance",
		PaymentMethod: fmt.Sprintf("TRIPAY.%s", strings.ToUpper(dto.PaymentCode)),
		Status:        string(StatusUnpaid),
		ExpiredAt:     &expiredAt,
	}

	items := []invoice.InvoiceItem{
		{
			Title:      "Topup Balance",
			Qty:        1,
			Price:      dto.AmountIDR,
			TotalPrice: dto.AmountIDR,
		},
	}

	if err := s.repo.CreateInvoice(inv, items); err != nil {
		s.logger.Error("failed to create topup invoice", "error", err, "account_id", dto.AccountID)
		return nil, err
	}
	inv.TotalAmount = dto.AmountIDR

	s.logger.Info("topup invoice created",
		"ref", inv.Ref,
		"account_id", dto.AccountID,
		"amount", dto.AmountIDR,
		"payment_method", inv.PaymentMethod)

	return inv, nil
}

// CreateManualTopup opens a manual-transfer topup invoice with a long expiry;
// an operator confirms it later, which moves it to PROCESSING.
func (s *Service) CreateManualTopup(dto *CreateManualTopupDTO) (*invoice.Invoice, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Error("manual topup validation failed", "error", err, "account_id", dto.AccountID)
		return nil, err
	}

	if err := s.checkPendingLimit(dto.AccountID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	expiredAt := now.Add(manualTopupExpiry)

	inv := &invoice.Invoice{
		Ref:           newTopupRef("TOPMANUAL"),
		AccountID:     dto.AccountID,
		Type:          invoice.TypeTopup,
		Title:         "Topup Balance",
		PaymentMethod: "MANUAL.MANUAL TOPUP",
		Status:        string(StatusUnpaid),
		ExpiredAt:     &expiredAt,
	}

	items := []invoice.InvoiceItem{
		{
			Title:      "Topup Balance",
			Qty:        1,
			Price:      dto.AmountIDR,
			TotalPrice: dto.AmountIDR,
		},
	}

	if err := s.repo.CreateInvoice(inv, items); err != nil {
		s.logger.Error("failed to create manual topup invoice", "error", err, "account_id", dto.AccountID)
		return nil, err
	}
	inv.TotalAmount = dto.AmountIDR

	s.logger.Info("manual topup invoice created",
		"ref", inv.Ref,
		"account_id", dto.AccountID,
		"amount", dto.AmountIDR)

	return inv, nil
}

// ConfirmManualTopup moves an unpaid manual topup into PROCESSING after the
// member reports the transfer was made.
func (s *Service) ConfirmManualTopup(accountID int64, ref string) error {
	inv, err := s.repo.GetByRef(ref)
	if err != nil {
		s.logger.Error("manual topup not found for confirmation", "error", err, "ref", ref)
		return ErrInvoiceNotFound
	}

	if inv.AccountID != accountID {
		s.logger.Warn("manual topup confirmation for foreign invoice",
			"ref", ref,
			"account_id", accountID,
			"invoice_account_id", inv.AccountID)
		return ErrInvoiceNotFound
	}

	if !strings.HasPrefix(inv.Ref, "TOPMANUAL") || Status(inv.Status) != StatusUnpaid {
		s.logger.Warn("manual topup cannot be confirmed in current state",
			"ref", ref,
			"status", inv.Status)
		return ErrInvalidInvoiceStatus
	}

	if inv.ExpiredAt != nil && inv.ExpiredAt.Before(time.Now().UTC()) {
		s.logger.Warn("manual topup already expired", "ref", ref, "expired_at", inv.ExpiredAt)
		return ErrInvalidInvoiceStatus
	}

	if err := s.repo.MarkProcessing(inv.ID); err != nil {
		s.logger.Error("failed to mark manual topup processing", "error", err, "ref", ref)
		return err
	}

	s.logger.Info("manual topup confirmed", "ref", ref, "account_id", accountID)
	return nil
}

func (s *Service) ListInvoices(accountID int64, limit, offset int) ([]*invoice.Invoice, error) {
	invoices, err := s.repo.ListByAccount(accountID, limit, offset)
	if err != nil {
		s.logger.Error("failed to list invoices", "error", err, "account_id", accountID)
		return nil, err
	}
	return invoices, nil
}

func (s *Service) WaitingPayments(accountID int64) ([]*invoice.Invoice, error) {
	invoices, err := s.repo.ListWaitingPayments(accountID)
	if err != nil {
		s.logger.Error("failed to list waiting payments", "error", err, "account_id", accountID)
		return nil, err
	}
	return invoices, nil
}

func (s *Service) checkPendingLimit(accountID int64) error {
	startOfDay := time.Now().UTC().Truncate(24 * time.Hour)
	pending, err := s.repo.CountUnpaidSince(accountID, startOfDay)
	if err != nil {
		s.logger.Error("failed to count pending topups", "error", err, "account_id", accountID)
		return err
	}
	if pending >= maxPendingTopups {
		s.logger.Warn("topup limit reached", "account_id", accountID, "pending", pending)
		return ErrTopupLimitReached
	}
	return nil
}

func newTopupRef(prefix string) string {
	return fmt.Sprintf("%s%s%d", prefix, uuid.NewString(), time.Now().Unix())
}
