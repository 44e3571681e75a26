package billing

import (
	"strings"

	errors "github.com/frahmantamala/topup-billing/internal"
)

// Status is the invoice lifecycle state reported by the payment gateway.
// Values arriving on callbacks are uppercased before use; values outside the
// known set are persisted as-is but never move money.
type Status string

const (
	StatusUnpaid     Status = "UNPAID"
	StatusPaid       Status = "PAID"
	StatusProcessing Status = "PROCESSING"
	StatusRefund     Status = "REFUND"
	StatusExpired    Status = "EXPIRED"
	StatusFailed     Status = "FAILED"
)

func NormalizeStatus(raw string) Status {
	return Status(strings.ToUpper(strings.TrimSpace(raw)))
}

func (s Status) Known() bool {
	switch s {
	case StatusUnpaid, StatusPaid, StatusProcessing, StatusRefund, StatusExpired, StatusFailed:
		return true
	}
	return false
}

// BalanceAction is the outcome of one status transition on the owner balance.
type BalanceAction int

const (
	BalanceNoop BalanceAction = iota
	BalanceCredit
	BalanceDebit
)

func (a BalanceAction) String() string {
	switch a {
	case BalanceCredit:
		return "credit"
	case BalanceDebit:
		return "debit"
	default:
		return "noop"
	}
}

// reversalStatuses are the terminal states that undo a previous credit.
var reversalStatuses = map[Status]struct{}{
	StatusRefund:  {},
	StatusExpired: {},
	StatusFailed:  {},
}

// TransitionAction is the previousStatus x newStatus decision table.
// Credit happens only on the first entry into PAID, debit only on the first
// transition out of PAID into a reversal state; everything else, including
// replays and unknown statuses, leaves the balance alone.
func TransitionAction(previous, next Status) BalanceAction {
	if next == StatusPaid && previous != StatusPaid {
		return BalanceCredit
	}
	if _, reversal := reversalStatuses[next]; reversal && previous == StatusPaid {
		return BalanceDebit
	}
	return BalanceNoop
}

var (
	ErrInvoiceNotFound      = errors.NewNotFoundError("invoice not found or already paid", errors.ErrCodeInvoiceNotFound)
	ErrInvalidInvoiceStatus = errors.NewValidationError("invoice cannot be updated in its current status", errors.ErrCodeInvalidInvoiceStatus)
	ErrTopupLimitReached    = errors.NewConflictError("you still have pending topups, please pay the previous ones first", errors.ErrCodeTopupLimitReached)
	ErrUpdateFailed = &errors.AppError{
		Type:       errors.ErrorTypeInternal,
		Code:       errors.ErrCodeUpdateFailed,
		Message:    "failed while updating invoice status",
		StatusCode: 500,
	}
)
