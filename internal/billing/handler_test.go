package billing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/topup-billing/internal/billing"
	"github.com/frahmantamala/topup-billing/internal/core/datamodel/invoice"
)

type mockBillingService struct {
	reconcileError     error
	createTopupError   error
	createManualError  error
	confirmError       error
	listError          error
	invoice            *invoice.Invoice
	invoices           []*invoice.Invoice
	confirmedRef       string
	confirmedAccountID int64
}

func (m *mockBillingService) Reconcile(ctx context.Context, ref string, newStatus billing.Status, paidAt *time.Time, totalAmount, feeCustomer int64) (*billing.ReconcileResult, error) {
	if m.reconcileError != nil {
		return nil, m.reconcileError
	}
	return &billing.ReconcileResult{Ref: ref, NewStatus: newStatus}, nil
}

func (m *mockBillingService) CreateTopup(dto *billing.CreateTopupDTO) (*invoice.Invoice, error) {
	if m.createTopupError != nil {
		return nil, m.createTopupError
	}
	return m.invoice, nil
}

func (m *mockBillingService) CreateManualTopup(dto *billing.CreateManualTopupDTO) (*invoice.Invoice, error) {
	if m.createManualError != nil {
		return nil, m.createManualError
	}
	return m.invoice, nil
}

func (m *mockBillingService) ConfirmManualTopup(accountID int64, ref string) error {
	if m.confirmError != nil {
		return m.confirmError
	}
	m.confirmedRef = ref
	m.confirmedAccountID = accountID
	return nil
}

func (m *mockBillingService) ListInvoices(accountID int64, limit, offset int) ([]*invoice.Invoice, error) {
	if m.listError != nil {
		return nil, m.listError
	}
	return m.invoices, nil
}

func (m *mockBillingService) WaitingPayments(accountID int64) ([]*invoice.Invoice, error) {
	if m.listError != nil {
		return nil, m.listError
	}
	return m.invoices, nil
}

var _ = Describe("BillingHandler", func() {
	var (
		handler     *billing.Handler
		mockService *mockBillingService
		router      *chi.Mux
	)

	BeforeEach(func() {
		mockService = &mockBillingService{
			invoice: &invoice.Invoice{
				ID:          1,
				Ref:         "TOPabc123",
				AccountID:   7,
				Status:      "UNPAID",
				TotalAmount: 10000,
			},
			invoices: []*invoice.Invoice{},
		}
		handler = billing.NewHandler(mockService)

		router = chi.NewRouter()
		router.Post("/billing/topup", handler.CreateTopup)
		router.Post("/billing/topup/manual", handler.CreateManualTopup)
		router.Post("/billing/topup/manual/{ref}/confirm", handler.ConfirmManualTopup)
		router.Get("/billing/invoices", handler.ListInvoices)
		router.Get("/billing/invoices/waiting", handler.ListWaitingPayments)
	})

	Describe("CreateTopup", func() {
		It("should answer 201 with the created invoice", func() {
			body, _ := json.Marshal(map[string]interface{}{
				"account_id":   7,
				"amount_idr":   10000,
				"payment_code": "QRIS",
			})

			req := httptest.NewRequest(http.MethodPost, "/billing/topup", bytes.NewReader(body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusCreated))

			var created invoice.Invoice
			Expect(json.Unmarshal(rec.Body.Bytes(), &created)).To(Succeed())
			Expect(created.Ref).To(Equal("TOPabc123"))
		})

		It("should answer 400 on a malformed body", func() {
			req := httptest.NewRequest(http.MethodPost, "/billing/topup", bytes.NewReader([]byte("{")))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should map service errors through the error taxonomy", func() {
			mockService.createTopupError = billing.ErrTopupLimitReached

			body, _ := json.Marshal(map[string]interface{}{
				"account_id":   7,
				"amount_idr":   10000,
				"payment_code": "QRIS",
			})
			req := httptest.NewRequest(http.MethodPost, "/billing/topup", bytes.NewReader(body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusConflict))
		})
	})

	Describe("ConfirmManualTopup", func() {
		It("should pass the ref and account through to the service", func() {
			req := httptest.NewRequest(http.MethodPost, "/billing/topup/manual/TOPMANUALxyz/confirm?account_id=7", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(mockService.confirmedRef).To(Equal("TOPMANUALxyz"))
			Expect(mockService.confirmedAccountID).To(Equal(int64(7)))
		})

		It("should answer 400 without an account_id", func() {
			req := httptest.NewRequest(http.MethodPost, "/billing/topup/manual/TOPMANUALxyz/confirm", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should answer 404 when the service cannot find the invoice", func() {
			mockService.confirmError = billing.ErrInvoiceNotFound

			req := httptest.NewRequest(http.MethodPost, "/billing/topup/manual/TOPMANUALxyz/confirm?account_id=7", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("ListInvoices", func() {
		It("should require an account_id", func() {
			req := httptest.NewRequest(http.MethodGet, "/billing/invoices", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should answer the invoice page with paging echoes", func() {
			mockService.invoices = []*invoice.Invoice{{ID: 1, Ref: "TOPabc123"}}

			req := httptest.NewRequest(http.MethodGet, "/billing/invoices?account_id=7&limit=5&offset=10", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp struct {
				Invoices []invoice.Invoice `json:"invoices"`
				Limit    int               `json:"limit"`
				Offset   int               `json:"offset"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Invoices).To(HaveLen(1))
			Expect(resp.Limit).To(Equal(5))
			Expect(resp.Offset).To(Equal(10))
		})

		It("should fall back to default paging on nonsense values", func() {
			req := httptest.NewRequest(http.MethodGet, "/billing/invoices?account_id=7&limit=-3&offset=zzz", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp struct {
				Limit  int `json:"limit"`
				Offset int `json:"offset"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Limit).To(Equal(30))
			Expect(resp.Offset).To(Equal(0))
		})
	})

	Describe("ListWaitingPayments", func() {
		It("should answer the waiting invoices for the account", func() {
			mockService.invoices = []*invoice.Invoice{{ID: 1, Ref: "TOPabc123", Status: "UNPAID"}}

			req := httptest.NewRequest(http.MethodGet, "/billing/invoices/waiting?account_id=7", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp struct {
				Invoices []invoice.Invoice `json:"invoices"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Invoices).To(HaveLen(1))
		})
	})
})
