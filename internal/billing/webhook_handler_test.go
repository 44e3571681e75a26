package billing_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/topup-billing/internal/billing"
	"github.com/frahmantamala/topup-billing/internal/core/datamodel/invoice"
	"github.com/frahmantamala/topup-billing/internal/core/events"
	"github.com/frahmantamala/topup-billing/internal/gateway"
	"github.com/frahmantamala/topup-billing/internal/transport"
)

var _ = Describe("WebhookHandler", func() {
	var (
		handler  *billing.WebhookHandler
		mockRepo *mockBillingRepository
		secret   []byte
		logger   *slog.Logger
	)

	BeforeEach(func() {
		mockRepo = newMockBillingRepository()
		secret = []byte("merchant-private-key")
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		service := billing.NewService(mockRepo, logger)
		handler = billing.NewWebhookHandler(
			transport.NewBaseHandler(logger),
			service,
			events.NewEventBus(logger),
			secret,
			logger,
		)
	})

	seedUnpaid := func(ref string, accountID int64) {
		expiredAt := time.Now().UTC().Add(time.Hour)
		err := mockRepo.CreateInvoice(&invoice.Invoice{
			Ref:       ref,
			AccountID: accountID,
			Type:      invoice.TypeTopup,
			Title:     "Topup Balance",
			Status:    string(billing.StatusUnpaid),
			ExpiredAt: &expiredAt,
		}, []invoice.InvoiceItem{
			{Title: "Topup Balance", Qty: 1, Price: 10000, TotalPrice: 10000},
		})
		Expect(err).NotTo(HaveOccurred())
	}

	notify := func(body []byte, signature, event string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/callback", bytes.NewReader(body))
		if signature != "" {
			req.Header.Set(gateway.HeaderCallbackSignature, signature)
		}
		if event != "" {
			req.Header.Set(gateway.HeaderCallbackEvent, event)
		}

		rec := httptest.NewRecorder()
		handler.HandlePaymentNotification(rec, req)
		return rec
	}

	decode := func(rec *httptest.ResponseRecorder) billing.NotificationResponse {
		var resp billing.NotificationResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		return resp
	}

	paidBody := func(ref string, total, fee int64) []byte {
		return []byte(fmt.Sprintf(
			`{"merchant_ref":%q,"status":"PAID","paid_at":%d,"total_amount":%d,"fee_customer":%d,"is_closed_payment":1}`,
			ref, time.Now().Unix(), total, fee,
		))
	}

	Context("when the signature does not match the raw body", func() {
		It("should answer 200 with success false and leave the store untouched", func() {
			// Given
			seedUnpaid("TOPabc123", 7)
			body := paidBody("TOPabc123", 10000, 500)
			forged := gateway.ComputeCallbackSignature(body, []byte("wrong-key"))

			// When
			rec := notify(body, forged, gateway.EventPaymentStatus)

			// Then
			Expect(rec.Code).To(Equal(http.StatusOK))
			resp := decode(rec)
			Expect(resp.Success).To(BeFalse())
			Expect(resp.Message).To(Equal("invalid signature"))
			Expect(mockRepo.invoicesByRef["TOPabc123"].Status).To(Equal(string(billing.StatusUnpaid)))
			Expect(mockRepo.balances[7]).To(BeZero())
		})

		It("should reject a valid body with no signature header at all", func() {
			// Given
			seedUnpaid("TOPabc123", 7)
			body := paidBody("TOPabc123", 10000, 500)

			// When
			rec := notify(body, "", gateway.EventPaymentStatus)

			// Then
			Expect(decode(rec).Success).To(BeFalse())
			Expect(mockRepo.balances[7]).To(BeZero())
		})
	})

	Context("when the payload is empty or malformed", func() {
		It("should reject an empty JSON object", func() {
			// Given
			body := []byte(`{}`)
			signature := gateway.ComputeCallbackSignature(body, secret)

			// When
			rec := notify(body, signature, gateway.EventPaymentStatus)

			// Then
			resp := decode(rec)
			Expect(resp.Success).To(BeFalse())
			Expect(resp.Message).To(Equal("invalid data sent by payment gateway"))
		})

		It("should reject a body that is not JSON", func() {
			// Given
			body := []byte(`not-json`)
			signature := gateway.ComputeCallbackSignature(body, secret)

			// When
			rec := notify(body, signature, gateway.EventPaymentStatus)

			// Then
			Expect(decode(rec).Success).To(BeFalse())
		})
	})

	Context("when the callback event is not payment_status", func() {
		It("should acknowledge without acting", func() {
			// Given
			seedUnpaid("TOPabc123", 7)
			body := paidBody("TOPabc123", 10000, 500)
			signature := gateway.ComputeCallbackSignature(body, secret)

			// When
			rec := notify(body, signature, "open_payment")

			// Then
			resp := decode(rec)
			Expect(resp.Success).To(BeFalse())
			Expect(resp.Message).To(Equal("unsupported callback event, no action was taken"))
			Expect(mockRepo.invoicesByRef["TOPabc123"].Status).To(Equal(string(billing.StatusUnpaid)))
		})
	})

	Context("when the payment is not a closed settlement", func() {
		It("should acknowledge and persist nothing", func() {
			// Given
			seedUnpaid("TOPabc123", 7)
			body := []byte(`{"merchant_ref":"TOPabc123","status":"PAID","paid_at":0,"total_amount":10000,"fee_customer":500,"is_closed_payment":0}`)
			signature := gateway.ComputeCallbackSignature(body, secret)

			// When
			rec := notify(body, signature, gateway.EventPaymentStatus)

			// Then
			resp := decode(rec)
			Expect(resp.Success).To(BeTrue())
			Expect(resp.Message).To(Equal("notification acknowledged, no action taken"))
			Expect(mockRepo.invoicesByRef["TOPabc123"].Status).To(Equal(string(billing.StatusUnpaid)))
			Expect(mockRepo.balances[7]).To(BeZero())
		})
	})

	Context("when a signed PAID settlement arrives", func() {
		It("should settle the invoice and credit the net amount", func() {
			// Given
			seedUnpaid("TOPabc123", 7)
			body := paidBody("TOPabc123", 10000, 500)
			signature := gateway.ComputeCallbackSignature(body, secret)

			// When
			rec := notify(body, signature, gateway.EventPaymentStatus)

			// Then
			Expect(rec.Code).To(Equal(http.StatusOK))
			resp := decode(rec)
			Expect(resp.Success).To(BeTrue())
			Expect(resp.Message).To(BeEmpty())
			Expect(mockRepo.invoicesByRef["TOPabc123"].Status).To(Equal(string(billing.StatusPaid)))
			Expect(mockRepo.invoicesByRef["TOPabc123"].PaidAt).NotTo(BeNil())
			Expect(mockRepo.balances[7]).To(Equal(int64(9500)))
		})

		It("should uppercase the incoming status before applying it", func() {
			// Given
			seedUnpaid("TOPabc123", 7)
			body := []byte(fmt.Sprintf(
				`{"merchant_ref":"TOPabc123","status":"paid","paid_at":%d,"total_amount":10000,"fee_customer":500,"is_closed_payment":1}`,
				time.Now().Unix(),
			))
			signature := gateway.ComputeCallbackSignature(body, secret)

			// When
			rec := notify(body, signature, gateway.EventPaymentStatus)

			// Then
			Expect(decode(rec).Success).To(BeTrue())
			Expect(mockRepo.invoicesByRef["TOPabc123"].Status).To(Equal(string(billing.StatusPaid)))
			Expect(mockRepo.balances[7]).To(Equal(int64(9500)))
		})

		It("should not double-credit on an exact replay", func() {
			// Given
			seedUnpaid("TOPabc123", 7)
			body := paidBody("TOPabc123", 10000, 500)
			signature := gateway.ComputeCallbackSignature(body, secret)

			first := notify(body, signature, gateway.EventPaymentStatus)
			Expect(decode(first).Success).To(BeTrue())

			// When
			second := notify(body, signature, gateway.EventPaymentStatus)

			// Then
			Expect(decode(second).Success).To(BeTrue())
			Expect(mockRepo.balances[7]).To(Equal(int64(9500)))
		})
	})

	Context("when the merchant ref is unknown", func() {
		It("should answer success false naming the ref", func() {
			// Given
			body := paidBody("TOPmissing", 10000, 500)
			signature := gateway.ComputeCallbackSignature(body, secret)

			// When
			rec := notify(body, signature, gateway.EventPaymentStatus)

			// Then
			resp := decode(rec)
			Expect(resp.Success).To(BeFalse())
			Expect(resp.Message).To(Equal("invoice not found or already paid: TOPmissing"))
		})
	})
})
