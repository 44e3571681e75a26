package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/topup-billing/internal/billing"
	"github.com/frahmantamala/topup-billing/internal/transport/middleware"
	"github.com/frahmantamala/topup-billing/internal/transport/swagger"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, allowedOrigins string, billingHandler *billing.Handler, webhookHandler *billing.WebhookHandler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.CORS(allowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		// Health check route
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if webhookHandler != nil {
			r.Post("/payment/callback", webhookHandler.HandlePaymentNotification)
		}

		if billingHandler != nil {
			r.Route("/billing", func(br chi.Router) {
				br.Post("/topup", billingHandler.CreateTopup)
				br.Post("/topup/manual", billingHandler.CreateManualTopup)
				br.Post("/topup/manual/{ref}/confirm", billingHandler.ConfirmManualTopup)
				br.Get("/invoices", billingHandler.ListInvoices)
				br.Get("/invoices/waiting", billingHandler.ListWaitingPayments)
			})
		}
	})
}
