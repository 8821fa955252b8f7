package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pageturnhq/bookstore-backend/api/controllers"
	cancellationcontrollers "github.com/pageturnhq/bookstore-backend/api/controllers/cancellations"
	ordercontrollers "github.com/pageturnhq/bookstore-backend/api/controllers/orders"
	paymentcontrollers "github.com/pageturnhq/bookstore-backend/api/controllers/payments"
	"github.com/pageturnhq/bookstore-backend/api/middleware"
	"github.com/pageturnhq/bookstore-backend/internal/cancellations"
	"github.com/pageturnhq/bookstore-backend/internal/orders"
	"github.com/pageturnhq/bookstore-backend/internal/payments"
	"github.com/pageturnhq/bookstore-backend/pkg/config"
	"github.com/pageturnhq/bookstore-backend/pkg/db"
	"github.com/pageturnhq/bookstore-backend/pkg/logger"
	"github.com/pageturnhq/bookstore-backend/pkg/redis"
)

// RouterParams bundles everything the HTTP surface depends on.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DBPinger      db.Pinger
	RedisPinger   redis.Pinger
	Orders        orders.Service
	Payments      payments.Service
	PaymentStats  payments.StatsService
	Cancellations cancellations.Service
}

// NewRouter wires the full route tree.
func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DBPinger, params.RedisPinger))
	})

	// Gateway-facing surface. Authenticated by transaction id, not by JWT.
	r.Route("/api/v1/payments/callback", func(r chi.Router) {
		r.Post("/", paymentcontrollers.Callback(params.Payments, logg))
		r.Post("/simulate", paymentcontrollers.SimulateCallback(params.Payments, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(params.Orders, logg))
			r.Get("/", ordercontrollers.List(params.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(params.Orders, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(params.Orders, logg))
			r.Post("/{orderId}/cancel-request", cancellationcontrollers.Request(params.Cancellations, logg))
			r.Get("/{orderId}/payment", paymentcontrollers.ByOrder(params.Payments, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", paymentcontrollers.Create(params.Payments, logg))
			r.Get("/", paymentcontrollers.List(params.Payments, logg))
			r.Get("/{paymentId}", paymentcontrollers.Detail(params.Payments, logg))
			r.Post("/{paymentId}/cancel", paymentcontrollers.Cancel(params.Payments, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(params.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(params.Orders, logg))
			r.Put("/{orderId}/status", ordercontrollers.UpdateStatus(params.Orders, logg))
		})

		r.Route("/cancel-requests", func(r chi.Router) {
			r.Get("/", cancellationcontrollers.ListPending(params.Cancellations, logg))
			r.Post("/{orderId}/resolve", cancellationcontrollers.Resolve(params.Cancellations, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", paymentcontrollers.List(params.Payments, logg))
			r.Get("/statistics", paymentcontrollers.Statistics(params.PaymentStats, logg))
			r.Post("/cleanup-expired", paymentcontrollers.CleanupExpired(params.Payments, logg))
			r.Get("/{paymentId}", paymentcontrollers.Detail(params.Payments, logg))
			r.Post("/{paymentId}/confirm", paymentcontrollers.Confirm(params.Payments, logg))
			r.Post("/{paymentId}/refund", paymentcontrollers.Refund(params.Payments, logg))
		})
	})

	return r
}
