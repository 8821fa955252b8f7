package payments

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/pageturnhq/bookstore-backend/api/middleware"
	"github.com/pageturnhq/bookstore-backend/api/responses"
	"github.com/pageturnhq/bookstore-backend/api/validators"
	internalpayments "github.com/pageturnhq/bookstore-backend/internal/payments"
	pkgerrors "github.com/pageturnhq/bookstore-backend/pkg/errors"
	"github.com/pageturnhq/bookstore-backend/pkg/logger"
)

type confirmPaymentRequest struct {
	AdminNote *string `json:"admin_note"`
}

// Confirm is the admin manual override for a stuck pending payment.
func Confirm(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := parsePaymentID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req confirmPaymentRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		payment, err := svc.ConfirmPayment(r.Context(), internalpayments.ConfirmPaymentInput{
			PaymentID: paymentID,
			AdminNote: req.AdminNote,
			ActorRole: role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

type refundRequest struct {
	Amount    string  `json:"amount" validate:"required"`
	Reason    string  `json:"reason" validate:"required"`
	AdminNote *string `json:"admin_note"`
}

// Refund applies one refund against a payment.
func Refund(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := parsePaymentID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req refundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid refund amount"))
			return
		}

		payment, err := svc.Refund(r.Context(), internalpayments.RefundInput{
			PaymentID: paymentID,
			Amount:    amount,
			Reason:    req.Reason,
			AdminNote: req.AdminNote,
			ActorRole: role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

// Statistics returns the payment rollup for the admin dashboard.
func Statistics(stats internalpayments.StatsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rollup, err := stats.Collect(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rollup)
	}
}

type cleanupResponse struct {
	PaymentsCancelled int `json:"payments_cancelled"`
}

// CleanupExpired triggers the pending-payment TTL sweep on demand.
func CleanupExpired(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		swept, err := svc.CleanupExpiredPayments(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cleanupResponse{PaymentsCancelled: swept})
	}
}
