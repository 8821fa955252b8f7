package payments

import (
	"net/http"

	"github.com/pageturnhq/bookstore-backend/api/responses"
	"github.com/pageturnhq/bookstore-backend/api/validators"
	internalpayments "github.com/pageturnhq/bookstore-backend/internal/payments"
	"github.com/pageturnhq/bookstore-backend/pkg/logger"
)

type callbackRequest struct {
	TransactionID   string `json:"transaction_id" validate:"required"`
	Success         bool   `json:"success"`
	GatewayResponse string `json:"gateway_response"`
}

// Callback receives asynchronous outcome notifications from the payment
// gateway. The route is public; the transaction id is the shared secret.
func Callback(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req callbackRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.ApplyGatewayOutcome(r.Context(), internalpayments.CallbackInput{
			TransactionID:   req.TransactionID,
			Succeeded:       req.Success,
			GatewayResponse: req.GatewayResponse,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

// SimulateCallback drives the gateway simulation used in development and
// demos: it fabricates a gateway response body for the requested outcome.
func SimulateCallback(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req internalpayments.SimulateCallbackInput
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.SimulateCallback(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}
