package payments

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pageturnhq/bookstore-backend/pkg/db/models"
	"github.com/pageturnhq/bookstore-backend/pkg/enums"
)

// newTransactionID mints the gateway-facing identifier carried on every
// payment, for example TXN_1718000000000_1A2B3C4D.
func newTransactionID() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("TXN_%d_%s", time.Now().UnixMilli(), suffix)
}

// gatewayPaymentURL synthesizes the hosted-checkout link a pending payment
// would redirect to.
func gatewayPaymentURL(payment *models.Payment) string {
	return fmt.Sprintf("https://payment.gateway.com/pay?txn=%s&amount=%s&method=%s",
		payment.TransactionID, payment.Amount.StringFixed(2), payment.Method)
}

// gatewayQRCodeData synthesizes the scan-to-pay payload for a pending payment.
func gatewayQRCodeData(payment *models.Payment) string {
	return fmt.Sprintf("payment://pay?txn=%s&amount=%s",
		payment.TransactionID, payment.Amount.StringFixed(2))
}

// simulatedGatewayResponse builds the raw response body recorded when the
// simulation endpoint stands in for the real gateway.
func simulatedGatewayResponse(transactionID string, succeeded bool, at time.Time) string {
	status := "SUCCESS"
	if !succeeded {
		status = "FAILED"
	}
	return fmt.Sprintf(`{"transactionId":%q,"status":%q,"timestamp":%q,"source":"simulated"}`,
		transactionID, status, at.UTC().Format(time.RFC3339))
}

// outcomeStatus maps a gateway outcome flag onto the payment status it lands.
func outcomeStatus(succeeded bool) enums.PaymentStatus {
	if succeeded {
		return enums.PaymentStatusSuccess
	}
	return enums.PaymentStatusFailed
}
