package enums

import "fmt"

// PaymentStatus tracks the lifecycle of a payment.
type PaymentStatus string

const (
	PaymentStatusPending         PaymentStatus = "pending"
	PaymentStatusProcessing      PaymentStatus = "processing"
	PaymentStatusSuccess         PaymentStatus = "success"
	PaymentStatusFailed          PaymentStatus = "failed"
	PaymentStatusCancelled       PaymentStatus = "cancelled"
	PaymentStatusRefunded        PaymentStatus = "refunded"
	PaymentStatusPartialRefunded PaymentStatus = "partial_refunded"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusProcessing,
	PaymentStatusSuccess,
	PaymentStatusFailed,
	PaymentStatusCancelled,
	PaymentStatusRefunded,
	PaymentStatusPartialRefunded,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}

var paymentStatusDisplayNames = map[PaymentStatus]string{
	PaymentStatusPending:         "Awaiting Payment",
	PaymentStatusProcessing:      "Processing",
	PaymentStatusSuccess:         "Paid",
	PaymentStatusFailed:          "Failed",
	PaymentStatusCancelled:       "Cancelled",
	PaymentStatusRefunded:        "Refunded",
	PaymentStatusPartialRefunded: "Partially Refunded",
}

// PaymentStatusDisplayName returns the human label for a status tag.
func PaymentStatusDisplayName(status PaymentStatus) string {
	if name, ok := paymentStatusDisplayNames[status]; ok {
		return name
	}
	return string(status)
}
