package enums

import "fmt"

// PaymentMethod describes the instrument a buyer settles a payment with.
type PaymentMethod string

const (
	PaymentMethodAlipay     PaymentMethod = "alipay"
	PaymentMethodWechatPay  PaymentMethod = "wechat_pay"
	PaymentMethodBankCard   PaymentMethod = "bank_card"
	PaymentMethodCreditCard PaymentMethod = "credit_card"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodAlipay,
	PaymentMethodWechatPay,
	PaymentMethodBankCard,
	PaymentMethodCreditCard,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}

var paymentMethodDisplayNames = map[PaymentMethod]string{
	PaymentMethodAlipay:     "Alipay",
	PaymentMethodWechatPay:  "WeChat Pay",
	PaymentMethodBankCard:   "Bank Card",
	PaymentMethodCreditCard: "Credit Card",
}

// PaymentMethodDisplayName returns the human label for a method tag.
func PaymentMethodDisplayName(method PaymentMethod) string {
	if name, ok := paymentMethodDisplayNames[method]; ok {
		return name
	}
	return string(method)
}

var paymentMethodGateways = map[PaymentMethod]string{
	PaymentMethodAlipay:     "Alipay Gateway",
	PaymentMethodWechatPay:  "WeChat Pay Gateway",
	PaymentMethodBankCard:   "Bank Gateway",
	PaymentMethodCreditCard: "Credit Card Gateway",
}

// PaymentMethodGateway returns the gateway label recorded on payments
// created with the given method.
func PaymentMethodGateway(method PaymentMethod) string {
	if name, ok := paymentMethodGateways[method]; ok {
		return name
	}
	return "Unknown Gateway"
}
