package enums

import "fmt"

// OrderStatus tracks the lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusShipped,
	OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether an order can still change state. Cancelled
// orders never mutate again.
func (o OrderStatus) IsTerminal() bool {
	return o == OrderStatusCancelled
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

var orderStatusDisplayNames = map[OrderStatus]string{
	OrderStatusPending:   "Awaiting Payment",
	OrderStatusPaid:      "Paid",
	OrderStatusShipped:   "Shipped",
	OrderStatusCancelled: "Cancelled",
}

// OrderStatusDisplayName returns the human label for a status tag.
func OrderStatusDisplayName(status OrderStatus) string {
	if name, ok := orderStatusDisplayNames[status]; ok {
		return name
	}
	return string(status)
}
