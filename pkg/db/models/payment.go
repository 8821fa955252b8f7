package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pageturnhq/bookstore-backend/pkg/enums"
)

// Payment tracks the payment attempt for an order. At most one payment
// row ever exists per order; the unique index enforces it.
type Payment struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Method          enums.PaymentMethod `gorm:"column:method;type:text;not null"`
	Status          enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Amount          decimal.Decimal     `gorm:"column:amount;type:numeric(10,2);not null"`
	TransactionID   string              `gorm:"column:transaction_id;not null;uniqueIndex"`
	Gateway         string              `gorm:"column:gateway;not null"`
	GatewayResponse *string             `gorm:"column:gateway_response"`
	RefundAmount    decimal.Decimal     `gorm:"column:refund_amount;type:numeric(10,2);not null;default:0"`
	RefundReason    *string             `gorm:"column:refund_reason"`
	AdminNote       *string             `gorm:"column:admin_note"`
	PaidAt          *time.Time          `gorm:"column:paid_at"`
	RefundedAt      *time.Time          `gorm:"column:refunded_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
