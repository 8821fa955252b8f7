package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pageturnhq/bookstore-backend/pkg/enums"
)

// Order is the aggregate root of the purchase workflow. Lines are owned
// exclusively by their order and loaded explicitly, never lazily.
type Order struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Status        enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	TotalPrice    decimal.Decimal   `gorm:"column:total_price;type:numeric(10,2);not null"`
	Lines         []OrderLine       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CancelRequest *CancelRequest    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CanceledAt    *time.Time        `gorm:"column:canceled_at"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderLine snapshots one requested book at order-creation time. The price
// captured here is immune to later catalog price changes.
type OrderLine struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	BookID          uuid.UUID       `gorm:"column:book_id;type:uuid;not null"`
	Quantity        int             `gorm:"column:quantity;not null"`
	PriceAtPurchase decimal.Decimal `gorm:"column:price_at_purchase;type:numeric(10,2);not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}
