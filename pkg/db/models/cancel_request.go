package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pageturnhq/bookstore-backend/pkg/enums"
)

// CancelRequest is the arbitration record for cancelling a shipped order.
// One request per order, ever.
type CancelRequest struct {
	ID          uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID                 `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Status      enums.CancelRequestStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Reason      string                    `gorm:"column:reason;not null"`
	AdminNote   *string                   `gorm:"column:admin_note"`
	ProcessedAt *time.Time                `gorm:"column:processed_at"`
	CreatedAt   time.Time                 `gorm:"column:created_at;autoCreateTime"`
}
