package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pageturnhq/bookstore-backend/pkg/enums"
)

// User is the directory row principals resolve to.
type User struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Username  string         `gorm:"column:username;not null;unique"`
	Role      enums.UserRole `gorm:"column:role;type:text;not null;default:'user'"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}
