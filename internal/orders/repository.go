package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pageturnhq/bookstore-backend/pkg/db/models"
	"github.com/pageturnhq/bookstore-backend/pkg/enums"
	"github.com/pageturnhq/bookstore-backend/pkg/pagination"
)

// ListFilters narrows order listings.
type ListFilters struct {
	UserID *uuid.UUID
	Status *enums.OrderStatus
}

// Repository exposes persistence helpers for orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filters ListFilters, limit int, cursor *pagination.Cursor) ([]models.Order, *pagination.Cursor, error)
	TransitionStatus(ctx context.Context, orderID uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus, canceledAt *time.Time) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Preload("CancelRequest").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repositoryImpl) List(ctx context.Context, filters ListFilters, limit int, cursor *pagination.Cursor) ([]models.Order, *pagination.Cursor, error) {
	buffered := pagination.LimitWithBuffer(limit)
	normalized := pagination.NormalizeLimit(limit)

	query := r.db.WithContext(ctx).Model(&models.Order{}).Preload("Lines")
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var records []models.Order
	if err := query.Order("created_at DESC, id DESC").Limit(buffered).Find(&records).Error; err != nil {
		return nil, nil, err
	}

	if len(records) > normalized {
		next := records[normalized]
		records = records[:normalized]
		return records, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return records, nil, nil
}

// TransitionStatus flips an order's status only when its current status is in
// the from set. The condition lives in the WHERE clause so two concurrent
// transitions cannot both win.
func (r *repositoryImpl) TransitionStatus(ctx context.Context, orderID uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus, canceledAt *time.Time) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	if canceledAt != nil {
		updates["canceled_at"] = *canceledAt
	}

	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID)
	if len(from) > 0 {
		query = query.Where("status IN ?", from)
	}

	result := query.Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
