package cancellations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pageturnhq/bookstore-backend/pkg/db/models"
	"github.com/pageturnhq/bookstore-backend/pkg/enums"
	"github.com/pageturnhq/bookstore-backend/pkg/pagination"
)

// Repository exposes persistence helpers for cancel requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.CancelRequest) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.CancelRequest, error)
	ListByStatus(ctx context.Context, status enums.CancelRequestStatus, limit int, cursor *pagination.Cursor) ([]models.CancelRequest, *pagination.Cursor, error)
	Resolve(ctx context.Context, orderID uuid.UUID, to enums.CancelRequestStatus, adminNote *string, processedAt time.Time) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a cancel-request repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, request *models.CancelRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repositoryImpl) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.CancelRequest, error) {
	var request models.CancelRequest
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repositoryImpl) ListByStatus(ctx context.Context, status enums.CancelRequestStatus, limit int, cursor *pagination.Cursor) ([]models.CancelRequest, *pagination.Cursor, error) {
	buffered := pagination.LimitWithBuffer(limit)
	normalized := pagination.NormalizeLimit(limit)

	query := r.db.WithContext(ctx).
		Model(&models.CancelRequest{}).
		Where("status = ?", status)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var records []models.CancelRequest
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

// Resolve flips a pending request into its final state. The pending check
// lives in the WHERE clause so two admins cannot both resolve it.
func (r *repositoryImpl) Resolve(ctx context.Context, orderID uuid.UUID, to enums.CancelRequestStatus, adminNote *string, processedAt time.Time) (bool, error) {
	values := map[string]any{
		"status":       to,
		"processed_at": processedAt,
	}
	if adminNote != nil {
		values["admin_note"] = *adminNote
	}

	result := r.db.WithContext(ctx).
		Model(&models.CancelRequest{}).
		Where("order_id = ? AND status = ?", orderID, enums.CancelRequestStatusPending).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
