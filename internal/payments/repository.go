package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pageturnhq/bookstore-backend/pkg/db/models"
	"github.com/pageturnhq/bookstore-backend/pkg/enums"
	"github.com/pageturnhq/bookstore-backend/pkg/pagination"
)

// ListFilters narrows payment listings. UserID filters through the owning
// order.
type ListFilters struct {
	UserID *uuid.UUID
	Status *enums.PaymentStatus
}

// OutcomeUpdates carries the columns an outcome transition may set alongside
// the status itself.
type OutcomeUpdates struct {
	GatewayResponse *string
	AdminNote       *string
	PaidAt          *time.Time
}

// Repository exposes persistence helpers for payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
	List(ctx context.Context, filters ListFilters, limit int, cursor *pagination.Cursor) ([]models.Payment, *pagination.Cursor, error)
	TransitionStatus(ctx context.Context, paymentID uuid.UUID, from []enums.PaymentStatus, to enums.PaymentStatus, updates OutcomeUpdates) (bool, error)
	AccumulateRefund(ctx context.Context, paymentID uuid.UUID, amount decimal.Decimal, reason string, adminNote *string, now time.Time) (bool, error)
	FindExpiredPending(ctx context.Context, cutoff time.Time) ([]models.Payment, error)
	CountByStatus(ctx context.Context) (map[enums.PaymentStatus]int64, error)
	SumAmountForStatus(ctx context.Context, status enums.PaymentStatus) (decimal.Decimal, error)
	SumRefunds(ctx context.Context) (decimal.Decimal, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a payment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("id = ?", paymentID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repositoryImpl) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repositoryImpl) FindByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repositoryImpl) List(ctx context.Context, filters ListFilters, limit int, cursor *pagination.Cursor) ([]models.Payment, *pagination.Cursor, error) {
	buffered := pagination.LimitWithBuffer(limit)
	normalized := pagination.NormalizeLimit(limit)

	query := r.db.WithContext(ctx).Model(&models.Payment{})
	if filters.UserID != nil {
		query = query.
			Joins("JOIN orders ON orders.id = payments.order_id").
			Where("orders.user_id = ?", *filters.UserID)
	}
	if filters.Status != nil {
		query = query.Where("payments.status = ?", *filters.Status)
	}
	if cursor != nil {
		query = query.Where("(payments.created_at, payments.id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var records []models.Payment
	if err := query.Order("payments.created_at DESC, payments.id DESC").Limit(buffered).Find(&records).Error; err != nil {
		return nil, nil, err
	}

	if len(records) > normalized {
		next := records[normalized]
		records = records[:normalized]
		return records, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return records, nil, nil
}

// TransitionStatus flips a payment's status only when its current status is
// in the from set. The condition lives in the WHERE clause so concurrent
// transitions cannot both win.
func (r *repositoryImpl) TransitionStatus(ctx context.Context, paymentID uuid.UUID, from []enums.PaymentStatus, to enums.PaymentStatus, updates OutcomeUpdates) (bool, error) {
	values := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	if updates.GatewayResponse != nil {
		values["gateway_response"] = *updates.GatewayResponse
	}
	if updates.AdminNote != nil {
		values["admin_note"] = *updates.AdminNote
	}
	if updates.PaidAt != nil {
		values["paid_at"] = *updates.PaidAt
	}

	query := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", paymentID)
	if len(from) > 0 {
		query = query.Where("status IN ?", from)
	}

	result := query.Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// AccumulateRefund adds amount to the cumulative refund and derives the new
// status in the same statement. The WHERE clause enforces both the legal
// source states and the refund ceiling, so concurrent refunds can never
// jointly exceed the payment amount.
func (r *repositoryImpl) AccumulateRefund(ctx context.Context, paymentID uuid.UUID, amount decimal.Decimal, reason string, adminNote *string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE payments
		SET refund_amount = refund_amount + ?,
			refund_reason = ?,
			admin_note = COALESCE(?, admin_note),
			refunded_at = ?,
			status = CASE WHEN refund_amount + ? >= amount THEN ? ELSE ? END,
			updated_at = ?
		WHERE id = ?
			AND status IN (?, ?)
			AND refund_amount + ? <= amount
	`, amount, reason, adminNote, now,
		amount, enums.PaymentStatusRefunded, enums.PaymentStatusPartialRefunded, now,
		paymentID,
		enums.PaymentStatusSuccess, enums.PaymentStatusPartialRefunded,
		amount)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) FindExpiredPending(ctx context.Context, cutoff time.Time) ([]models.Payment, error) {
	var records []models.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.PaymentStatusPending, cutoff).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repositoryImpl) CountByStatus(ctx context.Context) (map[enums.PaymentStatus]int64, error) {
	type statusCount struct {
		Status enums.PaymentStatus
		Total  int64
	}
	var rows []statusCount
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[enums.PaymentStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

func (r *repositoryImpl) SumAmountForStatus(ctx context.Context, status enums.PaymentStatus) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("SUM(amount)").
		Where("status = ?", status).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (r *repositoryImpl) SumRefunds(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("SUM(refund_amount)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
