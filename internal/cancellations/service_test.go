package cancellations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pageturnhq/bookstore-backend/internal/inventory"
	"github.com/pageturnhq/bookstore-backend/internal/orders"
	"github.com/pageturnhq/bookstore-backend/pkg/db/models"
	"github.com/pageturnhq/bookstore-backend/pkg/enums"
	pkgerrors "github.com/pageturnhq/bookstore-backend/pkg/errors"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:cancellations_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	books := `
CREATE TABLE IF NOT EXISTS books (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  author TEXT NOT NULL,
  price NUMERIC NOT NULL,
  stock INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	ordersTable := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  total_price NUMERIC NOT NULL,
  canceled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderLines := `
CREATE TABLE IF NOT EXISTS order_lines (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  book_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  price_at_purchase NUMERIC NOT NULL,
  created_at DATETIME
);`
	cancelRequests := `
CREATE TABLE IF NOT EXISTS cancel_requests (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'pending',
  reason TEXT NOT NULL,
  admin_note TEXT,
  processed_at DATETIME,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(books).Error)
	require.NoError(t, db.Exec(ordersTable).Error)
	require.NoError(t, db.Exec(orderLines).Error)
	require.NoError(t, db.Exec(cancelRequests).Error)
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	svc, err := NewService(NewRepository(db), orders.NewRepository(db), inventory.NewLedger(), gormTxRunner{db: db})
	require.NoError(t, err)
	return svc
}

func seedShippedOrder(t *testing.T, db *gorm.DB, userID uuid.UUID, bookID uuid.UUID, qty int) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:         uuid.New(),
		UserID:     userID,
		Status:     enums.OrderStatusShipped,
		TotalPrice: decimal.NewFromInt(int64(qty) * 10),
		Lines: []models.OrderLine{
			{
				ID:              uuid.New(),
				BookID:          bookID,
				Quantity:        qty,
				PriceAtPurchase: decimal.NewFromInt(10),
			},
		},
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func seedBook(t *testing.T, db *gorm.DB, stock int) *models.Book {
	t.Helper()

	book := &models.Book{
		ID:     uuid.New(),
		Title:  "Test Book",
		Author: "Test Author",
		Price:  decimal.NewFromInt(10),
		Stock:  stock,
	}
	require.NoError(t, db.Create(book).Error)
	return book
}

func errorCode(t *testing.T, err error) pkgerrors.Code {
	t.Helper()

	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	return typed.Code()
}

func TestServiceRequestCancellation(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	owner := uuid.New()
	order := seedShippedOrder(t, db, owner, uuid.New(), 2)

	resp, err := svc.RequestCancellation(context.Background(), RequestCancellationInput{
		OrderID: order.ID,
		Reason:  "  changed my mind  ",
		ActorID: owner,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.CancelRequestStatusPending, resp.Status)
	assert.Equal(t, "changed my mind", resp.Reason)

	// One request per order, ever.
	_, err = svc.RequestCancellation(context.Background(), RequestCancellationInput{
		OrderID: order.ID,
		Reason:  "again",
		ActorID: owner,
	})
	assert.Equal(t, pkgerrors.CodeConflict, errorCode(t, err))
}

func TestServiceRequestCancellationOwnerOnly(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	order := seedShippedOrder(t, db, uuid.New(), uuid.New(), 1)

	_, err := svc.RequestCancellation(context.Background(), RequestCancellationInput{
		OrderID: order.ID,
		Reason:  "not mine",
		ActorID: uuid.New(),
	})
	assert.Equal(t, pkgerrors.CodeForbidden, errorCode(t, err))
}

func TestServiceRequestCancellationShippedOnly(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	owner := uuid.New()

	order := &models.Order{
		ID:         uuid.New(),
		UserID:     owner,
		Status:     enums.OrderStatusPending,
		TotalPrice: decimal.NewFromInt(10),
	}
	require.NoError(t, db.Create(order).Error)

	_, err := svc.RequestCancellation(context.Background(), RequestCancellationInput{
		OrderID: order.ID,
		Reason:  "too early",
		ActorID: owner,
	})
	assert.Equal(t, pkgerrors.CodeStateConflict, errorCode(t, err))
}

func TestServiceResolveApproved(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	owner := uuid.New()
	book := seedBook(t, db, 3)
	order := seedShippedOrder(t, db, owner, book.ID, 2)

	_, err := svc.RequestCancellation(context.Background(), RequestCancellationInput{
		OrderID: order.ID,
		Reason:  "wrong item",
		ActorID: owner,
	})
	require.NoError(t, err)

	note := "verified with carrier"
	resp, err := svc.Resolve(context.Background(), ResolveInput{
		OrderID:   order.ID,
		Approved:  true,
		AdminNote: &note,
		ActorRole: enums.UserRoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.CancelRequestStatusApproved, resp.Status)
	require.NotNil(t, resp.ProcessedAt)

	var cancelled models.Order
	require.NoError(t, db.First(&cancelled, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CanceledAt)

	var restocked models.Book
	require.NoError(t, db.First(&restocked, "id = ?", book.ID).Error)
	assert.Equal(t, 5, restocked.Stock)
}

func TestServiceResolveRejected(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	owner := uuid.New()
	book := seedBook(t, db, 3)
	order := seedShippedOrder(t, db, owner, book.ID, 2)

	_, err := svc.RequestCancellation(context.Background(), RequestCancellationInput{
		OrderID: order.ID,
		Reason:  "wrong item",
		ActorID: owner,
	})
	require.NoError(t, err)

	resp, err := svc.Resolve(context.Background(), ResolveInput{
		OrderID:   order.ID,
		Approved:  false,
		ActorRole: enums.UserRoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.CancelRequestStatusRejected, resp.Status)

	// The order keeps shipping and stock stays put.
	var kept models.Order
	require.NoError(t, db.First(&kept, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusShipped, kept.Status)

	var book2 models.Book
	require.NoError(t, db.First(&book2, "id = ?", book.ID).Error)
	assert.Equal(t, 3, book2.Stock)

	// Resolved requests stay resolved.
	_, err = svc.Resolve(context.Background(), ResolveInput{
		OrderID:   order.ID,
		Approved:  true,
		ActorRole: enums.UserRoleAdmin,
	})
	assert.Equal(t, pkgerrors.CodeStateConflict, errorCode(t, err))
}

func TestServiceResolveAdminOnly(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.Resolve(context.Background(), ResolveInput{
		OrderID:   uuid.New(),
		Approved:  true,
		ActorRole: enums.UserRoleUser,
	})
	assert.Equal(t, pkgerrors.CodeForbidden, errorCode(t, err))
}

func TestServiceResolveUnknownRequest(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.Resolve(context.Background(), ResolveInput{
		OrderID:   uuid.New(),
		Approved:  true,
		ActorRole: enums.UserRoleAdmin,
	})
	assert.Equal(t, pkgerrors.CodeNotFound, errorCode(t, err))
}

func TestServiceListPending(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		request := &models.CancelRequest{
			ID:        uuid.New(),
			OrderID:   uuid.New(),
			Status:    enums.CancelRequestStatusPending,
			Reason:    "pending request",
			CreatedAt: now.Add(time.Duration(-i) * time.Minute),
		}
		require.NoError(t, db.Create(request).Error)
	}
	resolvedAt := now
	require.NoError(t, db.Create(&models.CancelRequest{
		ID:          uuid.New(),
		OrderID:     uuid.New(),
		Status:      enums.CancelRequestStatusApproved,
		Reason:      "already done",
		ProcessedAt: &resolvedAt,
		CreatedAt:   now,
	}).Error)

	_, err := svc.ListPending(context.Background(), ListPendingInput{ActorRole: enums.UserRoleUser})
	assert.Equal(t, pkgerrors.CodeForbidden, errorCode(t, err))

	list, err := svc.ListPending(context.Background(), ListPendingInput{ActorRole: enums.UserRoleAdmin})
	require.NoError(t, err)
	assert.Len(t, list.Requests, 3)
	for _, request := range list.Requests {
		assert.Equal(t, enums.CancelRequestStatusPending, request.Status)
	}
}
