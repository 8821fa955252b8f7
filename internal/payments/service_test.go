package payments

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pageturnhq/bookstore-backend/internal/orders"
	"github.com/pageturnhq/bookstore-backend/pkg/db/models"
	"github.com/pageturnhq/bookstore-backend/pkg/enums"
	pkgerrors "github.com/pageturnhq/bookstore-backend/pkg/errors"
	"github.com/pageturnhq/bookstore-backend/pkg/logger"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fakeDedupStore struct {
	keys map[string]struct{}
	fail bool
}

func newFakeDedupStore() *fakeDedupStore {
	return &fakeDedupStore{keys: map[string]struct{}{}}
}

func (s *fakeDedupStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if s.fail {
		return false, errors.New("redis unavailable")
	}
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = struct{}{}
	return true, nil
}

func (s *fakeDedupStore) Del(_ context.Context, keys ...string) error {
	if s.fail {
		return errors.New("redis unavailable")
	}
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func (s *fakeDedupStore) IdempotencyKey(scope, id string) string {
	return scope + ":" + id
}

func newTestService(t *testing.T, db *gorm.DB, store *fakeDedupStore) Service {
	t.Helper()

	var guard *CallbackGuard
	if store != nil {
		var err error
		guard, err = NewCallbackGuard(store, time.Hour)
		require.NoError(t, err)
	}

	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(db),
		Orders: orders.NewRepository(db),
		Guard:  guard,
		Tx:     gormTxRunner{db: db},
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc
}

func errorCode(t *testing.T, err error) pkgerrors.Code {
	t.Helper()

	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	return typed.Code()
}

func orderStatus(t *testing.T, db *gorm.DB, orderID uuid.UUID) enums.OrderStatus {
	t.Helper()

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", orderID).Error)
	return order.Status
}

func TestServiceCreatePayment(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	owner := uuid.New()
	order := seedOrder(t, db, owner, enums.OrderStatusPending, 75)

	resp, err := svc.CreatePayment(context.Background(), CreatePaymentInput{
		OrderID:   order.ID,
		Method:    enums.PaymentMethodWechatPay,
		ActorID:   owner,
		ActorRole: enums.UserRoleUser,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, resp.Status)
	assert.True(t, resp.Amount.Equal(decimal.NewFromInt(75)))
	assert.True(t, strings.HasPrefix(resp.TransactionID, "TXN_"))
	assert.NotEmpty(t, resp.PaymentURL)
	assert.NotEmpty(t, resp.QRCodeData)
}

func TestServiceCreatePaymentDuplicate(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	owner := uuid.New()
	order := seedOrder(t, db, owner, enums.OrderStatusPending, 75)

	input := CreatePaymentInput{
		OrderID:   order.ID,
		Method:    enums.PaymentMethodAlipay,
		ActorID:   owner,
		ActorRole: enums.UserRoleUser,
	}
	_, err := svc.CreatePayment(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.CreatePayment(context.Background(), input)
	assert.Equal(t, pkgerrors.CodeConflict, errorCode(t, err))
}

func TestServiceCreatePaymentOrderNotPending(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	owner := uuid.New()
	order := seedOrder(t, db, owner, enums.OrderStatusPaid, 75)

	_, err := svc.CreatePayment(context.Background(), CreatePaymentInput{
		OrderID:   order.ID,
		Method:    enums.PaymentMethodAlipay,
		ActorID:   owner,
		ActorRole: enums.UserRoleUser,
	})
	assert.Equal(t, pkgerrors.CodeStateConflict, errorCode(t, err))
}

func TestServiceCreatePaymentForbiddenForStranger(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	order := seedOrder(t, db, uuid.New(), enums.OrderStatusPending, 75)

	_, err := svc.CreatePayment(context.Background(), CreatePaymentInput{
		OrderID:   order.ID,
		Method:    enums.PaymentMethodAlipay,
		ActorID:   uuid.New(),
		ActorRole: enums.UserRoleUser,
	})
	assert.Equal(t, pkgerrors.CodeForbidden, errorCode(t, err))
}

func TestServiceApplyGatewayOutcomeSuccess(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, newFakeDedupStore())
	order := seedOrder(t, db, uuid.New(), enums.OrderStatusPending, 50)
	payment := seedPayment(t, db, order.ID, enums.PaymentStatusPending, 50, time.Now().UTC())

	resp, err := svc.ApplyGatewayOutcome(context.Background(), CallbackInput{
		TransactionID:   payment.TransactionID,
		Succeeded:       true,
		GatewayResponse: `{"status":"SUCCESS"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusSuccess, resp.Status)
	require.NotNil(t, resp.PaidAt)
	assert.Empty(t, resp.PaymentURL)
	assert.Equal(t, enums.OrderStatusPaid, orderStatus(t, db, order.ID))
}

func TestServiceApplyGatewayOutcomeFailure(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, newFakeDedupStore())
	order := seedOrder(t, db, uuid.New(), enums.OrderStatusPending, 50)
	payment := seedPayment(t, db, order.ID, enums.PaymentStatusPending, 50, time.Now().UTC())

	resp, err := svc.ApplyGatewayOutcome(context.Background(), CallbackInput{
		TransactionID: payment.TransactionID,
		Succeeded:     false,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, resp.Status)
	assert.Nil(t, resp.PaidAt)
	assert.Equal(t, enums.OrderStatusPending, orderStatus(t, db, order.ID))
}

func TestServiceApplyGatewayOutcomeRedelivery(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, newFakeDedupStore())
	order := seedOrder(t, db, uuid.New(), enums.OrderStatusPending, 50)
	payment := seedPayment(t, db, order.ID, enums.PaymentStatusPending, 50, time.Now().UTC())

	input := CallbackInput{TransactionID: payment.TransactionID, Succeeded: true}
	_, err := svc.ApplyGatewayOutcome(context.Background(), input)
	require.NoError(t, err)

	// Same outcome again is a quiet no-op.
	resp, err := svc.ApplyGatewayOutcome(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusSuccess, resp.Status)

	// A conflicting outcome is rejected.
	_, err = svc.ApplyGatewayOutcome(context.Background(), CallbackInput{
		TransactionID: payment.TransactionID,
		Succeeded:     false,
	})
	assert.Equal(t, pkgerrors.CodeStateConflict, errorCode(t, err))
}

func TestServiceApplyGatewayOutcomeSurvivesGuardOutage(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	store := newFakeDedupStore()
	store.fail = true
	svc := newTestService(t, db, store)
	order := seedOrder(t, db, uuid.New(), enums.OrderStatusPending, 50)
	payment := seedPayment(t, db, order.ID, enums.PaymentStatusPending, 50, time.Now().UTC())

	resp, err := svc.ApplyGatewayOutcome(context.Background(), CallbackInput{
		TransactionID: payment.TransactionID,
		Succeeded:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusSuccess, resp.Status)

	// Without the guard the state check still absorbs the redelivery.
	resp, err = svc.ApplyGatewayOutcome(context.Background(), CallbackInput{
		TransactionID: payment.TransactionID,
		Succeeded:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusSuccess, resp.Status)
}

func TestServiceApplyGatewayOutcomeUnknownTransaction(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)

	_, err := svc.ApplyGatewayOutcome(context.Background(), CallbackInput{
		TransactionID: "TXN_0_DEADBEEF",
		Succeeded:     true,
	})
	assert.Equal(t, pkgerrors.CodeNotFound, errorCode(t, err))
}

func TestServiceSimulateCallback(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	order := seedOrder(t, db, uuid.New(), enums.OrderStatusPending, 50)
	payment := seedPayment(t, db, order.ID, enums.PaymentStatusPending, 50, time.Now().UTC())

	resp, err := svc.SimulateCallback(context.Background(), SimulateCallbackInput{
		TransactionID: payment.TransactionID,
		Success:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusSuccess, resp.Status)

	var stored models.Payment
	require.NoError(t, db.First(&stored, "id = ?", payment.ID).Error)
	require.NotNil(t, stored.GatewayResponse)
	assert.Contains(t, *stored.GatewayResponse, `"source":"simulated"`)
}

func TestServiceConfirmPayment(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	order := seedOrder(t, db, uuid.New(), enums.OrderStatusPending, 50)
	payment := seedPayment(t, db, order.ID, enums.PaymentStatusPending, 50, time.Now().UTC())

	_, err := svc.ConfirmPayment(context.Background(), ConfirmPaymentInput{
		PaymentID: payment.ID,
		ActorRole: enums.UserRoleUser,
	})
	assert.Equal(t, pkgerrors.CodeForbidden, errorCode(t, err))

	note := "verified by support"
	resp, err := svc.ConfirmPayment(context.Background(), ConfirmPaymentInput{
		PaymentID: payment.ID,
		AdminNote: &note,
		ActorRole: enums.UserRoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusSuccess, resp.Status)
	require.NotNil(t, resp.PaidAt)
	assert.Equal(t, enums.OrderStatusPaid, orderStatus(t, db, order.ID))

	// Confirming twice is a state conflict.
	_, err = svc.ConfirmPayment(context.Background(), ConfirmPaymentInput{
		PaymentID: payment.ID,
		ActorRole: enums.UserRoleAdmin,
	})
	assert.Equal(t, pkgerrors.CodeStateConflict, errorCode(t, err))
}

func TestServiceCancelPayment(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	owner := uuid.New()
	order := seedOrder(t, db, owner, enums.OrderStatusPending, 50)
	payment := seedPayment(t, db, order.ID, enums.PaymentStatusPending, 50, time.Now().UTC())

	resp, err := svc.CancelPayment(context.Background(), CancelPaymentInput{
		PaymentID: payment.ID,
		ActorID:   owner,
		ActorRole: enums.UserRoleUser,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCancelled, resp.Status)

	// The order keeps waiting; cancelling the payment does not touch it.
	assert.Equal(t, enums.OrderStatusPending, orderStatus(t, db, order.ID))
}

func TestServiceCancelPaymentNotPending(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	owner := uuid.New()
	order := seedOrder(t, db, owner, enums.OrderStatusPaid, 50)
	payment := seedPayment(t, db, order.ID, enums.PaymentStatusSuccess, 50, time.Now().UTC())

	_, err := svc.CancelPayment(context.Background(), CancelPaymentInput{
		PaymentID: payment.ID,
		ActorID:   owner,
		ActorRole: enums.UserRoleUser,
	})
	assert.Equal(t, pkgerrors.CodeStateConflict, errorCode(t, err))
}

func TestServiceRefundPartialThenFull(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	order := seedOrder(t, db, uuid.New(), enums.OrderStatusPaid, 100)
	payment := seedPayment(t, db, order.ID, enums.PaymentStatusSuccess, 100, time.Now().UTC())

	resp, err := svc.Refund(context.Background(), RefundInput{
		PaymentID: payment.ID,
		Amount:    decimal.NewFromInt(40),
		Reason:    "damaged in transit",
		ActorRole: enums.UserRoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPartialRefunded, resp.Status)
	assert.True(t, resp.RefundAmount.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, enums.OrderStatusPaid, orderStatus(t, db, order.ID))

	resp, err = svc.Refund(context.Background(), RefundInput{
		PaymentID: payment.ID,
		Amount:    decimal.NewFromInt(60),
		Reason:    "remainder",
		ActorRole: enums.UserRoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusRefunded, resp.Status)

	// A full refund cascades the order to cancelled.
	assert.Equal(t, enums.OrderStatusCancelled, orderStatus(t, db, order.ID))
}

func TestServiceRefundExceedsBalance(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	order := seedOrder(t, db, uuid.New(), enums.OrderStatusPaid, 100)
	payment := seedPayment(t, db, order.ID, enums.PaymentStatusSuccess, 100, time.Now().UTC())

	_, err := svc.Refund(context.Background(), RefundInput{
		PaymentID: payment.ID,
		Amount:    decimal.NewFromInt(101),
		Reason:    "too much",
		ActorRole: enums.UserRoleAdmin,
	})
	assert.Equal(t, pkgerrors.CodeAmountExceeded, errorCode(t, err))
}

func TestServiceRefundRequiresRefundableState(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	order := seedOrder(t, db, uuid.New(), enums.OrderStatusPending, 100)
	payment := seedPayment(t, db, order.ID, enums.PaymentStatusPending, 100, time.Now().UTC())

	_, err := svc.Refund(context.Background(), RefundInput{
		PaymentID: payment.ID,
		Amount:    decimal.NewFromInt(10),
		Reason:    "not paid yet",
		ActorRole: enums.UserRoleAdmin,
	})
	assert.Equal(t, pkgerrors.CodeStateConflict, errorCode(t, err))
}

func TestServiceCleanupExpiredPayments(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	now := time.Now().UTC()

	stale := seedPayment(t, db, seedOrder(t, db, uuid.New(), enums.OrderStatusPending, 10).ID,
		enums.PaymentStatusPending, 10, now.Add(-48*time.Hour))
	fresh := seedPayment(t, db, seedOrder(t, db, uuid.New(), enums.OrderStatusPending, 20).ID,
		enums.PaymentStatusPending, 20, now)

	swept, err := svc.CleanupExpiredPayments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	var payment models.Payment
	require.NoError(t, db.First(&payment, "id = ?", stale.ID).Error)
	assert.Equal(t, enums.PaymentStatusCancelled, payment.Status)

	require.NoError(t, db.First(&payment, "id = ?", fresh.ID).Error)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)

	// The expired payment's order is not touched by the sweep.
	assert.Equal(t, enums.OrderStatusPending, orderStatus(t, db, stale.OrderID))
}

func TestServiceGetPaymentByOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	owner := uuid.New()
	order := seedOrder(t, db, owner, enums.OrderStatusPending, 50)
	payment := seedPayment(t, db, order.ID, enums.PaymentStatusPending, 50, time.Now().UTC())

	resp, err := svc.GetPaymentByOrder(context.Background(), GetPaymentByOrderInput{
		OrderID:   order.ID,
		ActorID:   owner,
		ActorRole: enums.UserRoleUser,
	})
	require.NoError(t, err)
	assert.Equal(t, payment.ID, resp.ID)

	_, err = svc.GetPaymentByOrder(context.Background(), GetPaymentByOrderInput{
		OrderID:   order.ID,
		ActorID:   uuid.New(),
		ActorRole: enums.UserRoleUser,
	})
	assert.Equal(t, pkgerrors.CodeForbidden, errorCode(t, err))

	_, err = svc.GetPaymentByOrder(context.Background(), GetPaymentByOrderInput{
		OrderID:   uuid.New(),
		ActorID:   owner,
		ActorRole: enums.UserRoleUser,
	})
	assert.Equal(t, pkgerrors.CodeNotFound, errorCode(t, err))
}

func TestServiceListPaymentsScopesToActor(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	actor := uuid.New()

	now := time.Now().UTC()
	mine := seedPayment(t, db, seedOrder(t, db, actor, enums.OrderStatusPending, 10).ID,
		enums.PaymentStatusPending, 10, now)
	seedPayment(t, db, seedOrder(t, db, uuid.New(), enums.OrderStatusPending, 20).ID,
		enums.PaymentStatusPending, 20, now)

	list, err := svc.ListPayments(context.Background(), ListPaymentsInput{
		ActorID:   actor,
		ActorRole: enums.UserRoleUser,
	})
	require.NoError(t, err)
	require.Len(t, list.Payments, 1)
	assert.Equal(t, mine.ID, list.Payments[0].ID)

	all, err := svc.ListPayments(context.Background(), ListPaymentsInput{
		ActorID:   actor,
		ActorRole: enums.UserRoleAdmin,
	})
	require.NoError(t, err)
	assert.Len(t, all.Payments, 2)
}
