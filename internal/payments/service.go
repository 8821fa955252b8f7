package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/pageturnhq/bookstore-backend/internal/orders"
	"github.com/pageturnhq/bookstore-backend/pkg/db"
	"github.com/pageturnhq/bookstore-backend/pkg/db/models"
	"github.com/pageturnhq/bookstore-backend/pkg/enums"
	pkgerrors "github.com/pageturnhq/bookstore-backend/pkg/errors"
	"github.com/pageturnhq/bookstore-backend/pkg/logger"
	"github.com/pageturnhq/bookstore-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the payment processor operations.
type Service interface {
	CreatePayment(ctx context.Context, input CreatePaymentInput) (*PaymentResponse, error)
	GetPayment(ctx context.Context, input GetPaymentInput) (*PaymentResponse, error)
	GetPaymentByOrder(ctx context.Context, input GetPaymentByOrderInput) (*PaymentResponse, error)
	ListPayments(ctx context.Context, input ListPaymentsInput) (*PaymentList, error)
	ApplyGatewayOutcome(ctx context.Context, input CallbackInput) (*PaymentResponse, error)
	SimulateCallback(ctx context.Context, input SimulateCallbackInput) (*PaymentResponse, error)
	ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*PaymentResponse, error)
	CancelPayment(ctx context.Context, input CancelPaymentInput) (*PaymentResponse, error)
	Refund(ctx context.Context, input RefundInput) (*PaymentResponse, error)
	CleanupExpiredPayments(ctx context.Context) (int, error)
}

// ServiceParams bundles the dependencies a payment service needs.
type ServiceParams struct {
	Repo       Repository
	Orders     orders.Repository
	Guard      *CallbackGuard
	Tx         txRunner
	Logger     *logger.Logger
	PendingTTL time.Duration
}

type service struct {
	repo       Repository
	orders     orders.Repository
	guard      *CallbackGuard
	tx         txRunner
	logg       *logger.Logger
	pendingTTL time.Duration
}

const defaultPendingTTL = 24 * time.Hour

// NewService builds a payment service. Guard may be nil; the database state
// checks keep callback handling idempotent without it.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	ttl := params.PendingTTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	return &service{
		repo:       params.Repo,
		orders:     params.Orders,
		guard:      params.Guard,
		tx:         params.Tx,
		logg:       params.Logger,
		pendingTTL: ttl,
	}, nil
}

// CreatePayment opens the single payment attempt an order is allowed. The
// amount is pinned to the order total and the transaction id is minted here.
func (s *service) CreatePayment(ctx context.Context, input CreatePaymentInput) (*PaymentResponse, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	var created *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.loadOrder(ctx, tx, input.OrderID)
		if err != nil {
			return err
		}
		if err := requireOwnerOrAdmin(order.UserID, input.ActorID, input.ActorRole); err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").
				WithDetails(map[string]any{"status": order.Status})
		}

		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByOrderID(ctx, order.ID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "payment already exists for order")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing payment")
		}

		payment := &models.Payment{
			ID:            uuid.New(),
			OrderID:       order.ID,
			Method:        input.Method,
			Status:        enums.PaymentStatusPending,
			Amount:        order.TotalPrice,
			TransactionID: newTransactionID(),
			Gateway:       enums.PaymentMethodGateway(input.Method),
		}
		if err := repo.Create(ctx, payment); err != nil {
			if db.IsUniqueViolation(err) {
				return pkgerrors.New(pkgerrors.CodeConflict, "payment already exists for order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}
		created = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toPaymentResponse(created), nil
}

func (s *service) GetPayment(ctx context.Context, input GetPaymentInput) (*PaymentResponse, error) {
	payment, err := s.loadPayment(ctx, s.repo, input.PaymentID)
	if err != nil {
		return nil, err
	}
	if err := s.requirePaymentAccess(ctx, payment, input.ActorID, input.ActorRole); err != nil {
		return nil, err
	}
	return toPaymentResponse(payment), nil
}

func (s *service) GetPaymentByOrder(ctx context.Context, input GetPaymentByOrderInput) (*PaymentResponse, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	payment, err := s.repo.FindByOrderID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if err := s.requirePaymentAccess(ctx, payment, input.ActorID, input.ActorRole); err != nil {
		return nil, err
	}
	return toPaymentResponse(payment), nil
}

func (s *service) ListPayments(ctx context.Context, input ListPaymentsInput) (*PaymentList, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	filters := ListFilters{Status: input.Status}
	if input.ActorRole == enums.UserRoleAdmin {
		filters.UserID = input.UserID
	} else {
		actor := input.ActorID
		filters.UserID = &actor
	}

	cursor, err := pagination.ParseCursor(input.Params.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}

	records, next, err := s.repo.List(ctx, filters, input.Params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return toPaymentList(records, next), nil
}

// ApplyGatewayOutcome lands an asynchronous gateway notification. Redelivery
// of an outcome the payment already reached is a no-op; a conflicting
// outcome after a terminal state is rejected.
func (s *service) ApplyGatewayOutcome(ctx context.Context, input CallbackInput) (*PaymentResponse, error) {
	if input.TransactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	target := outcomeStatus(input.Succeeded)

	marked := false
	if s.guard != nil {
		duplicate, err := s.guard.CheckAndMark(ctx, input.TransactionID, input.Succeeded)
		switch {
		case err != nil:
			// Dedup is advisory. The state checks below keep redelivery
			// safe when Redis is unavailable.
			s.logg.Warn(s.logg.WithField(ctx, "transaction_id", input.TransactionID), "callback dedup unavailable")
		case duplicate:
			payment, loadErr := s.loadPaymentByTransactionID(ctx, s.repo, input.TransactionID)
			if loadErr != nil {
				return nil, loadErr
			}
			if payment.Status == target {
				return toPaymentResponse(payment), nil
			}
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "conflicting gateway outcome for transaction")
		default:
			marked = true
		}
	}

	var applied *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := s.loadPaymentByTransactionID(ctx, repo, input.TransactionID)
		if err != nil {
			return err
		}
		if payment.Status == target {
			applied = payment
			return nil
		}

		updates := OutcomeUpdates{}
		if input.GatewayResponse != "" {
			raw := input.GatewayResponse
			updates.GatewayResponse = &raw
		}
		var paidAt *time.Time
		if input.Succeeded {
			now := time.Now().UTC()
			paidAt = &now
			updates.PaidAt = paidAt
		}

		ok, err := repo.TransitionStatus(ctx, payment.ID,
			[]enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusProcessing},
			target, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply gateway outcome")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "conflicting gateway outcome for transaction").
				WithDetails(map[string]any{"status": payment.Status})
		}

		if input.Succeeded {
			if _, err := s.orders.WithTx(tx).TransitionStatus(ctx, payment.OrderID,
				[]enums.OrderStatus{enums.OrderStatusPending}, enums.OrderStatusPaid, nil); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
			}
		}

		payment.Status = target
		payment.PaidAt = paidAt
		if updates.GatewayResponse != nil {
			payment.GatewayResponse = updates.GatewayResponse
		}
		applied = payment
		return nil
	})
	if err != nil {
		if marked {
			if forgetErr := s.guard.Forget(ctx, input.TransactionID, input.Succeeded); forgetErr != nil {
				s.logg.Warn(s.logg.WithField(ctx, "transaction_id", input.TransactionID), "release callback dedup key failed")
			}
		}
		return nil, err
	}
	return toPaymentResponse(applied), nil
}

// SimulateCallback stands in for the real gateway in development flows. It
// synthesizes a gateway response body and applies the requested outcome.
func (s *service) SimulateCallback(ctx context.Context, input SimulateCallbackInput) (*PaymentResponse, error) {
	return s.ApplyGatewayOutcome(ctx, CallbackInput{
		TransactionID:   input.TransactionID,
		Succeeded:       input.Success,
		GatewayResponse: simulatedGatewayResponse(input.TransactionID, input.Success, time.Now()),
	})
}

// ConfirmPayment is the admin manual override: same effect as a SUCCESS
// outcome, allowed only while the payment is still pending.
func (s *service) ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*PaymentResponse, error) {
	if input.ActorRole != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}

	var confirmed *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := s.loadPayment(ctx, repo, input.PaymentID)
		if err != nil {
			return err
		}
		if payment.Status != enums.PaymentStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not pending").
				WithDetails(map[string]any{"status": payment.Status})
		}

		now := time.Now().UTC()
		ok, err := repo.TransitionStatus(ctx, payment.ID,
			[]enums.PaymentStatus{enums.PaymentStatusPending},
			enums.PaymentStatusSuccess,
			OutcomeUpdates{PaidAt: &now, AdminNote: input.AdminNote})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm payment")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment changed concurrently")
		}

		if _, err := s.orders.WithTx(tx).TransitionStatus(ctx, payment.OrderID,
			[]enums.OrderStatus{enums.OrderStatusPending}, enums.OrderStatusPaid, nil); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}

		payment.Status = enums.PaymentStatusSuccess
		payment.PaidAt = &now
		payment.AdminNote = input.AdminNote
		confirmed = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toPaymentResponse(confirmed), nil
}

// CancelPayment abandons a pending payment. The order stays untouched and
// can be paid again only through the admin escape hatch, since the one
// payment slot per order is now spent.
func (s *service) CancelPayment(ctx context.Context, input CancelPaymentInput) (*PaymentResponse, error) {
	var cancelled *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := s.loadPayment(ctx, repo, input.PaymentID)
		if err != nil {
			return err
		}
		order, err := s.loadOrder(ctx, tx, payment.OrderID)
		if err != nil {
			return err
		}
		if err := requireOwnerOrAdmin(order.UserID, input.ActorID, input.ActorRole); err != nil {
			return err
		}
		if payment.Status != enums.PaymentStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not pending").
				WithDetails(map[string]any{"status": payment.Status})
		}

		ok, err := repo.TransitionStatus(ctx, payment.ID,
			[]enums.PaymentStatus{enums.PaymentStatusPending},
			enums.PaymentStatusCancelled, OutcomeUpdates{})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel payment")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment changed concurrently")
		}

		payment.Status = enums.PaymentStatusCancelled
		cancelled = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toPaymentResponse(cancelled), nil
}

// Refund accumulates a refund against a successful payment. Reaching the
// full amount flips the payment to refunded and cascades the order to
// cancelled; reserved stock is not restored on this path.
func (s *service) Refund(ctx context.Context, input RefundInput) (*PaymentResponse, error) {
	if input.ActorRole != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	var refunded *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := s.loadPayment(ctx, repo, input.PaymentID)
		if err != nil {
			return err
		}
		if payment.Status != enums.PaymentStatusSuccess && payment.Status != enums.PaymentStatusPartialRefunded {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not refundable").
				WithDetails(map[string]any{"status": payment.Status})
		}
		if payment.RefundAmount.Add(input.Amount).GreaterThan(payment.Amount) {
			return pkgerrors.New(pkgerrors.CodeAmountExceeded, "refund exceeds remaining balance").
				WithDetails(map[string]any{
					"amount":           payment.Amount,
					"already_refunded": payment.RefundAmount,
					"requested":        input.Amount,
				})
		}

		now := time.Now().UTC()
		ok, err := repo.AccumulateRefund(ctx, payment.ID, input.Amount, input.Reason, input.AdminNote, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accumulate refund")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeAmountExceeded, "refund exceeds remaining balance")
		}

		payment, err = s.loadPayment(ctx, repo, payment.ID)
		if err != nil {
			return err
		}
		if payment.Status == enums.PaymentStatusRefunded {
			if _, err := s.orders.WithTx(tx).TransitionStatus(ctx, payment.OrderID,
				[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusPaid, enums.OrderStatusShipped},
				enums.OrderStatusCancelled, &now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel fully refunded order")
			}
		}
		refunded = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toPaymentResponse(refunded), nil
}

// CleanupExpiredPayments cancels every pending payment older than the
// configured TTL. Each payment transitions in its own transaction; one
// failure does not stop the sweep.
func (s *service) CleanupExpiredPayments(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.pendingTTL)
	expired, err := s.repo.FindExpiredPending(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find expired payments")
	}

	var swept int
	var errs error
	for _, payment := range expired {
		sweepErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			ok, err := s.repo.WithTx(tx).TransitionStatus(ctx, payment.ID,
				[]enums.PaymentStatus{enums.PaymentStatusPending},
				enums.PaymentStatusCancelled, OutcomeUpdates{})
			if err != nil {
				return err
			}
			if ok {
				swept++
			}
			return nil
		})
		if sweepErr != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire payment %s: %w", payment.ID, sweepErr))
		}
	}
	if swept > 0 {
		s.logg.Info(s.logg.WithField(ctx, "count", swept), "expired pending payments cancelled")
	}
	return swept, errs
}

func (s *service) loadPayment(ctx context.Context, repo Repository, paymentID uuid.UUID) (*models.Payment, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

func (s *service) loadPaymentByTransactionID(ctx context.Context, repo Repository, transactionID string) (*models.Payment, error) {
	payment, err := repo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found for transaction")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

func (s *service) loadOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.WithTx(tx).FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) requirePaymentAccess(ctx context.Context, payment *models.Payment, actorID uuid.UUID, role enums.UserRole) error {
	if role == enums.UserRoleAdmin {
		return nil
	}
	order, err := s.orders.FindByID(ctx, payment.OrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order for payment")
	}
	return requireOwnerOrAdmin(order.UserID, actorID, role)
}

func requireOwnerOrAdmin(ownerID, actorID uuid.UUID, role enums.UserRole) error {
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if role == enums.UserRoleAdmin || ownerID == actorID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "payment does not belong to user")
}
