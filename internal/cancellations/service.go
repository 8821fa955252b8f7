package cancellations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pageturnhq/bookstore-backend/internal/inventory"
	"github.com/pageturnhq/bookstore-backend/internal/orders"
	"github.com/pageturnhq/bookstore-backend/pkg/db"
	"github.com/pageturnhq/bookstore-backend/pkg/db/models"
	"github.com/pageturnhq/bookstore-backend/pkg/enums"
	pkgerrors "github.com/pageturnhq/bookstore-backend/pkg/errors"
	"github.com/pageturnhq/bookstore-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the arbitration flow for orders that already shipped.
type Service interface {
	RequestCancellation(ctx context.Context, input RequestCancellationInput) (*CancelRequestResponse, error)
	Resolve(ctx context.Context, input ResolveInput) (*CancelRequestResponse, error)
	ListPending(ctx context.Context, input ListPendingInput) (*CancelRequestList, error)
}

type service struct {
	repo   Repository
	orders orders.Repository
	stock  inventory.Ledger
	tx     txRunner
}

// NewService builds the arbitration service with the required dependencies.
func NewService(repo Repository, ordersRepo orders.Repository, stock inventory.Ledger, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cancel-request repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, orders: ordersRepo, stock: stock, tx: tx}, nil
}

// RequestCancellation opens the one arbitration request an order is allowed.
// Only the owner may ask, and only while the order is shipped; anything
// earlier cancels directly without arbitration.
func (s *service) RequestCancellation(ctx context.Context, input RequestCancellationInput) (*CancelRequestResponse, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason required")
	}

	var created *models.CancelRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.WithTx(tx).FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.UserID != input.ActorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
		}
		if order.Status != enums.OrderStatusShipped {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only shipped orders go through arbitration").
				WithDetails(map[string]any{"status": order.Status})
		}
		if order.CancelRequest != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "cancel request already exists for order")
		}

		request := &models.CancelRequest{
			ID:      uuid.New(),
			OrderID: order.ID,
			Status:  enums.CancelRequestStatusPending,
			Reason:  strings.TrimSpace(input.Reason),
		}
		if err := s.repo.WithTx(tx).Create(ctx, request); err != nil {
			if db.IsUniqueViolation(err) {
				return pkgerrors.New(pkgerrors.CodeConflict, "cancel request already exists for order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cancel request")
		}
		created = request
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toCancelRequestResponse(created), nil
}

// Resolve settles a pending request. Approval restores the order's reserved
// stock and cancels the order; rejection leaves the order shipped.
func (s *service) Resolve(ctx context.Context, input ResolveInput) (*CancelRequestResponse, error) {
	if input.ActorRole != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var resolved *models.CancelRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := repo.FindByOrderID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cancel request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cancel request")
		}
		if request.Status != enums.CancelRequestStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cancel request already resolved").
				WithDetails(map[string]any{"status": request.Status})
		}

		target := enums.CancelRequestStatusRejected
		if input.Approved {
			target = enums.CancelRequestStatusApproved
		}

		now := time.Now().UTC()
		ok, err := repo.Resolve(ctx, input.OrderID, target, input.AdminNote, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve cancel request")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cancel request already resolved")
		}

		if input.Approved {
			ordersRepo := s.orders.WithTx(tx)
			order, err := ordersRepo.FindByID(ctx, input.OrderID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
			}
			flipped, err := ordersRepo.TransitionStatus(ctx, order.ID,
				[]enums.OrderStatus{enums.OrderStatusShipped}, enums.OrderStatusCancelled, &now)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
			}
			if !flipped {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer shipped")
			}
			for _, line := range order.Lines {
				if err := s.stock.Restore(ctx, tx, line.BookID, line.Quantity); err != nil {
					return err
				}
			}
		}

		request.Status = target
		request.AdminNote = input.AdminNote
		request.ProcessedAt = &now
		resolved = request
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toCancelRequestResponse(resolved), nil
}

func (s *service) ListPending(ctx context.Context, input ListPendingInput) (*CancelRequestList, error) {
	if input.ActorRole != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}

	cursor, err := pagination.ParseCursor(input.Params.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}

	records, next, err := s.repo.ListByStatus(ctx, enums.CancelRequestStatusPending, input.Params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cancel requests")
	}
	return toCancelRequestList(records, next), nil
}
