package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pageturnhq/bookstore-backend/internal/catalog"
	"github.com/pageturnhq/bookstore-backend/internal/inventory"
	"github.com/pageturnhq/bookstore-backend/pkg/db/models"
	"github.com/pageturnhq/bookstore-backend/pkg/enums"
	pkgerrors "github.com/pageturnhq/bookstore-backend/pkg/errors"
	"github.com/pageturnhq/bookstore-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the order workflow operations.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderResponse, error)
	GetOrder(ctx context.Context, input GetOrderInput) (*OrderResponse, error)
	ListOrders(ctx context.Context, input ListOrdersInput) (*OrderList, error)
	CancelOrder(ctx context.Context, input CancelOrderInput) (*OrderResponse, error)
	UpdateOrderStatus(ctx context.Context, input UpdateOrderStatusInput) (*OrderResponse, error)
}

type service struct {
	repo  Repository
	books catalog.Repository
	stock inventory.Ledger
	tx    txRunner
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, books catalog.Repository, stock inventory.Ledger, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if books == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, books: books, stock: stock, tx: tx}, nil
}

// CreateOrder places an order for the actor. Stock reservation, the price
// snapshot, and the order insert all commit or roll back together.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderResponse, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	for _, item := range input.Items {
		if item.BookID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		bookIDs := make([]uuid.UUID, 0, len(input.Items))
		seen := make(map[uuid.UUID]struct{}, len(input.Items))
		for _, item := range input.Items {
			if _, ok := seen[item.BookID]; ok {
				continue
			}
			seen[item.BookID] = struct{}{}
			bookIDs = append(bookIDs, item.BookID)
		}

		books, err := s.books.WithTx(tx).FindByIDs(ctx, bookIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load books")
		}
		byID := make(map[uuid.UUID]models.Book, len(books))
		for _, book := range books {
			byID[book.ID] = book
		}
		for _, id := range bookIDs {
			if _, ok := byID[id]; !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "book not found").
					WithDetails(map[string]any{"book_id": id})
			}
		}

		reservations := make([]inventory.Reservation, 0, len(input.Items))
		for _, item := range input.Items {
			reservations = append(reservations, inventory.Reservation{BookID: item.BookID, Qty: item.Quantity})
		}
		if err := s.stock.Reserve(ctx, tx, reservations); err != nil {
			return err
		}

		total := decimal.Zero
		lines := make([]models.OrderLine, 0, len(input.Items))
		for _, item := range input.Items {
			book := byID[item.BookID]
			lines = append(lines, models.OrderLine{
				ID:              uuid.New(),
				BookID:          item.BookID,
				Quantity:        item.Quantity,
				PriceAtPurchase: book.Price,
			})
			total = total.Add(book.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}

		order := &models.Order{
			ID:         uuid.New(),
			UserID:     input.ActorID,
			Status:     enums.OrderStatusPending,
			TotalPrice: total,
			Lines:      lines,
		}
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toOrderResponse(created), nil
}

func (s *service) GetOrder(ctx context.Context, input GetOrderInput) (*OrderResponse, error) {
	order, err := s.loadOrder(ctx, s.repo, input.OrderID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(order.UserID, input.ActorID, input.ActorRole); err != nil {
		return nil, err
	}
	return toOrderResponse(order), nil
}

func (s *service) ListOrders(ctx context.Context, input ListOrdersInput) (*OrderList, error) {
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return toOrderList(records, next), nil
}

// CancelOrder cancels a PENDING or PAID order and puts the reserved stock
// back. Shipped orders must go through the arbitration flow instead.
func (s *service) CancelOrder(ctx context.Context, input CancelOrderInput) (*OrderResponse, error) {
	var cancelled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if err := requireOwnerOrAdmin(order.UserID, input.ActorID, input.ActorRole); err != nil {
			return err
		}

		now := time.Now().UTC()
		ok, err := repo.TransitionStatus(ctx, order.ID,
			[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusPaid},
			enums.OrderStatusCancelled, &now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be cancelled in its current state").
				WithDetails(map[string]any{"status": order.Status})
		}

		for _, line := range order.Lines {
			if err := s.stock.Restore(ctx, tx, line.BookID, line.Quantity); err != nil {
				return err
			}
		}

		order.Status = enums.OrderStatusCancelled
		order.CanceledAt = &now
		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toOrderResponse(cancelled), nil
}

// UpdateOrderStatus is the admin escape hatch. It applies any valid target
// status without workflow checks, except that cancelled orders are final.
func (s *service) UpdateOrderStatus(ctx context.Context, input UpdateOrderStatusInput) (*OrderResponse, error) {
	if input.ActorRole != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status == input.Status {
			updated = order
			return nil
		}
		if order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled orders cannot change status")
		}

		var canceledAt *time.Time
		if input.Status == enums.OrderStatusCancelled {
			now := time.Now().UTC()
			canceledAt = &now
		}
		ok, err := repo.TransitionStatus(ctx, order.ID, []enums.OrderStatus{order.Status}, input.Status, canceledAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
		}

		order.Status = input.Status
		order.CanceledAt = canceledAt
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toOrderResponse(updated), nil
}

func (s *service) loadOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func requireOwnerOrAdmin(ownerID, actorID uuid.UUID, role enums.UserRole) error {
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if role == enums.UserRoleAdmin || ownerID == actorID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
}
