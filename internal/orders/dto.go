package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pageturnhq/bookstore-backend/pkg/db/models"
	"github.com/pageturnhq/bookstore-backend/pkg/enums"
	"github.com/pageturnhq/bookstore-backend/pkg/pagination"
)

// OrderItemInput is one requested book line in a create call.
type OrderItemInput struct {
	BookID   uuid.UUID `json:"book_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,gt=0"`
}

// CreateOrderInput captures everything needed to place an order.
type CreateOrderInput struct {
	ActorID uuid.UUID
	Items   []OrderItemInput
}

// GetOrderInput identifies an order plus the principal asking for it.
type GetOrderInput struct {
	OrderID   uuid.UUID
	ActorID   uuid.UUID
	ActorRole enums.UserRole
}

// ListOrdersInput filters the order listing. UserID is forced to the actor
// for non-admin callers.
type ListOrdersInput struct {
	ActorID   uuid.UUID
	ActorRole enums.UserRole
	UserID    *uuid.UUID
	Status    *enums.OrderStatus
	Params    pagination.Params
}

// CancelOrderInput captures a direct cancellation by the owner or an admin.
type CancelOrderInput struct {
	OrderID   uuid.UUID
	ActorID   uuid.UUID
	ActorRole enums.UserRole
}

// UpdateOrderStatusInput is the admin escape hatch for order state.
type UpdateOrderStatusInput struct {
	OrderID   uuid.UUID
	Status    enums.OrderStatus
	ActorRole enums.UserRole
}

// OrderLineResponse is the wire form of a snapshot line.
type OrderLineResponse struct {
	ID              uuid.UUID       `json:"id"`
	BookID          uuid.UUID       `json:"book_id"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

// OrderResponse is the wire form of an order.
type OrderResponse struct {
	ID            uuid.UUID           `json:"id"`
	UserID        uuid.UUID           `json:"user_id"`
	Status        enums.OrderStatus   `json:"status"`
	StatusDisplay string              `json:"status_display"`
	TotalPrice    decimal.Decimal     `json:"total_price"`
	Lines         []OrderLineResponse `json:"lines"`
	CanceledAt    *time.Time          `json:"canceled_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// OrderList is one page of orders plus the cursor for the next page.
type OrderList struct {
	Orders     []OrderResponse `json:"orders"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func toOrderResponse(order *models.Order) *OrderResponse {
	resp := &OrderResponse{
		ID:            order.ID,
		UserID:        order.UserID,
		Status:        order.Status,
		StatusDisplay: enums.OrderStatusDisplayName(order.Status),
		TotalPrice:    order.TotalPrice,
		Lines:         make([]OrderLineResponse, 0, len(order.Lines)),
		CanceledAt:    order.CanceledAt,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
	for _, line := range order.Lines {
		resp.Lines = append(resp.Lines, OrderLineResponse{
			ID:              line.ID,
			BookID:          line.BookID,
			Quantity:        line.Quantity,
			PriceAtPurchase: line.PriceAtPurchase,
		})
	}
	return resp
}

func toOrderList(records []models.Order, next *pagination.Cursor) *OrderList {
	list := &OrderList{Orders: make([]OrderResponse, 0, len(records))}
	for i := range records {
		list.Orders = append(list.Orders, *toOrderResponse(&records[i]))
	}
	if next != nil {
		list.NextCursor = pagination.EncodeCursor(*next)
	}
	return list
}
