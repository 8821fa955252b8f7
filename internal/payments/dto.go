package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pageturnhq/bookstore-backend/pkg/db/models"
	"github.com/pageturnhq/bookstore-backend/pkg/enums"
	"github.com/pageturnhq/bookstore-backend/pkg/pagination"
)

// CreatePaymentInput starts a payment attempt for an order.
type CreatePaymentInput struct {
	OrderID   uuid.UUID
	Method    enums.PaymentMethod
	ActorID   uuid.UUID
	ActorRole enums.UserRole
}

// GetPaymentInput identifies a payment plus the principal asking for it.
type GetPaymentInput struct {
	PaymentID uuid.UUID
	ActorID   uuid.UUID
	ActorRole enums.UserRole
}

// GetPaymentByOrderInput looks a payment up through its order.
type GetPaymentByOrderInput struct {
	OrderID   uuid.UUID
	ActorID   uuid.UUID
	ActorRole enums.UserRole
}

// ListPaymentsInput filters the payment listing. Non-admin callers are
// forced onto their own payments.
type ListPaymentsInput struct {
	ActorID   uuid.UUID
	ActorRole enums.UserRole
	UserID    *uuid.UUID
	Status    *enums.PaymentStatus
	Params    pagination.Params
}

// CallbackInput is one asynchronous outcome delivery from the gateway.
type CallbackInput struct {
	TransactionID   string
	Succeeded       bool
	GatewayResponse string
}

// SimulateCallbackInput drives the gateway simulation endpoint.
type SimulateCallbackInput struct {
	TransactionID string `json:"transaction_id" validate:"required"`
	Success       bool   `json:"success"`
}

// ConfirmPaymentInput is the admin manual override for a stuck payment.
type ConfirmPaymentInput struct {
	PaymentID uuid.UUID
	AdminNote *string
	ActorRole enums.UserRole
}

// CancelPaymentInput abandons a pending payment.
type CancelPaymentInput struct {
	PaymentID uuid.UUID
	ActorID   uuid.UUID
	ActorRole enums.UserRole
}

// RefundInput applies one refund against a paid payment.
type RefundInput struct {
	PaymentID uuid.UUID
	Amount    decimal.Decimal
	Reason    string
	AdminNote *string
	ActorRole enums.UserRole
}

// PaymentResponse is the wire form of a payment. PaymentURL and QRCodeData
// are synthesized only while the payment is still pending.
type PaymentResponse struct {
	ID            uuid.UUID           `json:"id"`
	OrderID       uuid.UUID           `json:"order_id"`
	Method        enums.PaymentMethod `json:"method"`
	MethodDisplay string              `json:"method_display"`
	Status        enums.PaymentStatus `json:"status"`
	StatusDisplay string              `json:"status_display"`
	Amount        decimal.Decimal     `json:"amount"`
	TransactionID string              `json:"transaction_id"`
	Gateway       string              `json:"gateway"`
	RefundAmount  decimal.Decimal     `json:"refund_amount"`
	RefundReason  *string             `json:"refund_reason,omitempty"`
	PaymentURL    string              `json:"payment_url,omitempty"`
	QRCodeData    string              `json:"qr_code_data,omitempty"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
	RefundedAt    *time.Time          `json:"refunded_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// PaymentList is one page of payments plus the cursor for the next page.
type PaymentList struct {
	Payments   []PaymentResponse `json:"payments"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// Statistics is the read-only rollup over payment rows.
type Statistics struct {
	CountsByStatus     map[enums.PaymentStatus]int64 `json:"counts_by_status"`
	TotalSuccessAmount decimal.Decimal               `json:"total_success_amount"`
	TotalRefunded      decimal.Decimal               `json:"total_refunded"`
}

func toPaymentResponse(payment *models.Payment) *PaymentResponse {
	resp := &PaymentResponse{
		ID:            payment.ID,
		OrderID:       payment.OrderID,
		Method:        payment.Method,
		MethodDisplay: enums.PaymentMethodDisplayName(payment.Method),
		Status:        payment.Status,
		StatusDisplay: enums.PaymentStatusDisplayName(payment.Status),
		Amount:        payment.Amount,
		TransactionID: payment.TransactionID,
		Gateway:       payment.Gateway,
		RefundAmount:  payment.RefundAmount,
		RefundReason:  payment.RefundReason,
		PaidAt:        payment.PaidAt,
		RefundedAt:    payment.RefundedAt,
		CreatedAt:     payment.CreatedAt,
		UpdatedAt:     payment.UpdatedAt,
	}
	if payment.Status == enums.PaymentStatusPending {
		resp.PaymentURL = gatewayPaymentURL(payment)
		resp.QRCodeData = gatewayQRCodeData(payment)
	}
	return resp
}

func toPaymentList(records []models.Payment, next *pagination.Cursor) *PaymentList {
	list := &PaymentList{Payments: make([]PaymentResponse, 0, len(records))}
	for i := range records {
		list.Payments = append(list.Payments, *toPaymentResponse(&records[i]))
	}
	if next != nil {
		list.NextCursor = pagination.EncodeCursor(*next)
	}
	return list
}
