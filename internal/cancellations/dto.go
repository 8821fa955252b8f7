package cancellations

import (
	"time"

	"github.com/google/uuid"

	"github.com/pageturnhq/bookstore-backend/pkg/db/models"
	"github.com/pageturnhq/bookstore-backend/pkg/enums"
	"github.com/pageturnhq/bookstore-backend/pkg/pagination"
)

// RequestCancellationInput opens an arbitration request for a shipped order.
type RequestCancellationInput struct {
	OrderID uuid.UUID
	Reason  string
	ActorID uuid.UUID
}

// ResolveInput records an admin's decision on a pending request.
type ResolveInput struct {
	OrderID   uuid.UUID
	Approved  bool
	AdminNote *string
	ActorRole enums.UserRole
}

// ListPendingInput pages through requests awaiting arbitration.
type ListPendingInput struct {
	ActorRole enums.UserRole
	Params    pagination.Params
}

// CancelRequestResponse is the wire form of an arbitration request.
type CancelRequestResponse struct {
	ID          uuid.UUID                 `json:"id"`
	OrderID     uuid.UUID                 `json:"order_id"`
	Status      enums.CancelRequestStatus `json:"status"`
	Reason      string                    `json:"reason"`
	AdminNote   *string                   `json:"admin_note,omitempty"`
	ProcessedAt *time.Time                `json:"processed_at,omitempty"`
	CreatedAt   time.Time                 `json:"created_at"`
}

// CancelRequestList is one page of requests plus the cursor for the next page.
type CancelRequestList struct {
	Requests   []CancelRequestResponse `json:"requests"`
	NextCursor string                  `json:"next_cursor,omitempty"`
}

func toCancelRequestResponse(request *models.CancelRequest) *CancelRequestResponse {
	return &CancelRequestResponse{
		ID:          request.ID,
		OrderID:     request.OrderID,
		Status:      request.Status,
		Reason:      request.Reason,
		AdminNote:   request.AdminNote,
		ProcessedAt: request.ProcessedAt,
		CreatedAt:   request.CreatedAt,
	}
}

func toCancelRequestList(records []models.CancelRequest, next *pagination.Cursor) *CancelRequestList {
	list := &CancelRequestList{Requests: make([]CancelRequestResponse, 0, len(records))}
	for i := range records {
		list.Requests = append(list.Requests, *toCancelRequestResponse(&records[i]))
	}
	if next != nil {
		list.NextCursor = pagination.EncodeCursor(*next)
	}
	return list
}
