package inventory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/pageturnhq/bookstore-backend/pkg/errors"
)

// Reservation asks for qty units of a single book.
type Reservation struct {
	BookID uuid.UUID
	Qty    int
}

// Ledger is the only writer of book stock during order and cancellation
// flows. Reserve and Restore must run inside the caller's transaction so a
// failing order creation rolls every decrement back.
type Ledger interface {
	Reserve(ctx context.Context, tx *gorm.DB, requests []Reservation) error
	Restore(ctx context.Context, tx *gorm.DB, bookID uuid.UUID, qty int) error
}

type ledger struct{}

// NewLedger exposes the default stock ledger implementation.
func NewLedger() Ledger {
	return ledger{}
}

// Reserve decrements stock for every request as one all-or-nothing unit.
// Each decrement is a guarded UPDATE, so two concurrent reservations on the
// same book can never jointly drive stock negative; the losing statement
// simply matches no row.
func (ledger) Reserve(ctx context.Context, tx *gorm.DB, requests []Reservation) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock reservation")
	}

	ordered := make([]Reservation, len(requests))
	copy(ordered, requests)
	// Lock rows in a stable order so concurrent multi-line orders cannot
	// deadlock each other.
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].BookID.String() < ordered[j].BookID.String()
	})

	for _, request := range ordered {
		if request.BookID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "book id required")
		}
		if request.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
		}

		res := tx.WithContext(ctx).Exec(`
			UPDATE books
			SET stock = stock - ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND stock >= ?
		`, request.Qty, request.BookID, request.Qty)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
		}
		if res.RowsAffected == 0 {
			exists, err := bookExists(ctx, tx, request.BookID)
			if err != nil {
				return err
			}
			if !exists {
				return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
			}
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
				WithDetails(map[string]any{"book_id": request.BookID, "requested": request.Qty})
		}
	}
	return nil
}

// Restore returns qty units to the book's stock. Callers are responsible
// for not restoring the same reservation twice; both callers flip the order
// into a terminal state in the same transaction.
func (ledger) Restore(ctx context.Context, tx *gorm.DB, bookID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock restore")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE books
		SET stock = stock + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, bookID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restore stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
	}
	return nil
}

func bookExists(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) (bool, error) {
	var count int64
	if err := tx.WithContext(ctx).Raw(`SELECT COUNT(1) FROM books WHERE id = ?`, bookID).Scan(&count).Error; err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up book")
	}
	return count > 0, nil
}
