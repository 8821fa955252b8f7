package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pageturnhq/bookstore-backend/pkg/db/models"
)

// Repository exposes the book reads the order flow needs. Catalog management
// lives elsewhere; this package only answers "what does this book cost" and
// "does it exist".
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, bookID uuid.UUID) (*models.Book, error)
	FindByIDs(ctx context.Context, bookIDs []uuid.UUID) ([]models.Book, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository over the provided DB handle.
func NewRepository(db *gorm.DB) Repository {
	if db == nil {
		return nil
	}
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, bookID uuid.UUID) (*models.Book, error) {
	var book models.Book
	err := r.db.WithContext(ctx).
		Where("id = ?", bookID).
		First(&book).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *repository) FindByIDs(ctx context.Context, bookIDs []uuid.UUID) ([]models.Book, error) {
	if len(bookIDs) == 0 {
		return nil, nil
	}
	var books []models.Book
	err := r.db.WithContext(ctx).
		Where("id IN ?", bookIDs).
		Find(&books).Error
	if err != nil {
		return nil, err
	}
	return books, nil
}
