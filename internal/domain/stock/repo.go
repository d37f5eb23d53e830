package stock

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a stock record lookup misses.
var ErrNotFound = errors.New("stock record not found")

// Repository is the storage contract for stock records.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	GetByDrugAndDepartment(ctx context.Context, drugID uuid.UUID, department string) (*Record, error)

	// UpdateQuantity sets the absolute quantity and value and bumps
	// last_updated.
	UpdateQuantity(ctx context.Context, rec *Record) error

	// List returns records for a department, optionally only those at or
	// below their minimum threshold.
	List(ctx context.Context, department string, lowOnly bool, limit, offset int) ([]*Record, int, error)
}

// TransactionRepository is the storage contract for the movement ledger.
type TransactionRepository interface {
	Create(ctx context.Context, tx *Transaction) error
	ListByStock(ctx context.Context, stockID uuid.UUID, limit, offset int) ([]*Transaction, int, error)
}
