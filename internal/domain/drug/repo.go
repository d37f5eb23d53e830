package drug

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository is the storage contract for drug variants.
type Repository interface {
	// FindVariantsByCode returns all active variants holding the exact
	// code, cheapest first.
	FindVariantsByCode(ctx context.Context, code string) ([]*Variant, error)

	// FindSimilarCodes returns up to limit active variants whose code
	// shares the given prefix, excluding the exact code itself.
	FindSimilarCodes(ctx context.Context, prefix, exclude string, limit int) ([]CodeSuggestion, error)

	// FindByCodeAndPrice returns the active variant with this exact
	// (code, price) pairing, or ErrNotFound. A non-nil excludeID skips
	// that row, so an edit does not collide with itself.
	FindByCodeAndPrice(ctx context.Context, code string, price decimal.Decimal, excludeID *uuid.UUID) (*Variant, error)

	// CountActiveByCode counts active variants under the code.
	CountActiveByCode(ctx context.Context, code string) (int, error)

	Create(ctx context.Context, v *Variant) error
	GetByID(ctx context.Context, id uuid.UUID) (*Variant, error)
	Update(ctx context.Context, v *Variant) error

	// Deactivate soft-deletes the variant. Its (code, price) slot is
	// freed for reuse.
	Deactivate(ctx context.Context, id uuid.UUID) error

	// Search filters active variants by free text over code, name and
	// generic name.
	Search(ctx context.Context, query, category string, limit, offset int) ([]*Variant, int, error)
}
