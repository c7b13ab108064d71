package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
)

// Adjuster performs conditional stock mutations inside an order transaction.
type Adjuster interface {
	Decrement(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (remaining int, err error)
	Restore(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

type adjuster struct{}

// NewAdjuster exposes the default stock adjuster.
func NewAdjuster() Adjuster {
	return adjuster{}
}

// Decrement reserves stock with a conditional update so concurrent orders
// can never take quantity below zero. Returns the remaining quantity.
func (adjuster) Decrement(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (int, error) {
	if qty <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock decrement")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET quantity = quantity - ?,
			sold_count = sold_count + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND is_active = true AND quantity >= ?
	`, qty, qty, productID, qty)
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement stock")
	}
	if res.RowsAffected == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").
			WithDetails(map[string]any{"productId": productID, "requested": qty})
	}

	var remaining int
	row := tx.WithContext(ctx).Raw(`SELECT quantity FROM products WHERE id = ?`, productID).Row()
	if err := row.Scan(&remaining); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read remaining stock")
	}
	return remaining, nil
}

// Restore returns stock taken by a cancelled order.
func (adjuster) Restore(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock restore")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET quantity = quantity + ?,
			sold_count = GREATEST(sold_count - ?, 0),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, qty, productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restore stock")
	}
	return nil
}
