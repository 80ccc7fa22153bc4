package products

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

// Repository reads catalog rows and performs the checkout stock decrement.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads the product with its variations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Variations").
		First(&product, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"productId": id.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return &product, nil
}

// CurrentStock reads the live number of sellable units for the selection.
// A variation can never sell more than the product total, so the smaller of
// the two figures is returned.
func (r *Repository) CurrentStock(ctx context.Context, productID uuid.UUID, variationID *uuid.UUID) (int, error) {
	db := r.db.WithContext(ctx)
	var total int
	if err := db.Model(&models.Product{}).
		Select("total_stock").
		Where("id = ?", productID).
		Scan(&total).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock")
	}
	if variationID == nil {
		return total, nil
	}
	var stock int
	if err := db.Model(&models.ProductVariation{}).
		Select("stock").
		Where("id = ? AND product_id = ?", *variationID, productID).
		Scan(&stock).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read variation stock")
	}
	return min(stock, total), nil
}

// DecrementStock removes qty units with conditional UPDATEs. A variation
// decrements both its own stock and the product total. The statements run in
// a nested transaction (a savepoint inside a caller's transaction), so when a
// guard fails no row changes and ErrStockShortfall is returned.
func (r *Repository) DecrementStock(ctx context.Context, productID uuid.UUID, variationID *uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if variationID != nil {
			res := tx.Model(&models.ProductVariation{}).
				Where("id = ? AND product_id = ? AND stock >= ?", *variationID, productID, qty).
				Update("stock", gorm.Expr("stock - ?", qty))
			if res.Error != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement variation stock")
			}
			if res.RowsAffected == 0 {
				return ErrStockShortfall
			}
		}

		res := tx.Model(&models.Product{}).
			Where("id = ? AND total_stock >= ?", productID, qty).
			Update("total_stock", gorm.Expr("total_stock - ?", qty))
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement product stock")
		}
		if res.RowsAffected == 0 {
			return ErrStockShortfall
		}

		if err := tx.Model(&models.Product{}).
			Where("id = ? AND total_stock = 0", productID).
			Update("availability", enums.AvailabilityOutOfStock).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "flag sold out")
		}
		return nil
	})
}

// ErrStockShortfall signals that a conditional decrement matched no row.
var ErrStockShortfall = errors.New("stock shortfall")
