package orders

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order together with its items.
func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIdempotencyKey returns nil, nil when no order carries the key.
func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	if strings.TrimSpace(key) == "" {
		return nil, nil
	}
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("idempotency_key = ?", key).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// CountCouponRedemptions counts the non-canceled orders a user placed with code.
func (r *repository) CountCouponRedemptions(ctx context.Context, code, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("coupon_code = ? AND user_id = ? AND status <> ?", code, userID, enums.OrderStatusCanceled).
		Count(&count).Error
	return count, err
}

// UpdateStatus moves the order from one status to another. The update only
// matches while the row still holds from; a concurrent transition that got
// there first yields ErrStatusChanged.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, trackingNumber *string) error {
	updates := map[string]any{"status": to}
	if trackingNumber != nil {
		updates["tracking_number"] = *trackingNumber
	}
	db := r.db.WithContext(ctx)
	res := db.Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var exists int64
	if err := db.Model(&models.Order{}).Where("id = ?", id).Count(&exists).Error; err != nil {
		return err
	}
	if exists == 0 {
		return gorm.ErrRecordNotFound
	}
	return ErrStatusChanged
}

// ErrStatusChanged reports that the order left the expected status before
// the update ran.
var ErrStatusChanged = errors.New("order status changed concurrently")
