package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// Coupon is administered elsewhere; checkout only bumps UsedCount.
type Coupon struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Code              string             `gorm:"column:code;not null;uniqueIndex"`
	DiscountType      enums.DiscountType `gorm:"column:discount_type;type:discount_type;not null"`
	DiscountValue     decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null"`
	MinPurchaseAmount decimal.Decimal    `gorm:"column:min_purchase_amount;type:numeric(12,2);not null"`
	MaxDiscountAmount *decimal.Decimal   `gorm:"column:max_discount_amount;type:numeric(12,2)"`
	UsageLimit        *int               `gorm:"column:usage_limit"`
	UsageLimitPerUser int                `gorm:"column:usage_limit_per_user;not null"`
	UsedCount         int                `gorm:"column:used_count;not null"`
	StartDate         time.Time          `gorm:"column:start_date;not null"`
	EndDate           time.Time          `gorm:"column:end_date;not null"`
	Enabled           bool               `gorm:"column:enabled;not null"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
