package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// Product is the catalog listing read by the cart and checkout flows.
type Product struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	SKU          string             `gorm:"column:sku;not null;uniqueIndex"`
	Name         string             `gorm:"column:name;not null"`
	RegularPrice decimal.Decimal    `gorm:"column:regular_price;type:numeric(12,2);not null"`
	SalePrice    *decimal.Decimal   `gorm:"column:sale_price;type:numeric(12,2)"`
	TotalStock   int                `gorm:"column:total_stock;not null"`
	Availability enums.Availability `gorm:"column:availability;type:availability;not null"`
	Variations   []ProductVariation `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	if p.Availability == "" {
		p.Availability = enums.AvailabilityInStock
	}
	return nil
}

// Variation returns the variation with the given id.
func (p *Product) Variation(id uuid.UUID) (*ProductVariation, bool) {
	for i := range p.Variations {
		if p.Variations[i].ID == id {
			return &p.Variations[i], true
		}
	}
	return nil, false
}

// ProductVariation is a color/size/material combination with its own stock.
type ProductVariation struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	Color     string    `gorm:"column:color;not null;default:''"`
	Size      string    `gorm:"column:size;not null;default:''"`
	Material  string    `gorm:"column:material;not null;default:''"`
	Stock     int       `gorm:"column:stock;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariation) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

// Label renders the variation for display, e.g. "Red / XL / Cotton".
func (v ProductVariation) Label() string {
	parts := make([]string, 0, 3)
	for _, part := range []string{v.Color, v.Size, v.Material} {
		if s := strings.TrimSpace(part); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " / ")
}
