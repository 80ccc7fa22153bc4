package products

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:products_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.ProductVariation{}))
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, stock int, variations ...models.ProductVariation) *models.Product {
	t.Helper()
	product := &models.Product{
		SKU:          "SKU-" + uuid.NewString(),
		Name:         "Linen Shirt",
		RegularPrice: decimal.NewFromInt(1500),
		TotalStock:   stock,
		Variations:   variations,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func TestFindByIDLoadsVariations(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	seeded := seedProduct(t, db, 5, models.ProductVariation{Color: "Red", Size: "M", Stock: 5})

	product, err := repo.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.Len(t, product.Variations, 1)
	assert.Equal(t, "Red / M", product.Variations[0].Label())
}

func TestFindByIDNotFound(t *testing.T) {
	repo := NewRepository(newTestDB(t))

	_, err := repo.FindByID(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestDecrementStockProduct(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	product := seedProduct(t, db, 3)
	ctx := context.Background()

	require.NoError(t, repo.DecrementStock(ctx, product.ID, nil, 2))
	stock, err := repo.CurrentStock(ctx, product.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stock)

	assert.ErrorIs(t, repo.DecrementStock(ctx, product.ID, nil, 2), ErrStockShortfall)
	stock, err = repo.CurrentStock(ctx, product.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stock, "failed decrement must not change stock")

	require.NoError(t, repo.DecrementStock(ctx, product.ID, nil, 1))
	reloaded, err := repo.FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.TotalStock)
	assert.Equal(t, enums.AvailabilityOutOfStock, reloaded.Availability)
}

func TestDecrementStockVariation(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	product := seedProduct(t, db, 4,
		models.ProductVariation{Color: "Red", Stock: 1},
		models.ProductVariation{Color: "Blue", Stock: 3},
	)
	ctx := context.Background()
	red := product.Variations[0].ID

	require.NoError(t, repo.DecrementStock(ctx, product.ID, &red, 1))
	assert.ErrorIs(t, repo.DecrementStock(ctx, product.ID, &red, 1), ErrStockShortfall)

	variationStock, err := repo.CurrentStock(ctx, product.ID, &red)
	require.NoError(t, err)
	assert.Equal(t, 0, variationStock)
	total, err := repo.CurrentStock(ctx, product.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestDecrementStockRejectsNonPositive(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	err := repo.DecrementStock(context.Background(), uuid.New(), nil, 0)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestDecrementStockRollsBackWithTransaction(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	product := seedProduct(t, db, 2, models.ProductVariation{Color: "Red", Stock: 2})
	red := product.Variations[0].ID
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := repo.WithTx(tx).DecrementStock(ctx, product.ID, &red, 2); err != nil {
			return err
		}
		return repo.WithTx(tx).DecrementStock(ctx, product.ID, nil, 1)
	})
	require.ErrorIs(t, err, ErrStockShortfall)

	stock, err := repo.CurrentStock(ctx, product.ID, &red)
	require.NoError(t, err)
	assert.Equal(t, 2, stock)
}

func TestDecrementStockShortfallOnProductTotalLeavesVariation(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	product := seedProduct(t, db, 1, models.ProductVariation{Color: "Red", Stock: 5})
	red := product.Variations[0].ID
	ctx := context.Background()

	assert.ErrorIs(t, repo.DecrementStock(ctx, product.ID, &red, 2), ErrStockShortfall)

	var variation models.ProductVariation
	require.NoError(t, db.First(&variation, "id = ?", red).Error)
	assert.Equal(t, 5, variation.Stock)

	available, err := repo.CurrentStock(ctx, product.ID, &red)
	require.NoError(t, err)
	assert.Equal(t, 1, available)
}

func TestDecrementStockShortfallInsideTransactionKeepsEarlierWork(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	product := seedProduct(t, db, 4, models.ProductVariation{Color: "Red", Stock: 10})
	red := product.Variations[0].ID
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		stock := repo.WithTx(tx)
		require.NoError(t, stock.DecrementStock(ctx, product.ID, &red, 3))
		require.ErrorIs(t, stock.DecrementStock(ctx, product.ID, &red, 3), ErrStockShortfall)

		available, err := stock.CurrentStock(ctx, product.ID, &red)
		require.NoError(t, err)
		assert.Equal(t, 1, available)

		var variation models.ProductVariation
		require.NoError(t, tx.First(&variation, "id = ?", red).Error)
		assert.Equal(t, 7, variation.Stock)
		return ErrStockShortfall
	})
	require.ErrorIs(t, err, ErrStockShortfall)

	available, err := repo.CurrentStock(ctx, product.ID, &red)
	require.NoError(t, err)
	assert.Equal(t, 4, available)
}
