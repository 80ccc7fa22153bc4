package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Order{}, &models.OrderItem{}, &models.OutboxEvent{}))
	return conn
}

func newOrder(sessionID string, userID, coupon, key *string) *models.Order {
	addr := types.Address{Name: "Rahim", Mobile: "01700000000", Street: "12 Lake Rd", District: "Dhaka", City: "Dhaka", Zip: "1207"}
	return &models.Order{
		OrderNumber:     "SO-" + uuid.NewString()[:8],
		SessionID:       sessionID,
		UserID:          userID,
		IdempotencyKey:  key,
		ShippingAddress: addr,
		BillingAddress:  addr,
		ShippingMethod:  enums.ShippingMethodStandard,
		Subtotal:        decimal.NewFromInt(4800),
		Discount:        decimal.Zero,
		ShippingCost:    decimal.NewFromInt(100),
		VAT:             decimal.NewFromInt(480),
		Total:           decimal.NewFromInt(5380),
		CouponCode:      coupon,
		PaymentMethod:   enums.PaymentMethodCashOnDelivery,
		PaymentStatus:   enums.PaymentStatusPending,
		Status:          enums.OrderStatusPending,
		Items: []models.OrderItem{{
			ProductID: uuid.New(),
			SKU:       "SHIRT-1",
			Name:      "Linen Shirt",
			UnitPrice: decimal.NewFromInt(2400),
			Quantity:  2,
			LineTotal: decimal.NewFromInt(4800),
		}},
	}
}

func strPtr(s string) *string { return &s }

func TestRepositoryCreateAndFind(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	created, err := repo.Create(ctx, newOrder("sess-1", nil, nil, strPtr("key-1")))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)

	found, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "Linen Shirt", found.Items[0].Name)
	assert.Equal(t, "Dhaka", found.ShippingAddress.City)
	assert.True(t, found.Total.Equal(decimal.NewFromInt(5380)))

	byKey, err := repo.FindByIdempotencyKey(ctx, "key-1")
	require.NoError(t, err)
	require.NotNil(t, byKey)
	assert.Equal(t, created.ID, byKey.ID)

	missing, err := repo.FindByIdempotencyKey(ctx, "key-2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoryIdempotencyKeyIsUnique(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	_, err := repo.Create(ctx, newOrder("sess-1", nil, nil, strPtr("dup")))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newOrder("sess-1", nil, nil, strPtr("dup")))
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, ""))
}

func TestRepositoryCountCouponRedemptions(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	_, err := repo.Create(ctx, newOrder("s1", strPtr("u1"), strPtr("SAVE10"), nil))
	require.NoError(t, err)
	canceled, err := repo.Create(ctx, newOrder("s2", strPtr("u1"), strPtr("SAVE10"), nil))
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(ctx, canceled.ID, enums.OrderStatusPending, enums.OrderStatusCanceled, nil))
	_, err = repo.Create(ctx, newOrder("s3", strPtr("u2"), strPtr("SAVE10"), nil))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newOrder("s4", strPtr("u1"), strPtr("OTHER"), nil))
	require.NoError(t, err)

	count, err := repo.CountCouponRedemptions(ctx, "SAVE10", "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestRepositoryUpdateStatusMissing(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	err := repo.UpdateStatus(context.Background(), uuid.New(), enums.OrderStatusProcessing, enums.OrderStatusShipped, nil)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryUpdateStatusGuardsCurrentStatus(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	order, err := repo.Create(ctx, newOrder("sess-1", nil, nil, nil))
	require.NoError(t, err)

	// Two admins both saw pending; only the first transition applies.
	require.NoError(t, repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusProcessing, nil))
	err = repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCanceled, nil)
	assert.ErrorIs(t, err, ErrStatusChanged)

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, stored.Status)
}
