package main

import (
	"github.com/angelmondragon/storefront-checkout/api/routes"
	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/internal/coupons"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/internal/products"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

func pricingConfig(cfg config.PricingConfig) pricing.Config {
	return pricing.Config{
		VATRatePercent:    cfg.VATRatePercent,
		ShippingThreshold: cfg.ShippingThreshold,
		FlatShippingFee:   cfg.FlatShippingFee,
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, checkoutMetrics *metrics.CheckoutMetrics) (routes.Services, error) {
	conn := dbClient.DB()
	priceCfg := pricingConfig(cfg.Pricing)

	productsRepo := products.NewRepository(conn)
	couponsRepo := coupons.NewRepository(conn)
	ordersRepo := orders.NewRepository(conn)
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)

	validator, err := coupons.NewValidator(couponsRepo, logg,
		coupons.WithRedemptionCounter(ordersRepo),
		coupons.WithMetrics(checkoutMetrics),
	)
	if err != nil {
		return routes.Services{}, err
	}

	cartRepo, err := cart.NewRedisRepository(redisClient, cfg.Redis.CartTTL)
	if err != nil {
		return routes.Services{}, err
	}
	notifier := cart.NewRedisNotifier(redisClient, logg)

	cartSvc, err := cart.NewService(cart.ServiceParams{
		Repository: cartRepo,
		Products:   productsRepo,
		Coupons:    validator,
		Notifier:   notifier,
		Metrics:    checkoutMetrics,
		Logger:     logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Tx:          dbClient,
		Products:    productsRepo,
		Coupons:     couponsRepo,
		Validator:   validator,
		Orders:      ordersRepo,
		Outbox:      outboxSvc,
		Sequence:    redisClient,
		Cart:        cartSvc,
		Pricing:     priceCfg,
		OrderPrefix: cfg.Checkout.OrderNumberPrefix,
		Metrics:     checkoutMetrics,
		Logger:      logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	ordersSvc, err := orders.NewService(ordersRepo, dbClient, outboxSvc, logg)
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		DB:         dbClient,
		Redis:      redisClient,
		Cart:       cartSvc,
		CartEvents: notifier,
		Coupons:    validator,
		Checkout:   checkoutSvc,
		Orders:     ordersSvc,
		Pricing:    priceCfg,
	}, nil
}
