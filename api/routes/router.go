package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-checkout/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-checkout/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/storefront-checkout/api/controllers/orders"
	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/internal/cart"
	checkoutsvc "github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/internal/coupons"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	pkgAuth "github.com/angelmondragon/storefront-checkout/pkg/auth"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

// Services is everything the HTTP surface calls into.
type Services struct {
	DB         db.Pinger
	Redis      *redis.Client
	Cart       cart.Service
	CartEvents *cart.RedisNotifier
	Coupons    coupons.Validator
	Checkout   checkoutsvc.Service
	Orders     orders.Service
	Pricing    pricing.Config
	Metrics    prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.CORS),
		middleware.Logging(logg),
	)

	readiness := map[string]controllers.Pinger{}
	if svc.DB != nil {
		readiness["db"] = svc.DB
	}
	if svc.Redis != nil {
		readiness["redis"] = svc.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})

	if svc.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(svc.Metrics, promhttp.HandlerOpts{}))
	}

	idempotent := idempotency(svc.Redis, logg)
	checkoutLimit := middleware.NewRateLimitPolicy("checkout", cfg.RateLimit.CheckoutLimit, cfg.RateLimit.CheckoutWindow)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(svc.Cart, svc.Pricing, logg))
			r.Delete("/", cartcontrollers.CartClear(svc.Cart, logg))
			r.Post("/items", cartcontrollers.CartAddItem(svc.Cart, svc.Pricing, logg))
			r.Patch("/items/{lineId}", cartcontrollers.CartUpdateQuantity(svc.Cart, svc.Pricing, logg))
			r.Delete("/items/{lineId}", cartcontrollers.CartRemoveItem(svc.Cart, svc.Pricing, logg))
			r.Post("/coupon", cartcontrollers.CartApplyCoupon(svc.Cart, svc.Pricing, logg))
			r.Delete("/coupon", cartcontrollers.CartRemoveCoupon(svc.Cart, svc.Pricing, logg))
			if svc.CartEvents != nil {
				r.Get("/events", cartcontrollers.CartEvents(svc.CartEvents, logg))
			}
		})

		r.Post("/coupons/validate", controllers.CouponValidate(svc.Coupons, cfg.Checkout.Timeout, logg))
		r.Post("/totals", controllers.Totals(svc.Pricing, logg))

		r.With(rateLimit(checkoutLimit, svc.Redis, logg), idempotent).
			Post("/checkout", controllers.Checkout(svc.Cart, svc.Checkout, cfg.Checkout.Timeout, logg))

		r.Get("/orders/{orderId}", ordercontrollers.Detail(svc.Orders, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Session(cfg.JWT, logg))
		r.Use(middleware.RequireRole(pkgAuth.RoleAdmin, logg))
		r.With(idempotent).Patch("/orders/{orderId}/status", ordercontrollers.UpdateStatus(svc.Orders, logg))
	})

	return r
}

// Redis-backed middleware is skipped when no client is wired (local runs, tests).
func idempotency(client *redis.Client, logg *logger.Logger) func(http.Handler) http.Handler {
	if client == nil {
		return passthrough
	}
	return middleware.Idempotency(client, logg)
}

func rateLimit(policy middleware.RateLimitPolicy, client *redis.Client, logg *logger.Logger) func(http.Handler) http.Handler {
	if client == nil {
		return passthrough
	}
	return middleware.RateLimit(policy, client, logg)
}

func passthrough(next http.Handler) http.Handler {
	return next
}
