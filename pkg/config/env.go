package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	EnvAppEnv   = "STOREFRONT_APP_ENV"
	EnvPort     = "STOREFRONT_APP_PORT"
	EnvLogLevel = "STOREFRONT_LOG_LEVEL"

	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvJWTSecret = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer = "STOREFRONT_JWT_ISSUER"

	EnvVATRate           = "STOREFRONT_PRICING_VAT_RATE_PERCENT"
	EnvShippingThreshold = "STOREFRONT_PRICING_FREE_SHIPPING_THRESHOLD"
	EnvFlatShippingFee   = "STOREFRONT_PRICING_FLAT_SHIPPING_FEE"

	EnvCheckoutTimeout = "STOREFRONT_CHECKOUT_TIMEOUT"
	EnvUseSQLite       = "STOREFRONT_USE_SQLITE"

	DefaultSQLiteDSN = "file:storefront.db?_busy_timeout=5000&_foreign_keys=on"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
