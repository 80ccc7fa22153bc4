package instance

import (
	"os"

	"github.com/angelmondragon/storefront-checkout/pkg/env"
)

// GetID identifies this process in logs. STOREFRONT_INSTANCE_ID wins, then the
// hostname, then a fixed default.
func GetID() string {
	if id := env.Get("STOREFRONT_INSTANCE_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "storefront-0"
}
