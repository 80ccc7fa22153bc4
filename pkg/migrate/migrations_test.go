package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/storefront-checkout/pkg/migrate"
)

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestMigrationsContainSchemas(t *testing.T) {
	cases := map[string][]string{
		"*_create_enum_types.sql": {
			"CREATE TYPE availability AS ENUM",
			"CREATE TYPE order_status AS ENUM ('pending', 'processing', 'shipped', 'delivered', 'canceled')",
			"CREATE TYPE event_type_enum AS ENUM ('order.created', 'order.status_changed')",
		},
		"*_create_products_table.sql": {
			"CREATE TABLE IF NOT EXISTS products",
			"CREATE TABLE IF NOT EXISTS product_variations",
			"CHECK (stock >= 0)",
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_products_sku",
		},
		"*_create_coupons_table.sql": {
			"CREATE TABLE IF NOT EXISTS coupons",
			"CONSTRAINT coupons_usage_chk",
		},
		"*_create_orders_table.sql": {
			"CREATE TABLE IF NOT EXISTS orders",
			"CREATE TABLE IF NOT EXISTS order_items",
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_order_number",
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_idempotency_key",
		},
		"*_create_outbox_events_table.sql": {
			"CREATE TABLE IF NOT EXISTS outbox_events",
			"idx_outbox_events_unpublished",
		},
	}

	for pattern, checks := range cases {
		matches, err := filepath.Glob(filepath.Join("migrations", pattern))
		if err != nil {
			t.Fatalf("glob migrations: %v", err)
		}
		if len(matches) == 0 {
			t.Fatalf("no migration file found for %s", pattern)
		}
		data, err := os.ReadFile(matches[0])
		if err != nil {
			t.Fatalf("read migration file: %v", err)
		}
		content := string(data)
		for _, sub := range checks {
			if !strings.Contains(content, sub) {
				t.Errorf("%s: missing expected statement %q", pattern, sub)
			}
		}
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Tracking Index!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_tracking_index.sql") {
		t.Fatalf("unexpected path %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration failed validation: %v", err)
	}
}
