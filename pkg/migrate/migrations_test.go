package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const migrationsDir = "migrations"

func readAllMigrations(t *testing.T) string {
	t.Helper()
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var sb strings.Builder
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(migrationsDir, e.Name()))
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		sb.Write(b)
	}
	return sb.String()
}

func TestMigrationFilesAreValid(t *testing.T) {
	if err := ValidateDir(migrationsDir); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestMigrationsCoverCoreTables(t *testing.T) {
	all := readAllMigrations(t)
	tables := []string{
		"users",
		"magic_links",
		"rankings",
		"ranking_operations",
		"order_items",
		"coin_definitions",
		"user_coins",
		"streaks",
		"activity_logs",
		"product_views",
		"page_views",
		"profile_views",
		"product_metadata",
		"queue_jobs",
	}
	for _, table := range tables {
		if !strings.Contains(all, "CREATE TABLE "+table+" (") {
			t.Errorf("missing CREATE TABLE for %s", table)
		}
	}
}

func TestMigrationsEnforceRankingUniqueness(t *testing.T) {
	all := readAllMigrations(t)
	uniques := []string{
		"ux_rankings_user_product_list",
		"ux_user_coins_user_coin",
		"ux_streaks_user_type",
		"ux_order_items_user_order_product",
		"ux_ranking_operations_op_id",
	}
	for _, idx := range uniques {
		if !strings.Contains(all, "CREATE UNIQUE INDEX "+idx) {
			t.Errorf("missing unique index %s", idx)
		}
	}
}
