package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStockMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_stock_records.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no stock records migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS stock_records",
		"PRIMARY KEY (dealer_id, product_id)",
		"CHECK (available_qty >= 0)",
		"CHECK (blocked_qty >= 0)",
		"FOREIGN KEY (dealer_id) REFERENCES dealers(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS stock_records",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestReservationMigrationContainsStatusDefault(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_stock_reservations.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no stock reservations migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS stock_reservations",
		"status reservation_status NOT NULL DEFAULT 'held'",
		"CREATE TABLE IF NOT EXISTS stock_reservation_lines",
		"CHECK (qty > 0)",
		"FOREIGN KEY (reservation_id) REFERENCES stock_reservations(id) ON DELETE CASCADE",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
