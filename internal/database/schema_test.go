package database

import (
	"io/fs"
	"strings"
	"testing"

	"techcart/migrations"
)

func readMigration(t *testing.T, name string) string {
	t.Helper()
	content, err := fs.ReadFile(migrations.FS, name)
	if err != nil {
		t.Fatalf("Failed to read migration file %s: %v", name, err)
	}
	return string(content)
}

// Pending migrations are embedded in the binary
func TestMigrationFilesExist(t *testing.T) {
	expectedMigrations := []string{
		"00001_create_users_table.sql",
		"00002_create_session_tokens_table.sql",
		"00003_create_products_table.sql",
		"00004_create_carts_table.sql",
		"00005_create_orders_table.sql",
		"00006_create_order_items_table.sql",
		"00007_create_updated_at_trigger.sql",
	}

	for _, migration := range expectedMigrations {
		if _, err := fs.Stat(migrations.FS, migration); err != nil {
			t.Errorf("Migration file %s does not exist", migration)
		}
	}
}

func TestMigrationFilesHaveUpAndDown(t *testing.T) {
	files, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		t.Fatalf("Failed to read migrations: %v", err)
	}

	sqlFileCount := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		sqlFileCount++
		contentStr := readMigration(t, file.Name())

		for _, directive := range []string{
			"-- +goose Up",
			"-- +goose Down",
			"-- +goose StatementBegin",
			"-- +goose StatementEnd",
		} {
			if !strings.Contains(contentStr, directive) {
				t.Errorf("Migration file %s missing '%s' directive", file.Name(), directive)
			}
		}
	}

	if sqlFileCount == 0 {
		t.Error("No SQL migration files found")
	}
}

func TestMigrationFilesCreateExpectedTables(t *testing.T) {
	expectedTables := map[string]string{
		"users":          "00001_create_users_table.sql",
		"session_tokens": "00002_create_session_tokens_table.sql",
		"products":       "00003_create_products_table.sql",
		"carts":          "00004_create_carts_table.sql",
		"orders":         "00005_create_orders_table.sql",
		"order_items":    "00006_create_order_items_table.sql",
	}

	for tableName, migrationFile := range expectedTables {
		contentStr := readMigration(t, migrationFile)

		if !strings.Contains(contentStr, "CREATE TABLE IF NOT EXISTS "+tableName) {
			t.Errorf("Migration file %s does not create table %s", migrationFile, tableName)
		}

		if !strings.Contains(contentStr, "DROP TABLE IF EXISTS "+tableName) {
			t.Errorf("Migration file %s does not drop table %s in down section", migrationFile, tableName)
		}
	}
}

func TestUsersTableHasRequiredColumns(t *testing.T) {
	contentStr := readMigration(t, "00001_create_users_table.sql")
	requiredColumns := []string{
		"id UUID PRIMARY KEY",
		"first_name VARCHAR",
		"last_name VARCHAR",
		"birthday DATE",
		"gender VARCHAR",
		"address VARCHAR",
		"contact_number VARCHAR",
		"email VARCHAR(255) UNIQUE",
		"password_hash VARCHAR",
		"role VARCHAR",
	}

	for _, column := range requiredColumns {
		if !strings.Contains(contentStr, column) {
			t.Errorf("Users table missing required column definition: %s", column)
		}
	}
}

func TestProductsTableGuardsStock(t *testing.T) {
	contentStr := readMigration(t, "00003_create_products_table.sql")

	for _, fragment := range []string{"price NUMERIC(10, 2)", "stock INTEGER", "CHECK (stock >= 0)", "CHECK (price >= 0)"} {
		if !strings.Contains(contentStr, fragment) {
			t.Errorf("Products table missing %s", fragment)
		}
	}
}

func TestCartsTableHasUniqueConstraint(t *testing.T) {
	contentStr := readMigration(t, "00004_create_carts_table.sql")

	if !strings.Contains(contentStr, "UNIQUE (user_id, product_id)") {
		t.Error("Carts table missing unique constraint on (user_id, product_id)")
	}
	if !strings.Contains(contentStr, "CHECK (quantity >= 1)") {
		t.Error("Carts table missing positive quantity constraint")
	}
}

func TestOrderItemsKeepHistoryWhenProductDeleted(t *testing.T) {
	contentStr := readMigration(t, "00006_create_order_items_table.sql")

	if !strings.Contains(contentStr, "REFERENCES products(id) ON DELETE SET NULL") {
		t.Error("Order items must keep rows when the product is deleted")
	}
	if !strings.Contains(contentStr, "product_title VARCHAR") {
		t.Error("Order items missing product title fallback")
	}
}
