// Package datastoretest seeds a small ChipChip-shaped SQLite database for tests.
package datastoretest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/askdata-go/internal/datastore"
)

// Known ids in the seeded data.
const (
	AbebeID  = "7f3c9a2e-1b4d-4c8e-9f10-2a3b4c5d6e7f"
	SaraID   = "0d1e2f3a-4b5c-4d6e-8f70-8192a3b4c5d6"
	CarrotID = "c1a2b3c4-d5e6-4f70-8a91-b2c3d4e5f607"
	AppleID  = "a9b8c7d6-e5f4-4a3b-9c2d-1e0f9a8b7c6d"
)

// Names are the default name sources matching the seeded schema.
var Names = []datastore.NameSource{
	{Table: "users", IDColumn: "id", NameColumn: "name"},
	{Table: "products", IDColumn: "id", NameColumn: "name"},
}

var seed = []string{
	`CREATE TABLE users (id TEXT PRIMARY KEY, name TEXT NOT NULL, channel TEXT, signup_date TEXT, segment TEXT)`,
	`CREATE TABLE group_leaders (id INTEGER PRIMARY KEY, user_id TEXT REFERENCES users(id))`,
	`CREATE TABLE products (id TEXT PRIMARY KEY, name TEXT NOT NULL, category TEXT, price REAL, is_fresh_produce INTEGER)`,
	`CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id TEXT REFERENCES users(id), group_leader_id INTEGER REFERENCES group_leaders(id), timestamp TEXT, order_total_value REAL)`,
	`CREATE TABLE order_items (id INTEGER PRIMARY KEY, order_id INTEGER REFERENCES orders(id), product_id TEXT REFERENCES products(id), quantity INTEGER)`,
	`INSERT INTO users VALUES ('` + AbebeID + `', 'Abebe Kebede', 'Telegram', '2025-06-02', 'Working Professionals')`,
	`INSERT INTO users VALUES ('` + SaraID + `', 'Sara Tesfaye', 'Referral', '2025-07-10', 'Students')`,
	`INSERT INTO group_leaders VALUES (1, '` + AbebeID + `')`,
	`INSERT INTO products VALUES ('` + CarrotID + `', 'Carrot', 'vegetable', 1.2, 1)`,
	`INSERT INTO products VALUES ('` + AppleID + `', 'Apple', 'fruit', 0.8, 1)`,
	`INSERT INTO orders VALUES (1, '` + SaraID + `', 1, '2025-06-14 10:00:00', 9308.3)`,
	`INSERT INTO orders VALUES (2, '` + AbebeID + `', NULL, '2025-06-20 18:30:00', 5000)`,
	`INSERT INTO order_items VALUES (1, 1, '` + CarrotID + `', 12)`,
	`INSERT INTO order_items VALUES (2, 2, '` + AppleID + `', 30)`,
}

// Path creates and seeds a database file in a temp dir and returns its path.
func Path(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chipchip.db")
	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		t.Fatalf("open seed db: %v", err)
	}
	defer db.Close()
	for _, stmt := range seed {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}
	return path
}

// Open seeds a database and opens it through the read-only SQLite backend.
func Open(t testing.TB) *datastore.SQLite {
	t.Helper()
	s, err := datastore.OpenSQLite(context.Background(), Path(t), Names)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
