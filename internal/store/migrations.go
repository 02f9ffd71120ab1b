package store

import (
	"database/sql"
	"fmt"
)

// migrations are applied in order; PRAGMA user_version tracks the last
// applied index. Append only, never edit an applied entry.
var migrations = []string{
	`CREATE TABLE orders (
	   id             TEXT PRIMARY KEY,
	   order_number   TEXT NOT NULL UNIQUE,
	   customer_name  TEXT NOT NULL,
	   customer_email TEXT NOT NULL DEFAULT '',
	   customer_phone TEXT NOT NULL DEFAULT '',
	   status         TEXT NOT NULL,
	   payment_status TEXT NOT NULL,
	   total          REAL NOT NULL DEFAULT 0,
	   subtotal       REAL NOT NULL DEFAULT 0,
	   shipping       REAL NOT NULL DEFAULT 0,
	   tax            REAL NOT NULL DEFAULT 0,
	   currency       TEXT NOT NULL DEFAULT 'EUR',
	   notes          TEXT NOT NULL DEFAULT '',
	   category       TEXT NOT NULL DEFAULT '',
	   deadline       INTEGER,
	   created_at     INTEGER NOT NULL,
	   updated_at     INTEGER NOT NULL
	 );
	 CREATE TABLE order_items (
	   id       TEXT PRIMARY KEY,
	   order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	   name     TEXT NOT NULL,
	   sku      TEXT NOT NULL DEFAULT '',
	   quantity INTEGER NOT NULL DEFAULT 1,
	   price    REAL NOT NULL DEFAULT 0
	 );
	 CREATE INDEX idx_order_items_order ON order_items(order_id);`,

	`CREATE TABLE workflow_items (
	   id         TEXT PRIMARY KEY,
	   content    TEXT NOT NULL,
	   type       TEXT NOT NULL,
	   position   INTEGER NOT NULL,
	   done       INTEGER NOT NULL DEFAULT 0,
	   created_at INTEGER NOT NULL,
	   updated_at INTEGER NOT NULL
	 );
	 CREATE INDEX idx_workflow_type_position ON workflow_items(type, position);`,

	`CREATE TABLE planning_items (
	   id          TEXT PRIMARY KEY,
	   priority    TEXT NOT NULL,
	   client_name TEXT NOT NULL DEFAULT '',
	   quantity    INTEGER NOT NULL DEFAULT 1,
	   designation TEXT NOT NULL DEFAULT '',
	   note        TEXT NOT NULL DEFAULT '',
	   unit_price  REAL NOT NULL DEFAULT 0,
	   deadline    INTEGER,
	   status      TEXT NOT NULL,
	   responsible TEXT NOT NULL DEFAULT '',
	   position    INTEGER NOT NULL,
	   created_at  INTEGER NOT NULL,
	   updated_at  INTEGER NOT NULL
	 );
	 CREATE INDEX idx_planning_position ON planning_items(position);`,

	`CREATE TABLE person_notes (
	   person     TEXT PRIMARY KEY,
	   content    TEXT NOT NULL DEFAULT '',
	   todos      TEXT NOT NULL DEFAULT '[]',
	   updated_at INTEGER NOT NULL
	 );`,
}

// applyMigrations brings the schema up to date.
func applyMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			return fmt.Errorf("bump user_version to %d: %w", i+1, err)
		}
	}
	return nil
}
