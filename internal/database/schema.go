package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Column types that differ between dialects.  Everything else in the schema
// is portable SQL.
type dialect struct {
	id        string
	text      string
	timestamp string
	boolean   string
}

var dialects = map[string]dialect{
	Postgres: {id: "VARCHAR(36)", text: "TEXT", timestamp: "TIMESTAMPTZ", boolean: "BOOLEAN"},
	MySQL:    {id: "VARCHAR(36)", text: "TEXT", timestamp: "DATETIME(6)", boolean: "TINYINT(1)"},
	SQLite:   {id: "TEXT", text: "TEXT", timestamp: "DATETIME", boolean: "BOOLEAN"},
}

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS profiles (
	id {id} PRIMARY KEY,
	email VARCHAR(255) NOT NULL UNIQUE,
	full_name VARCHAR(255) NOT NULL DEFAULT '',
	phone VARCHAR(64) NULL,
	company VARCHAR(255) NULL,
	avatar_url VARCHAR(1024) NULL,
	role VARCHAR(16) NOT NULL,
	credits INTEGER NOT NULL DEFAULT 5 CHECK (credits >= 0),
	created_at {ts} NOT NULL,
	updated_at {ts} NOT NULL
);
CREATE TABLE IF NOT EXISTS properties (
	id {id} PRIMARY KEY,
	user_id {id} NOT NULL,
	title VARCHAR(255) NOT NULL,
	description {text} NULL,
	property_type VARCHAR(16) NOT NULL,
	listing_type VARCHAR(8) NOT NULL,
	price_cents BIGINT NOT NULL,
	location VARCHAR(255) NOT NULL,
	city VARCHAR(128) NOT NULL,
	province VARCHAR(128) NOT NULL,
	bedrooms INTEGER NULL,
	bathrooms INTEGER NULL,
	floor_area INTEGER NULL,
	lot_area INTEGER NULL,
	images {text} NOT NULL,
	features {text} NOT NULL,
	status VARCHAR(16) NOT NULL,
	featured {bool} NOT NULL DEFAULT FALSE,
	views INTEGER NOT NULL DEFAULT 0,
	created_at {ts} NOT NULL,
	updated_at {ts} NOT NULL
);
CREATE INDEX idx_properties_user ON properties (user_id);
CREATE INDEX idx_properties_status ON properties (status, created_at);
CREATE TABLE IF NOT EXISTS credit_transactions (
	id {id} PRIMARY KEY,
	user_id {id} NOT NULL,
	property_id {id} NULL,
	transaction_type VARCHAR(8) NOT NULL,
	amount INTEGER NOT NULL,
	reason VARCHAR(255) NULL,
	created_by {id} NULL,
	created_at {ts} NOT NULL
);
CREATE INDEX idx_credit_tx_user ON credit_transactions (user_id, created_at);
CREATE TABLE IF NOT EXISTS inquiries (
	id {id} PRIMARY KEY,
	property_id {id} NOT NULL,
	user_id {id} NULL,
	name VARCHAR(255) NOT NULL,
	email VARCHAR(255) NOT NULL,
	phone VARCHAR(64) NULL,
	message {text} NULL,
	status VARCHAR(16) NOT NULL,
	created_at {ts} NOT NULL
);
CREATE INDEX idx_inquiries_property ON inquiries (property_id);
CREATE TABLE IF NOT EXISTS contact_messages (
	id {id} PRIMARY KEY,
	first_name VARCHAR(128) NOT NULL,
	last_name VARCHAR(128) NOT NULL,
	name VARCHAR(255) NOT NULL,
	email VARCHAR(255) NOT NULL,
	phone VARCHAR(64) NULL,
	company VARCHAR(255) NULL,
	message {text} NOT NULL,
	created_at {ts} NOT NULL
);
CREATE TABLE IF NOT EXISTS auth_users (
	id {id} PRIMARY KEY,
	email VARCHAR(255) NOT NULL UNIQUE,
	password_hash VARCHAR(255) NOT NULL,
	role_claim VARCHAR(16) NOT NULL,
	full_name VARCHAR(255) NOT NULL DEFAULT '',
	created_at {ts} NOT NULL
);
CREATE TABLE IF NOT EXISTS refresh_tokens (
	id {id} PRIMARY KEY,
	user_id {id} NOT NULL,
	token_hash VARCHAR(64) NOT NULL UNIQUE,
	purpose VARCHAR(16) NOT NULL DEFAULT 'refresh',
	expires_at {ts} NOT NULL,
	revoked_at {ts} NULL,
	created_at {ts} NOT NULL
)`

// Schema renders the DDL for the given driver as individual statements.
func Schema(driver string) ([]string, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
	ddl := strings.NewReplacer(
		"{id}", d.id,
		"{text}", d.text,
		"{ts}", d.timestamp,
		"{bool}", d.boolean,
	).Replace(schemaTemplate)

	var out []string
	for _, stmt := range strings.Split(ddl, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if strings.HasPrefix(stmt, "CREATE INDEX") && driver != MySQL {
			stmt = strings.Replace(stmt, "CREATE INDEX", "CREATE INDEX IF NOT EXISTS", 1)
		}
		out = append(out, stmt)
	}
	return out, nil
}

// Migrate creates any missing tables.  MySQL has no CREATE INDEX IF NOT
// EXISTS, so duplicate index errors (1061) are ignored there.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	stmts, err := Schema(db.DriverName())
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			if db.DriverName() == MySQL && strings.Contains(err.Error(), "1061") {
				continue
			}
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
