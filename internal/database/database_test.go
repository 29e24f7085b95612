package database

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaPerDriver(t *testing.T) {
	for _, driver := range []string{Postgres, MySQL, SQLite} {
		t.Run(driver, func(t *testing.T) {
			stmts, err := Schema(driver)
			require.NoError(t, err)
			require.NotEmpty(t, stmts)
			joined := strings.Join(stmts, ";\n")
			assert.NotContains(t, joined, "{")
			for _, table := range []string{"profiles", "properties", "credit_transactions", "inquiries", "contact_messages", "auth_users", "refresh_tokens"} {
				assert.Contains(t, joined, "CREATE TABLE IF NOT EXISTS "+table)
			}
			if driver == MySQL {
				assert.NotContains(t, joined, "INDEX IF NOT EXISTS")
				assert.Contains(t, joined, "DATETIME(6)")
			} else {
				assert.Contains(t, joined, "CREATE INDEX IF NOT EXISTS")
			}
		})
	}

	_, err := Schema("oracle")
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"url wins", Options{Driver: Postgres, URL: "postgres://x"}, "postgres://x"},
		{"postgres", Options{Driver: Postgres, User: "app", Pass: "p@ss", Host: "db", Port: "5432", Name: "market"},
			"postgres://app:p%40ss@db:5432/market?sslmode=disable"},
		{"postgres no password", Options{Driver: Postgres, User: "app", Host: "db", Port: "5432", Name: "market"},
			"postgres://app@db:5432/market?sslmode=disable"},
		{"mysql", Options{Driver: MySQL, User: "root", Pass: "pw", Host: "127.0.0.1", Port: "3306", Name: "market"},
			"root:pw@tcp(127.0.0.1:3306)/market?charset=utf8mb4&parseTime=true&loc=UTC"},
		{"sqlite memory", Options{Driver: SQLite}, ":memory:"},
		{"sqlite file", Options{Driver: SQLite, Name: "market.db"}, "market.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.opts.DSN()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Options{Driver: "mssql"}.DSN()
	assert.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := Open(Options{Driver: SQLite})
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db))

	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM profiles"))
	assert.Zero(t, n)
}
