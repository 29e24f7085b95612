// Package testutil provides an in-memory database for package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/property-marketplace/internal/database"
	"github.com/iliyamo/property-marketplace/internal/model"
)

// NewDB opens a migrated in-memory sqlite database closed with the test.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := database.Open(database.Options{Driver: database.SQLite})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, database.Migrate(ctx, db))
	return db
}

// SeedProfile inserts a profile with the given role and balance and returns
// its id.
func SeedProfile(t testing.TB, db *sqlx.DB, role model.Role, credits int) string {
	t.Helper()
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := db.Exec(db.Rebind(`INSERT INTO profiles (id, email, full_name, role, credits, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`), id, id+"@example.com", "Test User", role, credits, now, now)
	require.NoError(t, err)
	return id
}

// PropertyInput returns a valid listing payload.
func PropertyInput() model.PropertyInput {
	beds := 3
	return model.PropertyInput{
		Title:        "Family house",
		PropertyType: model.PropertyHouse,
		ListingType:  model.ListingSale,
		PriceCents:   1_250_000_00,
		Location:     "12 Mango St",
		City:         "Cebu",
		Province:     "Cebu",
		Bedrooms:     &beds,
		Features:     []string{"garage"},
	}
}
