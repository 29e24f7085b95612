package service

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testNow() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

func TestStoreErrPassesDomainErrors(t *testing.T) {
	assert.Nil(t, storeErr("op", nil))
	assert.Same(t, ErrInsufficientCredits, storeErr("op", ErrInsufficientCredits))

	wrapped := fmt.Errorf("load: %w", ErrNotFound)
	assert.ErrorIs(t, storeErr("op", wrapped), ErrNotFound)

	err := storeErr("insert", sql.ErrConnDone)
	var se *StoreError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, "insert", se.Op)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Same(t, err, storeErr("outer", err))
}
