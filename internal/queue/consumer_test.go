package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleAppendsLine(t *testing.T) {
	dir := t.TempDir()
	c := &Consumer{LogDir: dir}

	ev := LedgerEvent{
		TransactionID: "tx-1",
		Type:          "deduct",
		UserID:        "u-1",
		PropertyID:    "p-1",
		Amount:        1,
		Balance:       4,
		OccurredAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	require.NoError(t, c.Handle(body))
	require.NoError(t, c.Handle(body))

	raw, err := os.ReadFile(filepath.Join(dir, "ledger.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `[2026-01-02T03:04:05Z] Credit deduct | tx_id=tx-1 | user_id=u-1 | property_id=p-1 | amount=1 | balance=4 | actor=- | reason=""`, lines[0])
}

func TestHandleRejectsBadMessages(t *testing.T) {
	c := &Consumer{LogDir: t.TempDir()}
	assert.Error(t, c.Handle([]byte("{not json")))
	assert.Error(t, c.Handle([]byte(`{"transaction_type":"add"}`)))
}
