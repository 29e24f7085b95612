package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/property-marketplace/internal/model"
)

const txColumns = "id, user_id, property_id, transaction_type, amount, reason, created_by, created_at"

// TransactionRepo is the append-only credit ledger.  It has no update or
// delete methods.
type TransactionRepo struct{ db *sqlx.DB }

func NewTransactionRepo(db *sqlx.DB) *TransactionRepo { return &TransactionRepo{db: db} }

// InsertTx appends t inside tx.
func (r *TransactionRepo) InsertTx(ctx context.Context, tx sqlx.ExtContext, t *model.CreditTransaction) error {
	t.CreatedAt = time.Now().UTC()
	_, err := tx.ExecContext(ctx, tx.Rebind(
		"INSERT INTO credit_transactions ("+txColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)"),
		t.ID, t.UserID, t.PropertyID, t.Type, t.Amount, t.Reason, t.CreatedBy, t.CreatedAt)
	return err
}

// ListByUser returns the newest entries first.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID string, limit int) ([]model.CreditTransaction, error) {
	out := []model.CreditTransaction{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(
		"SELECT "+txColumns+" FROM credit_transactions WHERE user_id = ? ORDER BY created_at DESC, id LIMIT ?"),
		userID, limit)
	return out, err
}

// ListByProperty returns every entry referencing a listing, oldest first.
func (r *TransactionRepo) ListByProperty(ctx context.Context, propertyID string) ([]model.CreditTransaction, error) {
	out := []model.CreditTransaction{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(
		"SELECT "+txColumns+" FROM credit_transactions WHERE property_id = ? ORDER BY created_at, id"), propertyID)
	return out, err
}

// SignedSum returns the net effect of a user's ledger on the balance.
func (r *TransactionRepo) SignedSum(ctx context.Context, userID string) (int, error) {
	var sum int
	err := r.db.GetContext(ctx, &sum, r.db.Rebind(`SELECT COALESCE(SUM(
			CASE WHEN transaction_type = ? THEN -amount ELSE amount END), 0)
		FROM credit_transactions WHERE user_id = ?`), model.TxDeduct, userID)
	return sum, err
}
