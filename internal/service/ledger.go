// Package service holds the business operations that span repositories.
// The credit ledger is the only code path that changes a balance.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/property-marketplace/internal/metrics"
	"github.com/iliyamo/property-marketplace/internal/model"
	"github.com/iliyamo/property-marketplace/internal/queue"
	"github.com/iliyamo/property-marketplace/internal/repository"
)

// ListingCost is the number of credits a new listing consumes.
const ListingCost = 1

// DefaultAdjustReason is recorded when an admin gives no reason.
const DefaultAdjustReason = "Admin credit adjustment"

const (
	reasonCreated = "Property listing created"
	reasonDeleted = "Property listing deleted"
)

// Actor identifies who performs a ledger operation.
type Actor struct {
	ID    string
	Admin bool
}

// Reconciliation compares a stored balance with the balance implied by the
// ledger.  Drift is zero for a consistent account.
type Reconciliation struct {
	UserID   string `json:"user_id"`
	Balance  int    `json:"balance"`
	Expected int    `json:"expected"`
	Drift    int    `json:"drift"`
}

// Ledger implements the credit-gated listing lifecycle.  Every method that
// changes a balance runs the balance update and the matching transaction
// insert in one database transaction, using conditional updates so that
// concurrent requests can never overdraw an account.
type Ledger struct {
	db         *sqlx.DB
	profiles   *repository.ProfileRepo
	properties *repository.PropertyRepo
	txs        *repository.TransactionRepo
	events     EventPublisher
}

func NewLedger(db *sqlx.DB, profiles *repository.ProfileRepo, properties *repository.PropertyRepo,
	txs *repository.TransactionRepo, events EventPublisher) *Ledger {
	if events == nil {
		events = NopPublisher{}
	}
	return &Ledger{db: db, profiles: profiles, properties: properties, txs: txs, events: events}
}

// CreateListing deducts one credit from ownerID and creates the listing.
// With a balance below one credit it returns ErrInsufficientCredits and
// nothing is written.
func (l *Ledger) CreateListing(ctx context.Context, ownerID string, in model.PropertyInput) (*model.Property, error) {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storeErr("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := l.debit(ctx, tx, ownerID, ListingCost); err != nil {
		return nil, err
	}

	p := &model.Property{ID: uuid.NewString(), UserID: ownerID, Status: model.StatusActive}
	in.Apply(p)
	if err := l.properties.CreateTx(ctx, tx, p); err != nil {
		return nil, storeErr("insert property", err)
	}

	reason := reasonCreated
	entry := &model.CreditTransaction{
		ID:         uuid.NewString(),
		UserID:     ownerID,
		PropertyID: &p.ID,
		Type:       model.TxDeduct,
		Amount:     ListingCost,
		Reason:     &reason,
	}
	if err := l.txs.InsertTx(ctx, tx, entry); err != nil {
		return nil, storeErr("insert transaction", err)
	}
	balance, err := l.profiles.BalanceTx(ctx, tx, ownerID)
	if err != nil {
		return nil, storeErr("read balance", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit", err)
	}

	l.committed(ctx, entry, balance, ownerID)
	return p, nil
}

// DeleteListing removes a listing and refunds one credit to its owner.
// Only the owner or an admin may delete; the listing status is irrelevant.
func (l *Ledger) DeleteListing(ctx context.Context, actor Actor, listingID string) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return storeErr("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := l.properties.GetByIDTx(ctx, tx, listingID)
	if err != nil {
		return storeErr("load property", err)
	}
	if p.UserID != actor.ID && !actor.Admin {
		return ErrForbidden
	}

	n, err := l.properties.DeleteTx(ctx, tx, listingID)
	if err != nil {
		return storeErr("delete property", err)
	}
	if n != 1 {
		// deleted concurrently; the other request owns the refund
		return ErrNotFound
	}

	ok, err := l.profiles.AdjustCreditsTx(ctx, tx, p.UserID, ListingCost)
	if err != nil {
		return storeErr("refund credit", err)
	}
	if !ok {
		return ErrProfileNotFound
	}

	reason := reasonDeleted
	entry := &model.CreditTransaction{
		ID:         uuid.NewString(),
		UserID:     p.UserID,
		PropertyID: &p.ID,
		Type:       model.TxRefund,
		Amount:     ListingCost,
		Reason:     &reason,
	}
	if actor.ID != p.UserID {
		entry.CreatedBy = &actor.ID
	}
	if err := l.txs.InsertTx(ctx, tx, entry); err != nil {
		return storeErr("insert transaction", err)
	}
	balance, err := l.profiles.BalanceTx(ctx, tx, p.UserID)
	if err != nil {
		return storeErr("read balance", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit", err)
	}

	l.committed(ctx, entry, balance, actor.ID)
	return nil
}

// AdjustByAdmin adds amount (which may be negative) to targetID's balance.
// A negative amount is only applied when the balance stays non-negative;
// otherwise ErrNegativeBalance is returned and nothing changes.
func (l *Ledger) AdjustByAdmin(ctx context.Context, actor Actor, targetID string, amount int, reason string) (*model.CreditTransaction, int, error) {
	if !actor.Admin {
		return nil, 0, ErrForbidden
	}
	if amount == 0 {
		return nil, 0, NewValidationError("amount", "must not be zero")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultAdjustReason
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, 0, storeErr("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	ok, err := l.profiles.AdjustCreditsTx(ctx, tx, targetID, amount)
	if err != nil {
		return nil, 0, storeErr("adjust credits", err)
	}
	if !ok {
		if _, err := l.profiles.BalanceTx(ctx, tx, targetID); errors.Is(err, repository.ErrNotFound) {
			return nil, 0, ErrProfileNotFound
		} else if err != nil {
			return nil, 0, storeErr("read balance", err)
		}
		metrics.LedgerRejections.WithLabelValues("negative_balance").Inc()
		return nil, 0, ErrNegativeBalance
	}

	entry := &model.CreditTransaction{
		ID:        uuid.NewString(),
		UserID:    targetID,
		Type:      model.TxAdd,
		Amount:    amount,
		Reason:    &reason,
		CreatedBy: &actor.ID,
	}
	if err := l.txs.InsertTx(ctx, tx, entry); err != nil {
		return nil, 0, storeErr("insert transaction", err)
	}
	balance, err := l.profiles.BalanceTx(ctx, tx, targetID)
	if err != nil {
		return nil, 0, storeErr("read balance", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, 0, storeErr("commit", err)
	}

	l.committed(ctx, entry, balance, actor.ID)
	return entry, balance, nil
}

// GetBalance returns the user's current balance, or 0 without a profile.
func (l *Ledger) GetBalance(ctx context.Context, userID string) (int, error) {
	n, err := l.profiles.Balance(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, storeErr("read balance", err)
	}
	return n, nil
}

// History returns the user's transactions, newest first.
func (l *Ledger) History(ctx context.Context, userID string, limit int) ([]model.CreditTransaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	out, err := l.txs.ListByUser(ctx, userID, limit)
	return out, storeErr("list transactions", err)
}

// Reconcile recomputes the expected balance from the ledger.
func (l *Ledger) Reconcile(ctx context.Context, userID string) (Reconciliation, error) {
	balance, err := l.profiles.Balance(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return Reconciliation{}, ErrProfileNotFound
	}
	if err != nil {
		return Reconciliation{}, storeErr("read balance", err)
	}
	sum, err := l.txs.SignedSum(ctx, userID)
	if err != nil {
		return Reconciliation{}, storeErr("sum transactions", err)
	}
	expected := model.InitialCredits + sum
	r := Reconciliation{UserID: userID, Balance: balance, Expected: expected, Drift: balance - expected}
	if r.Drift != 0 {
		slog.Warn("ledger drift detected", "user_id", userID, "balance", balance, "expected", expected)
	}
	return r, nil
}

// debit subtracts cost from userID inside tx, distinguishing a missing
// profile from an insufficient balance.
func (l *Ledger) debit(ctx context.Context, tx *sqlx.Tx, userID string, cost int) error {
	ok, err := l.profiles.AdjustCreditsTx(ctx, tx, userID, -cost)
	if err != nil {
		return storeErr("deduct credit", err)
	}
	if ok {
		return nil
	}
	if _, err := l.profiles.BalanceTx(ctx, tx, userID); errors.Is(err, repository.ErrNotFound) {
		return ErrProfileNotFound
	} else if err != nil {
		return storeErr("read balance", err)
	}
	metrics.LedgerRejections.WithLabelValues("insufficient_credits").Inc()
	return ErrInsufficientCredits
}

// committed runs the post-commit side effects.  Publishing failures are
// logged and counted; the ledger write already succeeded.
func (l *Ledger) committed(ctx context.Context, t *model.CreditTransaction, balance int, actorID string) {
	metrics.LedgerOps.WithLabelValues(string(t.Type)).Inc()

	ev := queue.LedgerEvent{
		TransactionID: t.ID,
		Type:          string(t.Type),
		UserID:        t.UserID,
		Amount:        t.Amount,
		Balance:       balance,
		ActorID:       actorID,
		OccurredAt:    t.CreatedAt,
	}
	if t.PropertyID != nil {
		ev.PropertyID = *t.PropertyID
	}
	if t.Reason != nil {
		ev.Reason = *t.Reason
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := l.events.Publish(pctx, ev); err != nil {
		metrics.EventPublishFailures.Inc()
		slog.Warn("ledger event publish failed", "tx_id", t.ID, "err", err)
	}
	slog.Info("ledger transaction committed",
		"tx_id", t.ID, "type", t.Type, "user_id", t.UserID, "amount", t.Amount, "balance", balance)
}
