// Package queue defines the ledger event payload exchanged over RabbitMQ and
// the consumer that writes the ledger audit log.
package queue

import "time"

// QueueName is the default queue ledger events are published to.
const QueueName = "ledger.events"

// LedgerEvent is published after every committed credit transaction.  It
// carries enough context for audit logging without querying the database.
type LedgerEvent struct {
	TransactionID string    `json:"transaction_id"`
	Type          string    `json:"transaction_type"`
	UserID        string    `json:"user_id"`
	PropertyID    string    `json:"property_id,omitempty"`
	Amount        int       `json:"amount"`
	Balance       int       `json:"balance"`
	Reason        string    `json:"reason,omitempty"`
	ActorID       string    `json:"actor_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
