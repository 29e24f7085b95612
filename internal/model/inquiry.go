package model

import "time"

// Inquiry is a visitor's message about a listing.
type Inquiry struct {
	ID         string    `db:"id" json:"id"`
	PropertyID string    `db:"property_id" json:"property_id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Name       string    `db:"name" json:"name"`
	Email      string    `db:"email" json:"email"`
	Phone      *string   `db:"phone" json:"phone,omitempty"`
	Message    *string   `db:"message" json:"message,omitempty"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
