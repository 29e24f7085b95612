package model

import "time"

// InitialCredits is the balance granted to every new profile.  It is not
// recorded as a transaction, so a balance always equals InitialCredits plus
// the signed sum of the user's ledger.
const InitialCredits = 5

// Profile mirrors the `profiles` table.  Role and Credits are only ever
// changed by admins or by the credit ledger.
type Profile struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Company   *string   `db:"company" json:"company,omitempty"`
	AvatarURL *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	Role      Role      `db:"role" json:"role"`
	Credits   int       `db:"credits" json:"credits"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ProfileUpdate carries the self-service fields.  Nil pointers are left
// untouched.
type ProfileUpdate struct {
	FullName  *string
	Phone     *string
	Company   *string
	AvatarURL *string
}
