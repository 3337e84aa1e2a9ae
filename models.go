package authflow

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is the identity service's view of a login identity. The ID is
// opaque, stable, and never changes once the account exists.
type Account struct {
	ID       string       `json:"id"`
	Email    string       `json:"email,omitempty"`
	Name     string       `json:"name,omitempty"`
	Provider ProviderKind `json:"provider,omitempty"`
}

// AccountRecord is the document-store record carrying the application facing
// profile, keyed one-to-one by account identifier. Username starts empty and
// is written exactly once, after the uniqueness check passes; it is never
// cleared afterwards.
type AccountRecord struct {
	bun.BaseModel `bun:"table:account_records,alias:rec"`
	ID            string     `bun:"id,pk" json:"id"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	Name          string     `bun:"name,notnull" json:"name,omitempty"`
	Username      string     `bun:"username,nullzero,unique" json:"username,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// HasUsername reports whether the one-time username step already ran.
func (r *AccountRecord) HasUsername() bool {
	if r == nil {
		return false
	}
	return strings.TrimSpace(r.Username) != ""
}

// UsernameReservation is the uniqueness-index record behind ClaimUsername.
// Its primary key is derived deterministically from the username value, so
// two sessions racing for the same name collide on insert and only the
// first writer wins.
type UsernameReservation struct {
	bun.BaseModel `bun:"table:username_reservations,alias:unr"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Username      string     `bun:"username,notnull,unique" json:"username"`
	AccountID     string     `bun:"account_id,notnull" json:"account_id"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// ResolveDisplayName falls back to the local part of the email when the
// submitted name is blank.
func ResolveDisplayName(name, email string) string {
	name = strings.TrimSpace(name)
	if name != "" {
		return name
	}

	if strings.Contains(email, "@") {
		name = strings.Split(email, "@")[0]
	}

	return name
}
