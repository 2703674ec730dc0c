package types

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// OwnerRef identifies the single owner of a cart: either an authenticated
// user or an anonymous session, never both.
type OwnerRef struct {
	UserID    *uuid.UUID
	SessionID *string
}

// UserOwner builds an owner reference for an authenticated user.
func UserOwner(id uuid.UUID) OwnerRef {
	return OwnerRef{UserID: &id}
}

// SessionOwner builds an owner reference for an anonymous session.
func SessionOwner(id string) OwnerRef {
	trimmed := strings.TrimSpace(id)
	return OwnerRef{SessionID: &trimmed}
}

// IsUser reports whether the owner is an authenticated user.
func (o OwnerRef) IsUser() bool {
	return o.UserID != nil && *o.UserID != uuid.Nil
}

// IsSession reports whether the owner is an anonymous session.
func (o OwnerRef) IsSession() bool {
	return o.SessionID != nil && *o.SessionID != ""
}

// Validate enforces that exactly one owner reference is set.
func (o OwnerRef) Validate() error {
	if o.IsUser() == o.IsSession() {
		return fmt.Errorf("owner must be exactly one of user or session")
	}
	return nil
}

// Key returns a stable identifier string usable in counters and logs.
func (o OwnerRef) Key() string {
	if o.IsUser() {
		return "user:" + o.UserID.String()
	}
	if o.IsSession() {
		return "session:" + *o.SessionID
	}
	return ""
}

// String implements fmt.Stringer.
func (o OwnerRef) String() string {
	return o.Key()
}
