package store

import (
	"strings"
	"time"
)

// RowRef is an opaque handle to a ledger row, issued by the adapter at
// append time. Callers patch rows through it and never address physical
// storage directly.
type RowRef int64

// CustodyEntry is one key-loan cycle. ReturnedAt is nil while the key is
// out; at most one entry per key may be open at a time (the workflow
// enforces this, not the store).
type CustodyEntry struct {
	Row        RowRef
	Key        string
	FirstName  string
	LastName   string
	Phone      string
	ReceivedAt time.Time
	ReturnedAt *time.Time
	Comment    string
}

// Open reports whether the key of this entry is still out.
func (e CustodyEntry) Open() bool { return e.ReturnedAt == nil }

// HolderName returns the holder's full name.
func (e CustodyEntry) HolderName() string {
	return e.FirstName + " " + e.LastName
}

// KeyReference is static inventory metadata for one key, independent of
// custody history.
type KeyReference struct {
	Key   string
	Count int
}

// Role is a membership tag gating command access. The known set is closed,
// but unknown tags read from the store are preserved as-is.
type Role string

const (
	RoleUser     Role = "user"
	RoleSecurity Role = "security"
	RoleAdmin    Role = "admin"
)

// ParseRoles splits a stored comma-separated role list into tags.
func ParseRoles(s string) []Role {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var roles []Role
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			roles = append(roles, Role(part))
		}
	}
	return roles
}

// JoinRoles renders roles in the stored comma-separated form.
func JoinRoles(roles []Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}

// Employee is one registered user of the bot. ChatID identifies them on the
// messaging transport.
type Employee struct {
	FirstName string
	LastName  string
	Phone     string
	ChatID    string
	Roles     []Role
}

// HasRole reports role membership.
func (e Employee) HasRole(r Role) bool {
	for _, have := range e.Roles {
		if have == r {
			return true
		}
	}
	return false
}
