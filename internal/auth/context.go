package auth

import (
	"context"
	"strings"
)

// Role values carried in verified credentials.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Identity is the verified caller produced by the auth middleware.
type Identity struct {
	SubjectID string
	Role      string
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return strings.EqualFold(i.Role, RoleAdmin)
}

type ctxKey string

const identityKey ctxKey = "docfinder.identity"

// WithIdentity stores the caller identity in context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext extracts the caller identity if present with a non-empty subject.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	val := ctx.Value(identityKey)
	if val == nil {
		return Identity{}, false
	}
	id, ok := val.(Identity)
	return id, ok && strings.TrimSpace(id.SubjectID) != ""
}
