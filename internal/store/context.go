package store

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	orgIDKey  contextKey = "leadclaw_org_id"
	orgRefKey contextKey = "leadclaw_org_ref"
)

// WithOrgID returns a new context carrying the resolved organization id.
func WithOrgID(ctx context.Context, orgID uuid.UUID) context.Context {
	return context.WithValue(ctx, orgIDKey, orgID)
}

// OrgIDFromContext extracts the organization id. Returns uuid.Nil if not set.
func OrgIDFromContext(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(orgIDKey).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// WithOrgRef returns a new context carrying the external-auth organization reference.
func WithOrgRef(ctx context.Context, ref string) context.Context {
	return context.WithValue(ctx, orgRefKey, ref)
}

// OrgRefFromContext extracts the external-auth organization reference.
func OrgRefFromContext(ctx context.Context) string {
	v, _ := ctx.Value(orgRefKey).(string)
	return v
}
