package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MetaIntegrationData is the one-per-tenant Meta Ads connection.
type MetaIntegrationData struct {
	OrgID          uuid.UUID         `json:"org_id"`
	AccessToken    string            `json:"-"` // long-lived user token (encrypted at rest)
	VerifyToken    string            `json:"verify_token"`
	FieldMapping   map[string]string `json:"field_mapping,omitempty"`
	TokenExpiresAt *time.Time        `json:"token_expires_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// MetaPageData is a Facebook page discovered during OAuth, with its page-scoped token.
type MetaPageData struct {
	OrgID       uuid.UUID `json:"org_id"`
	PageID      string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category,omitempty"`
	AccessToken string    `json:"-"` // page-scoped token (encrypted at rest)
	UpdatedAt   time.Time `json:"updated_at"`
}

// MetaStore manages Meta integrations and their pages.
type MetaStore interface {
	// UpsertIntegration inserts or updates the tenant's integration. The verify token
	// is generated on insert only; updates overwrite the access token and timestamps.
	UpsertIntegration(ctx context.Context, orgID uuid.UUID, accessToken string, expiresAt *time.Time) (*MetaIntegrationData, error)

	GetIntegration(ctx context.Context, orgID uuid.UUID) (*MetaIntegrationData, error)

	// VerifyTokenExists reports whether any tenant registered this webhook verify token.
	VerifyTokenExists(ctx context.Context, token string) (bool, error)

	// ReplacePages swaps the tenant's stored pages for the given set.
	ReplacePages(ctx context.Context, orgID uuid.UUID, pages []MetaPageData) error
	ListPages(ctx context.Context, orgID uuid.UUID) ([]MetaPageData, error)
	GetPage(ctx context.Context, orgID uuid.UUID, pageID string) (*MetaPageData, error)

	// GetPageByID resolves a page across tenants (real-time leadgen routing).
	GetPageByID(ctx context.Context, pageID string) (*MetaPageData, error)
}
