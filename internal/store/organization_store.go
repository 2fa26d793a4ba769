package store

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Messaging instance statuses, as reported to the dashboard.
const (
	InstanceConnected    = "connected"
	InstanceConnecting   = "connecting"
	InstanceDisconnected = "disconnected"
	InstanceError        = "error"
)

// MessagingConfig is the messaging-gateway credential triple.
// The three values are always read and written together.
type MessagingConfig struct {
	BaseURL      string `json:"base_url"`
	APIKey       string `json:"-"`
	InstanceName string `json:"instance_name"`
}

// Complete reports whether all three credentials are set.
// A partial triple means the integration is treated as disconnected.
func (m MessagingConfig) Complete() bool {
	return strings.TrimSpace(m.BaseURL) != "" &&
		strings.TrimSpace(m.APIKey) != "" &&
		strings.TrimSpace(m.InstanceName) != ""
}

// OrganizationData is the tenant boundary.
type OrganizationData struct {
	BaseModel
	Name           string          `json:"name"`
	AuthOrgRef     string          `json:"auth_org_ref"`
	Messaging      MessagingConfig `json:"messaging"`
	InstanceStatus string          `json:"instance_status"`
}

// MessagingStatus returns the effective instance status.
func (o *OrganizationData) MessagingStatus() string {
	if !o.Messaging.Complete() || o.InstanceStatus == "" {
		return InstanceDisconnected
	}
	return o.InstanceStatus
}

// OrganizationStore manages tenants.
type OrganizationStore interface {
	// EnsureByAuthRef provisions the organization on first authenticated access.
	// Idempotent: concurrent first requests resolve to the same row.
	EnsureByAuthRef(ctx context.Context, authOrgRef, name string) (*OrganizationData, error)

	// GetByAuthRef resolves an external-auth organization reference.
	// Returns ErrNotFound if the tenant has not been provisioned yet.
	GetByAuthRef(ctx context.Context, authOrgRef string) (*OrganizationData, error)

	// GetByInstanceName resolves the tenant owning a messaging instance.
	GetByInstanceName(ctx context.Context, instanceName string) (*OrganizationData, error)

	GetByID(ctx context.Context, orgID uuid.UUID) (*OrganizationData, error)
	UpdateMessaging(ctx context.Context, orgID uuid.UUID, cfg MessagingConfig) error
	UpdateInstanceStatus(ctx context.Context, orgID uuid.UUID, status string) error
}
