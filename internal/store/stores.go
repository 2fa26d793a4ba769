package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Stores is the top-level container for all storage backends.
type Stores struct {
	Organizations OrganizationStore
	Agents        AgentStore
	Leads         LeadStore
	Meta          MetaStore

	// Close releases the underlying connection pool (nil for in-memory stores).
	Close func() error
}

// BaseModel holds the columns shared by every tenant-owned table.
type BaseModel struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	// ErrNotFound is returned when a row does not exist (or belongs to another tenant).
	ErrNotFound = errors.New("store: not found")

	// ErrMissingTenant is returned when a data-access call is made without an organization id.
	ErrMissingTenant = errors.New("store: organization id is required")

	// ErrDuplicate is returned when a unique constraint rejects an insert.
	ErrDuplicate = errors.New("store: duplicate record")
)

// GenNewID returns a time-ordered UUIDv7.
func GenNewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// RequireOrg asserts that a verified tenant id is present.
// Every store method calls it before touching tenant data.
func RequireOrg(orgID uuid.UUID) error {
	if orgID == uuid.Nil {
		return ErrMissingTenant
	}
	return nil
}
