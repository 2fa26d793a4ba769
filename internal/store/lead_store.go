package store

import (
	"context"

	"github.com/google/uuid"
)

// Lead sources.
const (
	LeadSourceManual      = "manual"
	LeadSourceFacebookAds = "facebook_ads"
)

// Lead statuses.
const (
	LeadStatusNew = "new"
)

// LeadData is a CRM record for a prospective customer.
// ExternalLeadID is unique per organization when set; the database enforces it.
type LeadData struct {
	BaseModel
	OrgID          uuid.UUID      `json:"org_id"`
	Name           string         `json:"name"`
	Email          string         `json:"email,omitempty"`
	Phone          string         `json:"phone,omitempty"`
	StageID        *uuid.UUID     `json:"stage_id,omitempty"`
	Source         string         `json:"source"`
	Status         string         `json:"status"`
	ExternalLeadID string         `json:"external_lead_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// StageData is an ordered pipeline column.
type StageData struct {
	BaseModel
	OrgID    uuid.UUID `json:"org_id"`
	Name     string    `json:"name"`
	Position int       `json:"position"`
}

// LeadListOpts filters lead listings.
type LeadListOpts struct {
	StageID *uuid.UUID
	Source  string
	Limit   int
	Offset  int
}

// LeadStore manages leads and stages.
type LeadStore interface {
	// InsertIfAbsent inserts an externally sourced lead. It returns created=false
	// when a lead with the same (org_id, external_lead_id) already exists.
	InsertIfAbsent(ctx context.Context, lead *LeadData) (created bool, err error)

	// Create inserts a lead unconditionally (manual entry).
	Create(ctx context.Context, lead *LeadData) error

	List(ctx context.Context, orgID uuid.UUID, opts LeadListOpts) ([]LeadData, error)

	// MoveStage sets or clears the stage of a lead. The stage must belong to the same tenant.
	MoveStage(ctx context.Context, orgID, leadID uuid.UUID, stageID *uuid.UUID) error

	ListStages(ctx context.Context, orgID uuid.UUID) ([]StageData, error)
	CreateStage(ctx context.Context, stage *StageData) error
}

// BulkLeadInserter is implemented by lead stores where every write has a fixed
// cost, such as the file store rewriting its snapshot. created[i] reports lead i.
type BulkLeadInserter interface {
	InsertAllIfAbsent(ctx context.Context, leads []*LeadData) (created []bool, err error)
}
