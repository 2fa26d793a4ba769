package meta

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nextlevelbuilder/leadclaw/internal/metrics"
	"github.com/nextlevelbuilder/leadclaw/internal/store"
)

// ErrNotConnected means the tenant has not completed the Meta connect flow.
var ErrNotConnected = errors.New("meta integration not connected")

// BackfillResult summarizes one form activation.
type BackfillResult struct {
	FormID  string `json:"form_id"`
	Fetched int    `json:"fetched"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// Backfiller imports Meta leads into the lead store. Both the form backfill and
// the real-time leadgen path go through ImportLead.
type Backfiller struct {
	graph *GraphClient
	meta  store.MetaStore
	leads store.LeadStore
}

func NewBackfiller(graph *GraphClient, metaStore store.MetaStore, leads store.LeadStore) *Backfiller {
	return &Backfiller{graph: graph, meta: metaStore, leads: leads}
}

// ActivateForm fetches every historical lead of formID with the tenant's long-lived
// token and inserts the ones not yet imported. Per-lead failures are counted, not returned.
func (b *Backfiller) ActivateForm(ctx context.Context, orgID uuid.UUID, formID string) (_ *BackfillResult, err error) {
	ctx, span := tracer.Start(ctx, "meta.backfill.activate_form")
	span.SetAttributes(attribute.String("org_id", orgID.String()), attribute.String("form_id", formID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := store.RequireOrg(orgID); err != nil {
		return nil, err
	}
	if formID == "" {
		return nil, fmt.Errorf("form id is required")
	}

	integ, err := b.meta.GetIntegration(ctx, orgID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, fmt.Errorf("load meta integration: %w", err)
	}
	if integ.AccessToken == "" {
		return nil, ErrNotConnected
	}

	leads, err := b.graph.FetchAllLeads(ctx, integ.AccessToken, formID)
	if err != nil {
		return nil, err
	}

	res := &BackfillResult{FormID: formID, Fetched: len(leads)}
	records := make([]*store.LeadData, 0, len(leads))
	for _, l := range leads {
		if l.ID == "" {
			res.Failed++
			slog.Warn("meta.backfill.lead_without_id", "org_id", orgID, "form_id", formID)
			continue
		}
		if l.FormID == "" {
			l.FormID = formID
		}
		records = append(records, LeadRecord(orgID, l))
	}
	b.insertAll(ctx, records, res)
	metrics.ObserveLeads("backfill", res.Created, res.Skipped, res.Failed)
	span.SetAttributes(attribute.Int("fetched", res.Fetched), attribute.Int("created", res.Created))

	slog.Info("meta.backfill.done", "org_id", orgID, "form_id", formID,
		"fetched", res.Fetched, "created", res.Created, "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

// insertAll stores records and tallies res. Stores implementing
// store.BulkLeadInserter get the whole batch in one call.
func (b *Backfiller) insertAll(ctx context.Context, records []*store.LeadData, res *BackfillResult) {
	if bulk, ok := b.leads.(store.BulkLeadInserter); ok && len(records) > 0 {
		created, err := bulk.InsertAllIfAbsent(ctx, records)
		if err != nil {
			res.Failed += len(records)
			slog.Warn("meta.backfill.insert_failed", "form_id", res.FormID, "leads", len(records), "error", err)
			return
		}
		for _, c := range created {
			if c {
				res.Created++
			} else {
				res.Skipped++
			}
		}
		return
	}
	for _, rec := range records {
		created, err := b.leads.InsertIfAbsent(ctx, rec)
		switch {
		case err != nil:
			res.Failed++
			slog.Warn("meta.backfill.insert_failed", "form_id", res.FormID, "lead_id", rec.ExternalLeadID, "error", err)
		case created:
			res.Created++
		default:
			res.Skipped++
		}
	}
}

// ImportLead maps a Graph lead and inserts it unless (org, lead id) already exists.
func (b *Backfiller) ImportLead(ctx context.Context, orgID uuid.UUID, l Lead) (bool, error) {
	if l.ID == "" {
		return false, fmt.Errorf("lead has no id")
	}
	return b.leads.InsertIfAbsent(ctx, LeadRecord(orgID, l))
}

// LeadRecord converts a Graph lead into a CRM lead.
func LeadRecord(orgID uuid.UUID, l Lead) *store.LeadData {
	m := MapFields(l.FieldData)
	name := m.Name
	if name == "" {
		name = "Lead " + l.ID
	}

	meta := map[string]any{
		"facebook_lead_id": l.ID,
		"form_id":          l.FormID,
		"ad_id":            l.AdID,
		"created_time":     l.CreatedTime,
		"raw_fields":       m.Raw,
	}
	if l.CampaignID != "" {
		meta["campaign_id"] = l.CampaignID
	}

	return &store.LeadData{
		OrgID:          orgID,
		Name:           name,
		Email:          m.Email,
		Phone:          m.Phone,
		Source:         store.LeadSourceFacebookAds,
		Status:         store.LeadStatusNew,
		ExternalLeadID: l.ID,
		Metadata:       meta,
	}
}
