package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/nextlevelbuilder/leadclaw/internal/metrics"
	"github.com/nextlevelbuilder/leadclaw/internal/store"
	"github.com/nextlevelbuilder/leadclaw/pkg/protocol"
)

// ErrUnknownPage means a leadgen event named a page no tenant has connected.
var ErrUnknownPage = errors.New("leadgen page not connected")

// WebhookPayload is the body of a Meta page webhook delivery.
type WebhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Time    int64  `json:"time"`
		Changes []struct {
			Field string          `json:"field"`
			Value json.RawMessage `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// LeadgenChange is one "leadgen" change value.
type LeadgenChange struct {
	LeadgenID   flexString `json:"leadgen_id"`
	PageID      flexString `json:"page_id"`
	FormID      flexString `json:"form_id"`
	AdID        flexString `json:"ad_id"`
	CreatedTime int64      `json:"created_time"`
}

// flexString accepts both "123" and 123; test deliveries from the app dashboard send numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}

// ParseLeadgenChanges returns every leadgen change in a webhook body.
// Changes for other fields are ignored; undecodable leadgen values are skipped.
func ParseLeadgenChanges(body []byte) ([]LeadgenChange, error) {
	var p WebhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode meta webhook: %w", err)
	}
	var out []LeadgenChange
	for _, e := range p.Entry {
		for _, ch := range e.Changes {
			if ch.Field != protocol.MetaFieldLeadgen {
				continue
			}
			var lc LeadgenChange
			if err := json.Unmarshal(ch.Value, &lc); err != nil {
				slog.Warn("meta.webhook.bad_leadgen_value", "entry", e.ID, "error", err)
				continue
			}
			out = append(out, lc)
		}
	}
	return out, nil
}

// ImportRealtime imports the single lead named by a leadgen change. The page
// decides the tenant; its stored page token fetches the lead.
func (b *Backfiller) ImportRealtime(ctx context.Context, ch LeadgenChange) (created bool, err error) {
	ctx, span := tracer.Start(ctx, "meta.leadgen.import")
	defer span.End()

	page, err := b.meta.GetPageByID(ctx, string(ch.PageID))
	if errors.Is(err, store.ErrNotFound) {
		return false, ErrUnknownPage
	}
	if err != nil {
		return false, fmt.Errorf("resolve page %s: %w", ch.PageID, err)
	}

	lead, err := b.graph.FetchLead(ctx, page.AccessToken, string(ch.LeadgenID))
	if err != nil {
		metrics.ObserveLeads("realtime", 0, 0, 1)
		return false, err
	}
	if lead.FormID == "" {
		lead.FormID = string(ch.FormID)
	}
	if lead.AdID == "" {
		lead.AdID = string(ch.AdID)
	}
	if lead.CreatedTime == "" && ch.CreatedTime > 0 {
		lead.CreatedTime = strconv.FormatInt(ch.CreatedTime, 10)
	}

	created, err = b.ImportLead(ctx, page.OrgID, *lead)
	switch {
	case err != nil:
		metrics.ObserveLeads("realtime", 0, 0, 1)
	case created:
		metrics.ObserveLeads("realtime", 1, 0, 0)
	default:
		metrics.ObserveLeads("realtime", 0, 1, 0)
	}
	return created, err
}
