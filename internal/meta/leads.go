package meta

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
)

const leadFields = "id,created_time,ad_id,adset_id,campaign_id,form_id,field_data"

// FieldData is one answered question of a lead form.
type FieldData struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Lead is a lead ad submission as returned by the Graph API.
type Lead struct {
	ID          string      `json:"id"`
	CreatedTime string      `json:"created_time"`
	AdID        string      `json:"ad_id,omitempty"`
	AdsetID     string      `json:"adset_id,omitempty"`
	CampaignID  string      `json:"campaign_id,omitempty"`
	FormID      string      `json:"form_id,omitempty"`
	FieldData   []FieldData `json:"field_data"`
}

// Form is a lead generation form attached to a page.
type Form struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	LeadCount int    `json:"leads_count,omitempty"`
}

type leadsPage struct {
	Data   []Lead `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// FetchAllLeads follows paging.next until the form is exhausted or MaxLeads records
// are collected (the last page is truncated to fit). A failing page ends pagination
// and whatever was already collected is returned; the only error is a done ctx.
func (c *GraphClient) FetchAllLeads(ctx context.Context, accessToken, formID string) ([]Lead, error) {
	q := url.Values{}
	q.Set("fields", leadFields)
	q.Set("limit", strconv.Itoa(c.cfg.PageSize))
	q.Set("access_token", accessToken)
	next := c.endpoint(url.PathEscape(formID)+"/leads", q)

	var all []Lead
	for pageNo := 1; next != ""; pageNo++ {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		var page leadsPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			slog.Warn("meta.leads.page_error", "form_id", formID, "page", pageNo, "collected", len(all), "error", err)
			break
		}

		if len(page.Data) == 0 {
			break
		}
		room := c.cfg.MaxLeads - len(all)
		if len(page.Data) >= room {
			all = append(all, page.Data[:room]...)
			if len(page.Data) > room || page.Paging.Next != "" {
				slog.Warn("meta.leads.cap_reached", "form_id", formID, "max", c.cfg.MaxLeads)
			}
			break
		}
		all = append(all, page.Data...)
		next = page.Paging.Next
	}

	slog.Debug("meta.leads.fetched", "form_id", formID, "count", len(all))
	return all, nil
}

// FetchLead fetches a single lead by leadgen id.
func (c *GraphClient) FetchLead(ctx context.Context, accessToken, leadgenID string) (*Lead, error) {
	q := url.Values{}
	q.Set("fields", leadFields)
	q.Set("access_token", accessToken)

	var lead Lead
	if err := c.getJSON(ctx, c.endpoint(url.PathEscape(leadgenID), q), &lead); err != nil {
		return nil, fmt.Errorf("fetch lead %s: %w", leadgenID, err)
	}
	return &lead, nil
}

// ListForms lists the lead forms of a page, using the page-scoped token.
func (c *GraphClient) ListForms(ctx context.Context, pageToken, pageID string) ([]Form, error) {
	q := url.Values{}
	q.Set("fields", "id,name,status,leads_count")
	q.Set("limit", "100")
	q.Set("access_token", pageToken)

	var resp struct {
		Data []Form `json:"data"`
	}
	if err := c.getJSON(ctx, c.endpoint(url.PathEscape(pageID)+"/leadgen_forms", q), &resp); err != nil {
		return nil, fmt.Errorf("list forms of page %s: %w", pageID, err)
	}
	return resp.Data, nil
}
