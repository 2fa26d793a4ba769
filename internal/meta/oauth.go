package meta

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nextlevelbuilder/leadclaw/internal/store"
	"github.com/nextlevelbuilder/leadclaw/pkg/protocol"
)

var tracer = otel.Tracer("github.com/nextlevelbuilder/leadclaw/internal/meta")

// Token is an OAuth access token response.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ExpiresAt returns the absolute expiry, or nil when the Graph API did not send one.
func (t *Token) ExpiresAt(now time.Time) *time.Time {
	if t.ExpiresIn <= 0 {
		return nil
	}
	exp := now.Add(time.Duration(t.ExpiresIn) * time.Second)
	return &exp
}

// Page is a Facebook page the user manages, with its page-scoped token.
type Page struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	AccessToken string `json:"access_token"`
}

// PageSummary is the client-visible part of a page. Tokens never leave the server.
type PageSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// AuthorizeURL returns the Facebook login dialog URL for the given state.
func (c *GraphClient) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.cfg.AppID)
	q.Set("redirect_uri", c.cfg.RedirectURL)
	q.Set("state", state)
	q.Set("scope", strings.Join(c.cfg.Scopes, ","))
	q.Set("response_type", "code")
	return fmt.Sprintf("%s/%s/dialog/oauth?%s", c.cfg.DialogBase, c.cfg.GraphVersion, q.Encode())
}

// ExchangeCode trades an authorization code for a short-lived user token.
func (c *GraphClient) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	q := url.Values{}
	q.Set("client_id", c.cfg.AppID)
	q.Set("client_secret", c.cfg.AppSecret)
	q.Set("redirect_uri", c.cfg.RedirectURL)
	q.Set("code", code)

	var tok Token
	if err := c.getJSON(ctx, c.endpoint("oauth/access_token", q), &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("code exchange returned no access token")
	}
	return &tok, nil
}

// ExchangeLongLived trades a short-lived user token for a long-lived (about 60 day) one.
func (c *GraphClient) ExchangeLongLived(ctx context.Context, shortToken string) (*Token, error) {
	q := url.Values{}
	q.Set("grant_type", "fb_exchange_token")
	q.Set("client_id", c.cfg.AppID)
	q.Set("client_secret", c.cfg.AppSecret)
	q.Set("fb_exchange_token", shortToken)

	var tok Token
	if err := c.getJSON(ctx, c.endpoint("oauth/access_token", q), &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("long-lived exchange returned no access token")
	}
	return &tok, nil
}

// ListPages returns the pages the user manages.
func (c *GraphClient) ListPages(ctx context.Context, userToken string) ([]Page, error) {
	q := url.Values{}
	q.Set("fields", "id,name,category,access_token")
	q.Set("limit", "100")
	q.Set("access_token", userToken)

	var resp struct {
		Data []Page `json:"data"`
	}
	if err := c.getJSON(ctx, c.endpoint("me/accounts", q), &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Step names a stage of the connect flow.
type Step string

const (
	StepExchangeCode Step = "exchange_code"
	StepExchangeLong Step = "exchange_long_lived"
	StepFetchPages   Step = "fetch_pages"
	StepPersist      Step = "persist"
)

// StepError reports which connect stage failed.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("meta connect %s: %v", e.Step, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

// Reason maps the failed stage onto a dashboard meta_error value.
func (e *StepError) Reason() string {
	switch e.Step {
	case StepExchangeCode, StepExchangeLong:
		return protocol.MetaErrorTokenExchange
	default:
		return protocol.MetaErrorServer
	}
}

// ConnectResult is what a completed connect flow produced.
type ConnectResult struct {
	Integration *store.MetaIntegrationData
	Pages       []PageSummary
}

// Exchanger runs the OAuth connect flow:
// exchange code, exchange for a long-lived token, fetch pages, persist.
// Nothing is written until every remote call has succeeded.
type Exchanger struct {
	graph *GraphClient
	meta  store.MetaStore
	now   func() time.Time
}

func NewExchanger(graph *GraphClient, metaStore store.MetaStore) *Exchanger {
	return &Exchanger{graph: graph, meta: metaStore, now: time.Now}
}

// Complete finishes the flow for orgID with the authorization code from the callback.
// Errors are *StepError.
func (x *Exchanger) Complete(ctx context.Context, orgID uuid.UUID, code string) (_ *ConnectResult, err error) {
	ctx, span := tracer.Start(ctx, "meta.oauth.complete")
	span.SetAttributes(attribute.String("org_id", orgID.String()))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := store.RequireOrg(orgID); err != nil {
		return nil, &StepError{Step: StepPersist, Err: err}
	}

	short, err := x.graph.ExchangeCode(ctx, code)
	if err != nil {
		return nil, &StepError{Step: StepExchangeCode, Err: err}
	}
	long, err := x.graph.ExchangeLongLived(ctx, short.AccessToken)
	if err != nil {
		return nil, &StepError{Step: StepExchangeLong, Err: err}
	}
	pages, err := x.graph.ListPages(ctx, long.AccessToken)
	if err != nil {
		return nil, &StepError{Step: StepFetchPages, Err: err}
	}

	integ, err := x.meta.UpsertIntegration(ctx, orgID, long.AccessToken, long.ExpiresAt(x.now()))
	if err != nil {
		return nil, &StepError{Step: StepPersist, Err: err}
	}

	stored := make([]store.MetaPageData, 0, len(pages))
	summaries := make([]PageSummary, 0, len(pages))
	for _, p := range pages {
		stored = append(stored, store.MetaPageData{
			OrgID:       orgID,
			PageID:      p.ID,
			Name:        p.Name,
			Category:    p.Category,
			AccessToken: p.AccessToken,
		})
		summaries = append(summaries, PageSummary{ID: p.ID, Name: p.Name, Category: p.Category})
	}
	if err := x.meta.ReplacePages(ctx, orgID, stored); err != nil {
		return nil, &StepError{Step: StepPersist, Err: err}
	}

	slog.Info("meta.oauth.connected", "org_id", orgID, "pages", len(pages))
	return &ConnectResult{Integration: integ, Pages: summaries}, nil
}
