// Package meta integrates with the Meta (Facebook/Instagram) Graph API: the OAuth
// connect flow, lead ad retrieval and the leadgen webhook.
package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultGraphBase    = "https://graph.facebook.com"
	defaultDialogBase   = "https://www.facebook.com"
	defaultGraphVersion = "v19.0"
	defaultPageSize     = 100

	// DefaultMaxLeads caps a single backfill.
	DefaultMaxLeads = 1000

	maxResponseBytes = 8 << 20
)

// DefaultScopes are requested by the connect dialog.
var DefaultScopes = []string{"pages_show_list", "pages_read_engagement", "leads_retrieval", "pages_manage_metadata", "ads_management"}

// Config holds the Meta app credentials and Graph API location.
type Config struct {
	AppID        string
	AppSecret    string
	GraphVersion string
	GraphBase    string
	DialogBase   string
	RedirectURL  string
	Scopes       []string
	PageSize     int
	MaxLeads     int
}

func (c Config) withDefaults() Config {
	if c.GraphVersion == "" {
		c.GraphVersion = defaultGraphVersion
	}
	if c.GraphBase == "" {
		c.GraphBase = defaultGraphBase
	}
	if c.DialogBase == "" {
		c.DialogBase = defaultDialogBase
	}
	if len(c.Scopes) == 0 {
		c.Scopes = DefaultScopes
	}
	if c.PageSize <= 0 {
		c.PageSize = defaultPageSize
	}
	if c.MaxLeads <= 0 {
		c.MaxLeads = DefaultMaxLeads
	}
	c.GraphBase = strings.TrimRight(c.GraphBase, "/")
	c.DialogBase = strings.TrimRight(c.DialogBase, "/")
	return c
}

// Configured reports whether the app id and secret are set.
func (c Config) Configured() bool {
	return c.AppID != "" && c.AppSecret != ""
}

// APIError is a Graph API failure: a non-2xx status or an "error" object in the body.
type APIError struct {
	Status  int
	Type    string
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("graph HTTP %d: %s (%s, code %d)", e.Status, e.Message, e.Type, e.Code)
	}
	return fmt.Sprintf("graph HTTP %d: %s", e.Status, e.Message)
}

type graphErrorBody struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// GraphClient is a minimal Graph API client. Every call is a single GET; nothing is retried.
type GraphClient struct {
	cfg  Config
	http *http.Client
}

func NewGraphClient(cfg Config) *GraphClient {
	return &GraphClient{
		cfg:  cfg.withDefaults(),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// Config returns the effective configuration, defaults applied.
func (c *GraphClient) Config() Config { return c.cfg }

// endpoint builds {base}/{version}/{path}?{query}.
func (c *GraphClient) endpoint(path string, q url.Values) string {
	u := fmt.Sprintf("%s/%s/%s", c.cfg.GraphBase, c.cfg.GraphVersion, strings.TrimLeft(path, "/"))
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// getJSON fetches rawURL and decodes the body into out.
func (c *GraphClient) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create graph request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graph request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read graph response: %w", err)
	}

	var ge graphErrorBody
	_ = json.Unmarshal(body, &ge)
	if ge.Error != nil {
		return &APIError{Status: resp.StatusCode, Type: ge.Error.Type, Code: ge.Error.Code, Message: ge.Error.Message}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: truncateBody(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode graph response: %w", err)
	}
	return nil
}

func truncateBody(b []byte) string {
	const limit = 512
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
