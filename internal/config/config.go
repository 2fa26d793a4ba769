package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the LeadClaw gateway.
type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Database  DatabaseConfig  `json:"database"`
	Providers ProvidersConfig `json:"providers"`
	Agents    AgentsConfig    `json:"agents"`
	Meta      MetaConfig      `json:"meta"`
	WhatsApp  WhatsAppConfig  `json:"whatsapp"`
	Auth      AuthConfig      `json:"auth"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	Backfill  BackfillConfig  `json:"backfill"`

	// EncryptionKey seals gateway API keys and Meta tokens at rest (env: LEADCLAW_ENCRYPTION_KEY).
	EncryptionKey string `json:"-"`
}

// GatewayConfig controls the HTTP server.
type GatewayConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	PublicURL      string   `json:"public_url,omitempty"`     // externally reachable base URL, used to build webhook URLs
	DashboardURL   string   `json:"dashboard_url,omitempty"`  // where the Meta OAuth callback redirects
	RateLimitRPM   int      `json:"rate_limit_rpm,omitempty"` // webhook requests per minute per key (0 = unlimited)
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
	ShutdownSec    int      `json:"shutdown_timeout_sec,omitempty"`
}

// DatabaseConfig selects the storage backend.
// With no DSN the gateway runs on the file store under Storage.
type DatabaseConfig struct {
	PostgresDSN string `json:"-"`                // env: LEADCLAW_POSTGRES_DSN
	Storage     string `json:"storage,omitempty"` // snapshot dir for the file store ("" = memory only)
}

// ProvidersConfig holds LLM provider credentials.
type ProvidersConfig struct {
	Gemini ProviderConfig `json:"gemini"`
}

// ProviderConfig is one provider's endpoint and key.
type ProviderConfig struct {
	APIKey  string `json:"-"` // env: LEADCLAW_GEMINI_API_KEY
	APIBase string `json:"api_base,omitempty"`
}

// AgentsConfig holds the values used when an agent leaves a field unset.
type AgentsConfig struct {
	Defaults AgentDefaults `json:"defaults"`
}

type AgentDefaults struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Temperature  float64 `json:"temperature"`
}

// MetaConfig configures the Facebook app used for Lead Ads.
type MetaConfig struct {
	AppID             string   `json:"app_id,omitempty"`
	AppSecret         string   `json:"-"` // env: LEADCLAW_META_APP_SECRET
	GraphAPIVersion   string   `json:"graph_api_version,omitempty"`
	GraphAPIBase      string   `json:"graph_api_base,omitempty"`
	DialogBase        string   `json:"dialog_base,omitempty"`
	OAuthRedirectURL  string   `json:"oauth_redirect_url,omitempty"`
	GlobalVerifyToken string   `json:"-"` // env: LEADCLAW_META_VERIFY_TOKEN
	RealtimeLeads     bool     `json:"realtime_leads,omitempty"`
	Scopes            []string `json:"scopes,omitempty"`
}

// Configured reports whether the Meta app credentials are present.
func (m MetaConfig) Configured() bool {
	return m.AppID != "" && m.AppSecret != ""
}

// WhatsAppConfig configures calls to the WhatsApp gateway.
type WhatsAppConfig struct {
	RequestTimeoutSec int `json:"request_timeout_sec,omitempty"`
}

// RequestTimeout returns the gateway HTTP timeout.
func (w WhatsAppConfig) RequestTimeout() time.Duration {
	if w.RequestTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(w.RequestTimeoutSec) * time.Second
}

// AuthConfig configures verification of dashboard JWTs issued by the identity provider.
type AuthConfig struct {
	JWTSecret string `json:"-"`                   // env: LEADCLAW_JWT_SECRET; empty enables the dev header
	OrgClaim  string `json:"org_claim,omitempty"`  // claim carrying the org auth ref (default "org_id")
	NameClaim string `json:"name_claim,omitempty"` // claim carrying the org display name (default "org_name")
	StateKey  string `json:"-"`                   // env: LEADCLAW_STATE_SECRET; signs OAuth state (falls back to JWTSecret)
}

// TelemetryConfig configures OpenTelemetry OTLP export.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`      // enable OTLP export (default false)
	Endpoint    string            `json:"endpoint,omitempty"`     // OTLP endpoint (e.g. "localhost:4317")
	Protocol    string            `json:"protocol,omitempty"`     // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`     // plaintext transport, for local collectors
	ServiceName string            `json:"service_name,omitempty"` // default "leadclaw-gateway"
	Headers     map[string]string `json:"headers,omitempty"`      // extra headers (e.g. auth tokens for cloud backends)
}

// BackfillConfig bounds historical lead imports.
type BackfillConfig struct {
	MaxLeads int `json:"max_leads,omitempty"` // default 1000
	PageSize int `json:"page_size,omitempty"` // default 100
}

// Addr returns host:port for the listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Gateway.Host, c.Gateway.Port)
}

// WebhookURL is the URL the WhatsApp gateway should post events to.
func (c *Config) WebhookURL() string {
	if c.Gateway.PublicURL == "" {
		return ""
	}
	return trimSlash(c.Gateway.PublicURL) + "/webhooks/whatsapp"
}

// MetaRedirectURL returns the OAuth redirect, derived from the public URL when unset.
func (c *Config) MetaRedirectURL() string {
	if c.Meta.OAuthRedirectURL != "" || c.Gateway.PublicURL == "" {
		return c.Meta.OAuthRedirectURL
	}
	return trimSlash(c.Gateway.PublicURL) + "/v1/meta/callback"
}

// StateSecret returns the key used to sign OAuth state.
func (c *Config) StateSecret() string {
	if c.Auth.StateKey != "" {
		return c.Auth.StateKey
	}
	return c.Auth.JWTSecret
}

// MaskedCopy returns a copy with every secret masked (empty stays empty),
// suitable for printing.
func (c *Config) MaskedCopy() *Config {
	cp := *c
	cp.Gateway.AllowedOrigins = append([]string(nil), c.Gateway.AllowedOrigins...)
	cp.Meta.Scopes = append([]string(nil), c.Meta.Scopes...)
	if c.Telemetry.Headers != nil {
		cp.Telemetry.Headers = make(map[string]string, len(c.Telemetry.Headers))
		for k := range c.Telemetry.Headers {
			cp.Telemetry.Headers[k] = secretMask
		}
	}
	maskNonEmpty(&cp.Database.PostgresDSN)
	maskNonEmpty(&cp.Providers.Gemini.APIKey)
	maskNonEmpty(&cp.Meta.AppSecret)
	maskNonEmpty(&cp.Meta.GlobalVerifyToken)
	maskNonEmpty(&cp.Auth.JWTSecret)
	maskNonEmpty(&cp.Auth.StateKey)
	maskNonEmpty(&cp.EncryptionKey)
	return &cp
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
