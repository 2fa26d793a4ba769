package config

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/titanous/json5"
)

const secretMask = "***"

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:         "0.0.0.0",
			Port:         18790,
			RateLimitRPM: 120,
			ShutdownSec:  15,
		},
		Database: DatabaseConfig{
			Storage: "~/.leadclaw/data",
		},
		Agents: AgentsConfig{
			Defaults: AgentDefaults{
				Provider:    "google",
				Model:       "gemini-1.5-flash",
				Temperature: 0.7,
			},
		},
		Meta: MetaConfig{
			GraphAPIVersion: "v19.0",
			Scopes:          []string{"pages_show_list", "leads_retrieval", "pages_read_engagement", "pages_manage_metadata", "ads_management"},
		},
		WhatsApp: WhatsAppConfig{
			RequestTimeoutSec: 30,
		},
		Auth: AuthConfig{
			OrgClaim:  "org_id",
			NameClaim: "org_name",
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "leadclaw-gateway",
		},
		Backfill: BackfillConfig{
			MaxLeads: 1000,
			PageSize: 100,
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: defaults plus env are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE files into the process environment. Missing files are
// skipped and variables already set in the environment win.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values; secrets only come from env.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	envBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true" || v == "1"
		}
	}

	// Secrets
	envStr("LEADCLAW_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("LEADCLAW_ENCRYPTION_KEY", &c.EncryptionKey)
	envStr("LEADCLAW_GEMINI_API_KEY", &c.Providers.Gemini.APIKey)
	envStr("LEADCLAW_META_APP_SECRET", &c.Meta.AppSecret)
	envStr("LEADCLAW_META_VERIFY_TOKEN", &c.Meta.GlobalVerifyToken)
	envStr("LEADCLAW_JWT_SECRET", &c.Auth.JWTSecret)
	envStr("LEADCLAW_STATE_SECRET", &c.Auth.StateKey)

	// Gateway
	envStr("LEADCLAW_HOST", &c.Gateway.Host)
	envInt("LEADCLAW_PORT", &c.Gateway.Port)
	envStr("LEADCLAW_PUBLIC_URL", &c.Gateway.PublicURL)
	envStr("LEADCLAW_DASHBOARD_URL", &c.Gateway.DashboardURL)
	envInt("LEADCLAW_RATE_LIMIT_RPM", &c.Gateway.RateLimitRPM)
	if v := os.Getenv("LEADCLAW_ALLOWED_ORIGINS"); v != "" {
		c.Gateway.AllowedOrigins = splitList(v)
	}
	envStr("LEADCLAW_STORAGE", &c.Database.Storage)

	// Providers / agents
	envStr("LEADCLAW_GEMINI_API_BASE", &c.Providers.Gemini.APIBase)
	envStr("LEADCLAW_PROVIDER", &c.Agents.Defaults.Provider)
	envStr("LEADCLAW_MODEL", &c.Agents.Defaults.Model)

	// Meta
	envStr("LEADCLAW_META_APP_ID", &c.Meta.AppID)
	envStr("LEADCLAW_META_GRAPH_VERSION", &c.Meta.GraphAPIVersion)
	envStr("LEADCLAW_META_GRAPH_BASE", &c.Meta.GraphAPIBase)
	envStr("LEADCLAW_META_REDIRECT_URL", &c.Meta.OAuthRedirectURL)
	envBool("LEADCLAW_META_REALTIME_LEADS", &c.Meta.RealtimeLeads)

	envInt("LEADCLAW_WHATSAPP_TIMEOUT_SEC", &c.WhatsApp.RequestTimeoutSec)
	envInt("LEADCLAW_BACKFILL_MAX_LEADS", &c.Backfill.MaxLeads)

	// Telemetry
	envBool("LEADCLAW_TELEMETRY_ENABLED", &c.Telemetry.Enabled)
	envStr("LEADCLAW_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("LEADCLAW_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envBool("LEADCLAW_TELEMETRY_INSECURE", &c.Telemetry.Insecure)
	envStr("LEADCLAW_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
}

// Validate rejects values the gateway cannot start with.
func (c *Config) Validate() error {
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port %d out of range", c.Gateway.Port)
	}
	if c.Agents.Defaults.Temperature < 0 || c.Agents.Defaults.Temperature > 2 {
		return fmt.Errorf("agents.defaults.temperature %.2f out of range [0,2]", c.Agents.Defaults.Temperature)
	}
	switch c.Telemetry.Protocol {
	case "", "grpc", "http":
	default:
		return fmt.Errorf("telemetry.protocol %q: want grpc or http", c.Telemetry.Protocol)
	}
	if c.Backfill.MaxLeads < 0 || c.Backfill.PageSize < 0 {
		return fmt.Errorf("backfill limits must not be negative")
	}
	return nil
}

// Hash returns a short SHA-256 digest of the file-visible config, logged at startup.
func (c *Config) Hash() string {
	data, _ := json.Marshal(c)
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:8])
}

// StoragePath returns the file store directory with ~ expanded.
func (c *Config) StoragePath() string {
	return ExpandHome(c.Database.Storage)
}

func maskNonEmpty(s *string) {
	if *s != "" {
		*s = secretMask
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ExpandHome replaces leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
