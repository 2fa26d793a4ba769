package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/leadclaw/internal/agent"
	"github.com/nextlevelbuilder/leadclaw/internal/channels/whatsapp"
	"github.com/nextlevelbuilder/leadclaw/internal/config"
	"github.com/nextlevelbuilder/leadclaw/internal/meta"
	"github.com/nextlevelbuilder/leadclaw/internal/providers"
	"github.com/nextlevelbuilder/leadclaw/internal/store"
	"github.com/nextlevelbuilder/leadclaw/internal/store/file"
	"github.com/nextlevelbuilder/leadclaw/internal/store/pg"
)

// app holds the wired services shared by serve and backfill.
type app struct {
	cfg    *config.Config
	db     *sql.DB // nil on the file store
	stores *store.Stores

	providers  *providers.Registry
	whatsapp   *whatsapp.Client
	pipeline   *agent.Pipeline
	graph      *meta.GraphClient
	exchanger  *meta.Exchanger
	backfiller *meta.Backfiller
}

func loadConfig() (*config.Config, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	slog.Debug("config loaded", "path", cfgPath, "hash", cfg.Hash())
	return cfg, nil
}

func buildApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	if cfg.Database.PostgresDSN != "" {
		db, err := pg.OpenDB(cfg.Database.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.db = db
		a.stores = pg.NewStoresFromDB(db, cfg.EncryptionKey)
		slog.Info("storage: postgres")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		st, err := pg.CheckSchema(ctx, db)
		cancel()
		if err != nil {
			slog.Warn("storage: schema check failed", "error", err)
		} else if !st.Compatible() {
			slog.Warn("storage: schema incomplete, run `leadclaw schema | psql`", "missing", st.Missing)
		}
	} else {
		stores, err := file.NewStores(cfg.StoragePath(), cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		a.stores = stores
		slog.Warn("storage: file store (no LEADCLAW_POSTGRES_DSN)", "dir", cfg.StoragePath())
	}
	if cfg.EncryptionKey == "" {
		slog.Warn("security.encryption_key_missing", "detail", "gateway keys and Meta tokens are stored in plaintext")
	}

	a.providers = providers.NewRegistry()
	a.providers.Register(providers.NewGeminiProvider(
		cfg.Providers.Gemini.APIKey, cfg.Providers.Gemini.APIBase, cfg.Agents.Defaults.Model))
	if cfg.Providers.Gemini.APIKey == "" {
		slog.Warn("providers: LEADCLAW_GEMINI_API_KEY not set, replies will fail")
	}

	a.whatsapp = whatsapp.NewClient(cfg.WhatsApp.RequestTimeout())
	a.pipeline = agent.NewPipeline(agent.PipelineDeps{
		Organizations: a.stores.Organizations,
		Agents:        a.stores.Agents,
		Generator:     a.providers,
		Sender:        a.whatsapp,
		Defaults: agent.Defaults{
			Provider:     cfg.Agents.Defaults.Provider,
			Model:        cfg.Agents.Defaults.Model,
			SystemPrompt: cfg.Agents.Defaults.SystemPrompt,
			Temperature:  cfg.Agents.Defaults.Temperature,
		},
	})

	a.graph = meta.NewGraphClient(meta.Config{
		AppID:        cfg.Meta.AppID,
		AppSecret:    cfg.Meta.AppSecret,
		GraphVersion: cfg.Meta.GraphAPIVersion,
		GraphBase:    cfg.Meta.GraphAPIBase,
		DialogBase:   cfg.Meta.DialogBase,
		RedirectURL:  cfg.MetaRedirectURL(),
		Scopes:       cfg.Meta.Scopes,
		PageSize:     cfg.Backfill.PageSize,
		MaxLeads:     cfg.Backfill.MaxLeads,
	})
	a.exchanger = meta.NewExchanger(a.graph, a.stores.Meta)
	a.backfiller = meta.NewBackfiller(a.graph, a.stores.Meta, a.stores.Leads)

	return a, nil
}

// ping reports storage reachability for /health.
func (a *app) ping(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.PingContext(ctx)
}

func (a *app) close() {
	if a.stores != nil && a.stores.Close != nil {
		if err := a.stores.Close(); err != nil {
			slog.Warn("close storage", "error", err)
		}
	}
}
