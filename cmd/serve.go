package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/leadclaw/internal/channels"
	"github.com/nextlevelbuilder/leadclaw/internal/gateway"
	httpapi "github.com/nextlevelbuilder/leadclaw/internal/http"
	"github.com/nextlevelbuilder/leadclaw/internal/metrics"
	"github.com/nextlevelbuilder/leadclaw/internal/tracing"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway (webhooks and dashboard API)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}

	shutdownTracing, err := tracing.Setup(ctx, cfg.Telemetry, Version)
	if err != nil {
		slog.Warn("telemetry disabled", "error", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	a, err := buildApp(cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		return err
	}
	defer a.close()

	metrics.Init()

	auth := httpapi.NewAuthenticator(httpapi.AuthConfig{
		JWTSecret: cfg.Auth.JWTSecret,
		OrgClaim:  cfg.Auth.OrgClaim,
		NameClaim: cfg.Auth.NameClaim,
	}, a.stores.Organizations)

	var realtime httpapi.LeadgenImporter
	if cfg.Meta.RealtimeLeads {
		realtime = a.backfiller
	}

	server := gateway.NewServer(cfg, Version,
		httpapi.NewWhatsAppWebhookHandler(a.pipeline, channels.NewWebhookRateLimiter(cfg.Gateway.RateLimitRPM)),
		httpapi.NewMetaWebhookHandler(httpapi.MetaWebhookConfig{
			GlobalVerifyToken: cfg.Meta.GlobalVerifyToken,
			AppSecret:         cfg.Meta.AppSecret,
			RealtimeLeads:     cfg.Meta.RealtimeLeads,
		}, a.stores.Meta, realtime),
		httpapi.NewMetaOAuthHandler(auth, a.graph, a.exchanger, httpapi.NewStateSigner(cfg.StateSecret()), cfg.Gateway.DashboardURL),
		httpapi.NewMetaFormsHandler(auth, a.stores.Meta, a.graph, a.backfiller),
		httpapi.NewWhatsAppInstancesHandler(auth, a.stores.Organizations, a.whatsapp, cfg.WebhookURL()),
		httpapi.NewAgentsHandler(auth, a.stores.Agents),
		httpapi.NewLeadsHandler(auth, a.stores.Leads),
	)
	server.SetReadinessCheck(a.ping)

	slog.Info("leadclaw starting",
		"version", Version,
		"addr", cfg.Addr(),
		"meta_configured", cfg.Meta.Configured(),
		"realtime_leads", cfg.Meta.RealtimeLeads,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			slog.Info("graceful shutdown initiated")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("gateway exited", "error", err)
		return err
	}
	return nil
}
