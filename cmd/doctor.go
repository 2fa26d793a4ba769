package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/leadclaw/internal/store/pg"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and dependency health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("leadclaw doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults + env)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}
	masked := cfg.MaskedCopy()

	fmt.Println()
	fmt.Println("  Database:")
	if cfg.Database.PostgresDSN == "" {
		fmt.Printf("    %-14s file store (%s)\n", "Mode:", cfg.StoragePath())
	} else {
		fmt.Printf("    %-14s postgres\n", "Mode:")
		db, err := pg.OpenDB(cfg.Database.PostgresDSN)
		if err != nil {
			fmt.Printf("    %-14s CONNECT FAILED (%s)\n", "Status:", err)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			st, serr := pg.CheckSchema(ctx, db)
			cancel()
			db.Close()
			switch {
			case serr != nil:
				fmt.Printf("    %-14s CHECK FAILED (%s)\n", "Schema:", serr)
			case st.Compatible():
				fmt.Printf("    %-14s OK (%d tables)\n", "Schema:", len(st.Present))
			default:
				fmt.Printf("    %-14s MISSING %s (run: leadclaw schema | psql \"$LEADCLAW_POSTGRES_DSN\")\n",
					"Schema:", strings.Join(st.Missing, ", "))
			}
		}
	}
	fmt.Printf("    %-14s %s\n", "Encryption:", status(cfg.EncryptionKey != "", "key set", "NOT SET (secrets stored in plaintext)"))

	fmt.Println()
	fmt.Println("  AI:")
	fmt.Printf("    %-14s %s / %s\n", "Default:", cfg.Agents.Defaults.Provider, cfg.Agents.Defaults.Model)
	fmt.Printf("    %-14s %s\n", "Gemini key:", status(cfg.Providers.Gemini.APIKey != "", masked.Providers.Gemini.APIKey, "NOT SET"))

	fmt.Println()
	fmt.Println("  Meta:")
	fmt.Printf("    %-14s %s\n", "App:", status(cfg.Meta.Configured(), cfg.Meta.AppID, "NOT CONFIGURED (connect flow disabled)"))
	fmt.Printf("    %-14s %s\n", "Redirect:", status(cfg.MetaRedirectURL() != "", cfg.MetaRedirectURL(), "NOT SET"))
	fmt.Printf("    %-14s %s\n", "Verify token:", status(cfg.Meta.GlobalVerifyToken != "", masked.Meta.GlobalVerifyToken, "per-integration only"))
	fmt.Printf("    %-14s %t\n", "Realtime:", cfg.Meta.RealtimeLeads)

	fmt.Println()
	fmt.Println("  Gateway:")
	fmt.Printf("    %-14s %s\n", "Listen:", cfg.Addr())
	fmt.Printf("    %-14s %s\n", "Webhook URL:", status(cfg.WebhookURL() != "", cfg.WebhookURL(), "NOT SET (set gateway.public_url)"))
	fmt.Printf("    %-14s %s\n", "Auth:", status(cfg.Auth.JWTSecret != "", "JWT (HS256)", "DEV HEADER (set LEADCLAW_JWT_SECRET)"))
	fmt.Printf("    %-14s %s\n", "Telemetry:", status(cfg.Telemetry.Enabled, cfg.Telemetry.Endpoint, "disabled"))
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the Postgres DDL (pipe into psql)",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(pg.Schema)
		},
	}
}

func status(ok bool, good, bad string) string {
	if ok {
		return good
	}
	return bad
}
