package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/leadclaw/internal/meta"
	"github.com/nextlevelbuilder/leadclaw/internal/store"
)

func backfillCmd() *cobra.Command {
	var orgRef, formID string
	cmd := &cobra.Command{
		Use:     "backfill",
		Short:   "Import the historical leads of a Meta lead form for one organization",
		Example: "  leadclaw backfill --org-ref org_2abc --form 1234567890",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runBackfill(ctx, orgRef, formID)
		},
	}
	cmd.Flags().StringVar(&orgRef, "org-ref", "", "organization reference from the auth provider (required)")
	cmd.Flags().StringVar(&formID, "form", "", "Meta lead form id (required)")
	cmd.MarkFlagRequired("org-ref")
	cmd.MarkFlagRequired("form")
	return cmd
}

func runBackfill(ctx context.Context, orgRef, formID string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	org, err := a.stores.Organizations.GetByAuthRef(ctx, orgRef)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("organization %q has not been provisioned", orgRef)
	}
	if err != nil {
		return fmt.Errorf("resolve organization: %w", err)
	}

	res, err := a.backfiller.ActivateForm(ctx, org.ID, formID)
	if errors.Is(err, meta.ErrNotConnected) {
		return fmt.Errorf("organization %q has not connected a Meta account", orgRef)
	}
	if err != nil {
		return err
	}

	fmt.Printf("form %s: fetched %d, created %d, skipped %d, failed %d\n",
		res.FormID, res.Fetched, res.Created, res.Skipped, res.Failed)
	return nil
}
