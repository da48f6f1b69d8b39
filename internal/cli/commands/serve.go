package commands

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/parcelstack-labs/parcelboard/internal/api"
	"github.com/parcelstack-labs/parcelboard/internal/panel"
	psync "github.com/parcelstack-labs/parcelboard/internal/sync"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard synchronization API server",
		Long: `Start the HTTP API server: layout CRUD, panel registry operations,
event publishing and the SSE event stream.

Layout templates found in the templates directory are loaded as public
layouts and hot-reloaded on change.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
	return cmd
}

func runServe(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := cmdCtx.Cfg

	secret := cfg.SessionSecret
	if secret == "" {
		// An ephemeral secret only invalidates sessions across restarts.
		buf := make([]byte, 32)
		_, _ = rand.Read(buf)
		secret = hex.EncodeToString(buf)
		cmdCtx.Logger.Warn("session_secret not configured, sessions will not survive restarts")
	}

	bus := psync.NewBus(
		psync.WithMaxDepth(cfg.MaxDepth),
		psync.WithLogger(cmdCtx.Logger),
	)

	srv := api.NewServer(api.Config{
		Store:         cmdCtx.Store,
		Registry:      panel.NewRegistry(),
		Bus:           bus,
		Port:          cfg.Port,
		SessionSecret: secret,
		TemplatesDir:  cfg.TemplatesDir,
		Logger:        cmdCtx.Logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Serve(ctx)
}
