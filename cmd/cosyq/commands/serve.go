package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"cosyq/internal/count"
	"cosyq/internal/mcp"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve project listing and counts as MCP tools over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		b, desc, err := openBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := b.Close(context.Background()); err != nil {
				log.Warn().Err(err).Msg("Failed to close backend")
			}
		}()

		engine := count.NewEngine(b, count.Options{
			Parallelism: cfg.Parallelism,
			Strict:      cfg.StrictProjects,
		})

		log.Info().Str("backend", desc).Msg("MCP server starting stdio loop")
		return mcp.NewServer(b, engine, Version).Serve(ctx, os.Stdin, os.Stdout)
	},
}
