package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/probe-search/probe/internal/config"
	"github.com/probe-search/probe/internal/mcpserver"
	"github.com/probe-search/probe/pkg/observability"
	"github.com/probe-search/probe/pkg/version"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	var (
		debug      bool
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server exposing search_code for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The server exposes a single tool:
  - search_code: search source code and return ranked, AST-expanded blocks`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return &exitError{code: exitConfig, err: err}
			}

			providers, err := initMCPObservability(cfg, debug)
			if err != nil {
				return &exitError{code: exitInternalOrIO, err: err}
			}

			defer func() {
				shutdownErr := providers.Shutdown(context.Background())
				if shutdownErr != nil {
					providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
				}
			}()

			red, redErr := observability.NewREDMetrics(providers.Meter)
			if redErr != nil {
				return &exitError{code: exitInternalOrIO, err: redErr}
			}

			searchMetrics, searchMetricsErr := observability.NewSearchMetrics(providers.Meter)
			if searchMetricsErr != nil {
				return &exitError{code: exitInternalOrIO, err: searchMetricsErr}
			}

			deps := mcpserver.ServerDeps{
				Logger:        providers.Logger,
				Metrics:       red,
				SearchMetrics: searchMetrics,
				Tracer:        providers.Tracer,
				Defaults:      cfg.Search,
			}

			srv := mcpserver.NewServer(deps)

			runErr := srv.Run(cobraCmd.Context())
			if runErr != nil {
				return &exitError{code: exitInternalOrIO, err: runErr}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging and full trace sampling")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a .probe.yaml config file")

	return cmd
}

func initMCPObservability(cfg *config.Config, debug bool) (observability.Providers, error) {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = observability.ModeMCP
	obsCfg.LogJSON = cfg.Logging.Format == "json"

	if debug {
		obsCfg.LogLevel = slog.LevelDebug
		obsCfg.DebugTrace = true
	}

	return observability.Init(obsCfg)
}
