package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bdobrica/kotae/common/version"
	"github.com/bdobrica/kotae/internal/kotae/app"
	"github.com/bdobrica/kotae/internal/kotae/observability"
)

type serveOptions struct {
	httpAddr   string
	database   string
	logLevel   string
	logFormat  string
	repliesDir string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the auto-responder service",
		Long: `Run the HTTP gateway and, when MATRIX_HOMESERVER, MATRIX_USER_ID and
MATRIX_ACCESS_TOKEN are set, the Matrix adapter. Configuration comes from
KOTAE_* and MATRIX_* environment variables; flags override them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("configuration: %w", err)
			}
			opts.apply(cmd, &cfg)
			return runServe(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.httpAddr, "http-addr", "", "HTTP listen address (overrides KOTAE_HTTP_ADDR)")
	f.StringVar(&opts.database, "database", "", "SQLite journal path, empty to disable (overrides KOTAE_DATABASE_PATH)")
	f.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides KOTAE_LOG_LEVEL)")
	f.StringVar(&opts.logFormat, "log-format", "", "text or json (overrides KOTAE_LOG_FORMAT)")
	f.StringVar(&opts.repliesDir, "replies-dir", "", "directory holding replies.yaml (overrides KOTAE_REPLIES_DIR)")
	return cmd
}

// apply copies explicitly set flags over the environment configuration.
func (o serveOptions) apply(cmd *cobra.Command, cfg *app.Config) {
	f := cmd.Flags()
	if f.Changed("http-addr") {
		cfg.HTTPAddr = o.httpAddr
	}
	if f.Changed("database") {
		cfg.DatabasePath = o.database
	}
	if f.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if f.Changed("log-format") {
		cfg.LogFormat = o.logFormat
	}
	if f.Changed("replies-dir") {
		cfg.RepliesDir = o.repliesDir
	}
}

func runServe(ctx context.Context, cfg app.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := observability.Setup(cfg.LogLevel, cfg.LogFormat)
	build := version.Current()
	logger.Info("starting", "version", build.Version, "commit", build.Commit, "build_time", build.Time, "go", build.GoVersion)

	kotae, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer kotae.Stop()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return kotae.Run(ctx)
}
