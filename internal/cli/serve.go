package cli

import (
	"fmt"
	"log/slog"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"card_live_dashboard/internal/app"
	"card_live_dashboard/internal/devserver"
)

type ServeDeps struct {
	// Build defaults to app.Build.
	Build  func(home string, opts app.Options) (*app.App, error)
	Logger *slog.Logger
}

func NewServeCommand(deps ServeDeps) *cobra.Command {
	var (
		addr    string
		debug   bool
		workers int
	)
	cmd := &cobra.Command{
		Use:   "cardlive-dash HOME",
		Short: "Run the CARD:Live dashboard on a local development server",
		Long: `Serves the dashboard for an initialized HOME directory. Debug mode
reloads data when files under HOME change and refreshes open browsers.
This server is for local use only, not for production.`,
		Example:       "  cardlive-dash ~/cardlive",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := homedir.Expand(args[0])
			if err != nil {
				return fmt.Errorf("expand home path: %w", err)
			}
			build := deps.Build
			if build == nil {
				build = app.Build
			}
			dash, err := build(home, app.Options{Logger: deps.Logger, Workers: workers})
			if err != nil {
				return fmt.Errorf("build dashboard: %w", err)
			}
			defer dash.Close()

			cfg := dash.Config()
			layout := dash.Layout()
			return devserver.Run(cmd.Context(), dash, devserver.Options{
				Addr:         addr,
				Debug:        debug,
				BasePath:     cfg.URLBasePathname,
				WatchDirs:    []string{layout.DataDir},
				RefreshEvery: cfg.AutoUpdateInterval(),
				Logger:       deps.Logger,
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", devserver.DefaultAddr, "address to listen on")
	cmd.Flags().BoolVar(&debug, "debug", true, "enable auto-reload and verbose request logging")
	cmd.Flags().IntVar(&workers, "workers", 0, "files parsed in parallel on reload (0 = number of CPUs)")
	return cmd
}
