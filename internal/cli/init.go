package cli

import (
	"fmt"
	"log/slog"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"card_live_dashboard/internal/config"
	"card_live_dashboard/internal/taxonomy"
	"card_live_dashboard/internal/workspace"
)

type InitDeps struct {
	Config workspace.ConfigWriter
	// Taxonomy defaults to an NCBI download from the configured taxonomy_url.
	Taxonomy workspace.TaxonomyBuilder
	Logger   *slog.Logger
}

// NewInitCommand builds cardlive-init. Argument validation runs before
// RunE, so a bad invocation never touches the filesystem.
func NewInitCommand(deps InitDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "cardlive-init HOME",
		Short: "Initialize a CARD:Live dashboard home directory",
		Long: `Creates HOME (if missing) with config/, data/card_live/ and db/
subdirectories, writes example configuration, and downloads the NCBI
taxonomy database into db/taxa.sqlite. Existing pieces are left untouched.`,
		Example:       "  cardlive-init ~/cardlive",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := homedir.Expand(args[0])
			if err != nil {
				return fmt.Errorf("expand home path: %w", err)
			}
			builder := deps.Taxonomy
			if builder == nil {
				// On a rerun the user's config may already point at a mirror.
				cfg, err := config.Load(workspace.LayoutFor(home).ConfigDir)
				if err != nil {
					return err
				}
				builder = taxonomy.NewBuilder(cfg.TaxonomyURL, deps.Logger)
			}
			in := &workspace.Initializer{
				Config:   deps.Config,
				Taxonomy: builder,
				Logger:   deps.Logger,
			}
			layout, err := in.Init(cmd.Context(), home)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "CARD:Live home ready at: %s\n", layout.Home)
			fmt.Fprintf(out, "Place CARD:Live JSON result files in %s\n", layout.DataDir)
			fmt.Fprintf(out, "Then run: cardlive-dash %s\n", layout.Home)
			return nil
		},
	}
}
