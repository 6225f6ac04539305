// Package run implements the full pipeline subcommand.
package run

import (
	"github.com/spf13/cobra"
	"github.com/surfwatch/surfwatch-go/internal/conf"
	"github.com/surfwatch/surfwatch-go/internal/datastore"
	"github.com/surfwatch/surfwatch-go/internal/pipeline"
)

// Command creates the run command, which refreshes forecasts and then
// archives daylight rewind clips for every configured cam.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: forecasts, then surf cam clips",
		Long: "Refresh forecasts for every configured spot, then resolve, download and " +
			"transcode the daylight rewind clips of every cam. Provider credentials are " +
			"read from SURFWATCH_PROVIDER_EMAIL and SURFWATCH_PROVIDER_PASSWORD.",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := datastore.New(settings)
			if err := store.Open(); err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			p, err := pipeline.New(settings, store)
			if err != nil {
				return err
			}
			if err := p.SeedCatalog(); err != nil {
				return err
			}
			return p.RunFull(cmd.Context())
		},
	}

	return cmd
}
