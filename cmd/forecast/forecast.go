// Package forecast implements the subcommand that refreshes forecasts only.
package forecast

import (
	"github.com/spf13/cobra"
	"github.com/surfwatch/surfwatch-go/internal/conf"
	"github.com/surfwatch/surfwatch-go/internal/datastore"
	"github.com/surfwatch/surfwatch-go/internal/pipeline"
)

// Command creates the forecast command, which fetches and stores the forecast
// window of every configured spot without touching cams.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Refresh surf forecasts for all configured spots",
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
			return p.RunForecasts(cmd.Context())
		},
	}

	return cmd
}
