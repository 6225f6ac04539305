// Package retire implements the subcommand that removes a spot and its data.
package retire

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/surfwatch/surfwatch-go/internal/conf"
	"github.com/surfwatch/surfwatch-go/internal/datastore"
)

// Command creates the retire command. Retiring a spot deletes its forecasts,
// swells, cams and stored clip records in one transaction; with --videos-only
// the clip records of the spot's cams are purged and the spot itself stays.
func Command(settings *conf.Settings) *cobra.Command {
	var spotID string
	var videosOnly bool

	cmd := &cobra.Command{
		Use:   "retire",
		Short: "Remove a spot and all data recorded for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if spotID == "" {
				return fmt.Errorf("--spot is required")
			}

			store := datastore.New(settings)
			if err := store.Open(); err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if videosOnly {
				cams, err := store.CamsForSpot(spotID)
				if err != nil {
					return err
				}
				var total int64
				for i := range cams {
					removed, err := store.DeleteVideosForCam(cams[i].ID)
					if err != nil {
						return err
					}
					total += removed
				}
				fmt.Printf("Removed %d clip records for spot %s\n", total, spotID)
				return nil
			}

			if err := store.DeleteSpot(spotID); err != nil {
				return err
			}
			fmt.Printf("Retired spot %s\n", spotID)
			return nil
		},
	}

	cmd.Flags().StringVar(&spotID, "spot", "", "ID of the spot to retire")
	cmd.Flags().BoolVar(&videosOnly, "videos-only", false, "Only remove stored clip records, keep the spot")

	return cmd
}
