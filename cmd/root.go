package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	forecastcmd "github.com/surfwatch/surfwatch-go/cmd/forecast"
	retirecmd "github.com/surfwatch/surfwatch-go/cmd/retire"
	runcmd "github.com/surfwatch/surfwatch-go/cmd/run"
	"github.com/surfwatch/surfwatch-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "surfwatch",
		Short: "SurfWatch CLI",
		Long:  "Archive surf forecasts and surf cam rewind clips for configured spots.",
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	rootCmd.AddCommand(
		forecastcmd.Command(settings),
		runcmd.Command(settings),
		retirecmd.Command(settings),
	)

	return rootCmd
}

// setupFlags configures the global flags for the root command.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	// The value is consumed before flag parsing, the definition here is for
	// help output and unknown-flag validation.
	rootCmd.PersistentFlags().String("config", "", "Path to the configuration file")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
