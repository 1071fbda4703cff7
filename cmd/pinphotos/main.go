package main

import (
	"os"

	"github.com/spf13/cobra"

	"codeberg.org/snonux/pinphotos/internal/cli"
	"codeberg.org/snonux/pinphotos/internal/logging"
	"codeberg.org/snonux/pinphotos/internal/processor"
)

func main() {
	// Create flags instance
	flags := cli.NewFlags()

	// Create root command
	rootCmd := cli.CreateRootCommand(flags, func(cmd *cobra.Command) (cli.Handler, error) {
		return newProcessor(cmd, flags), nil
	})

	// Set up command initialization
	cobra.OnInitialize(func() {
		cli.InitConfig(flags.CfgFile)
	})

	// Execute command
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newProcessor(cmd *cobra.Command, flags *cli.Flags) *processor.Processor {
	settings := cli.LoadSettings(flags)
	logger, _ := logging.New(settings.LogLevel)
	return processor.NewProcessor(settings, cmd.OutOrStdout(), logger)
}
