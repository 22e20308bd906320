package main

import "github.com/spf13/cobra"

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "browserpool",
		Short:         "Pooled headless browser sessions over HTTP",
		Long:          "browserpool keeps one headless browser running and hands out isolated browser contexts keyed by session, closing idle ones in the background.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
	)

	return rootCmd
}
