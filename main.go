// Package main is the entry point for the Argus telemetry service.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"argus/bootstrap"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "argus",
		Short: "Real-time security telemetry cache and correlation service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap.NewApp(configPath)
			if err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
		SilenceUsage: true,
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(*cobra.Command, []string) {
			fmt.Println("argus", version)
		},
	})

	return rootCmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
