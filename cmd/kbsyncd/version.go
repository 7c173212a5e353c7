package main

import (
	"fmt"

	"github.com/helpcove/kbsync/internal/config"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build metadata",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("kbsync %s (commit %s, built %s)\n", config.Version, config.GitCommit, config.BuildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
