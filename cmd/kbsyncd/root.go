package main

import (
	"fmt"
	"os"

	"github.com/helpcove/kbsync/internal/config"
	"github.com/helpcove/kbsync/pkg/fmtt"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kbsyncd",
	Short: "kbsyncd - help-center to vector-store sync daemon",
	Long: "kbsyncd mirrors a help-center knowledge base into an OpenAI vector store\n" +
		"and keeps a file-search assistant pointed at it. A content lock in Redis\n" +
		"tracks what was uploaded, so only changed articles move on each tick.",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file (default "+config.DefaultPath+")")
	rootCmd.PersistentFlags().Bool("debug", false, "debug logging plus full error dumps")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func debugEnabled(cmd *cobra.Command) bool {
	debug, _ := cmd.Flags().GetBool("debug")
	return debug
}

// fatal reports a startup error and exits. Under --debug the whole error
// chain is dumped, wrapped API errors included.
func fatal(cmd *cobra.Command, err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	if debugEnabled(cmd) {
		fmtt.PrintErrChainDebug(err)
	}
	os.Exit(1)
}
