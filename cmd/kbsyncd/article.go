package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/helpcove/kbsync/internal/helpcenter"
	"github.com/helpcove/kbsync/internal/markdown"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// articleCmd fetches one article and prints what the pipeline would stage.
// Handy when a single article renders badly in the assistant's answers.
var articleCmd = &cobra.Command{
	Use:   "article <id>",
	Short: "Fetch one article and print its rendered markdown",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fatal(cmd, fmt.Errorf("invalid article id %q", args[0]))
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			fatal(cmd, err)
		}

		log := buildLogger(debugEnabled(cmd))
		defer log.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		hc, err := helpcenter.NewClient(cfg.HelpCenter, log)
		if err != nil {
			log.Fatal("help center client creation failed", zap.Error(err))
		}

		a, err := hc.Article(ctx, id)
		if err != nil {
			if debugEnabled(cmd) {
				fatal(cmd, err)
			}
			log.Fatal("article fetch failed", zap.Int64("article_id", id), zap.Error(err))
		}

		raw, _ := cmd.Flags().GetBool("raw")
		body := a.Body
		if !raw {
			body, err = markdown.Render(a.Body)
			if err != nil {
				log.Fatal("markdown render failed", zap.Int64("article_id", id), zap.Error(err))
			}
		}

		fmt.Printf("# %s\n\n%s\n", a.Name, body)
	},
}

func init() {
	articleCmd.Flags().Bool("raw", false, "print the raw HTML body instead of markdown")
	rootCmd.AddCommand(articleCmd)
}
