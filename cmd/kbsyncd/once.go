package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/helpcove/kbsync/internal/redis"
	"github.com/helpcove/kbsync/pkg/fmtt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single sync tick and exit",
	Run: func(cmd *cobra.Command, _ []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fatal(cmd, err)
		}

		log := buildLogger(debugEnabled(cmd))
		log, closeTelemetry, err := setupTelemetry(cfg, log)
		if err != nil {
			fatal(cmd, err)
		}
		defer closeTelemetry()
		defer log.Sync()
		log = log.Named("main")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rdb := redis.NewClient(cfg.Redis, log)
		defer rdb.Close()
		rdb.Ping(ctx)

		orch, _, err := buildPipeline(ctx, cfg, redis.NewLockRepository(rdb, log), redis.NewArtifactRepository(rdb, log), log)
		if err != nil {
			log.Fatal("pipeline creation failed", zap.Error(err))
		}

		summary, err := orch.Sync(ctx)
		if err != nil {
			if debugEnabled(cmd) {
				fmtt.PrintErrChainDebug(err)
			}
			log.Fatal("sync failed", zap.Error(err))
		}

		out, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			log.Fatal("encode summary failed", zap.Error(err))
		}
		fmt.Println(string(out))
	},
}

func init() {
	rootCmd.AddCommand(onceCmd)
}
