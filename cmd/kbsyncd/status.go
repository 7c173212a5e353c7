package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/helpcove/kbsync/internal/redis"
	"github.com/helpcove/kbsync/internal/service"
	"github.com/helpcove/kbsync/internal/uploader"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// offlineStatus stands in for the live pipeline: this process runs no ticks.
// The daemon's /status endpoint is the place to see the live phase.
type offlineStatus struct{}

func (offlineStatus) Status() service.Status { return service.Status{Phase: service.PhaseIdle} }

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a store-level status report: lock, index, and vector store",
	Run: func(cmd *cobra.Command, _ []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fatal(cmd, err)
		}

		log := buildLogger(debugEnabled(cmd))
		defer log.Sync()
		log = log.Named("main")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rdb := redis.NewClient(cfg.Redis, log)
		defer rdb.Close()
		rdb.Ping(ctx)

		up, err := uploader.NewUploader(ctx, cfg.OpenAI, cfg.Sync.UploadParallelism, log)
		if err != nil {
			log.Fatal("uploader creation failed", zap.Error(err))
		}

		statussvc := service.NewStatusService(service.StatusDeps{
			Sync:   offlineStatus{},
			Locks:  redis.NewLockRepository(rdb, log),
			Index:  redis.NewArtifactRepository(rdb, log),
			Lister: up,
		}, service.StatusOptions{}, log)

		res, err := statussvc.Get(ctx)
		if err != nil {
			log.Fatal("status report failed", zap.Error(err))
		}

		out, err := json.MarshalIndent(res.Report, "", "  ")
		if err != nil {
			log.Fatal("encode report failed", zap.Error(err))
		}
		fmt.Println(string(out))
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
