package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/helpcove/kbsync/internal/redis"
	"github.com/helpcove/kbsync/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync daemon: periodic ticks plus the ops HTTP server",
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

		locks := redis.NewLockRepository(rdb, log)
		index := redis.NewArtifactRepository(rdb, log)

		orch, up, err := buildPipeline(ctx, cfg, locks, index, log)
		if err != nil {
			log.Fatal("pipeline creation failed", zap.Error(err))
		}
		build := func(ctx context.Context) (*service.Orchestrator, error) {
			o, _, err := buildPipeline(ctx, cfg, locks, index, log)
			return o, err
		}
		ticker := service.NewTicker(orch, build, cfg.Sync.Interval.Std(), cfg.Sync.RetryDelay.Std(), log)

		statussvc := service.NewStatusService(service.StatusDeps{
			Sync:   ticker,
			Locks:  locks,
			Index:  index,
			Lister: up,
		}, service.StatusOptions{AllowStaleOnError: true}, log)

		var httpsrv *http.Server
		if cfg.Ops.ListenAddr != "" {
			httpsrv = buildOpsServer(cfg, log, rdb, ticker, statussvc)
			go func() {
				log.Info("running ops HTTP server", zap.String("addr", httpsrv.Addr))
				if err := httpsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("ops server failed", zap.Error(err))
				}
			}()
		}

		if err := ticker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("sync loop failed", zap.Error(err))
		}

		if httpsrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpsrv.Shutdown(shutdownCtx); err != nil {
				log.Warn("ops server shutdown failed", zap.Error(err))
			}
		}
		log.Info("daemon stopped")
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
