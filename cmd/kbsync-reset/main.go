package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/helpcove/kbsync/internal/config"
	"github.com/helpcove/kbsync/internal/redis"
	"github.com/helpcove/kbsync/internal/uploader"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// kbsync-reset wipes the sync state: every artifact in the vector store, the
// content lock, and the artifact index. The next daemon tick re-uploads the
// whole knowledge base from scratch.
func main() {
	// CLI flags
	cfgPath := flag.String("config", "", "path to config file (default "+config.DefaultPath+")")
	yes := flag.Bool("yes", false, "confirm wiping the vector store and the sync state")
	keepRemote := flag.Bool("keep-remote", false, "only clear Redis state, leave artifacts in place")
	flag.Parse()

	if !*yes {
		fmt.Println("Usage: ./kbsync-reset -yes [-keep-remote] [-config kbsync.yaml]")
		fmt.Println("Deletes every synced artifact and clears the content lock and artifact index.")
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := buildLogger()
	log = log.Named("main")

	ctx := context.Background()

	if !*keepRemote {
		up, err := uploader.NewUploader(ctx, cfg.OpenAI, cfg.Sync.UploadParallelism, log)
		if err != nil {
			log.Fatal("uploader creation failed", zap.Error(err))
		}

		files, err := up.ListArtifacts(ctx)
		if err != nil {
			log.Fatal("artifact listing failed", zap.Error(err))
		}
		ids := make([]string, 0, len(files))
		for _, f := range files {
			ids = append(ids, f.ID)
		}

		start := time.Now()
		deleted, err := up.DeleteBatch(ctx, ids)
		if err != nil {
			log.Fatal("artifact deletion failed", zap.Error(err))
		}
		log.Info("artifacts deleted",
			zap.Int("deleted", deleted),
			zap.Int("total", len(ids)),
			zap.Duration("took", time.Since(start)),
		)
	}

	rdb := redis.NewClient(cfg.Redis, log)
	defer rdb.Close()
	rdb.Ping(ctx)

	if err := redis.NewLockRepository(rdb, log).Clear(ctx); err != nil {
		log.Fatal("content lock clear failed", zap.Error(err))
	}

	index := redis.NewArtifactRepository(rdb, log)
	if n, err := index.Size(ctx); err == nil && n > 0 {
		log.Info("clearing artifact index", zap.Int64("entries", n))
	}
	if err := index.Clear(ctx); err != nil {
		log.Fatal("artifact index clear failed", zap.Error(err))
	}

	log.Info("sync state cleared; the next tick re-uploads everything")
}

func buildLogger() *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	logConfig.Level.SetLevel(zap.DebugLevel)
	return zap.Must(logConfig.Build())
}
