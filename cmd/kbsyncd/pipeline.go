package main

import (
	"context"
	"fmt"

	"github.com/helpcove/kbsync/internal/config"
	"github.com/helpcove/kbsync/internal/helpcenter"
	"github.com/helpcove/kbsync/internal/redis"
	"github.com/helpcove/kbsync/internal/service"
	"github.com/helpcove/kbsync/internal/staging"
	"github.com/helpcove/kbsync/internal/uploader"
	"go.uber.org/zap"
)

// buildPipeline wires one orchestrator with fresh remote sessions. The ticker
// calls this again after a failed tick.
func buildPipeline(ctx context.Context, cfg *config.Config, locks *redis.LockRepository, index *redis.ArtifactRepository, log *zap.Logger) (*service.Orchestrator, *uploader.Uploader, error) {
	hc, err := helpcenter.NewClient(cfg.HelpCenter, log)
	if err != nil {
		return nil, nil, fmt.Errorf("help center client: %w", err)
	}

	up, err := uploader.NewUploader(ctx, cfg.OpenAI, cfg.Sync.UploadParallelism, log)
	if err != nil {
		return nil, nil, fmt.Errorf("uploader: %w", err)
	}

	orch := service.NewOrchestrator(service.OrchestratorDeps{
		Harvester: helpcenter.NewHarvester(hc, cfg.Sync.HarvestParallelism, log),
		Stager:    staging.NewStager(cfg.Sync.OutputDir, log),
		Store:     up,
		Locks:     locks,
		Index:     index,
	}, cfg.Sync.PurgeDeleted, log)

	return orch, up, nil
}
