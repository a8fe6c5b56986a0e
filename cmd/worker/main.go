package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/escossio/sandbox-orchestrator/internal/config"
	"github.com/escossio/sandbox-orchestrator/internal/logging"
	"github.com/escossio/sandbox-orchestrator/internal/store"
	"github.com/escossio/sandbox-orchestrator/internal/worker"
	"github.com/escossio/sandbox-orchestrator/pkg/artifactmirror"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	mirror, err := artifactmirror.New(ctx, artifactmirror.Config{
		Bucket:   cfg.ArtifactMirrorBucket,
		Region:   cfg.ArtifactMirrorRegion,
		Endpoint: cfg.ArtifactMirrorEndpoint,
	})
	if err != nil {
		log.Error("failed to init artifact mirror", "error", err)
		os.Exit(1)
	}

	w := worker.New(worker.Config{
		Store:         st,
		JobsRoot:      cfg.JobsDir,
		LogDir:        cfg.LogDir,
		PollInterval:  cfg.PollInterval,
		RunnerTimeout: cfg.RunnerTimeout,
		Logger:        log,
		Mirror:        mirror,
	})

	log.Info("worker starting", "jobs_dir", cfg.JobsDir, "poll_interval", cfg.PollInterval.String())
	w.Run(ctx)
	log.Info("worker stopped")
}
