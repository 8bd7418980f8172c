package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/dharsanguruparan/StreamVault/internal/cache"
	"github.com/dharsanguruparan/StreamVault/internal/config"
	"github.com/dharsanguruparan/StreamVault/internal/database"
	"github.com/dharsanguruparan/StreamVault/internal/hlsfs"
	"github.com/dharsanguruparan/StreamVault/internal/media"
	"github.com/dharsanguruparan/StreamVault/internal/mediastore"
	"github.com/dharsanguruparan/StreamVault/internal/pipeline"
	"github.com/dharsanguruparan/StreamVault/internal/queue"
	"github.com/dharsanguruparan/StreamVault/internal/repository"
	"github.com/dharsanguruparan/StreamVault/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	for _, dir := range []string{
		filepath.Join(cfg.MediaRoot, "thumbnails"),
		filepath.Join(cfg.MediaRoot, "hls"),
		cfg.ScratchDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("create %s: %v", dir, err)
		}
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}
	repo := repository.NewVideoRepository(pool)

	originals, err := mediastore.New(cfg)
	if err != nil {
		log.Fatalf("init media store: %v", err)
	}

	statusCache := cache.NewStatusCache(redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}))

	enqueuer := queue.NewEnqueuer(cfg)
	defer enqueuer.Close()

	prober := media.NewProber(cfg.ProbeTimeout)
	orchestrator := pipeline.New(pipeline.Deps{
		Store:      repo,
		Queue:      enqueuer,
		Validator:  media.NewValidator(cfg, prober),
		Thumbs:     media.NewThumbnailGenerator(cfg),
		Converter:  media.NewTranscoder(cfg),
		Originals:  originals,
		HLS:        hlsfs.NewManager(cfg.MediaRoot),
		Status:     statusCache,
		MediaRoot:  cfg.MediaRoot,
		ScratchDir: cfg.ScratchDir,
	})

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.Concurrency,
	})
	mux := asynq.NewServeMux()
	worker.NewProcessor(orchestrator).Register(mux)

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	log.Printf("worker starting with %d slots", cfg.Concurrency)
	if err := server.Run(mux); err != nil {
		log.Printf("worker stopped: %v", err)
		os.Exit(1)
	}
}
