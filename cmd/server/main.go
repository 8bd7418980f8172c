package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/dharsanguruparan/StreamVault/internal/api"
	"github.com/dharsanguruparan/StreamVault/internal/cache"
	"github.com/dharsanguruparan/StreamVault/internal/config"
	"github.com/dharsanguruparan/StreamVault/internal/database"
	"github.com/dharsanguruparan/StreamVault/internal/hlsfs"
	"github.com/dharsanguruparan/StreamVault/internal/media"
	"github.com/dharsanguruparan/StreamVault/internal/mediastore"
	"github.com/dharsanguruparan/StreamVault/internal/pipeline"
	"github.com/dharsanguruparan/StreamVault/internal/queue"
	"github.com/dharsanguruparan/StreamVault/internal/repository"
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
	if err := originals.EnsureBucket(ctx); err != nil {
		log.Fatalf("ensure bucket: %v", err)
	}

	statusCache := cache.NewStatusCache(redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}))

	enqueuer := queue.NewEnqueuer(cfg)
	defer enqueuer.Close()

	prober := media.NewProber(cfg.ProbeTimeout)
	validator := media.NewValidator(cfg, prober)
	transcoder := media.NewTranscoder(cfg)
	hls := hlsfs.NewManager(cfg.MediaRoot)

	orchestrator := pipeline.New(pipeline.Deps{
		Store:      repo,
		Queue:      enqueuer,
		Validator:  validator,
		Thumbs:     media.NewThumbnailGenerator(cfg),
		Converter:  transcoder,
		Originals:  originals,
		HLS:        hls,
		Status:     statusCache,
		MediaRoot:  cfg.MediaRoot,
		ScratchDir: cfg.ScratchDir,
	})

	srv := api.New(cfg, repo, orchestrator, validator, originals, hls, statusCache, len(transcoder.Profiles()))
	if err := srv.Run(ctx); err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}
