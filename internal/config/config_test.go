package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address != ":8080" {
		t.Errorf("address = %q", cfg.Address)
	}
	if cfg.MaxFileSize != int64(100.5*1024*1024) {
		t.Errorf("max file size = %d", cfg.MaxFileSize)
	}
	if len(cfg.AllowedExtensions) != 4 || cfg.AllowedExtensions[0] != "mp4" {
		t.Errorf("extensions = %v", cfg.AllowedExtensions)
	}
	if cfg.MinDuration != time.Second || cfg.MaxDuration != 2*time.Hour {
		t.Errorf("duration bounds = %s..%s", cfg.MinDuration, cfg.MaxDuration)
	}
	if cfg.MinWidth != 320 || cfg.MinHeight != 240 || cfg.MaxWidth != 3840 || cfg.MaxHeight != 2160 {
		t.Errorf("dimension bounds = %dx%d..%dx%d", cfg.MinWidth, cfg.MinHeight, cfg.MaxWidth, cfg.MaxHeight)
	}
	if cfg.MaxQueueDepth != 50 {
		t.Errorf("queue depth = %d", cfg.MaxQueueDepth)
	}
	if cfg.JobTimeout != time.Hour || cfg.FailureRetention != 24*time.Hour {
		t.Errorf("job timeout = %s retention = %s", cfg.JobTimeout, cfg.FailureRetention)
	}
	if cfg.ThumbnailRetries != 3 || cfg.ThumbnailBackoff != 2*time.Second {
		t.Errorf("thumbnail retry policy = %d/%s", cfg.ThumbnailRetries, cfg.ThumbnailBackoff)
	}
	if len(cfg.Profiles) != 0 {
		t.Errorf("profiles = %v, want full ladder default", cfg.Profiles)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STREAMVAULT_ADDRESS", ":9999")
	t.Setenv("STREAMVAULT_MAX_FILE_BYTES", "1024")
	t.Setenv("STREAMVAULT_ALLOWED_EXTENSIONS", "mp4, webm")
	t.Setenv("STREAMVAULT_MAX_QUEUE_DEPTH", "5")
	t.Setenv("STREAMVAULT_PROFILES", "480p,720p")
	t.Setenv("STREAMVAULT_TRANSCODE_TIMEOUT", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address != ":9999" {
		t.Errorf("address = %q", cfg.Address)
	}
	if cfg.MaxFileSize != 1024 {
		t.Errorf("max file size = %d", cfg.MaxFileSize)
	}
	if len(cfg.AllowedExtensions) != 2 || cfg.AllowedExtensions[1] != "webm" {
		t.Errorf("extensions = %v", cfg.AllowedExtensions)
	}
	if cfg.MaxQueueDepth != 5 {
		t.Errorf("queue depth = %d", cfg.MaxQueueDepth)
	}
	if len(cfg.Profiles) != 2 {
		t.Errorf("profiles = %v", cfg.Profiles)
	}
	if cfg.TranscodeTimeout != 30*time.Minute {
		t.Errorf("transcode timeout = %s", cfg.TranscodeTimeout)
	}
}

func TestLoadIgnoresGarbage(t *testing.T) {
	t.Setenv("STREAMVAULT_MAX_FILE_BYTES", "lots")
	t.Setenv("STREAMVAULT_WORKERS", "-3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxFileSize != int64(100.5*1024*1024) {
		t.Errorf("max file size = %d, want default", cfg.MaxFileSize)
	}
	if cfg.Concurrency != 2 {
		t.Errorf("concurrency = %d, want default", cfg.Concurrency)
	}
}
