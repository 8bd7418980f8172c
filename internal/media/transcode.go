package media

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/dharsanguruparan/StreamVault/internal/config"
	"github.com/dharsanguruparan/StreamVault/internal/metrics"
)

// ManifestName is the per-rendition HLS playlist filename. Clients depend on
// this exact layout: <hlsRoot>/<id>/<profile>/index.m3u8 with 000.ts, 001.ts
// segments alongside.
const ManifestName = "index.m3u8"

// Transcoder produces one HLS rendition per resolution profile by invoking
// ffmpeg. Renditions are converted sequentially within a job to bound
// resource usage; concurrency across assets comes from running multiple
// worker processes.
type Transcoder struct {
	cfg      *config.Config
	profiles []Profile
	run      commandRunner
}

// NewTranscoder constructs a Transcoder using the configured profile set.
func NewTranscoder(cfg *config.Config) *Transcoder {
	return &Transcoder{
		cfg:      cfg,
		profiles: SelectProfiles(cfg.Profiles),
		run:      runCommand,
	}
}

// Profiles returns the active rendition ladder.
func (t *Transcoder) Profiles() []Profile {
	return t.profiles
}

// Convert produces a single rendition under outputRoot/<profile>/. It
// succeeds only when ffmpeg exits zero and the manifest exists afterwards.
func (t *Transcoder) Convert(ctx context.Context, sourcePath string, profile Profile, outputRoot string) error {
	resDir := filepath.Join(outputRoot, profile.Name)
	if err := os.MkdirAll(resDir, 0o755); err != nil {
		return fmt.Errorf("create rendition dir: %w", err)
	}
	manifest := filepath.Join(resDir, ManifestName)

	started := time.Now()
	_, err := t.run(ctx, t.cfg.TranscodeTimeout, "ffmpeg", buildTranscodeArgs(sourcePath, profile, resDir, manifest)...)
	if err != nil {
		return fmt.Errorf("convert %s: %w", profile.Name, err)
	}
	if fi, statErr := os.Stat(manifest); statErr != nil || fi.Size() == 0 {
		return fmt.Errorf("convert %s: encoder exited cleanly but produced no manifest", profile.Name)
	}
	log.Printf("converted %s in %s (%s)", profile.Name, time.Since(started).Round(time.Second), manifest)
	return nil
}

// ConvertAll iterates the ladder and returns the number of renditions that
// succeeded. A failed profile never aborts its siblings; the asset is usable
// as long as at least one rendition exists.
func (t *Transcoder) ConvertAll(ctx context.Context, sourcePath, outputRoot string) int {
	successes := 0
	for _, profile := range t.profiles {
		started := time.Now()
		if err := t.Convert(ctx, sourcePath, profile, outputRoot); err != nil {
			log.Printf("rendition %s failed for %s: %v", profile.Name, sourcePath, err)
			metrics.TranscodeTotal.WithLabelValues(profile.Name, "failed").Inc()
			continue
		}
		metrics.TranscodeTotal.WithLabelValues(profile.Name, "ok").Inc()
		metrics.TranscodeDuration.WithLabelValues(profile.Name).Observe(time.Since(started).Seconds())
		successes++
	}
	return successes
}

// buildTranscodeArgs assembles the full ffmpeg invocation: H.264 video and
// AAC stereo audio, rate-capped to the profile with a 2x buffer, segmented
// into 10 second MPEG-TS chunks with an unbounded playlist.
func buildTranscodeArgs(sourcePath string, profile Profile, resDir, manifest string) []string {
	return []string{
		"-i", sourcePath,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-strict", "experimental",
		"-ac", "2",
		"-b:a", "128k",
		"-ar", "44100",
		"-vf", fmt.Sprintf("scale=%d:%d", profile.Width, profile.Height),
		"-b:v", fmt.Sprintf("%dk", profile.Bitrate),
		"-maxrate", fmt.Sprintf("%dk", profile.Bitrate),
		"-bufsize", fmt.Sprintf("%dk", profile.Bitrate*2),
		"-hls_time", "10",
		"-hls_list_size", "0",
		"-hls_segment_filename", filepath.Join(resDir, "%03d.ts"),
		"-f", "hls",
		manifest,
		"-y",
	}
}
