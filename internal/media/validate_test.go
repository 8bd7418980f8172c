package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dharsanguruparan/StreamVault/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		ScratchDir:        t.TempDir(),
		MediaRoot:         t.TempDir(),
		MaxFileSize:       1 << 20,
		AllowedExtensions: []string{"mp4", "avi", "mov", "mkv"},
		MinDuration:       time.Second,
		MaxDuration:       2 * time.Hour,
		MinWidth:          320,
		MinHeight:         240,
		MaxWidth:          3840,
		MaxHeight:         2160,
		VersionTimeout:    time.Second,
		ProbeTimeout:      time.Second,
		TranscodeTimeout:  time.Second,
		ThumbnailTimeout:  time.Second,
		ThumbnailRetries:  1,
		ThumbnailBackoff:  time.Millisecond,
	}
}

// probeJSON renders a minimal ffprobe response for the given media shape.
func probeJSON(duration float64, width, height int) []byte {
	return []byte(fmt.Sprintf(`{
		"format": {"duration": "%f", "size": "1000", "format_name": "mp4"},
		"streams": [{"codec_type": "video", "codec_name": "h264", "width": %d, "height": %d}]
	}`, duration, width, height))
}

// stubValidator wires a Validator whose ffmpeg check succeeds and whose probe
// returns the canned response.
func stubValidator(cfg *config.Config, probe []byte) *Validator {
	prober := NewProber(cfg.ProbeTimeout)
	prober.run = func(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
		return probe, nil
	}
	v := NewValidator(cfg, prober)
	v.run = func(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
		return []byte("ffmpeg version 6.0"), nil
	}
	return v
}

func TestValidateMetadata(t *testing.T) {
	if err := ValidateMetadata("Title", "Desc", "education"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, tc := range []struct{ title, description, category string }{
		{"", "d", "c"},
		{"  ", "d", "c"},
		{"t", "", "c"},
		{"t", "d", ""},
	} {
		err := ValidateMetadata(tc.title, tc.description, tc.category)
		var valErr *ValidationError
		if !errors.As(err, &valErr) {
			t.Errorf("ValidateMetadata(%q,%q,%q) = %v, want ValidationError", tc.title, tc.description, tc.category, err)
		}
	}
}

func TestValidateUploadExtension(t *testing.T) {
	v := stubValidator(testConfig(t), probeJSON(10, 1280, 720))
	err := v.ValidateUpload(context.Background(), strings.NewReader("data"), "notes.txt")
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(valErr.Message, "Unsupported file format") {
		t.Errorf("message = %q", valErr.Message)
	}
}

func TestValidateUploadEmpty(t *testing.T) {
	v := stubValidator(testConfig(t), probeJSON(10, 1280, 720))
	err := v.ValidateUpload(context.Background(), strings.NewReader(""), "clip.mp4")
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestValidateUploadChecksContentBeforeFormat(t *testing.T) {
	// An empty file with a bad extension reports emptiness, not the format.
	v := stubValidator(testConfig(t), probeJSON(10, 1280, 720))
	err := v.ValidateUpload(context.Background(), strings.NewReader(""), "notes.txt")
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(valErr.Message, "empty") {
		t.Errorf("message = %q, want the empty-file reason", valErr.Message)
	}
}

func TestValidateUploadTooLarge(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxFileSize = 16
	v := stubValidator(cfg, probeJSON(10, 1280, 720))
	err := v.ValidateUpload(context.Background(), bytes.NewReader(make([]byte, 64)), "clip.mp4")
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(valErr.Message, "too large") {
		t.Errorf("message = %q", valErr.Message)
	}
}

func TestValidateUploadAccepted(t *testing.T) {
	v := stubValidator(testConfig(t), probeJSON(10, 1280, 720))
	if err := v.ValidateUpload(context.Background(), strings.NewReader("fake video bytes"), "clip.mp4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateUploadBounds(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		width    int
		height   int
		want     string
	}{
		{"too short", 0.5, 1280, 720, "too short"},
		{"too long", 7201, 1280, 720, "too long"},
		{"too narrow", 10, 300, 240, "too low"},
		{"too flat", 10, 320, 200, "too low"},
		{"too wide", 10, 3841, 2160, "too high"},
		{"too tall", 10, 3840, 2161, "too high"},
		{"zero dims", 10, 0, 0, "invalid dimensions"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := stubValidator(testConfig(t), probeJSON(tc.duration, tc.width, tc.height))
			err := v.ValidateUpload(context.Background(), strings.NewReader("fake video"), "clip.mp4")
			var valErr *ValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !strings.Contains(valErr.Message, tc.want) {
				t.Errorf("message = %q, want substring %q", valErr.Message, tc.want)
			}
		})
	}
}

func TestValidateUploadBoundaryAccepted(t *testing.T) {
	// Exactly at the limits is valid.
	for _, probe := range [][]byte{
		probeJSON(1, 320, 240),
		probeJSON(7200, 3840, 2160),
	} {
		v := stubValidator(testConfig(t), probe)
		if err := v.ValidateUpload(context.Background(), strings.NewReader("fake video"), "clip.mp4"); err != nil {
			t.Errorf("boundary upload rejected: %v", err)
		}
	}
}

func TestValidateUploadCorrupted(t *testing.T) {
	cfg := testConfig(t)
	prober := NewProber(cfg.ProbeTimeout)
	prober.run = func(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
		return nil, errors.New("moov atom not found")
	}
	v := NewValidator(cfg, prober)
	v.run = func(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
		return []byte("ffmpeg version 6.0"), nil
	}
	err := v.ValidateUpload(context.Background(), strings.NewReader("garbage"), "clip.mp4")
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(valErr.Message, "corrupted") {
		t.Errorf("message = %q", valErr.Message)
	}
}

func TestValidateUploadToolUnavailable(t *testing.T) {
	cfg := testConfig(t)
	v := stubValidator(cfg, probeJSON(10, 1280, 720))
	v.run = func(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
		return nil, errors.New("exec: ffmpeg: not found")
	}
	err := v.ValidateUpload(context.Background(), strings.NewReader("fake video"), "clip.mp4")
	var toolErr *ToolUnavailableError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolUnavailableError, got %v", err)
	}
	if toolErr.Tool != "ffmpeg" {
		t.Errorf("tool = %q, want ffmpeg", toolErr.Tool)
	}
}

func TestValidateUploadRemovesTempCopy(t *testing.T) {
	cfg := testConfig(t)
	v := stubValidator(cfg, probeJSON(10, 1280, 720))
	if err := v.ValidateUpload(context.Background(), strings.NewReader("fake video"), "clip.mp4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries, err := os.ReadDir(cfg.ScratchDir)
	if err != nil {
		t.Fatalf("read scratch dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch dir not empty after validation: %v", entries)
	}
}

func TestValidateFile(t *testing.T) {
	cfg := testConfig(t)
	v := stubValidator(cfg, probeJSON(10, 1280, 720))

	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("fake video bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := v.ValidateFile(context.Background(), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := v.ValidateFile(context.Background(), filepath.Join(t.TempDir(), "gone.mp4")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
