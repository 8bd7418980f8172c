package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestBuildTranscodeArgs(t *testing.T) {
	profile := Profile{Name: "720p", Width: 1280, Height: 720, Bitrate: 2500}
	args := buildTranscodeArgs("/src/in.mp4", profile, "/out/720p", "/out/720p/index.m3u8")

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-i /src/in.mp4",
		"-c:v libx264",
		"-c:a aac",
		"-ac 2 -b:a 128k -ar 44100",
		"-vf scale=1280:720",
		"-b:v 2500k",
		"-maxrate 2500k",
		"-bufsize 5000k",
		"-hls_time 10",
		"-hls_list_size 0",
		"-hls_segment_filename " + filepath.Join("/out/720p", "%03d.ts"),
		"-f hls /out/720p/index.m3u8 -y",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q in %q", want, joined)
		}
	}
}

// manifestWritingRunner simulates ffmpeg by writing a playlist into the
// rendition directory named in the arguments, failing the listed profiles.
func manifestWritingRunner(t *testing.T, failing map[string]bool) commandRunner {
	t.Helper()
	return func(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
		if name != "ffmpeg" {
			t.Errorf("command = %q, want ffmpeg", name)
		}
		manifest := args[len(args)-2]
		profile := filepath.Base(filepath.Dir(manifest))
		if failing[profile] {
			return nil, errors.New("exit status 1")
		}
		if err := os.WriteFile(manifest, []byte("#EXTM3U\n"), 0o644); err != nil {
			return nil, err
		}
		return nil, nil
	}
}

func TestConvertAll(t *testing.T) {
	cfg := testConfig(t)
	tr := NewTranscoder(cfg)
	tr.run = manifestWritingRunner(t, nil)

	outputRoot := t.TempDir()
	if got := tr.ConvertAll(context.Background(), "/src/in.mp4", outputRoot); got != len(DefaultProfiles()) {
		t.Fatalf("successes = %d, want %d", got, len(DefaultProfiles()))
	}
	for _, p := range DefaultProfiles() {
		manifest := filepath.Join(outputRoot, p.Name, ManifestName)
		if _, err := os.Stat(manifest); err != nil {
			t.Errorf("missing manifest for %s: %v", p.Name, err)
		}
	}
}

func TestConvertAllPartialFailure(t *testing.T) {
	cfg := testConfig(t)
	tr := NewTranscoder(cfg)
	tr.run = manifestWritingRunner(t, map[string]bool{"720p": true, "1080p": true})

	outputRoot := t.TempDir()
	if got := tr.ConvertAll(context.Background(), "/src/in.mp4", outputRoot); got != 3 {
		t.Fatalf("successes = %d, want 3", got)
	}
	if _, err := os.Stat(filepath.Join(outputRoot, "720p", ManifestName)); !os.IsNotExist(err) {
		t.Errorf("unexpected manifest for failed rendition")
	}
}

func TestConvertAllTotalFailure(t *testing.T) {
	cfg := testConfig(t)
	tr := NewTranscoder(cfg)
	tr.run = func(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}
	if got := tr.ConvertAll(context.Background(), "/src/in.mp4", t.TempDir()); got != 0 {
		t.Fatalf("successes = %d, want 0", got)
	}
}

func TestConvertRejectsMissingManifest(t *testing.T) {
	cfg := testConfig(t)
	tr := NewTranscoder(cfg)
	// Encoder exits cleanly but writes nothing.
	tr.run = func(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
		return nil, nil
	}
	err := tr.Convert(context.Background(), "/src/in.mp4", DefaultProfiles()[0], t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "no manifest") {
		t.Fatalf("err = %v, want missing-manifest error", err)
	}
}

func TestSelectProfiles(t *testing.T) {
	if got := SelectProfiles(nil); len(got) != 5 {
		t.Errorf("empty selection = %d profiles, want full ladder", len(got))
	}
	got := SelectProfiles([]string{"720p", "480p"})
	if len(got) != 2 || got[0].Name != "480p" || got[1].Name != "720p" {
		t.Errorf("selection = %v, want ladder order 480p,720p", got)
	}
	// Unknown names fall back to the full ladder rather than an empty one.
	if got := SelectProfiles([]string{"999p"}); len(got) != 5 {
		t.Errorf("unknown selection = %d profiles, want full ladder", len(got))
	}
}
