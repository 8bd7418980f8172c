package media

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/dharsanguruparan/StreamVault/internal/config"
	"github.com/dharsanguruparan/StreamVault/internal/metrics"
	"github.com/dharsanguruparan/StreamVault/internal/model"
)

const (
	thumbWidth  = 320
	thumbHeight = 180

	maxTitleChars = 30
)

// Frame extraction falls back to earlier timestamps so short clips still get
// a real frame before the synthetic placeholder kicks in.
var thumbnailTimestamps = []string{"00:00:10", "00:00:05", "00:00:02", "00:00:01"}

// ThumbnailGenerator produces the representative image for an asset. Every
// processed asset ends up with some thumbnail: a real frame when extraction
// works, a synthesized placeholder when it does not.
type ThumbnailGenerator struct {
	cfg *config.Config
	run commandRunner
}

// NewThumbnailGenerator constructs a generator.
func NewThumbnailGenerator(cfg *config.Config) *ThumbnailGenerator {
	return &ThumbnailGenerator{cfg: cfg, run: runCommand}
}

// Generate returns the media-root-relative path of the asset's thumbnail,
// creating it if needed. A valid thumbnail already on disk short-circuits:
// the call is a no-op and succeeds immediately.
func (g *ThumbnailGenerator) Generate(ctx context.Context, video *model.Video, sourcePath string) (string, error) {
	if video.HasThumbnail() {
		existing := filepath.Join(g.cfg.MediaRoot, video.ThumbnailPath)
		if fi, err := os.Stat(existing); err == nil && fi.Size() > 0 {
			log.Printf("valid thumbnail already exists for video %s", video.ID)
			return video.ThumbnailPath, nil
		}
	}

	rel := filepath.Join("thumbnails", video.ID+".jpg")
	dest := filepath.Join(g.cfg.MediaRoot, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create thumbnail dir: %w", err)
	}

	tmp, err := os.CreateTemp(g.cfg.ScratchDir, "thumb-*.jpg")
	if err != nil {
		return "", fmt.Errorf("create temp thumbnail: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	for attempt := 1; attempt <= g.cfg.ThumbnailRetries; attempt++ {
		for _, ts := range thumbnailTimestamps {
			if err := g.extractFrame(ctx, sourcePath, tmpPath, ts); err != nil {
				log.Printf("thumbnail extraction at %s failed for video %s: %v", ts, video.ID, err)
				continue
			}
			fi, statErr := os.Stat(tmpPath)
			if statErr != nil || fi.Size() == 0 {
				log.Printf("empty thumbnail at %s for video %s", ts, video.ID)
				continue
			}
			if err := copyFile(tmpPath, dest); err != nil {
				return "", fmt.Errorf("store thumbnail: %w", err)
			}
			log.Printf("generated thumbnail at %s for video %s (attempt %d)", ts, video.ID, attempt)
			return rel, nil
		}
		if attempt < g.cfg.ThumbnailRetries {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(g.cfg.ThumbnailBackoff):
			}
		}
	}

	log.Printf("frame extraction exhausted for video %s, creating default thumbnail", video.ID)
	metrics.ThumbnailFallbacksTotal.Inc()
	if err := imaging.Save(placeholderImage(video.Title), dest, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("write default thumbnail: %w", err)
	}
	return rel, nil
}

// extractFrame grabs one frame at the given timestamp, letterboxed to the
// thumbnail size with the source aspect ratio preserved.
func (g *ThumbnailGenerator) extractFrame(ctx context.Context, sourcePath, outputPath, timestamp string) error {
	scale := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		thumbWidth, thumbHeight, thumbWidth, thumbHeight)
	_, err := g.run(ctx, g.cfg.ThumbnailTimeout, "ffmpeg",
		"-i", sourcePath,
		"-ss", timestamp,
		"-vframes", "1",
		"-vf", scale,
		"-q:v", "2",
		"-f", "image2",
		outputPath,
		"-y")
	return err
}

// SaveCustomThumbnail stores an operator-provided image as the asset's
// thumbnail, re-encoded as JPEG so delivery stays uniform with generated
// thumbnails. Returns the media-root-relative path.
func SaveCustomThumbnail(mediaRoot, videoID string, src io.Reader) (string, error) {
	img, err := imaging.Decode(src)
	if err != nil {
		return "", &ValidationError{Message: "The uploaded thumbnail is not a valid image."}
	}
	rel := filepath.Join("thumbnails", videoID+".jpg")
	dest := filepath.Join(mediaRoot, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create thumbnail dir: %w", err)
	}
	if err := imaging.Save(img, dest, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("write thumbnail: %w", err)
	}
	return rel, nil
}

// placeholderImage synthesizes the fallback thumbnail: a dark canvas with
// the truncated title and a generic VIDEO label.
func placeholderImage(title string) *image.NRGBA {
	img := imaging.New(thumbWidth, thumbHeight, color.NRGBA{R: 45, G: 45, B: 45, A: 255})

	text := truncateTitle(title)
	face := basicfont.Face7x13
	titleY := thumbHeight/2 - 10

	drawText(img, face, text, titleY+1, 1, color.NRGBA{A: 255})
	drawText(img, face, text, titleY, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	drawText(img, face, "VIDEO", titleY+20, 0, color.NRGBA{R: 150, G: 150, B: 150, A: 255})
	return img
}

// truncateTitle caps the title at maxTitleChars characters. Slicing runes,
// not bytes, keeps multi-byte titles intact.
func truncateTitle(text string) string {
	if runes := []rune(text); len(runes) > maxTitleChars {
		return string(runes[:maxTitleChars]) + "..."
	}
	return text
}

func drawText(img *image.NRGBA, face font.Face, text string, y, xOffset int, col color.Color) {
	width := font.MeasureString(face, text).Ceil()
	x := (thumbWidth-width)/2 + xOffset
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(text)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
