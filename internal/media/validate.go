package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dharsanguruparan/StreamVault/internal/config"
)

// Validator is the synchronous gate in front of the pipeline. It checks the
// cheap constraints first (size, extension), confirms the encoder is
// installed, then deep-probes a temporary copy of the file. It never touches
// the persisted record.
type Validator struct {
	cfg    *config.Config
	prober *Prober
	run    commandRunner
}

// NewValidator constructs a Validator sharing the given prober.
func NewValidator(cfg *config.Config, prober *Prober) *Validator {
	return &Validator{cfg: cfg, prober: prober, run: runCommand}
}

// ValidateMetadata checks the required descriptive fields of an upload.
func ValidateMetadata(title, description, category string) error {
	if strings.TrimSpace(title) == "" {
		return &ValidationError{Message: "Video title is required"}
	}
	if strings.TrimSpace(description) == "" {
		return &ValidationError{Message: "Video description is required"}
	}
	if strings.TrimSpace(category) == "" {
		return &ValidationError{Message: "Video category is required"}
	}
	return nil
}

// ValidateUpload copies the upload into a temporary file (always removed, in
// success and failure) and runs the full check sequence against it. filename
// is the client-provided name used for the extension check.
func (v *Validator) ValidateUpload(ctx context.Context, source io.Reader, filename string) error {
	tmp, err := os.CreateTemp(v.cfg.ScratchDir, "validate-*"+filepath.Ext(filename))
	if err != nil {
		return fmt.Errorf("create temp copy: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	written, err := io.Copy(tmp, io.LimitReader(source, v.cfg.MaxFileSize+1))
	if err != nil {
		return fmt.Errorf("write temp copy: %w", err)
	}
	if written == 0 {
		return &ValidationError{Message: "The uploaded file is empty."}
	}
	if written > v.cfg.MaxFileSize {
		return validationErrorf("File is too large. Maximum: %.0fMB.",
			float64(v.cfg.MaxFileSize)/1024/1024)
	}
	if err := v.checkExtension(filename); err != nil {
		return err
	}
	return v.deepValidate(ctx, tmp.Name())
}

// ValidateFile runs the full check sequence against a file already on disk.
// The worker uses it as the defensive re-check between enqueue and execution.
func (v *Validator) ValidateFile(ctx context.Context, path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return validationErrorf("Video file is not accessible: %s", filepath.Base(path))
	}
	if fi.Size() == 0 {
		return &ValidationError{Message: "The uploaded file is empty."}
	}
	if fi.Size() > v.cfg.MaxFileSize {
		return validationErrorf("File is too large. Maximum: %.0fMB, Current: %.2fMB",
			float64(v.cfg.MaxFileSize)/1024/1024, float64(fi.Size())/1024/1024)
	}
	if err := v.checkExtension(path); err != nil {
		return err
	}
	return v.deepValidate(ctx, path)
}

func (v *Validator) checkExtension(name string) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	for _, allowed := range v.cfg.AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return validationErrorf("Unsupported file format: .%s. Allowed formats: %s",
		ext, strings.Join(v.cfg.AllowedExtensions, ", "))
}

// CheckToolAvailable confirms ffmpeg is installed and answers a version query
// within the configured timeout.
func (v *Validator) CheckToolAvailable(ctx context.Context) error {
	if _, err := v.run(ctx, v.cfg.VersionTimeout, "ffmpeg", "-version"); err != nil {
		return &ToolUnavailableError{Tool: "ffmpeg", Err: err}
	}
	return nil
}

func (v *Validator) deepValidate(ctx context.Context, path string) error {
	if err := v.CheckToolAvailable(ctx); err != nil {
		return err
	}
	info, err := v.prober.Probe(ctx, path)
	if err != nil {
		return &ValidationError{Message: "The file is corrupted or has an unsupported video format."}
	}
	if !info.HasVideoStream() {
		return &ValidationError{Message: "No video streams found in file."}
	}
	if info.Duration <= 0 {
		return &ValidationError{Message: "Video has no valid duration."}
	}
	if info.Duration < v.cfg.MinDuration {
		return validationErrorf("Video is too short (Minimum: %s).", v.cfg.MinDuration)
	}
	if info.Duration > v.cfg.MaxDuration {
		return validationErrorf("Video is too long. Maximum: %s, Current: %.1f hours",
			v.cfg.MaxDuration, info.Duration.Hours())
	}
	if info.Width <= 0 || info.Height <= 0 {
		return &ValidationError{Message: "Video has invalid dimensions."}
	}
	if info.Width > v.cfg.MaxWidth || info.Height > v.cfg.MaxHeight {
		return validationErrorf("Video resolution is too high. Maximum: %dx%d, Current: %dx%d",
			v.cfg.MaxWidth, v.cfg.MaxHeight, info.Width, info.Height)
	}
	if info.Width < v.cfg.MinWidth || info.Height < v.cfg.MinHeight {
		return validationErrorf("Video resolution is too low. Minimum: %dx%d, Current: %dx%d",
			v.cfg.MinWidth, v.cfg.MinHeight, info.Width, info.Height)
	}
	return nil
}
