// Package pipeline is the processing orchestrator: the state machine that
// moves a video through pending → processing → {completed, failed}. The
// synchronous phase (Intake) validates and enqueues; the asynchronous phase
// (Process) runs on a worker and sequences thumbnail generation and HLS
// conversion. Every transition is persisted individually so a crash
// mid-pipeline leaves the latest real status visible.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/dharsanguruparan/StreamVault/internal/media"
	"github.com/dharsanguruparan/StreamVault/internal/metrics"
	"github.com/dharsanguruparan/StreamVault/internal/model"
	"github.com/dharsanguruparan/StreamVault/internal/queue"
	"github.com/dharsanguruparan/StreamVault/internal/repository"
)

// VideoStore is the narrow persistence surface the orchestrator needs. Both
// repository.VideoRepository and repository.MemoryStore satisfy it.
type VideoStore interface {
	Create(ctx context.Context, v *model.Video) error
	Get(ctx context.Context, id string) (*model.Video, error)
	Delete(ctx context.Context, id string) error
	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, msg string) error
	MarkPending(ctx context.Context, id string) error
	SetThumbnail(ctx context.Context, id, path string) error
	SetHLS(ctx context.Context, id, hlsPath string, processed bool) error
}

// JobEnqueuer submits the async phase onto the work queue.
type JobEnqueuer interface {
	EnqueueProcess(ctx context.Context, videoID string) (string, error)
}

// FileValidator re-checks a staged file before heavy processing.
type FileValidator interface {
	ValidateFile(ctx context.Context, path string) error
}

// Thumbnailer produces the asset's thumbnail and returns its relative path.
type Thumbnailer interface {
	Generate(ctx context.Context, video *model.Video, sourcePath string) (string, error)
}

// Converter renders the HLS ladder and reports how many renditions
// succeeded.
type Converter interface {
	ConvertAll(ctx context.Context, sourcePath, outputRoot string) int
}

// ObjectStore accesses the original uploaded media.
type ObjectStore interface {
	Download(ctx context.Context, objectKey, destPath string) error
	Remove(ctx context.Context, objectKey string) error
}

// HLSLayout is the filesystem lifecycle surface for HLS output trees.
type HLSLayout interface {
	EnsureOutputDir(videoID string) (string, error)
	RelPath(videoID string) string
	RemoveTree(videoID string) error
}

// StatusPublisher mirrors status transitions into the read cache.
// Publishing is best effort; cache errors never fail the pipeline.
type StatusPublisher interface {
	Set(ctx context.Context, videoID string, status model.ProcessingStatus, hlsProcessed bool) error
	Delete(ctx context.Context, videoID string) error
}

// Deps collects the orchestrator's collaborators.
type Deps struct {
	Store     VideoStore
	Queue     JobEnqueuer
	Validator FileValidator
	Thumbs    Thumbnailer
	Converter Converter
	Originals ObjectStore
	HLS       HLSLayout
	Status    StatusPublisher

	MediaRoot  string
	ScratchDir string
}

// Orchestrator sequences the ingestion pipeline for one asset at a time.
type Orchestrator struct {
	deps Deps
}

// New constructs an Orchestrator.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{deps: deps}
}

// Intake is the synchronous phase: the caller has already validated the
// upload and stored the original; Intake persists the pending record and
// enqueues the async phase. A full queue leaves the asset pending for a
// later retry and is not an error; an unreachable queue marks the asset
// failed.
func (o *Orchestrator) Intake(ctx context.Context, v *model.Video) (queued bool, err error) {
	v.Status = model.StatusPending
	if err := o.deps.Store.Create(ctx, v); err != nil {
		return false, fmt.Errorf("persist video: %w", err)
	}
	o.publish(ctx, v.ID, model.StatusPending, v.HLSProcessed)

	jobID, err := o.deps.Queue.EnqueueProcess(ctx, v.ID)
	if err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			log.Printf("queue overloaded, deferring video %s: %v", v.ID, err)
			return false, nil
		}
		msg := "Processing could not be scheduled. Please try again later."
		if markErr := o.deps.Store.MarkFailed(ctx, v.ID, msg); markErr != nil {
			log.Printf("mark failed after enqueue error for %s: %v", v.ID, markErr)
		}
		o.publish(ctx, v.ID, model.StatusFailed, v.HLSProcessed)
		return false, fmt.Errorf("enqueue video %s: %w", v.ID, err)
	}
	log.Printf("video %s queued for processing (job %s)", v.ID, jobID)
	return true, nil
}

// Reject persists the asset directly in the failed state with the validation
// reason. Used when synchronous validation fails after the asset already has
// an identity: the rejection stays visible instead of vanishing.
func (o *Orchestrator) Reject(ctx context.Context, v *model.Video, reason string) error {
	v.Status = model.StatusFailed
	v.ErrorMessage = reason
	if err := o.deps.Store.Create(ctx, v); err != nil {
		return fmt.Errorf("persist rejected video: %w", err)
	}
	o.publish(ctx, v.ID, model.StatusFailed, v.HLSProcessed)
	return nil
}

// SetCustomThumbnail replaces the asset's thumbnail with an operator-provided
// image and persists the new path.
func (o *Orchestrator) SetCustomThumbnail(ctx context.Context, id string, img io.Reader) error {
	v, err := o.deps.Store.Get(ctx, id)
	if err != nil {
		return err
	}
	rel, err := media.SaveCustomThumbnail(o.deps.MediaRoot, id, img)
	if err != nil {
		return err
	}
	// Generated and custom thumbnails share a path, so stale files only
	// exist when the persisted path diverges.
	if v.HasThumbnail() && v.ThumbnailPath != rel {
		old := filepath.Join(o.deps.MediaRoot, v.ThumbnailPath)
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			log.Printf("remove replaced thumbnail for %s: %v", id, err)
		}
	}
	return o.deps.Store.SetThumbnail(ctx, id, rel)
}

// Requeue resets an asset for manual reprocessing: the regenerate action and
// the operator CLI both enter here. The thumbnail is cleared so the next run
// regenerates it.
func (o *Orchestrator) Requeue(ctx context.Context, id string) error {
	v, err := o.deps.Store.Get(ctx, id)
	if err != nil {
		return err
	}
	if v.HasThumbnail() {
		thumb := filepath.Join(o.deps.MediaRoot, v.ThumbnailPath)
		if err := os.Remove(thumb); err != nil && !os.IsNotExist(err) {
			log.Printf("remove thumbnail for requeue of %s: %v", id, err)
		}
		if err := o.deps.Store.SetThumbnail(ctx, id, ""); err != nil {
			return err
		}
	}
	if err := o.deps.Store.MarkPending(ctx, id); err != nil {
		return err
	}
	o.publish(ctx, id, model.StatusPending, v.HLSProcessed)
	if _, err := o.deps.Queue.EnqueueProcess(ctx, id); err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			log.Printf("queue overloaded, requeue of %s deferred", id)
			return nil
		}
		return err
	}
	return nil
}

// Process is the asynchronous phase executed by a worker. It reloads the
// asset by id, defends against state that changed since enqueue, and runs
// thumbnail then transcode. Thumbnail success gates transcoding: no HLS
// conversion is attempted without at least a placeholder thumbnail. All
// failures terminate in a persisted failed status; nothing propagates to the
// queue.
func (o *Orchestrator) Process(ctx context.Context, id string) error {
	started := time.Now()
	v, err := o.deps.Store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Printf("video %s no longer exists, dropping job", id)
			return nil
		}
		return fmt.Errorf("load video %s: %w", id, err)
	}

	if err := o.deps.Store.MarkProcessing(ctx, id); err != nil {
		return fmt.Errorf("mark processing %s: %w", id, err)
	}
	o.publish(ctx, id, model.StatusProcessing, v.HLSProcessed)

	local, cleanup, err := o.stageOriginal(ctx, v)
	if err != nil {
		o.fail(ctx, v, started, fmt.Sprintf("stage original: %v", err))
		return nil
	}
	defer cleanup()

	// File could have been replaced or corrupted between enqueue and now.
	if err := o.deps.Validator.ValidateFile(ctx, local); err != nil {
		o.fail(ctx, v, started, fmt.Sprintf("re-validation: %v", err))
		return nil
	}

	thumbPath, err := o.deps.Thumbs.Generate(ctx, v, local)
	if err != nil {
		o.fail(ctx, v, started, fmt.Sprintf("thumbnail: %v", err))
		return nil
	}
	if err := o.deps.Store.SetThumbnail(ctx, id, thumbPath); err != nil {
		o.fail(ctx, v, started, fmt.Sprintf("persist thumbnail: %v", err))
		return nil
	}

	outputRoot, err := o.deps.HLS.EnsureOutputDir(id)
	if err != nil {
		o.fail(ctx, v, started, fmt.Sprintf("create output dir: %v", err))
		return nil
	}
	successes := o.deps.Converter.ConvertAll(ctx, local, outputRoot)
	if successes == 0 {
		o.fail(ctx, v, started, "all resolution conversions failed")
		return nil
	}
	// Partial coverage is accepted: one good rendition makes the asset
	// streamable.
	if err := o.deps.Store.SetHLS(ctx, id, o.deps.HLS.RelPath(id), true); err != nil {
		o.fail(ctx, v, started, fmt.Sprintf("persist hls state: %v", err))
		return nil
	}

	if err := o.deps.Store.MarkCompleted(ctx, id); err != nil {
		return fmt.Errorf("mark completed %s: %w", id, err)
	}
	o.publish(ctx, id, model.StatusCompleted, true)
	metrics.ProcessingTotal.WithLabelValues(string(model.StatusCompleted)).Inc()
	metrics.ProcessingDuration.Observe(time.Since(started).Seconds())
	log.Printf("video %s processed in %s (%d renditions)", id, time.Since(started).Round(time.Second), successes)
	return nil
}

// Delete tears down the asset: original media, thumbnail, and the whole HLS
// tree are removed independently, each with its own error containment, then
// the record is deleted. One failed deletion never prevents the others.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	v, err := o.deps.Store.Get(ctx, id)
	if err != nil {
		return err
	}

	originalOK := true
	if v.ObjectKey != "" {
		if err := o.deps.Originals.Remove(ctx, v.ObjectKey); err != nil {
			originalOK = false
			metrics.CleanupFailuresTotal.WithLabelValues("original").Inc()
			log.Printf("delete original for %s: %v", id, err)
		}
	}

	thumbOK := true
	if v.HasThumbnail() {
		thumb := filepath.Join(o.deps.MediaRoot, v.ThumbnailPath)
		if err := os.Remove(thumb); err != nil && !os.IsNotExist(err) {
			thumbOK = false
			metrics.CleanupFailuresTotal.WithLabelValues("thumbnail").Inc()
			log.Printf("delete thumbnail for %s: %v", id, err)
		}
	}

	hlsOK := true
	if err := o.deps.HLS.RemoveTree(id); err != nil {
		hlsOK = false
		metrics.CleanupFailuresTotal.WithLabelValues("hls").Inc()
		log.Printf("delete hls tree for %s: %v", id, err)
	}

	log.Printf("cleanup summary for %s: original=%t thumbnail=%t hls=%t", id, originalOK, thumbOK, hlsOK)

	if o.deps.Status != nil {
		if err := o.deps.Status.Delete(ctx, id); err != nil {
			log.Printf("drop cached status for %s: %v", id, err)
		}
	}
	return o.deps.Store.Delete(ctx, id)
}

// stageOriginal downloads the original media into the scratch directory and
// returns the local path plus a cleanup func that always removes it.
func (o *Orchestrator) stageOriginal(ctx context.Context, v *model.Video) (string, func(), error) {
	local := filepath.Join(o.deps.ScratchDir, "source-"+v.ID+filepath.Ext(v.ObjectKey))
	if err := o.deps.Originals.Download(ctx, v.ObjectKey, local); err != nil {
		return "", nil, err
	}
	return local, func() {
		if err := os.Remove(local); err != nil && !os.IsNotExist(err) {
			log.Printf("remove staged original for %s: %v", v.ID, err)
		}
	}, nil
}

func (o *Orchestrator) fail(ctx context.Context, v *model.Video, started time.Time, diagnostic string) {
	log.Printf("processing failed for %s: %s", v.ID, diagnostic)
	if err := o.deps.Store.MarkFailed(ctx, v.ID, diagnostic); err != nil {
		log.Printf("mark failed for %s: %v", v.ID, err)
	}
	o.publish(ctx, v.ID, model.StatusFailed, v.HLSProcessed)
	metrics.ProcessingTotal.WithLabelValues(string(model.StatusFailed)).Inc()
	metrics.ProcessingDuration.Observe(time.Since(started).Seconds())
}

func (o *Orchestrator) publish(ctx context.Context, id string, status model.ProcessingStatus, hlsProcessed bool) {
	if o.deps.Status == nil {
		return
	}
	if err := o.deps.Status.Set(ctx, id, status, hlsProcessed); err != nil {
		log.Printf("publish status for %s: %v", id, err)
	}
}
