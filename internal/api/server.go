// Package api exposes the HTTP surface: upload intake, video visibility,
// status polling, deletion, and static delivery of HLS playlists, segments,
// and thumbnails.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dharsanguruparan/StreamVault/internal/cache"
	"github.com/dharsanguruparan/StreamVault/internal/config"
	"github.com/dharsanguruparan/StreamVault/internal/hlsfs"
	"github.com/dharsanguruparan/StreamVault/internal/media"
	"github.com/dharsanguruparan/StreamVault/internal/mediastore"
	"github.com/dharsanguruparan/StreamVault/internal/metrics"
	"github.com/dharsanguruparan/StreamVault/internal/model"
	"github.com/dharsanguruparan/StreamVault/internal/pipeline"
	"github.com/dharsanguruparan/StreamVault/internal/repository"
)

// VideoReader is the read surface the API needs from the store.
type VideoReader interface {
	Get(ctx context.Context, id string) (*model.Video, error)
	List(ctx context.Context) ([]*model.Video, error)
}

// Server exposes HTTP endpoints for uploads and video visibility.
type Server struct {
	cfg          *config.Config
	store        VideoReader
	orchestrator *pipeline.Orchestrator
	validator    *media.Validator
	originals    *mediastore.Storage
	hls          *hlsfs.Manager
	status       *cache.StatusCache
	ladderSize   int
	server       *http.Server
	once         sync.Once
}

// New constructs a Server. status may be nil when no read cache is deployed.
func New(cfg *config.Config, store VideoReader, orchestrator *pipeline.Orchestrator, validator *media.Validator, originals *mediastore.Storage, hls *hlsfs.Manager, status *cache.StatusCache, ladderSize int) *Server {
	return &Server{
		cfg:          cfg,
		store:        store,
		orchestrator: orchestrator,
		validator:    validator,
		originals:    originals,
		hls:          hls,
		status:       status,
		ladderSize:   ladderSize,
	}
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", s.handleHealth)
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/videos", s.handleVideos)
		mux.HandleFunc("/videos/", s.handleVideoRoute)
		mux.Handle("/hls/", s.mediaHandler("/hls/", filepath.Join(s.cfg.MediaRoot, "hls")))
		mux.Handle("/thumbnails/", s.mediaHandler("/thumbnails/", filepath.Join(s.cfg.MediaRoot, "thumbnails")))
		s.server = &http.Server{
			Addr:    s.cfg.Address,
			Handler: corsMiddleware(loggingMiddleware(mux)),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	log.Printf("api listening on %s", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleUpload(w, r)
	case http.MethodGet:
		s.handleList(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleVideoRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/videos/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	if len(parts) == 1 {
		s.handleVideo(w, r, id)
		return
	}
	switch parts[1] {
	case "status":
		s.handleStatus(w, r, id)
	case "regenerate":
		s.handleRegenerate(w, r, id)
	case "thumbnail":
		s.handleThumbnail(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	videos, err := s.store.List(r.Context())
	if err != nil {
		http.Error(w, "failed to list videos", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"videos": videos})
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		v, err := s.store.Get(r.Context(), id)
		if err != nil {
			http.Error(w, "video not found", http.StatusNotFound)
			return
		}
		respondJSON(w, http.StatusOK, v)
	case http.MethodDelete:
		if err := s.orchestrator.Delete(r.Context(), id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				http.Error(w, "video not found", http.StatusNotFound)
				return
			}
			http.Error(w, "failed to delete video", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleStatus answers the polling endpoint. Status is read cache-first; the
// rendition list comes from a directory scan so partially transcoded assets
// report accurate progress.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	var (
		status       model.ProcessingStatus
		hlsProcessed bool
		errorMsg     string
	)
	cached := false
	if s.status != nil {
		if st, processed, err := s.status.Get(ctx, id); err == nil {
			status = st
			hlsProcessed = processed
			cached = true
		}
	}
	if !cached {
		v, err := s.store.Get(ctx, id)
		if err != nil {
			http.Error(w, "video not found", http.StatusNotFound)
			return
		}
		status = v.Status
		hlsProcessed = v.HLSProcessed
		errorMsg = v.ErrorMessage
		if s.status != nil {
			if err := s.status.Set(ctx, id, status, hlsProcessed); err != nil {
				log.Printf("cache status for %s: %v", id, err)
			}
		}
	}

	resolutions := s.hls.AvailableResolutions(id)
	progress := 0
	if s.ladderSize > 0 {
		progress = len(resolutions) * 100 / s.ladderSize
	}
	payload := map[string]interface{}{
		"id":                    id,
		"status":                status,
		"hls_processed":         hlsProcessed,
		"hls_path":              s.hls.RelPath(id),
		"available_resolutions": resolutions,
		"total_resolutions":     s.ladderSize,
		"progress":              progress,
	}
	if errorMsg != "" {
		payload["error_message"] = errorMsg
	}
	respondJSON(w, http.StatusOK, payload)
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.orchestrator.Requeue(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "video not found", http.StatusNotFound)
			return
		}
		log.Printf("requeue %s: %v", id, err)
		http.Error(w, "failed to requeue video", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"id":     id,
		"status": string(model.StatusPending),
	})
}

// maxThumbnailUpload caps custom thumbnail uploads.
const maxThumbnailUpload = 10 << 20

// handleThumbnail accepts an operator-provided thumbnail image and replaces
// whatever the pipeline generated.
func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxThumbnailUpload)
	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "expecting multipart form", http.StatusBadRequest)
		return
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				http.Error(w, "missing thumbnail part", http.StatusBadRequest)
				return
			}
			http.Error(w, "failed to read form", http.StatusBadRequest)
			return
		}
		if part.FormName() != "thumbnail" {
			part.Close()
			continue
		}
		setErr := s.orchestrator.SetCustomThumbnail(ctx, id, part)
		part.Close()
		if setErr != nil {
			if errors.Is(setErr, repository.ErrNotFound) {
				http.Error(w, "video not found", http.StatusNotFound)
				return
			}
			var valErr *media.ValidationError
			if errors.As(setErr, &valErr) {
				http.Error(w, valErr.Message, http.StatusBadRequest)
				return
			}
			log.Printf("set thumbnail for %s: %v", id, setErr)
			http.Error(w, "failed to store thumbnail", http.StatusInternalServerError)
			return
		}
		v, getErr := s.store.Get(ctx, id)
		if getErr != nil {
			http.Error(w, "video not found", http.StatusNotFound)
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"message": "Thumbnail uploaded successfully.",
			"video":   v,
		})
		return
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+64*1024)
	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "expecting multipart form", http.StatusBadRequest)
		return
	}
	form, err := s.readForm(mr)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer os.Remove(form.path)
	defer form.f.Close()

	if err := media.ValidateMetadata(form.title, form.description, form.category); err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	v := &model.Video{
		ID:          uuid.NewString(),
		Title:       form.title,
		Description: form.description,
		Category:    form.category,
	}
	if err := s.validator.ValidateFile(ctx, form.path); err != nil {
		s.rejectUpload(ctx, w, v, err)
		return
	}

	v.ObjectKey = fmt.Sprintf("uploads/%s/%s", v.ID, filepath.Base(form.filename))
	if err := s.uploadToStorage(ctx, v.ObjectKey, form); err != nil {
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		log.Printf("upload to storage failed: %v", err)
		http.Error(w, "failed to store file", http.StatusInternalServerError)
		return
	}

	queued, err := s.orchestrator.Intake(ctx, v)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		http.Error(w, "failed to schedule processing", http.StatusInternalServerError)
		return
	}
	if queued {
		metrics.UploadsTotal.WithLabelValues("accepted").Inc()
	} else {
		metrics.UploadsTotal.WithLabelValues("deferred").Inc()
	}
	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"id":     v.ID,
		"status": string(model.StatusPending),
		"queued": queued,
	})
}

// rejectUpload maps a validation failure onto the response. Content problems
// leave a persisted failed record behind so the rejection stays visible;
// operational problems (missing encoder) do not create asset state.
func (s *Server) rejectUpload(ctx context.Context, w http.ResponseWriter, v *model.Video, err error) {
	var toolErr *media.ToolUnavailableError
	if errors.As(err, &toolErr) {
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		log.Printf("upload rejected: %v", err)
		http.Error(w, "Video processing is temporarily unavailable. Please try again later.", http.StatusServiceUnavailable)
		return
	}
	var valErr *media.ValidationError
	if errors.As(err, &valErr) {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		if rejErr := s.orchestrator.Reject(ctx, v, valErr.Message); rejErr != nil {
			log.Printf("persist rejected upload %s: %v", v.ID, rejErr)
		}
		http.Error(w, valErr.Message, http.StatusBadRequest)
		return
	}
	metrics.UploadsTotal.WithLabelValues("failed").Inc()
	log.Printf("upload validation error: %v", err)
	http.Error(w, "failed to validate file", http.StatusInternalServerError)
}

type uploadForm struct {
	title       string
	description string
	category    string

	f           *os.File
	path        string
	size        int64
	contentType string
	filename    string
}

// readForm walks the multipart stream collecting metadata fields and spooling
// the file part into the scratch directory. The temporary file keeps the
// client filename's extension so format checks see it.
func (s *Server) readForm(mr *multipart.Reader) (*uploadForm, error) {
	form := &uploadForm{}
	for {
		part, err := mr.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			form.discard()
			return nil, fmt.Errorf("read form: %w", err)
		}
		switch part.FormName() {
		case "title":
			form.title, err = readField(part)
		case "description":
			form.description, err = readField(part)
		case "category":
			form.category, err = readField(part)
		case "file":
			err = s.spoolFile(part, form)
		}
		part.Close()
		if err != nil {
			form.discard()
			return nil, err
		}
	}
	if form.f == nil {
		return nil, errors.New("missing file part")
	}
	return form, nil
}

func (s *Server) spoolFile(part *multipart.Part, form *uploadForm) error {
	filename := part.FileName()
	if filename == "" {
		filename = "upload"
	}
	tmp, err := os.CreateTemp(s.cfg.ScratchDir, "upload-*"+filepath.Ext(filename))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	var sniff []byte
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, readErr := part.Read(buf)
		if n > 0 {
			written += int64(n)
			if written > s.cfg.MaxFileSize {
				tmp.Close()
				os.Remove(tmp.Name())
				return fmt.Errorf("file exceeds limit (%d bytes)", s.cfg.MaxFileSize)
			}
			if len(sniff) < 512 {
				chunk := n
				if remain := 512 - len(sniff); chunk > remain {
					chunk = remain
				}
				sniff = append(sniff, buf[:chunk]...)
			}
			if _, err := tmp.Write(buf[:n]); err != nil {
				tmp.Close()
				os.Remove(tmp.Name())
				return fmt.Errorf("write temp file: %w", err)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			tmp.Close()
			os.Remove(tmp.Name())
			return fmt.Errorf("read file: %w", readErr)
		}
	}
	if written == 0 {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.New("empty file")
	}
	form.f = tmp
	form.path = tmp.Name()
	form.size = written
	form.contentType = http.DetectContentType(sniff)
	form.filename = filename
	return nil
}

func readField(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, 4096))
	if err != nil {
		return "", fmt.Errorf("read form field: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *uploadForm) discard() {
	if f.f != nil {
		f.f.Close()
		os.Remove(f.path)
		f.f = nil
	}
}

func (s *Server) uploadToStorage(ctx context.Context, objectKey string, form *uploadForm) error {
	if _, err := form.f.Seek(0, 0); err != nil {
		return err
	}
	return s.originals.UploadOriginal(ctx, objectKey, form.f, form.size, form.contentType)
}

// mediaHandler serves worker-produced artifacts with the content types HLS
// players expect. Playlists are never cached so in-flight transcodes become
// visible; segments are immutable once written.
func (s *Server) mediaHandler(prefix, dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.StripPrefix(prefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch strings.ToLower(filepath.Ext(r.URL.Path)) {
		case ".m3u8":
			w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
			w.Header().Set("Cache-Control", "no-cache")
		case ".ts":
			w.Header().Set("Content-Type", "video/MP2T")
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		}
		fs.ServeHTTP(w, r)
	}))
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}
