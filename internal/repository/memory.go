package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dharsanguruparan/StreamVault/internal/model"
)

// MemoryStore is an in-memory implementation of the video store with the same
// narrow-update surface as VideoRepository. It backs unit tests and the
// single-process dev mode where Postgres is not running.
type MemoryStore struct {
	mu     sync.RWMutex
	videos map[string]*model.Video
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{videos: make(map[string]*model.Video)}
}

// Create inserts a record.
func (m *MemoryStore) Create(_ context.Context, v *model.Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if v.Status == "" {
		v.Status = model.StatusPending
	}
	v.CreatedAt = now
	v.UpdatedAt = now
	stored := *v
	m.videos[v.ID] = &stored
	return nil
}

// Get returns a copy so callers cannot mutate internal state.
func (m *MemoryStore) Get(_ context.Context, id string) (*model.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.videos[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

// List returns copies of all records, newest first.
func (m *MemoryStore) List(_ context.Context) ([]*model.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Video, 0, len(m.videos))
	for _, v := range m.videos {
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes a record.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.videos[id]; !ok {
		return ErrNotFound
	}
	delete(m.videos, id)
	return nil
}

// MarkProcessing sets the status to processing.
func (m *MemoryStore) MarkProcessing(ctx context.Context, id string) error {
	return m.setStatus(id, model.StatusProcessing, "")
}

// MarkCompleted sets the terminal completed status.
func (m *MemoryStore) MarkCompleted(ctx context.Context, id string) error {
	return m.setStatus(id, model.StatusCompleted, "")
}

// MarkFailed sets the terminal failed status and stores the diagnostic.
func (m *MemoryStore) MarkFailed(ctx context.Context, id, msg string) error {
	return m.setStatus(id, model.StatusFailed, msg)
}

// MarkPending resets the asset for a manual re-queue.
func (m *MemoryStore) MarkPending(ctx context.Context, id string) error {
	return m.setStatus(id, model.StatusPending, "")
}

func (m *MemoryStore) setStatus(id string, status model.ProcessingStatus, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	if !ok {
		return ErrNotFound
	}
	v.Status = status
	v.ErrorMessage = msg
	v.UpdatedAt = time.Now().UTC()
	return nil
}

// SetThumbnail records the generated thumbnail path.
func (m *MemoryStore) SetThumbnail(_ context.Context, id, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	if !ok {
		return ErrNotFound
	}
	v.ThumbnailPath = path
	v.UpdatedAt = time.Now().UTC()
	return nil
}

// SetHLS records the HLS output root and the processed flag.
func (m *MemoryStore) SetHLS(_ context.Context, id, hlsPath string, processed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	if !ok {
		return ErrNotFound
	}
	v.HLSPath = hlsPath
	v.HLSProcessed = processed
	v.UpdatedAt = time.Now().UTC()
	return nil
}
