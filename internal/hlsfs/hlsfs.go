// Package hlsfs owns the on-disk layout of HLS output:
// <mediaRoot>/hls/<videoID>/<resolution>/index.m3u8 plus numbered segments.
// It creates the per-video tree on demand and tears it down on deletion.
package hlsfs

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const hlsDirName = "hls"

// Manager resolves and maintains per-video HLS directories under a media
// root.
type Manager struct {
	mediaRoot string
}

// NewManager constructs a Manager rooted at mediaRoot.
func NewManager(mediaRoot string) *Manager {
	return &Manager{mediaRoot: mediaRoot}
}

// Dir returns the absolute HLS directory for a video without creating it.
func (m *Manager) Dir(videoID string) string {
	return filepath.Join(m.mediaRoot, hlsDirName, videoID)
}

// RelPath returns the media-root-relative HLS path stored on the record.
func (m *Manager) RelPath(videoID string) string {
	return hlsDirName + "/" + videoID + "/"
}

// EnsureOutputDir creates the video's HLS root if needed and returns it.
func (m *Manager) EnsureOutputDir(videoID string) (string, error) {
	dir := m.Dir(videoID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// AvailableResolutions scans the video's HLS directory for rendition folders
// that contain a playlist, sorted from lowest to highest.
func (m *Manager) AvailableResolutions(videoID string) []string {
	entries, err := os.ReadDir(m.Dir(videoID))
	if err != nil {
		return nil
	}
	var out []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasSuffix(entry.Name(), "p") {
			continue
		}
		manifest := filepath.Join(m.Dir(videoID), entry.Name(), "index.m3u8")
		if fi, err := os.Stat(manifest); err == nil && fi.Size() > 0 {
			out = append(out, entry.Name())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return resolutionRank(out[i]) < resolutionRank(out[j])
	})
	return out
}

func resolutionRank(name string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(name, "p"))
	if err != nil {
		return 0
	}
	return n
}

// RemoveTree deletes the video's entire HLS directory tree. Removing a tree
// that never existed is not an error.
func (m *Manager) RemoveTree(videoID string) error {
	return os.RemoveAll(m.Dir(videoID))
}
