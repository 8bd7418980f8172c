// Package model contains struct definitions shared by the API, worker, and
// persistence layers.
package model

import (
	"time"
)

// ProcessingStatus describes where a video sits in the ingestion pipeline.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Video is the persisted record for one uploaded asset. ObjectKey points at
// the original media in the raw bucket; ThumbnailPath and HLSPath are
// relative to the media root and stay empty until the worker produces the
// artifacts.
type Video struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Category      string           `json:"category"`
	ObjectKey     string           `json:"-"`
	ThumbnailPath string           `json:"thumbnailPath,omitempty"`
	Status        ProcessingStatus `json:"status"`
	HLSProcessed  bool             `json:"hlsProcessed"`
	HLSPath       string           `json:"hlsPath,omitempty"`
	ErrorMessage  string           `json:"errorMessage,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// HasThumbnail reports whether a thumbnail has been recorded for the video.
func (v *Video) HasThumbnail() bool {
	return v.ThumbnailPath != ""
}
