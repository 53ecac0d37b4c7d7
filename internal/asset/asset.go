// Package asset tracks the lifecycle of one encrypted video stream per
// lesson: absent -> processing -> ready|failed, with a generation counter
// that lets a superseded transcode detect it lost the race.
package asset

import "time"

// Status is the lifecycle stage of a lesson's video asset.
type Status string

const (
	StatusAbsent     Status = "absent"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Asset is the per-lesson video record. It is owned by the transcode worker
// while processing and read-only for the gateway afterward.
type Asset struct {
	LessonID int64  `json:"lesson_id"`
	Status   Status `json:"status"`

	// Generation increments on every BeginProcessing. Workers publish
	// results only if their generation is still current.
	Generation int64 `json:"generation"`

	// SourcePath is the temporary upload location, relative to storage root.
	// Cleared once the worker deletes the source.
	SourcePath string `json:"source_path,omitempty"`

	// OutputDir, ManifestPath and KeyPath are set when the asset is ready.
	OutputDir    string `json:"output_dir,omitempty"`
	ManifestPath string `json:"manifest_path,omitempty"`
	KeyPath      string `json:"key_path,omitempty"`

	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	SizeBytes       int64   `json:"size_bytes,omitempty"`

	// Error holds the operator-visible reason after a final failure.
	Error string `json:"error,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Published is the result a worker hands to the store when a transcode
// verifies successfully.
type Published struct {
	OutputDir       string
	ManifestPath    string
	KeyPath         string
	DurationSeconds float64
	SizeBytes       int64
}
