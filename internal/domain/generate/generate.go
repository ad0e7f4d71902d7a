// Package generate defines the generation request model shared by vendor
// backends and the service layer, plus the deterministic request fingerprint
// used as the response cache key.
package generate

import (
	"time"

	"github.com/lumigen/lumigen/internal/domain/artifact"
)

// Modality identifies the media type a request produces.
type Modality string

const (
	ModalityImage Modality = "image"
	ModalityVideo Modality = "video"
	ModalityAudio Modality = "audio"
)

// Request describes one generation call to a vendor backend.
type Request struct {
	Vendor     string         `json:"vendor"`
	Operation  string         `json:"operation"`
	Modality   Modality       `json:"modality"`
	Prompt     string         `json:"prompt"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// JobState is a vendor-agnostic view of a remote job's progress.
type JobState string

const (
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// Terminal reports whether the job state permits no further polling.
func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobCancelled
}

// Outcome is what a vendor backend reports for a submitted or polled job:
// either a terminal result (Outputs populated on success, Message on
// failure) or an in-progress token (JobID) for the polling strategy.
type Outcome struct {
	JobID    string   `json:"job_id,omitempty"`
	State    JobState `json:"state"`
	Progress int      `json:"progress,omitempty"`
	Outputs  []Output `json:"outputs,omitempty"`
	Message  string   `json:"message,omitempty"`
}

// Output references one generated media object.
type Output struct {
	URL      string `json:"url"`
	MIME     string `json:"mime,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Duration int    `json:"duration_seconds,omitempty"`
}

// Result is the caller-visible value stored on a completed generation task.
// Artifacts lists the outputs mirrored into the local artifact cache; it is
// empty when artifact fetching is disabled or failed.
type Result struct {
	Vendor    string              `json:"vendor"`
	Operation string              `json:"operation"`
	JobID     string              `json:"job_id,omitempty"`
	Outputs   []Output            `json:"outputs"`
	Artifacts []artifact.Artifact `json:"artifacts,omitempty"`
	Cached    bool                `json:"cached"`
	FetchedAt time.Time           `json:"fetched_at"`
}
