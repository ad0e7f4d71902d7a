// Package mediabackend defines the vendor backend port (interface) and its
// factory registry.
package mediabackend

import (
	"context"

	"github.com/lumigen/lumigen/internal/domain/generate"
)

// Capabilities declares what a vendor backend supports.
type Capabilities struct {
	Modalities []generate.Modality `json:"modalities"`
	Async      bool                `json:"async"` // submissions return a job token to poll
}

// Backend is the port interface for one remote generation vendor.
type Backend interface {
	// Name returns the unique identifier for this backend (e.g. "replicate").
	Name() string

	// Capabilities returns what this backend supports.
	Capabilities() Capabilities

	// Generate submits a request. The outcome either carries the terminal
	// result or a job token for Status polling.
	Generate(ctx context.Context, req *generate.Request) (*generate.Outcome, error)

	// Status reports the current state of a previously submitted job.
	Status(ctx context.Context, jobID string) (*generate.Outcome, error)

	// Cancel asks the vendor to stop a running job. Best effort.
	Cancel(ctx context.Context, jobID string) error
}
