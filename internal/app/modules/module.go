// Package modules contains the domain-oriented dependency modules composed
// by internal/app.
//
// Import Path: lawwarden.io/warden/internal/app/modules
package modules

import (
	"context"

	"lawwarden.io/warden/internal/api/handlers"
	"lawwarden.io/warden/internal/jobs"
)

// Module represents a domain-specific dependency unit in the composition root.
type Module interface {
	// Name returns a stable module identifier for logging/debugging.
	Name() string

	// ContributeServerDeps injects module-owned dependencies into the HTTP server deps.
	ContributeServerDeps(*handlers.ServerDeps)

	// ContributeJobs hands module-owned job dependencies to the River registry.
	ContributeJobs(*jobs.Deps)

	// Start launches module background work once the process is wired.
	Start(context.Context) error

	// Shutdown performs module-local graceful cleanup.
	Shutdown(context.Context) error
}
