// Package worker provides background task infrastructure for the frontpage server.
package worker

import "context"

// Worker is a long-running background task.
type Worker interface {
	// Run blocks until ctx is cancelled or an unrecoverable error occurs.
	Run(ctx context.Context) error
}

// named is implemented by workers that identify themselves in logs.
type named interface {
	Name() string
}
