// Package model resolves model identifiers to local artifacts, downloading
// and caching them as needed.
package model

import "context"

// Progress reports download progress as a fraction in [0.0, 1.0] together
// with a human-readable status line. It may be called from the goroutine
// performing the resolution.
type Progress func(frac float64, status string)

// Resolver maps a model identifier to a local artifact path.
// Implementations may perform network I/O; progress is optional and may
// be nil.
type Resolver interface {
	Resolve(ctx context.Context, id string, progress Progress) (string, error)
}
