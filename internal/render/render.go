// Package render provides artifact renderers: something that, given a
// brand and its generated content, returns a base64-encoded image.
package render

import (
	"context"
	"errors"
)

// ErrNoArtifact means the brand has nothing renderable right now
// (no cached render, render service has no stage for it, ...).
var ErrNoArtifact = errors.New("no renderable artifact")

type Request struct {
	BrandID string
	Title   string
	Content []string
}

// Renderer is the contract consumed by the auto-scheduler.
type Renderer interface {
	Render(ctx context.Context, req Request) (string, error)
}
