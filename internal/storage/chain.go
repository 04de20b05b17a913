package storage

import (
	"context"
	"fmt"

	"brandops/internal/job"
)

// StatusWriter records a brand output status somewhere outside the local store.
type StatusWriter interface {
	UpdateStatus(ctx context.Context, jobID, brandID string, st job.Status) error
}

// StatusChain writes a status locally first, then to the remote writer.
// A local failure stops the chain so the remote never runs ahead of the store.
type StatusChain struct {
	Local  Store
	Remote StatusWriter
}

func (c StatusChain) UpdateStatus(ctx context.Context, jobID, brandID string, st job.Status) error {
	if c.Local != nil {
		if err := c.Local.UpdateStatus(ctx, jobID, brandID, st); err != nil {
			return fmt.Errorf("local status: %w", err)
		}
	}
	if c.Remote != nil {
		if err := c.Remote.UpdateStatus(ctx, jobID, brandID, st); err != nil {
			return fmt.Errorf("remote status: %w", err)
		}
	}
	return nil
}
