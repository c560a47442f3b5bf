// Package storage mirrors published artifacts (the feed document and
// the image cache) to a blob store.
package storage

import "context"

// Provider is the artifact mirror abstraction.
type Provider interface {
	// Save uploads data under objectName.
	Save(ctx context.Context, objectName string, data []byte) error
	// Close releases the provider's resources.
	Close() error
}

// NoOpProvider discards all uploads. It is the default: mirroring is
// optional and most deployments serve artifacts straight off disk.
type NoOpProvider struct{}

// Save discards the data.
func (NoOpProvider) Save(context.Context, string, []byte) error { return nil }

// Close is a no-op.
func (NoOpProvider) Close() error { return nil }
