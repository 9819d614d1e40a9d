// Package cache provides caching for rendered diagram outputs.
//
// Only render artifacts are cached: every request scans its own source tree
// and owns its call graph, so parsed state is never shared across requests.
// Keys are derived from the content hash of the assembled render graph plus
// the render options, which makes cached entries safe to reuse because
// serialization is a pure function of those inputs.
//
// Three implementations are provided:
//   - FileCache: per-machine cache under a directory (CLI usage)
//   - RedisCache: shared cache for the HTTP service
//   - NullCache: caching disabled
package cache

import (
	"context"
	"time"
)

// TTLs for cached entries.
const (
	// TTLDiagram is the lifetime of cached diagram text and DOT output.
	TTLDiagram = 24 * time.Hour

	// TTLRaster is the lifetime of cached raster images. Rasters are
	// expensive to produce but fully determined by the diagram text, so
	// they keep the same lifetime as the text they derive from.
	TTLRaster = 24 * time.Hour
)

// Cache is the storage interface shared by all backends.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves a value. The second return value reports whether the
	// key was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL. A zero TTL means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// DiagramKeyOpts are the render options that participate in the cache key.
// Two requests that assemble an identical render graph but differ in any of
// these fields must not share an entry. Every option that changes the
// serialized bytes belongs here, including the label controls.
type DiagramKeyOpts struct {
	Format     string
	Prefix     string
	Direction  string
	LabelMode  string
	LabelDepth int
	WrapLabels bool
}

// Keyer generates cache keys for render outputs.
type Keyer interface {
	// DiagramKey generates a key for a rendered output, where renderHash
	// is the content hash of the serialized render graph.
	DiagramKey(renderHash string, opts DiagramKeyOpts) string
}

// DefaultKeyer is the standard key generator.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard key generator.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// DiagramKey generates a key of the form "diagram:<hash>".
func (k *DefaultKeyer) DiagramKey(renderHash string, opts DiagramKeyOpts) string {
	return hashKey("diagram", renderHash, opts.Format, opts.Prefix, opts.Direction,
		opts.LabelMode, opts.LabelDepth, opts.WrapLabels)
}

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation, e.g.
// separating entries per deployment when several services share one Redis.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// DiagramKey generates a prefixed key for a rendered output.
func (k *ScopedKeyer) DiagramKey(renderHash string, opts DiagramKeyOpts) string {
	return k.prefix + k.inner.DiagramKey(renderHash, opts)
}
