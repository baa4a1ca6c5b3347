// Package codec delegates image decode/resize/encode to pluggable backends.
// The vips backend (libvips) is preferred; a pure-Go backend covers JPEG
// output when libvips lacks a format.
package codec

import "imgcrunch/internal/config"

// Request describes one source-to-bytes rendering job.
type Request struct {
	SourcePath string
	Format     config.Format
	Quality    int // 1..100
	MaxSize    int // longest-side bound; 0 disables resizing
}

// Rendered holds the encoded output and what happened to the pixels.
type Rendered struct {
	Data []byte

	OriginalWidth  int
	OriginalHeight int
	Width          int
	Height         int
	Resized        bool

	// MetadataCarried reports whether the backend already embedded the
	// source metadata in Data. When false the caller embeds it, if it can.
	MetadataCarried bool
}

// Backend renders a source image to encoded bytes: decode, flatten onto
// white, optional longest-side resize, encode. Implementations must be safe
// for concurrent use.
type Backend interface {
	Name() string
	Supports(f config.Format) bool
	Render(req Request) (*Rendered, error)
}

// Registry holds backends in preference order.
type Registry struct {
	backends []Backend
}

func NewRegistry(backends ...Backend) *Registry {
	return &Registry{backends: backends}
}

// For returns the first backend that supports f.
func (r *Registry) For(f config.Format) (Backend, bool) {
	for _, b := range r.backends {
		if b.Supports(f) {
			return b, true
		}
	}
	return nil, false
}

// Close releases backend resources (the vips backend shuts down libvips).
func (r *Registry) Close() {
	for _, b := range r.backends {
		if c, ok := b.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
