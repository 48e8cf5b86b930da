package studio

import (
	"context"
	"image"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/gogpu/ggmeme"
	"github.com/gogpu/ggmeme/render"
)

// BlobScheme prefixes references to uploaded images held in memory.
const BlobScheme = "blob:"

// IsBlob reports whether ref names an uploaded image.
func IsBlob(ref string) bool { return strings.HasPrefix(ref, BlobScheme) }

// Blobs holds decoded uploads under transient blob references. Each
// reference must be revoked exactly once.
type Blobs struct {
	mu    sync.Mutex
	items map[string]image.Image
}

// NewBlobs returns an empty registry.
func NewBlobs() *Blobs {
	return &Blobs{items: make(map[string]image.Image)}
}

// Create stores img and returns its new reference.
func (b *Blobs) Create(img image.Image) string {
	ref := BlobScheme + uuid.NewString()
	b.mu.Lock()
	b.items[ref] = img
	b.mu.Unlock()
	return ref
}

// Revoke releases ref. It reports false, and logs, when ref was already
// revoked or never created.
func (b *Blobs) Revoke(ref string) bool {
	b.mu.Lock()
	_, ok := b.items[ref]
	delete(b.items, ref)
	b.mu.Unlock()
	if !ok {
		ggmeme.Logger().Warn("studio: blob released twice or unknown", "ref", ref)
	}
	return ok
}

// Len returns the number of live references.
func (b *Blobs) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Load implements render.ImageLoader for blob references.
func (b *Blobs) Load(_ context.Context, ref string) (image.Image, error) {
	b.mu.Lock()
	img, ok := b.items[ref]
	b.mu.Unlock()
	if !ok {
		return nil, &render.ResourceError{Op: "load", Ref: ref, Err: render.ErrImageNotFound}
	}
	return img, nil
}

// Loader returns a loader that serves blob references from b and passes
// every other reference to next.
func (b *Blobs) Loader(next render.ImageLoader) render.ImageLoader {
	return render.LoaderFunc(func(ctx context.Context, ref string) (image.Image, error) {
		if IsBlob(ref) {
			return b.Load(ctx, ref)
		}
		if next == nil {
			return nil, &render.ResourceError{Op: "load", Ref: ref, Err: render.ErrImageNotFound}
		}
		return next.Load(ctx, ref)
	})
}
