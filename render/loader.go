package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	// Registered decoders for uploaded and fetched images.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// MaxImageBytes bounds how much data a loader reads for one image.
const MaxImageBytes = 32 << 20

// ErrImageNotFound is returned by loaders for unknown references.
var ErrImageNotFound = errors.New("render: image not found")

// ImageLoader resolves an image reference (a path, URL or blob reference)
// to a decoded image.
type ImageLoader interface {
	Load(ctx context.Context, ref string) (image.Image, error)
}

// LoaderFunc adapts a function to ImageLoader.
type LoaderFunc func(ctx context.Context, ref string) (image.Image, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, ref string) (image.Image, error) {
	return f(ctx, ref)
}

// Decode decodes a PNG, JPEG, GIF, WebP or BMP image and reports its
// format name.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(io.LimitReader(r, MaxImageBytes))
	if err != nil {
		return nil, "", &ResourceError{Op: "decode", Err: err}
	}
	return img, format, nil
}

// DecodeConfig reads only the dimensions and format of an encoded image.
func DecodeConfig(data []byte) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", &ResourceError{Op: "decode", Err: err}
	}
	return cfg, format, nil
}

// FileLoader loads images from the local file system. References are
// resolved below Root and may not escape it.
type FileLoader struct {
	Root string
}

// Load opens and decodes the file named by ref.
func (l FileLoader) Load(ctx context.Context, ref string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := filepath.Join(l.Root, filepath.FromSlash(filepathClean(ref)))
	f, err := os.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = ErrImageNotFound
		}
		return nil, &ResourceError{Op: "load", Ref: ref, Err: err}
	}
	defer f.Close()
	img, _, err := Decode(f)
	if err != nil {
		return nil, &ResourceError{Op: "decode", Ref: ref, Err: errors.Unwrap(err)}
	}
	return img, nil
}

// filepathClean roots ref so ".." cannot climb out of the loader root.
func filepathClean(ref string) string {
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean("/"+ref)), "/")
}

// HTTPLoader fetches http and https references.
type HTTPLoader struct {
	Client *http.Client
}

// Load downloads and decodes the image at ref.
func (l HTTPLoader) Load(ctx context.Context, ref string) (image.Image, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, &ResourceError{Op: "load", Ref: ref, Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &ResourceError{Op: "load", Ref: ref, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, &ResourceError{Op: "load", Ref: ref, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}
	img, _, err := Decode(resp.Body)
	if err != nil {
		return nil, &ResourceError{Op: "decode", Ref: ref, Err: errors.Unwrap(err)}
	}
	return img, nil
}

// MapLoader serves images held in memory.
type MapLoader map[string]image.Image

// Load returns the image stored under ref.
func (m MapLoader) Load(_ context.Context, ref string) (image.Image, error) {
	if img, ok := m[ref]; ok {
		return img, nil
	}
	return nil, &ResourceError{Op: "load", Ref: ref, Err: ErrImageNotFound}
}

// SchemeLoader routes http(s) references to Remote and everything else to
// Local.
type SchemeLoader struct {
	Remote ImageLoader
	Local  ImageLoader
}

// Load dispatches ref by its URL scheme.
func (l SchemeLoader) Load(ctx context.Context, ref string) (image.Image, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		if l.Remote == nil {
			return nil, &ResourceError{Op: "load", Ref: ref, Err: errors.New("remote images disabled")}
		}
		return l.Remote.Load(ctx, ref)
	}
	if l.Local == nil {
		return nil, &ResourceError{Op: "load", Ref: ref, Err: ErrImageNotFound}
	}
	return l.Local.Load(ctx, ref)
}
