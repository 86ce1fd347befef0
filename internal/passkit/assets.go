package passkit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/brewpass/brewpass/internal/cache"
)

// BackgroundRenderer draws the strip image for a given point progress.
// The production implementation is an external graphics collaborator;
// tests inject fakes.
type BackgroundRenderer interface {
	Render(ctx context.Context, progress int) ([]byte, error)
}

// Library resolves static pass images from disk and progress backgrounds from
// the renderer, caching rendered bytes per progress band.
type Library struct {
	dir      string
	renderer BackgroundRenderer
	cache    cache.Cache
	ttl      time.Duration
}

// NewLibrary builds an asset library. renderer and c may be nil: a nil
// renderer disables backgrounds, a nil cache disables caching.
func NewLibrary(dir string, renderer BackgroundRenderer, c cache.Cache, ttl time.Duration) *Library {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Library{dir: dir, renderer: renderer, cache: c, ttl: ttl}
}

// Image returns a static asset by file name. Missing files are reported via
// ok=false, never as errors: the builder degrades gracefully without them.
func (l *Library) Image(name string) ([]byte, bool) {
	if l == nil || l.dir == "" {
		return nil, false
	}
	b, err := os.ReadFile(filepath.Join(l.dir, name))
	if err != nil {
		return nil, false
	}
	return b, true
}

// backgroundBand quantizes progress so the cache holds a handful of variants
// instead of one per point.
func backgroundBand(progress int) int {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return (progress / 10) * 10
}

// Background renders (or recalls) the strip image for a progress value.
func (l *Library) Background(ctx context.Context, progress int) ([]byte, bool) {
	if l == nil || l.renderer == nil {
		return nil, false
	}
	band := backgroundBand(progress)
	key := fmt.Sprintf("pass:bg:%d", band)

	if l.cache != nil {
		if b, ok := l.cache.Get(key); ok {
			return b, true
		}
	}

	b, err := l.renderer.Render(ctx, band)
	if err != nil || len(b) == 0 {
		return nil, false
	}
	if l.cache != nil {
		l.cache.Set(key, b, l.ttl)
	}
	return b, true
}
