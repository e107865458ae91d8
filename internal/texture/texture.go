// Package texture resolves external texture-resource names to cached
// 100x100 RGBA images (C3). Fetches are coalesced so that concurrent
// requests for the same resource share one network round-trip, and
// resources confirmed missing are memoised as absent for the run.
package texture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const (
	tileWidth  = 100
	tileHeight = 100
	cacheSize  = 4096
)

// Fetcher retrieves the raw encoded bytes for a texture resource name.
// In production this talks to the tenant asset store; it is an external
// collaborator per SPEC_FULL.md §1, injected here as an interface.
type Fetcher interface {
	Fetch(ctx context.Context, resourceName string) ([]byte, error)
}

// Cache is a process-wide, filesystem-backed texture resolver.
type Cache struct {
	fetcher Fetcher
	dir     string // hmap-tile-cache/** content-addressed store

	mem   *lru.Cache[string, *image.RGBA]
	group singleflight.Group

	mu      sync.Mutex
	missing map[string]struct{} // absent for this run; reset per generation
}

// New creates a texture cache that stores fetched bytes under dir
// (content-addressed by resource name) and keeps up to cacheSize decoded
// images in memory.
func New(dir string, fetcher Fetcher) (*Cache, error) {
	mem, err := lru.New[string, *image.RGBA](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("texture: creating LRU: %w", err)
	}
	return &Cache{
		fetcher: fetcher,
		dir:     dir,
		mem:     mem,
		missing: make(map[string]struct{}),
	}, nil
}

// Prime seeds the in-memory cache with an already-decoded texture,
// bypassing the fetcher and disk cache. Used for tests and for
// injecting built-in textures that ship with the binary.
func (c *Cache) Prime(name string, img *image.RGBA) {
	c.mem.Add(name, img)
}

// ResetRun clears the per-generation negative-cache memoisation. Call
// once at the start of each generation run.
func (c *Cache) ResetRun() {
	c.mu.Lock()
	c.missing = make(map[string]struct{})
	c.mu.Unlock()
}

// Prefetch bulk-populates the cache for the given resource names,
// fetching concurrently but coalescing duplicate requests.
func (c *Cache) Prefetch(ctx context.Context, names []string) {
	var wg sync.WaitGroup
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			c.Get(ctx, name)
		}(n)
	}
	wg.Wait()
}

// Get resolves a resource name to a 100x100 RGBA texture. Returns nil,
// false when the resource is missing (memoised for the remainder of the
// run — never fatal, per §4.3 and §7).
func (c *Cache) Get(ctx context.Context, name string) (*image.RGBA, bool) {
	if img, ok := c.mem.Get(name); ok {
		return img, true
	}

	c.mu.Lock()
	_, known := c.missing[name]
	c.mu.Unlock()
	if known {
		return nil, false
	}

	v, err, _ := c.group.Do(name, func() (interface{}, error) {
		return c.resolve(ctx, name)
	})
	if err != nil {
		slog.Warn("texture: resolve failed, using grey fill", "resource", name, "error", err)
		c.mu.Lock()
		c.missing[name] = struct{}{}
		c.mu.Unlock()
		return nil, false
	}
	img := v.(*image.RGBA)
	c.mem.Add(name, img)
	return img, true
}

func (c *Cache) resolve(ctx context.Context, name string) (*image.RGBA, error) {
	if img, err := c.readDisk(name); err == nil {
		return img, nil
	}

	if c.fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured and %q not cached on disk", name)
	}
	raw, err := c.fetcher.Fetch(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fetching %q: %w", name, err)
	}
	img, err := decodeTexture(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %q: %w", name, err)
	}
	if err := c.writeDisk(name, raw); err != nil {
		slog.Warn("texture: failed to persist disk cache entry", "resource", name, "error", err)
	}
	return img, nil
}

func (c *Cache) diskPath(name string) string {
	safe := strings.ReplaceAll(name, "/", "_")
	return filepath.Join(c.dir, safe+".png")
}

func (c *Cache) readDisk(name string) (*image.RGBA, error) {
	if c.dir == "" {
		return nil, fmt.Errorf("no disk cache configured")
	}
	f, err := os.Open(c.diskPath(name))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, err
	}
	return toRGBA(img), nil
}

func (c *Cache) writeDisk(name string, raw []byte) error {
	if c.dir == "" {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	img, err := decodeTexture(raw)
	if err != nil {
		return err
	}
	f, err := os.Create(c.diskPath(name))
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func decodeTexture(raw []byte) (*image.RGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return toRGBA(img), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out
}
