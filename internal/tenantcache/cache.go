// Package tenantcache serves per-tenant 400x400 large tiles, generating
// on demand and pre-generating in the background (C10, SPEC_FULL.md
// §4.10). It layers a memory LRU, a short-TTL negative cache, a disk
// cache, and request coalescing in front of on-the-fly composition.
package tenantcache

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/haven-hearth/publicmap/internal/compose"
	"github.com/haven-hearth/publicmap/internal/coordmath"
	"github.com/haven-hearth/publicmap/internal/imaging"
)

// Key identifies one large tile.
type Key struct {
	TenantID string
	MapID    string
	Zoom     int
	X, Y     int
}

const (
	memCapacity        = 500
	negCapacity        = 10_000
	negTTL             = 5 * time.Minute
	catalogConcurrency = 8
)

// ZoomZeroSource loads the (up to 16) base-tile entries covering the
// 4x4 block at output coordinate (tx,ty), keyed by their zoom-0
// unified cell. It is the catalog-bound collaborator for zoom-0
// generation (§4.10 step 5).
type ZoomZeroSource func(ctx context.Context, tenantID, mapID string, tx, ty int) (map[compose.Cell]compose.Entry, error)

// Cache is the per-tenant large-tile cache singleton.
type Cache struct {
	gridStorage string
	source      ZoomZeroSource

	mem *lru.Cache[Key, []byte]
	neg *lru.Cache[Key, time.Time]

	group singleflight.Group
	sem   chan struct{} // catalog semaphore, zoom-0 only

	statsMu sync.Mutex
	stats   map[string]*Stats
}

// Stats are per-tenant operator-insight counters; not used for
// correctness (§4.10).
type Stats struct {
	MemoryHit        int64
	DiskHit          int64
	NegativeHit      int64
	Coalesced        int64
	Generated        int64
	Failed           int64
	DirtyInvalidated int64
	GenerationTime   time.Duration
}

// New creates a Cache rooted at gridStorage, backed by source for
// zoom-0 catalog reads.
func New(gridStorage string, source ZoomZeroSource) (*Cache, error) {
	mem, err := lru.New[Key, []byte](memCapacity)
	if err != nil {
		return nil, fmt.Errorf("tenantcache: creating memory LRU: %w", err)
	}
	neg, err := lru.New[Key, time.Time](negCapacity)
	if err != nil {
		return nil, fmt.Errorf("tenantcache: creating negative LRU: %w", err)
	}
	return &Cache{
		gridStorage: gridStorage,
		source:      source,
		mem:         mem,
		neg:         neg,
		sem:         make(chan struct{}, catalogConcurrency),
		stats:       make(map[string]*Stats),
	}, nil
}

func (c *Cache) statsFor(tenantID string) *Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	s, ok := c.stats[tenantID]
	if !ok {
		s = &Stats{}
		c.stats[tenantID] = s
	}
	return s
}

// Snapshot returns a copy of tenantID's counters.
func (c *Cache) Snapshot(tenantID string) Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	if s, ok := c.stats[tenantID]; ok {
		return *s
	}
	return Stats{}
}

func (c *Cache) diskPath(k Key) string {
	return filepath.Join(c.gridStorage, "tenants", k.TenantID, "large", k.MapID,
		fmt.Sprintf("%d", k.Zoom), fmt.Sprintf("%d_%d.webp", k.X, k.Y))
}

func singleflightKey(k Key) string {
	return fmt.Sprintf("%s|%s|%d|%d|%d", k.TenantID, k.MapID, k.Zoom, k.X, k.Y)
}

// GetOrGenerate returns the encoded WebP bytes for a large tile,
// generating it on demand if necessary. A nil, nil result means the
// tile legitimately has no content (§4.10 step 6).
func (c *Cache) GetOrGenerate(ctx context.Context, tenantID, mapID string, zoom, x, y int) ([]byte, error) {
	k := Key{TenantID: tenantID, MapID: mapID, Zoom: zoom, X: x, Y: y}
	stats := c.statsFor(tenantID)

	if data, ok := c.mem.Get(k); ok {
		stats.MemoryHit++
		return data, nil
	}

	if expiry, ok := c.neg.Get(k); ok {
		if time.Now().Before(expiry) {
			stats.NegativeHit++
			return nil, nil
		}
		c.neg.Remove(k)
	}

	if data, err := os.ReadFile(c.diskPath(k)); err == nil {
		stats.DiskHit++
		c.mem.Add(k, data)
		return data, nil
	}

	v, err, shared := c.group.Do(singleflightKey(k), func() (interface{}, error) {
		return c.generate(ctx, k)
	})
	if shared {
		stats.Coalesced++
	}
	if err != nil {
		stats.Failed++
		return nil, err
	}
	if v == nil {
		c.neg.Add(k, time.Now().Add(negTTL))
		return nil, nil
	}
	data := v.([]byte)
	stats.Generated++
	c.mem.Add(k, data)
	return data, nil
}

func (c *Cache) generate(ctx context.Context, k Key) ([]byte, error) {
	start := time.Now()
	defer func() {
		c.statsFor(k.TenantID).GenerationTime += time.Since(start)
	}()

	var canvas *image.RGBA
	if k.Zoom == 0 {
		c.sem <- struct{}{}
		entries, err := c.source(ctx, k.TenantID, k.MapID, k.X, k.Y)
		<-c.sem
		if err != nil {
			return nil, fmt.Errorf("tenantcache: loading zoom-0 source for %+v: %w", k, err)
		}
		img, ok := compose.Tile(entries, k.X, k.Y)
		if !ok {
			return nil, nil
		}
		canvas = img
	} else {
		img, err := c.composeFromChildren(ctx, k)
		if err != nil {
			return nil, err
		}
		if img == nil {
			return nil, nil
		}
		canvas = img
	}

	data, err := imaging.EncodeWebP(canvas, compose.EncodeQuality)
	imaging.PutRGBA(canvas)
	if err != nil {
		return nil, fmt.Errorf("tenantcache: encoding %+v: %w", k, err)
	}
	if err := writeFileEnsuringDir(c.diskPath(k), data); err != nil {
		return nil, fmt.Errorf("tenantcache: writing %+v: %w", k, err)
	}
	return data, nil
}

// composeFromChildren recurses into the four zoom-1 children with no
// catalog semaphore: doing so on a recursive path would deadlock
// against the zoom-0 acquisition above it in the call stack.
func (c *Cache) composeFromChildren(ctx context.Context, k Key) (*image.RGBA, error) {
	canvas := imaging.GetRGBA(400, 400)
	contributed := false
	for dqy := 0; dqy < 2; dqy++ {
		for dqx := 0; dqx < 2; dqx++ {
			cx, cy := 2*k.X+dqx, 2*k.Y+dqy
			childData, err := c.GetOrGenerate(ctx, k.TenantID, k.MapID, k.Zoom-1, cx, cy)
			if err != nil {
				return nil, err
			}
			if childData == nil {
				continue
			}
			child, err := imaging.DecodeWebP(childData)
			if err != nil {
				slog.Warn("tenantcache: decoding cached child tile failed", "key", k, "error", err)
				continue
			}
			resized := imaging.Resize(child, 200, 200, imaging.Nearest)
			imaging.DrawAt(canvas, resized, 200*dqx, 200*dqy)
			imaging.PutRGBA(resized)
			contributed = true
		}
	}
	if !contributed {
		imaging.PutRGBA(canvas)
		return nil, nil
	}
	return canvas, nil
}

// MarkDirty invalidates the zoom-0 large tile covering base coordinate
// (baseX, baseY) and all six ancestors, removing each from memory,
// negative, and disk storage. Idempotent.
func (c *Cache) MarkDirty(tenantID, mapID string, baseX, baseY int) {
	x, y := coordmath.BlockParent4(baseX, baseY)
	stats := c.statsFor(tenantID)
	for z := 0; z <= 6; z++ {
		k := Key{TenantID: tenantID, MapID: mapID, Zoom: z, X: x, Y: y}
		c.mem.Remove(k)
		c.neg.Remove(k)
		if err := os.Remove(c.diskPath(k)); err == nil {
			stats.DirtyInvalidated++
		}
		x, y = coordmath.ParentTile(x, y)
	}
}
