package tenantcache

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/haven-hearth/publicmap/internal/compose"
	"github.com/haven-hearth/publicmap/internal/coordmath"
	"github.com/haven-hearth/publicmap/internal/imaging"
	"github.com/haven-hearth/publicmap/internal/pyramid"
)

const pregenWorkers = 4

// ZoomReport counts tiles generated per zoom level by GenerateMissingTiles.
type ZoomReport map[int]int

// BulkZoomZeroLoader loads the full zoom-0 catalog tile set for one
// tenant map in a single query, keyed by unified cell.
type BulkZoomZeroLoader func(ctx context.Context, tenantID, mapID string) (map[compose.Cell]compose.Entry, error)

// GenerateMissingTiles fills in every missing large tile (zoom 0..6)
// for the given tenant maps. Zoom-0 generation uses the pre-loaded
// catalog dictionary and runs with up to 4 concurrent workers; zoom
// 1..6 generation reads only the filesystem, per §4.10.
func (c *Cache) GenerateMissingTiles(ctx context.Context, tenantID string, mapIDs []string, bulkLoad BulkZoomZeroLoader) (map[string]ZoomReport, error) {
	reports := make(map[string]ZoomReport, len(mapIDs))
	for _, mapID := range mapIDs {
		report, err := c.generateMissingForMap(ctx, tenantID, mapID, bulkLoad)
		if err != nil {
			return reports, fmt.Errorf("tenantcache: generating missing tiles for %s/%s: %w", tenantID, mapID, err)
		}
		reports[mapID] = report
	}
	return reports, nil
}

func (c *Cache) generateMissingForMap(ctx context.Context, tenantID, mapID string, bulkLoad BulkZoomZeroLoader) (ZoomReport, error) {
	report := make(ZoomReport)

	dict, err := bulkLoad(ctx, tenantID, mapID)
	if err != nil {
		return nil, err
	}

	required := make(map[[2]int]struct{})
	for cell := range dict {
		bx, by := coordmath.BlockParent4(cell.X, cell.Y)
		required[[2]int{bx, by}] = struct{}{}
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, pregenWorkers)
	var zoom0Present []pyramid.Cell

	for block := range required {
		bx, by := block[0], block[1]
		k := Key{TenantID: tenantID, MapID: mapID, Zoom: 0, X: bx, Y: by}
		if _, statErr := os.Stat(c.diskPath(k)); statErr == nil {
			zoom0Present = append(zoom0Present, pyramid.Cell{X: bx, Y: by})
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(bx, by int) {
			defer wg.Done()
			defer func() { <-sem }()
			img, ok := compose.Tile(dict, bx, by)
			if !ok {
				return
			}
			err := c.writeDisk(Key{TenantID: tenantID, MapID: mapID, Zoom: 0, X: bx, Y: by}, img)
			imaging.PutRGBA(img)
			if err != nil {
				return
			}
			mu.Lock()
			report[0]++
			zoom0Present = append(zoom0Present, pyramid.Cell{X: bx, Y: by})
			mu.Unlock()
		}(bx, by)
	}
	wg.Wait()

	load := pyramid.LoadDisk(func(zoom, x, y int) string {
		return c.diskPath(Key{TenantID: tenantID, MapID: mapID, Zoom: zoom, X: x, Y: y})
	})
	write := func(zoom, x, y int, img image.Image) error {
		path := c.diskPath(Key{TenantID: tenantID, MapID: mapID, Zoom: zoom, X: x, Y: y})
		if _, statErr := os.Stat(path); statErr == nil {
			return nil // already present: count only newly written tiles
		}
		data, encErr := imaging.EncodeWebP(img, compose.EncodeQuality)
		if encErr != nil {
			return encErr
		}
		if writeErr := writeFileEnsuringDir(path, data); writeErr != nil {
			return writeErr
		}
		mu.Lock()
		report[zoom]++
		mu.Unlock()
		return nil
	}

	if err := pyramid.Build(zoom0Present, load, write, nil); err != nil {
		return report, err
	}
	return report, nil
}

// writeDisk encodes and writes img to k's canonical disk path,
// creating parent directories as needed.
func (c *Cache) writeDisk(k Key, img image.Image) error {
	data, err := imaging.EncodeWebP(img, compose.EncodeQuality)
	if err != nil {
		return err
	}
	return writeFileEnsuringDir(c.diskPath(k), data)
}

func writeFileEnsuringDir(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
