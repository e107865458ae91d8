// Package generate implements the orchestrator.Runner body: loading a
// public map's sources, aligning them into a unified coordinate space,
// composing and pyramiding output tiles, and writing markers (SPEC_FULL.md
// §4.9, tying together C2-C8 and C11). It follows the teacher's
// `tile.Generate` shape — a single exported entry point that drives the
// whole pipeline for one run and reports a summary.
package generate

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/haven-hearth/publicmap/internal/align"
	"github.com/haven-hearth/publicmap/internal/apierr"
	"github.com/haven-hearth/publicmap/internal/catalog"
	"github.com/haven-hearth/publicmap/internal/compose"
	"github.com/haven-hearth/publicmap/internal/coordmath"
	"github.com/haven-hearth/publicmap/internal/gridrender"
	"github.com/haven-hearth/publicmap/internal/hmap"
	"github.com/haven-hearth/publicmap/internal/imaging"
	"github.com/haven-hearth/publicmap/internal/markers"
	"github.com/haven-hearth/publicmap/internal/orchestrator"
	"github.com/haven-hearth/publicmap/internal/pyramid"
	"github.com/haven-hearth/publicmap/internal/texture"
)

// Generator wires the catalog, texture cache, and downstream
// invalidator together; its Run method has the orchestrator.Runner
// shape and is grounded on the teacher's single top-level
// Generate(cfg, sources, writer) entry point.
type Generator struct {
	Store       *catalog.Store
	GridStorage string
	Textures    *texture.Cache
	Invalidate  *orchestrator.Invalidator
}

// Run executes one generation for public map id, per §4.9's Start
// algorithm. It satisfies orchestrator.Runner.
func (r *Generator) Run(ctx context.Context, id string) error {
	pm, err := r.Store.GetPublicMap(id)
	if err != nil {
		return err
	}

	tenantSources, err := r.Store.ListTenantSources(id)
	if err != nil {
		return err
	}
	hmapSources, err := r.Store.ListHmapSources(id)
	if err != nil {
		return err
	}
	if len(tenantSources) == 0 && len(hmapSources) == 0 {
		return r.Store.PersistGenerationSuccess(id, 0, nil, 0)
	}

	if err := r.Store.PersistGenerationStart(id); err != nil {
		return err
	}

	outputDir := filepath.Join(r.GridStorage, "public", pm.Slug)
	if err := os.RemoveAll(outputDir); err != nil {
		failErr := fmt.Errorf("generate: clearing output dir for %s: %w", pm.Slug, err)
		r.fail(id, failErr)
		return failErr
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		failErr := fmt.Errorf("generate: recreating output dir for %s: %w", pm.Slug, err)
		r.fail(id, failErr)
		return failErr
	}

	start := time.Now()
	var (
		dict         map[compose.Cell]compose.Entry
		mlist        []markers.Marker
		runErr       error
		composeStart int
	)
	if len(tenantSources) > 0 {
		dict, mlist, runErr = r.runTenantPath(ctx, tenantSources)
		composeStart = 0
	} else {
		dict, mlist, runErr = r.runHmapPath(ctx, hmapSources)
		composeStart = 15
	}
	if runErr != nil {
		r.fail(id, runErr)
		return runErr
	}

	zoom0Count, zoomCount, bounds, err := r.writeTiles(id, composeStart, outputDir, dict)
	if err != nil {
		r.fail(id, err)
		return err
	}
	if err := markers.Write(outputDir, mlist); err != nil {
		r.fail(id, err)
		return err
	}

	var boundsArr *[4]int
	if !bounds.Empty {
		boundsArr = &[4]int{bounds.MinX, bounds.MaxX, bounds.MinY, bounds.MaxY}
	}
	duration := time.Since(start).Seconds()
	if err := r.Store.PersistGenerationSuccess(id, zoom0Count+zoomCount, boundsArr, duration); err != nil {
		return err
	}

	r.Invalidate.Notify(ctx, pm.Slug)
	return nil
}

func (r *Generator) fail(id string, err error) {
	slog.Warn("generate: run failed", "id", id, "error", err)
	if persistErr := r.Store.PersistGenerationFailure(id, err.Error()); persistErr != nil {
		slog.Warn("generate: failed to persist failure status", "id", id, "error", persistErr)
	}
}

// reportProgress persists a progress percentage, logging rather than
// failing the run if the write itself errors (§4.6/§4.7/§5).
func (r *Generator) reportProgress(id string, percent int) {
	if err := r.Store.PersistProgress(id, percent); err != nil {
		slog.Warn("generate: failed to persist progress", "id", id, "percent", percent, "error", err)
	}
}

// runTenantPath builds the unified dictionary and marker list for the
// tenant-source composition path (§4.5, §4.6, §4.8).
func (r *Generator) runTenantPath(ctx context.Context, sources []catalog.TenantSource) (map[compose.Cell]compose.Entry, []markers.Marker, error) {
	alignSources := make([]align.Source, len(sources))
	for i, src := range sources {
		grids, err := r.Store.ListGrids(src.TenantID, src.SourceMapID)
		if err != nil {
			return nil, nil, err
		}
		points := make(map[string]align.Point, len(grids))
		for _, g := range grids {
			points[g.ID] = align.Point{X: g.CoordX, Y: g.CoordY}
		}
		alignSources[i] = align.Source{
			Key:      src.ID,
			Priority: src.Priority,
			AddedAt:  src.AddedAt.UnixNano(),
			Grids:    points,
		}
	}
	offsets, warnings := align.Align(alignSources)
	for _, w := range warnings {
		slog.Warn("generate: alignment warning", "detail", w)
	}

	var entries []compose.Entry
	var cells []compose.Cell
	tenantOffset := make(map[string]align.Offset, len(sources))
	for i, src := range sources {
		offset := offsets[src.ID]
		if _, ok := tenantOffset[src.TenantID]; !ok {
			tenantOffset[src.TenantID] = offset
		}
		tiles, err := r.Store.ListZoomZeroTiles(src.TenantID, src.SourceMapID)
		if err != nil {
			return nil, nil, err
		}
		for _, t := range tiles {
			img, err := loadPNG(filepath.Join(r.GridStorage, "grids", t.File))
			if err != nil {
				slog.Warn("generate: skipping unreadable source tile", "file", t.File, "error", err)
				continue
			}
			cells = append(cells, compose.Cell{X: t.CoordX + offset.DX, Y: t.CoordY + offset.DY})
			entries = append(entries, compose.Entry{Image: img, Score: t.Cache, SourceOrder: i})
		}
	}
	dict := compose.BuildDict(entries, cells)

	var rows []markers.SourceMarker
	seenTenant := make(map[string]struct{})
	for _, src := range sources {
		if _, done := seenTenant[src.TenantID]; done {
			continue
		}
		seenTenant[src.TenantID] = struct{}{}
		mk, err := r.Store.ListThingwallMarkers(src.TenantID)
		if err != nil {
			return nil, nil, err
		}
		offset := tenantOffset[src.TenantID]
		for _, m := range mk {
			rows = append(rows, markers.SourceMarker{
				ID: m.ID, Name: m.Name, Image: m.Image,
				GridCoordX: m.GridCoordX, GridCoordY: m.GridCoordY,
				PositionX: m.PositionX, PositionY: m.PositionY,
				Hidden:       m.Hidden,
				SourceOffset: struct{ DX, DY int }{offset.DX, offset.DY},
			})
		}
	}
	return dict, markers.FromSources(rows), nil
}

// runHmapPath builds the unified dictionary and marker list for the
// HMap-source composition path. Shared grids across files are matched
// by segment id (§4.2, §4.5); the first grid seen per segment within a
// file stands for that segment's local coordinate.
func (r *Generator) runHmapPath(ctx context.Context, sources []catalog.PublicMapHmapSource) (map[compose.Cell]compose.Entry, []markers.Marker, error) {
	decoded := make([]*hmap.Data, len(sources))
	for i, src := range sources {
		data, err := decodeHmapFile(src.FilePath)
		if err != nil {
			return nil, nil, fmt.Errorf("generate: decoding hmap source %s: %w", src.FilePath, err)
		}
		decoded[i] = data
	}

	alignSources := make([]align.Source, len(sources))
	for i, src := range sources {
		points := make(map[string]align.Point)
		for _, g := range decoded[i].Grids {
			key := fmt.Sprintf("%d", g.SegmentID)
			if _, ok := points[key]; !ok {
				points[key] = align.Point{X: int(g.TileX), Y: int(g.TileY)}
			}
		}
		alignSources[i] = align.Source{
			Key:      src.ID,
			Priority: src.Priority,
			AddedAt:  src.AddedAt.UnixNano(),
			Grids:    points,
		}
	}
	offsets, warnings := align.Align(alignSources)
	for _, w := range warnings {
		slog.Warn("generate: alignment warning", "detail", w)
	}

	r.Textures.ResetRun()

	var entries []compose.Entry
	var cells []compose.Cell
	var rows []hmap.SMarker
	for i, src := range sources {
		offset := offsets[src.ID]
		for _, g := range decoded[i].Grids {
			img := gridrender.Render(ctx, g, r.Textures)
			cells = append(cells, compose.Cell{X: int(g.TileX) + offset.DX, Y: int(g.TileY) + offset.DY})
			entries = append(entries, compose.Entry{Image: img, Score: int64(src.Priority), SourceOrder: i})
		}
		for _, m := range decoded[i].Markers {
			shifted := m
			shifted.TileX += int32(offset.DX * 100)
			shifted.TileY += int32(offset.DY * 100)
			rows = append(rows, shifted)
		}
	}
	dict := compose.BuildDict(entries, cells)
	return dict, markers.FromHmap(rows), nil
}

// writeTiles composes and writes zoom 0..6, returning tile counts per
// tier and the spanned bounds. composeStart is the progress percentage
// the composer loop begins at (0 for the tenant path, 15 for the HMap
// path, per §4.6/§4.7); both converge to 50 before the pyramid stage
// takes over 50..100.
func (r *Generator) writeTiles(id string, composeStart int, outputDir string, dict map[compose.Cell]compose.Entry) (zoom0Count, zoomCount int, bounds coordmath.Bounds, err error) {
	bounds = compose.Bounds(dict)
	if bounds.Empty {
		return 0, 0, bounds, nil
	}

	minTX, maxTX, minTY, maxTY := bounds.OutputTileRange()
	totalCells := (maxTX - minTX + 1) * (maxTY - minTY + 1)
	const composeEnd = 50
	lastReported := composeStart
	r.reportProgress(id, composeStart)

	var zoom0Cells []pyramid.Cell
	var processed int
	for ty := minTY; ty <= maxTY; ty++ {
		for tx := minTX; tx <= maxTX; tx++ {
			img, ok := compose.Tile(dict, tx, ty)
			processed++
			if !ok {
				continue
			}
			if err := compose.WriteTile(outputDir, 0, tx, ty, img); err != nil {
				imaging.PutRGBA(img)
				return 0, 0, bounds, err
			}
			imaging.PutRGBA(img)
			zoom0Count++
			zoom0Cells = append(zoom0Cells, pyramid.Cell{X: tx, Y: ty})

			if totalCells > 0 {
				frac := float64(processed) / float64(totalCells)
				percent := composeStart + int(frac*float64(composeEnd-composeStart))
				if percent >= lastReported+5 {
					r.reportProgress(id, percent)
					lastReported = percent
				}
			}
		}
	}
	r.reportProgress(id, composeEnd)

	load := pyramid.LoadDisk(func(zoom, x, y int) string {
		return compose.WritePath(outputDir, zoom, x, y)
	})
	write := func(zoom, x, y int, img image.Image) error {
		zoomCount++
		return compose.WriteTile(outputDir, zoom, x, y, img)
	}
	progress := func(frac float64) {
		r.reportProgress(id, composeEnd+int(frac*float64(100-composeEnd)))
	}
	if err := pyramid.Build(zoom0Cells, load, write, progress); err != nil {
		return zoom0Count, zoomCount, bounds, err
	}
	return zoom0Count, zoomCount, bounds, nil
}

func loadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apierr.Internal(err, "opening source tile %s", path)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, apierr.Internal(err, "decoding source tile %s", path)
	}
	return img, nil
}

func decodeHmapFile(path string) (*hmap.Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return hmap.Decode(f)
}
