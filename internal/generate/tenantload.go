package generate

import (
	"log/slog"
	"path/filepath"

	"github.com/haven-hearth/publicmap/internal/catalog"
	"github.com/haven-hearth/publicmap/internal/compose"
)

// TenantZoomZeroEntries loads a tenant map's zoom-0 tiles covering the
// 4x4 block (tx, ty) into the unified-cell dictionary shape the
// per-tenant large-tile cache composes from (§4.10 step 5). Unlike the
// public-map tenant path, no cross-source alignment applies here: a
// tenant's own tiles are already in its own coordinate space.
func TenantZoomZeroEntries(store *catalog.Store, gridStorage, tenantID, mapID string, tx, ty int) (map[compose.Cell]compose.Entry, error) {
	tiles, err := store.ListZoomZeroTilesInBlock(tenantID, mapID, tx, ty)
	if err != nil {
		return nil, err
	}
	return tileRowsToDict(gridStorage, tiles)
}

// TenantBulkZoomZeroEntries loads every zoom-0 tile for a tenant map in
// one query, for the pre-generator's batch fill (§4.10).
func TenantBulkZoomZeroEntries(store *catalog.Store, gridStorage, tenantID, mapID string) (map[compose.Cell]compose.Entry, error) {
	tiles, err := store.ListZoomZeroTiles(tenantID, mapID)
	if err != nil {
		return nil, err
	}
	return tileRowsToDict(gridStorage, tiles)
}

func tileRowsToDict(gridStorage string, tiles []catalog.TileRow) (map[compose.Cell]compose.Entry, error) {
	dict := make(map[compose.Cell]compose.Entry, len(tiles))
	for _, t := range tiles {
		img, err := loadPNG(filepath.Join(gridStorage, "grids", t.File))
		if err != nil {
			slog.Warn("generate: skipping unreadable source tile", "file", t.File, "error", err)
			continue
		}
		dict[compose.Cell{X: t.CoordX, Y: t.CoordY}] = compose.Entry{Image: img, Score: t.Cache}
	}
	return dict, nil
}
