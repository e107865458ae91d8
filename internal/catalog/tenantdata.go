package catalog

import "github.com/haven-hearth/publicmap/internal/apierr"

// TileRow is one zoom-0 catalog tile row, as read by the tenant-source
// composition path (§6: `tiles WHERE tenantId=? AND mapId=? AND zoom=0`).
type TileRow struct {
	CoordX, CoordY int
	File           string
	Cache          int64
}

// ListZoomZeroTiles loads every zoom-0 tile belonging to a tenant map.
func (s *Store) ListZoomZeroTiles(tenantID, mapID string) ([]TileRow, error) {
	rows, err := s.db.Query(`
		SELECT coord_x, coord_y, file, cache FROM tiles
		WHERE tenant_id = ? AND map_id = ? AND zoom = 0`, tenantID, mapID)
	if err != nil {
		return nil, apierr.Internal(err, "listing zoom-0 tiles for %s/%s", tenantID, mapID)
	}
	defer rows.Close()

	var out []TileRow
	for rows.Next() {
		var t TileRow
		if err := rows.Scan(&t.CoordX, &t.CoordY, &t.File, &t.Cache); err != nil {
			return nil, apierr.Internal(err, "scanning tile row")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListZoomZeroTilesInBlock loads the zoom-0 tiles covering the 4x4
// source-coordinate block (tx, ty), as read by the per-tenant
// large-tile cache's zoom-0 generation step (§4.10 step 5).
func (s *Store) ListZoomZeroTilesInBlock(tenantID, mapID string, tx, ty int) ([]TileRow, error) {
	rows, err := s.db.Query(`
		SELECT coord_x, coord_y, file, cache FROM tiles
		WHERE tenant_id = ? AND map_id = ? AND zoom = 0
		  AND coord_x BETWEEN ? AND ? AND coord_y BETWEEN ? AND ?`,
		tenantID, mapID, 4*tx, 4*tx+3, 4*ty, 4*ty+3)
	if err != nil {
		return nil, apierr.Internal(err, "listing zoom-0 tiles for block (%d,%d) of %s/%s", tx, ty, tenantID, mapID)
	}
	defer rows.Close()

	var out []TileRow
	for rows.Next() {
		var t TileRow
		if err := rows.Scan(&t.CoordX, &t.CoordY, &t.File, &t.Cache); err != nil {
			return nil, apierr.Internal(err, "scanning tile row")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TenantMapSummary is one row of ListAvailableTenantMaps: a tenant's
// map and how many zoom-0 catalog tiles it currently has.
type TenantMapSummary struct {
	TenantID  string
	MapID     string
	TileCount int
}

// ListAvailableTenantMaps returns, for every tenant/map pair that has
// at least one zoom-0 catalog tile, its tile count (§4.11). A tenant
// with zero zoom-0 tiles for a map has nothing to contribute yet and
// is omitted rather than reported with tileCount=0.
func (s *Store) ListAvailableTenantMaps() ([]TenantMapSummary, error) {
	rows, err := s.db.Query(`
		SELECT tenant_id, map_id, COUNT(*) FROM tiles
		WHERE zoom = 0 GROUP BY tenant_id, map_id`)
	if err != nil {
		return nil, apierr.Internal(err, "listing available tenant maps")
	}
	defer rows.Close()

	var out []TenantMapSummary
	for rows.Next() {
		var t TenantMapSummary
		if err := rows.Scan(&t.TenantID, &t.MapID, &t.TileCount); err != nil {
			return nil, apierr.Internal(err, "scanning tenant map summary row")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GridRow is one tenant grid row (§6: `grids WHERE tenantId=? AND map=?`).
type GridRow struct {
	ID             string
	CoordX, CoordY int
}

// ListGrids loads every grid id/coordinate pair for a tenant map, used
// by the alignment step to find a shared grid with the base source.
func (s *Store) ListGrids(tenantID, mapID string) ([]GridRow, error) {
	rows, err := s.db.Query(`
		SELECT id, coord_x, coord_y FROM grids WHERE tenant_id = ? AND map_id = ?`, tenantID, mapID)
	if err != nil {
		return nil, apierr.Internal(err, "listing grids for %s/%s", tenantID, mapID)
	}
	defer rows.Close()

	var out []GridRow
	for rows.Next() {
		var g GridRow
		if err := rows.Scan(&g.ID, &g.CoordX, &g.CoordY); err != nil {
			return nil, apierr.Internal(err, "scanning grid row")
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// MarkerRow is one tenant thingwall marker row (§6: `markers WHERE
// tenantId=? AND image LIKE '%thingwall%' AND hidden=false`).
type MarkerRow struct {
	ID                     string
	Name, Image            string
	Hidden                 bool
	GridCoordX, GridCoordY int
	PositionX, PositionY   int
}

// ListThingwallMarkers loads every visible thingwall marker for a
// tenant, across all of its maps.
func (s *Store) ListThingwallMarkers(tenantID string) ([]MarkerRow, error) {
	rows, err := s.db.Query(`
		SELECT id, name, image, hidden, grid_coord_x, grid_coord_y, position_x, position_y
		FROM markers WHERE tenant_id = ? AND image LIKE '%thingwall%' AND hidden = 0`, tenantID)
	if err != nil {
		return nil, apierr.Internal(err, "listing thingwall markers for %s", tenantID)
	}
	defer rows.Close()

	var out []MarkerRow
	for rows.Next() {
		var m MarkerRow
		var hidden int
		if err := rows.Scan(&m.ID, &m.Name, &m.Image, &hidden, &m.GridCoordX, &m.GridCoordY,
			&m.PositionX, &m.PositionY); err != nil {
			return nil, apierr.Internal(err, "scanning marker row")
		}
		m.Hidden = hidden == 1
		out = append(out, m)
	}
	return out, rows.Err()
}
