package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func seedTile(t *testing.T, s *Store, tenantID, mapID string, zoom, x, y int, file string, cache int64) {
	t.Helper()
	_, err := s.db.Exec(`INSERT INTO tiles (tenant_id, map_id, zoom, coord_x, coord_y, file, cache)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, tenantID, mapID, zoom, x, y, file, cache)
	require.NoError(t, err)
}

func seedGrid(t *testing.T, s *Store, id, tenantID, mapID string, x, y int) {
	t.Helper()
	_, err := s.db.Exec(`INSERT INTO grids (id, tenant_id, map_id, coord_x, coord_y)
		VALUES (?, ?, ?, ?, ?)`, id, tenantID, mapID, x, y)
	require.NoError(t, err)
}

func seedMarker(t *testing.T, s *Store, id, tenantID, name, image string, hidden bool, gx, gy, px, py int) {
	t.Helper()
	_, err := s.db.Exec(`INSERT INTO markers (id, tenant_id, name, image, hidden, grid_coord_x, grid_coord_y, position_x, position_y)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, id, tenantID, name, image, boolInt(hidden), gx, gy, px, py)
	require.NoError(t, err)
}

func TestListZoomZeroTilesFiltersByTenantMapAndZoom(t *testing.T) {
	s := openTestStore(t)
	seedTile(t, s, "t1", "m1", 0, 0, 0, "a.png", 1)
	seedTile(t, s, "t1", "m1", 1, 0, 0, "b.png", 1) // wrong zoom
	seedTile(t, s, "t1", "m2", 0, 0, 0, "c.png", 1) // wrong map
	seedTile(t, s, "t2", "m1", 0, 0, 0, "d.png", 1) // wrong tenant

	got, err := s.ListZoomZeroTiles("t1", "m1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "a.png", got[0].File)
}

func TestListZoomZeroTilesInBlockFiltersByCoordRange(t *testing.T) {
	s := openTestStore(t)
	seedTile(t, s, "t1", "m1", 0, 4, 4, "in.png", 1)  // block (1,1): x in [4,7], y in [4,7]
	seedTile(t, s, "t1", "m1", 0, 7, 7, "in2.png", 1) // still in block (1,1)
	seedTile(t, s, "t1", "m1", 0, 8, 4, "out.png", 1) // block (2,1), out of range

	got, err := s.ListZoomZeroTilesInBlock("t1", "m1", 1, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestListAvailableTenantMapsGroupsByTenantAndMap(t *testing.T) {
	s := openTestStore(t)
	seedTile(t, s, "t1", "m1", 0, 0, 0, "a.png", 1)
	seedTile(t, s, "t1", "m1", 0, 1, 0, "b.png", 1)
	seedTile(t, s, "t1", "m2", 0, 0, 0, "c.png", 1)
	seedTile(t, s, "t1", "m1", 1, 0, 0, "d.png", 1) // zoom 1: excluded

	got, err := s.ListAvailableTenantMaps()
	require.NoError(t, err)
	require.Len(t, got, 2)

	byMap := map[string]TenantMapSummary{}
	for _, g := range got {
		byMap[g.MapID] = g
	}
	require.Equal(t, 2, byMap["m1"].TileCount)
	require.Equal(t, 1, byMap["m2"].TileCount)
}

func TestListGridsScopedToTenantAndMap(t *testing.T) {
	s := openTestStore(t)
	seedGrid(t, s, "g1", "t1", "m1", 0, 0)
	seedGrid(t, s, "g2", "t1", "m1", 1, 0)
	seedGrid(t, s, "g3", "t2", "m1", 0, 0)

	got, err := s.ListGrids("t1", "m1")
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestListThingwallMarkersFiltersHiddenAndImage(t *testing.T) {
	s := openTestStore(t)
	seedMarker(t, s, "mk1", "t1", "Wall A", "gfx/terobjs/thingwall", false, 0, 0, 5, 5)
	seedMarker(t, s, "mk2", "t1", "Wall B (hidden)", "gfx/terobjs/thingwall", true, 1, 0, 5, 5)
	seedMarker(t, s, "mk3", "t1", "Statue", "gfx/terobjs/statue", false, 2, 0, 5, 5)
	seedMarker(t, s, "mk4", "t2", "Other tenant wall", "gfx/terobjs/thingwall", false, 0, 0, 5, 5)

	got, err := s.ListThingwallMarkers("t1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "mk1", got[0].ID)
}
