// Package catalog persists public-map metadata, sources, and
// contribution-analysis counters in SQLite (C11, SPEC_FULL.md §4.11).
package catalog

import (
	"database/sql"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/haven-hearth/publicmap/internal/apierr"
)

// PublicMap is one row of the publicMaps table.
type PublicMap struct {
	ID                        string
	Name                      string
	Slug                      string
	IsActive                  bool
	CreatedBy                 string
	AutoRegenerate            bool
	RegenerateIntervalMinutes int

	GenerationStatus   string // pending | running | completed | failed
	GenerationProgress int
	GenerationError    string

	TileCount int
	MinX, MaxX, MinY, MaxY int
	HasBounds              bool

	LastGeneratedAt                time.Time
	LastGenerationDurationSeconds  float64
}

// TenantSource links a public map to a tenant/map pair composed on the
// tenant-source path.
type TenantSource struct {
	ID       string
	MapID    string
	TenantID string
	SourceMapID string
	Priority int
	AddedAt  time.Time
}

// HmapSource is an uploaded .hmap file, independent of which public
// maps (if any) reference it (§3). TotalGrids/SegmentCount/bounds are
// populated by AnalyzeHmapFile and nil until then.
type HmapSource struct {
	ID            string
	Name          string
	FileName      string
	FilePath      string
	FileSizeBytes int64

	TotalGrids             *int
	SegmentCount           *int
	MinX, MaxX, MinY, MaxY *int
	AnalyzedAt             time.Time
}

// PublicMapHmapSource links a public map to an HmapSource, with its
// own priority/addedAt and the contribution counters cached by the
// most recent AnalyzeContributions run over that map.
type PublicMapHmapSource struct {
	ID           string
	MapID        string
	HmapSourceID string
	Priority     int
	AddedAt      time.Time

	GridsNew               int
	GridsOverlapping       int
	ContributionAnalyzedAt time.Time

	// FilePath is resolved from the joined hmap_sources row.
	FilePath string
}

// Store is a SQLite-backed catalog handle, safe for concurrent use by
// multiple goroutines (the underlying *sql.DB pools its own
// connections). One Store is opened per process and shared by the
// orchestrator, tenant cache, and any request-serving code.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path and
// ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, apierr.Internal(err, "opening catalog database")
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS public_maps (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	slug TEXT NOT NULL UNIQUE,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_by TEXT NOT NULL,
	auto_regenerate INTEGER NOT NULL DEFAULT 0,
	regenerate_interval_minutes INTEGER NOT NULL DEFAULT 0,
	generation_status TEXT NOT NULL DEFAULT 'pending',
	generation_progress INTEGER NOT NULL DEFAULT 0,
	generation_error TEXT,
	tile_count INTEGER NOT NULL DEFAULT 0,
	min_x INTEGER, max_x INTEGER, min_y INTEGER, max_y INTEGER,
	has_bounds INTEGER NOT NULL DEFAULT 0,
	last_generated_at INTEGER,
	last_generation_duration_seconds REAL NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS public_map_tenant_sources (
	id TEXT PRIMARY KEY,
	map_id TEXT NOT NULL REFERENCES public_maps(id) ON DELETE CASCADE,
	tenant_id TEXT NOT NULL,
	source_map_id TEXT NOT NULL,
	priority INTEGER NOT NULL DEFAULT 0,
	added_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS hmap_sources (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	file_name TEXT NOT NULL,
	file_path TEXT NOT NULL,
	file_size_bytes INTEGER NOT NULL DEFAULT 0,
	total_grids INTEGER,
	segment_count INTEGER,
	min_x INTEGER, max_x INTEGER, min_y INTEGER, max_y INTEGER,
	analyzed_at INTEGER
);
CREATE TABLE IF NOT EXISTS public_map_hmap_sources (
	id TEXT PRIMARY KEY,
	map_id TEXT NOT NULL REFERENCES public_maps(id) ON DELETE CASCADE,
	hmap_source_id TEXT NOT NULL REFERENCES hmap_sources(id),
	priority INTEGER NOT NULL DEFAULT 0,
	added_at INTEGER NOT NULL,
	grids_new INTEGER NOT NULL DEFAULT 0,
	grids_overlapping INTEGER NOT NULL DEFAULT 0,
	contribution_analyzed_at INTEGER
);
CREATE TABLE IF NOT EXISTS tiles (
	tenant_id TEXT NOT NULL,
	map_id TEXT NOT NULL,
	zoom INTEGER NOT NULL,
	coord_x INTEGER NOT NULL,
	coord_y INTEGER NOT NULL,
	file TEXT NOT NULL,
	cache INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS grids (
	id TEXT NOT NULL,
	tenant_id TEXT NOT NULL,
	map_id TEXT NOT NULL,
	coord_x INTEGER NOT NULL,
	coord_y INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS markers (
	id TEXT NOT NULL,
	tenant_id TEXT NOT NULL,
	name TEXT NOT NULL,
	image TEXT NOT NULL,
	hidden INTEGER NOT NULL DEFAULT 0,
	grid_coord_x INTEGER NOT NULL,
	grid_coord_y INTEGER NOT NULL,
	position_x INTEGER NOT NULL,
	position_y INTEGER NOT NULL
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return apierr.Internal(err, "applying catalog schema")
	}
	return nil
}

// CreatePublicMap generates a unique slug from slug (falling back to
// name) and inserts a new row.
func (s *Store) CreatePublicMap(name, slugHint string, createdBy string) (*PublicMap, error) {
	if name == "" {
		return nil, apierr.InvalidArgument("name must not be empty")
	}
	base := Slug(firstNonEmpty(slugHint, name))
	unique := UniqueSlug(base, func(candidate string) bool {
		var exists int
		_ = s.db.QueryRow(`SELECT 1 FROM public_maps WHERE slug = ?`, candidate).Scan(&exists)
		return exists == 1
	})

	pm := &PublicMap{
		ID:               uuid.NewString(),
		Name:             name,
		Slug:             unique,
		IsActive:         true,
		CreatedBy:        createdBy,
		GenerationStatus: "pending",
	}
	_, err := s.db.Exec(`
		INSERT INTO public_maps (id, name, slug, is_active, created_by, generation_status)
		VALUES (?, ?, ?, 1, ?, 'pending')`,
		pm.ID, pm.Name, pm.Slug, pm.CreatedBy)
	if err != nil {
		return nil, apierr.Internal(err, "inserting public map")
	}
	slog.Info("catalog: created public map", "id", pm.ID, "slug", pm.Slug)
	return pm, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// UpdatePublicMap applies the given non-nil fields to the row.
func (s *Store) UpdatePublicMap(id string, name *string, isActive *bool, autoRegenerate *bool, regenerateIntervalMinutes *int) error {
	pm, err := s.GetPublicMap(id)
	if err != nil {
		return err
	}
	if name != nil {
		pm.Name = *name
	}
	if isActive != nil {
		pm.IsActive = *isActive
	}
	if autoRegenerate != nil {
		pm.AutoRegenerate = *autoRegenerate
	}
	if regenerateIntervalMinutes != nil {
		pm.RegenerateIntervalMinutes = *regenerateIntervalMinutes
	}
	_, err = s.db.Exec(`
		UPDATE public_maps SET name=?, is_active=?, auto_regenerate=?, regenerate_interval_minutes=?
		WHERE id=?`,
		pm.Name, boolInt(pm.IsActive), boolInt(pm.AutoRegenerate), pm.RegenerateIntervalMinutes, id)
	if err != nil {
		return apierr.Internal(err, "updating public map %s", id)
	}
	return nil
}

// DeletePublicMap recursively removes the tile directory for the map's
// slug and cascade-deletes its sources and row.
func (s *Store) DeletePublicMap(id string, gridStorage string) error {
	pm, err := s.GetPublicMap(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(publicMapDir(gridStorage, pm.Slug)); err != nil {
		return apierr.Internal(err, "removing tile directory for %s", pm.Slug)
	}
	if _, err := s.db.Exec(`DELETE FROM public_maps WHERE id=?`, id); err != nil {
		return apierr.Internal(err, "deleting public map %s", id)
	}
	return nil
}

func publicMapDir(gridStorage, slug string) string {
	return gridStorage + "/public/" + slug
}

// GetPublicMap loads one row by id.
func (s *Store) GetPublicMap(id string) (*PublicMap, error) {
	row := s.db.QueryRow(`
		SELECT id, name, slug, is_active, created_by, auto_regenerate,
		       regenerate_interval_minutes, generation_status, generation_progress,
		       COALESCE(generation_error, ''), tile_count,
		       min_x, max_x, min_y, max_y, has_bounds,
		       last_generated_at, last_generation_duration_seconds
		FROM public_maps WHERE id = ?`, id)

	var pm PublicMap
	var isActive, autoRegen, hasBounds int
	var minX, maxX, minY, maxY sql.NullInt64
	var lastGeneratedAt sql.NullInt64
	err := row.Scan(&pm.ID, &pm.Name, &pm.Slug, &isActive, &pm.CreatedBy, &autoRegen,
		&pm.RegenerateIntervalMinutes, &pm.GenerationStatus, &pm.GenerationProgress,
		&pm.GenerationError, &pm.TileCount,
		&minX, &maxX, &minY, &maxY, &hasBounds,
		&lastGeneratedAt, &pm.LastGenerationDurationSeconds)
	if err == sql.ErrNoRows {
		return nil, apierr.NotFound("public map %s not found", id)
	}
	if err != nil {
		return nil, apierr.Internal(err, "loading public map %s", id)
	}
	pm.IsActive = isActive == 1
	pm.AutoRegenerate = autoRegen == 1
	pm.HasBounds = hasBounds == 1
	if pm.HasBounds {
		pm.MinX, pm.MaxX, pm.MinY, pm.MaxY = int(minX.Int64), int(maxX.Int64), int(minY.Int64), int(maxY.Int64)
	}
	if lastGeneratedAt.Valid {
		pm.LastGeneratedAt = time.Unix(lastGeneratedAt.Int64, 0).UTC()
	}
	return &pm, nil
}

// ListPublicMaps loads every public map row, ordered by name. Used by
// the orchestrator's auto-regeneration scan and by admin listing.
func (s *Store) ListPublicMaps() ([]PublicMap, error) {
	rows, err := s.db.Query(`
		SELECT id, name, slug, is_active, created_by, auto_regenerate,
		       regenerate_interval_minutes, generation_status, generation_progress,
		       COALESCE(generation_error, ''), tile_count,
		       min_x, max_x, min_y, max_y, has_bounds,
		       last_generated_at, last_generation_duration_seconds
		FROM public_maps ORDER BY name`)
	if err != nil {
		return nil, apierr.Internal(err, "listing public maps")
	}
	defer rows.Close()

	var out []PublicMap
	for rows.Next() {
		var pm PublicMap
		var isActive, autoRegen, hasBounds int
		var minX, maxX, minY, maxY sql.NullInt64
		var lastGeneratedAt sql.NullInt64
		if err := rows.Scan(&pm.ID, &pm.Name, &pm.Slug, &isActive, &pm.CreatedBy, &autoRegen,
			&pm.RegenerateIntervalMinutes, &pm.GenerationStatus, &pm.GenerationProgress,
			&pm.GenerationError, &pm.TileCount,
			&minX, &maxX, &minY, &maxY, &hasBounds,
			&lastGeneratedAt, &pm.LastGenerationDurationSeconds); err != nil {
			return nil, apierr.Internal(err, "scanning public map row")
		}
		pm.IsActive = isActive == 1
		pm.AutoRegenerate = autoRegen == 1
		pm.HasBounds = hasBounds == 1
		if pm.HasBounds {
			pm.MinX, pm.MaxX, pm.MinY, pm.MaxY = int(minX.Int64), int(maxX.Int64), int(minY.Int64), int(maxY.Int64)
		}
		if lastGeneratedAt.Valid {
			pm.LastGeneratedAt = time.Unix(lastGeneratedAt.Int64, 0).UTC()
		}
		out = append(out, pm)
	}
	return out, rows.Err()
}

// ListTenantMapIDs returns, for every distinct tenant referenced by any
// public map's tenant sources, the list of source map ids it
// contributes. Used to drive the tenant cache's background
// pre-generation daemon (§4.10).
func (s *Store) ListTenantMapIDs() (map[string][]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT tenant_id, source_map_id FROM public_map_tenant_sources`)
	if err != nil {
		return nil, apierr.Internal(err, "listing tenant map ids")
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var tenantID, mapID string
		if err := rows.Scan(&tenantID, &mapID); err != nil {
			return nil, apierr.Internal(err, "scanning tenant map id row")
		}
		out[tenantID] = append(out[tenantID], mapID)
	}
	return out, rows.Err()
}

// FindBySlug loads one row by slug.
func (s *Store) FindBySlug(slug string) (*PublicMap, error) {
	var id string
	err := s.db.QueryRow(`SELECT id FROM public_maps WHERE slug = ?`, slug).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, apierr.NotFound("public map with slug %q not found", slug)
	}
	if err != nil {
		return nil, apierr.Internal(err, "looking up slug %q", slug)
	}
	return s.GetPublicMap(id)
}

// PersistGenerationStart marks a run as running and resets progress.
func (s *Store) PersistGenerationStart(id string) error {
	_, err := s.db.Exec(`
		UPDATE public_maps SET generation_status='running', generation_progress=0, generation_error=NULL
		WHERE id=?`, id)
	if err != nil {
		return apierr.Internal(err, "persisting generation start for %s", id)
	}
	return nil
}

// PersistProgress writes a progress percentage, capped at 99 until the
// run completes via PersistGenerationSuccess. It does not compare with
// the stored value; callers report non-decreasing percentages.
func (s *Store) PersistProgress(id string, percent int) error {
	if percent > 99 {
		percent = 99
	}
	_, err := s.db.Exec(`UPDATE public_maps SET generation_progress=? WHERE id=?`, percent, id)
	if err != nil {
		return apierr.Internal(err, "persisting progress for %s", id)
	}
	return nil
}

// PersistGenerationFailure records a failed run.
func (s *Store) PersistGenerationFailure(id string, message string) error {
	_, err := s.db.Exec(`
		UPDATE public_maps SET generation_status='failed', generation_error=? WHERE id=?`,
		message, id)
	if err != nil {
		return apierr.Internal(err, "persisting generation failure for %s", id)
	}
	return nil
}

// PersistGenerationSuccess records a completed run's counters.
func (s *Store) PersistGenerationSuccess(id string, tileCount int, bounds *[4]int, durationSeconds float64) error {
	hasBounds := 0
	var minX, maxX, minY, maxY sql.NullInt64
	if bounds != nil {
		hasBounds = 1
		minX, maxX, minY, maxY = sql.NullInt64{Int64: int64(bounds[0]), Valid: true},
			sql.NullInt64{Int64: int64(bounds[1]), Valid: true},
			sql.NullInt64{Int64: int64(bounds[2]), Valid: true},
			sql.NullInt64{Int64: int64(bounds[3]), Valid: true}
	}
	_, err := s.db.Exec(`
		UPDATE public_maps SET
			generation_status='completed', generation_progress=100, generation_error=NULL,
			tile_count=?, min_x=?, max_x=?, min_y=?, max_y=?, has_bounds=?,
			last_generated_at=?, last_generation_duration_seconds=?
		WHERE id=?`,
		tileCount, minX, maxX, minY, maxY, hasBounds,
		time.Now().Unix(), durationSeconds, id)
	if err != nil {
		return apierr.Internal(err, "persisting generation success for %s", id)
	}
	return nil
}

// Bounds is the result of GetBounds.
type Bounds struct {
	ID                          string
	Name                        string
	MinX, MaxX, MinY, MaxY      int
	HasBounds                   bool
	TileVersion                 *int64 // lastGeneratedAt.unixSeconds, or nil
}

// GetBounds returns the map's bounds plus a tileVersion derived from
// lastGeneratedAt, per §4.11.
func (s *Store) GetBounds(id string) (*Bounds, error) {
	pm, err := s.GetPublicMap(id)
	if err != nil {
		return nil, err
	}
	b := &Bounds{ID: pm.ID, Name: pm.Name, HasBounds: pm.HasBounds,
		MinX: pm.MinX, MaxX: pm.MaxX, MinY: pm.MinY, MaxY: pm.MaxY}
	if !pm.LastGeneratedAt.IsZero() {
		v := pm.LastGeneratedAt.Unix()
		b.TileVersion = &v
	}
	return b, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
