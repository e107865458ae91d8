package catalog

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/haven-hearth/publicmap/internal/apierr"
)

// CreateHmapSource registers an uploaded .hmap file as a standalone
// entity, before it is linked to any public map (§3).
func (s *Store) CreateHmapSource(name, fileName, filePath string, fileSizeBytes int64) (*HmapSource, error) {
	if name == "" || fileName == "" || filePath == "" {
		return nil, apierr.InvalidArgument("name, fileName, and filePath must not be empty")
	}
	hs := &HmapSource{
		ID: uuid.NewString(), Name: name, FileName: fileName,
		FilePath: filePath, FileSizeBytes: fileSizeBytes,
	}
	_, err := s.db.Exec(`
		INSERT INTO hmap_sources (id, name, file_name, file_path, file_size_bytes)
		VALUES (?, ?, ?, ?, ?)`, hs.ID, hs.Name, hs.FileName, hs.FilePath, hs.FileSizeBytes)
	if err != nil {
		return nil, apierr.Internal(err, "creating hmap source %s", fileName)
	}
	return hs, nil
}

// GetHmapSource loads one HmapSource by id.
func (s *Store) GetHmapSource(id string) (*HmapSource, error) {
	row := s.db.QueryRow(`
		SELECT id, name, file_name, file_path, file_size_bytes,
		       total_grids, segment_count, min_x, max_x, min_y, max_y, COALESCE(analyzed_at, 0)
		FROM hmap_sources WHERE id = ?`, id)
	hs, err := scanHmapSource(row.Scan)
	if err == sql.ErrNoRows {
		return nil, apierr.NotFound("hmap source %s not found", id)
	}
	if err != nil {
		return nil, apierr.Internal(err, "loading hmap source %s", id)
	}
	return hs, nil
}

// UpdateHmapSource updates the entity's display name.
func (s *Store) UpdateHmapSource(id string, name string) error {
	res, err := s.db.Exec(`UPDATE hmap_sources SET name=? WHERE id=?`, name, id)
	if err != nil {
		return apierr.Internal(err, "updating hmap source %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apierr.NotFound("hmap source %s not found", id)
	}
	return nil
}

// DeleteHmapSource removes a standalone HmapSource. Per §3, deletion
// is forbidden while any public map still links to it.
func (s *Store) DeleteHmapSource(id string) error {
	var refs int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM public_map_hmap_sources WHERE hmap_source_id=?`, id).Scan(&refs); err != nil {
		return apierr.Internal(err, "checking hmap source %s references", id)
	}
	if refs > 0 {
		return apierr.Conflict("hmap source %s is still referenced by %d public map source(s)", id, refs)
	}
	res, err := s.db.Exec(`DELETE FROM hmap_sources WHERE id=?`, id)
	if err != nil {
		return apierr.Internal(err, "deleting hmap source %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apierr.NotFound("hmap source %s not found", id)
	}
	return nil
}

// HmapFileAnalyzer parses a .hmap file's own structural summary,
// independent of any public map; injected since computing it requires
// decoding the file format, which this package does not depend on
// directly (mirrors GridLister's shape).
type HmapFileAnalyzer func(filePath string) (totalGrids, segmentCount int, bounds [4]int, hasBounds bool, err error)

// AnalyzeHmapFile computes and persists an HmapSource's own analysis
// fields (totalGrids, segmentCount, bounds) as of now, distinct from
// AnalyzeContributions' per-public-map counters.
func (s *Store) AnalyzeHmapFile(id string, analyze HmapFileAnalyzer) error {
	hs, err := s.GetHmapSource(id)
	if err != nil {
		return err
	}
	totalGrids, segmentCount, bounds, hasBounds, err := analyze(hs.FilePath)
	if err != nil {
		return apierr.Internal(err, "analyzing hmap source %s", id)
	}
	var minX, maxX, minY, maxY sql.NullInt64
	if hasBounds {
		minX = sql.NullInt64{Int64: int64(bounds[0]), Valid: true}
		maxX = sql.NullInt64{Int64: int64(bounds[1]), Valid: true}
		minY = sql.NullInt64{Int64: int64(bounds[2]), Valid: true}
		maxY = sql.NullInt64{Int64: int64(bounds[3]), Valid: true}
	}
	_, err = s.db.Exec(`
		UPDATE hmap_sources SET total_grids=?, segment_count=?, min_x=?, max_x=?, min_y=?, max_y=?, analyzed_at=?
		WHERE id=?`, totalGrids, segmentCount, minX, maxX, minY, maxY, time.Now().Unix(), id)
	if err != nil {
		return apierr.Internal(err, "persisting hmap source analysis %s", id)
	}
	return nil
}

func scanHmapSource(scan func(dest ...any) error) (*HmapSource, error) {
	var hs HmapSource
	var totalGrids, segmentCount sql.NullInt64
	var minX, maxX, minY, maxY sql.NullInt64
	var analyzedAt int64
	if err := scan(&hs.ID, &hs.Name, &hs.FileName, &hs.FilePath, &hs.FileSizeBytes,
		&totalGrids, &segmentCount, &minX, &maxX, &minY, &maxY, &analyzedAt); err != nil {
		return nil, err
	}
	if totalGrids.Valid {
		v := int(totalGrids.Int64)
		hs.TotalGrids = &v
	}
	if segmentCount.Valid {
		v := int(segmentCount.Int64)
		hs.SegmentCount = &v
	}
	if minX.Valid {
		v := int(minX.Int64)
		hs.MinX = &v
	}
	if maxX.Valid {
		v := int(maxX.Int64)
		hs.MaxX = &v
	}
	if minY.Valid {
		v := int(minY.Int64)
		hs.MinY = &v
	}
	if maxY.Valid {
		v := int(maxY.Int64)
		hs.MaxY = &v
	}
	if analyzedAt > 0 {
		hs.AnalyzedAt = time.Unix(analyzedAt, 0).UTC()
	}
	return &hs, nil
}
