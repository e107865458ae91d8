package catalog

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/haven-hearth/publicmap/internal/apierr"
)

// AddTenantSource links a tenant/map pair to a public map.
func (s *Store) AddTenantSource(mapID, tenantID, sourceMapID string, priority int) (*TenantSource, error) {
	if _, err := s.GetPublicMap(mapID); err != nil {
		return nil, err
	}
	ts := &TenantSource{
		ID: uuid.NewString(), MapID: mapID, TenantID: tenantID,
		SourceMapID: sourceMapID, Priority: priority, AddedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(`
		INSERT INTO public_map_tenant_sources (id, map_id, tenant_id, source_map_id, priority, added_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ts.ID, ts.MapID, ts.TenantID, ts.SourceMapID, ts.Priority, ts.AddedAt.Unix())
	if err != nil {
		return nil, apierr.Internal(err, "adding tenant source to map %s", mapID)
	}
	return ts, nil
}

// AddHmapSource links an already-registered HmapSource entity to a
// public map.
func (s *Store) AddHmapSource(mapID, hmapSourceID string, priority int) (*PublicMapHmapSource, error) {
	if _, err := s.GetPublicMap(mapID); err != nil {
		return nil, err
	}
	if _, err := s.GetHmapSource(hmapSourceID); err != nil {
		return nil, err
	}
	link := &PublicMapHmapSource{
		ID: uuid.NewString(), MapID: mapID, HmapSourceID: hmapSourceID,
		Priority: priority, AddedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(`
		INSERT INTO public_map_hmap_sources (id, map_id, hmap_source_id, priority, added_at)
		VALUES (?, ?, ?, ?, ?)`,
		link.ID, link.MapID, link.HmapSourceID, link.Priority, link.AddedAt.Unix())
	if err != nil {
		return nil, apierr.Internal(err, "adding hmap source to map %s", mapID)
	}
	return link, nil
}

// RemoveSource deletes a tenant or HMap source link by its row id,
// trying both tables since the caller does not distinguish the kind.
func (s *Store) RemoveSource(sourceID string) error {
	res, err := s.db.Exec(`DELETE FROM public_map_tenant_sources WHERE id=?`, sourceID)
	if err != nil {
		return apierr.Internal(err, "removing tenant source %s", sourceID)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	res, err = s.db.Exec(`DELETE FROM public_map_hmap_sources WHERE id=?`, sourceID)
	if err != nil {
		return apierr.Internal(err, "removing hmap source %s", sourceID)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	return apierr.NotFound("source %s not found", sourceID)
}

// UpdateSourcePriority updates priority for either source kind.
func (s *Store) UpdateSourcePriority(sourceID string, priority int) error {
	res, err := s.db.Exec(`UPDATE public_map_tenant_sources SET priority=? WHERE id=?`, priority, sourceID)
	if err != nil {
		return apierr.Internal(err, "updating tenant source %s priority", sourceID)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	res, err = s.db.Exec(`UPDATE public_map_hmap_sources SET priority=? WHERE id=?`, priority, sourceID)
	if err != nil {
		return apierr.Internal(err, "updating hmap source %s priority", sourceID)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	return apierr.NotFound("source %s not found", sourceID)
}

// ListTenantSources returns a map's tenant sources ordered priority
// desc, addedAt asc.
func (s *Store) ListTenantSources(mapID string) ([]TenantSource, error) {
	rows, err := s.db.Query(`
		SELECT id, map_id, tenant_id, source_map_id, priority, added_at
		FROM public_map_tenant_sources WHERE map_id = ?`, mapID)
	if err != nil {
		return nil, apierr.Internal(err, "listing tenant sources for %s", mapID)
	}
	defer rows.Close()

	var out []TenantSource
	for rows.Next() {
		var ts TenantSource
		var addedAt int64
		if err := rows.Scan(&ts.ID, &ts.MapID, &ts.TenantID, &ts.SourceMapID, &ts.Priority, &addedAt); err != nil {
			return nil, apierr.Internal(err, "scanning tenant source row")
		}
		ts.AddedAt = time.Unix(addedAt, 0).UTC()
		out = append(out, ts)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].AddedAt.Before(out[j].AddedAt)
	})
	return out, nil
}

// ListHmapSources returns a map's linked HmapSources ordered priority
// desc, addedAt asc, with FilePath resolved from the joined hmap_sources
// row.
func (s *Store) ListHmapSources(mapID string) ([]PublicMapHmapSource, error) {
	rows, err := s.db.Query(`
		SELECT l.id, l.map_id, l.hmap_source_id, l.priority, l.added_at,
		       l.grids_new, l.grids_overlapping, COALESCE(l.contribution_analyzed_at, 0),
		       h.file_path
		FROM public_map_hmap_sources l
		JOIN hmap_sources h ON h.id = l.hmap_source_id
		WHERE l.map_id = ?`, mapID)
	if err != nil {
		return nil, apierr.Internal(err, "listing hmap sources for %s", mapID)
	}
	defer rows.Close()

	var out []PublicMapHmapSource
	for rows.Next() {
		var link PublicMapHmapSource
		var addedAt, analyzedAt int64
		if err := rows.Scan(&link.ID, &link.MapID, &link.HmapSourceID, &link.Priority, &addedAt,
			&link.GridsNew, &link.GridsOverlapping, &analyzedAt, &link.FilePath); err != nil {
			return nil, apierr.Internal(err, "scanning hmap source row")
		}
		link.AddedAt = time.Unix(addedAt, 0).UTC()
		if analyzedAt > 0 {
			link.ContributionAnalyzedAt = time.Unix(analyzedAt, 0).UTC()
		}
		out = append(out, link)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].AddedAt.Before(out[j].AddedAt)
	})
	return out, nil
}

// ContributionResult is the per-source outcome of AnalyzeContributions.
type ContributionResult struct {
	SourceID         string
	GridsNew         int
	GridsOverlapping int
}

// GridLister yields the set of grid coordinates an HMap source file
// defines, without requiring this package to depend on internal/hmap.
type GridLister func(filePath string) ([][2]int32, error)

// AnalyzeContributions walks a map's HMap sources in priority order
// (desc priority, asc addedAt); a grid coordinate already claimed by a
// higher-priority source counts as overlapping, otherwise as new. Per
// §9(b), counters are persisted as a side effect of this call.
func (s *Store) AnalyzeContributions(mapID string, listGrids GridLister) ([]ContributionResult, error) {
	sources, err := s.ListHmapSources(mapID)
	if err != nil {
		return nil, err
	}

	claimed := make(map[[2]int32]struct{})
	var results []ContributionResult
	for _, src := range sources {
		grids, err := listGrids(src.FilePath)
		if err != nil {
			return nil, apierr.Internal(err, "parsing hmap source %s", src.FilePath)
		}
		var fresh, overlap int
		for _, g := range grids {
			if _, taken := claimed[g]; taken {
				overlap++
				continue
			}
			claimed[g] = struct{}{}
			fresh++
		}
		if _, err := s.db.Exec(`
			UPDATE public_map_hmap_sources SET grids_new=?, grids_overlapping=?, contribution_analyzed_at=?
			WHERE id=?`, fresh, overlap, time.Now().Unix(), src.ID); err != nil {
			return nil, apierr.Internal(err, "persisting contribution counters for %s", src.ID)
		}
		results = append(results, ContributionResult{SourceID: src.ID, GridsNew: fresh, GridsOverlapping: overlap})
	}
	return results, nil
}
