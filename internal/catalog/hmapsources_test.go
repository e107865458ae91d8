package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateAndGetHmapSource(t *testing.T) {
	s := openTestStore(t)
	hs, err := s.CreateHmapSource("Newfell", "newfell.hmap", "/tmp/newfell.hmap", 4096)
	require.NoError(t, err)
	require.NotEmpty(t, hs.ID)

	loaded, err := s.GetHmapSource(hs.ID)
	require.NoError(t, err)
	require.Equal(t, "Newfell", loaded.Name)
	require.Equal(t, "newfell.hmap", loaded.FileName)
	require.Equal(t, int64(4096), loaded.FileSizeBytes)
	require.Nil(t, loaded.TotalGrids)
	require.Nil(t, loaded.SegmentCount)
}

func TestCreateHmapSourceRejectsEmptyFields(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateHmapSource("", "f.hmap", "/tmp/f.hmap", 1)
	require.Error(t, err)
}

func TestUpdateHmapSourceRenames(t *testing.T) {
	s := openTestStore(t)
	hs, err := s.CreateHmapSource("Old Name", "f.hmap", "/tmp/f.hmap", 1)
	require.NoError(t, err)

	require.NoError(t, s.UpdateHmapSource(hs.ID, "New Name"))
	loaded, err := s.GetHmapSource(hs.ID)
	require.NoError(t, err)
	require.Equal(t, "New Name", loaded.Name)
}

func TestDeleteHmapSourceForbiddenWhileReferenced(t *testing.T) {
	s := openTestStore(t)
	pm, err := s.CreatePublicMap("Refs", "", "user-1")
	require.NoError(t, err)
	hs, err := s.CreateHmapSource("Source", "f.hmap", "/tmp/f.hmap", 1)
	require.NoError(t, err)
	_, err = s.AddHmapSource(pm.ID, hs.ID, 0)
	require.NoError(t, err)

	err = s.DeleteHmapSource(hs.ID)
	require.Error(t, err)

	require.NoError(t, s.RemoveSource((mustSingleLink(t, s, pm.ID)).ID))
	require.NoError(t, s.DeleteHmapSource(hs.ID))
}

func mustSingleLink(t *testing.T, s *Store, mapID string) PublicMapHmapSource {
	t.Helper()
	links, err := s.ListHmapSources(mapID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	return links[0]
}

func TestAnalyzeHmapFilePersistsSummary(t *testing.T) {
	s := openTestStore(t)
	hs, err := s.CreateHmapSource("Source", "f.hmap", "/tmp/f.hmap", 1)
	require.NoError(t, err)

	err = s.AnalyzeHmapFile(hs.ID, func(filePath string) (int, int, [4]int, bool, error) {
		require.Equal(t, "/tmp/f.hmap", filePath)
		return 42, 3, [4]int{-1, 1, -2, 2}, true, nil
	})
	require.NoError(t, err)

	loaded, err := s.GetHmapSource(hs.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.TotalGrids)
	require.Equal(t, 42, *loaded.TotalGrids)
	require.NotNil(t, loaded.SegmentCount)
	require.Equal(t, 3, *loaded.SegmentCount)
	require.NotNil(t, loaded.MinX)
	require.Equal(t, -1, *loaded.MinX)
	require.False(t, loaded.AnalyzedAt.IsZero())
}
