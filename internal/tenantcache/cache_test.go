package tenantcache

import (
	"context"
	"image"
	"image/color"
	"sync/atomic"
	"testing"

	"github.com/haven-hearth/publicmap/internal/compose"
)

func solidEntry(c color.RGBA, score int64) compose.Entry {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return compose.Entry{Image: img, Score: score}
}

func TestGetOrGenerateZoomZeroComposesAndCaches(t *testing.T) {
	var calls int32
	source := func(ctx context.Context, tenantID, mapID string, tx, ty int) (map[compose.Cell]compose.Entry, error) {
		atomic.AddInt32(&calls, 1)
		return map[compose.Cell]compose.Entry{
			{X: 4 * tx, Y: 4 * ty}: solidEntry(color.RGBA{1, 2, 3, 255}, 0),
		}, nil
	}
	c, err := New(t.TempDir(), source)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	data, err := c.GetOrGenerate(context.Background(), "tenant-1", "map-1", 0, 0, 0)
	if err != nil {
		t.Fatalf("GetOrGenerate: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty webp bytes")
	}

	if _, err := c.GetOrGenerate(context.Background(), "tenant-1", "map-1", 0, 0, 0); err != nil {
		t.Fatalf("GetOrGenerate (cached): %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("source called %d times, want 1 (second call should hit memory cache)", got)
	}

	stats := c.Snapshot("tenant-1")
	if stats.Generated != 1 || stats.MemoryHit != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestGetOrGenerateReturnsAbsentAndMemoisesNegative(t *testing.T) {
	source := func(ctx context.Context, tenantID, mapID string, tx, ty int) (map[compose.Cell]compose.Entry, error) {
		return map[compose.Cell]compose.Entry{}, nil
	}
	c, err := New(t.TempDir(), source)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	data, err := c.GetOrGenerate(context.Background(), "tenant-1", "map-1", 0, 9, 9)
	if err != nil {
		t.Fatalf("GetOrGenerate: %v", err)
	}
	if data != nil {
		t.Fatalf("expected nil (absent) for an empty source, got %d bytes", len(data))
	}

	if _, err := c.GetOrGenerate(context.Background(), "tenant-1", "map-1", 0, 9, 9); err != nil {
		t.Fatalf("GetOrGenerate (negative cache): %v", err)
	}
	stats := c.Snapshot("tenant-1")
	if stats.NegativeHit != 1 {
		t.Fatalf("expected one negative cache hit, got %+v", stats)
	}
}

func TestMarkDirtyInvalidatesCoveringZoomZeroTile(t *testing.T) {
	source := func(ctx context.Context, tenantID, mapID string, tx, ty int) (map[compose.Cell]compose.Entry, error) {
		return map[compose.Cell]compose.Entry{
			{X: 4 * tx, Y: 4 * ty}: solidEntry(color.RGBA{5, 5, 5, 255}, 0),
		}, nil
	}
	c, err := New(t.TempDir(), source)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := c.GetOrGenerate(context.Background(), "tenant-1", "map-1", 0, 0, 0); err != nil {
		t.Fatalf("GetOrGenerate: %v", err)
	}

	c.MarkDirty("tenant-1", "map-1", 1, 1)

	k := Key{TenantID: "tenant-1", MapID: "map-1", Zoom: 0, X: 0, Y: 0}
	if _, ok := c.mem.Get(k); ok {
		t.Fatal("expected memory cache entry to be removed after MarkDirty")
	}
}
