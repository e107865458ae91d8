package texture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type countingFetcher struct {
	calls atomic.Int32
	fail  map[string]bool
}

func (f *countingFetcher) Fetch(_ context.Context, name string) ([]byte, error) {
	f.calls.Add(1)
	if f.fail[name] {
		return nil, fmt.Errorf("resource %q not found upstream", name)
	}
	img := image.NewRGBA(image.Rect(0, 0, tileWidth, tileHeight))
	for y := 0; y < tileHeight; y++ {
		for x := 0; x < tileWidth; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func TestCacheGetFetchesAndMemoises(t *testing.T) {
	fetcher := &countingFetcher{fail: map[string]bool{}}
	c, err := New(t.TempDir(), fetcher)
	require.NoError(t, err)

	img, ok := c.Get(context.Background(), "gfx/tiles/grass")
	require.True(t, ok)
	require.Equal(t, tileWidth, img.Bounds().Dx())

	_, ok = c.Get(context.Background(), "gfx/tiles/grass")
	require.True(t, ok)
	require.EqualValues(t, 1, fetcher.calls.Load(), "second Get should hit the in-memory cache, not refetch")
}

func TestCacheGetMemoisesMissing(t *testing.T) {
	fetcher := &countingFetcher{fail: map[string]bool{"gfx/tiles/ghost": true}}
	c, err := New(t.TempDir(), fetcher)
	require.NoError(t, err)

	_, ok := c.Get(context.Background(), "gfx/tiles/ghost")
	require.False(t, ok)

	_, ok = c.Get(context.Background(), "gfx/tiles/ghost")
	require.False(t, ok)
	require.EqualValues(t, 1, fetcher.calls.Load(), "missing resource should be memoised, not retried within a run")
}

func TestResetRunClearsMissing(t *testing.T) {
	fetcher := &countingFetcher{fail: map[string]bool{"gfx/tiles/ghost": true}}
	c, err := New(t.TempDir(), fetcher)
	require.NoError(t, err)

	c.Get(context.Background(), "gfx/tiles/ghost")
	c.ResetRun()
	fetcher.fail["gfx/tiles/ghost"] = false
	_, ok := c.Get(context.Background(), "gfx/tiles/ghost")
	require.True(t, ok, "after ResetRun a previously-missing resource should be retried")
}

func TestPrefetchCoalescesDuplicates(t *testing.T) {
	fetcher := &countingFetcher{fail: map[string]bool{}}
	c, err := New(t.TempDir(), fetcher)
	require.NoError(t, err)

	names := []string{"gfx/tiles/grass", "gfx/tiles/grass", "gfx/tiles/sand"}
	c.Prefetch(context.Background(), names)
	require.EqualValues(t, 2, fetcher.calls.Load())
}
