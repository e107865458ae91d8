package compose

import (
	"image"
	"image/color"
	"testing"
)

func solid(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestBuildDictKeepsGreatestScore(t *testing.T) {
	red := solid(color.RGBA{255, 0, 0, 255})
	blue := solid(color.RGBA{0, 0, 255, 255})

	entries := []Entry{
		{Image: red, Score: 1, SourceOrder: 0},
		{Image: blue, Score: 5, SourceOrder: 1},
	}
	cells := []Cell{{0, 0}, {0, 0}}

	dict := BuildDict(entries, cells)
	if dict[Cell{0, 0}].Image != blue {
		t.Fatalf("expected higher-score entry (blue) to win")
	}
}

func TestBuildDictTieBreaksBySourceOrder(t *testing.T) {
	first := solid(color.RGBA{1, 1, 1, 255})
	second := solid(color.RGBA{2, 2, 2, 255})

	entries := []Entry{
		{Image: second, Score: 5, SourceOrder: 2},
		{Image: first, Score: 5, SourceOrder: 1},
	}
	cells := []Cell{{0, 0}, {0, 0}}

	dict := BuildDict(entries, cells)
	if dict[Cell{0, 0}].Image != first {
		t.Fatalf("expected lowest SourceOrder to win a Score tie")
	}
}

func TestTileComposesSixteenCells(t *testing.T) {
	dict := map[Cell]Entry{
		{X: 0, Y: 0}: {Image: solid(color.RGBA{9, 9, 9, 255})},
	}
	out, ok := Tile(dict, 0, 0)
	if !ok {
		t.Fatal("expected composed tile")
	}
	if got := out.RGBAAt(0, 0); got != (color.RGBA{9, 9, 9, 255}) {
		t.Fatalf("pixel (0,0) = %v, want source color", got)
	}
	if got := out.RGBAAt(399, 399); got != (color.RGBA{}) {
		t.Fatalf("uncontributed corner = %v, want transparent", got)
	}
}

func TestTileReturnsFalseWhenNoCellContributes(t *testing.T) {
	dict := map[Cell]Entry{}
	_, ok := Tile(dict, 5, 5)
	if ok {
		t.Fatal("expected no contribution for an empty dict")
	}
}

func TestBoundsEmptyForEmptyDict(t *testing.T) {
	b := Bounds(map[Cell]Entry{})
	if !b.Empty {
		t.Fatal("expected Empty bounds for an empty dict")
	}
}
