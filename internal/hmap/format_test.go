package hmap

import (
	"bytes"
	"testing"
)

func sampleGrid(segID int64, tx, ty int32) Grid {
	var g Grid
	g.SegmentID = segID
	g.TileX, g.TileY = tx, ty
	g.Tilesets = []Tileset{{ResourceName: "gfx/tiles/grass"}}
	for i := range g.TileIndices {
		g.TileIndices[i] = 0
	}
	return g
}

func TestDecodeRoundTrip(t *testing.T) {
	d := &Data{
		Grids: []Grid{sampleGrid(1, 0, 0), sampleGrid(1, 1, 0)},
		Markers: []SMarker{
			{ObjectID: 42, TileX: 150, TileY: 250, Name: "Camp", ResourceName: "gfx/terobjs/thingwall"},
		},
	}
	raw := encodeForTest(d)

	got, err := Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Grids) != 2 {
		t.Fatalf("got %d grids, want 2", len(got.Grids))
	}
	if got.Grids[0].TileX != 0 || got.Grids[1].TileX != 1 {
		t.Fatalf("unexpected grid tile coords: %+v", got.Grids)
	}
	if len(got.Markers) != 1 || got.Markers[0].ObjectID != 42 {
		t.Fatalf("unexpected markers: %+v", got.Markers)
	}
}

func TestDecodeBadSignature(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("not a valid hmap file header")))
	if err == nil {
		t.Fatal("expected error for bad signature")
	}
	if _, ok := err.(*ErrInvalidFormat); !ok {
		t.Fatalf("expected *ErrInvalidFormat, got %T", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte(Magic)))
	if err == nil {
		t.Fatal("expected error for truncated input")
	}
}

func TestDecodeUnknownMarkerKindSkipped(t *testing.T) {
	d := &Data{Grids: []Grid{sampleGrid(1, 0, 0)}}
	raw := encodeForTest(d)

	// Replace the marker count (0) with 1 and append an unknown-kind record.
	raw = raw[:len(raw)-4] // strip the trailing int32(0) marker count
	var extra bytes.Buffer
	writeInt32(&extra, 1)
	extra.WriteByte('X')
	writeUint64(&extra, 7)
	writeInt32(&extra, 1)
	writeInt32(&extra, 2)
	writeString(&extra, "mystery")

	full := append(raw, extra.Bytes()...)
	got, err := Decode(bytes.NewReader(full))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Markers) != 0 {
		t.Fatalf("expected unknown marker kind to be skipped, got %+v", got.Markers)
	}
}
