// Package hmap decodes the binary "Haven Mapfile 1" world-snapshot format:
// per-segment grids with tile indices and elevation maps, plus a marker
// section. See SPEC_FULL.md §4.2 for the wire format.
package hmap

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Magic is the 15-byte ASCII signature every .hmap file begins with.
const Magic = "Haven Mapfile 1"

const gridCells = 10_000 // 100 * 100

// ErrInvalidFormat is returned for a bad signature or truncated input.
type ErrInvalidFormat struct {
	Reason string
}

func (e *ErrInvalidFormat) Error() string {
	return fmt.Sprintf("hmap: invalid format: %s", e.Reason)
}

func invalid(reason string, args ...any) error {
	return &ErrInvalidFormat{Reason: fmt.Sprintf(reason, args...)}
}

// Tileset names the texture resource backing one tile-index value within
// a grid.
type Tileset struct {
	ResourceName string
}

// Grid is one decoded 100x100 world grid.
type Grid struct {
	SegmentID    int64
	TileX, TileY int32
	Tilesets     []Tileset
	TileIndices  [gridCells]uint8
	ZMap         [gridCells]float32
}

// SMarker is a surface ("S") marker: an object placed at a pixel position
// within the unified grid space, backed by a texture resource.
type SMarker struct {
	ObjectID     uint64
	TileX, TileY int32
	Name         string
	ResourceName string
}

// Data is the fully decoded contents of one .hmap file.
type Data struct {
	Grids   []Grid
	Markers []SMarker
}

// Decode parses a .hmap byte stream. Any truncation or signature mismatch
// yields an *ErrInvalidFormat.
func Decode(r io.Reader) (*Data, error) {
	br := bufio.NewReader(r)

	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, invalid("truncated signature: %v", err)
	}
	if string(magic) != Magic {
		return nil, invalid("bad signature %q", magic)
	}

	d := &Data{}

	segmentCount, err := readInt32(br)
	if err != nil {
		return nil, invalid("reading segment count: %v", err)
	}
	if segmentCount < 0 {
		return nil, invalid("negative segment count %d", segmentCount)
	}

	for s := int32(0); s < segmentCount; s++ {
		segmentID, err := readInt64(br)
		if err != nil {
			return nil, invalid("segment %d: reading segmentId: %v", s, err)
		}
		gridCount, err := readInt32(br)
		if err != nil {
			return nil, invalid("segment %d: reading gridCount: %v", s, err)
		}
		if gridCount < 0 {
			return nil, invalid("segment %d: negative gridCount %d", s, gridCount)
		}
		for g := int32(0); g < gridCount; g++ {
			grid, err := decodeGrid(br, segmentID)
			if err != nil {
				return nil, invalid("segment %d grid %d: %v", s, g, err)
			}
			d.Grids = append(d.Grids, grid)
		}
	}

	markerCount, err := readInt32(br)
	if err != nil {
		return nil, invalid("reading marker count: %v", err)
	}
	if markerCount < 0 {
		return nil, invalid("negative marker count %d", markerCount)
	}
	for m := int32(0); m < markerCount; m++ {
		marker, ok, err := decodeMarker(br)
		if err != nil {
			return nil, invalid("marker %d: %v", m, err)
		}
		if ok {
			d.Markers = append(d.Markers, marker)
		}
	}

	return d, nil
}

func decodeGrid(r io.Reader, segmentID int64) (Grid, error) {
	var g Grid
	g.SegmentID = segmentID

	tileX, err := readInt32(r)
	if err != nil {
		return g, fmt.Errorf("reading tileX: %w", err)
	}
	tileY, err := readInt32(r)
	if err != nil {
		return g, fmt.Errorf("reading tileY: %w", err)
	}
	g.TileX, g.TileY = tileX, tileY

	tilesetCount, err := readInt32(r)
	if err != nil {
		return g, fmt.Errorf("reading tileset count: %w", err)
	}
	if tilesetCount < 0 {
		return g, fmt.Errorf("negative tileset count %d", tilesetCount)
	}
	g.Tilesets = make([]Tileset, tilesetCount)
	for i := range g.Tilesets {
		name, err := readString(r)
		if err != nil {
			return g, fmt.Errorf("reading tileset %d name: %w", i, err)
		}
		g.Tilesets[i] = Tileset{ResourceName: name}
	}

	if _, err := io.ReadFull(r, g.TileIndices[:]); err != nil {
		return g, fmt.Errorf("reading tileIndices: %w", err)
	}

	zbuf := make([]byte, gridCells*4)
	if _, err := io.ReadFull(r, zbuf); err != nil {
		return g, fmt.Errorf("reading zMap: %w", err)
	}
	for i := 0; i < gridCells; i++ {
		bits := binary.LittleEndian.Uint32(zbuf[i*4 : i*4+4])
		g.ZMap[i] = float32FromBits(bits)
	}

	return g, nil
}

// decodeMarker reads one marker record. ok is false for unknown kinds,
// which are skipped (consumed with no trailing kind-specific data, since
// only the "S" kind defines a tail in this format).
func decodeMarker(r io.Reader) (SMarker, bool, error) {
	var kind [1]byte
	if _, err := io.ReadFull(r, kind[:]); err != nil {
		return SMarker{}, false, fmt.Errorf("reading kind: %w", err)
	}

	objectID, err := readUint64(r)
	if err != nil {
		return SMarker{}, false, fmt.Errorf("reading objectId: %w", err)
	}
	tileX, err := readInt32(r)
	if err != nil {
		return SMarker{}, false, fmt.Errorf("reading tileX: %w", err)
	}
	tileY, err := readInt32(r)
	if err != nil {
		return SMarker{}, false, fmt.Errorf("reading tileY: %w", err)
	}
	name, err := readString(r)
	if err != nil {
		return SMarker{}, false, fmt.Errorf("reading name: %w", err)
	}

	if kind[0] != 'S' {
		// Unknown kind: no trailing fields in this format, so there is
		// nothing further to skip.
		return SMarker{}, false, nil
	}

	resourceName, err := readString(r)
	if err != nil {
		return SMarker{}, false, fmt.Errorf("reading resourceName: %w", err)
	}

	return SMarker{
		ObjectID:     objectID,
		TileX:        tileX,
		TileY:        tileY,
		Name:         name,
		ResourceName: resourceName,
	}, true, nil
}
