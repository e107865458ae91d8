package hmap

import (
	"bytes"
	"encoding/binary"
	"math"
)

func floatBits(f float32) uint32 { return math.Float32bits(f) }

// encodeForTest serialises Data back to the wire format. It exists only to
// build fixtures for this package's tests; production code only decodes.
func encodeForTest(d *Data) []byte {
	var buf bytes.Buffer
	buf.WriteString(Magic)

	bySegment := map[int64][]Grid{}
	var order []int64
	for _, g := range d.Grids {
		if _, ok := bySegment[g.SegmentID]; !ok {
			order = append(order, g.SegmentID)
		}
		bySegment[g.SegmentID] = append(bySegment[g.SegmentID], g)
	}

	writeInt32(&buf, int32(len(order)))
	for _, segID := range order {
		grids := bySegment[segID]
		writeInt64(&buf, segID)
		writeInt32(&buf, int32(len(grids)))
		for _, g := range grids {
			writeInt32(&buf, g.TileX)
			writeInt32(&buf, g.TileY)
			writeInt32(&buf, int32(len(g.Tilesets)))
			for _, ts := range g.Tilesets {
				writeString(&buf, ts.ResourceName)
			}
			buf.Write(g.TileIndices[:])
			for _, z := range g.ZMap {
				var b [4]byte
				binary.LittleEndian.PutUint32(b[:], floatBits(z))
				buf.Write(b[:])
			}
		}
	}

	writeInt32(&buf, int32(len(d.Markers)))
	for _, m := range d.Markers {
		buf.WriteByte('S')
		writeUint64(&buf, m.ObjectID)
		writeInt32(&buf, m.TileX)
		writeInt32(&buf, m.TileY)
		writeString(&buf, m.Name)
		writeString(&buf, m.ResourceName)
	}

	return buf.Bytes()
}

func writeInt32(buf *bytes.Buffer, v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeInt32(buf, int32(len(s)))
	buf.WriteString(s)
}
