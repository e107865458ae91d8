// Package markers extracts thingwall markers from either the
// tenant-source path or the HMap path into a deduplicated list,
// serialised as markers.json (C8, SPEC_FULL.md §4.8).
package markers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/haven-hearth/publicmap/internal/hmap"
)

// Marker is one deduplicated thingwall marker in the output format.
type Marker struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Image string `json:"image"`
}

// SourceMarker is a tenant-path marker row joined with its source
// grid's coordinate, before offset and unit conversion.
type SourceMarker struct {
	ID           string
	Name         string
	Image        string
	GridCoordX   int
	GridCoordY   int
	PositionX    int
	PositionY    int
	Hidden       bool
	SourceOffset struct{ DX, DY int }
}

// IsThingwall reports whether an image name identifies a thingwall
// marker.
func IsThingwall(image string) bool {
	return strings.Contains(image, "thingwall")
}

// FromSources computes absolute positions for tenant-path markers and
// deduplicates by (absX, absY), first occurrence wins.
func FromSources(rows []SourceMarker) []Marker {
	seen := make(map[[2]int]struct{}, len(rows))
	var out []Marker
	for _, r := range rows {
		if r.Hidden || !IsThingwall(r.Image) {
			continue
		}
		absX := (r.GridCoordX+r.SourceOffset.DX)*100 + r.PositionX
		absY := (r.GridCoordY+r.SourceOffset.DY)*100 + r.PositionY
		key := [2]int{absX, absY}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Marker{ID: r.ID, Name: r.Name, X: absX, Y: absY, Image: r.Image})
	}
	return out
}

// FromHmap computes absolute positions for HMap-path markers. The
// grid/position decomposition (gridX = tileX div 100, posX = tileX mod
// 100, absX = gridX*100 + posX) is algebraically tileX itself; it is
// kept explicit to mirror the tenant-path formula's shape per §4.8.
func FromHmap(smarkers []hmap.SMarker) []Marker {
	seen := make(map[[2]int]struct{}, len(smarkers))
	var out []Marker
	for _, m := range smarkers {
		if !IsThingwall(m.ResourceName) {
			continue
		}
		absX := gridDecompose(int(m.TileX))
		absY := gridDecompose(int(m.TileY))
		key := [2]int{absX, absY}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Marker{
			ID:    fmt.Sprintf("%d", m.ObjectID),
			Name:  m.Name,
			X:     absX,
			Y:     absY,
			Image: m.ResourceName,
		})
	}
	return out
}

func gridDecompose(tile int) int {
	grid := tile / 100
	pos := tile % 100
	if pos < 0 {
		pos += 100
		grid--
	}
	return grid*100 + pos
}

// Write serialises markers to {outputDir}/markers.json as a UTF-8 JSON
// array with camelCase keys.
func Write(outputDir string, ms []Marker) error {
	if ms == nil {
		ms = []Marker{}
	}
	data, err := json.Marshal(ms)
	if err != nil {
		return fmt.Errorf("markers: encoding: %w", err)
	}
	path := filepath.Join(outputDir, "markers.json")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("markers: creating output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("markers: writing %s: %w", path, err)
	}
	return nil
}
