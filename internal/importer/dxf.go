package importer

import (
	"fmt"
	"math"

	"github.com/yofu/dxf"
	"github.com/yofu/dxf/entity"

	"github.com/piwi3910/PanelCut/internal/catalog"
)

// dxfTolerance is the maximum distance between endpoints treated as joined.
const dxfTolerance = 0.01

type point struct {
	X, Y float64
}

// segment represents a line segment between two 2D points, used for
// chaining disconnected LINE entities into closed outlines.
type segment struct {
	start point
	end   point
}

// ImportDXF imports pieces from a DXF drawing. Each closed LWPOLYLINE or
// chain of connected LINEs becomes a piece sized by its bounding box.
// Shapes with equal sizes are merged into one piece with a quantity.
func ImportDXF(path string) ImportResult {
	result := ImportResult{}

	drawing, err := dxf.Open(path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot open DXF file: %v", err))
		return result
	}

	entities := drawing.Entities()
	if len(entities) == 0 {
		result.Errors = append(result.Errors, "DXF file contains no entities")
		return result
	}

	var outlines [][]point
	var segments []segment
	skipped := 0

	for _, ent := range entities {
		switch e := ent.(type) {
		case *entity.LwPolyline:
			outline := lwPolylinePoints(e)
			if len(outline) >= 3 {
				outlines = append(outlines, outline)
			} else {
				result.Warnings = append(result.Warnings,
					"Skipped LWPOLYLINE with fewer than 3 vertices")
			}

		case *entity.Line:
			segments = append(segments, segment{
				start: point{X: e.Start[0], Y: e.Start[1]},
				end:   point{X: e.End[0], Y: e.End[1]},
			})

		default:
			skipped++
		}
	}
	if skipped > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Skipped %d unsupported entities", skipped))
	}

	outlines = append(outlines, chainSegments(segments, dxfTolerance)...)
	if len(outlines) == 0 {
		result.Errors = append(result.Errors, "No closed shapes found in DXF file")
		return result
	}

	type size struct{ w, h float64 }
	index := map[size]int{}
	for _, outline := range outlines {
		width, height := boundingSize(outline)
		if width < dxfTolerance || height < dxfTolerance {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Skipped degenerate shape (%.2f x %.2f mm)", width, height))
			continue
		}
		if !isRectangle(outline, dxfTolerance) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Non-rectangular shape imported as its %.1f x %.1f mm bounding box", width, height))
		}

		key := size{w: roundHundredths(width), h: roundHundredths(height)}
		if i, ok := index[key]; ok {
			result.Pieces[i].Quantity++
			continue
		}
		index[key] = len(result.Pieces)
		result.Pieces = append(result.Pieces, catalog.RawPiece{
			Label:    fmt.Sprintf("DXF Piece %d", len(result.Pieces)+1),
			Width:    key.w,
			Height:   key.h,
			Quantity: 1,
		})
	}

	return result
}

// lwPolylinePoints returns the vertices of a polyline. Bulges are ignored:
// only the bounding box of the shape is used.
func lwPolylinePoints(lw *entity.LwPolyline) []point {
	pts := make([]point, 0, len(lw.Vertices))
	for _, v := range lw.Vertices {
		pts = append(pts, point{X: v[0], Y: v[1]})
	}
	return pts
}

// chainSegments connects individual segments into closed outlines.
// tolerance is the maximum distance between endpoints to consider them connected.
// Open chains are dropped.
func chainSegments(segs []segment, tolerance float64) [][]point {
	if len(segs) == 0 {
		return nil
	}

	used := make([]bool, len(segs))
	var outlines [][]point

	for {
		startIdx := -1
		for i, u := range used {
			if !u {
				startIdx = i
				break
			}
		}
		if startIdx == -1 {
			break
		}

		chain := []point{segs[startIdx].start, segs[startIdx].end}
		used[startIdx] = true

		changed := true
		for changed {
			changed = false
			tail := chain[len(chain)-1]

			for i, seg := range segs {
				if used[i] {
					continue
				}
				if pointsClose(tail, seg.start, tolerance) {
					chain = append(chain, seg.end)
					used[i] = true
					changed = true
					break
				}
				if pointsClose(tail, seg.end, tolerance) {
					chain = append(chain, seg.start)
					used[i] = true
					changed = true
					break
				}
			}
		}

		if len(chain) >= 4 && pointsClose(chain[0], chain[len(chain)-1], tolerance) {
			outlines = append(outlines, chain[:len(chain)-1])
		}
	}

	return outlines
}

// pointsClose checks whether two points are within the given tolerance.
func pointsClose(a, b point, tolerance float64) bool {
	return math.Hypot(a.X-b.X, a.Y-b.Y) <= tolerance
}

func boundingSize(pts []point) (float64, float64) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	return maxX - minX, maxY - minY
}

// isRectangle reports whether every vertex lies on a corner of the
// axis-aligned bounding box or on one of its edges.
func isRectangle(pts []point, tolerance float64) bool {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		if math.Abs(p.X-q.X) > tolerance && math.Abs(p.Y-q.Y) > tolerance {
			return false
		}
		onX := math.Abs(p.X-minX) <= tolerance || math.Abs(p.X-maxX) <= tolerance
		onY := math.Abs(p.Y-minY) <= tolerance || math.Abs(p.Y-maxY) <= tolerance
		if !onX && !onY {
			return false
		}
	}
	return true
}

func roundHundredths(v float64) float64 {
	return math.Round(v*100) / 100
}
