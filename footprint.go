package kaomask

import (
	"math"

	clipper "github.com/ctessum/go.clipper"
)

// clipScale converts float pixel coordinates into clipper integer space with
// sub-pixel accuracy
const clipScale = 100.0

// FootprintCoverage returns the fraction of the transformed region square
// that lands inside the destination canvas, in [0,1].  The compositor skips
// the overlay draw entirely when the footprint is fully off-canvas.
func FootprintCoverage(s Similarity, roiSide float64, canvasW, canvasH int) float64 {

	// transformed region corners as a closed quad
	corners := []DestPoint{
		s.MapPoint(0, 0),
		s.MapPoint(roiSide, 0),
		s.MapPoint(roiSide, roiSide),
		s.MapPoint(0, roiSide),
	}

	quad := make(clipper.Path, 0, 4)

	for _, c := range corners {
		quad = append(quad, &clipper.IntPoint{
			X: clipper.CInt(math.Round(c.X * clipScale)),
			Y: clipper.CInt(math.Round(c.Y * clipScale)),
		})
	}

	quadArea := pathArea(quad)

	if quadArea == 0 {
		return 0
	}

	canvas := clipper.Path{
		&clipper.IntPoint{X: 0, Y: 0},
		&clipper.IntPoint{X: clipper.CInt(canvasW) * clipScale, Y: 0},
		&clipper.IntPoint{X: clipper.CInt(canvasW) * clipScale, Y: clipper.CInt(canvasH) * clipScale},
		&clipper.IntPoint{X: 0, Y: clipper.CInt(canvasH) * clipScale},
	}

	c := clipper.NewClipper(clipper.IoNone)
	c.AddPath(quad, clipper.PtSubject, true)
	c.AddPath(canvas, clipper.PtClip, true)

	solution, ok := c.Execute1(clipper.CtIntersection, clipper.PftEvenOdd, clipper.PftEvenOdd)

	if !ok {
		return 0
	}

	var visible float64

	for _, path := range solution {
		visible += pathArea(path)
	}

	return math.Min(visible/quadArea, 1)
}

// pathArea returns the absolute polygon area by the shoelace formula
func pathArea(path clipper.Path) float64 {

	if len(path) < 3 {
		return 0
	}

	var area float64
	n := len(path)

	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += float64(path[i].X)*float64(path[j].Y) - float64(path[j].X)*float64(path[i].Y)
	}

	return math.Abs(area) / 2
}
