package kaomask

import (
	"math"
	"testing"
)

func TestFootprintCoverageFullyVisible(t *testing.T) {

	// 100x100 region centered on a 640x480 canvas, no rotation
	sim := Similarity{Angle: 0, Scale: 1, Pivot: DestPoint{X: 320, Y: 240}, HalfROI: 50}

	coverage := FootprintCoverage(sim, 100, 640, 480)

	if math.Abs(coverage-1) > 0.01 {
		t.Errorf("expected full coverage, got %f", coverage)
	}
}

func TestFootprintCoverageFullyOffCanvas(t *testing.T) {

	sim := Similarity{Angle: 0, Scale: 1, Pivot: DestPoint{X: -500, Y: -500}, HalfROI: 50}

	if coverage := FootprintCoverage(sim, 100, 640, 480); coverage != 0 {
		t.Errorf("expected zero coverage off canvas, got %f", coverage)
	}
}

func TestFootprintCoverageHalfVisible(t *testing.T) {

	// region centered on the left canvas edge, half the square hangs off
	sim := Similarity{Angle: 0, Scale: 1, Pivot: DestPoint{X: 0, Y: 240}, HalfROI: 50}

	coverage := FootprintCoverage(sim, 100, 640, 480)

	if math.Abs(coverage-0.5) > 0.01 {
		t.Errorf("expected half coverage, got %f", coverage)
	}
}

func TestFootprintCoverageRotated(t *testing.T) {

	// a rotated on-canvas square still covers fully
	sim := Similarity{Angle: math.Pi / 4, Scale: 1, Pivot: DestPoint{X: 320, Y: 240}, HalfROI: 50}

	coverage := FootprintCoverage(sim, 100, 640, 480)

	if math.Abs(coverage-1) > 0.01 {
		t.Errorf("expected full coverage for rotated square, got %f", coverage)
	}
}

func TestFootprintCoverageScaled(t *testing.T) {

	// scale blows the region up far beyond the canvas, coverage is the
	// canvas share of the scaled quad
	sim := Similarity{Angle: 0, Scale: 100, Pivot: DestPoint{X: 320, Y: 240}, HalfROI: 50}

	coverage := FootprintCoverage(sim, 100, 640, 480)

	if coverage <= 0 || coverage >= 0.1 {
		t.Errorf("expected small positive coverage, got %f", coverage)
	}
}

func TestFootprintCoverageDegenerateQuad(t *testing.T) {

	sim := Similarity{Angle: 0, Scale: 0, Pivot: DestPoint{X: 320, Y: 240}, HalfROI: 0}

	if coverage := FootprintCoverage(sim, 0, 640, 480); coverage != 0 {
		t.Errorf("expected zero coverage for degenerate quad, got %f", coverage)
	}
}
