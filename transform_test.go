package kaomask

import (
	"math"
	"testing"
)

// anchorsAt builds source anchors from eye positions, chin unused by the
// solver
func anchorsAt(eyeL, eyeR SourcePoint) Anchors {
	return Anchors{EyeL: eyeL, EyeR: eyeR, Chin: eyeL.Mid(eyeR)}
}

// destAt builds destination anchors from eye positions
func destAt(eyeL, eyeR DestPoint) DestAnchors {
	return DestAnchors{EyeL: eyeL, EyeR: eyeR, Chin: eyeL.Mid(eyeR)}
}

func TestSolveSimilarityHorizontal(t *testing.T) {

	// slot eye_left=[300,400] eye_right=[450,400], source eyes horizontal
	// at distance 100: no rotation, scale 150/100
	src := anchorsAt(SourcePoint{X: 100, Y: 200}, SourcePoint{X: 200, Y: 200})
	dst := destAt(DestPoint{X: 300, Y: 400}, DestPoint{X: 450, Y: 400})

	side := RoiSide(src.EyeDist(), 1.5)

	if !floatEqual(side, 150) {
		t.Errorf("expected region side 150, got %f", side)
	}

	sim := SolveSimilarity(src, dst, side)

	if !floatEqual(sim.Angle, 0) {
		t.Errorf("expected angle 0, got %f", sim.Angle)
	}

	if !floatEqual(sim.Scale, 1.5) {
		t.Errorf("expected scale 1.5, got %f", sim.Scale)
	}

	if !floatEqual(sim.Pivot.X, 375) || !floatEqual(sim.Pivot.Y, 400) {
		t.Errorf("expected pivot (375, 400), got (%f, %f)", sim.Pivot.X, sim.Pivot.Y)
	}

	if !floatEqual(sim.HalfROI, 75) {
		t.Errorf("expected half region 75, got %f", sim.HalfROI)
	}
}

func TestSolveSimilarityVerticalSource(t *testing.T) {

	// vertical source eye line against a horizontal destination requires a
	// -90 degree rotation
	src := anchorsAt(SourcePoint{X: 100, Y: 100}, SourcePoint{X: 100, Y: 200})
	dst := destAt(DestPoint{X: 300, Y: 400}, DestPoint{X: 450, Y: 400})

	sim := SolveSimilarity(src, dst, 150)

	if !floatEqual(sim.Angle, -math.Pi/2) {
		t.Errorf("expected angle -pi/2, got %f", sim.Angle)
	}

	if !floatEqual(sim.Scale, 1.5) {
		t.Errorf("expected scale 1.5, got %f", sim.Scale)
	}
}

// TestSolveSimilarityReproducesDestVec checks that for any anchor pairs the
// solved rotation and scale map the source eye vector onto the destination
// eye vector
func TestSolveSimilarityReproducesDestVec(t *testing.T) {

	tests := []struct {
		srcEyeL SourcePoint
		srcEyeR SourcePoint
		dstEyeL DestPoint
		dstEyeR DestPoint
	}{
		{SourcePoint{100, 200}, SourcePoint{200, 200}, DestPoint{300, 400}, DestPoint{450, 400}},
		{SourcePoint{100, 100}, SourcePoint{100, 200}, DestPoint{300, 400}, DestPoint{450, 400}},
		{SourcePoint{50, 80}, SourcePoint{210, 140}, DestPoint{300, 420}, DestPoint{440, 380}},
		{SourcePoint{10, 300}, SourcePoint{90, 250}, DestPoint{100, 100}, DestPoint{120, 180}},
		{SourcePoint{0, 0}, SourcePoint{1.5, 2.5}, DestPoint{600, 300}, DestPoint{610, 290}},
	}

	for _, tc := range tests {
		src := anchorsAt(tc.srcEyeL, tc.srcEyeR)
		dst := destAt(tc.dstEyeL, tc.dstEyeR)

		sim := SolveSimilarity(src, dst, 100)

		got := sim.Apply(src.EyeR.Sub(src.EyeL))
		want := dst.EyeR.Sub(dst.EyeL)

		if math.Abs(got.X-want.X) > 1e-6 || math.Abs(got.Y-want.Y) > 1e-6 {
			t.Errorf("src %v->%v dst %v->%v: transformed vector (%f, %f), expected (%f, %f)",
				tc.srcEyeL, tc.srcEyeR, tc.dstEyeL, tc.dstEyeR,
				got.X, got.Y, want.X, want.Y)
		}
	}
}

func TestSolveSimilarityDegenerateSource(t *testing.T) {

	// coincident source eyes must resolve to a finite bounded scale, not a
	// division blow-up
	src := anchorsAt(SourcePoint{X: 100, Y: 200}, SourcePoint{X: 100, Y: 200})
	dst := destAt(DestPoint{X: 300, Y: 400}, DestPoint{X: 450, Y: 400})

	sim := SolveSimilarity(src, dst, RoiSide(src.EyeDist(), 1.5))

	if math.IsInf(sim.Scale, 0) || math.IsNaN(sim.Scale) {
		t.Fatalf("degenerate source produced non-finite scale %f", sim.Scale)
	}

	// denominator floored at one pixel
	if !floatEqual(sim.Scale, 150) {
		t.Errorf("expected scale 150 with floored denominator, got %f", sim.Scale)
	}
}

func TestRoiSideFloor(t *testing.T) {

	tests := []struct {
		eyeDist  float64
		roiScale float64
		expected float64
	}{
		{100, 1.5, 150},
		{10, 1.5, 64},
		{0, 1.5, 64},
		{200, 2, 400},
		{42, 1, 64},
	}

	for _, tc := range tests {
		if got := RoiSide(tc.eyeDist, tc.roiScale); !floatEqual(got, tc.expected) {
			t.Errorf("RoiSide(%f, %f): expected %f, got %f",
				tc.eyeDist, tc.roiScale, tc.expected, got)
		}
	}
}

// TestAffineMatrixPivot checks the factor order: the region center must land
// exactly on the destination pivot, and an offset from the center must land
// rotated and scaled about the pivot
func TestAffineMatrixPivot(t *testing.T) {

	sim := Similarity{
		Angle:   math.Pi / 4,
		Scale:   2,
		Pivot:   DestPoint{X: 375, Y: 400},
		HalfROI: 75,
	}

	center := sim.MapPoint(75, 75)

	if math.Abs(center.X-375) > 1e-9 || math.Abs(center.Y-400) > 1e-9 {
		t.Errorf("region center mapped to (%f, %f), expected pivot (375, 400)",
			center.X, center.Y)
	}

	// a point offset from the region center maps to pivot plus the rotated
	// and scaled offset
	offset := SourceVec{X: 10, Y: -5}
	mapped := sim.MapPoint(75+offset.X, 75+offset.Y)
	rotated := sim.Apply(offset)

	if math.Abs(mapped.X-(375+rotated.X)) > 1e-9 ||
		math.Abs(mapped.Y-(400+rotated.Y)) > 1e-9 {
		t.Errorf("offset point mapped to (%f, %f), expected (%f, %f)",
			mapped.X, mapped.Y, 375+rotated.X, 400+rotated.Y)
	}
}

func TestAffineMatrixIdentity(t *testing.T) {

	// zero angle and unit scale reduces to a pure translation
	sim := Similarity{Angle: 0, Scale: 1, Pivot: DestPoint{X: 100, Y: 50}, HalfROI: 32}

	m := sim.AffineMatrix()

	expected := [6]float64{1, 0, 68, 0, 1, 18}

	for i := range m {
		if math.Abs(m[i]-expected[i]) > 1e-9 {
			t.Fatalf("identity matrix wrong: expected %v, got %v", expected, m)
		}
	}
}
