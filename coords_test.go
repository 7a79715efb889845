package kaomask

import (
	"math"
	"testing"
)

const epsilon = 1e-9

// floatEqual compares two floats within epsilon
func floatEqual(a, b float64) bool {
	diff := a - b
	return diff < epsilon && diff > -epsilon
}

func TestNormPointToSource(t *testing.T) {

	tests := []struct {
		norm      NormPoint
		width     int
		height    int
		expectedX float64
		expectedY float64
	}{
		{NormPoint{X: 0.5, Y: 0.5}, 640, 480, 320, 240},
		{NormPoint{X: 0, Y: 0}, 640, 480, 0, 0},
		{NormPoint{X: 1, Y: 1}, 1280, 720, 1280, 720},
		{NormPoint{X: 0.25, Y: 0.75}, 400, 400, 100, 300},
	}

	for _, tc := range tests {
		p := tc.norm.ToSource(tc.width, tc.height)

		if !floatEqual(p.X, tc.expectedX) || !floatEqual(p.Y, tc.expectedY) {
			t.Errorf("ToSource(%v, %d, %d): expected (%f, %f), got (%f, %f)",
				tc.norm, tc.width, tc.height, tc.expectedX, tc.expectedY, p.X, p.Y)
		}
	}
}

func TestSlotPointToDest(t *testing.T) {

	tests := []struct {
		slot      SlotPoint
		imageW    float64
		imageH    float64
		canvasW   float64
		canvasH   float64
		expectedX float64
		expectedY float64
	}{
		// identity when authored space matches canvas
		{SlotPoint{X: 300, Y: 400}, 720, 960, 720, 960, 300, 400},
		// canvas double the authored size
		{SlotPoint{X: 300, Y: 400}, 720, 960, 1440, 1920, 600, 800},
		// non-uniform axis scaling keeps relative position
		{SlotPoint{X: 360, Y: 480}, 720, 960, 360, 960, 180, 480},
	}

	for _, tc := range tests {
		p := tc.slot.ToDest(tc.imageW, tc.imageH, tc.canvasW, tc.canvasH)

		if !floatEqual(p.X, tc.expectedX) || !floatEqual(p.Y, tc.expectedY) {
			t.Errorf("ToDest(%v): expected (%f, %f), got (%f, %f)",
				tc.slot, tc.expectedX, tc.expectedY, p.X, p.Y)
		}
	}
}

func TestVecLenAngle(t *testing.T) {

	v := SourcePoint{X: 200, Y: 200}.Sub(SourcePoint{X: 100, Y: 200})

	if !floatEqual(v.Len(), 100) {
		t.Errorf("expected length 100, got %f", v.Len())
	}

	if !floatEqual(v.Angle(), 0) {
		t.Errorf("expected angle 0, got %f", v.Angle())
	}

	vertical := SourcePoint{X: 100, Y: 200}.Sub(SourcePoint{X: 100, Y: 100})

	if !floatEqual(vertical.Angle(), math.Pi/2) {
		t.Errorf("expected angle pi/2, got %f", vertical.Angle())
	}
}

func TestMidpoint(t *testing.T) {

	mid := SourcePoint{X: 100, Y: 200}.Mid(SourcePoint{X: 200, Y: 200})

	if !floatEqual(mid.X, 150) || !floatEqual(mid.Y, 200) {
		t.Errorf("expected midpoint (150, 200), got (%f, %f)", mid.X, mid.Y)
	}
}
