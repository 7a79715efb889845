package kaomask

import "math"

// The pipeline works across four distinct coordinate spaces.  Each gets its
// own point type so a value cannot silently cross spaces without an explicit
// conversion.
//
//	NormPoint   - detector output, [0,1] within the source frame
//	SourcePoint - live camera frame pixels
//	SlotPoint   - slot coordinates as authored against SlotSpec.ImageSize
//	DestPoint   - destination canvas pixels

// NormPoint is a normalized point in [0,1] within the source frame
type NormPoint struct {
	X float64
	Y float64
}

// ToSource denormalizes the point into source frame pixel space
func (p NormPoint) ToSource(width, height int) SourcePoint {
	return SourcePoint{
		X: p.X * float64(width),
		Y: p.Y * float64(height),
	}
}

// SourcePoint is a point in live camera frame pixels
type SourcePoint struct {
	X float64
	Y float64
}

// Sub returns the vector from q to p
func (p SourcePoint) Sub(q SourcePoint) SourceVec {
	return SourceVec{X: p.X - q.X, Y: p.Y - q.Y}
}

// Mid returns the midpoint between p and q
func (p SourcePoint) Mid(q SourcePoint) SourcePoint {
	return SourcePoint{X: (p.X + q.X) / 2, Y: (p.Y + q.Y) / 2}
}

// SourceVec is a displacement in source frame pixels
type SourceVec struct {
	X float64
	Y float64
}

// Len returns the vector length
func (v SourceVec) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// Angle returns the signed angle of the vector in radians
func (v SourceVec) Angle() float64 {
	return math.Atan2(v.Y, v.X)
}

// SlotPoint is a point in the space the slot coordinates were authored
// against (SlotSpec.ImageSize)
type SlotPoint struct {
	X float64
	Y float64
}

// ToDest scales the authored point into destination canvas pixels.  The
// authored space and the canvas may differ in size, each axis is scaled
// independently so the slot keeps its relative position.
func (p SlotPoint) ToDest(imageW, imageH, canvasW, canvasH float64) DestPoint {
	return DestPoint{
		X: p.X * canvasW / imageW,
		Y: p.Y * canvasH / imageH,
	}
}

// DestPoint is a point in destination canvas pixels
type DestPoint struct {
	X float64
	Y float64
}

// Sub returns the vector from q to p
func (p DestPoint) Sub(q DestPoint) DestVec {
	return DestVec{X: p.X - q.X, Y: p.Y - q.Y}
}

// Mid returns the midpoint between p and q
func (p DestPoint) Mid(q DestPoint) DestPoint {
	return DestPoint{X: (p.X + q.X) / 2, Y: (p.Y + q.Y) / 2}
}

// DestVec is a displacement in destination canvas pixels
type DestVec struct {
	X float64
	Y float64
}

// Len returns the vector length
func (v DestVec) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// Angle returns the signed angle of the vector in radians
func (v DestVec) Angle() float64 {
	return math.Atan2(v.Y, v.X)
}
