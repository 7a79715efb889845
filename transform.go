package kaomask

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// MinRoiSide is the floor for the sampled region side length, guarding
	// against degenerate tiny regions
	MinRoiSide = 64.0
	// minEyeDist floors the scale denominator so coincident source eyes
	// cannot blow up the division
	minEyeDist = 1.0
)

// Similarity is the 2D similarity transform mapping the sampled face region
// onto the destination slot.  It is computed fresh every frame and never
// persisted.
type Similarity struct {
	// Angle is the signed rotation in radians aligning the source eye line
	// with the destination eye line
	Angle float64
	// Scale is the uniform scale factor, always positive and finite
	Scale float64
	// Pivot is the destination eye midpoint the transform rotates about
	Pivot DestPoint
	// HalfROI is half the sampled region side length, used to center the
	// region on the pivot
	HalfROI float64
}

// RoiSide returns the square region side length for a given source eye
// distance and slot roi scale, floored at MinRoiSide
func RoiSide(eyeDist, roiScale float64) float64 {
	return math.Max(MinRoiSide, eyeDist*roiScale)
}

// SolveSimilarity computes the similarity transform aligning the source eye
// pair with the destination eye pair.  The source eye distance is floored at
// one pixel so degenerate geometry resolves to a finite scale instead of
// propagating an error.
func SolveSimilarity(src Anchors, dst DestAnchors, roiSide float64) Similarity {

	srcVec := src.EyeR.Sub(src.EyeL)
	dstVec := dst.EyeR.Sub(dst.EyeL)

	srcLen := math.Max(srcVec.Len(), minEyeDist)

	return Similarity{
		Angle:   dstVec.Angle() - srcVec.Angle(),
		Scale:   dstVec.Len() / srcLen,
		Pivot:   dst.EyeMid(),
		HalfROI: roiSide / 2,
	}
}

// Apply rotates and scales a source vector by the transform.  Used to verify
// the solved transform maps the source eye line onto the destination eye line.
func (s Similarity) Apply(v SourceVec) DestVec {

	sin, cos := math.Sincos(s.Angle)

	return DestVec{
		X: s.Scale * (v.X*cos - v.Y*sin),
		Y: s.Scale * (v.X*sin + v.Y*cos),
	}
}

// AffineMatrix composes the 2x3 affine matrix mapping region buffer
// coordinates onto the destination canvas.  The factor order is load-bearing:
// translate to the destination eye midpoint, rotate, scale, then translate by
// -HalfROI so the region center lands on the pivot.  Any other order
// misplaces the face.  Returned row-major as [a b tx c d ty].
func (s Similarity) AffineMatrix() [6]float64 {

	sin, cos := math.Sincos(s.Angle)

	translate := mat.NewDense(3, 3, []float64{
		1, 0, s.Pivot.X,
		0, 1, s.Pivot.Y,
		0, 0, 1,
	})

	rotate := mat.NewDense(3, 3, []float64{
		cos, -sin, 0,
		sin, cos, 0,
		0, 0, 1,
	})

	scale := mat.NewDense(3, 3, []float64{
		s.Scale, 0, 0,
		0, s.Scale, 0,
		0, 0, 1,
	})

	recenter := mat.NewDense(3, 3, []float64{
		1, 0, -s.HalfROI,
		0, 1, -s.HalfROI,
		0, 0, 1,
	})

	m := mat.NewDense(3, 3, nil)
	m.Mul(translate, rotate)
	m.Mul(m, scale)
	m.Mul(m, recenter)

	return [6]float64{
		m.At(0, 0), m.At(0, 1), m.At(0, 2),
		m.At(1, 0), m.At(1, 1), m.At(1, 2),
	}
}

// MapPoint applies the full affine matrix to a region buffer coordinate,
// returning its destination canvas position
func (s Similarity) MapPoint(x, y float64) DestPoint {

	m := s.AffineMatrix()

	return DestPoint{
		X: m[0]*x + m[1]*y + m[2],
		Y: m[3]*x + m[4]*y + m[5],
	}
}
