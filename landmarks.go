package kaomask

import (
	"encoding/binary"
	"fmt"

	"github.com/x448/float16"
)

// Face mesh landmark indices following the MediaPipe FaceMesh convention.
// The detector guarantees index stability across frames, so a given index is
// always the same semantic point.
const (
	// LeftEyeOuter is the outer corner of the left eye
	LeftEyeOuter = 33
	// RightEyeOuter is the outer corner of the right eye
	RightEyeOuter = 263
	// ChinTip approximates the tip of the chin
	ChinTip = 152
	// FaceMeshPoints is the number of landmarks in a full face mesh
	FaceMeshPoints = 468
)

// LandmarkSet is the ordered landmark sequence for a single face, normalized
// to [0,1] within the source frame.  An empty set means no face was detected
// this frame, which is an expected state and not an error.
type LandmarkSet []NormPoint

// Anchors are the three semantic face points in source frame pixels
type Anchors struct {
	EyeL SourcePoint
	EyeR SourcePoint
	Chin SourcePoint
}

// EyeMid returns the midpoint between the eye anchors
func (a Anchors) EyeMid() SourcePoint {
	return a.EyeL.Mid(a.EyeR)
}

// EyeDist returns the pixel distance between the eye anchors
func (a Anchors) EyeDist() float64 {
	return a.EyeR.Sub(a.EyeL).Len()
}

// ExtractAnchors denormalizes the fixed landmark indices into source frame
// pixel anchors.  The second return is false when the set is absent or too
// short to hold the needed indices, meaning no face this frame.  Callers must
// treat that as render-background-only, not as a fault.
func ExtractAnchors(lm LandmarkSet, width, height int) (Anchors, bool) {

	if len(lm) <= RightEyeOuter {
		return Anchors{}, false
	}

	return Anchors{
		EyeL: lm[LeftEyeOuter].ToSource(width, height),
		EyeR: lm[RightEyeOuter].ToSource(width, height),
		Chin: lm[ChinTip].ToSource(width, height),
	}, true
}

var f16LookupTable [65536]float64

func init() {
	// precompute float16 lookup table for faster conversion to float64
	for i := range f16LookupTable {
		f16 := float16.Frombits(uint16(i))
		f16LookupTable[i] = float64(f16.Float32())
	}
}

// DecodeFloat16Landmarks decodes a packed buffer of little-endian float16
// (x, y) pairs into a LandmarkSet.  NPU side detectors commonly emit their
// landmark tensor output in fp16.
func DecodeFloat16Landmarks(buf []byte) (LandmarkSet, error) {

	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("landmark buffer length %d is not a multiple of 4", len(buf))
	}

	lm := make(LandmarkSet, 0, len(buf)/4)

	for i := 0; i < len(buf); i += 4 {
		x := f16LookupTable[binary.LittleEndian.Uint16(buf[i:])]
		y := f16LookupTable[binary.LittleEndian.Uint16(buf[i+2:])]
		lm = append(lm, NormPoint{X: x, Y: y})
	}

	return lm, nil
}
