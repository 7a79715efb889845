// Package preprocess extracts the face region of interest from live camera
// frames ahead of compositing.
package preprocess

import (
	"fmt"
	"image"
	"image/color"

	"github.com/kaomask/kaomask"
	"gocv.io/x/gocv"
)

// transparent is the border fill for samples extending past the frame edge.
// Out-of-bounds pixels are masked away later so their content never shows.
var transparent = color.RGBA{R: 0, G: 0, B: 0, A: 0}

// Sampler extracts a square region of interest around the source face from
// the live frame into an offscreen buffer
type Sampler struct {
	// warp is the 2x3 translation matrix reused each frame
	warp gocv.Mat
	// bgra is a scratch Mat holding the frame converted to 4 channels
	bgra gocv.Mat
}

// NewSampler returns a sampler for extracting face regions from video frames
func NewSampler() *Sampler {
	s := &Sampler{
		warp: gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F),
		bgra: gocv.NewMat(),
	}

	// identity rotation part, only the translation column changes per frame
	s.warp.SetDoubleAt(0, 0, 1)
	s.warp.SetDoubleAt(0, 1, 0)
	s.warp.SetDoubleAt(1, 0, 0)
	s.warp.SetDoubleAt(1, 1, 1)

	return s
}

// Close frees memory allocated during the sampling process
func (s *Sampler) Close() error {

	if err := s.warp.Close(); err != nil {
		return err
	}

	return s.bgra.Close()
}

// Sample extracts a side x side square of the frame centered on the given
// source point into dst.  The frame is converted to BGRA so regions extending
// past the frame bounds fill with transparent pixels rather than failing,
// dst is allocated or resized to exactly side x side.
func (s *Sampler) Sample(frame gocv.Mat, center kaomask.SourcePoint, side int,
	dst *gocv.Mat) error {

	if frame.Empty() {
		return fmt.Errorf("cannot sample empty frame")
	}

	if side < 1 {
		return fmt.Errorf("invalid region side %d", side)
	}

	switch frame.Channels() {
	case 3:
		gocv.CvtColor(frame, &s.bgra, gocv.ColorBGRToBGRA)
	case 4:
		frame.CopyTo(&s.bgra)
	default:
		return fmt.Errorf("unsupported frame channel count %d", frame.Channels())
	}

	half := float64(side) / 2

	// translate so the sample center lands at the buffer center
	s.warp.SetDoubleAt(0, 2, half-center.X)
	s.warp.SetDoubleAt(1, 2, half-center.Y)

	gocv.WarpAffineWithParams(s.bgra, dst, s.warp, image.Pt(side, side),
		gocv.InterpolationLinear, gocv.BorderConstant, transparent)

	return nil
}
