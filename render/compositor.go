// Package render draws the composite surface: character background, guide
// ellipse and the masked live face overlay.
package render

import (
	"fmt"
	"image"

	"github.com/kaomask/kaomask"
	"gocv.io/x/gocv"
)

// Compositor owns the destination surface drawing for the duration of a
// frame pass.  The surface is cleared and fully redrawn every frame so no
// stale face overlay can persist across intermittent detection.
type Compositor struct {
	// width and height of the destination canvas
	width  int
	height int
	// bgScaled is the character background stretched to canvas size,
	// precomputed once
	bgScaled gocv.Mat
	// maskAlpha is the soft-edged mask reduced to a single alpha channel
	maskAlpha gocv.Mat
	// scratch is the compose target, copied to the caller surface only
	// after the full pass succeeds
	scratch gocv.Mat
	// warpMat holds the 2x3 affine matrix passed to WarpAffine
	warpMat gocv.Mat
}

// NewCompositor loads the background and mask images and prepares a
// compositor for the given canvas size.  A missing or unreadable asset is
// fatal, the session must not enter Running without both images.
func NewCompositor(backgroundPath, maskPath string, canvasW, canvasH int) (*Compositor, error) {

	bg := gocv.IMRead(backgroundPath, gocv.IMReadColor)

	if bg.Empty() {
		return nil, fmt.Errorf("error reading background image from: %s", backgroundPath)
	}
	defer bg.Close()

	mask := gocv.IMRead(maskPath, gocv.IMReadUnchanged)

	if mask.Empty() {
		return nil, fmt.Errorf("error reading mask image from: %s", maskPath)
	}
	defer mask.Close()

	return NewCompositorFromMats(bg, mask, canvasW, canvasH)
}

// NewCompositorFromMats prepares a compositor from already loaded background
// and mask Mats.  The inputs are copied and may be closed by the caller.
func NewCompositorFromMats(bg, mask gocv.Mat, canvasW, canvasH int) (*Compositor, error) {

	if canvasW < 1 || canvasH < 1 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", canvasW, canvasH)
	}

	if bg.Empty() || mask.Empty() {
		return nil, fmt.Errorf("background and mask images must not be empty")
	}

	c := &Compositor{
		width:     canvasW,
		height:    canvasH,
		bgScaled:  gocv.NewMat(),
		maskAlpha: gocv.NewMat(),
		scratch:   gocv.NewMat(),
		warpMat:   gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F),
	}

	// stretch the background to canvas dimensions once up front
	gocv.Resize(bg, &c.bgScaled, image.Pt(canvasW, canvasH), 0, 0,
		gocv.InterpolationLinear)

	// reduce the mask to a single alpha channel: alpha plane when present,
	// otherwise grayscale intensity
	switch mask.Channels() {
	case 4:
		planes := gocv.Split(mask)
		planes[3].CopyTo(&c.maskAlpha)
		for _, p := range planes {
			p.Close()
		}
	case 3:
		gocv.CvtColor(mask, &c.maskAlpha, gocv.ColorBGRToGray)
	case 1:
		mask.CopyTo(&c.maskAlpha)
	default:
		c.Close()
		return nil, fmt.Errorf("unsupported mask channel count %d", mask.Channels())
	}

	return c, nil
}

// Close frees memory held by the compositor
func (c *Compositor) Close() error {

	c.bgScaled.Close()
	c.maskAlpha.Close()
	c.scratch.Close()

	return c.warpMat.Close()
}

// Width returns the destination canvas width
func (c *Compositor) Width() int {
	return c.width
}

// Height returns the destination canvas height
func (c *Compositor) Height() int {
	return c.height
}

// Compose performs one full frame pass onto dst: clear, background, optional
// guide ellipse, then the masked face overlay when sim is non-nil.  A nil sim
// is the no-face path and renders background and guide only.  The pass is
// atomic from the caller's perspective, dst is only written after the whole
// pass succeeds, so an error leaves the previous frame's content visible.
func (c *Compositor) Compose(dst *gocv.Mat, roi gocv.Mat, sim *kaomask.Similarity,
	roiSide float64, dstAnchors kaomask.DestAnchors, guide *GuideStyle) error {

	// clear and redraw the stretched background
	c.bgScaled.CopyTo(&c.scratch)

	if guide != nil {
		GuideEllipse(&c.scratch, dstAnchors, *guide)
	}

	if sim != nil {
		if err := c.overlayFace(roi, *sim, roiSide); err != nil {
			return err
		}
	}

	c.scratch.CopyTo(dst)

	return nil
}

// overlayFace warps the sampled face region into canvas space, applies the
// soft mask as a destination-in alpha restriction and blends the result over
// the background already present in the scratch surface
func (c *Compositor) overlayFace(roi gocv.Mat, sim kaomask.Similarity,
	roiSide float64) error {

	if roi.Empty() {
		return fmt.Errorf("cannot composite empty face region")
	}

	if roi.Channels() != 4 {
		return fmt.Errorf("face region must be BGRA, got %d channels", roi.Channels())
	}

	// skip the draw when the transformed region lands fully off-canvas
	if kaomask.FootprintCoverage(sim, roiSide, c.width, c.height) <= 0 {
		return nil
	}

	m := sim.AffineMatrix()

	for i := 0; i < 6; i++ {
		c.warpMat.SetDoubleAt(i/3, i%3, m[i])
	}

	canvasSize := image.Pt(c.width, c.height)

	// face layer in canvas space, transparent outside the region footprint
	faceLayer := gocv.NewMat()
	defer faceLayer.Close()
	gocv.WarpAffineWithParams(roi, &faceLayer, c.warpMat, canvasSize,
		gocv.InterpolationLinear, gocv.BorderConstant, transparent)

	// mask stretched to the region size then warped with the same matrix so
	// its footprint tracks the face layer exactly
	side := int(roiSide)

	if side < 1 {
		side = 1
	}

	maskSized := gocv.NewMat()
	defer maskSized.Close()
	gocv.Resize(c.maskAlpha, &maskSized, image.Pt(side, side), 0, 0,
		gocv.InterpolationLinear)

	maskLayer := gocv.NewMat()
	defer maskLayer.Close()
	gocv.WarpAffineWithParams(maskSized, &maskLayer, c.warpMat, canvasSize,
		gocv.InterpolationLinear, gocv.BorderConstant, transparent)

	return c.blendLayer(faceLayer, maskLayer)
}

// blendLayer alpha-blends the face layer over the scratch surface using the
// product of the layer alpha and the warped mask alpha as the per-pixel
// weight.  This reproduces draw-then-destination-in compositing: only pixels
// inside both the sampled region and the mask footprint survive.
func (c *Compositor) blendLayer(faceLayer, maskLayer gocv.Mat) error {

	planes := gocv.Split(faceLayer)

	if len(planes) != 4 {
		for _, p := range planes {
			p.Close()
		}
		return fmt.Errorf("face layer split returned %d planes", len(planes))
	}
	defer func() {
		for _, p := range planes {
			p.Close()
		}
	}()

	// combined alpha in [0,1] as float
	layerA := gocv.NewMat()
	defer layerA.Close()
	planes[3].ConvertToWithParams(&layerA, gocv.MatTypeCV32F, 1.0/255.0, 0)

	maskA := gocv.NewMat()
	defer maskA.Close()
	maskLayer.ConvertToWithParams(&maskA, gocv.MatTypeCV32F, 1.0/255.0, 0)

	alpha := gocv.NewMat()
	defer alpha.Close()
	gocv.Multiply(layerA, maskA, &alpha)

	inverse := gocv.NewMat()
	defer inverse.Close()
	ones := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 0, 0, 0),
		alpha.Rows(), alpha.Cols(), gocv.MatTypeCV32F)
	defer ones.Close()
	gocv.Subtract(ones, alpha, &inverse)

	alpha3 := gocv.NewMat()
	defer alpha3.Close()
	gocv.Merge([]gocv.Mat{alpha, alpha, alpha}, &alpha3)

	inverse3 := gocv.NewMat()
	defer inverse3.Close()
	gocv.Merge([]gocv.Mat{inverse, inverse, inverse}, &inverse3)

	// face * alpha + background * (1 - alpha)
	face32 := gocv.NewMat()
	defer face32.Close()
	faceBGR := gocv.NewMat()
	defer faceBGR.Close()
	gocv.CvtColor(faceLayer, &faceBGR, gocv.ColorBGRAToBGR)
	faceBGR.ConvertTo(&face32, gocv.MatTypeCV32FC3)
	gocv.Multiply(face32, alpha3, &face32)

	bg32 := gocv.NewMat()
	defer bg32.Close()
	c.scratch.ConvertTo(&bg32, gocv.MatTypeCV32FC3)
	gocv.Multiply(bg32, inverse3, &bg32)

	out32 := gocv.NewMat()
	defer out32.Close()
	gocv.Add(face32, bg32, &out32)

	out32.ConvertTo(&c.scratch, gocv.MatTypeCV8UC3)

	return nil
}
