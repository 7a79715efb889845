package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/kaomask/kaomask"
	"gocv.io/x/gocv"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Guide ellipse proportions relative to the destination eye distance
const (
	guideRadiusX = 0.75
	guideRadiusY = 0.75 * 1.2
)

// GuideStyle defines the parameters for rendering the face placement guide
// ellipse
type GuideStyle struct {
	Color     color.RGBA
	Thickness int
	// DashDeg is the arc length of each dash in degrees
	DashDeg float64
	// GapDeg is the arc length of each gap in degrees
	GapDeg float64
}

// DefaultGuideStyle returns default guide ellipse settings
func DefaultGuideStyle() GuideStyle {
	return GuideStyle{
		Color:     White,
		Thickness: 2,
		DashDeg:   12,
		GapDeg:    8,
	}
}

// GuideEllipse draws a dashed ellipse centered at the destination eye
// midpoint, sized from the destination eye distance.  The guide is a visual
// aid only and draws regardless of whether a face was detected.
func GuideEllipse(img *gocv.Mat, dst kaomask.DestAnchors, style GuideStyle) {

	mid := dst.EyeMid()
	eyeDist := dst.EyeDist()

	center := image.Pt(int(mid.X), int(mid.Y))
	axes := image.Pt(int(eyeDist*guideRadiusX), int(eyeDist*guideRadiusY))

	if axes.X < 1 || axes.Y < 1 {
		return
	}

	step := style.DashDeg + style.GapDeg

	if step <= 0 {
		step = 20
	}

	// dashed outline drawn as short arc segments
	for deg := 0.0; deg < 360; deg += step {
		gocv.EllipseWithParams(img, center, axes, 0, deg, deg+style.DashDeg,
			style.Color, style.Thickness, gocv.LineAA, 0)
	}
}

// AnchorMarks draws debug circles at the source face anchor points
func AnchorMarks(img *gocv.Mat, a kaomask.Anchors) {
	gocv.Circle(img, image.Pt(int(a.EyeL.X), int(a.EyeL.Y)), 3, Green, -1)
	gocv.Circle(img, image.Pt(int(a.EyeR.X), int(a.EyeR.Y)), 3, Green, -1)
	gocv.Circle(img, image.Pt(int(a.Chin.X), int(a.Chin.Y)), 3, Yellow, -1)
}

// StampLabel writes a small text label onto the image at the given point,
// used to stamp capture metadata on exported stills
func StampLabel(img *gocv.Mat, text string, at image.Point) error {

	rgba := image.NewRGBA(image.Rect(0, 0, img.Cols(), img.Rows()))
	draw.Draw(rgba, rgba.Bounds(), image.NewUniform(transparent), image.Point{}, draw.Src)

	dr := &font.Drawer{
		Dst:  rgba,
		Src:  image.NewUniform(White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(at.X, at.Y),
	}
	dr.DrawString(text)

	overlay, err := gocv.ImageToMatRGBA(rgba)

	if err != nil {
		return err
	}
	defer overlay.Close()

	// use the text alpha as a copy mask so only the glyph pixels land
	channels := gocv.Split(overlay)
	defer func() {
		for _, ch := range channels {
			ch.Close()
		}
	}()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(overlay, &bgr, gocv.ColorRGBAToBGR)

	bgr.CopyToWithMask(img, channels[3])

	return nil
}
