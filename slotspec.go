package kaomask

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

// DefaultRoiScale expands the sampled face region beyond the raw eye distance
const DefaultRoiScale = 1.5

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Slot holds the anchor points describing where a face belongs on the
// character image.  Coordinates are authored against SlotSpec.ImageSize.
type Slot struct {
	// EyeLeft is the left eye outer corner anchor [x, y]
	EyeLeft [2]float64 `json:"eye_left" validate:"required"`
	// EyeRight is the right eye outer corner anchor [x, y]
	EyeRight [2]float64 `json:"eye_right" validate:"required"`
	// Chin is the chin tip anchor [x, y]
	Chin [2]float64 `json:"chin" validate:"required"`
	// RoiScale is the multiplier expanding the sampled region beyond raw
	// eye distance, defaults to DefaultRoiScale when zero
	RoiScale float64 `json:"roi_scale" validate:"gte=0"`
}

// Preview describes the authored destination canvas dimensions
type Preview struct {
	Width  int `json:"width" validate:"gt=0"`
	Height int `json:"height" validate:"gt=0"`
}

// SlotSpec is the declarative slot description loaded once per session and
// held immutably thereafter
type SlotSpec struct {
	// ImageSize is the reference [width, height] the slot coordinates were
	// authored against
	ImageSize [2]float64 `json:"image_size" validate:"required"`
	// Slot holds the face anchor points
	Slot Slot `json:"slot" validate:"required"`
	// Preview optionally describes the authored canvas aspect
	Preview *Preview `json:"preview,omitempty"`
}

// DestAnchors are the slot anchors scaled into destination canvas pixels
type DestAnchors struct {
	EyeL DestPoint
	EyeR DestPoint
	Chin DestPoint
}

// EyeMid returns the midpoint between the destination eye anchors
func (d DestAnchors) EyeMid() DestPoint {
	return d.EyeL.Mid(d.EyeR)
}

// EyeDist returns the pixel distance between the destination eye anchors
func (d DestAnchors) EyeDist() float64 {
	return d.EyeR.Sub(d.EyeL).Len()
}

// LoadSlotSpec reads and validates a slot specification file
func LoadSlotSpec(path string) (*SlotSpec, error) {

	data, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("error reading slot spec: %w", err)
	}

	return ParseSlotSpec(data)
}

// ParseSlotSpec decodes and validates slot specification JSON
func ParseSlotSpec(data []byte) (*SlotSpec, error) {

	spec := &SlotSpec{}

	if err := json.Unmarshal(data, spec); err != nil {
		return nil, fmt.Errorf("error decoding slot spec: %w", err)
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}

	return spec, nil
}

// Validate checks the structural and geometric invariants of the spec and
// fills in the RoiScale default
func (s *SlotSpec) Validate() error {

	validate := validator.New()

	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid slot spec: %w", err)
	}

	if s.ImageSize[0] <= 0 || s.ImageSize[1] <= 0 {
		return fmt.Errorf("invalid slot spec: image_size must be positive, got %v", s.ImageSize)
	}

	// slot anchors require the left eye to sit left of the right eye
	if s.Slot.EyeLeft[0] >= s.Slot.EyeRight[0] {
		return fmt.Errorf("invalid slot spec: eye_left.x (%v) must be less than eye_right.x (%v)",
			s.Slot.EyeLeft[0], s.Slot.EyeRight[0])
	}

	if s.Slot.RoiScale == 0 {
		s.Slot.RoiScale = DefaultRoiScale
	}

	return nil
}

// EyeLeft returns the authored left eye anchor
func (s *SlotSpec) EyeLeft() SlotPoint {
	return SlotPoint{X: s.Slot.EyeLeft[0], Y: s.Slot.EyeLeft[1]}
}

// EyeRight returns the authored right eye anchor
func (s *SlotSpec) EyeRight() SlotPoint {
	return SlotPoint{X: s.Slot.EyeRight[0], Y: s.Slot.EyeRight[1]}
}

// ChinPoint returns the authored chin anchor
func (s *SlotSpec) ChinPoint() SlotPoint {
	return SlotPoint{X: s.Slot.Chin[0], Y: s.Slot.Chin[1]}
}

// DestAnchors scales the authored slot anchors into destination canvas pixels
func (s *SlotSpec) DestAnchors(canvasW, canvasH int) DestAnchors {

	w := float64(canvasW)
	h := float64(canvasH)

	return DestAnchors{
		EyeL: s.EyeLeft().ToDest(s.ImageSize[0], s.ImageSize[1], w, h),
		EyeR: s.EyeRight().ToDest(s.ImageSize[0], s.ImageSize[1], w, h),
		Chin: s.ChinPoint().ToDest(s.ImageSize[0], s.ImageSize[1], w, h),
	}
}
