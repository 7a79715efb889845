// Package detector feeds camera frames to an external face landmark detector
// and decodes its per-frame results.
package detector

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/kaomask/kaomask"
	jsoniter "github.com/json-iterator/go"
	"gocv.io/x/gocv"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Source yields normalized face landmarks for a frame.  An empty set means
// no face was detected, which is an expected per-frame state and not an
// error.
type Source interface {
	// Detect returns the landmark set for the given frame
	Detect(frame gocv.Mat) (kaomask.LandmarkSet, error)
	// Close releases detector resources
	Close() error
}

// packet is the wire shape of a detector result.  Landmarks are normalized
// (x, y) pairs, absent or empty when no face was found.
type packet struct {
	Landmarks [][2]float64 `json:"landmarks" cbor:"landmarks"`
	Score     float64      `json:"score,omitempty" cbor:"score,omitempty"`
}

// DecodePacket decodes a detector result packet.  CBOR and JSON encodings
// are both accepted, distinguished by the leading byte of the payload.
func DecodePacket(data []byte) (kaomask.LandmarkSet, error) {

	if len(data) == 0 {
		return nil, fmt.Errorf("empty detector packet")
	}

	var p packet

	// JSON packets open with an object brace, anything else is CBOR
	if data[0] == '{' {
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("error decoding JSON detector packet: %w", err)
		}
	} else {
		if err := cbor.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("error decoding CBOR detector packet: %w", err)
		}
	}

	if len(p.Landmarks) == 0 {
		// no face this frame
		return kaomask.LandmarkSet{}, nil
	}

	lm := make(kaomask.LandmarkSet, 0, len(p.Landmarks))

	for _, pt := range p.Landmarks {
		lm = append(lm, kaomask.NormPoint{X: pt[0], Y: pt[1]})
	}

	return lm, nil
}

// Static is a Source returning a fixed landmark set for every frame, used
// for offline composition and tests
type Static struct {
	Landmarks kaomask.LandmarkSet
}

// Detect returns the fixed landmark set
func (s *Static) Detect(_ gocv.Mat) (kaomask.LandmarkSet, error) {
	return s.Landmarks, nil
}

// Close is a no-op
func (s *Static) Close() error {
	return nil
}
