package detector

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/kaomask/kaomask"
	"gocv.io/x/gocv"
)

func TestDecodePacketJSON(t *testing.T) {

	data := []byte(`{"landmarks": [[0.25, 0.5], [0.75, 0.5]], "score": 0.98}`)

	lm, err := DecodePacket(data)

	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}

	if len(lm) != 2 {
		t.Fatalf("expected 2 landmarks, got %d", len(lm))
	}

	if lm[0].X != 0.25 || lm[0].Y != 0.5 {
		t.Errorf("landmark 0 wrong: got (%f, %f)", lm[0].X, lm[0].Y)
	}

	if lm[1].X != 0.75 || lm[1].Y != 0.5 {
		t.Errorf("landmark 1 wrong: got (%f, %f)", lm[1].X, lm[1].Y)
	}
}

func TestDecodePacketCBOR(t *testing.T) {

	data, err := cbor.Marshal(packet{
		Landmarks: [][2]float64{{0.1, 0.2}, {0.3, 0.4}},
		Score:     0.9,
	})

	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}

	lm, err := DecodePacket(data)

	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}

	if len(lm) != 2 {
		t.Fatalf("expected 2 landmarks, got %d", len(lm))
	}

	if lm[1].X != 0.3 || lm[1].Y != 0.4 {
		t.Errorf("landmark 1 wrong: got (%f, %f)", lm[1].X, lm[1].Y)
	}
}

func TestDecodePacketNoFace(t *testing.T) {

	tests := []struct {
		name string
		data []byte
	}{
		{"json null landmarks", []byte(`{"landmarks": null}`)},
		{"json empty landmarks", []byte(`{"landmarks": []}`)},
	}

	for _, tc := range tests {
		lm, err := DecodePacket(tc.data)

		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
			continue
		}

		if len(lm) != 0 {
			t.Errorf("%s: expected empty landmark set, got %d points", tc.name, len(lm))
		}
	}
}

func TestDecodePacketInvalid(t *testing.T) {

	tests := []struct {
		name string
		data []byte
	}{
		{"empty payload", nil},
		{"truncated json", []byte(`{"landmarks": [[0.1`)},
		{"garbage cbor", []byte{0xff, 0xfe, 0xfd}},
	}

	for _, tc := range tests {
		if _, err := DecodePacket(tc.data); err == nil {
			t.Errorf("%s: expected decode error", tc.name)
		}
	}
}

func TestStaticSource(t *testing.T) {

	fixed := kaomask.LandmarkSet{{X: 0.5, Y: 0.5}}
	s := &Static{Landmarks: fixed}

	frame := gocv.NewMat()
	defer frame.Close()

	lm, err := s.Detect(frame)

	if err != nil {
		t.Fatalf("unexpected detect error: %v", err)
	}

	if len(lm) != 1 || lm[0].X != 0.5 {
		t.Errorf("static source returned wrong landmarks: %v", lm)
	}

	if err := s.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}
