// Package session drives the per-frame compositing pipeline and owns the
// demo lifecycle: arming assets, starting the camera, processing frames,
// capturing and exporting stills.
package session

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kaomask/kaomask"
	"github.com/kaomask/kaomask/camera"
	"github.com/kaomask/kaomask/detector"
	"github.com/kaomask/kaomask/preprocess"
	"github.com/kaomask/kaomask/render"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// State is the session lifecycle state
type State int

const (
	// StateIdle means no camera or detector is running
	StateIdle State = iota
	// StateArmed means assets and detector are ready, camera not started
	StateArmed
	// StateRunning means the camera is streaming and the composite updates
	// every frame
	StateRunning
	// StateCaptured means Running continues with a snapshot flag set
	// enabling export
	StateCaptured
)

// String returns a readable state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateRunning:
		return "running"
	case StateCaptured:
		return "captured"
	default:
		return fmt.Sprintf("unknown state %d", int(s))
	}
}

// openCamera is swappable for tests
var openCamera = camera.Open

// Options configures optional session behavior
type Options struct {
	// Guide draws the dashed placement ellipse when non-nil
	Guide *render.GuideStyle
	// DebugAnchors draws the detected anchor marks onto the source frame
	// before sampling
	DebugAnchors bool
	// Logger is the structured logger, a default is created when nil
	Logger *logrus.Logger
}

// Session owns the mutable demo state: the destination surface, the camera
// handle, the running flag and capture metadata.  All components receive
// their inputs as explicit parameters, there are no ambient globals.
type Session struct {
	mu      sync.Mutex
	state   State
	spec    *kaomask.SlotSpec
	comp    *render.Compositor
	sampler *preprocess.Sampler
	source  detector.Source
	cam     *camera.Camera
	// surface is the destination raster, exclusively mutated during a
	// frame pass and read by the preview/export path between frames
	surface gocv.Mat
	// roi is the frame-scoped sample buffer, reused across frames
	roi gocv.Mat
	// dst holds the slot anchors scaled into canvas pixels, fixed at Arm
	dst        kaomask.DestAnchors
	running    bool
	captureID  string
	capturedAt time.Time
	opts       Options
	log        *logrus.Entry
}

// New returns a session in the Idle state.  The slot spec, compositor,
// sampler and landmark source are required.
func New(spec *kaomask.SlotSpec, comp *render.Compositor,
	sampler *preprocess.Sampler, source detector.Source, opts Options) (*Session, error) {

	if spec == nil || comp == nil || sampler == nil || source == nil {
		return nil, fmt.Errorf("session requires spec, compositor, sampler and detector source")
	}

	logger := opts.Logger

	if logger == nil {
		logger = logrus.New()
	}

	s := &Session{
		state:   StateIdle,
		spec:    spec,
		comp:    comp,
		sampler: sampler,
		source:  source,
		surface: gocv.NewMatWithSize(comp.Height(), comp.Width(), gocv.MatTypeCV8UC3),
		roi:     gocv.NewMat(),
		opts:    opts,
		log:     logger.WithField("component", "session"),
	}

	return s, nil
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Arm moves Idle to Armed.  The destination anchors are fixed here and an
// initial background pass is drawn so the surface is never blank.
func (s *Session) Arm() error {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return fmt.Errorf("cannot arm from state %s", s.state)
	}

	s.dst = s.spec.DestAnchors(s.comp.Width(), s.comp.Height())

	if err := s.comp.Compose(&s.surface, s.roi, nil, 0, s.dst, s.opts.Guide); err != nil {
		return fmt.Errorf("error drawing initial surface: %w", err)
	}

	s.state = StateArmed
	s.log.WithField("state", s.state.String()).Info("session armed")

	return nil
}

// Start moves Armed to Running by opening the camera.  An open failure
// returns the session to Idle and surfaces the classified cause, no frames
// are processed.
func (s *Session) Start(deviceID int) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateArmed {
		return fmt.Errorf("cannot start from state %s", s.state)
	}

	cam, err := openCamera(deviceID)

	if err != nil {
		s.state = StateIdle
		s.log.WithError(err).Warn("camera open failed")
		return err
	}

	s.cam = cam
	s.running = true
	s.state = StateRunning
	s.log.WithField("state", s.state.String()).Info("camera streaming")

	return nil
}

// Running reports whether frames should still be processed.  Late frame
// callbacks firing after Reset must check this and no-op.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ProcessFrame runs one full pipeline pass for a frame and its fresh
// detection result: extract anchors, solve the similarity transform, sample
// the face region and composite.  The pass is atomic, on error the previous
// surface content stays visible.  An empty landmark set is the no-face state
// and renders background and guide only.
func (s *Session) ProcessFrame(frame gocv.Mat, lm kaomask.LandmarkSet) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	anchors, ok := kaomask.ExtractAnchors(lm, frame.Cols(), frame.Rows())

	if !ok {
		return s.comp.Compose(&s.surface, s.roi, nil, 0, s.dst, s.opts.Guide)
	}

	if s.opts.DebugAnchors {
		render.AnchorMarks(&frame, anchors)
	}

	side := kaomask.RoiSide(anchors.EyeDist(), s.spec.Slot.RoiScale)

	sim := kaomask.SolveSimilarity(anchors, s.dst, side)

	if err := s.sampler.Sample(frame, anchors.EyeMid(), int(side), &s.roi); err != nil {
		return fmt.Errorf("error sampling face region: %w", err)
	}

	return s.comp.Compose(&s.surface, s.roi, &sim, side, s.dst, s.opts.Guide)
}

// Run pumps camera frames through the detector and compositor until the
// context is cancelled or the session is reset.  Frames are processed in
// arrival order on this single goroutine.  A detector failure skips the
// frame, leaving the last good composite visible.
func (s *Session) Run(ctx context.Context) error {

	frame := gocv.NewMat()
	defer frame.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s.mu.Lock()
		cam := s.cam
		running := s.running
		s.mu.Unlock()

		if !running || cam == nil {
			return nil
		}

		if !cam.Read(&frame) {
			// closed or stalled device, stop cleanly when reset
			if !s.Running() {
				return nil
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}

		lm, err := s.source.Detect(frame)

		if err != nil {
			s.log.WithError(err).Debug("detector failed for frame, skipping")
			continue
		}

		if err := s.ProcessFrame(frame, lm); err != nil {
			s.log.WithError(err).Warn("frame pass failed, keeping previous surface")
		}
	}
}

// Capture sets the snapshot flag enabling export, moving Running to
// Captured.  Frame processing continues.
func (s *Session) Capture() (string, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return "", fmt.Errorf("cannot capture from state %s", s.state)
	}

	s.captureID = uuid.NewString()
	s.capturedAt = time.Now()
	s.state = StateCaptured
	s.log.WithField("capture_id", s.captureID).Info("snapshot captured")

	return s.captureID, nil
}

// Export encodes the current surface as a still image.  Only valid in the
// Captured state.  Format is "jpg" or "png".  An export failure leaves the
// session state unaffected.
func (s *Session) Export(format string) ([]byte, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCaptured {
		return nil, fmt.Errorf("cannot export from state %s", s.state)
	}

	out := s.surface.Clone()
	defer out.Close()

	label := fmt.Sprintf("%s %s", s.captureID[:8],
		s.capturedAt.Format("2006-01-02 15:04:05"))

	if err := render.StampLabel(&out, label, stampPosition(out)); err != nil {
		return nil, fmt.Errorf("error stamping capture label: %w", err)
	}

	var (
		buf *gocv.NativeByteBuffer
		err error
	)

	switch format {
	case "png":
		buf, err = gocv.IMEncode(".png", out)
	case "jpg", "jpeg", "":
		buf, err = gocv.IMEncodeWithParams(".jpg", out,
			[]int{gocv.IMWriteJpegQuality, exportJpegQuality})
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}

	if err != nil {
		return nil, fmt.Errorf("error encoding export image: %w", err)
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())

	return data, nil
}

// exportJpegQuality is the JPEG quality for exported stills
const exportJpegQuality = 95

// stampPosition places the capture label in the bottom left corner
func stampPosition(img gocv.Mat) image.Point {
	return image.Pt(8, img.Rows()-8)
}

// Surface copies the current destination surface into dst for preview use.
// Reads happen between frame passes, never concurrently with one.
func (s *Session) Surface(dst *gocv.Mat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surface.CopyTo(dst)
}

// Reset stops the camera, clears the surface and capture flags and returns
// the session to Idle.  Frame delivery halts synchronously, any in-flight
// callback sees the cleared running flag and no-ops.
func (s *Session) Reset() error {

	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false

	if s.cam != nil {
		if err := s.cam.Close(); err != nil {
			s.log.WithError(err).Warn("error closing camera")
		}
		s.cam = nil
	}

	zero := gocv.NewScalar(0, 0, 0, 0)
	s.surface.SetTo(zero)

	s.captureID = ""
	s.capturedAt = time.Time{}
	s.state = StateIdle
	s.log.WithField("state", s.state.String()).Info("session reset")

	return nil
}

// Close releases session owned resources.  The compositor, sampler and
// detector source are owned by the caller.
func (s *Session) Close() error {

	if err := s.Reset(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.roi.Close()

	return s.surface.Close()
}
