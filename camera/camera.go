// Package camera wraps the live video capture device and classifies open
// failures into user-facing categories.
package camera

import (
	"fmt"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// FailureClass categorizes why the camera could not be opened
type FailureClass int

const (
	FailureUnknown FailureClass = iota
	// FailurePermission means access to the device was blocked
	FailurePermission
	// FailureNotFound means no capture device exists at the given ID
	FailureNotFound
	// FailureBusy means the device is held by another process
	FailureBusy
)

// String returns a readable description of the failure class
func (f FailureClass) String() string {
	switch f {
	case FailurePermission:
		return "camera access is blocked"
	case FailureNotFound:
		return "no camera device found"
	case FailureBusy:
		return "camera is in use by another application"
	default:
		return "camera could not be opened"
	}
}

// OpenError wraps a capture open failure with its classification
type OpenError struct {
	Class FailureClass
	Err   error
}

// Error implements the error interface
func (e *OpenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Class, e.Err)
	}
	return e.Class.String()
}

// Unwrap returns the underlying backend error
func (e *OpenError) Unwrap() error {
	return e.Err
}

// Classify maps a capture backend error message onto a failure class
func Classify(err error) FailureClass {

	if err == nil {
		return FailureUnknown
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "permission") || strings.Contains(msg, "denied") ||
		strings.Contains(msg, "not permitted"):
		return FailurePermission
	case strings.Contains(msg, "no such") || strings.Contains(msg, "not found") ||
		strings.Contains(msg, "cannot open"):
		return FailureNotFound
	case strings.Contains(msg, "busy") || strings.Contains(msg, "in use"):
		return FailureBusy
	default:
		return FailureUnknown
	}
}

// Camera supplies live frames from a capture device.  A closed camera's Read
// returns false, so late frame callbacks cannot touch a released device.
type Camera struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	width   int
	height  int
}

// Open opens the capture device with the given ID.  Failures are returned as
// an *OpenError carrying the classified cause.
func Open(deviceID int) (*Camera, error) {

	capture, err := gocv.OpenVideoCapture(deviceID)

	if err != nil {
		return nil, &OpenError{Class: Classify(err), Err: err}
	}

	if !capture.IsOpened() {
		capture.Close()
		return nil, &OpenError{Class: FailureNotFound}
	}

	c := &Camera{
		capture: capture,
		width:   int(capture.Get(gocv.VideoCaptureFrameWidth)),
		height:  int(capture.Get(gocv.VideoCaptureFrameHeight)),
	}

	return c, nil
}

// Read fills frame with the next available camera frame, returning false
// when the device is closed or no frame could be read
func (c *Camera) Read(frame *gocv.Mat) bool {

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return false
	}

	if ok := c.capture.Read(frame); !ok || frame.Empty() {
		return false
	}

	return true
}

// Size returns the native frame dimensions of the device
func (c *Camera) Size() (width, height int) {
	return c.width, c.height
}

// Close releases the capture device.  Safe to call more than once, and
// synchronously stops further frame delivery.
func (c *Camera) Close() error {

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}

	err := c.capture.Close()
	c.capture = nil

	return err
}
