package detector

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kaomask/kaomask"
	"gocv.io/x/gocv"
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 10 * time.Second
	// jpegQuality for frames shipped to the detector, lower than export
	// quality since the detector only needs landmark accuracy
	jpegQuality = 80
)

// Remote is a Source backed by a websocket face landmark service.  Each
// frame is JPEG encoded and written as a binary message, the service answers
// with one landmark packet per frame.
type Remote struct {
	url          string
	conn         *websocket.Conn
	mu           sync.Mutex
	writeTimeout time.Duration
	readTimeout  time.Duration
}

// NewRemote connects to the landmark detector service at the given
// websocket URL
func NewRemote(url string) (*Remote, error) {

	r := &Remote{
		url:          url,
		writeTimeout: defaultWriteTimeout,
		readTimeout:  defaultReadTimeout,
	}

	if err := r.connect(); err != nil {
		return nil, err
	}

	return r, nil
}

// connect dials the detector service, replacing any existing connection
func (r *Remote) connect() error {

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}

	conn, _, err := websocket.DefaultDialer.Dial(r.url, nil)

	if err != nil {
		return fmt.Errorf("error connecting to detector at %s: %w", r.url, err)
	}

	r.conn = conn

	return nil
}

// Detect sends the frame to the detector service and decodes the resulting
// landmark packet.  A dropped connection is redialed once before failing.
func (r *Remote) Detect(frame gocv.Mat) (kaomask.LandmarkSet, error) {

	buf, err := gocv.IMEncodeWithParams(".jpg", frame,
		[]int{gocv.IMWriteJpegQuality, jpegQuality})

	if err != nil {
		return nil, fmt.Errorf("error encoding frame for detector: %w", err)
	}
	defer buf.Close()

	data, err := r.roundTrip(buf.GetBytes())

	if err != nil {
		// one reconnect attempt before giving up on this frame
		if cerr := r.connect(); cerr != nil {
			return nil, err
		}

		data, err = r.roundTrip(buf.GetBytes())

		if err != nil {
			return nil, err
		}
	}

	return DecodePacket(data)
}

// roundTrip writes one frame and reads one result packet
func (r *Remote) roundTrip(frame []byte) ([]byte, error) {

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil, fmt.Errorf("detector connection is closed")
	}

	r.conn.SetWriteDeadline(time.Now().Add(r.writeTimeout))

	if err := r.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return nil, fmt.Errorf("error sending frame to detector: %w", err)
	}

	r.conn.SetReadDeadline(time.Now().Add(r.readTimeout))

	_, data, err := r.conn.ReadMessage()

	if err != nil {
		return nil, fmt.Errorf("error reading detector result: %w", err)
	}

	return data, nil
}

// Close shuts down the detector connection
func (r *Remote) Close() error {

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil
	}

	err := r.conn.Close()
	r.conn = nil

	return err
}
