// Package server exposes the running session over HTTP: an MJPEG preview
// stream, a websocket state feed and the capture/export control endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/kaomask/kaomask/session"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
	// streamFPS is the preview frame rate
	streamFPS = 30
	// previewJpegQuality for the MJPEG stream
	previewJpegQuality = 85
)

// Server serves the session preview and control surface
type Server struct {
	sess     *session.Session
	deviceID int
	upgrader websocket.Upgrader
	clients  map[*websocket.Conn]*sync.Mutex
	mu       sync.Mutex
	log      *logrus.Entry
}

// New returns a server driving the given session.  deviceID is the camera
// opened on /start.
func New(sess *session.Session, deviceID int, logger *logrus.Logger) *Server {

	if logger == nil {
		logger = logrus.New()
	}

	return &Server{
		sess:     sess,
		deviceID: deviceID,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]*sync.Mutex),
		log:     logger.WithField("component", "server"),
	}
}

// Run serves until the context is cancelled
func (s *Server) Run(ctx context.Context, addr string) error {

	mux := http.NewServeMux()
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/arm", s.handleArm)
	mux.HandleFunc("/start", s.handleStart)
	mux.HandleFunc("/capture", s.handleCapture)
	mux.HandleFunc("/export", s.handleExport)
	mux.HandleFunc("/reset", s.handleReset)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	go s.broadcastState(ctx)

	s.log.WithField("addr", addr).Info("preview server listening")

	err := httpServer.ListenAndServe()

	if err == http.ErrServerClosed {
		return nil
	}

	return err
}

// handleStream serves the composite surface as an MJPEG multipart stream
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")

	flusher, ok := w.(http.Flusher)

	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	frame := gocv.NewMat()
	defer frame.Close()

	ticker := time.NewTicker(time.Second / streamFPS)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		s.sess.Surface(&frame)

		if frame.Empty() {
			continue
		}

		buf, err := gocv.IMEncodeWithParams(".jpg", frame,
			[]int{gocv.IMWriteJpegQuality, previewJpegQuality})

		if err != nil {
			s.log.WithError(err).Debug("preview encode failed")
			continue
		}

		fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n",
			len(buf.GetBytes()))
		w.Write(buf.GetBytes())
		fmt.Fprint(w, "\r\n")
		buf.Close()

		flusher.Flush()
	}
}

// statePayload is the state feed message shape
type statePayload struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

// handleWS upgrades the connection and registers it for state broadcasts
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {

	conn, err := s.upgrader.Upgrade(w, r, nil)

	if err != nil {
		return
	}

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	writeMu := &sync.Mutex{}

	s.mu.Lock()
	s.clients[conn] = writeMu
	s.mu.Unlock()

	s.writeJSON(conn, writeMu, statePayload{Type: "state", State: s.sess.State().String()})

	go s.pingLoop(conn, writeMu)
	go s.readLoop(conn)
}

// pingLoop keeps the websocket alive, dropping the client on write failure
func (s *Server) pingLoop(conn *websocket.Conn, writeMu *sync.Mutex) {

	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for range ticker.C {
		writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := conn.WriteMessage(websocket.PingMessage, nil)
		writeMu.Unlock()

		if err != nil {
			s.dropClient(conn)
			return
		}
	}
}

// readLoop drains client messages until the connection drops
func (s *Server) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.dropClient(conn)
			return
		}
	}
}

// dropClient removes and closes a websocket client
func (s *Server) dropClient(conn *websocket.Conn) {

	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()

	conn.Close()
}

// broadcastState pushes session state changes to all websocket clients
func (s *Server) broadcastState(ctx context.Context) {

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	last := ""

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		state := s.sess.State().String()

		if state == last {
			continue
		}

		last = state
		payload := statePayload{Type: "state", State: state}

		s.mu.Lock()
		conns := make(map[*websocket.Conn]*sync.Mutex, len(s.clients))
		for conn, mu := range s.clients {
			conns[conn] = mu
		}
		s.mu.Unlock()

		for conn, mu := range conns {
			if err := s.writeJSON(conn, mu, payload); err != nil {
				s.dropClient(conn)
			}
		}
	}
}

// writeJSON writes a JSON message under the per-connection write mutex
func (s *Server) writeJSON(conn *websocket.Conn, writeMu *sync.Mutex, v any) error {

	data, err := json.Marshal(v)

	if err != nil {
		return err
	}

	writeMu.Lock()
	defer writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))

	return conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statePayload{Type: "state", State: s.sess.State().String()})
}

func (s *Server) handleArm(w http.ResponseWriter, r *http.Request) {

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.sess.Arm(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.sess.Start(s.deviceID); err != nil {
		// the classified cause is the user-facing message category
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	go func() {
		if err := s.sess.Run(context.Background()); err != nil && err != context.Canceled {
			s.log.WithError(err).Warn("frame loop ended")
		}
	}()

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := s.sess.Capture()

	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"capture_id": id})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {

	format := r.URL.Query().Get("format")

	data, err := s.sess.Export(format)

	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	contentType := "image/jpeg"
	filename := "kaomask.jpg"

	if format == "png" {
		contentType = "image/png"
		filename = "kaomask.png"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(data)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.sess.Reset(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
