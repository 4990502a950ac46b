// Package server exposes matrix telemetry over HTTP and a websocket, and
// accepts pause commands and raw frames from websocket clients.
package server

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/fkcurrie/rgbmatrix-golang/internal/types"
)

// Pusher accepts whole RGB565 frames for display.
type Pusher interface {
	Push(frame []uint16) error
	Pushed() uint64
}

// Command is a JSON control message sent by websocket clients.
type Command struct {
	Paused *bool `json:"paused,omitempty"`
}

// Server serves /health, /status and /ws.
type Server struct {
	cfg      types.ServerConfig
	matrix   types.Matrix
	pusher   Pusher
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu         sync.Mutex
	clients    map[*client]bool
	lastFrames uint32
	lastAt     time.Time
	rate       float64
}

// New creates a server for m. pusher may be nil, in which case binary
// frames are rejected.
func New(cfg types.ServerConfig, m types.Matrix, pusher Pusher, log zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		matrix:   m,
		pusher:   pusher,
		log:      log.With().Str("component", "server").Logger(),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  make(map[*client]bool),
		lastAt:   time.Now(),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.Status())
	})
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Status returns a telemetry snapshot.
func (s *Server) Status() types.Status {
	s.mu.Lock()
	rate := s.rate
	s.mu.Unlock()

	// a freed matrix reports its state; paused stays false
	paused, _ := s.matrix.Paused()
	st := types.Status{
		State:      s.matrix.State().String(),
		Paused:     paused,
		Width:      s.matrix.Width(),
		Height:     s.matrix.Height(),
		Frames:     s.matrix.FrameCount(),
		FrameRate:  rate,
		Faults:     s.matrix.Faults(),
		LastUpdate: time.Now(),
	}
	if s.pusher != nil {
		st.Pushed = s.pusher.Pushed()
	}
	return st
}

// sample updates the refresh rate estimate from the frame counter.
func (s *Server) sample(now time.Time) {
	frames := s.matrix.FrameCount()
	s.mu.Lock()
	defer s.mu.Unlock()
	if dt := now.Sub(s.lastAt).Seconds(); dt > 0 {
		// uint32 subtraction handles counter wrap
		s.rate = float64(frames-s.lastFrames) / dt
	}
	s.lastFrames, s.lastAt = frames, now
}

// Run serves on cfg.Listen and pushes telemetry to websocket clients until
// ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Listen, Handler: s.Handler()}
	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("listen", s.cfg.Listen).Msg("serving")
		errc <- srv.ListenAndServe()
	}()

	interval := time.Duration(s.cfg.PushIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s.closeClients()
			if err := srv.Shutdown(shutdown); err != nil {
				return err
			}
			return ctx.Err()
		case err := <-errc:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case now := <-ticker.C:
			s.sample(now)
			s.broadcast()
		}
	}
}

func (s *Server) broadcast() {
	msg, err := json.Marshal(s.Status())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode status")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			// slow client, drop this update
		}
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.close()
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &client{
		srv:  s,
		conn: conn,
		send: make(chan []byte, 8),
		done: make(chan struct{}),
	}
	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()

	// greet with the current state so clients need not wait a tick
	if msg, err := json.Marshal(s.Status()); err == nil {
		c.send <- msg
	}
	go c.writePump()
	go c.readPump()
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

// handleCommand applies a JSON control message.
func (s *Server) handleCommand(msg []byte) error {
	var cmd Command
	if err := json.Unmarshal(msg, &cmd); err != nil {
		return err
	}
	if cmd.Paused != nil {
		if err := s.matrix.SetPaused(*cmd.Paused); err != nil {
			return err
		}
		s.log.Info().Bool("paused", *cmd.Paused).Msg("pause toggled by client")
	}
	return nil
}

// handleFrame decodes a little-endian RGB565 frame and pushes it.
func (s *Server) handleFrame(msg []byte) error {
	if s.pusher == nil {
		return errors.New("server: frame upload not enabled")
	}
	if len(msg)%2 != 0 {
		return errors.New("server: odd frame length")
	}
	frame := make([]uint16, len(msg)/2)
	for i := range frame {
		frame[i] = binary.LittleEndian.Uint16(msg[2*i:])
	}
	return s.pusher.Push(frame)
}
