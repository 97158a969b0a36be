// Package web serves training statistics and evaluation plots over HTTP.
package web

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/goji/httpauth"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/jnb666/tripletnet/triplet"
)

var plotName = regexp.MustCompile(`^[a-z0-9_]+\.png$`)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Server holds the epoch history and pushes updates to connected websockets.
type Server struct {
	baseDir string
	mu      sync.Mutex
	history []triplet.Summary
	conns   []*websocket.Conn
}

// NewServer creates a monitoring server reading plots from baseDir.
func NewServer(baseDir string) *Server {
	return &Server{baseDir: baseDir}
}

// Update appends an epoch summary and pushes it to all live connections.
// Safe to call while requests are being served.
func (s *Server) Update(sum triplet.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, sum)
	alive := s.conns[:0]
	for _, conn := range s.conns {
		if err := conn.WriteJSON(sum); err != nil {
			conn.Close()
			continue
		}
		alive = append(alive, conn)
	}
	s.conns = alive
}

// History returns a copy of the accumulated epoch summaries.
func (s *Server) History() []triplet.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]triplet.Summary{}, s.history...)
}

// Handler returns the route handler, wrapped with basic auth if user is set.
func (s *Server) Handler(user, pass string) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/stats", s.stats)
	r.HandleFunc("/plots/{name}", s.plot)
	r.HandleFunc("/ws", s.websocket)
	if user != "" {
		return httpauth.SimpleBasicAuth(user, pass)(r)
	}
	return r
}

// ListenAndServe starts the server on the given address.
func (s *Server) ListenAndServe(addr, user, pass string) error {
	log.Info().Str("addr", addr).Msg("monitor listening")
	return http.ListenAndServe(addr, s.Handler(user, pass))
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.History()); err != nil {
		log.Error().Err(err).Msg("error encoding stats")
	}
}

func (s *Server) plot(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !plotName.MatchString(name) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, filepath.Join(s.baseDir, name))
}

func (s *Server) websocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()
}
