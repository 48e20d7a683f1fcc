// Package server is the web client's boundary: the settings documents it
// polls and patches, the network options other machines push, and live
// websockets for the frame preview and diagnostics.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/coreman2200/roomlight/internal/diagnostics"
	"github.com/coreman2200/roomlight/internal/effect"
	"github.com/coreman2200/roomlight/internal/netopt"
	"github.com/coreman2200/roomlight/internal/render"
)

const (
	maxBody       = 1 << 20
	changedWindow = time.Second
)

// Stats reports scheduler counters for the health endpoint.
type Stats interface {
	Stats() render.Stats
}

type Options struct {
	// Lock serializes registry access with the frame scheduler.
	Lock       sync.Locker
	Registry   *effect.Registry
	Network    *netopt.Table
	Stats      Stats
	Diag       *diagnostics.Hub
	Pixels     int
	SiteDir    string
	Driver     string
	PreviewFPS float64
}

type Server struct {
	opts  Options
	start time.Time

	preview *preview
}

func New(opts Options) *Server {
	if opts.Lock == nil {
		opts.Lock = &sync.Mutex{}
	}
	if opts.Network == nil {
		opts.Network = netopt.NewTable()
	}
	if opts.Diag == nil {
		opts.Diag = diagnostics.NewHub(32)
	}
	fps := opts.PreviewFPS
	if fps <= 0 {
		fps = 20
	}
	return &Server{
		opts:    opts,
		start:   time.Now(),
		preview: newPreview(rate.NewLimiter(rate.Limit(fps), 1)),
	}
}

// Preview is the frame sink feeding /ws clients.
func (s *Server) Preview() render.Sink { return s.preview }

// Run broadcasts preview frames until done is closed.
func (s *Server) Run(done <-chan struct{}) { s.preview.run(done) }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /effects.json", s.handleGetEffects)
	mux.HandleFunc("PUT /effects.json", s.handlePutEffects)
	mux.HandleFunc("GET /changedEffects.json", s.handleChanged)
	mux.HandleFunc("PUT /networkOptions.json", s.handleNetworkOptions)
	mux.HandleFunc("GET /state.json", s.handleState)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("/ws", s.preview.handle)
	mux.HandleFunc("/diag", s.handleDiagWS)
	if s.opts.SiteDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.opts.SiteDir)))
	}
	return withCORS(mux)
}

func (s *Server) locked(fn func()) {
	s.opts.Lock.Lock()
	defer s.opts.Lock.Unlock()
	fn()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeRaw(w, status, b)
}

func writeRaw(w http.ResponseWriter, status int, b []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return b, true
}

func (s *Server) handleGetEffects(w http.ResponseWriter, _ *http.Request) {
	var (
		b   []byte
		err error
	)
	s.locked(func() { b, err = s.opts.Registry.MarshalSettings() })
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeRaw(w, http.StatusOK, b)
}

// handlePutEffects applies a settings patch. Keys that pass validation are
// applied even when others are rejected; the rejected ones are listed in a
// 422 response.
func (s *Server) handlePutEffects(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var (
		rejected []effect.Rejection
		err      error
	)
	s.locked(func() { rejected, err = s.opts.Registry.ApplyPatch(body) })
	switch {
	case errors.Is(err, effect.ErrMalformedPatch):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	case len(rejected) > 0:
		for _, rej := range rejected {
			log.Debug().Err(rej.Err).Str("effect", rej.Effect).Str("setting", rej.Key).Msg("setting rejected")
		}
		writeJSON(w, http.StatusUnprocessableEntity, rejected)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) handleChanged(w http.ResponseWriter, _ *http.Request) {
	var names []string
	s.locked(func() { names = s.opts.Registry.ChangedWithin(changedWindow) })
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleNetworkOptions(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	if err := s.opts.Network.Merge(body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	var (
		doc *effect.Document
		err error
	)
	s.locked(func() { doc, err = s.opts.Registry.Export() })
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"uptime_s": time.Since(s.start).Seconds(),
		"count":    s.opts.Pixels,
		"driver":   s.opts.Driver,
		"clients":  s.preview.count(),
	}
	if s.opts.Stats != nil {
		st := s.opts.Stats.Stats()
		resp["frames"] = st.Frames
		resp["emitted"] = st.Emitted
		resp["resets"] = st.Resets
	}
	s.locked(func() { resp["effects"] = s.opts.Registry.Len() })
	writeJSON(w, http.StatusOK, resp)
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func (s *Server) handleDiagWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	recent, ch, cancel := s.opts.Diag.Subscribe()
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	go func() {
		defer func() {
			cancel()
			conn.Close()
		}()
		send := func(d diagnostics.Diagnostic) bool {
			conn.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
			return conn.WriteJSON(d) == nil
		}
		for _, d := range recent {
			if !send(d) {
				return
			}
		}
		for {
			select {
			case <-closed:
				return
			case d := <-ch:
				if !send(d) {
					return
				}
			}
		}
	}()
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}
