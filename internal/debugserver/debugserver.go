// Package debugserver exposes a localhost-only HTTP endpoint for operator
// diagnostics: liveness and a snapshot of the agent's current cadence and
// last-tick outcome. It is not part of the Collection Loop's data path,
// purely an operational aid routed with gorilla/mux.
package debugserver

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

// Status is the point-in-time snapshot served at /status.
type Status struct {
	LastTickAt       time.Time `json:"last_tick_at"`
	LastTickOK       bool      `json:"last_tick_ok"`
	CollectIntervalS int       `json:"collect_interval_s"`
	ActivePlugins    []string  `json:"active_plugins"`
}

// Reporter supplies the current Status lazily, so the server never holds a
// stale copy across settings updates.
type Reporter func() Status

// Server is a localhost-bound debug HTTP server.
type Server struct {
	httpServer *http.Server
	mu         sync.Mutex
	reporter   Reporter
}

// New builds a Server bound to addr (normally "127.0.0.1:<port>"). It is
// not started until Serve is called.
func New(addr string, logger *slog.Logger, reporter Reporter) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{reporter: reporter}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Serve blocks, listening on the server's configured address, refusing any
// connection whose remote address isn't loopback. Returns http.ErrServerClosed
// on a clean Shutdown.
func (s *Server) Serve() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(&loopbackOnlyListener{Listener: ln})
}

// Shutdown stops the server immediately, closing its listener and any
// open connections without waiting for in-flight requests.
func (s *Server) Shutdown() error {
	return s.httpServer.Close()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	reporter := s.reporter
	s.mu.Unlock()

	var status Status
	if reporter != nil {
		status = reporter()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

// loopbackOnlyListener rejects any Accept'd connection not originating
// from 127.0.0.1/::1, since this server is meant for the local host only
// and is never exposed past the loopback interface.
type loopbackOnlyListener struct {
	net.Listener
}

func (l *loopbackOnlyListener) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}

		host, _, splitErr := net.SplitHostPort(conn.RemoteAddr().String())
		if splitErr == nil {
			if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
				return conn, nil
			}
		}
		conn.Close()
	}
}
