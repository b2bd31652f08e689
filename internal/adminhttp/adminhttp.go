// Package adminhttp exposes the server's operational surface — Prometheus
// metrics, a liveness probe, and a session introspection endpoint — on an
// HTTP listener bound separately from the raw TCP protocol port: a chi
// router wired to a handful of narrow, read-only handlers.
package adminhttp

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/filevault/backupd/internal/session"
)

// Server is the admin HTTP server. It does not own the protocol listener
// or any client connections.
type Server struct {
	httpServer *http.Server
}

// New builds an admin server bound to addr. registry backs
// /debug/sessions; reg is the Prometheus registry backing /metrics (it
// may be nil, in which case /metrics responds 404).
func New(addr string, registry *session.Registry, reg *prometheus.Registry) *Server {
	r := chi.NewRouter()

	r.Get("/healthz", handleHealthz)
	r.Get("/debug/sessions", handleSessions(registry))
	if reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// ListenAndServe blocks serving HTTP until Shutdown is called.
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// SessionInfo is the wire shape of one row returned by /debug/sessions.
type SessionInfo struct {
	ClientID  string `json:"client_id"`
	Username  string `json:"username"`
	HasRSAKey bool   `json:"has_rsa_key"`
	HasAESKey bool   `json:"has_aes_key"`
}

func handleSessions(registry *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := registry.Snapshot()
		out := make([]SessionInfo, 0, len(snap))
		for _, sess := range snap {
			out = append(out, SessionInfo{
				ClientID:  hex.EncodeToString(sess.ClientID[:]),
				Username:  sess.Username,
				HasRSAKey: sess.PublicKey != nil,
				HasAESKey: sess.AESKey != nil,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}
