package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"kanban-system/internal/domain"
	"kanban-system/pkg/logger"

	"github.com/gorilla/mux"
)

// AdminServer is the diagnostics surface. It runs on its own listener
// so the main API port never exposes it, and every route except the
// health check requires the static admin token.
type AdminServer struct {
	registry domain.ConnectionRegistry
	token    string
	log      logger.Logger
}

func NewAdminServer(registry domain.ConnectionRegistry, token string, log logger.Logger) *AdminServer {
	return &AdminServer{
		registry: registry,
		token:    token,
		log:      log,
	}
}

func (s *AdminServer) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireToken)
	admin.HandleFunc("/connections", s.handleConnections).Methods(http.MethodGet)

	return r
}

func (s *AdminServer) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if s.token == "" || token == header || token != s.token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *AdminServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *AdminServer) handleConnections(w http.ResponseWriter, r *http.Request) {
	infos := s.registry.Snapshot()
	s.log.Debug("connection snapshot served", "count", len(infos), "remote_addr", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":       len(infos),
		"connections": infos,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
