package audit

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/agentworld/runtime/internal/domain"
)

// Server exposes a Log's query surface over HTTP, the same shape the
// teacher's cmd/explorer/server.go exposes ledger data over, with
// go-chi/chi standing in for gorilla/mux as the router.
type Server struct {
	log    *Log
	router chi.Router
	logger *zap.SugaredLogger
}

// NewServer builds a router over log. A nil logger falls back to the
// global zap logger, the same convention the registry package uses.
func NewServer(log *Log, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.L()
	}
	s := &Server{log: log, logger: logger.Sugar()}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Get("/api/audit/events", s.handleQuery)
	s.router = r
}

// handleQuery serves GET /api/audit/events?kind=&min_tick=&max_tick=&caused_by=&cursor_era=&cursor_value=&limit=
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := Filter{
		Kind:     domain.EventKind(q.Get("kind")),
		CausedBy: domain.ActionID(q.Get("caused_by")),
	}
	var err error
	if f.MinTick, err = parseUintParam(q, "min_tick", 0); err != nil {
		http.Error(w, "bad min_tick", http.StatusBadRequest)
		return
	}
	if f.MaxTick, err = parseUintParam(q, "max_tick", 0); err != nil {
		http.Error(w, "bad max_tick", http.StatusBadRequest)
		return
	}

	limit := 100
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	var after *Cursor
	if q.Get("cursor_era") != "" || q.Get("cursor_value") != "" {
		era, err := parseUintParam(q, "cursor_era", 0)
		if err != nil {
			http.Error(w, "bad cursor_era", http.StatusBadRequest)
			return
		}
		value, err := parseUintParam(q, "cursor_value", 0)
		if err != nil {
			http.Error(w, "bad cursor_value", http.StatusBadRequest)
			return
		}
		after = &Cursor{Era: era, Value: value}
	}

	page, err := s.log.Query(f, after, limit)
	if err == ErrInvalidCursor {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.logger.Errorw("audit query failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, page)
}

func parseUintParam(q map[string][]string, key string, def uint64) (uint64, error) {
	raw := ""
	if vals, ok := q[key]; ok && len(vals) > 0 {
		raw = vals[0]
	}
	if raw == "" {
		return def, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
