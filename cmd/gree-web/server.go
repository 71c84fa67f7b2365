package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vvvy/gree-go/pkg/gree"
	"github.com/vvvy/gree-go/pkg/vars"
)

// Orchestrator is the surface the server needs from gree.Gree.
type Orchestrator interface {
	Scan(ctx context.Context) error
	Bind(ctx context.Context, target string) error
	NetRead(ctx context.Context, target string, bag vars.Bag) error
	NetWrite(ctx context.Context, target string, bag vars.Bag) error
	WithState(ctx context.Context, fn func(*gree.State) error) error
}

var _ Orchestrator = (*gree.Gree)(nil)

// Server is the HTTP front end over one orchestrator. The orchestrator
// is single-threaded by design, so every handler takes the mutex.
type Server struct {
	mu     sync.Mutex
	g      Orchestrator
	mux    *http.ServeMux
	logger *slog.Logger
}

// NewServer creates the server and registers its routes.
func NewServer(g Orchestrator, logger *slog.Logger) *Server {
	s := &Server{
		g:      g,
		mux:    http.NewServeMux(),
		logger: logger,
	}

	s.mux.HandleFunc("/api/v1/health", s.handleHealth)
	s.mux.HandleFunc("/api/v1/devices", s.handleDevices)
	s.mux.HandleFunc("/api/v1/scan", s.handleScan)
	s.mux.HandleFunc("/api/v1/dev/", s.handleDevice)

	return s
}

// ServeHTTP tags every request with an id and dispatches to the mux.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()
	w.Header().Set("X-Request-Id", reqID)

	start := time.Now()
	s.mux.ServeHTTP(w, r)

	if s.logger != nil {
		s.logger.Debug("request",
			"id", reqID, "method", r.Method, "path", r.URL.Path,
			"duration", time.Since(start))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// deviceInfo is the wire shape of one registry entry.
type deviceInfo struct {
	Mac     string         `json:"mac"`
	IP      string         `json:"ip"`
	Name    string         `json:"name,omitempty"`
	Bound   bool           `json:"bound"`
	Updated time.Time      `json:"updated"`
	Values  map[string]any `json:"values,omitempty"`
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeDeviceList(w, r)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.g.Scan(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeDeviceList(w, r)
}

// writeDeviceList responds with the registry contents.
// Callers hold the mutex.
func (s *Server) writeDeviceList(w http.ResponseWriter, r *http.Request) {
	devices := []deviceInfo{}
	err := s.g.WithState(r.Context(), func(st *gree.State) error {
		for _, d := range st.Devices() {
			info := deviceInfo{
				Mac:     d.Mac(),
				Name:    d.Info.Name,
				Bound:   d.Key != "",
				Updated: d.Updated,
			}
			if d.IP != nil {
				info.IP = d.IP.String()
			}
			if len(d.Values) > 0 {
				info.Values = make(map[string]any, len(d.Values))
				for name, v := range d.Values {
					info.Values[string(name)] = v.Value
				}
			}
			devices = append(devices, info)
		}
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

// handleDevice routes /api/v1/dev/{target}/{op}.
func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/dev/")
	target, op, ok := strings.Cut(rest, "/")
	if !ok || target == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch op {
	case "bind":
		s.handleBind(w, r, target)
	case "get":
		s.handleGet(w, r, target)
	case "set":
		s.handleSet(w, r, target)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (s *Server) handleBind(w http.ResponseWriter, r *http.Request, target string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.g.Bind(r.Context(), target); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"target": target, "status": "bound"})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, target string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	names := r.URL.Query()["name"]
	if len(names) == 0 {
		s.writeError(w, errNoNames)
		return
	}
	bag, err := vars.FromNames(names)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.g.NetRead(r.Context(), target, bag); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"target": target, "values": bag.ReportMap()})
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request, target string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pairs := make(map[string]string)
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			pairs[name] = values[0]
		}
	}
	if len(pairs) == 0 {
		s.writeError(w, errNoPairs)
		return
	}
	bag, err := vars.FromPairs(pairs)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.g.NetWrite(r.Context(), target, bag); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"target": target, "values": bag.ReportMap()})
}

var (
	errNoNames = &badRequestError{"at least one name query parameter is required"}
	errNoPairs = &badRequestError{"at least one NAME=VALUE query parameter is required"}
)

type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

// writeError maps orchestrator errors to HTTP statuses: unknown devices
// are 404, transient network failures 503, everything else 400.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case gree.IsNotFound(err):
		status = http.StatusNotFound
	case gree.IsTransient(err):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
