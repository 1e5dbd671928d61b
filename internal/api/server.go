package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"teb-dashboard/internal/capture"
	"teb-dashboard/internal/dataset"
	"teb-dashboard/internal/metrics"
	"teb-dashboard/internal/session"
)

// RequestIDHeader carries the id assigned to every request
const RequestIDHeader = "X-Request-ID"

// maxCaptureBytes bounds the size of an uploaded capture
const maxCaptureBytes = 32 << 20

// Options configure the API server
type Options struct {
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	AccessLog    io.Writer
	CORSOrigins  []string
	CaptureScale int
	Now          func() time.Time
}

// Server represents the API server
type Server struct {
	session  *session.Session
	captures *capture.Store
	metrics  *metrics.Metrics
	log      *slog.Logger
	opts     Options
	router   *mux.Router
}

// NewServer creates a new API server
func NewServer(sess *session.Session, captures *capture.Store, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.AccessLog == nil {
		opts.AccessLog = os.Stdout
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.CaptureScale < 1 {
		opts.CaptureScale = capture.DefaultScale
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		session:  sess,
		captures: captures,
		metrics:  opts.Metrics,
		log:      opts.Logger,
		opts:     opts,
		router:   mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Dataset endpoints
	s.router.HandleFunc("/api/v1/periods", s.handleListPeriods).Methods("GET")
	s.router.HandleFunc("/api/v1/periods/{key}", s.handleGetPeriod).Methods("GET")
	s.router.HandleFunc("/api/v1/benchmark", s.handleBenchmark).Methods("GET")
	s.router.HandleFunc("/api/v1/recommendations", s.handleRecommendations).Methods("GET")

	// Live telemetry endpoints
	s.router.HandleFunc("/api/v1/realtime", s.handleRealtime).Methods("GET")
	s.router.HandleFunc("/api/v1/realtime/refresh", s.handleRefresh).Methods("POST")
	s.router.HandleFunc("/api/v1/realtime/auto-refresh", s.handleAutoRefresh).Methods("PUT")
	s.router.HandleFunc("/api/v1/predictions", s.handlePredictions).Methods("GET")

	// Alert endpoints
	s.router.HandleFunc("/api/v1/alerts", s.handleListAlerts).Methods("GET")
	s.router.HandleFunc("/api/v1/alerts", s.handleClearAlerts).Methods("DELETE")
	s.router.HandleFunc("/api/v1/alerts/enabled", s.handleAlerting).Methods("PUT")
	s.router.HandleFunc("/api/v1/alerts/check", s.handleCheckAlerts).Methods("POST")
	s.router.HandleFunc("/api/v1/alerts/{id}/read", s.handleMarkRead).Methods("POST")
	s.router.HandleFunc("/api/v1/alerts/{id}", s.handleDismissAlert).Methods("DELETE")

	// Stats endpoint
	s.router.HandleFunc("/api/v1/stats", s.handleStats).Methods("GET")

	// Capture and export endpoints
	s.router.HandleFunc("/api/v1/captures/{marker}", s.handlePutCapture).Methods("PUT")
	s.router.HandleFunc("/api/v1/captures/{marker}", s.handleDeleteCapture).Methods("DELETE")
	s.router.HandleFunc("/api/v1/export/report", s.handleExportReport).Methods("GET")
	s.router.HandleFunc("/api/v1/export/workbook", s.handleExportWorkbook).Methods("GET")
	s.router.HandleFunc("/api/v1/export/dashboard", s.handleExportDashboard).Methods("GET")

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	// Add middleware
	s.router.Use(s.metricsMiddleware)
}

// Router returns the configured router
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the router wrapped with request ids, the access log and CORS
func (s *Server) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins(s.opts.CORSOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", RequestIDHeader}),
		handlers.ExposedHeaders([]string{"Content-Disposition", RequestIDHeader}),
	)
	return requestIDMiddleware(handlers.LoggingHandler(s.opts.AccessLog, cors(s.router)))
}

// Middleware
type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// RequestID returns the id assigned to the request, if any
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.metrics.WrapHandler(route, next).ServeHTTP(w, r)
	})
}

// Response helpers
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Meta    *meta       `json:"meta,omitempty"`
}

type meta struct {
	Total  int `json:"total,omitempty"`
	Unread int `json:"unread,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, apiResponse{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiResponse{Success: false, Error: message})
}

func respondWithMeta(w http.ResponseWriter, data interface{}, m *meta) {
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: data, Meta: m})
}

// toggleRequest is the body of the auto-refresh and alerting switches
type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

func decodeToggle(r *http.Request) (bool, error) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return false, errors.New("invalid JSON")
	}
	if req.Enabled == nil {
		return false, errors.New("enabled is required")
	}
	return *req.Enabled, nil
}

// Handlers
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.session.Status()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"connected": status.Connected,
	})
}

func (s *Server) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	periods := dataset.Periods()
	respondWithMeta(w, periods, &meta{Total: len(periods)})
}

// handleGetPeriod resolves a period key. Unknown keys resolve to the full
// dataset, so the snapshot key in the body is the one actually served.
func (s *Server) handleGetPeriod(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if key == dataset.PeriodRealtime {
		snap, err := s.session.Snapshot("", true)
		if err != nil {
			respondError(w, http.StatusConflict, "nenhum dado em tempo real recebido")
			return
		}
		respondJSON(w, http.StatusOK, snap)
		return
	}
	respondJSON(w, http.StatusOK, dataset.Resolve(key))
}

func (s *Server) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.requestSnapshot(w, r)
	if !ok {
		return
	}
	respondWithMeta(w, map[string]interface{}{
		"period":   snap.Key,
		"rankings": dataset.Benchmark(snap),
	}, &meta{Total: len(snap.Turbines)})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	recs := dataset.Recommendations()
	respondWithMeta(w, recs, &meta{Total: len(recs)})
}

func (s *Server) realtimeState() map[string]interface{} {
	state := map[string]interface{}{
		"status":       s.session.Status(),
		"auto_refresh": s.session.AutoRefresh(),
	}
	if rt, ok := s.session.Realtime(); ok {
		state["snapshot"] = rt
	}
	return state
}

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.realtimeState())
}

// handleRefresh is the manual refresh. A failed poll still answers with the
// retained state so the caller can show the disconnected status.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.session.RefreshNow(r.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, apiResponse{
			Success: false,
			Error:   err.Error(),
			Data:    s.realtimeState(),
		})
		return
	}
	respondJSON(w, http.StatusOK, s.realtimeState())
}

func (s *Server) handleAutoRefresh(w http.ResponseWriter, r *http.Request) {
	enabled, err := decodeToggle(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.session.SetAutoRefresh(enabled)
	respondJSON(w, http.StatusOK, map[string]bool{"auto_refresh": enabled})
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	batch, ok := s.session.Predictions()
	if !ok {
		respondError(w, http.StatusNotFound, "no predictions received yet")
		return
	}
	respondWithMeta(w, batch, &meta{Total: len(batch.Predictions)})
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.session.Alerts()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	unread, err := s.session.UnreadCount()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	data := map[string]interface{}{
		"alerts":       alerts,
		"unread_count": unread,
		"enabled":      s.session.Alerting(),
	}
	if last := s.session.LastCheck(); !last.IsZero() {
		data["last_check"] = last
	}
	respondWithMeta(w, data, &meta{Total: len(alerts), Unread: unread})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	found, err := s.session.MarkRead(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "alert not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleDismissAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	found, err := s.session.Dismiss(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "alert not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleClearAlerts(w http.ResponseWriter, r *http.Request) {
	if err := s.session.ClearAlerts(); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"unread_count": 0})
}

func (s *Server) handleAlerting(w http.ResponseWriter, r *http.Request) {
	enabled, err := decodeToggle(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.session.SetAlerting(enabled)
	respondJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

// handleCheckAlerts polls alerts and predictions out of schedule. Running
// pollers are triggered, stopped ones are polled in place.
func (s *Server) handleCheckAlerts(w http.ResponseWriter, r *http.Request) {
	if err := s.session.CheckAlerts(r.Context()); err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	unread, err := s.session.UnreadCount()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"unread_count": unread})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.session.AlertStats()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	stats["connected"] = s.session.Status().Connected
	stats["auto_refresh"] = s.session.AutoRefresh()
	stats["alerting"] = s.session.Alerting()
	stats["pollers"] = s.session.Pollers()

	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handlePutCapture(w http.ResponseWriter, r *http.Request) {
	marker := mux.Vars(r)["marker"]
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCaptureBytes))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "capture too large")
		return
	}

	c, err := capture.New(marker, data, s.opts.Now())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.captures.Put(c)

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"marker": c.Marker,
		"width":  c.Width,
		"height": c.Height,
		"bytes":  len(c.PNG),
	})
}

func (s *Server) handleDeleteCapture(w http.ResponseWriter, r *http.Request) {
	marker := mux.Vars(r)["marker"]
	s.captures.Delete(marker)
	respondJSON(w, http.StatusOK, map[string]string{"marker": marker})
}
