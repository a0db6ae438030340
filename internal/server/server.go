// Package server is the HTTP boundary of the voice cloning service: job
// submission and inspection, websocket progress streaming, and the saved
// voice registry with speech synthesis.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/health"
	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/observe"
	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/pipeline"
	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/progress"
	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/resilience"
	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/voicestore"
	"github.com/Leo328/basic-youtube-voice-cloning-app/pkg/cloning"
)

// Server wires the HTTP routes to the pipeline, registry, and cloning
// client. Construct with [New]; serve via [Server.Handler].
type Server struct {
	orch    *pipeline.Orchestrator
	store   *voicestore.Store
	cloner  cloning.Client
	bus     *progress.Broadcaster
	metrics *observe.Metrics
	health  *health.Handler
	version string
}

// Config holds all dependencies for a [Server].
type Config struct {
	Orchestrator *pipeline.Orchestrator
	Store        *voicestore.Store

	// Cloner serves the voice-registry operations (rename on save, delete,
	// speak). Pass the guarded client so these calls share the breaker.
	Cloner cloning.Client

	Broadcaster *progress.Broadcaster
	Metrics     *observe.Metrics
	Health      *health.Handler

	// Version is reported by the service-info endpoint. Default: "dev".
	Version string
}

// New creates a Server from cfg. All dependencies except Health and Metrics
// are required.
func New(cfg Config) (*Server, error) {
	if cfg.Orchestrator == nil {
		return nil, errors.New("server: orchestrator is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("server: store is required")
	}
	if cfg.Cloner == nil {
		return nil, errors.New("server: cloner is required")
	}
	if cfg.Broadcaster == nil {
		return nil, errors.New("server: broadcaster is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Health == nil {
		cfg.Health = health.New()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &Server{
		orch:    cfg.Orchestrator,
		store:   cfg.Store,
		cloner:  cfg.Cloner,
		bus:     cfg.Broadcaster,
		metrics: cfg.Metrics,
		health:  cfg.Health,
		version: cfg.Version,
	}, nil
}

// Handler returns the fully wired HTTP handler, including observability
// middleware and ops endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /jobs", s.handleSubmitJob)
	mux.HandleFunc("GET /jobs/{id}", s.handleJobStatus)
	mux.HandleFunc("DELETE /jobs/{id}", s.handleCancelJob)
	mux.HandleFunc("GET /jobs/{id}/progress", s.handleProgress)

	mux.HandleFunc("POST /voices", s.handleSaveVoice)
	mux.HandleFunc("GET /voices", s.handleListVoices)
	mux.HandleFunc("DELETE /voices/{name}", s.handleDeleteVoice)
	mux.HandleFunc("POST /voices/{name}/speak", s.handleSpeak)

	mux.HandleFunc("GET /{$}", s.handleServiceInfo)

	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}

// errorBody is the JSON error envelope for all non-2xx responses.
type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// cloningStatus maps a classified cloning failure to an HTTP status.
func cloningStatus(err error) int {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return http.StatusServiceUnavailable
	}
	switch cloning.KindOf(err) {
	case cloning.KindQuotaExceeded:
		return http.StatusTooManyRequests
	case cloning.KindUnsupportedFormat, cloning.KindInvalidText:
		return http.StatusBadRequest
	case cloning.KindFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case cloning.KindUnknownVoice:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}
