// Package server exposes the HTTP surface: the GitHub webhook endpoint, the
// changelog and release read APIs, and the health and metrics endpoints.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/relnotary/relnotary/internal/changelog"
	"github.com/relnotary/relnotary/internal/config"
	"github.com/relnotary/relnotary/internal/event"
	"github.com/relnotary/relnotary/internal/ingest"
	"github.com/relnotary/relnotary/internal/logging"
	"github.com/relnotary/relnotary/internal/metrics"
	"github.com/relnotary/relnotary/internal/store"
	"github.com/relnotary/relnotary/internal/webhook"
)

// Error codes returned in JSON error bodies. AUTH_FAILED is written by the
// webhook handler before requests reach this package.
const (
	codeNotFound         = "NOT_FOUND"
	codeValidationFailed = "VALIDATION_FAILED"
	codeInternal         = "INTERNAL"
)

// HealthResponse is the /health response body.
type HealthResponse struct {
	Status string          `json:"status"`
	Checks map[string]bool `json:"checks"`
}

// webhookAck is the response body for a processed webhook delivery.
type webhookAck struct {
	Status  string `json:"status"`
	Outcome string `json:"outcome,omitempty"`
	Commits int    `json:"commits,omitempty"`
}

// changelogRequest is the POST /api/releases/{id}/changelog request body.
type changelogRequest struct {
	Format             string `json:"format"`
	Style              string `json:"style"`
	IncludeCommits     *bool  `json:"include_commits"`
	CustomInstructions string `json:"custom_instructions"`
}

// Server is the relnotary HTTP server.
type Server struct {
	cfg       *config.Config
	store     *store.Store
	engine    *ingest.Engine
	assembler *changelog.Assembler
	log       *logging.Logger

	mux          *http.ServeMux
	httpServer   *httpServer
	httpServerMu sync.RWMutex
	ready        chan struct{}
}

// New creates a Server wired to the given collaborators.
func New(cfg *config.Config, s *store.Store, engine *ingest.Engine, assembler *changelog.Assembler, log *logging.Logger) *Server {
	srv := &Server{
		cfg:       cfg,
		store:     s,
		engine:    engine,
		assembler: assembler,
		log:       log,
		mux:       http.NewServeMux(),
		ready:     make(chan struct{}),
	}
	srv.routes()
	return srv
}

// Ready returns a channel that is closed once the listener is accepting
// connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/metrics", s.handleMetrics)

	// Always registered: Verify rejects every delivery when the secret is
	// empty, so an unconfigured secret yields 401s rather than 404s.
	s.mux.Handle("/webhook/github", webhook.NewGitHubHandler(
		s.cfg.GitHub.WebhookSecret,
		s.handleDelivery,
	))

	s.mux.HandleFunc("/api/releases", s.handleListReleases)
	s.mux.HandleFunc("/api/releases/", s.handleRelease)
}

// handleDelivery processes a signature-verified webhook delivery.
func (s *Server) handleDelivery(w http.ResponseWriter, r *http.Request, d *webhook.Delivery) {
	log := s.log.With("delivery_id", d.DeliveryID, "event", d.EventType)

	evt, err := event.Normalize(d.EventType, d.Body)
	if errors.Is(err, event.ErrUnsupported) {
		metrics.WebhookIgnored()
		log.Debug("ignoring webhook delivery")
		writeJSON(w, http.StatusOK, webhookAck{Status: "ignored"})
		return
	}
	if errors.Is(err, event.ErrInvalidPayload) {
		log.Warn("invalid webhook payload", "error", err)
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid webhook payload")
		return
	}
	if err != nil {
		log.Error("normalizing webhook payload", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}

	result, err := s.engine.Apply(r.Context(), evt)
	if errors.Is(err, event.ErrInvalidPayload) {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}
	if err != nil {
		log.Error("applying webhook event", "repository", evt.Repo(), "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}

	metrics.WebhookProcessed()
	log.Info("webhook processed", "repository", evt.Repo(), "outcome", string(result.Outcome))
	writeJSON(w, http.StatusOK, webhookAck{
		Status:  "processed",
		Outcome: string(result.Outcome),
		Commits: result.Commits,
	})
}

// handleListReleases serves GET /api/releases with an optional repository
// filter.
func (s *Server) handleListReleases(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, codeValidationFailed, "method not allowed")
		return
	}

	releases, err := s.store.ListReleases(r.Context(), r.URL.Query().Get("repository"))
	if err != nil {
		s.log.Error("listing releases", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"releases": releases})
}

// handleRelease dispatches GET /api/releases/{id} and
// POST /api/releases/{id}/changelog.
func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/releases/")
	idPart, tail, _ := strings.Cut(rest, "/")

	id, err := strconv.ParseUint(idPart, 10, 32)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "release id must be a positive integer")
		return
	}

	switch {
	case tail == "" && r.Method == http.MethodGet:
		s.handleGetRelease(w, r, uint(id))
	case tail == "changelog" && r.Method == http.MethodPost:
		s.handleGenerateChangelog(w, r, uint(id))
	default:
		writeError(w, http.StatusNotFound, codeNotFound, "no such route")
	}
}

func (s *Server) handleGetRelease(w http.ResponseWriter, r *http.Request, id uint) {
	rel, err := s.store.GetReleaseByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, codeNotFound, "release not found")
		return
	}
	if err != nil {
		s.log.Error("fetching release", "release_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

func (s *Server) handleGenerateChangelog(w http.ResponseWriter, r *http.Request, id uint) {
	var req changelogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "malformed request body")
		return
	}

	format, err := changelog.ParseFormat(req.Format)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}
	styleStr := req.Style
	if styleStr == "" {
		styleStr = s.cfg.Changelog.DefaultStyle
	}
	style, err := changelog.ParseStyle(styleStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}
	includeCommits := s.cfg.Changelog.IncludeCommits
	if req.IncludeCommits != nil {
		includeCommits = *req.IncludeCommits
	}

	out, err := s.assembler.Assemble(r.Context(), id, changelog.Options{
		Format:             format,
		Style:              style,
		IncludeCommits:     includeCommits,
		CustomInstructions: req.CustomInstructions,
	})
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, codeNotFound, "release not found")
		return
	}
	if err != nil {
		s.log.Error("assembling changelog", "release_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleHealth reports server health, including a database ping.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := s.store.Ping(r.Context()) == nil

	status := "ok"
	if !dbOK {
		status = "degraded"
	}
	code := http.StatusOK
	if !dbOK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, HealthResponse{
		Status: status,
		Checks: map[string]bool{"database": dbOK},
	})
}

// handleMetrics responds with the current operational counters.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metrics.Get())
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
