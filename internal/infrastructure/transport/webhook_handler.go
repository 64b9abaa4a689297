package transport

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pagesmith/app/usecase"
	"pagesmith/internal/domain/entity"
	"pagesmith/internal/infrastructure/events"
)

type WebhookHandler struct {
	buildService usecase.BuildUsecase
	filesService usecase.SiteFilesUseCase
	hub          *events.Hub
	sharedSecret string
	logger       *slog.Logger
	upgrader     websocket.Upgrader

	// метрики
	reqDuration *prometheus.HistogramVec
	reqCount    *prometheus.CounterVec
	errCount    *prometheus.CounterVec
}

func NewWebhookHandler(
	buildService usecase.BuildUsecase,
	filesService usecase.SiteFilesUseCase,
	hub *events.Hub,
	sharedSecret string,
	logger *slog.Logger,
) *WebhookHandler {

	reqDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	reqCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed.",
		},
		[]string{"method", "path"},
	)

	errCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of HTTP request errors.",
		},
		[]string{"method", "path", "status"},
	)

	prometheus.MustRegister(reqDuration, reqCount, errCount)

	return &WebhookHandler{
		buildService: buildService,
		filesService: filesService,
		hub:          hub,
		sharedSecret: sharedSecret,
		logger:       logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		reqDuration: reqDuration,
		reqCount:    reqCount,
		errCount:    errCount,
	}
}

// Middleware для метрик
func (h *WebhookHandler) withMetrics(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := r.URL.Path
		method := r.Method

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rw, r)

		duration := time.Since(start).Seconds()
		statusStr := strconv.Itoa(rw.status)

		h.reqCount.WithLabelValues(method, path).Inc()
		h.reqDuration.WithLabelValues(method, path, statusStr).Observe(duration)

		if rw.status >= 400 {
			h.errCount.WithLabelValues(method, path, statusStr).Inc()
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (h *WebhookHandler) RegisterRoutes(r *mux.Router) {
	// Webhook endpoint keeps its historical path.
	r.HandleFunc("/api-endpoint", h.withMetrics(h.handleSubmit)).Methods(http.MethodPost)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/builds", h.withMetrics(h.handleListBuilds)).Methods(http.MethodGet)
	api.HandleFunc("/builds/{id}", h.withMetrics(h.handleGetBuild)).Methods(http.MethodGet)
	api.HandleFunc("/builds/{id}", h.withMetrics(h.handleDeleteBuild)).Methods(http.MethodDelete)
	api.HandleFunc("/builds/{id}/files", h.withMetrics(h.handleGetFiles)).Methods(http.MethodGet)
	api.HandleFunc("/builds/{id}/events", h.handleEvents).Methods(http.MethodGet)
	api.HandleFunc("/health", h.withMetrics(h.handleHealth)).Methods(http.MethodGet)

	// Prometheus
	r.Handle("/metrics", promhttp.Handler())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

type submitReq struct {
	Email         string              `json:"email"`
	Secret        string              `json:"secret"`
	Task          string              `json:"task"`
	Round         int                 `json:"round"`
	Nonce         string              `json:"nonce"`
	Brief         string              `json:"brief"`
	Checks        []string            `json:"checks"`
	EvaluationURL string              `json:"evaluation_url"`
	Attachments   []entity.Attachment `json:"attachments"`
}

func (req *submitReq) missingFields() []string {
	var missing []string
	if req.Email == "" {
		missing = append(missing, "email")
	}
	if req.Task == "" {
		missing = append(missing, "task")
	}
	if req.Round == 0 {
		missing = append(missing, "round")
	}
	if req.Nonce == "" {
		missing = append(missing, "nonce")
	}
	if req.EvaluationURL == "" {
		missing = append(missing, "evaluation_url")
	}
	return missing
}

// POST /api-endpoint
func (h *WebhookHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad request body: %w", err))
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(h.sharedSecret)) != 1 {
		h.logger.Warn("invalid secret received", "task", req.Task)
		writeError(w, http.StatusUnauthorized, errors.New("invalid secret"))
		return
	}

	if missing := req.missingFields(); len(missing) > 0 {
		h.logger.Error("missing required fields", "fields", missing)
		writeError(w, http.StatusBadRequest,
			fmt.Errorf("missing required fields: %s", strings.Join(missing, ", ")))
		return
	}

	build, duplicate, err := h.buildService.Submit(r.Context(), usecase.SubmitRequest{
		Email:         req.Email,
		Task:          req.Task,
		Round:         req.Round,
		Nonce:         req.Nonce,
		Brief:         req.Brief,
		Checks:        req.Checks,
		Attachments:   req.Attachments,
		EvaluationURL: req.EvaluationURL,
	})
	if err != nil {
		h.logger.Error("submit failed", "task", req.Task, "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if duplicate {
		h.logger.Info("duplicate request re-notified", "key", build.Key())
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"note":   "duplicate handled & re-notified",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":   "accepted",
		"build_id": build.ID,
		"task":     build.Task,
		"round":    build.Round,
		"note":     fmt.Sprintf("Processing for round %d started in background.", build.Round),
	})
}

// GET /api/v1/builds
func (h *WebhookHandler) handleListBuilds(w http.ResponseWriter, r *http.Request) {
	builds, err := h.buildService.ListBuilds(r.Context())
	if err != nil {
		h.logger.Error("list builds failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, builds)
}

// GET /api/v1/builds/{id}
func (h *WebhookHandler) handleGetBuild(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("id required"))
		return
	}
	build, err := h.buildService.GetBuild(r.Context(), id)
	if err != nil {
		h.logger.Error("get build failed", "id", id, "err", err)
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, build)
}

// DELETE /api/v1/builds/{id}
func (h *WebhookHandler) handleDeleteBuild(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("id required"))
		return
	}
	if err := h.buildService.DeleteBuild(r.Context(), id); err != nil {
		h.logger.Error("delete build failed", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/builds/{id}/files
func (h *WebhookHandler) handleGetFiles(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("id required"))
		return
	}
	files, err := h.filesService.GetFilesByBuildID(r.Context(), id)
	if err != nil {
		h.logger.Error("get files failed", "build_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// GET /api/v1/builds/{id}/events — websocket stream of status transitions.
func (h *WebhookHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "build_id", id, "err", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	ch, cancel := h.hub.Subscribe(id)
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			// Terminal statuses end the stream.
			if ev.Status == entity.BuildStatusCompleted || ev.Status == entity.BuildStatusFailed {
				return
			}
		}
	}
}

// GET /api/v1/health
func (h *WebhookHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"ok": true,
		"ts": time.Now().UTC(),
	}
	writeJSON(w, http.StatusOK, status)
}
