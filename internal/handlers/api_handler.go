package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	config "github.com/inference-gateway/desktop-agent/config"
	display "github.com/inference-gateway/desktop-agent/internal/display"
	domain "github.com/inference-gateway/desktop-agent/internal/domain"
	storage "github.com/inference-gateway/desktop-agent/internal/infra/storage"
	logger "github.com/inference-gateway/desktop-agent/internal/logger"
	services "github.com/inference-gateway/desktop-agent/internal/services"
)

const maxRequestBody = 1 << 20

// TaskService runs tasks and manual actions against the desktop
type TaskService interface {
	RunTask(ctx context.Context, req domain.TaskRequest) (domain.TaskResult, error)
	ExecuteAction(ctx context.Context, req domain.ActionRequest) (domain.ActionResult, error)
	Screenshot(ctx context.Context) (domain.ActionResult, error)
	Summary(ctx context.Context, sessionID string) (*services.LogSummary, error)
	Sessions(ctx context.Context, limit int) ([]storage.SessionSummary, error)
	Health(ctx context.Context) map[string]string
	Running() bool
	CurrentSession() string
	Frames() *services.FrameBuffer
}

// ServiceInfo describes the running agent on the index route
type ServiceInfo struct {
	Version  domain.VersionInfo
	Display  display.DisplayInfo
	Model    string
	Platform string
}

// APIHandler serves the task, action and log endpoints
type APIHandler struct {
	tasks TaskService
	info  ServiceInfo
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(tasks TaskService, info ServiceInfo) *APIHandler {
	return &APIHandler{tasks: tasks, info: info}
}

// writeJSON writes a JSON response and logs errors
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]any{
		"error": message,
		"time":  time.Now().UTC().Format(time.RFC3339),
	})
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func decodeBody(r *http.Request, dst any) error {
	body := io.LimitReader(r.Body, maxRequestBody)
	decoder := json.NewDecoder(body)
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

// HandleIndex handles GET /
func (h *APIHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service":  "desktop-agent",
		"version":  h.info.Version,
		"model":    h.info.Model,
		"platform": h.info.Platform,
		"display": map[string]any{
			"name":              h.info.Display.Name,
			"scales_input":      h.info.Display.ScalesInput,
			"supports_key_hold": h.info.Display.SupportsKeyHold,
		},
		"busy":            h.tasks.Running(),
		"current_session": h.tasks.CurrentSession(),
		"endpoints": []string{
			"GET /health",
			"POST /screenshot",
			"POST /action",
			"POST /task",
			"GET /sessions",
			"GET /logs/summary?session_id=",
			"GET /screenshots",
			"GET /screenshots/latest",
			"GET /ws",
			"GET /metrics",
		},
	})
}

// HandleHealth handles GET /health
func (h *APIHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := h.tasks.Health(ctx)
	status, code := "healthy", http.StatusOK
	for component, result := range checks {
		if result != "ok" {
			logger.Error("Health check failed", "component", component, "error", result)
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": checks,
		"busy":   h.tasks.Running(),
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleScreenshot handles POST /screenshot
func (h *APIHandler) HandleScreenshot(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	result, err := h.tasks.Screenshot(r.Context())
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	code := http.StatusOK
	if !result.Success {
		code = http.StatusInternalServerError
	}
	writeJSON(w, code, result)
}

// HandleAction handles POST /action. Failed actions are still 200: the
// failure is described by the result.
func (h *APIHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req domain.ActionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid action request: "+err.Error())
		return
	}

	result, err := h.tasks.ExecuteAction(r.Context(), req)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleTask handles POST /task. The request blocks until the task ends.
func (h *APIHandler) HandleTask(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req domain.TaskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid task request: "+err.Error())
		return
	}
	if req.MaxIterations < 0 || req.MaxIterations > config.MaxIterationsLimit {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("max_iterations must be between 0 and %d", config.MaxIterationsLimit))
		return
	}

	logger.Info("Task requested", "task", req.Task, "max_iterations", req.MaxIterations, "remote", r.RemoteAddr)

	result, err := h.tasks.RunTask(r.Context(), req)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleLogSummary handles GET /logs/summary?session_id=
func (h *APIHandler) HandleLogSummary(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	summary, err := h.tasks.Summary(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found: "+sessionID)
			return
		}
		logger.Error("Failed to summarize session", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleSessions handles GET /sessions?limit=N
func (h *APIHandler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	limit := queryLimit(r, 50, 1000)
	sessions, err := h.tasks.Sessions(r.Context(), limit)
	if err != nil {
		logger.Error("Failed to list sessions", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// HandleLatestScreenshot handles GET /screenshots/latest
func (h *APIHandler) HandleLatestScreenshot(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	frame, err := h.tasks.Frames().Latest()
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

// HandleRecentScreenshots handles GET /screenshots?limit=N
func (h *APIHandler) HandleRecentScreenshots(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	frames := h.tasks.Frames().Recent(queryLimit(r, 30, 100))
	writeJSON(w, http.StatusOK, map[string]any{
		"screenshots": frames,
		"count":       len(frames),
	})
}

func (h *APIHandler) writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrTaskInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrEmptyTask):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func queryLimit(r *http.Request, fallback, max int) int {
	limit := fallback
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= max {
			limit = parsed
		}
	}
	return limit
}
