package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fableforge/tales/internal/llm"
	"github.com/fableforge/tales/internal/models"
)

// StoryGenerator runs the generation pipeline for one request.
type StoryGenerator interface {
	Process(ctx context.Context, params models.StoryParams) (*models.GenerateStoryResponse, error)
}

// StoryLister reads the library page from the store.
type StoryLister interface {
	ListRecent(ctx context.Context, limit int) ([]*models.Story, error)
}

// HealthChecker reports store connectivity for the health endpoint.
type HealthChecker interface {
	Health() error
}

// Handler contains all HTTP handlers
type Handler struct {
	generator        StoryGenerator
	stories          StoryLister   // nil when DATABASE_URL is not configured
	health           HealthChecker // nil when DATABASE_URL is not configured
	apiKeyConfigured bool
	pageSize         int
}

// NewHandler creates a new handler. stories and health may be nil when no
// database is configured; generation still works, the library does not.
func NewHandler(generator StoryGenerator, stories StoryLister, health HealthChecker, apiKeyConfigured bool, pageSize int) *Handler {
	return &Handler{
		generator:        generator,
		stories:          stories,
		health:           health,
		apiKeyConfigured: apiKeyConfigured,
		pageSize:         pageSize,
	}
}

// GenerateStory handles POST /v1/stories/generate
func (h *Handler) GenerateStory(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON")
		return
	}

	// Required fields, checked before any provider call.
	var missing []string
	if strings.TrimSpace(req.MainCharacter) == "" {
		missing = append(missing, "mainCharacter")
	}
	if strings.TrimSpace(req.Plot) == "" {
		missing = append(missing, "plot")
	}
	if strings.TrimSpace(req.Ending) == "" {
		missing = append(missing, "ending")
	}
	if len(missing) > 0 {
		writeJSONError(w, http.StatusBadRequest, "MISSING_FIELDS",
			"missing required fields: "+strings.Join(missing, ", "))
		return
	}

	if !h.apiKeyConfigured {
		writeJSONError(w, http.StatusInternalServerError, "MISSING_API_KEY",
			"OPENAI_API_KEY is not configured")
		return
	}

	resp, err := h.generator.Process(r.Context(), req.Params())
	if err != nil {
		status, code := generationErrorStatus(err)
		log.Error().Err(err).Str("code", code).Msg("Story generation failed")
		writeJSONError(w, status, code, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListStories handles GET /v1/stories — the library page, newest first.
func (h *Handler) ListStories(w http.ResponseWriter, r *http.Request) {
	if h.stories == nil {
		writeJSONError(w, http.StatusInternalServerError, "NO_DATABASE_URL",
			"DATABASE_URL is not configured")
		return
	}

	limit := h.pageSize
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed < limit {
			limit = parsed
		}
	}

	stories, err := h.stories.ListRecent(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list stories")
		writeJSONError(w, http.StatusInternalServerError, "CONNECTION_FAILED", "failed to list stories")
		return
	}
	if stories == nil {
		stories = []*models.Story{}
	}

	writeJSON(w, http.StatusOK, models.ListStoriesResponse{
		Stories: stories,
		Count:   len(stories),
	})
}

// Healthz handles GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	dbStatus := "unconfigured"
	if h.health != nil {
		dbStatus = "up"
		if err := h.health.Health(); err != nil {
			dbStatus = "down"
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"database": dbStatus,
	})
}

// MethodNotAllowed is installed as the router's MethodNotAllowedHandler so
// wrong-method requests get a JSON error instead of an empty body.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
		r.Method+" is not allowed on "+r.URL.Path)
}

// generationErrorStatus maps pipeline error kinds onto HTTP statuses and
// machine-readable codes.
func generationErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, llm.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "QUOTA_EXCEEDED"
	case errors.Is(err, llm.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS"
	case errors.Is(err, llm.ErrTimeout):
		return http.StatusGatewayTimeout, "PROVIDER_TIMEOUT"
	default:
		return http.StatusInternalServerError, "GENERATION_FAILED"
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"code": code, "error": message})
}
