package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"saythat-server/game"
	"saythat-server/gameerrors"
)

// GameService is the part of the game engine exposed over HTTP.
type GameService interface {
	AnalyzeSpeech(ctx context.Context, objectName, audioURL string) error
	SetDefaults(ctx context.Context, userID string) error
	SetLanguage(ctx context.Context, userID string, l game.Language) error
	StartUpload(ctx context.Context, userID, timestamp string) (string, error)
	SubmitGuess(ctx context.Context, userID, noun string) (string, error)
	SetCurrentScene(ctx context.Context, scene string) error
	AddNoun(ctx context.Context, scene, noun string) (string, error)
	CurrentScene(ctx context.Context) (string, error)
	SceneSnapshot(ctx context.Context, scene string, recent int) (game.SceneSnapshot, error)
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for API handlers.
type Handler struct {
	Game   GameService
	Health Pinger
}

// NewHandler creates a new API handler with the given dependencies.
func NewHandler(g GameService, health Pinger) *Handler {
	return &Handler{Game: g, Health: health}
}

// CORS sets CORS headers on the response. It reports true when the request
// was a preflight that has been answered.
func CORS(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "tag", "api", "error", err)
	}
}

// writeError maps engine errors to status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, gameerrors.ErrUnknownLanguage), errors.Is(err, game.ErrEmptyNoun):
		status = http.StatusBadRequest
	case errors.Is(err, gameerrors.ErrNoCurrentScene):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "tag", "api", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	return true
}

// StorageEvent is the object notification sent when an upload changes.
// Metageneration arrives as a string or a number depending on the sender.
type StorageEvent struct {
	Name           string      `json:"name"`
	MediaLink      string      `json:"mediaLink"`
	ResourceState  string      `json:"resourceState"`
	Metageneration json.Number `json:"metageneration"`
}

// StorageEvents analyzes newly created speech uploads. Other notifications
// and malformed object names are acknowledged without work so the sender
// does not redeliver them.
func (h *Handler) StorageEvents(w http.ResponseWriter, r *http.Request) {
	var ev StorageEvent
	if !decodeBody(w, r, &ev) {
		return
	}
	if ev.ResourceState != "exists" || ev.Metageneration.String() != "1" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	err := h.Game.AnalyzeSpeech(r.Context(), ev.Name, ev.MediaLink)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
	case errors.Is(err, gameerrors.ErrMalformedFilename):
		w.WriteHeader(http.StatusNoContent)
	default:
		slog.Error("failed to analyze speech", "tag", "api", "name", ev.Name, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "analysis failed"})
	}
}

// CreateUser gives a new user the default settings.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	if err := h.Game.SetDefaults(r.Context(), r.PathValue("userId")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, game.DefaultLanguage)
}

// SetLanguage changes the user's language.
func (h *Handler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	var l game.Language
	if !decodeBody(w, r, &l) {
		return
	}
	if err := h.Game.SetLanguage(r.Context(), r.PathValue("userId"), l); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type uploadRequest struct {
	Timestamp string `json:"timestamp"`
}

type uploadResponse struct {
	ObjectName string `json:"object_name"`
	Timestamp  string `json:"timestamp"`
}

// StartUpload marks a recording as in progress and returns the object name
// the app must upload it under. The timestamp defaults to now.
func (h *Handler) StartUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	if req.Timestamp == "" {
		req.Timestamp = strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
	name, err := h.Game.StartUpload(r.Context(), r.PathValue("userId"), req.Timestamp)
	if err != nil {
		if errors.Is(err, gameerrors.ErrMalformedFilename) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{ObjectName: name, Timestamp: req.Timestamp})
}

// SubmitGuess records a typed guess for judging.
func (h *Handler) SubmitGuess(w http.ResponseWriter, r *http.Request) {
	scene, err := h.Game.SubmitGuess(r.Context(), r.PathValue("userId"), r.PathValue("noun"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"scene": scene})
}

type sceneRequest struct {
	Scene string `json:"scene"`
}

// SetCurrentScene switches the scene being played.
func (h *Handler) SetCurrentScene(w http.ResponseWriter, r *http.Request) {
	var req sceneRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Scene == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "scene is required"})
		return
	}
	if err := h.Game.SetCurrentScene(r.Context(), req.Scene); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetCurrentScene returns the scene being played.
func (h *Handler) GetCurrentScene(w http.ResponseWriter, r *http.Request) {
	scene, err := h.Game.CurrentScene(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sceneRequest{Scene: scene})
}

// AddNoun adds an English noun to a scene; translations follow asynchronously.
func (h *Handler) AddNoun(w http.ResponseWriter, r *http.Request) {
	noun, err := h.Game.AddNoun(r.Context(), r.PathValue("scene"), r.PathValue("noun"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"noun": noun})
}

// Scene returns the aggregates of a scene.
func (h *Handler) Scene(w http.ResponseWriter, r *http.Request) {
	recent, _ := strconv.Atoi(r.URL.Query().Get("recent"))
	if recent <= 0 {
		recent = 20
	}
	snap, err := h.Game.SceneSnapshot(r.Context(), r.PathValue("scene"), recent)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Healthz reports whether the store is reachable.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Health.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
