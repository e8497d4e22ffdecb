package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiosk-pos/api/internal/service"
)

// SessionServicer defines the service methods needed by session handlers.
// Satisfied by *service.SessionService; narrow interface for testability.
type SessionServicer interface {
	Start(ctx context.Context) (*service.SessionResult, error)
	Touch(ctx context.Context, key string) (*service.SessionResult, error)
	Status(ctx context.Context, key string) (*service.SessionResult, error)
	Close(ctx context.Context, key string) (*service.SessionResult, error)
}

// SessionHandler handles kiosk session endpoints.
type SessionHandler struct {
	svc SessionServicer
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(svc SessionServicer) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// RegisterRoutes registers session endpoints on the given Chi router.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.Start)
	r.Get("/sessions/{key}", h.Status)
	r.Post("/sessions/{key}/touch", h.Touch)
	r.Post("/sessions/{key}/close", h.Close)
}

// Start handles POST /sessions.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Start(r.Context())
	if err != nil {
		writeServiceError(w, "start session", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Touch handles POST /sessions/{key}/touch.
func (h *SessionHandler) Touch(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Touch(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeSessionError(w, "touch session", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Status handles GET /sessions/{key}.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Status(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeSessionError(w, "session status", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Close handles POST /sessions/{key}/close.
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Close(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeSessionError(w, "close session", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// writeSessionError reports an unknown key as 404 rather than a session conflict.
func writeSessionError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, service.ErrSessionNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeServiceError(w, op, err)
}
