// Package session exposes the session-management endpoints: listing a
// user's active sessions and terminating one remotely.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agrocrm/identity/internal/http/middleware"
	"github.com/agrocrm/identity/internal/httputil"
	authsvc "github.com/agrocrm/identity/pkg/auth"
	"github.com/agrocrm/identity/pkg/domain"
)

// UserDirectory resolves the calling principal to an account.
type UserDirectory interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// Handler handles session-management endpoints.
type Handler struct {
	logger   *slog.Logger
	sessions *authsvc.SessionService
	users    UserDirectory
}

// NewHandler creates a new session handler.
func NewHandler(logger *slog.Logger, sessions *authsvc.SessionService, users UserDirectory) *Handler {
	return &Handler{logger: logger, sessions: sessions, users: users}
}

// List returns the caller's active sessions, newest first.
// GET /api/sessions
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.Principal(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.users.GetByUsername(r.Context(), principal.Subject)
	if err != nil {
		h.logger.Error("failed to resolve principal", "subject", principal.Subject, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	sessions, err := h.sessions.ListForUser(r.Context(), user.ID, true)
	if err != nil {
		h.logger.Error("failed to list sessions", "user_id", user.ID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*domain.Session{}
	}

	httputil.JSON(w, http.StatusOK, sessions)
}

// Terminate ends one of the caller's sessions.
// DELETE /api/sessions/{sessionID}
func (h *Handler) Terminate(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.Principal(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid session id")
		return
	}

	user, err := h.users.GetByUsername(r.Context(), principal.Subject)
	if err != nil {
		h.logger.Error("failed to resolve principal", "subject", principal.Subject, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to terminate session")
		return
	}

	err = h.sessions.Terminate(r.Context(), sessionID, user.ID, httputil.ClientIP(r), r.UserAgent())
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		httputil.Error(w, http.StatusNotFound, "session not found")
	case errors.Is(err, domain.ErrSessionForbidden):
		httputil.Error(w, http.StatusForbidden, "forbidden")
	case err != nil:
		h.logger.Error("failed to terminate session", "session_id", sessionID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to terminate session")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
