// Package auth exposes the login, refresh, and logout endpoints.
package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/agrocrm/identity/internal/httputil"
	authsvc "github.com/agrocrm/identity/pkg/auth"
	"github.com/agrocrm/identity/pkg/domain"
)

// Handler handles authentication endpoints.
type Handler struct {
	logger *slog.Logger
	flows  *authsvc.AuthService
}

// NewHandler creates a new auth handler.
func NewHandler(logger *slog.Logger, flows *authsvc.AuthService) *Handler {
	return &Handler{logger: logger, flows: flows}
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	TOTPCode string `json:"totpCode,omitempty"`
}

// LoginResponse mirrors the wire shape older clients already depend on:
// "role" carries the first role, "roles" the full set.
type LoginResponse struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	Role         string   `json:"role"`
	Username     string   `json:"username"`
	Roles        []string `json:"roles"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse carries the rotated pair.
type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Login authenticates credentials and opens a session.
// POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "username and password are required")
		return
	}

	result, err := h.flows.Login(r.Context(), authsvc.LoginInput{
		Username:  req.Username,
		Password:  req.Password,
		TOTPCode:  req.TOTPCode,
		UserAgent: r.UserAgent(),
		IPAddress: httputil.ClientIP(r),
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			httputil.Error(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, domain.ErrAccountLocked):
			httputil.Error(w, http.StatusLocked, "account locked, try again later")
		case errors.Is(err, domain.ErrTOTPRequired):
			httputil.Error(w, http.StatusUnauthorized, "totp code required")
		case errors.Is(err, domain.ErrInvalidTOTPCode):
			httputil.Error(w, http.StatusUnauthorized, "invalid totp code")
		default:
			h.logger.Error("login failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "login failed")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, LoginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		Role:         result.PrimaryRole,
		Username:     result.Username,
		Roles:        result.Roles,
	})
}

// Refresh exchanges a refresh token for a rotated pair.
// POST /auth/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RefreshToken == "" {
		httputil.Error(w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	pair, err := h.flows.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if isAuthError(err) {
			httputil.Error(w, http.StatusUnauthorized, "invalid or expired refresh token")
			return
		}
		h.logger.Error("token refresh failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	httputil.JSON(w, http.StatusOK, RefreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Logout terminates the session of the presented access token.
// POST /auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	tokenString, ok := httputil.BearerToken(r)
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	if err := h.flows.Logout(r.Context(), tokenString, httputil.ClientIP(r), r.UserAgent()); err != nil {
		if isAuthError(err) {
			httputil.Error(w, http.StatusUnauthorized, "invalid token")
			return
		}
		h.logger.Error("logout failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "logout failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll terminates every other session of the calling user.
// POST /auth/logout-all
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	tokenString, ok := httputil.BearerToken(r)
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	if err := h.flows.LogoutAll(r.Context(), tokenString, httputil.ClientIP(r), r.UserAgent()); err != nil {
		if isAuthError(err) {
			httputil.Error(w, http.StatusUnauthorized, "invalid token")
			return
		}
		h.logger.Error("logout-all failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "logout failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// isAuthError reports whether err is one of the expected rejection causes
// the client gets a 401 for, as opposed to a failing backend.
func isAuthError(err error) bool {
	return errors.Is(err, domain.ErrTokenMalformed) ||
		errors.Is(err, domain.ErrTokenSignatureInvalid) ||
		errors.Is(err, domain.ErrTokenExpired) ||
		errors.Is(err, domain.ErrWrongTokenKind) ||
		errors.Is(err, domain.ErrSessionInvalid) ||
		errors.Is(err, domain.ErrSessionNotFound)
}
