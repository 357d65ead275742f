package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sandeepkv93/session-console/internal/domain"
	"github.com/sandeepkv93/session-console/internal/http/middleware"
	"github.com/sandeepkv93/session-console/internal/http/response"
	"github.com/sandeepkv93/session-console/internal/observability"
	"github.com/sandeepkv93/session-console/internal/repository"
	"github.com/sandeepkv93/session-console/internal/service"
)

type SessionHandler struct {
	sessions *service.SessionService
	logger   *slog.Logger
}

func NewSessionHandler(sessions *service.SessionService, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{sessions: sessions, logger: logger}
}

type revokeRequest struct {
	Token string `json:"token"`
}

func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	session := p.Session
	if session == nil {
		var err error
		session, err = h.sessions.Current(r.Context(), p.UserID, p.SessionID)
		if err != nil {
			h.writeLookupError(w, r, err)
			return
		}
	}
	response.JSON(w, r, http.StatusOK, session.View())
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	sessions, err := h.sessions.ListActiveSessions(r.Context(), p.UserID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list sessions failed", "user_id", p.UserID, "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to list sessions", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, domain.Views(sessions))
}

func (h *SessionHandler) ListDevice(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	sessions, err := h.sessions.ListDeviceSessions(r.Context(), p.UserID, p.SessionID)
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, domain.Views(sessions))
}

func (h *SessionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	status, err := h.sessions.RevokeSession(r.Context(), p.UserID, req.Token)
	switch {
	case errors.Is(err, service.ErrEmptyToken):
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "token is required", nil)
		return
	case errors.Is(err, repository.ErrSessionNotFound):
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "session not found", nil)
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "revoke session failed", "user_id", p.UserID, "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to revoke session", nil)
		return
	}
	observability.Audit(r, "session.revoke", "user_id", p.UserID, "status", status)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": status})
}

func (h *SessionHandler) RevokeOthers(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	n, err := h.sessions.RevokeOtherSessions(r.Context(), p.UserID, p.SessionID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "revoke other sessions failed", "user_id", p.UserID, "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to revoke sessions", nil)
		return
	}
	observability.Audit(r, "session.revoke_others", "user_id", p.UserID, "revoked", n)
	response.JSON(w, r, http.StatusOK, map[string]int64{"revoked": n})
}

func (h *SessionHandler) principal(w http.ResponseWriter, r *http.Request) (*middleware.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing principal", nil)
		return nil, false
	}
	return p, true
}

func (h *SessionHandler) writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, repository.ErrSessionNotFound) {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "session not found", nil)
		return
	}
	h.logger.ErrorContext(r.Context(), "session lookup failed", "error", err)
	response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to load session", nil)
}
