package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/JuneJin9655/ai-chat/internal/session"
)

// sessionHandler serves session CRUD endpoints.
type sessionHandler struct {
	chat   ChatService
	logger *slog.Logger
}

// createSession handles POST /chat/new.
func (h *sessionHandler) createSession(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no user ID found")
		return
	}

	sess, err := h.chat.CreateSession(r.Context(), uid)
	if err != nil {
		h.logger.Error("creating session", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

// listSessions handles GET /chat/all.
func (h *sessionHandler) listSessions(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no user ID found")
		return
	}

	sessions, err := h.chat.ListSessions(r.Context(), uid)
	if err != nil {
		h.logger.Error("listing sessions", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*session.Session{}
	}

	writeJSON(w, http.StatusOK, sessions)
}

// getSession handles GET /chat/{chatId}.
func (h *sessionHandler) getSession(w http.ResponseWriter, r *http.Request) {
	id, err := chatID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_chat_id", "chat ID must be a valid UUID")
		return
	}

	sess, err := h.chat.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "chat session not found")
			return
		}
		h.logger.Error("getting session", "chat_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get session")
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// deleteSession handles DELETE /chat/{chatId}.
func (h *sessionHandler) deleteSession(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no user ID found")
		return
	}

	id, err := chatID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_chat_id", "chat ID must be a valid UUID")
		return
	}

	if err := h.chat.DeleteSession(r.Context(), id, uid); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "chat session not found")
			return
		}
		h.logger.Error("deleting session", "chat_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
