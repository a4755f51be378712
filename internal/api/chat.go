package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/JuneJin9655/ai-chat/internal/chat"
	"github.com/JuneJin9655/ai-chat/internal/session"
)

// chatHandler serves conversation turns, message reads and cache stats.
type chatHandler struct {
	chat   ChatService
	logger *slog.Logger
}

// messageRequest is the body of POST /chat/{chatId}/message and /stream.
type messageRequest struct {
	Message string `json:"message"`
}

// turnResponse is the body of a successful batch turn.
type turnResponse struct {
	ChatID   string             `json:"chatId"`
	Messages []*session.Message `json:"messages"`
}

// getMessages handles GET /chat/{chatId}/messages?page=&limit=.
func (h *chatHandler) getMessages(w http.ResponseWriter, r *http.Request) {
	id, err := chatID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_chat_id", "chat ID must be a valid UUID")
		return
	}

	page, limit := 1, 20
	if raw := r.URL.Query().Get("page"); raw != "" {
		if page, err = strconv.Atoi(raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pagination", "Page and limit must be positive numbers")
			return
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pagination", "Page and limit must be positive numbers")
			return
		}
	}

	result, err := h.chat.GetMessages(r.Context(), id, page, limit)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrInvalidPagination):
			writeError(w, http.StatusBadRequest, "invalid_pagination", "Page and limit must be positive numbers")
		case errors.Is(err, session.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "chat session not found")
		default:
			h.logger.Error("getting messages", "chat_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to get messages")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// sendMessage handles POST /chat/{chatId}/message.
func (h *chatHandler) sendMessage(w http.ResponseWriter, r *http.Request) {
	id, err := chatID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_chat_id", "chat ID must be a valid UUID")
		return
	}

	req, ok := decodeMessage(w, r)
	if !ok {
		return
	}

	messages, err := h.chat.SendMessage(r.Context(), id, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			writeError(w, http.StatusBadRequest, "empty_message", "Message content is required")
		case errors.Is(err, session.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "chat session not found")
		case errors.Is(err, chat.ErrUpstream):
			h.logger.Error("upstream completion failed", "chat_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "upstream_failure", err.Error())
		default:
			h.logger.Error("sending message", "chat_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to process message")
		}
		return
	}

	writeJSON(w, http.StatusOK, turnResponse{ChatID: id.String(), Messages: messages})
}

// streamMessage handles POST /chat/{chatId}/stream as Server-Sent Events.
//
// Wire format, one frame per fragment:
//
//	data: {"content":"<fragment>"}\n\n
//
// terminated by `data: [DONE]\n\n`. Failures before the first frame still
// get a JSON error response with a real status code; once a frame is out the
// status is committed and failures are reported in-band as
// `data: {"error":"..."}\n\n`.
func (h *chatHandler) streamMessage(w http.ResponseWriter, r *http.Request) {
	id, err := chatID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_chat_id", "chat ID must be a valid UUID")
		return
	}

	req, ok := decodeMessage(w, r)
	if !ok {
		return
	}

	// Before any frame is written the status can still express the error.
	stream, err := h.chat.StreamMessage(r.Context(), id, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			writeError(w, http.StatusBadRequest, "empty_message", "Message content is required")
		case errors.Is(err, session.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "chat session not found")
		default:
			h.logger.Error("opening stream", "chat_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "stream_error", "Error processing stream")
		}
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	var full strings.Builder
	framesSent := false

	for fragment, err := range stream.Fragments {
		if ctx.Err() != nil {
			h.logger.Info("client disconnected mid-stream", "chat_id", id)
			return
		}
		if err != nil {
			h.logger.Error("stream failed", "chat_id", id, "error", err)
			if !framesSent {
				// Headers are not committed until the first frame, so the
				// response can still carry a status and a JSON body.
				clearStreamHeaders(w)
				writeError(w, http.StatusInternalServerError, "stream_error", "Error processing stream")
				return
			}
			h.writeFrame(w, flusher, map[string]string{"error": "Stream error occurred"})
			return
		}
		if fragment == "" {
			continue
		}
		full.WriteString(fragment)
		if !h.writeFrame(w, flusher, map[string]string{"content": fragment}) {
			// Write failure usually means the connection closed.
			return
		}
		framesSent = true
	}

	if err := stream.Finalize(ctx, full.String()); err != nil {
		h.logger.Error("finalizing stream", "chat_id", id, "error", err)
		if !framesSent {
			clearStreamHeaders(w)
			writeError(w, http.StatusInternalServerError, "stream_error", "Error processing stream")
			return
		}
		h.writeFrame(w, flusher, map[string]string{"error": "Stream error occurred"})
		return
	}

	if _, err := fmt.Fprint(w, "data: [DONE]\n\n"); err != nil {
		h.logger.Debug("writing DONE frame", "error", err)
		return
	}
	flusher.Flush()
}

// cacheStats handles GET /chat/stats/cache.
func (h *chatHandler) cacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.chat.CacheStats(r.Context()))
}

// clearStreamHeaders removes the SSE headers so an error response written
// before any frame can set its own.
func clearStreamHeaders(w http.ResponseWriter) {
	header := w.Header()
	header.Del("Content-Type")
	header.Del("Cache-Control")
	header.Del("Connection")
	header.Del("X-Accel-Buffering")
}

// writeFrame writes one SSE data frame and flushes it. Reports whether the
// write succeeded.
func (h *chatHandler) writeFrame(w http.ResponseWriter, flusher http.Flusher, payload map[string]string) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("encoding SSE frame", "error", err)
		return false
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		h.logger.Debug("writing SSE frame", "error", err)
		return false
	}
	flusher.Flush()
	return true
}

// decodeMessage parses and bounds the turn request body.
func decodeMessage(w http.ResponseWriter, r *http.Request) (messageRequest, bool) {
	var req messageRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return req, false
	}
	return req, true
}
